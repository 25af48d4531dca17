package state

// UserState представляет текущий шаг диалога пользователя
type UserState string

const (
	StateNone UserState = "" // Нет активного диалога

	// Изменение дат заявки: ждём текст с новыми датами
	StateEditingInquiryDates UserState = "editing_inquiry_dates"
	// Даты разобраны, ждём подтверждения кнопкой
	StateConfirmingInquiryDates UserState = "confirming_inquiry_dates"
)

// Dialog хранит данные незавершённого диалога
type Dialog struct {
	State     UserState
	InquiryID int64
	Dates     string // текст дат, введённый пользователем
}
