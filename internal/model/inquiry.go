package model

import "time"

type InquiryStatus string

const (
	InquiryStatusPending   InquiryStatus = "pending"   // Ждёт решения владельца
	InquiryStatusApproved  InquiryStatus = "approved"  // Даты забронированы
	InquiryStatusRejected  InquiryStatus = "rejected"  // Отклонено владельцем
	InquiryStatusCancelled InquiryStatus = "cancelled" // Отменено одной из сторон
)

// IsTerminal reports whether no further transition is allowed
func (s InquiryStatus) IsTerminal() bool {
	return s == InquiryStatusRejected || s == InquiryStatusCancelled
}

// Valid checks the status is one of the known values
func (s InquiryStatus) Valid() bool {
	switch s {
	case InquiryStatusPending, InquiryStatusApproved, InquiryStatusRejected, InquiryStatusCancelled:
		return true
	}
	return false
}

// Inquiry is a booking request from a sender for a pass owned by the receiver.
type Inquiry struct {
	ID             int64         `json:"id"`
	PassID         int64         `json:"pass_id"`
	SenderUserID   int64         `json:"sender_user_id"`
	ReceiverUserID int64         `json:"receiver_user_id"`
	RequestedDates string        `json:"requested_dates"` // свободный текст, "Dec 15-17, 2025"
	Message        string        `json:"message"`
	ContactInfo    string        `json:"contact_info"`
	Status         InquiryStatus `json:"status"`
	Read           bool          `json:"read"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	CancelledAt    *time.Time    `json:"cancelled_at"`

	// Дополнительные поля для удобства (не из БД)
	Pass *Pass `json:"pass,omitempty"`
}

// IsPending checks if inquiry is pending
func (i *Inquiry) IsPending() bool {
	return i.Status == InquiryStatusPending
}

// IsApproved checks if inquiry is approved
func (i *Inquiry) IsApproved() bool {
	return i.Status == InquiryStatusApproved
}

// IsParty checks that the user is the sender or the receiver
func (i *Inquiry) IsParty(userID int64) bool {
	return i.SenderUserID == userID || i.ReceiverUserID == userID
}

// Counterpart returns the other side of the inquiry for userID
func (i *Inquiry) Counterpart(userID int64) int64 {
	if userID == i.SenderUserID {
		return i.ReceiverUserID
	}
	return i.SenderUserID
}
