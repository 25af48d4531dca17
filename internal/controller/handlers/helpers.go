package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/model"
)

// не больше стольких заявок в ответ на /requests и /bookings
const listLimit = 10

// StatusDisplay содержит emoji и текст для отображения статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetStatusDisplay возвращает emoji и текст для статуса заявки
func GetStatusDisplay(status model.InquiryStatus) StatusDisplay {
	switch status {
	case model.InquiryStatusPending:
		return StatusDisplay{Emoji: "⏳", Text: "Pending"}
	case model.InquiryStatusApproved:
		return StatusDisplay{Emoji: "✅", Text: "Approved"}
	case model.InquiryStatusRejected:
		return StatusDisplay{Emoji: "❌", Text: "Declined"}
	case model.InquiryStatusCancelled:
		return StatusDisplay{Emoji: "🚫", Text: "Cancelled"}
	}
	return StatusDisplay{Emoji: "❔", Text: string(status)}
}

// FormatInquiry форматирует заявку в HTML
func FormatInquiry(inq *model.Inquiry) string {
	display := GetStatusDisplay(inq.Status)

	title := fmt.Sprintf("pass #%d", inq.PassID)
	if inq.Pass != nil && inq.Pass.Title != "" {
		title = inq.Pass.Title
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>Request #%d</b> for <b>%s</b>\n\n", display.Emoji, inq.ID, html.EscapeString(title))
	fmt.Fprintf(&sb, "📅 %s\n", html.EscapeString(inq.RequestedDates))
	if inq.Message != "" {
		fmt.Fprintf(&sb, "💬 %s\n", html.EscapeString(inq.Message))
	}
	if inq.ContactInfo != "" {
		fmt.Fprintf(&sb, "📞 %s\n", html.EscapeString(inq.ContactInfo))
	}
	fmt.Fprintf(&sb, "\n📊 Status: %s", display.Text)
	return sb.String()
}

// FormatCalendar перечисляет забронированные диапазоны
func FormatCalendar(pass *model.Pass, cal calendar.Calendar) string {
	header := fmt.Sprintf("🗓 <b>%s</b>\n\n", html.EscapeString(pass.Title))
	if len(cal) == 0 {
		return header + "No booked dates. Every day is available."
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("Booked:\n")
	for _, r := range cal {
		if r.Start == r.End {
			fmt.Fprintf(&sb, "• %s\n", r.Start)
			continue
		}
		fmt.Fprintf(&sb, "• %s → %s\n", r.Start, r.End)
	}
	return sb.String()
}

// ErrorText возвращает пользовательское сообщение для ошибки сервиса
func ErrorText(err error) string {
	var parseErr *calendar.ParseError
	switch {
	case errors.As(err, &parseErr):
		return "❌ Could not read the dates. Use a format like \"Dec 15-17, 2025\" or \"Nov 28 - Dec 2, 2025\"."
	case errors.Is(err, booking.ErrNotFound):
		return "❌ Request not found"
	case errors.Is(err, booking.ErrUnauthorized):
		return "❌ You cannot do this for this request"
	case errors.Is(err, booking.ErrInvalidTransition):
		return "❌ This request has already been handled"
	case errors.Is(err, booking.ErrCalendarConflict):
		return "⚠️ The calendar changed meanwhile. Please try again."
	case errors.Is(err, booking.ErrInvalidInput):
		return "❌ " + strings.TrimSuffix(err.Error(), ": "+booking.ErrInvalidInput.Error())
	default:
		return "❌ Something went wrong. Try again later."
	}
}

// ParseIDFromCallback извлекает ID из callback data
// Например: "approve_inquiry:123" -> 123
func ParseIDFromCallback(data string) (int64, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid callback data format %q", data)
	}
	return strconv.ParseInt(parts[1], 10, 64)
}

// requireUser находит пользователя по Telegram ID и сообщает если его нет
func (h *Handlers) requireUser(ctx context.Context, s Sender, telegramID, chatID int64) (*model.User, bool) {
	user, err := h.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		h.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		h.sendMessage(ctx, s, chatID, "❌ Something went wrong. Try again later.", nil)
		return nil, false
	}

	if user == nil {
		h.sendMessage(ctx, s, chatID, "❌ You are not registered yet. Use /start first.", nil)
		return nil, false
	}

	return user, true
}

// sendMessage отправляет HTML-сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, s Sender, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	if _, err := s.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// answer отвечает на callback query, alert показывает всплывающее окно
func (h *Handlers) answer(ctx context.Context, s Sender, callbackID, text string, alert bool) {
	_, err := s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		h.logger.Warn("Failed to answer callback", zap.String("callback_id", callbackID), zap.Error(err))
	}
}

// editMessage заменяет текст сообщения, к которому привязана кнопка
func (h *Handlers) editMessage(ctx context.Context, s Sender, callback *models.CallbackQuery, text string, keyboard *models.InlineKeyboardMarkup) {
	msg := callback.Message.Message
	if msg == nil {
		return
	}

	params := &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := s.EditMessageText(ctx, params)
	// "message is not modified" не настоящая ошибка
	if err != nil && !strings.Contains(err.Error(), "message is not modified") {
		h.logger.Warn("Failed to edit message", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
