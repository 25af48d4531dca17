package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/controller/state"
	"github.com/Freeeeeet/passmarket/internal/model"
)

// HandleRequests обрабатывает /requests - входящие заявки, ждущие решения
func (h *Handlers) HandleRequests(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user, ok := h.requireUser(ctx, s, update.Message.From.ID, chatID)
	if !ok {
		return
	}

	pending, err := h.inquiries.ListPending(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to list pending inquiries", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, s, chatID, ErrorText(err), nil)
		return
	}

	if len(pending) == 0 {
		h.sendMessage(ctx, s, chatID, "📭 No requests are waiting for you.", nil)
		return
	}

	h.sendMessage(ctx, s, chatID, fmt.Sprintf("📥 Requests waiting for your decision: %d", len(pending)), nil)
	for _, inq := range limit(pending) {
		h.sendMessage(ctx, s, chatID, FormatInquiry(inq), inquiryKeyboard(inq, user.ID))
	}
}

// HandleBookings обрабатывает /bookings - заявки, отправленные пользователем
func (h *Handlers) HandleBookings(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user, ok := h.requireUser(ctx, s, update.Message.From.ID, chatID)
	if !ok {
		return
	}

	sent, err := h.inquiries.ListSent(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to list sent inquiries", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, s, chatID, ErrorText(err), nil)
		return
	}

	if len(sent) == 0 {
		h.sendMessage(ctx, s, chatID, "📭 You have not sent any requests yet.", nil)
		return
	}

	for _, inq := range limit(sent) {
		h.sendMessage(ctx, s, chatID, FormatInquiry(inq), inquiryKeyboard(inq, user.ID))
	}
}

// HandleCalendar обрабатывает /calendar <passID>
func (h *Handlers) HandleCalendar(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	fields := strings.Fields(update.Message.Text)
	if len(fields) != 2 {
		h.sendMessage(ctx, s, chatID, "Usage: /calendar &lt;pass id&gt;", nil)
		return
	}
	passID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || passID <= 0 {
		h.sendMessage(ctx, s, chatID, "❌ Pass id must be a number", nil)
		return
	}

	pass, err := h.passes.Get(ctx, passID)
	if err != nil {
		h.sendMessage(ctx, s, chatID, passErrorText(err), nil)
		return
	}
	h.sendMessage(ctx, s, chatID, FormatCalendar(pass, pass.BookedDates), nil)
}

// handleNewDates принимает текст новых дат и просит подтверждения
func (h *Handlers) handleNewDates(ctx context.Context, s Sender, update *models.Update) {
	telegramID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	r, err := calendar.ParseRequestedDates(text)
	if err != nil {
		h.sendMessage(ctx, s, chatID, ErrorText(err)+"\n\nTry again or /cancel.", nil)
		return
	}

	dialog := h.stateManager.Get(telegramID)
	if !h.stateManager.SetDates(telegramID, text) {
		h.sendMessage(ctx, s, chatID, "⌛ The dialog has expired. Open /bookings to start again.", nil)
		return
	}

	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "✅ Save", CallbackData: fmt.Sprintf("%s%d", ConfirmDates, dialog.InquiryID)},
				{Text: "✖️ Discard", CallbackData: AbortEdit},
			},
		},
	}

	h.sendMessage(ctx, s, chatID,
		fmt.Sprintf("📅 New dates for request #%d:\n<b>%s → %s</b>\n\nSave them?", dialog.InquiryID, r.Start, r.End),
		keyboard,
	)
}

// inquiryKeyboard собирает кнопки, доступные пользователю для заявки
func inquiryKeyboard(inq *model.Inquiry, userID int64) *models.InlineKeyboardMarkup {
	var row []models.InlineKeyboardButton
	id := strconv.FormatInt(inq.ID, 10)

	switch {
	case inq.IsPending() && userID == inq.ReceiverUserID:
		row = append(row,
			models.InlineKeyboardButton{Text: "✅ Approve", CallbackData: ApproveInquiry + id},
			models.InlineKeyboardButton{Text: "❌ Decline", CallbackData: RejectInquiry + id},
		)
	case inq.IsPending() && userID == inq.SenderUserID:
		row = append(row,
			models.InlineKeyboardButton{Text: "✏️ Edit dates", CallbackData: EditDates + id},
			models.InlineKeyboardButton{Text: "🚫 Cancel", CallbackData: CancelInquiry + id},
		)
	case inq.IsApproved():
		row = append(row, models.InlineKeyboardButton{Text: "🚫 Cancel booking", CallbackData: CancelInquiry + id})
	}

	if len(row) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{row}}
}

func passErrorText(err error) string {
	if errors.Is(err, booking.ErrNotFound) {
		return "❌ Pass not found"
	}
	return ErrorText(err)
}

func limit(inquiries []*model.Inquiry) []*model.Inquiry {
	if len(inquiries) > listLimit {
		return inquiries[:listLimit]
	}
	return inquiries
}

// editDialogInquiry проверяет, что диалог подтверждения относится к заявке
func editDialogInquiry(dialog state.Dialog, inquiryID int64) bool {
	return dialog.State == state.StateConfirmingInquiryDates && dialog.InquiryID == inquiryID && dialog.Dates != ""
}
