package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/controller/state"
	"github.com/Freeeeeet/passmarket/internal/model"
)

// Форматы callback data
const (
	ApproveInquiry = "approve_inquiry:" // approve_inquiry:inquiry_id
	RejectInquiry  = "reject_inquiry:"  // reject_inquiry:inquiry_id
	CancelInquiry  = "cancel_inquiry:"  // cancel_inquiry:inquiry_id
	EditDates      = "edit_dates:"      // edit_dates:inquiry_id
	ConfirmDates   = "confirm_dates:"   // confirm_dates:inquiry_id
	AbortEdit      = "abort_edit"
)

// HandleCallbackQuery распределяет нажатия inline-кнопок
func (h *Handlers) HandleCallbackQuery(ctx context.Context, s Sender, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}
	data := callback.Data

	h.logger.Debug("Routing callback",
		zap.String("data", data),
		zap.Int64("telegram_id", callback.From.ID),
	)

	switch {
	case data == AbortEdit:
		h.stateManager.ClearState(callback.From.ID)
		h.answer(ctx, s, callback.ID, "", false)
		h.editMessage(ctx, s, callback, "✖️ Dates were not changed.", nil)
	case strings.HasPrefix(data, ApproveInquiry):
		h.handleDecision(ctx, s, callback, "approve", h.inquiries.Approve)
	case strings.HasPrefix(data, RejectInquiry):
		h.handleDecision(ctx, s, callback, "reject", h.inquiries.Reject)
	case strings.HasPrefix(data, CancelInquiry):
		h.handleCancel(ctx, s, callback)
	case strings.HasPrefix(data, EditDates):
		h.handleEditDates(ctx, s, callback)
	case strings.HasPrefix(data, ConfirmDates):
		h.handleConfirmDates(ctx, s, callback)
	default:
		h.logger.Warn("Unknown callback", zap.String("data", data))
		h.answer(ctx, s, callback.ID, "", false)
	}
}

// callbackActor разбирает ID заявки и находит пользователя
func (h *Handlers) callbackActor(ctx context.Context, s Sender, callback *models.CallbackQuery) (inquiryID int64, user *model.User, ok bool) {
	inquiryID, err := ParseIDFromCallback(callback.Data)
	if err != nil {
		h.answer(ctx, s, callback.ID, "❌ Invalid button", true)
		return 0, nil, false
	}

	user, err = h.users.GetByTelegramID(ctx, callback.From.ID)
	if err != nil || user == nil {
		h.answer(ctx, s, callback.ID, "❌ You are not registered yet. Use /start first.", true)
		return 0, nil, false
	}

	return inquiryID, user, true
}

func (h *Handlers) handleDecision(
	ctx context.Context,
	s Sender,
	callback *models.CallbackQuery,
	action string,
	decide func(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, error),
) {
	inquiryID, user, ok := h.callbackActor(ctx, s, callback)
	if !ok {
		return
	}

	inq, err := decide(ctx, inquiryID, user.ID)
	if err != nil {
		h.logger.Warn("Inquiry decision failed",
			zap.String("action", action),
			zap.Int64("inquiry_id", inquiryID),
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
		h.answer(ctx, s, callback.ID, ErrorText(err), true)
		return
	}

	display := GetStatusDisplay(inq.Status)
	h.answer(ctx, s, callback.ID, fmt.Sprintf("%s %s", display.Emoji, display.Text), false)
	h.editMessage(ctx, s, callback, FormatInquiry(inq), nil)
}

func (h *Handlers) handleCancel(ctx context.Context, s Sender, callback *models.CallbackQuery) {
	inquiryID, user, ok := h.callbackActor(ctx, s, callback)
	if !ok {
		return
	}

	inq, out, err := h.inquiries.Cancel(ctx, inquiryID, user.ID)
	if err != nil {
		h.logger.Warn("Inquiry cancel failed",
			zap.Int64("inquiry_id", inquiryID),
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
		h.answer(ctx, s, callback.ID, ErrorText(err), true)
		return
	}

	text := "🚫 Request cancelled."
	if out != nil && out.From == model.InquiryStatusApproved {
		text = "🚫 Booking cancelled. The dates are now available again."
	}
	h.answer(ctx, s, callback.ID, text, false)
	h.editMessage(ctx, s, callback, FormatInquiry(inq), nil)
}

// handleEditDates начинает диалог изменения дат
func (h *Handlers) handleEditDates(ctx context.Context, s Sender, callback *models.CallbackQuery) {
	inquiryID, user, ok := h.callbackActor(ctx, s, callback)
	if !ok {
		return
	}

	inq, err := h.inquiries.Get(ctx, inquiryID, user.ID)
	if err != nil {
		h.answer(ctx, s, callback.ID, ErrorText(err), true)
		return
	}
	if !inq.IsPending() || inq.SenderUserID != user.ID {
		h.answer(ctx, s, callback.ID, "❌ Only pending requests you sent can be edited", true)
		return
	}

	h.stateManager.Start(callback.From.ID, state.StateEditingInquiryDates, inq.ID)
	h.answer(ctx, s, callback.ID, "", false)

	if msg := callback.Message.Message; msg != nil {
		h.sendMessage(ctx, s, msg.Chat.ID, fmt.Sprintf(
			"✏️ Send the new dates for request #%d.\n\nCurrent: %s\nFor example: Dec 15-17, 2025\n\n/cancel to keep them.",
			inq.ID, inq.RequestedDates,
		), nil)
	}
}

// handleConfirmDates сохраняет даты, введённые в диалоге
func (h *Handlers) handleConfirmDates(ctx context.Context, s Sender, callback *models.CallbackQuery) {
	inquiryID, user, ok := h.callbackActor(ctx, s, callback)
	if !ok {
		return
	}

	dialog := h.stateManager.Get(callback.From.ID)
	if !editDialogInquiry(dialog, inquiryID) {
		h.answer(ctx, s, callback.ID, "⌛ The dialog has expired. Open /bookings to start again.", true)
		return
	}

	current, err := h.inquiries.Get(ctx, inquiryID, user.ID)
	if err != nil {
		h.answer(ctx, s, callback.ID, ErrorText(err), true)
		return
	}

	updated, err := h.inquiries.Edit(ctx, inquiryID, user.ID, booking.EditRequest{
		Message:        current.Message,
		ContactInfo:    current.ContactInfo,
		RequestedDates: dialog.Dates,
	})
	if err != nil {
		h.logger.Warn("Inquiry edit failed",
			zap.Int64("inquiry_id", inquiryID),
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
		h.answer(ctx, s, callback.ID, ErrorText(err), true)
		return
	}

	h.stateManager.ClearState(callback.From.ID)
	h.answer(ctx, s, callback.ID, "✅ Dates updated", false)
	h.editMessage(ctx, s, callback, FormatInquiry(updated), nil)
}
