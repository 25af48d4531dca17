// Package notify delivers stored notifications to users over Telegram.
package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/metrics"
	"github.com/Freeeeeet/passmarket/internal/model"
)

const transportTelegram = "telegram"

// MessageSender is the part of *bot.Bot the notifier needs.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier sends a notification to the recipient's linked chat.
// Users without a linked chat are skipped silently; the notification row
// is still visible through the API.
type TelegramNotifier struct {
	sender MessageSender
	users  booking.UserStore
	logger *zap.Logger
}

func NewTelegramNotifier(sender MessageSender, users booking.UserStore, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender: sender,
		users:  users,
		logger: logger,
	}
}

func (n *TelegramNotifier) Deliver(ctx context.Context, notification *model.Notification) error {
	user, err := n.users.GetByID(ctx, notification.UserID)
	if err != nil {
		metrics.RecordDelivery(transportTelegram, "error")
		return fmt.Errorf("get recipient: %w", err)
	}
	if user == nil || !user.HasTelegram() {
		metrics.RecordDelivery(transportTelegram, "skipped")
		return nil
	}

	_, err = n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    *user.TelegramID,
		Text:      Render(notification),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		metrics.RecordDelivery(transportTelegram, "error")
		return fmt.Errorf("send telegram message: %w", err)
	}

	metrics.RecordDelivery(transportTelegram, "ok")
	n.logger.Debug("Notification delivered",
		zap.Int64("notification_id", notification.ID),
		zap.Int64("user_id", user.ID),
	)
	return nil
}

// Render formats a notification as Telegram HTML.
func Render(notification *model.Notification) string {
	icon := "🔔"
	switch notification.Type {
	case model.NotificationInquiryReceived:
		icon = "📩"
	case model.NotificationInquiryApproved:
		icon = "✅"
	case model.NotificationInquiryRejected:
		icon = "❌"
	case model.NotificationInquiryCancelled:
		icon = "🚫"
	}

	text := fmt.Sprintf("%s <b>%s</b>\n\n%s", icon, html.EscapeString(notification.Title), html.EscapeString(notification.Message))
	if notification.RelatedID != nil {
		text += fmt.Sprintf("\n\n<i>Inquiry #%d</i>", *notification.RelatedID)
	}
	return text
}
