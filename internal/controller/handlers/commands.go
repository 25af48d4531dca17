package handlers

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/passmarket/internal/controller/state"
	"github.com/Freeeeeet/passmarket/internal/model"
)

const helpText = "📚 <b>Commands</b>\n\n" +
	"/requests - Requests waiting for your decision\n" +
	"/bookings - Requests you have sent\n" +
	"/calendar &lt;pass id&gt; - Booked dates of a pass\n" +
	"/cancel - Abort the current dialog\n" +
	"/help - Show this help\n\n" +
	"Notifications about your requests and bookings arrive in this chat."

// HandleStart обрабатывает /start и /start <userID>. С параметром привязывает
// чат к существующему пользователю маркетплейса, без него регистрирует нового.
func (h *Handlers) HandleStart(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	from := update.Message.From
	chatID := update.Message.Chat.ID

	var (
		user *model.User
		err  error
	)

	fields := strings.Fields(update.Message.Text)
	if len(fields) > 1 {
		userID, parseErr := strconv.ParseInt(fields[1], 10, 64)
		if parseErr != nil || userID <= 0 {
			h.sendMessage(ctx, s, chatID, "❌ Invalid link. Open the bot from the marketplace settings page.", nil)
			return
		}
		user, err = h.users.LinkTelegram(ctx, userID, from.ID)
	} else {
		user, err = h.users.RegisterTelegram(ctx, from.ID, displayName(from))
	}

	if err != nil {
		h.logger.Error("Failed to register user",
			zap.Int64("telegram_id", from.ID),
			zap.Error(err),
		)
		h.sendMessage(ctx, s, chatID, ErrorText(err), nil)
		return
	}

	welcomeText := fmt.Sprintf("👋 Hi, %s!\n\n"+
		"This bot keeps you posted about pass booking requests and lets you "+
		"answer them right here.\n\n", html.EscapeString(user.Name))

	h.sendMessage(ctx, s, chatID, welcomeText+helpText, nil)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, s, update.Message.Chat.ID, helpText, nil)
}

// HandleCancel обрабатывает команду /cancel - отмена текущего диалога
func (h *Handlers) HandleCancel(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	telegramID := update.Message.From.ID
	if h.stateManager.GetState(telegramID) == state.StateNone {
		h.sendMessage(ctx, s, update.Message.Chat.ID, "❌ Nothing to cancel.", nil)
		return
	}

	h.stateManager.ClearState(telegramID)
	h.sendMessage(ctx, s, update.Message.Chat.ID, "✅ Cancelled.\n\nUse /help to see the commands.", nil)
}

// HandleTextMessage обрабатывает текстовые сообщения в зависимости от шага диалога
func (h *Handlers) HandleTextMessage(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}

	// Команды обрабатываются другими handlers
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	telegramID := update.Message.From.ID
	currentState := h.stateManager.GetState(telegramID)

	switch currentState {
	case state.StateNone:
		h.logger.Debug("No active dialog, ignoring message", zap.Int64("telegram_id", telegramID))
	case state.StateEditingInquiryDates:
		h.handleNewDates(ctx, s, update)
	case state.StateConfirmingInquiryDates:
		h.sendMessage(ctx, s, update.Message.Chat.ID, "Use the buttons above to confirm the new dates, or /cancel.", nil)
	default:
		h.logger.Warn("Unknown state", zap.String("state", string(currentState)))
	}
}
