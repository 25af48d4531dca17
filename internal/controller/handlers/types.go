package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/controller/state"
	"github.com/Freeeeeet/passmarket/internal/model"
)

// Sender - часть *bot.Bot, которой пользуются обработчики
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// HandlerFunc - обработчик апдейта, не завязанный на *bot.Bot
type HandlerFunc func(ctx context.Context, s Sender, update *models.Update)

type UserService interface {
	RegisterTelegram(ctx context.Context, telegramID int64, name string) (*model.User, error)
	LinkTelegram(ctx context.Context, userID, telegramID int64) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

type InquiryService interface {
	Get(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, error)
	Edit(ctx context.Context, inquiryID, actorID int64, req booking.EditRequest) (*model.Inquiry, error)
	Approve(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, error)
	Reject(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, error)
	Cancel(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, *booking.Outcome, error)
	ListSent(ctx context.Context, senderID int64) ([]*model.Inquiry, error)
	ListPending(ctx context.Context, receiverID int64) ([]*model.Inquiry, error)
}

type PassService interface {
	Get(ctx context.Context, id int64) (*model.Pass, error)
}

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	users        UserService
	inquiries    InquiryService
	passes       PassService
	stateManager *state.Manager
	logger       *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	users UserService,
	inquiries InquiryService,
	passes PassService,
	stateManager *state.Manager,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		users:        users,
		inquiries:    inquiries,
		passes:       passes,
		stateManager: stateManager,
		logger:       logger,
	}
}
