package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/model"
	"go.uber.org/zap"
)

type UserService struct {
	userRepo booking.UserStore
	logger   *zap.Logger
}

func NewUserService(userRepo booking.UserStore, logger *zap.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// Create регистрирует пользователя маркетплейса
func (s *UserService) Create(ctx context.Context, name, email string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", booking.ErrInvalidInput)
	}

	user := &model.User{Name: name, Email: strings.TrimSpace(email)}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, booking.Persistence("create user", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.String("name", user.Name),
	)

	return user, nil
}

// RegisterTelegram находит пользователя по Telegram ID или создаёт нового
func (s *UserService) RegisterTelegram(ctx context.Context, telegramID int64, name string) (*model.User, error) {
	// Проверяем существует ли пользователь
	existingUser, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, booking.Persistence("check existing user", err)
	}
	if existingUser != nil {
		return existingUser, nil
	}

	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("tg-%d", telegramID)
	}

	user := &model.User{
		Name:       strings.TrimSpace(name),
		TelegramID: &telegramID,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, booking.Persistence("create user", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", telegramID),
	)

	return user, nil
}

// LinkTelegram привязывает Telegram-чат к существующему пользователю
func (s *UserService) LinkTelegram(ctx context.Context, userID, telegramID int64) (*model.User, error) {
	linked, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, booking.Persistence("check telegram link", err)
	}
	if linked != nil && linked.ID != userID {
		return nil, fmt.Errorf("telegram account is linked to another user: %w", booking.ErrInvalidInput)
	}

	if err := s.userRepo.LinkTelegram(ctx, userID, telegramID); err != nil {
		return nil, booking.Persistence("link telegram", err)
	}

	s.logger.Info("Telegram linked",
		zap.Int64("user_id", userID),
		zap.Int64("telegram_id", telegramID),
	)

	return s.GetByID(ctx, userID)
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, booking.Persistence("get user", err)
	}
	return user, nil
}

// GetByID получает пользователя по ID
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, booking.Persistence("get user", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", id, booking.ErrNotFound)
	}
	return user, nil
}
