package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/model"
	"go.uber.org/zap"
)

type NotificationService struct {
	notifications booking.NotificationStore
	logger        *zap.Logger
	now           func() time.Time
}

func NewNotificationService(notifications booking.NotificationStore, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		logger:        logger,
		now:           time.Now,
	}
}

// List получает неархивные уведомления пользователя
func (s *NotificationService) List(ctx context.Context, userID int64) ([]*model.Notification, error) {
	notifications, err := s.notifications.ListActive(ctx, userID)
	if err != nil {
		return nil, booking.Persistence("list notifications", err)
	}
	return notifications, nil
}

// MarkAllRead отмечает все уведомления прочитанными
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	updated, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, booking.Persistence("mark notifications read", err)
	}
	return updated, nil
}

// Dismiss удаляет своё уведомление
func (s *NotificationService) Dismiss(ctx context.Context, id, userID int64) error {
	if err := s.notifications.Delete(ctx, id, userID); err != nil {
		return booking.Persistence("dismiss notification", err)
	}
	return nil
}

// Archive архивирует своё уведомление
func (s *NotificationService) Archive(ctx context.Context, id, userID int64) error {
	if err := s.notifications.Archive(ctx, id, userID, s.now()); err != nil {
		return booking.Persistence("archive notification", err)
	}
	return nil
}

// ArchiveDue архивирует уведомления с наступившим archive_after
func (s *NotificationService) ArchiveDue(ctx context.Context) (int64, error) {
	archived, err := s.notifications.ArchiveDue(ctx, s.now())
	if err != nil {
		return 0, booking.Persistence("archive due notifications", err)
	}
	return archived, nil
}
