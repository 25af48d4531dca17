package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/metrics"
	"github.com/Freeeeeet/passmarket/internal/model"
	"github.com/Freeeeeet/passmarket/internal/repository/base"
)

type NotificationRepository struct {
	db base.Querier
}

func NewNotificationRepository(db base.Querier) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create создаёт уведомление
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	defer metrics.ObserveDB("notifications.create")()

	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}

	query := `
		INSERT INTO notifications (user_id, pass_id, type, title, message, related_id, metadata, archive_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, read, archived, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		n.UserID,
		n.PassID,
		n.Type,
		n.Title,
		n.Message,
		n.RelatedID,
		n.Metadata,
		n.ArchiveAfter,
	).Scan(&n.ID, &n.Read, &n.Archived, &n.CreatedAt)

	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	return nil
}

// ListActive получает неархивные уведомления пользователя
func (r *NotificationRepository) ListActive(ctx context.Context, userID int64) ([]*model.Notification, error) {
	defer metrics.ObserveDB("notifications.list")()

	query := `
		SELECT id, user_id, pass_id, type, title, message, read, archived, related_id, metadata, archive_after, created_at, archived_at
		FROM notifications
		WHERE user_id = $1 AND archived = false
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		var n model.Notification
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.PassID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.Read,
			&n.Archived,
			&n.RelatedID,
			&n.Metadata,
			&n.ArchiveAfter,
			&n.CreatedAt,
			&n.ArchivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}

// MarkAllRead отмечает все уведомления пользователя прочитанными
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	defer metrics.ObserveDB("notifications.mark_all_read")()

	affected, err := base.ExecAffected(ctx, r.db,
		`UPDATE notifications SET read = true WHERE user_id = $1 AND read = false`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}

	return affected, nil
}

// Delete удаляет уведомление, только своё
func (r *NotificationRepository) Delete(ctx context.Context, id, userID int64) error {
	defer metrics.ObserveDB("notifications.delete")()

	affected, err := base.ExecAffected(ctx, r.db,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("notification %d: %w", id, booking.ErrNotFound)
	}

	return nil
}

// Archive архивирует уведомление пользователя
func (r *NotificationRepository) Archive(ctx context.Context, id, userID int64, at time.Time) error {
	defer metrics.ObserveDB("notifications.archive")()

	query := `
		UPDATE notifications
		SET archived = true, archived_at = $1
		WHERE id = $2 AND user_id = $3 AND archived = false
	`

	affected, err := base.ExecAffected(ctx, r.db, query, at, id, userID)
	if err != nil {
		return fmt.Errorf("archive notification: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("notification %d: %w", id, booking.ErrNotFound)
	}

	return nil
}

// ArchiveDue архивирует уведомления, у которых наступил archive_after
func (r *NotificationRepository) ArchiveDue(ctx context.Context, now time.Time) (int64, error) {
	defer metrics.ObserveDB("notifications.archive_due")()

	query := `
		UPDATE notifications
		SET archived = true, archived_at = $1
		WHERE archived = false AND archive_after IS NOT NULL AND archive_after <= $1
	`

	affected, err := base.ExecAffected(ctx, r.db, query, now)
	if err != nil {
		return 0, fmt.Errorf("archive due notifications: %w", err)
	}

	return affected, nil
}
