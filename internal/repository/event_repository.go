package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/passmarket/internal/metrics"
	"github.com/Freeeeeet/passmarket/internal/model"
	"github.com/Freeeeeet/passmarket/internal/repository/base"
	"github.com/google/uuid"
)

// EventRepository - журнал событий заявок, только добавление
type EventRepository struct {
	db base.Querier
}

func NewEventRepository(db base.Querier) *EventRepository {
	return &EventRepository{db: db}
}

// Append добавляет событие в журнал
func (r *EventRepository) Append(ctx context.Context, event *model.InquiryEvent) error {
	defer metrics.ObserveDB("inquiry_events.append")()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	query := `
		INSERT INTO inquiry_events (id, inquiry_id, event_type, actor_user_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		event.ID,
		event.InquiryID,
		event.EventType,
		event.ActorUserID,
		event.Metadata,
	).Scan(&event.CreatedAt)

	if err != nil {
		return fmt.Errorf("append inquiry event: %w", err)
	}

	return nil
}

// ListByInquiry получает историю заявки, новые события сначала
func (r *EventRepository) ListByInquiry(ctx context.Context, inquiryID int64) ([]*model.InquiryEvent, error) {
	defer metrics.ObserveDB("inquiry_events.list")()

	query := `
		SELECT id, inquiry_id, event_type, actor_user_id, metadata, created_at
		FROM inquiry_events
		WHERE inquiry_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, inquiryID)
	if err != nil {
		return nil, fmt.Errorf("list inquiry events: %w", err)
	}
	defer rows.Close()

	var events []*model.InquiryEvent
	for rows.Next() {
		var event model.InquiryEvent
		err := rows.Scan(
			&event.ID,
			&event.InquiryID,
			&event.EventType,
			&event.ActorUserID,
			&event.Metadata,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan inquiry event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inquiry events: %w", err)
	}

	return events, nil
}
