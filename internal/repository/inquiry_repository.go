package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/metrics"
	"github.com/Freeeeeet/passmarket/internal/model"
	"github.com/Freeeeeet/passmarket/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const inquiryColumns = `i.id, i.pass_id, i.sender_user_id, i.receiver_user_id, i.requested_dates, i.message, i.contact_info, i.status, i.read, i.created_at, i.updated_at, i.cancelled_at`

type InquiryRepository struct {
	db base.Querier
}

func NewInquiryRepository(db base.Querier) *InquiryRepository {
	return &InquiryRepository{db: db}
}

// Create создаёт новую заявку
func (r *InquiryRepository) Create(ctx context.Context, inquiry *model.Inquiry) error {
	defer metrics.ObserveDB("inquiries.create")()

	query := `
		INSERT INTO inquiries (pass_id, sender_user_id, receiver_user_id, requested_dates, message, contact_info, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, read, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		inquiry.PassID,
		inquiry.SenderUserID,
		inquiry.ReceiverUserID,
		inquiry.RequestedDates,
		inquiry.Message,
		inquiry.ContactInfo,
		inquiry.Status,
	).Scan(&inquiry.ID, &inquiry.Read, &inquiry.CreatedAt, &inquiry.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create inquiry: %w", err)
	}

	return nil
}

// GetByID получает заявку по ID
func (r *InquiryRepository) GetByID(ctx context.Context, id int64) (*model.Inquiry, error) {
	defer metrics.ObserveDB("inquiries.get")()

	query := `SELECT ` + inquiryColumns + ` FROM inquiries i WHERE i.id = $1`

	inquiry, err := scanInquiry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get inquiry by id: %w", err)
	}

	return inquiry, nil
}

// GetByIDForUpdate получает заявку и блокирует строку до конца транзакции
func (r *InquiryRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Inquiry, error) {
	defer metrics.ObserveDB("inquiries.get_for_update")()

	query := `SELECT ` + inquiryColumns + ` FROM inquiries i WHERE i.id = $1 FOR UPDATE`

	inquiry, err := scanInquiry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock inquiry: %w", err)
	}

	return inquiry, nil
}

// UpdateStatus обновляет статус заявки
func (r *InquiryRepository) UpdateStatus(ctx context.Context, id int64, status model.InquiryStatus, at time.Time) error {
	defer metrics.ObserveDB("inquiries.update_status")()

	query := `
		UPDATE inquiries
		SET status = $1,
		    updated_at = $2,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN $2 ELSE cancelled_at END
		WHERE id = $3
	`

	affected, err := base.ExecAffected(ctx, r.db, query, status, at, id)
	if err != nil {
		return fmt.Errorf("update inquiry status: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("inquiry %d: %w", id, booking.ErrNotFound)
	}

	return nil
}

// UpdateDetails обновляет сообщение, контакты и даты заявки
func (r *InquiryRepository) UpdateDetails(ctx context.Context, id int64, req booking.EditRequest, at time.Time) error {
	defer metrics.ObserveDB("inquiries.update_details")()

	query := `
		UPDATE inquiries
		SET message = $1, contact_info = $2, requested_dates = $3, updated_at = $4
		WHERE id = $5
	`

	affected, err := base.ExecAffected(ctx, r.db, query, req.Message, req.ContactInfo, req.RequestedDates, at, id)
	if err != nil {
		return fmt.Errorf("update inquiry details: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("inquiry %d: %w", id, booking.ErrNotFound)
	}

	return nil
}

// ListBySender получает заявки отправителя вместе с абонементом
func (r *InquiryRepository) ListBySender(ctx context.Context, senderID int64) ([]*model.Inquiry, error) {
	defer metrics.ObserveDB("inquiries.list_sent")()

	return r.listWithPass(ctx, `i.sender_user_id = $1`, senderID)
}

// ListByReceiver получает заявки на абонементы владельца
func (r *InquiryRepository) ListByReceiver(ctx context.Context, receiverID int64) ([]*model.Inquiry, error) {
	defer metrics.ObserveDB("inquiries.list_received")()

	return r.listWithPass(ctx, `i.receiver_user_id = $1`, receiverID)
}

// ListPendingByReceiver получает заявки, ожидающие решения владельца
func (r *InquiryRepository) ListPendingByReceiver(ctx context.Context, receiverID int64) ([]*model.Inquiry, error) {
	defer metrics.ObserveDB("inquiries.list_pending")()

	return r.listWithPass(ctx, `i.receiver_user_id = $1 AND i.status = 'pending'`, receiverID)
}

// MarkRead отмечает прочитанными заявки отправителя в указанном статусе
func (r *InquiryRepository) MarkRead(ctx context.Context, senderID int64, ids []int64, status model.InquiryStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	defer metrics.ObserveDB("inquiries.mark_read")()

	query := `
		UPDATE inquiries
		SET read = true
		WHERE id = ANY($1) AND sender_user_id = $2 AND status = $3
	`

	affected, err := base.ExecAffected(ctx, r.db, query, ids, senderID, status)
	if err != nil {
		return 0, fmt.Errorf("mark inquiries read: %w", err)
	}

	return affected, nil
}

func (r *InquiryRepository) listWithPass(ctx context.Context, where string, arg int64) ([]*model.Inquiry, error) {
	query := `
		SELECT ` + inquiryColumns + `, p.id, p.user_id, p.title, p.owner, p.price, p.pass_type
		FROM inquiries i
		JOIN passes p ON p.id = i.pass_id
		WHERE ` + where + `
		ORDER BY i.created_at DESC
	`

	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list inquiries: %w", err)
	}
	defer rows.Close()

	var inquiries []*model.Inquiry
	for rows.Next() {
		var (
			inquiry model.Inquiry
			pass    model.Pass
		)
		err := rows.Scan(
			&inquiry.ID,
			&inquiry.PassID,
			&inquiry.SenderUserID,
			&inquiry.ReceiverUserID,
			&inquiry.RequestedDates,
			&inquiry.Message,
			&inquiry.ContactInfo,
			&inquiry.Status,
			&inquiry.Read,
			&inquiry.CreatedAt,
			&inquiry.UpdatedAt,
			&inquiry.CancelledAt,
			&pass.ID,
			&pass.UserID,
			&pass.Title,
			&pass.Owner,
			&pass.Price,
			&pass.PassType,
		)
		if err != nil {
			return nil, fmt.Errorf("scan inquiry: %w", err)
		}
		inquiry.Pass = &pass
		inquiries = append(inquiries, &inquiry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inquiries: %w", err)
	}

	return inquiries, nil
}

func scanInquiry(row pgx.Row) (*model.Inquiry, error) {
	var inquiry model.Inquiry
	err := row.Scan(
		&inquiry.ID,
		&inquiry.PassID,
		&inquiry.SenderUserID,
		&inquiry.ReceiverUserID,
		&inquiry.RequestedDates,
		&inquiry.Message,
		&inquiry.ContactInfo,
		&inquiry.Status,
		&inquiry.Read,
		&inquiry.CreatedAt,
		&inquiry.UpdatedAt,
		&inquiry.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &inquiry, nil
}
