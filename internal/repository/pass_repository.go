package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/metrics"
	"github.com/Freeeeeet/passmarket/internal/model"
	"github.com/Freeeeeet/passmarket/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const passColumns = `id, user_id, title, owner, price, pass_type, available_dates, booked_dates, calendar_revision, created_at, updated_at`

type PassRepository struct {
	db base.Querier
}

func NewPassRepository(db base.Querier) *PassRepository {
	return &PassRepository{db: db}
}

// Create создаёт новый абонемент с пустым календарём
func (r *PassRepository) Create(ctx context.Context, pass *model.Pass) error {
	defer metrics.ObserveDB("passes.create")()

	query := `
		INSERT INTO passes (user_id, title, owner, price, pass_type, available_dates, booked_dates)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, calendar_revision, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		pass.UserID,
		pass.Title,
		pass.Owner,
		pass.Price,
		pass.PassType,
		pass.AvailableDates,
		calendar.Encode(pass.BookedDates),
	).Scan(&pass.ID, &pass.CalendarRevision, &pass.CreatedAt, &pass.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create pass: %w", err)
	}

	if pass.BookedDates == nil {
		pass.BookedDates = calendar.Calendar{}
	}

	return nil
}

// GetByID получает абонемент по ID
func (r *PassRepository) GetByID(ctx context.Context, id int64) (*model.Pass, error) {
	defer metrics.ObserveDB("passes.get")()

	query := `SELECT ` + passColumns + ` FROM passes WHERE id = $1`

	pass, err := scanPass(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pass by id: %w", err)
	}

	return pass, nil
}

// GetByIDForUpdate получает абонемент и блокирует строку до конца транзакции
func (r *PassRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Pass, error) {
	defer metrics.ObserveDB("passes.get_for_update")()

	query := `SELECT ` + passColumns + ` FROM passes WHERE id = $1 FOR UPDATE`

	pass, err := scanPass(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock pass: %w", err)
	}

	return pass, nil
}

// List получает все абонементы, новые сначала
func (r *PassRepository) List(ctx context.Context) ([]*model.Pass, error) {
	defer metrics.ObserveDB("passes.list")()

	query := `SELECT ` + passColumns + ` FROM passes ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	defer rows.Close()

	var passes []*model.Pass
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		passes = append(passes, pass)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}

	return passes, nil
}

// UpdateCalendar записывает календарь, только если ревизия не изменилась
// с момента чтения. Возвращает новую ревизию.
func (r *PassRepository) UpdateCalendar(ctx context.Context, passID int64, cal calendar.Calendar, expectedRevision int64) (int64, error) {
	defer metrics.ObserveDB("passes.update_calendar")()

	query := `
		UPDATE passes
		SET booked_dates = $1, calendar_revision = calendar_revision + 1, updated_at = NOW()
		WHERE id = $2 AND calendar_revision = $3
		RETURNING calendar_revision
	`

	var revision int64
	err := r.db.QueryRow(ctx, query, calendar.Encode(cal), passID, expectedRevision).Scan(&revision)
	if err != nil {
		if base.IsNotFound(err) {
			return 0, fmt.Errorf("pass %d at revision %d: %w", passID, expectedRevision, booking.ErrCalendarConflict)
		}
		return 0, fmt.Errorf("update pass calendar: %w", err)
	}

	return revision, nil
}

func scanPass(row pgx.Row) (*model.Pass, error) {
	var (
		pass   model.Pass
		booked *string
	)
	err := row.Scan(
		&pass.ID,
		&pass.UserID,
		&pass.Title,
		&pass.Owner,
		&pass.Price,
		&pass.PassType,
		&pass.AvailableDates,
		&booked,
		&pass.CalendarRevision,
		&pass.CreatedAt,
		&pass.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// колонка может содержать NULL или мусор, Decode отдаёт пустой календарь
	pass.BookedDates = calendar.DecodePtr(booked)
	return &pass, nil
}
