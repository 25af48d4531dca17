package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store собирает репозитории поверх пула и открывает транзакции
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Stores возвращает репозитории, работающие вне транзакции
func (s *Store) Stores() booking.Stores {
	return bind(s.pool)
}

// WithinTx выполняет fn в одной транзакции. Ошибка fn откатывает всё.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx booking.Stores) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// после Commit откат ничего не делает
	defer tx.Rollback(ctx)

	if err := fn(ctx, bind(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Ping проверяет соединение с БД
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func bind(db base.Querier) booking.Stores {
	return booking.Stores{
		Passes:        NewPassRepository(db),
		Inquiries:     NewInquiryRepository(db),
		Events:        NewEventRepository(db),
		Notifications: NewNotificationRepository(db),
		Users:         NewUserRepository(db),
	}
}
