package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/metrics"
	"github.com/Freeeeeet/passmarket/internal/model"
	"github.com/Freeeeeet/passmarket/internal/repository/base"
)

type UserRepository struct {
	db base.Querier
}

func NewUserRepository(db base.Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт нового пользователя
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	defer metrics.ObserveDB("users.create")()

	query := `
		INSERT INTO users (name, email, telegram_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, user.Name, user.Email, user.TelegramID).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	defer metrics.ObserveDB("users.get_by_telegram")()

	query := `
		SELECT id, name, email, telegram_id, created_at
		FROM users
		WHERE telegram_id = $1
	`

	var user model.User
	err := r.db.QueryRow(ctx, query, telegramID).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.TelegramID,
		&user.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}

	return &user, nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	defer metrics.ObserveDB("users.get")()

	query := `
		SELECT id, name, email, telegram_id, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.TelegramID,
		&user.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return &user, nil
}

// LinkTelegram привязывает Telegram-чат к пользователю маркетплейса
func (r *UserRepository) LinkTelegram(ctx context.Context, userID, telegramID int64) error {
	defer metrics.ObserveDB("users.link_telegram")()

	affected, err := base.ExecAffected(ctx, r.db,
		`UPDATE users SET telegram_id = $1 WHERE id = $2`, telegramID, userID)
	if err != nil {
		return fmt.Errorf("link telegram: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("user %d: %w", userID, booking.ErrNotFound)
	}

	return nil
}
