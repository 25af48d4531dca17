package model

import "time"

type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	TelegramID *int64    `json:"telegram_id"` // nil - уведомления в Telegram не доставляются
	CreatedAt  time.Time `json:"created_at"`
}

// HasTelegram checks that the user linked a Telegram chat
func (u *User) HasTelegram() bool {
	return u.TelegramID != nil && *u.TelegramID != 0
}
