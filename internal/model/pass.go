package model

import (
	"time"

	"github.com/Freeeeeet/passmarket/internal/calendar"
)

// Pass is an annual pass listed on the marketplace.
type Pass struct {
	ID             int64             `json:"id"`
	UserID         int64             `json:"user_id"` // владелец
	Title          string            `json:"title"`
	Owner          string            `json:"owner"`    // имя для витрины
	Price          int               `json:"price"`    // в центах
	PassType       string            `json:"pass_type"`
	AvailableDates string            `json:"available_dates"`
	BookedDates    calendar.Calendar `json:"booked_dates"`
	// CalendarRevision растёт на каждую запись BookedDates
	CalendarRevision int64     `json:"calendar_revision"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsOwnedBy checks pass ownership
func (p *Pass) IsOwnedBy(userID int64) bool {
	return p.UserID == userID
}
