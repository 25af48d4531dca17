package repository

import (
	"github.com/Freeeeeet/passmarket/internal/booking"
)

var (
	_ booking.PassStore         = (*PassRepository)(nil)
	_ booking.InquiryStore      = (*InquiryRepository)(nil)
	_ booking.EventLog          = (*EventRepository)(nil)
	_ booking.NotificationStore = (*NotificationRepository)(nil)
	_ booking.UserStore         = (*UserRepository)(nil)
	_ booking.Transactor        = (*Store)(nil)
)
