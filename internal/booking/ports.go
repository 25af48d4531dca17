package booking

import (
	"context"
	"time"

	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/model"
)

// Collaborators the state machine's callers persist through. Lookups return
// (nil, nil) when the row does not exist.

type PassStore interface {
	Create(ctx context.Context, pass *model.Pass) error
	GetByID(ctx context.Context, id int64) (*model.Pass, error)
	// GetByIDForUpdate locks the pass row until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Pass, error)
	List(ctx context.Context) ([]*model.Pass, error)
	// UpdateCalendar writes cal only if the stored revision still equals
	// expectedRevision, otherwise it fails with ErrCalendarConflict. It
	// returns the new revision.
	UpdateCalendar(ctx context.Context, passID int64, cal calendar.Calendar, expectedRevision int64) (int64, error)
}

type InquiryStore interface {
	Create(ctx context.Context, inquiry *model.Inquiry) error
	GetByID(ctx context.Context, id int64) (*model.Inquiry, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Inquiry, error)
	UpdateStatus(ctx context.Context, id int64, status model.InquiryStatus, at time.Time) error
	UpdateDetails(ctx context.Context, id int64, req EditRequest, at time.Time) error
	ListBySender(ctx context.Context, senderID int64) ([]*model.Inquiry, error)
	ListByReceiver(ctx context.Context, receiverID int64) ([]*model.Inquiry, error)
	ListPendingByReceiver(ctx context.Context, receiverID int64) ([]*model.Inquiry, error)
	MarkRead(ctx context.Context, senderID int64, ids []int64, status model.InquiryStatus) (int64, error)
}

type EventLog interface {
	Append(ctx context.Context, event *model.InquiryEvent) error
	ListByInquiry(ctx context.Context, inquiryID int64) ([]*model.InquiryEvent, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	ListActive(ctx context.Context, userID int64) ([]*model.Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, id, userID int64) error
	Archive(ctx context.Context, id, userID int64, at time.Time) error
	ArchiveDue(ctx context.Context, now time.Time) (int64, error)
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	LinkTelegram(ctx context.Context, userID, telegramID int64) error
}

// Stores bundles repositories bound to one connection or transaction.
type Stores struct {
	Passes        PassStore
	Inquiries     InquiryStore
	Events        EventLog
	Notifications NotificationStore
	Users         UserStore
}

// Transactor runs fn inside a single database transaction. The Stores
// handed to fn are bound to that transaction; fn returning an error rolls
// everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}

// Notifier delivers a stored notification over an external transport.
type Notifier interface {
	Deliver(ctx context.Context, n *model.Notification) error
}
