package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/model"
)

var errInjected = errors.New("injected failure")

// memDB - in-memory хранилище с транзакциями через снимок состояния
type memDB struct {
	txMu sync.Mutex

	nextID        int64
	clock         time.Time
	users         map[int64]model.User
	passes        map[int64]model.Pass
	inquiries     map[int64]model.Inquiry
	events        []model.InquiryEvent
	notifications map[int64]model.Notification

	// failOn ломает операцию с указанным именем
	failOn map[string]error
	// staleRevision заставляет следующий UpdateCalendar проиграть CAS
	staleRevision bool
}

func newMemDB() *memDB {
	return &memDB{
		clock:         time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC),
		users:         map[int64]model.User{},
		passes:        map[int64]model.Pass{},
		inquiries:     map[int64]model.Inquiry{},
		notifications: map[int64]model.Notification{},
		failOn:        map[string]error{},
	}
}

type memSnapshot struct {
	nextID        int64
	users         map[int64]model.User
	passes        map[int64]model.Pass
	inquiries     map[int64]model.Inquiry
	events        []model.InquiryEvent
	notifications map[int64]model.Notification
}

func (db *memDB) snapshot() memSnapshot {
	return memSnapshot{
		nextID:        db.nextID,
		users:         cloneMap(db.users),
		passes:        cloneMap(db.passes),
		inquiries:     cloneMap(db.inquiries),
		events:        append([]model.InquiryEvent(nil), db.events...),
		notifications: cloneMap(db.notifications),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.nextID = s.nextID
	db.users = s.users
	db.passes = s.passes
	db.inquiries = s.inquiries
	db.events = s.events
	db.notifications = s.notifications
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) fail(op string) error {
	if err, ok := db.failOn[op]; ok {
		return err
	}
	return nil
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx booking.Stores) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	snap := db.snapshot()
	if err := fn(ctx, db.Stores()); err != nil {
		db.restore(snap)
		return err
	}
	if err := db.fail("commit"); err != nil {
		db.restore(snap)
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (db *memDB) Stores() booking.Stores {
	return booking.Stores{
		Passes:        memPasses{db},
		Inquiries:     memInquiries{db},
		Events:        memEvents{db},
		Notifications: memNotifications{db},
		Users:         memUsers{db},
	}
}

// seed helpers

func (db *memDB) addUser(name string, telegramID *int64) int64 {
	u := model.User{ID: db.id(), Name: name, TelegramID: telegramID, CreatedAt: db.clock}
	db.users[u.ID] = u
	return u.ID
}

func (db *memDB) addPass(ownerID int64, title string, booked calendar.Calendar) int64 {
	if booked == nil {
		booked = calendar.Calendar{}
	}
	p := model.Pass{ID: db.id(), UserID: ownerID, Title: title, BookedDates: booked, CreatedAt: db.clock}
	db.passes[p.ID] = p
	return p.ID
}

func (db *memDB) addInquiry(passID, senderID int64, dates string, status model.InquiryStatus) int64 {
	pass := db.passes[passID]
	i := model.Inquiry{
		ID:             db.id(),
		PassID:         passID,
		SenderUserID:   senderID,
		ReceiverUserID: pass.UserID,
		RequestedDates: dates,
		Message:        "hello",
		ContactInfo:    "me@example.com",
		Status:         status,
		CreatedAt:      db.clock,
	}
	db.inquiries[i.ID] = i
	return i.ID
}

func (db *memDB) notificationsFor(userID int64) []model.Notification {
	var out []model.Notification
	for _, n := range db.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (db *memDB) eventsFor(inquiryID int64) []model.InquiryEvent {
	var out []model.InquiryEvent
	for _, e := range db.events {
		if e.InquiryID == inquiryID {
			out = append(out, e)
		}
	}
	return out
}

type memPasses struct{ db *memDB }

func (r memPasses) Create(ctx context.Context, pass *model.Pass) error {
	if err := r.db.fail("passes.create"); err != nil {
		return err
	}
	pass.ID = r.db.id()
	pass.CreatedAt = r.db.clock
	pass.UpdatedAt = r.db.clock
	r.db.passes[pass.ID] = *pass
	return nil
}

func (r memPasses) GetByID(ctx context.Context, id int64) (*model.Pass, error) {
	if err := r.db.fail("passes.get"); err != nil {
		return nil, err
	}
	p, ok := r.db.passes[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memPasses) GetByIDForUpdate(ctx context.Context, id int64) (*model.Pass, error) {
	return r.GetByID(ctx, id)
}

func (r memPasses) List(ctx context.Context) ([]*model.Pass, error) {
	if err := r.db.fail("passes.list"); err != nil {
		return nil, err
	}
	var out []*model.Pass
	for _, p := range r.db.passes {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memPasses) UpdateCalendar(ctx context.Context, passID int64, cal calendar.Calendar, expectedRevision int64) (int64, error) {
	if err := r.db.fail("passes.update_calendar"); err != nil {
		return 0, err
	}
	p, ok := r.db.passes[passID]
	if r.db.staleRevision {
		r.db.staleRevision = false
		p.CalendarRevision++
	}
	if !ok || p.CalendarRevision != expectedRevision {
		return 0, fmt.Errorf("pass %d at revision %d: %w", passID, expectedRevision, booking.ErrCalendarConflict)
	}
	p.BookedDates = cal
	p.CalendarRevision++
	r.db.passes[passID] = p
	return p.CalendarRevision, nil
}

type memInquiries struct{ db *memDB }

func (r memInquiries) Create(ctx context.Context, inq *model.Inquiry) error {
	if err := r.db.fail("inquiries.create"); err != nil {
		return err
	}
	inq.ID = r.db.id()
	inq.CreatedAt = r.db.clock
	inq.UpdatedAt = r.db.clock
	stored := *inq
	stored.Pass = nil
	r.db.inquiries[inq.ID] = stored
	return nil
}

func (r memInquiries) GetByID(ctx context.Context, id int64) (*model.Inquiry, error) {
	i, ok := r.db.inquiries[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (r memInquiries) GetByIDForUpdate(ctx context.Context, id int64) (*model.Inquiry, error) {
	return r.GetByID(ctx, id)
}

func (r memInquiries) UpdateStatus(ctx context.Context, id int64, status model.InquiryStatus, at time.Time) error {
	if err := r.db.fail("inquiries.update_status"); err != nil {
		return err
	}
	i, ok := r.db.inquiries[id]
	if !ok {
		return booking.ErrNotFound
	}
	i.Status = status
	i.UpdatedAt = at
	if status == model.InquiryStatusCancelled {
		i.CancelledAt = &at
	}
	r.db.inquiries[id] = i
	return nil
}

func (r memInquiries) UpdateDetails(ctx context.Context, id int64, req booking.EditRequest, at time.Time) error {
	i, ok := r.db.inquiries[id]
	if !ok {
		return booking.ErrNotFound
	}
	i.Message = req.Message
	i.ContactInfo = req.ContactInfo
	i.RequestedDates = req.RequestedDates
	i.UpdatedAt = at
	r.db.inquiries[id] = i
	return nil
}

func (r memInquiries) list(match func(model.Inquiry) bool) []*model.Inquiry {
	var out []*model.Inquiry
	for _, i := range r.db.inquiries {
		if match(i) {
			i := i
			p := r.db.passes[i.PassID]
			i.Pass = &p
			out = append(out, &i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	return out
}

func (r memInquiries) ListBySender(ctx context.Context, senderID int64) ([]*model.Inquiry, error) {
	return r.list(func(i model.Inquiry) bool { return i.SenderUserID == senderID }), nil
}

func (r memInquiries) ListByReceiver(ctx context.Context, receiverID int64) ([]*model.Inquiry, error) {
	return r.list(func(i model.Inquiry) bool { return i.ReceiverUserID == receiverID }), nil
}

func (r memInquiries) ListPendingByReceiver(ctx context.Context, receiverID int64) ([]*model.Inquiry, error) {
	return r.list(func(i model.Inquiry) bool { return i.ReceiverUserID == receiverID && i.IsPending() }), nil
}

func (r memInquiries) MarkRead(ctx context.Context, senderID int64, ids []int64, status model.InquiryStatus) (int64, error) {
	var n int64
	for _, id := range ids {
		i, ok := r.db.inquiries[id]
		if ok && i.SenderUserID == senderID && i.Status == status {
			i.Read = true
			r.db.inquiries[id] = i
			n++
		}
	}
	return n, nil
}

type memEvents struct{ db *memDB }

func (r memEvents) Append(ctx context.Context, e *model.InquiryEvent) error {
	if err := r.db.fail("events.append"); err != nil {
		return err
	}
	e.ID = uuid.New()
	e.CreatedAt = r.db.clock.Add(time.Duration(len(r.db.events)) * time.Second)
	r.db.events = append(r.db.events, *e)
	return nil
}

func (r memEvents) ListByInquiry(ctx context.Context, inquiryID int64) ([]*model.InquiryEvent, error) {
	var out []*model.InquiryEvent
	for i := len(r.db.events) - 1; i >= 0; i-- {
		if e := r.db.events[i]; e.InquiryID == inquiryID {
			out = append(out, &e)
		}
	}
	return out, nil
}

type memNotifications struct{ db *memDB }

func (r memNotifications) Create(ctx context.Context, n *model.Notification) error {
	if err := r.db.fail("notifications.create"); err != nil {
		return err
	}
	n.ID = r.db.id()
	n.CreatedAt = r.db.clock
	r.db.notifications[n.ID] = *n
	return nil
}

func (r memNotifications) ListActive(ctx context.Context, userID int64) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range r.db.notificationsFor(userID) {
		if !n.Archived {
			n := n
			out = append(out, &n)
		}
	}
	return out, nil
}

func (r memNotifications) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	var count int64
	for id, n := range r.db.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			r.db.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (r memNotifications) Delete(ctx context.Context, id, userID int64) error {
	n, ok := r.db.notifications[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("notification %d: %w", id, booking.ErrNotFound)
	}
	delete(r.db.notifications, id)
	return nil
}

func (r memNotifications) Archive(ctx context.Context, id, userID int64, at time.Time) error {
	n, ok := r.db.notifications[id]
	if !ok || n.UserID != userID || n.Archived {
		return fmt.Errorf("notification %d: %w", id, booking.ErrNotFound)
	}
	n.Archived = true
	n.ArchivedAt = &at
	r.db.notifications[id] = n
	return nil
}

func (r memNotifications) ArchiveDue(ctx context.Context, now time.Time) (int64, error) {
	if err := r.db.fail("notifications.archive_due"); err != nil {
		return 0, err
	}
	var count int64
	for id, n := range r.db.notifications {
		if !n.Archived && n.ArchiveAfter != nil && !n.ArchiveAfter.After(now) {
			n.Archived = true
			n.ArchivedAt = &now
			r.db.notifications[id] = n
			count++
		}
	}
	return count, nil
}

type memUsers struct{ db *memDB }

func (r memUsers) Create(ctx context.Context, u *model.User) error {
	u.ID = r.db.id()
	u.CreatedAt = r.db.clock
	r.db.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, ok := r.db.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r memUsers) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	for _, u := range r.db.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r memUsers) LinkTelegram(ctx context.Context, userID, telegramID int64) error {
	u, ok := r.db.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, booking.ErrNotFound)
	}
	u.TelegramID = &telegramID
	r.db.users[userID] = u
	return nil
}

// recordingNotifier запоминает доставленные уведомления
type recordingNotifier struct {
	mu        sync.Mutex
	delivered []model.Notification
	err       error
}

func (n *recordingNotifier) Deliver(ctx context.Context, notification *model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, *notification)
	return n.err
}
