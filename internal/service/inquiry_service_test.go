package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/model"
)

type inquiryFixture struct {
	db       *memDB
	notifier *recordingNotifier
	svc      *InquiryService

	owner    int64
	sender   int64
	outsider int64
	passID   int64
}

func newInquiryFixture(t *testing.T, booked calendar.Calendar) *inquiryFixture {
	t.Helper()

	db := newMemDB()
	f := &inquiryFixture{db: db, notifier: &recordingNotifier{}}
	f.owner = db.addUser("Olivia", nil)
	f.sender = db.addUser("Sam", nil)
	f.outsider = db.addUser("Otto", nil)
	f.passID = db.addPass(f.owner, "Magic Key", booked)

	f.svc = NewInquiryService(db, db.Stores(), f.notifier, time.UTC, zap.NewNop())
	f.svc.now = func() time.Time { return db.clock }
	return f
}

func (f *inquiryFixture) pass() model.Pass {
	return f.db.passes[f.passID]
}

func dr(start, end string) calendar.DateRange {
	return calendar.DateRange{Start: calendar.Date(start), End: calendar.Date(end)}
}

func TestCreateInquiry(t *testing.T) {
	f := newInquiryFixture(t, nil)
	ctx := context.Background()

	inq, err := f.svc.Create(ctx, f.sender, booking.CreateRequest{
		PassID:         f.passID,
		RequestedDates: "Dec 15-17, 2025",
		Message:        "Can I borrow it?",
		ContactInfo:    "sam@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, model.InquiryStatusPending, inq.Status)
	assert.Equal(t, f.owner, inq.ReceiverUserID)

	events := f.db.eventsFor(inq.ID)
	require.Len(t, events, 1)
	assert.Equal(t, model.InquiryEventCreated, events[0].EventType)

	notes := f.db.notificationsFor(f.owner)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationInquiryReceived, notes[0].Type)
	assert.Contains(t, notes[0].Message, "Sam")
	assert.Len(t, f.notifier.delivered, 1)
}

func TestCreateInquiryValidation(t *testing.T) {
	f := newInquiryFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.owner, booking.CreateRequest{PassID: f.passID, RequestedDates: "Dec 15-17, 2025"})
	assert.ErrorIs(t, err, booking.ErrInvalidInput)

	_, err = f.svc.Create(ctx, f.sender, booking.CreateRequest{PassID: f.passID, RequestedDates: "  "})
	assert.ErrorIs(t, err, booking.ErrInvalidInput)

	_, err = f.svc.Create(ctx, f.sender, booking.CreateRequest{PassID: 999, RequestedDates: "Dec 15-17, 2025"})
	assert.ErrorIs(t, err, booking.ErrNotFound)

	assert.Empty(t, f.db.inquiries)
	assert.Empty(t, f.db.notifications)
}

func TestApproveBooksDatesAtomically(t *testing.T) {
	f := newInquiryFixture(t, nil)
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)

	inq, err := f.svc.Approve(context.Background(), id, f.owner)
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusApproved, inq.Status)

	pass := f.pass()
	assert.Equal(t, calendar.Calendar{dr("2025-12-15", "2025-12-17")}, pass.BookedDates)
	assert.Equal(t, int64(1), pass.CalendarRevision)
	assert.Equal(t, model.InquiryStatusApproved, f.db.inquiries[id].Status)

	events := f.db.eventsFor(id)
	require.Len(t, events, 1)
	assert.Equal(t, model.InquiryEventApproved, events[0].EventType)
	assert.Equal(t, f.owner, events[0].ActorUserID)
	assert.Equal(t, model.InquiryStatusPending, events[0].Metadata["previousStatus"])

	notes := f.db.notificationsFor(f.sender)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationInquiryApproved, notes[0].Type)
	assert.Equal(t, "Request Approved!", notes[0].Title)
	require.NotNil(t, notes[0].ArchiveAfter)
	assert.Equal(t, time.Date(2025, 12, 18, 4, 0, 0, 0, time.UTC), *notes[0].ArchiveAfter)

	require.Len(t, f.notifier.delivered, 1)
	assert.Equal(t, f.sender, f.notifier.delivered[0].UserID)
}

func TestApproveMergesAdjacentBooking(t *testing.T) {
	f := newInquiryFixture(t, calendar.Calendar{dr("2025-12-18", "2025-12-20")})
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)

	_, err := f.svc.Approve(context.Background(), id, f.owner)
	require.NoError(t, err)

	assert.Equal(t, calendar.Calendar{dr("2025-12-15", "2025-12-20")}, f.pass().BookedDates)
}

func TestApproveRollsBackWhenAnyWriteFails(t *testing.T) {
	for _, op := range []string{"notifications.create", "events.append", "inquiries.update_status", "commit"} {
		t.Run(op, func(t *testing.T) {
			f := newInquiryFixture(t, nil)
			id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)
			f.db.failOn[op] = errInjected

			_, err := f.svc.Approve(context.Background(), id, f.owner)

			var pe *booking.PersistenceError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.ErrorIs(t, err, errInjected)

			assert.Empty(t, f.pass().BookedDates)
			assert.Equal(t, int64(0), f.pass().CalendarRevision)
			assert.Equal(t, model.InquiryStatusPending, f.db.inquiries[id].Status)
			assert.Empty(t, f.db.eventsFor(id))
			assert.Empty(t, f.db.notifications)
			assert.Empty(t, f.notifier.delivered)
		})
	}
}

func TestApproveLosesCompareAndSwap(t *testing.T) {
	f := newInquiryFixture(t, nil)
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)
	f.db.staleRevision = true

	_, err := f.svc.Approve(context.Background(), id, f.owner)
	assert.ErrorIs(t, err, booking.ErrCalendarConflict)
	assert.Equal(t, model.InquiryStatusPending, f.db.inquiries[id].Status)
	assert.Empty(t, f.db.eventsFor(id))

	// повтор после перечитывания проходит
	_, err = f.svc.Approve(context.Background(), id, f.owner)
	require.NoError(t, err)
}

func TestApproveUnparseableDatesLeavesStateAlone(t *testing.T) {
	f := newInquiryFixture(t, nil)
	id := f.db.addInquiry(f.passID, f.sender, "sometime in spring", model.InquiryStatusPending)

	_, err := f.svc.Approve(context.Background(), id, f.owner)

	var parseErr *calendar.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, model.InquiryStatusPending, f.db.inquiries[id].Status)
	assert.Empty(t, f.pass().BookedDates)
}

func TestTransitionGuards(t *testing.T) {
	f := newInquiryFixture(t, nil)
	ctx := context.Background()
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)

	_, err := f.svc.Approve(ctx, id, f.sender)
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	_, err = f.svc.Reject(ctx, id, f.outsider)
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	_, _, err = f.svc.Cancel(ctx, id, f.owner)
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	_, err = f.svc.Approve(ctx, 999, f.owner)
	assert.ErrorIs(t, err, booking.ErrNotFound)

	assert.Empty(t, f.db.events)
}

func TestRejectIsTerminal(t *testing.T) {
	f := newInquiryFixture(t, nil)
	ctx := context.Background()
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)

	inq, err := f.svc.Reject(ctx, id, f.owner)
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusRejected, inq.Status)
	assert.Empty(t, f.pass().BookedDates)

	notes := f.db.notificationsFor(f.sender)
	require.Len(t, notes, 1)
	assert.Equal(t, "Request Declined", notes[0].Title)
	assert.Nil(t, notes[0].ArchiveAfter)

	_, err = f.svc.Approve(ctx, id, f.owner)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	_, _, err = f.svc.Cancel(ctx, id, f.sender)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
}

func TestCancelApprovedReleasesDates(t *testing.T) {
	other := dr("2025-12-25", "2025-12-26")
	f := newInquiryFixture(t, calendar.Calendar{other})
	ctx := context.Background()
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)

	_, err := f.svc.Approve(ctx, id, f.owner)
	require.NoError(t, err)

	inq, out, err := f.svc.Cancel(ctx, id, f.sender)
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusCancelled, inq.Status)
	assert.NotNil(t, f.db.inquiries[id].CancelledAt)
	assert.Empty(t, out.ReleaseSkipped)

	assert.Equal(t, calendar.Calendar{other}, f.pass().BookedDates)
	assert.Equal(t, int64(2), f.pass().CalendarRevision)

	notes := f.db.notificationsFor(f.owner)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationInquiryCancelled, notes[0].Type)
	assert.Equal(t, `Sam cancelled their approved booking for "Magic Key" (Dec 15-17, 2025)`, notes[0].Message)
	assert.Equal(t, true, notes[0].Metadata["wasApproved"])

	events := f.db.eventsFor(id)
	require.Len(t, events, 2)
	cancelled := events[1]
	assert.Equal(t, model.InquiryEventCancelled, cancelled.EventType)
	assert.Equal(t, model.InquiryStatusApproved, cancelled.Metadata["previousStatus"])
	released := dr("2025-12-15", "2025-12-17")
	assert.Equal(t, &released, cancelled.Metadata["releasedDates"])
}

func TestOwnerCancelsApprovedBookingNotifiesSender(t *testing.T) {
	f := newInquiryFixture(t, nil)
	ctx := context.Background()
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)

	_, err := f.svc.Approve(ctx, id, f.owner)
	require.NoError(t, err)

	_, _, err = f.svc.Cancel(ctx, id, f.owner)
	require.NoError(t, err)

	assert.Empty(t, f.pass().BookedDates)
	cancelled := f.db.notificationsFor(f.sender)
	require.Len(t, cancelled, 2)
	assert.Equal(t, model.NotificationInquiryCancelled, cancelled[1].Type)
}

func TestCancelPendingRequest(t *testing.T) {
	f := newInquiryFixture(t, nil)
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)

	_, out, err := f.svc.Cancel(context.Background(), id, f.sender)
	require.NoError(t, err)
	assert.False(t, out.CalendarChanged)
	assert.Equal(t, int64(0), f.pass().CalendarRevision)

	notes := f.db.notificationsFor(f.owner)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "cancelled their request")
	assert.Nil(t, notes[0].Metadata["releasedDates"])
}

func TestCancelApprovedIsBestEffort(t *testing.T) {
	// соседнюю бронь слили с заявкой, точного диапазона больше нет
	merged := calendar.Calendar{dr("2025-12-15", "2025-12-20")}
	f := newInquiryFixture(t, merged)
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusApproved)

	inq, out, err := f.svc.Cancel(context.Background(), id, f.sender)
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusCancelled, inq.Status)
	assert.NotEmpty(t, out.ReleaseSkipped)

	assert.Equal(t, merged, f.pass().BookedDates)
	assert.Equal(t, int64(0), f.pass().CalendarRevision)

	events := f.db.eventsFor(id)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].Metadata["releaseSkipped"])
}

func TestDeliveryFailureDoesNotFailTransition(t *testing.T) {
	f := newInquiryFixture(t, nil)
	f.notifier.err = errors.New("telegram down")
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)

	_, err := f.svc.Approve(context.Background(), id, f.owner)
	require.NoError(t, err)
	assert.Len(t, f.db.notificationsFor(f.sender), 1)
}

func TestConcurrentApprovalsSerialize(t *testing.T) {
	f := newInquiryFixture(t, nil)
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(context.Background(), id, f.owner)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(1), f.pass().CalendarRevision)
	assert.Len(t, f.db.eventsFor(id), 1)
}

func TestEditInquiry(t *testing.T) {
	f := newInquiryFixture(t, nil)
	ctx := context.Background()
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)
	req := booking.EditRequest{Message: "new", ContactInfo: "555-0100", RequestedDates: "Jan 3-5, 2026"}

	_, err := f.svc.Edit(ctx, id, f.owner, req)
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	inq, err := f.svc.Edit(ctx, id, f.sender, req)
	require.NoError(t, err)
	assert.Equal(t, "Jan 3-5, 2026", inq.RequestedDates)
	assert.Equal(t, "Jan 3-5, 2026", f.db.inquiries[id].RequestedDates)

	events := f.db.eventsFor(id)
	require.Len(t, events, 1)
	assert.Equal(t, model.InquiryEventEdited, events[0].EventType)
	previous := events[0].Metadata["previous"].(map[string]any)
	assert.Equal(t, "Dec 15-17, 2025", previous["requestedDates"])

	_, err = f.svc.Edit(ctx, 999, f.sender, req)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestHistoryIsNewestFirstForPartiesOnly(t *testing.T) {
	f := newInquiryFixture(t, nil)
	ctx := context.Background()
	id := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusPending)

	_, err := f.svc.Approve(ctx, id, f.owner)
	require.NoError(t, err)
	_, _, err = f.svc.Cancel(ctx, id, f.sender)
	require.NoError(t, err)

	events, err := f.svc.History(ctx, id, f.owner)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.InquiryEventCancelled, events[0].EventType)
	assert.Equal(t, model.InquiryEventApproved, events[1].EventType)

	_, err = f.svc.History(ctx, id, f.outsider)
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	_, err = f.svc.History(ctx, 999, f.owner)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestListsAndMarkAsRead(t *testing.T) {
	f := newInquiryFixture(t, nil)
	ctx := context.Background()
	first := f.db.addInquiry(f.passID, f.sender, "Dec 15-17, 2025", model.InquiryStatusApproved)
	second := f.db.addInquiry(f.passID, f.sender, "Dec 20-21, 2025", model.InquiryStatusPending)

	sent, err := f.svc.ListSent(ctx, f.sender)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, "Magic Key", sent[0].Pass.Title)

	received, err := f.svc.ListReceived(ctx, f.owner)
	require.NoError(t, err)
	assert.Len(t, received, 2)

	pending, err := f.svc.ListPending(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].ID)

	updated, err := f.svc.MarkAsRead(ctx, f.sender, []int64{first, second}, model.InquiryStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
	assert.True(t, f.db.inquiries[first].Read)
	assert.False(t, f.db.inquiries[second].Read)

	updated, err = f.svc.MarkAsRead(ctx, f.outsider, []int64{second}, model.InquiryStatusPending)
	require.NoError(t, err)
	assert.Zero(t, updated)

	_, err = f.svc.MarkAsRead(ctx, f.sender, []int64{first}, "archived")
	assert.ErrorIs(t, err, booking.ErrInvalidInput)
}

func TestArchiveTime(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	got := archiveTime("2025-12-31", time.Time{}, la)
	assert.Equal(t, time.Date(2026, 1, 1, 4, 0, 0, 0, la), got)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(24*time.Hour), archiveTime("bogus", now, la))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "conflict", resultLabel(booking.ErrCalendarConflict))
	assert.Equal(t, "parse_error", resultLabel(&calendar.ParseError{Text: "x", Reason: "y"}))
	assert.Equal(t, "error", resultLabel(booking.Persistence("op", errInjected)))
}
