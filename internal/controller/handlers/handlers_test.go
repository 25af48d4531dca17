package handlers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/controller/state"
	"github.com/Freeeeeet/passmarket/internal/model"
)

const (
	ownerTG  int64 = 1001
	senderTG int64 = 2002
	ownerID  int64 = 10
	senderID int64 = 20
)

type recordingSender struct {
	mu      sync.Mutex
	sent    []*bot.SendMessageParams
	edited  []*bot.EditMessageTextParams
	answers []*bot.AnswerCallbackQueryParams
}

func (r *recordingSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
	return &models.Message{ID: len(r.sent)}, nil
}

func (r *recordingSender) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edited = append(r.edited, p)
	return &models.Message{}, nil
}

func (r *recordingSender) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, p)
	return true, nil
}

func (r *recordingSender) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1].Text
}

func (r *recordingSender) lastAnswer(t *testing.T) *bot.AnswerCallbackQueryParams {
	t.Helper()
	require.NotEmpty(t, r.answers)
	return r.answers[len(r.answers)-1]
}

type fakeUsers struct {
	byTelegram map[int64]*model.User
	linked     map[int64]int64
}

func newFakeUsers() *fakeUsers {
	owner, sender := ownerTG, senderTG
	return &fakeUsers{
		byTelegram: map[int64]*model.User{
			ownerTG:  {ID: ownerID, Name: "Olga", TelegramID: &owner},
			senderTG: {ID: senderID, Name: "Sam", TelegramID: &sender},
		},
		linked: map[int64]int64{},
	}
}

func (f *fakeUsers) RegisterTelegram(_ context.Context, telegramID int64, name string) (*model.User, error) {
	if u, ok := f.byTelegram[telegramID]; ok {
		return u, nil
	}
	u := &model.User{ID: int64(len(f.byTelegram) + 100), Name: name, TelegramID: &telegramID}
	f.byTelegram[telegramID] = u
	return u, nil
}

func (f *fakeUsers) LinkTelegram(_ context.Context, userID, telegramID int64) (*model.User, error) {
	f.linked[telegramID] = userID
	return &model.User{ID: userID, Name: "Linked", TelegramID: &telegramID}, nil
}

func (f *fakeUsers) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	return f.byTelegram[telegramID], nil
}

type fakeInquiries struct {
	items map[int64]*model.Inquiry
	edits []booking.EditRequest
}

func (f *fakeInquiries) lookup(id, actorID int64) (*model.Inquiry, error) {
	inq, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("inquiry %d: %w", id, booking.ErrNotFound)
	}
	if !inq.IsParty(actorID) {
		return nil, booking.ErrUnauthorized
	}
	return inq, nil
}

func (f *fakeInquiries) Get(_ context.Context, id, actorID int64) (*model.Inquiry, error) {
	return f.lookup(id, actorID)
}

func (f *fakeInquiries) Edit(_ context.Context, id, actorID int64, req booking.EditRequest) (*model.Inquiry, error) {
	inq, err := f.lookup(id, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := booking.Edit(inq, actorID, req); err != nil {
		return nil, err
	}
	f.edits = append(f.edits, req)
	inq.RequestedDates = req.RequestedDates
	return inq, nil
}

func (f *fakeInquiries) apply(action booking.Action, id, actorID int64) (*model.Inquiry, *booking.Outcome, error) {
	inq, err := f.lookup(id, actorID)
	if err != nil {
		return nil, nil, err
	}
	out, err := booking.Apply(action, inq, nil, actorID)
	if err != nil {
		return nil, nil, err
	}
	inq.Status = out.To
	return inq, out, nil
}

func (f *fakeInquiries) Approve(_ context.Context, id, actorID int64) (*model.Inquiry, error) {
	inq, _, err := f.apply(booking.ActionApprove, id, actorID)
	return inq, err
}

func (f *fakeInquiries) Reject(_ context.Context, id, actorID int64) (*model.Inquiry, error) {
	inq, _, err := f.apply(booking.ActionReject, id, actorID)
	return inq, err
}

func (f *fakeInquiries) Cancel(_ context.Context, id, actorID int64) (*model.Inquiry, *booking.Outcome, error) {
	return f.apply(booking.ActionCancel, id, actorID)
}

func (f *fakeInquiries) ListSent(_ context.Context, senderID int64) ([]*model.Inquiry, error) {
	var out []*model.Inquiry
	for _, inq := range f.items {
		if inq.SenderUserID == senderID {
			out = append(out, inq)
		}
	}
	return out, nil
}

func (f *fakeInquiries) ListPending(_ context.Context, receiverID int64) ([]*model.Inquiry, error) {
	var out []*model.Inquiry
	for _, inq := range f.items {
		if inq.ReceiverUserID == receiverID && inq.IsPending() {
			out = append(out, inq)
		}
	}
	return out, nil
}

type fakePasses map[int64]*model.Pass

func (f fakePasses) Get(_ context.Context, id int64) (*model.Pass, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("pass %d: %w", id, booking.ErrNotFound)
}

type fixture struct {
	h         *Handlers
	sender    *recordingSender
	inquiries *fakeInquiries
	users     *fakeUsers
	states    *state.Manager
}

func newFixture() *fixture {
	inquiries := &fakeInquiries{items: map[int64]*model.Inquiry{
		1: {
			ID: 1, PassID: 7, SenderUserID: senderID, ReceiverUserID: ownerID,
			RequestedDates: "Dec 1-3, 2025", Message: "hello", ContactInfo: "sam@example.com",
			Status: model.InquiryStatusPending,
			Pass:   &model.Pass{ID: 7, Title: "Magic Key <Inspire>"},
		},
	}}
	passes := fakePasses{7: {
		ID: 7, UserID: ownerID, Title: "Magic Key",
		BookedDates: calendar.Calendar{{Start: "2025-12-10", End: "2025-12-12"}, {Start: "2025-12-20", End: "2025-12-20"}},
	}}

	f := &fixture{
		sender:    &recordingSender{},
		inquiries: inquiries,
		users:     newFakeUsers(),
		states:    state.NewManager(0),
	}
	f.h = NewHandlers(f.users, inquiries, passes, f.states, zap.NewNop())
	return f
}

func message(telegramID int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		ID:   1,
		From: &models.User{ID: telegramID, FirstName: "New", LastName: "Person"},
		Chat: models.Chat{ID: telegramID},
		Text: text,
	}}
}

func press(telegramID int64, data string) *models.Update {
	return &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb",
		From: models.User{ID: telegramID},
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{ID: 77, Chat: models.Chat{ID: telegramID}},
		},
		Data: data,
	}}
}

func TestStartRegistersAndLinks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.h.HandleStart(ctx, f.sender, message(3003, "/start"))
	require.Contains(t, f.users.byTelegram, int64(3003))
	assert.Equal(t, "New Person", f.users.byTelegram[3003].Name)
	assert.Contains(t, f.sender.lastText(t), "Hi, New Person")

	f.h.HandleStart(ctx, f.sender, message(4004, "/start 55"))
	assert.Equal(t, int64(55), f.users.linked[4004])

	f.h.HandleStart(ctx, f.sender, message(4004, "/start nope"))
	assert.Contains(t, f.sender.lastText(t), "Invalid link")
}

func TestRequestsShowsDecisionButtons(t *testing.T) {
	f := newFixture()

	f.h.HandleRequests(context.Background(), f.sender, message(ownerTG, "/requests"))

	require.Len(t, f.sender.sent, 2)
	card := f.sender.sent[1]
	assert.Contains(t, card.Text, "Request #1")
	assert.Contains(t, card.Text, "Magic Key &lt;Inspire&gt;")

	keyboard, ok := card.ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, ApproveInquiry+"1", keyboard.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, RejectInquiry+"1", keyboard.InlineKeyboard[0][1].CallbackData)
}

func TestRequestsForUnknownUser(t *testing.T) {
	f := newFixture()

	f.h.HandleRequests(context.Background(), f.sender, message(9999, "/requests"))
	assert.Contains(t, f.sender.lastText(t), "/start")
}

func TestBookingsShowsSenderButtons(t *testing.T) {
	f := newFixture()

	f.h.HandleBookings(context.Background(), f.sender, message(senderTG, "/bookings"))

	require.Len(t, f.sender.sent, 1)
	keyboard, ok := f.sender.sent[0].ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, EditDates+"1", keyboard.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, CancelInquiry+"1", keyboard.InlineKeyboard[0][1].CallbackData)
}

func TestApproveCallback(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.h.HandleCallbackQuery(ctx, f.sender, press(senderTG, ApproveInquiry+"1"))
	assert.True(t, f.sender.lastAnswer(t).ShowAlert)
	assert.Equal(t, model.InquiryStatusPending, f.inquiries.items[1].Status)

	f.h.HandleCallbackQuery(ctx, f.sender, press(ownerTG, ApproveInquiry+"1"))
	assert.False(t, f.sender.lastAnswer(t).ShowAlert)
	assert.Equal(t, model.InquiryStatusApproved, f.inquiries.items[1].Status)
	require.Len(t, f.sender.edited, 1)
	assert.Contains(t, f.sender.edited[0].Text, "Approved")

	f.h.HandleCallbackQuery(ctx, f.sender, press(ownerTG, RejectInquiry+"1"))
	assert.Equal(t, ErrorText(booking.ErrInvalidTransition), f.sender.lastAnswer(t).Text)
}

func TestCancelApprovedBookingCallback(t *testing.T) {
	f := newFixture()
	f.inquiries.items[1].Status = model.InquiryStatusApproved

	f.h.HandleCallbackQuery(context.Background(), f.sender, press(ownerTG, CancelInquiry+"1"))

	assert.Equal(t, model.InquiryStatusCancelled, f.inquiries.items[1].Status)
	assert.Contains(t, f.sender.lastAnswer(t).Text, "dates are now available")
}

func TestEditDatesDialog(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.h.HandleCallbackQuery(ctx, f.sender, press(senderTG, EditDates+"1"))
	assert.Equal(t, state.StateEditingInquiryDates, f.states.GetState(senderTG))

	f.h.HandleTextMessage(ctx, f.sender, message(senderTG, "sometime soon"))
	assert.Contains(t, f.sender.lastText(t), "Could not read the dates")
	assert.Equal(t, state.StateEditingInquiryDates, f.states.GetState(senderTG))

	f.h.HandleTextMessage(ctx, f.sender, message(senderTG, "Jan 5-7, 2026"))
	assert.Contains(t, f.sender.lastText(t), "2026-01-05 → 2026-01-07")
	assert.Equal(t, state.StateConfirmingInquiryDates, f.states.GetState(senderTG))

	f.h.HandleCallbackQuery(ctx, f.sender, press(senderTG, ConfirmDates+"1"))
	require.Len(t, f.inquiries.edits, 1)
	assert.Equal(t, booking.EditRequest{Message: "hello", ContactInfo: "sam@example.com", RequestedDates: "Jan 5-7, 2026"}, f.inquiries.edits[0])
	assert.Equal(t, "Jan 5-7, 2026", f.inquiries.items[1].RequestedDates)
	assert.Equal(t, state.StateNone, f.states.GetState(senderTG))
}

func TestEditDatesOnlyForSender(t *testing.T) {
	f := newFixture()

	f.h.HandleCallbackQuery(context.Background(), f.sender, press(ownerTG, EditDates+"1"))

	assert.True(t, f.sender.lastAnswer(t).ShowAlert)
	assert.Equal(t, state.StateNone, f.states.GetState(ownerTG))
}

func TestConfirmWithoutDialogIsRejected(t *testing.T) {
	f := newFixture()

	f.h.HandleCallbackQuery(context.Background(), f.sender, press(senderTG, ConfirmDates+"1"))

	assert.Contains(t, f.sender.lastAnswer(t).Text, "expired")
	assert.Empty(t, f.inquiries.edits)
}

func TestAbortEditClearsDialog(t *testing.T) {
	f := newFixture()
	f.states.Start(senderTG, state.StateEditingInquiryDates, 1)

	f.h.HandleCallbackQuery(context.Background(), f.sender, press(senderTG, AbortEdit))

	assert.Equal(t, state.StateNone, f.states.GetState(senderTG))
}

func TestCancelCommand(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.h.HandleCancel(ctx, f.sender, message(senderTG, "/cancel"))
	assert.Contains(t, f.sender.lastText(t), "Nothing to cancel")

	f.states.Start(senderTG, state.StateEditingInquiryDates, 1)
	f.h.HandleCancel(ctx, f.sender, message(senderTG, "/cancel"))
	assert.Equal(t, state.StateNone, f.states.GetState(senderTG))
}

func TestCalendarCommand(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.h.HandleCalendar(ctx, f.sender, message(senderTG, "/calendar 7"))
	text := f.sender.lastText(t)
	assert.Contains(t, text, "2025-12-10 → 2025-12-12")
	assert.Contains(t, text, "• 2025-12-20\n")

	f.h.HandleCalendar(ctx, f.sender, message(senderTG, "/calendar 8"))
	assert.Equal(t, "❌ Pass not found", f.sender.lastText(t))

	f.h.HandleCalendar(ctx, f.sender, message(senderTG, "/calendar"))
	assert.Contains(t, f.sender.lastText(t), "Usage")
}

func TestErrorText(t *testing.T) {
	assert.Contains(t, ErrorText(&calendar.ParseError{Text: "x", Reason: "no pattern"}), "Could not read the dates")
	assert.Equal(t, "❌ cannot request your own pass", ErrorText(fmt.Errorf("cannot request your own pass: %w", booking.ErrInvalidInput)))
	assert.Equal(t, "❌ Something went wrong. Try again later.", ErrorText(booking.Persistence("load", fmt.Errorf("boom"))))
}

func TestParseIDFromCallback(t *testing.T) {
	id, err := ParseIDFromCallback(ApproveInquiry + "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ParseIDFromCallback("approve_inquiry")
	assert.Error(t, err)
	_, err = ParseIDFromCallback("a:b:c")
	assert.Error(t, err)
}
