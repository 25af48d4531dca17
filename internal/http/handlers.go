package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/model"
	"github.com/Freeeeeet/passmarket/internal/service"
)

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type createInquiryRequest struct {
	PassID         int64  `json:"pass_id"`
	RequestedDates string `json:"requested_dates"`
	Message        string `json:"message"`
	ContactInfo    string `json:"contact_info"`
}

type editInquiryRequest struct {
	Message        string `json:"message"`
	ContactInfo    string `json:"contact_info"`
	RequestedDates string `json:"requested_dates"`
}

type markAsReadRequest struct {
	InquiryIDs []int64             `json:"inquiry_ids"`
	Status     model.InquiryStatus `json:"status"`
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", chi.URLParam(r, "id"), booking.ErrInvalidInput)
	}
	return id, nil
}

func (a *api) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	user, err := a.Users.Create(r.Context(), req.Name, req.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, user, http.StatusCreated)
}

// passes

func (a *api) createPass(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePassRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	pass, err := a.Passes.Create(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, pass, http.StatusCreated)
}

func (a *api) listPasses(w http.ResponseWriter, r *http.Request) {
	passes, err := a.Passes.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, map[string]any{"passes": nonNil(passes)}, http.StatusOK)
}

func (a *api) searchPasses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	want := calendar.DateRange{Start: calendar.Date(q.Get("start")), End: calendar.Date(q.Get("end"))}

	passes, err := a.Passes.Search(r.Context(), want)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, map[string]any{"passes": nonNil(passes)}, http.StatusOK)
}

func (a *api) bookedDates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	cal, err := a.Passes.BookedDates(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, map[string]any{"pass_id": id, "booked_dates": nonNil(cal)}, http.StatusOK)
}

func (a *api) addBlackout(w http.ResponseWriter, r *http.Request) {
	a.editBlackout(w, r, a.Passes.AddBlackout)
}

func (a *api) removeBlackout(w http.ResponseWriter, r *http.Request) {
	a.editBlackout(w, r, a.Passes.RemoveBlackout)
}

func (a *api) editBlackout(w http.ResponseWriter, r *http.Request, edit func(ctx context.Context, passID, actorID int64, dr calendar.DateRange) (calendar.Calendar, error)) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var dr calendar.DateRange
	if err := decodeJSON(w, r, &dr); err != nil {
		a.fail(w, r, err)
		return
	}

	cal, err := edit(r.Context(), id, actorFrom(r.Context()), dr)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, map[string]any{"pass_id": id, "booked_dates": nonNil(cal)}, http.StatusOK)
}

// inquiries

func (a *api) createInquiry(w http.ResponseWriter, r *http.Request) {
	var req createInquiryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	inq, err := a.Inquiries.Create(r.Context(), actorFrom(r.Context()), booking.CreateRequest{
		PassID:         req.PassID,
		RequestedDates: req.RequestedDates,
		Message:        req.Message,
		ContactInfo:    req.ContactInfo,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, inq, http.StatusCreated)
}

func (a *api) listSent(w http.ResponseWriter, r *http.Request) {
	inquiries, err := a.Inquiries.ListSent(r.Context(), actorFrom(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, map[string]any{"inquiries": nonNil(inquiries)}, http.StatusOK)
}

func (a *api) listReceived(w http.ResponseWriter, r *http.Request) {
	inquiries, err := a.Inquiries.ListReceived(r.Context(), actorFrom(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, map[string]any{"inquiries": nonNil(inquiries)}, http.StatusOK)
}

func (a *api) markAsRead(w http.ResponseWriter, r *http.Request) {
	var req markAsReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	updated, err := a.Inquiries.MarkAsRead(r.Context(), actorFrom(r.Context()), req.InquiryIDs, req.Status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, map[string]any{"success": true, "updated": updated}, http.StatusOK)
}

func (a *api) editInquiry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var req editInquiryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	inq, err := a.Inquiries.Edit(r.Context(), id, actorFrom(r.Context()), booking.EditRequest{
		Message:        req.Message,
		ContactInfo:    req.ContactInfo,
		RequestedDates: req.RequestedDates,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, inq, http.StatusOK)
}

func (a *api) approveInquiry(w http.ResponseWriter, r *http.Request) {
	a.decide(w, r, a.Inquiries.Approve)
}

func (a *api) rejectInquiry(w http.ResponseWriter, r *http.Request) {
	a.decide(w, r, a.Inquiries.Reject)
}

func (a *api) decide(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, error)) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	inq, err := action(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, inq, http.StatusOK)
}

func (a *api) cancelInquiry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	inq, out, err := a.Inquiries.Cancel(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	resp := map[string]any{
		"success": true,
		"message": "Request cancelled.",
		"inquiry": inq,
	}
	if out.From == model.InquiryStatusApproved {
		resp["message"] = "Booking cancelled. The dates are now available again."
		if out.CalendarChanged {
			resp["released_dates"] = out.Range
		} else {
			resp["release_skipped"] = out.ReleaseSkipped
		}
	}
	apiJSON(w, resp, http.StatusOK)
}

func (a *api) inquiryHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	events, err := a.Inquiries.History(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, map[string]any{"events": nonNil(events)}, http.StatusOK)
}

// notifications

func (a *api) listNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := a.Notifications.List(r.Context(), actorFrom(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, map[string]any{"notifications": nonNil(notifications)}, http.StatusOK)
}

func (a *api) readAllNotifications(w http.ResponseWriter, r *http.Request) {
	updated, err := a.Notifications.MarkAllRead(r.Context(), actorFrom(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, map[string]any{"success": true, "updated": updated}, http.StatusOK)
}

func (a *api) dismissNotification(w http.ResponseWriter, r *http.Request) {
	a.notificationAction(w, r, a.Notifications.Dismiss)
}

func (a *api) archiveNotification(w http.ResponseWriter, r *http.Request) {
	a.notificationAction(w, r, a.Notifications.Archive)
}

func (a *api) notificationAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id, userID int64) error) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if err := action(r.Context(), id, actorFrom(r.Context())); err != nil {
		a.fail(w, r, err)
		return
	}
	apiJSON(w, map[string]any{"success": true}, http.StatusOK)
}

// nonNil keeps empty lists encoding as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
