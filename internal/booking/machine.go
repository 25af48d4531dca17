// Package booking is the inquiry state machine. Every function here is pure:
// it takes the current inquiry and pass calendar and returns what the
// transition should write, leaving persistence to the caller.
//
//	pending  --approve(owner)--> approved
//	pending  --reject(owner)---> rejected   (terminal)
//	pending  --cancel(sender)--> cancelled  (terminal)
//	approved --cancel(either)--> cancelled  (releases the booked range)
package booking

import (
	"fmt"
	"strings"

	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/model"
)

// Action names an inquiry transition.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
	ActionEdit    Action = "edit"
)

// Notice asks the caller to notify one user about the transition.
type Notice struct {
	RecipientID int64
	Type        model.NotificationType
}

// Outcome is the result of a legal transition.
type Outcome struct {
	Action Action
	From   model.InquiryStatus
	To     model.InquiryStatus
	Event  model.InquiryEventType

	// Calendar is the pass calendar after the transition. It equals the
	// input calendar when CalendarChanged is false.
	Calendar        calendar.Calendar
	CalendarChanged bool
	// Range is the range reserved on approve or released on cancel.
	Range *calendar.DateRange
	// ReleaseSkipped explains why an approved cancellation left the
	// calendar untouched. Empty when the range was released.
	ReleaseSkipped string
	// Overlapped is set when an approved range intersected dates that were
	// already booked; the ranges were merged anyway.
	Overlapped bool

	Notices []Notice
}

// EditRequest carries the fields a sender may change while pending.
type EditRequest struct {
	Message        string
	ContactInfo    string
	RequestedDates string
}

// CreateRequest is a new inquiry as submitted from the booking form.
type CreateRequest struct {
	PassID         int64
	RequestedDates string
	Message        string
	ContactInfo    string
}

// NewInquiry validates a request against the pass and builds the pending
// inquiry to persist.
func NewInquiry(pass *model.Pass, senderID int64, req CreateRequest) (*model.Inquiry, error) {
	if pass == nil {
		return nil, fmt.Errorf("pass %d: %w", req.PassID, ErrNotFound)
	}
	if pass.IsOwnedBy(senderID) {
		return nil, fmt.Errorf("cannot request your own pass: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(req.RequestedDates) == "" {
		return nil, fmt.Errorf("requested dates are required: %w", ErrInvalidInput)
	}

	return &model.Inquiry{
		PassID:         pass.ID,
		SenderUserID:   senderID,
		ReceiverUserID: pass.UserID,
		RequestedDates: strings.TrimSpace(req.RequestedDates),
		Message:        req.Message,
		ContactInfo:    req.ContactInfo,
		Status:         model.InquiryStatusPending,
	}, nil
}

// Approve reserves the requested dates on the pass calendar. Only the
// receiver may approve, only while pending. Unparseable dates fail the
// approval with a *calendar.ParseError.
func Approve(inq *model.Inquiry, cal calendar.Calendar, actorID int64) (*Outcome, error) {
	if err := checkParty(inq, actorID); err != nil {
		return nil, err
	}
	if !inq.IsPending() {
		return nil, invalidTransition(ActionApprove, inq.Status)
	}
	if actorID != inq.ReceiverUserID {
		return nil, fmt.Errorf("only the pass owner can approve inquiry %d: %w", inq.ID, ErrUnauthorized)
	}

	r, err := calendar.ParseRequestedDates(inq.RequestedDates)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Action:          ActionApprove,
		From:            inq.Status,
		To:              model.InquiryStatusApproved,
		Event:           model.InquiryEventApproved,
		Calendar:        calendar.Add(cal, r),
		CalendarChanged: true,
		Range:           &r,
		Overlapped:      !calendar.IsAvailable(cal, r),
		Notices: []Notice{
			{RecipientID: inq.SenderUserID, Type: model.NotificationInquiryApproved},
		},
	}, nil
}

// Reject declines a pending inquiry. The calendar is not touched.
func Reject(inq *model.Inquiry, cal calendar.Calendar, actorID int64) (*Outcome, error) {
	if err := checkParty(inq, actorID); err != nil {
		return nil, err
	}
	if !inq.IsPending() {
		return nil, invalidTransition(ActionReject, inq.Status)
	}
	if actorID != inq.ReceiverUserID {
		return nil, fmt.Errorf("only the pass owner can reject inquiry %d: %w", inq.ID, ErrUnauthorized)
	}

	return &Outcome{
		Action:   ActionReject,
		From:     inq.Status,
		To:       model.InquiryStatusRejected,
		Event:    model.InquiryEventRejected,
		Calendar: cal,
		Notices: []Notice{
			{RecipientID: inq.SenderUserID, Type: model.NotificationInquiryRejected},
		},
	}, nil
}

// Cancel withdraws a pending request (sender only) or an approved booking
// (either party). Releasing an approved range re-parses the original text
// and removes the exact range; when that is impossible the cancellation
// still goes through and ReleaseSkipped says why.
func Cancel(inq *model.Inquiry, cal calendar.Calendar, actorID int64) (*Outcome, error) {
	if err := checkParty(inq, actorID); err != nil {
		return nil, err
	}

	switch inq.Status {
	case model.InquiryStatusPending:
		if actorID != inq.SenderUserID {
			return nil, fmt.Errorf("only the sender can cancel pending inquiry %d: %w", inq.ID, ErrUnauthorized)
		}
		return &Outcome{
			Action:   ActionCancel,
			From:     inq.Status,
			To:       model.InquiryStatusCancelled,
			Event:    model.InquiryEventCancelled,
			Calendar: cal,
			Notices: []Notice{
				{RecipientID: inq.ReceiverUserID, Type: model.NotificationInquiryCancelled},
			},
		}, nil

	case model.InquiryStatusApproved:
		out := &Outcome{
			Action:   ActionCancel,
			From:     inq.Status,
			To:       model.InquiryStatusCancelled,
			Event:    model.InquiryEventCancelled,
			Calendar: cal,
			Notices: []Notice{
				{RecipientID: inq.Counterpart(actorID), Type: model.NotificationInquiryCancelled},
			},
		}

		r, err := calendar.ParseRequestedDates(inq.RequestedDates)
		switch {
		case err != nil:
			out.ReleaseSkipped = err.Error()
		case !calendar.Has(cal, r):
			out.Range = &r
			out.ReleaseSkipped = fmt.Sprintf("no booked range equal to %s", r)
		default:
			out.Range = &r
			out.Calendar = calendar.Remove(cal, r)
			out.CalendarChanged = true
		}
		return out, nil
	}

	return nil, invalidTransition(ActionCancel, inq.Status)
}

// Edit changes message, contact info and requested dates of a pending
// inquiry. Only the sender may edit.
func Edit(inq *model.Inquiry, actorID int64, req EditRequest) (*Outcome, error) {
	if err := checkParty(inq, actorID); err != nil {
		return nil, err
	}
	if !inq.IsPending() {
		return nil, invalidTransition(ActionEdit, inq.Status)
	}
	if actorID != inq.SenderUserID {
		return nil, fmt.Errorf("only the sender can edit inquiry %d: %w", inq.ID, ErrUnauthorized)
	}
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.ContactInfo) == "" || strings.TrimSpace(req.RequestedDates) == "" {
		return nil, fmt.Errorf("message, contact info and requested dates are required: %w", ErrInvalidInput)
	}

	return &Outcome{
		Action: ActionEdit,
		From:   inq.Status,
		To:     model.InquiryStatusPending,
		Event:  model.InquiryEventEdited,
	}, nil
}

// Apply dispatches a calendar-affecting action by name.
func Apply(action Action, inq *model.Inquiry, cal calendar.Calendar, actorID int64) (*Outcome, error) {
	switch action {
	case ActionApprove:
		return Approve(inq, cal, actorID)
	case ActionReject:
		return Reject(inq, cal, actorID)
	case ActionCancel:
		return Cancel(inq, cal, actorID)
	}
	return nil, fmt.Errorf("unknown action %q: %w", action, ErrInvalidInput)
}

func checkParty(inq *model.Inquiry, actorID int64) error {
	if inq == nil {
		return ErrNotFound
	}
	if !inq.IsParty(actorID) {
		return fmt.Errorf("user %d is not a party to inquiry %d: %w", actorID, inq.ID, ErrUnauthorized)
	}
	return nil
}

func invalidTransition(action Action, from model.InquiryStatus) error {
	return fmt.Errorf("cannot %s an inquiry that is %s: %w", action, from, ErrInvalidTransition)
}
