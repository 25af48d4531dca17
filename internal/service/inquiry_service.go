package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/metrics"
	"github.com/Freeeeeet/passmarket/internal/model"
	"go.uber.org/zap"
)

// InquiryService проводит заявки через state machine и сохраняет каждый
// переход одной транзакцией: статус, календарь, событие, уведомления
type InquiryService struct {
	tx       booking.Transactor
	stores   booking.Stores
	notifier booking.Notifier
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

func NewInquiryService(
	tx booking.Transactor,
	stores booking.Stores,
	notifier booking.Notifier,
	location *time.Location,
	logger *zap.Logger,
) *InquiryService {
	if location == nil {
		location = time.Local
	}
	return &InquiryService{
		tx:       tx,
		stores:   stores,
		notifier: notifier,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// Create создаёт заявку на абонемент и уведомляет владельца
func (s *InquiryService) Create(ctx context.Context, senderID int64, req booking.CreateRequest) (*model.Inquiry, error) {
	var (
		inquiry *model.Inquiry
		pending []*model.Notification
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx booking.Stores) error {
		pass, err := tx.Passes.GetByID(ctx, req.PassID)
		if err != nil {
			return booking.Persistence("get pass", err)
		}

		inquiry, err = booking.NewInquiry(pass, senderID, req)
		if err != nil {
			return err
		}

		if err := tx.Inquiries.Create(ctx, inquiry); err != nil {
			return booking.Persistence("create inquiry", err)
		}
		inquiry.Pass = pass

		event := &model.InquiryEvent{
			InquiryID:   inquiry.ID,
			EventType:   model.InquiryEventCreated,
			ActorUserID: senderID,
			Metadata: map[string]any{
				"passId":         pass.ID,
				"requestedDates": inquiry.RequestedDates,
			},
		}
		if err := tx.Events.Append(ctx, event); err != nil {
			return booking.Persistence("append inquiry event", err)
		}

		sender, err := tx.Users.GetByID(ctx, senderID)
		if err != nil {
			return booking.Persistence("get sender", err)
		}

		n := &model.Notification{
			UserID:    inquiry.ReceiverUserID,
			PassID:    &pass.ID,
			Type:      model.NotificationInquiryReceived,
			Title:     "New Booking Request",
			Message:   fmt.Sprintf("%s requested %q for %s", displayName(sender, "Someone"), pass.Title, inquiry.RequestedDates),
			RelatedID: &inquiry.ID,
			Metadata: map[string]any{
				"inquiryId":      inquiry.ID,
				"requestedDates": inquiry.RequestedDates,
			},
		}
		if err := tx.Notifications.Create(ctx, n); err != nil {
			return booking.Persistence("create notification", err)
		}
		pending = append(pending, n)

		return nil
	})
	if err != nil {
		err = booking.Persistence("create inquiry", err)
		s.logFailure("create", 0, senderID, err)
		return nil, err
	}

	s.logger.Info("Inquiry created",
		zap.Int64("inquiry_id", inquiry.ID),
		zap.Int64("pass_id", inquiry.PassID),
		zap.Int64("sender_id", senderID),
		zap.String("requested_dates", inquiry.RequestedDates),
	)

	s.deliver(ctx, pending)
	return inquiry, nil
}

// Edit меняет сообщение, контакты и даты заявки, пока она ожидает решения
func (s *InquiryService) Edit(ctx context.Context, inquiryID, actorID int64, req booking.EditRequest) (*model.Inquiry, error) {
	var inquiry *model.Inquiry

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx booking.Stores) error {
		var err error
		inquiry, err = tx.Inquiries.GetByIDForUpdate(ctx, inquiryID)
		if err != nil {
			return booking.Persistence("load inquiry", err)
		}

		if _, err := booking.Edit(inquiry, actorID, req); err != nil {
			return err
		}

		now := s.now()
		if err := tx.Inquiries.UpdateDetails(ctx, inquiry.ID, req, now); err != nil {
			return booking.Persistence("update inquiry details", err)
		}

		event := &model.InquiryEvent{
			InquiryID:   inquiry.ID,
			EventType:   model.InquiryEventEdited,
			ActorUserID: actorID,
			Metadata: map[string]any{
				"previous": map[string]any{
					"message":        inquiry.Message,
					"contactInfo":    inquiry.ContactInfo,
					"requestedDates": inquiry.RequestedDates,
				},
			},
		}
		if err := tx.Events.Append(ctx, event); err != nil {
			return booking.Persistence("append inquiry event", err)
		}

		inquiry.Message = req.Message
		inquiry.ContactInfo = req.ContactInfo
		inquiry.RequestedDates = req.RequestedDates
		inquiry.UpdatedAt = now
		return nil
	})
	if err != nil {
		err = booking.Persistence("edit inquiry", err)
		s.logFailure(string(booking.ActionEdit), inquiryID, actorID, err)
		metrics.RecordTransition(string(booking.ActionEdit), resultLabel(err))
		return nil, err
	}

	metrics.RecordTransition(string(booking.ActionEdit), resultLabel(nil))
	s.logger.Info("Inquiry edited",
		zap.Int64("inquiry_id", inquiry.ID),
		zap.Int64("actor_id", actorID),
		zap.String("requested_dates", inquiry.RequestedDates),
	)

	return inquiry, nil
}

// Approve одобряет заявку и бронирует даты в календаре абонемента
func (s *InquiryService) Approve(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, error) {
	inquiry, _, err := s.transition(ctx, booking.ActionApprove, inquiryID, actorID)
	return inquiry, err
}

// Reject отклоняет заявку, календарь не меняется
func (s *InquiryService) Reject(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, error) {
	inquiry, _, err := s.transition(ctx, booking.ActionReject, inquiryID, actorID)
	return inquiry, err
}

// Cancel отменяет заявку; для одобренной освобождает забронированные даты
func (s *InquiryService) Cancel(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, *booking.Outcome, error) {
	return s.transition(ctx, booking.ActionCancel, inquiryID, actorID)
}

func (s *InquiryService) transition(ctx context.Context, action booking.Action, inquiryID, actorID int64) (*model.Inquiry, *booking.Outcome, error) {
	var (
		inquiry *model.Inquiry
		outcome *booking.Outcome
		pending []*model.Notification
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx booking.Stores) error {
		var err error
		inquiry, err = tx.Inquiries.GetByIDForUpdate(ctx, inquiryID)
		if err != nil {
			return booking.Persistence("load inquiry", err)
		}
		if inquiry == nil {
			return fmt.Errorf("inquiry %d: %w", inquiryID, booking.ErrNotFound)
		}

		// блокируем абонемент, чтобы параллельные переходы шли по очереди
		pass, err := tx.Passes.GetByIDForUpdate(ctx, inquiry.PassID)
		if err != nil {
			return booking.Persistence("load pass", err)
		}
		if pass == nil {
			return fmt.Errorf("pass %d: %w", inquiry.PassID, booking.ErrNotFound)
		}
		inquiry.Pass = pass

		outcome, err = booking.Apply(action, inquiry, pass.BookedDates, actorID)
		if err != nil {
			return err
		}

		now := s.now()
		if outcome.CalendarChanged {
			revision, err := tx.Passes.UpdateCalendar(ctx, pass.ID, outcome.Calendar, pass.CalendarRevision)
			if err != nil {
				return booking.Persistence("update pass calendar", err)
			}
			pass.BookedDates = outcome.Calendar
			pass.CalendarRevision = revision
		}

		if err := tx.Inquiries.UpdateStatus(ctx, inquiry.ID, outcome.To, now); err != nil {
			return booking.Persistence("update inquiry status", err)
		}
		inquiry.Status = outcome.To
		inquiry.UpdatedAt = now
		if outcome.To == model.InquiryStatusCancelled {
			inquiry.CancelledAt = &now
		}

		event := &model.InquiryEvent{
			InquiryID:   inquiry.ID,
			EventType:   outcome.Event,
			ActorUserID: actorID,
			Metadata:    eventMetadata(outcome, pass.ID),
		}
		if err := tx.Events.Append(ctx, event); err != nil {
			return booking.Persistence("append inquiry event", err)
		}

		actor, err := tx.Users.GetByID(ctx, actorID)
		if err != nil {
			return booking.Persistence("get actor", err)
		}

		for _, notice := range outcome.Notices {
			n := s.buildNotification(notice, outcome, inquiry, pass, actor)
			if err := tx.Notifications.Create(ctx, n); err != nil {
				return booking.Persistence("create notification", err)
			}
			pending = append(pending, n)
		}

		return nil
	})
	if err != nil {
		err = booking.Persistence(string(action)+" inquiry", err)
		metrics.RecordTransition(string(action), resultLabel(err))
		s.logFailure(string(action), inquiryID, actorID, err)
		return nil, nil, err
	}

	metrics.RecordTransition(string(action), resultLabel(nil))
	s.logOutcome(inquiry, outcome, actorID)
	s.deliver(ctx, pending)

	return inquiry, outcome, nil
}

// Get получает заявку, доступно только участникам
func (s *InquiryService) Get(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, error) {
	inquiry, err := s.stores.Inquiries.GetByID(ctx, inquiryID)
	if err != nil {
		return nil, booking.Persistence("get inquiry", err)
	}
	if inquiry == nil {
		return nil, fmt.Errorf("inquiry %d: %w", inquiryID, booking.ErrNotFound)
	}
	if !inquiry.IsParty(actorID) {
		return nil, fmt.Errorf("user %d is not a party to inquiry %d: %w", actorID, inquiryID, booking.ErrUnauthorized)
	}
	return inquiry, nil
}

// History возвращает журнал событий заявки, новые сначала
func (s *InquiryService) History(ctx context.Context, inquiryID, actorID int64) ([]*model.InquiryEvent, error) {
	if _, err := s.Get(ctx, inquiryID, actorID); err != nil {
		return nil, err
	}

	events, err := s.stores.Events.ListByInquiry(ctx, inquiryID)
	if err != nil {
		return nil, booking.Persistence("list inquiry events", err)
	}
	return events, nil
}

// ListSent получает заявки, отправленные пользователем
func (s *InquiryService) ListSent(ctx context.Context, senderID int64) ([]*model.Inquiry, error) {
	inquiries, err := s.stores.Inquiries.ListBySender(ctx, senderID)
	if err != nil {
		return nil, booking.Persistence("list sent inquiries", err)
	}
	return inquiries, nil
}

// ListReceived получает заявки на абонементы пользователя
func (s *InquiryService) ListReceived(ctx context.Context, receiverID int64) ([]*model.Inquiry, error) {
	inquiries, err := s.stores.Inquiries.ListByReceiver(ctx, receiverID)
	if err != nil {
		return nil, booking.Persistence("list received inquiries", err)
	}
	return inquiries, nil
}

// ListPending получает заявки, ожидающие решения владельца
func (s *InquiryService) ListPending(ctx context.Context, receiverID int64) ([]*model.Inquiry, error) {
	inquiries, err := s.stores.Inquiries.ListPendingByReceiver(ctx, receiverID)
	if err != nil {
		return nil, booking.Persistence("list pending inquiries", err)
	}
	return inquiries, nil
}

// MarkAsRead отмечает прочитанными свои заявки в заданном статусе
func (s *InquiryService) MarkAsRead(ctx context.Context, senderID int64, ids []int64, status model.InquiryStatus) (int64, error) {
	if len(ids) == 0 || !status.Valid() {
		return 0, fmt.Errorf("inquiry ids and a valid status are required: %w", booking.ErrInvalidInput)
	}

	updated, err := s.stores.Inquiries.MarkRead(ctx, senderID, ids, status)
	if err != nil {
		return 0, booking.Persistence("mark inquiries read", err)
	}

	s.logger.Debug("Inquiries marked as read",
		zap.Int64("sender_id", senderID),
		zap.Int64("updated", updated),
	)
	return updated, nil
}

func (s *InquiryService) buildNotification(notice booking.Notice, out *booking.Outcome, inq *model.Inquiry, pass *model.Pass, actor *model.User) *model.Notification {
	n := &model.Notification{
		UserID:    notice.RecipientID,
		PassID:    &pass.ID,
		Type:      notice.Type,
		RelatedID: &inq.ID,
	}

	switch notice.Type {
	case model.NotificationInquiryApproved:
		n.Title = "Request Approved!"
		n.Message = fmt.Sprintf("Your request for %q has been approved.", pass.Title)
		n.Metadata = map[string]any{
			"inquiryId":      inq.ID,
			"status":         out.To,
			"requestedDates": inq.RequestedDates,
		}
		if out.Range != nil {
			archiveAfter := archiveTime(out.Range.End, s.now(), s.location)
			n.ArchiveAfter = &archiveAfter
		}

	case model.NotificationInquiryRejected:
		n.Title = "Request Declined"
		n.Message = fmt.Sprintf("Your request for %q has been declined.", pass.Title)
		n.Metadata = map[string]any{
			"inquiryId":      inq.ID,
			"status":         out.To,
			"requestedDates": inq.RequestedDates,
		}

	case model.NotificationInquiryCancelled:
		wasApproved := out.From == model.InquiryStatusApproved
		what := "request"
		if wasApproved {
			what = "approved booking"
		}
		n.Title = "Booking Cancelled"
		n.Message = fmt.Sprintf("%s cancelled their %s for %q", displayName(actor, "A user"), what, pass.Title)
		if inq.RequestedDates != "" {
			n.Message += fmt.Sprintf(" (%s)", inq.RequestedDates)
		}
		n.Metadata = map[string]any{
			"inquiryId":     inq.ID,
			"cancellerName": displayName(actor, ""),
			"passTitle":     pass.Title,
			"passId":        pass.ID,
			"wasApproved":   wasApproved,
			"releasedDates": releasedRange(out),
		}
	}

	return n
}

func (s *InquiryService) deliver(ctx context.Context, notifications []*model.Notification) {
	if s.notifier == nil {
		return
	}
	for _, n := range notifications {
		if err := s.notifier.Deliver(ctx, n); err != nil {
			s.logger.Warn("Failed to deliver notification",
				zap.Int64("notification_id", n.ID),
				zap.Int64("user_id", n.UserID),
				zap.Error(err),
			)
		}
	}
}

func (s *InquiryService) logOutcome(inq *model.Inquiry, out *booking.Outcome, actorID int64) {
	fields := []zap.Field{
		zap.Int64("inquiry_id", inq.ID),
		zap.Int64("pass_id", inq.PassID),
		zap.Int64("actor_id", actorID),
		zap.String("from", string(out.From)),
		zap.String("to", string(out.To)),
	}
	if out.Range != nil {
		fields = append(fields, zap.Stringer("range", *out.Range))
	}

	s.logger.Info("Inquiry "+string(out.Event), fields...)

	if out.Overlapped {
		s.logger.Warn("Approved range overlaps booked dates, merged anyway", fields...)
	}
	if out.ReleaseSkipped != "" {
		metrics.RecordReleaseSkipped()
		s.logger.Warn("Booked dates not released on cancel",
			append(fields, zap.String("reason", out.ReleaseSkipped))...)
	}
}

func (s *InquiryService) logFailure(action string, inquiryID, actorID int64, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.Int64("inquiry_id", inquiryID),
		zap.Int64("actor_id", actorID),
		zap.Error(err),
	}

	var pe *booking.PersistenceError
	switch {
	case errors.As(err, &pe):
		s.logger.Error("Inquiry operation failed", fields...)
	case errors.Is(err, booking.ErrCalendarConflict):
		s.logger.Warn("Pass calendar changed concurrently", fields...)
	default:
		s.logger.Info("Inquiry operation refused", fields...)
	}
}

func eventMetadata(out *booking.Outcome, passID int64) map[string]any {
	meta := map[string]any{
		"previousStatus": out.From,
		"passId":         passID,
	}

	switch out.Action {
	case booking.ActionApprove:
		if out.Range != nil {
			meta["bookedDates"] = *out.Range
		}
		meta["overlapped"] = out.Overlapped
	case booking.ActionCancel:
		meta["releasedDates"] = releasedRange(out)
		if out.ReleaseSkipped != "" {
			meta["releaseSkipped"] = out.ReleaseSkipped
		}
	}

	return meta
}

// releasedRange - освобождённый диапазон или nil, если календарь не менялся
func releasedRange(out *booking.Outcome) *calendar.DateRange {
	if out.From != model.InquiryStatusApproved || !out.CalendarChanged {
		return nil
	}
	return out.Range
}

// archiveTime - 04:00 следующего дня после окончания брони,
// для некорректной даты - через сутки
func archiveTime(end calendar.Date, now time.Time, loc *time.Location) time.Time {
	day, err := end.AddDays(1).Time()
	if err != nil {
		return now.Add(24 * time.Hour)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 4, 0, 0, 0, loc)
}

func displayName(u *model.User, fallback string) string {
	if u == nil || u.Name == "" {
		return fallback
	}
	return u.Name
}

func resultLabel(err error) string {
	var parseErr *calendar.ParseError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, booking.ErrNotFound):
		return "not_found"
	case errors.Is(err, booking.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, booking.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, booking.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, booking.ErrCalendarConflict):
		return "conflict"
	case errors.As(err, &parseErr):
		return "parse_error"
	}
	return "error"
}
