package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/model"
	"go.uber.org/zap"
)

// CreatePassRequest - данные формы добавления абонемента
type CreatePassRequest struct {
	Title          string `json:"title"`
	Owner          string `json:"owner"`
	Price          int    `json:"price"`
	PassType       string `json:"pass_type"`
	AvailableDates string `json:"available_dates"`
}

type PassService struct {
	tx     booking.Transactor
	stores booking.Stores
	logger *zap.Logger
}

func NewPassService(tx booking.Transactor, stores booking.Stores, logger *zap.Logger) *PassService {
	return &PassService{
		tx:     tx,
		stores: stores,
		logger: logger,
	}
}

// Create создаёт абонемент с пустым календарём
func (s *PassService) Create(ctx context.Context, ownerID int64, req CreatePassRequest) (*model.Pass, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", booking.ErrInvalidInput)
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("price must not be negative: %w", booking.ErrInvalidInput)
	}

	pass := &model.Pass{
		UserID:         ownerID,
		Title:          title,
		Owner:          strings.TrimSpace(req.Owner),
		Price:          req.Price,
		PassType:       strings.TrimSpace(req.PassType),
		AvailableDates: strings.TrimSpace(req.AvailableDates),
		BookedDates:    calendar.Calendar{},
	}

	if err := s.stores.Passes.Create(ctx, pass); err != nil {
		return nil, booking.Persistence("create pass", err)
	}

	s.logger.Info("Pass created",
		zap.Int64("pass_id", pass.ID),
		zap.Int64("owner_id", ownerID),
		zap.String("title", pass.Title),
	)

	return pass, nil
}

// Get получает абонемент по ID
func (s *PassService) Get(ctx context.Context, id int64) (*model.Pass, error) {
	pass, err := s.stores.Passes.GetByID(ctx, id)
	if err != nil {
		return nil, booking.Persistence("get pass", err)
	}
	if pass == nil {
		return nil, fmt.Errorf("pass %d: %w", id, booking.ErrNotFound)
	}
	return pass, nil
}

// List получает все абонементы
func (s *PassService) List(ctx context.Context) ([]*model.Pass, error) {
	passes, err := s.stores.Passes.List(ctx)
	if err != nil {
		return nil, booking.Persistence("list passes", err)
	}
	return passes, nil
}

// BookedDates возвращает забронированные диапазоны абонемента
func (s *PassService) BookedDates(ctx context.Context, id int64) (calendar.Calendar, error) {
	pass, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return pass.BookedDates, nil
}

// Search возвращает абонементы, свободные на весь диапазон r
func (s *PassService) Search(ctx context.Context, r calendar.DateRange) ([]*model.Pass, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, booking.ErrInvalidInput)
	}

	passes, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	available := make([]*model.Pass, 0, len(passes))
	for _, pass := range passes {
		if calendar.IsAvailable(pass.BookedDates, r) {
			available = append(available, pass)
		}
	}
	return available, nil
}

// AddBlackout вручную закрывает диапазон в календаре, только владелец
func (s *PassService) AddBlackout(ctx context.Context, passID, actorID int64, r calendar.DateRange) (calendar.Calendar, error) {
	return s.editCalendar(ctx, "add blackout", passID, actorID, r, calendar.Add)
}

// RemoveBlackout снимает ровно такой же диапазон из календаря
func (s *PassService) RemoveBlackout(ctx context.Context, passID, actorID int64, r calendar.DateRange) (calendar.Calendar, error) {
	return s.editCalendar(ctx, "remove blackout", passID, actorID, r, calendar.Remove)
}

func (s *PassService) editCalendar(
	ctx context.Context,
	op string,
	passID, actorID int64,
	r calendar.DateRange,
	apply func(calendar.Calendar, calendar.DateRange) calendar.Calendar,
) (calendar.Calendar, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, booking.ErrInvalidInput)
	}

	var updated calendar.Calendar
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx booking.Stores) error {
		pass, err := tx.Passes.GetByIDForUpdate(ctx, passID)
		if err != nil {
			return booking.Persistence("load pass", err)
		}
		if pass == nil {
			return fmt.Errorf("pass %d: %w", passID, booking.ErrNotFound)
		}
		if !pass.IsOwnedBy(actorID) {
			return fmt.Errorf("only the owner can edit pass %d calendar: %w", passID, booking.ErrUnauthorized)
		}

		updated = apply(pass.BookedDates, r)
		if _, err := tx.Passes.UpdateCalendar(ctx, pass.ID, updated, pass.CalendarRevision); err != nil {
			return booking.Persistence("update pass calendar", err)
		}
		return nil
	})
	if err != nil {
		err = booking.Persistence(op, err)
		s.logger.Warn("Calendar edit failed",
			zap.String("op", op),
			zap.Int64("pass_id", passID),
			zap.Int64("actor_id", actorID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Calendar edited",
		zap.String("op", op),
		zap.Int64("pass_id", passID),
		zap.Stringer("range", r),
		zap.Int("ranges", len(updated)),
	)

	return updated, nil
}
