package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/calendar"
	"github.com/Freeeeeet/passmarket/internal/http/ratelimit"
	"github.com/Freeeeeet/passmarket/internal/metrics"
	"github.com/Freeeeeet/passmarket/internal/model"
	"github.com/Freeeeeet/passmarket/internal/service"
)

type InquiryAPI interface {
	Create(ctx context.Context, senderID int64, req booking.CreateRequest) (*model.Inquiry, error)
	Edit(ctx context.Context, inquiryID, actorID int64, req booking.EditRequest) (*model.Inquiry, error)
	Approve(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, error)
	Reject(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, error)
	Cancel(ctx context.Context, inquiryID, actorID int64) (*model.Inquiry, *booking.Outcome, error)
	History(ctx context.Context, inquiryID, actorID int64) ([]*model.InquiryEvent, error)
	ListSent(ctx context.Context, senderID int64) ([]*model.Inquiry, error)
	ListReceived(ctx context.Context, receiverID int64) ([]*model.Inquiry, error)
	MarkAsRead(ctx context.Context, senderID int64, ids []int64, status model.InquiryStatus) (int64, error)
}

type PassAPI interface {
	Create(ctx context.Context, ownerID int64, req service.CreatePassRequest) (*model.Pass, error)
	List(ctx context.Context) ([]*model.Pass, error)
	Search(ctx context.Context, r calendar.DateRange) ([]*model.Pass, error)
	BookedDates(ctx context.Context, id int64) (calendar.Calendar, error)
	AddBlackout(ctx context.Context, passID, actorID int64, r calendar.DateRange) (calendar.Calendar, error)
	RemoveBlackout(ctx context.Context, passID, actorID int64, r calendar.DateRange) (calendar.Calendar, error)
}

type NotificationAPI interface {
	List(ctx context.Context, userID int64) ([]*model.Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Dismiss(ctx context.Context, id, userID int64) error
	Archive(ctx context.Context, id, userID int64) error
}

type UserAPI interface {
	Create(ctx context.Context, name, email string) (*model.User, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options tune the router.
type Options struct {
	PrometheusEnabled bool
	RateLimitRPS      float64
	RateLimitBurst    int
}

// Deps are the services the API serves.
type Deps struct {
	Inquiries     InquiryAPI
	Passes        PassAPI
	Notifications NotificationAPI
	Users         UserAPI
	Health        HealthChecker
	Logger        *zap.Logger
}

type api struct {
	Deps
	logger *zap.Logger
}

// NewRouter wires the JSON API, health probes and metrics. The returned
// func releases the rate limiter.
func NewRouter(opts Options, deps Deps) (http.Handler, func()) {
	a := &api{Deps: deps, logger: deps.Logger}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}

	limiter := ratelimit.NewIPRateLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst, 5*time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if a.Health != nil {
			if err := a.Health.Ping(ctx); err != nil {
				http.Error(w, "unready", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if opts.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware())

		r.Post("/users", a.createUser)

		r.Group(func(r chi.Router) {
			r.Use(requireActor)

			r.Route("/passes", func(r chi.Router) {
				r.Post("/", a.createPass)
				r.Get("/", a.listPasses)
				r.Get("/search", a.searchPasses)
				r.Get("/{id}/booked-dates", a.bookedDates)
				r.Post("/{id}/blackouts", a.addBlackout)
				r.Delete("/{id}/blackouts", a.removeBlackout)
			})

			r.Route("/inquiries", func(r chi.Router) {
				r.Post("/", a.createInquiry)
				r.Get("/sent", a.listSent)
				r.Get("/received", a.listReceived)
				r.Post("/mark-as-read", a.markAsRead)
				r.Patch("/{id}", a.editInquiry)
				r.Post("/{id}/approve", a.approveInquiry)
				r.Post("/{id}/reject", a.rejectInquiry)
				r.Post("/{id}/cancel", a.cancelInquiry)
				r.Get("/{id}/history", a.inquiryHistory)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", a.listNotifications)
				r.Post("/read-all", a.readAllNotifications)
				r.Post("/{id}/dismiss", a.dismissNotification)
				r.Post("/{id}/archive", a.archiveNotification)
			})
		})
	})

	return r, limiter.Close
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("HTTP request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
