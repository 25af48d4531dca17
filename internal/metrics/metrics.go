package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passmarket_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passmarket_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "passmarket_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "passmarket_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	inquiryTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passmarket_inquiry_transitions_total",
		Help: "Inquiry state transitions by action and result.",
	}, []string{"action", "result"})

	calendarReleaseSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "passmarket_calendar_release_skipped_total",
		Help: "Cancellations of approved inquiries that could not release their booked range.",
	})

	notificationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passmarket_notification_deliveries_total",
		Help: "Notification delivery attempts by transport and result.",
	}, []string{"transport", "result"})

	notificationsArchived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "passmarket_notifications_archived_total",
		Help: "Notifications archived by the background scheduler.",
	})
)

// Middleware records request metrics per chi route pattern.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			// the pattern is only known after routing
			route := routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(r.Method, route).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route, statusCode).Observe(time.Since(start).Seconds())
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(r.Method, route, statusCode).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDB starts a latency measurement; call the returned func when the
// operation finishes.
func ObserveDB(operation string) func() {
	start := time.Now()
	return func() {
		dbLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func RecordTransition(action, result string) {
	inquiryTransitions.WithLabelValues(action, result).Inc()
}

func RecordReleaseSkipped() {
	calendarReleaseSkipped.Inc()
}

func RecordDelivery(transport, result string) {
	notificationDeliveries.WithLabelValues(transport, result).Inc()
}

func RecordArchived(n int64) {
	if n > 0 {
		notificationsArchived.Add(float64(n))
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
