package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-scheduling/internal/appointment"
	"github.com/hackgods/clinic-slot-scheduling/internal/assistant"
	"github.com/hackgods/clinic-slot-scheduling/internal/calendar"
	"github.com/hackgods/clinic-slot-scheduling/internal/notify"
	"github.com/hackgods/clinic-slot-scheduling/internal/observability/metrics"
)

type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookingRequest) (*appointment.Confirmation, error)
	Cancel(ctx context.Context, req appointment.CancelRequest) (*appointment.Cancellation, error)
	RecentEvents(ctx context.Context, limit int) ([]appointment.EventLog, error)
}

type ChatService interface {
	Reply(ctx context.Context, sessionID, text string) (*assistant.Reply, error)
}

type RouterConfig struct {
	Availability assistant.Availability
	Service      AppointmentService
	Assistant    ChatService
	Calendar     calendar.Gateway
	Sender       notify.Sender
	Health       *HealthHandler
	Metrics      *metrics.SchedulingMetrics
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer       prometheus.Gatherer
	AdminJWTSecret string
	Location       *time.Location
	Logger         zerolog.Logger
	Now            func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sender == nil {
		cfg.Sender = notify.NopSender{Logger: cfg.Logger}
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthHandler(nil, nil, "", "")
	}
	q := queryParser{loc: cfg.Location, now: cfg.Now}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))

	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/availability", func(r chi.Router) {
		r.Get("/", rangeAvailabilityHandler(cfg.Availability, q))
		r.Get("/nearest", nearestAvailabilityHandler(cfg.Availability, q))
		r.Get("/day", dayAvailabilityHandler(cfg.Availability, q))
	})

	r.Post("/appointments", createAppointmentHandler(cfg.Service, cfg.Sender, cfg.Logger))
	r.Post("/appointments/cancel", cancelAppointmentHandler(cfg.Service))

	if cfg.Assistant != nil {
		r.Post("/chat", chatHandler(cfg.Assistant))
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminJWT(cfg.AdminJWTSecret))
		r.Get("/calendar/events", calendarEventsHandler(cfg.Calendar, q))
		r.Get("/audit", auditHandler(cfg.Service))
	})

	return r
}
