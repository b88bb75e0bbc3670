package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"stockalert/internal/domain"
	"stockalert/internal/metrics"
	"stockalert/internal/notify"
	"stockalert/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const defaultSubscriberID = "admin"

// CycleRunner executes alert cycles on demand.
type CycleRunner interface {
	RunAllChecks(ctx context.Context) domain.CycleCounts
	RunCycle(ctx context.Context, kinds ...domain.ConditionKind) domain.CycleCounts
}

// PushRegistrar stores push subscriptions and exposes the VAPID public key.
type PushRegistrar interface {
	VAPIDPublicKey() string
	Subscribe(subscriberID string, subscription notify.Subscription) error
}

// Options configures admin router.
// Params: route paths, body limit, collaborators, and readiness probe.
// Returns: router construction input.
type Options struct {
	APIPrefix      string
	HealthPath     string
	ReadyPath      string
	MetricsPath    string
	MaxBodyBytes   int64
	RequestTimeout time.Duration

	Runner         CycleRunner
	Notifications  storage.NotificationStore
	Settings       storage.SettingsStore
	Push           PushRegistrar
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Ready          func(ctx context.Context) error
	Logger         *slog.Logger
}

// NewRouter builds chi router with admin API, probes, and metrics endpoint.
// Params: router options.
// Returns: HTTP handler ready to be served.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	h := &handler{
		runner:        opts.Runner,
		notifications: opts.Notifications,
		settings:      opts.Settings,
		push:          opts.Push,
		ready:         opts.Ready,
		maxBodyBytes:  opts.MaxBodyBytes,
		logger:        opts.Logger.With("component", "httpapi"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observe(opts.Metrics))

	r.Get(opts.HealthPath, h.liveness)
	r.Get(opts.ReadyPath, h.readiness)
	if opts.MetricsHandler != nil {
		r.Handle(opts.MetricsPath, opts.MetricsHandler)
	}

	r.Route(opts.APIPrefix, func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Post("/checks/run", h.runAll)
		r.Post("/checks/{kind}/run", h.runKind)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.listNotifications)
			r.Put("/read-all", h.markAllRead)
			r.Put("/{id}/read", h.markRead)
			r.Put("/{id}/dismiss", h.dismiss)
			r.Delete("/{id}", h.deleteNotification)
		})

		r.Get("/push/vapid-public-key", h.vapidPublicKey)
		r.Post("/push/subscribe", h.subscribe)

		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.putSettings)
	})
	return r
}

// observe records request count and latency labelled by matched route pattern.
func observe(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(route, r.Method, status, time.Since(started))
		})
	}
}
