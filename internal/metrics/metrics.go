package metrics

import (
	"time"

	"stockalert/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds alert engine collectors registered on one registerer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	created        *prometheus.CounterVec
	suppressed     *prometheus.CounterVec
	scanErrors     *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	feedPublishes  *prometheus.CounterVec
	requestCount   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New creates collectors and registers them on reg.
// Params: prometheus registerer (prometheus.NewRegistry in tests).
// Returns: metrics handle or registration error.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_cycles_total",
			Help: "Alert cycles by outcome",
		}, []string{"status"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockalert_cycle_duration_seconds",
			Help:    "Duration of alert cycles",
			Buckets: prometheus.DefBuckets,
		}),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_notifications_created_total",
			Help: "Notifications persisted per condition kind",
		}, []string{"kind"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_candidates_suppressed_total",
			Help: "Candidates dropped by the cooldown gate",
		}, []string{"kind"}),
		scanErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_scan_errors_total",
			Help: "Condition scans aborted or items skipped because of errors",
		}, []string{"kind", "stage"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_deliveries_total",
			Help: "Delivery attempts by channel and outcome",
		}, []string{"channel", "status"}),
		feedPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_feed_publishes_total",
			Help: "Alert feed publish attempts by outcome",
		}, []string{"status"}),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockalert_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	collectors := []prometheus.Collector{
		m.cycles, m.cycleDuration, m.created, m.suppressed, m.scanErrors,
		m.deliveries, m.feedPublishes, m.requestCount, m.requestLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome(ok)).Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
}

// NotificationCreated counts one persisted notification.
func (m *Metrics) NotificationCreated(kind domain.ConditionKind) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(string(kind)).Inc()
}

// CandidateSuppressed counts one candidate rejected by cooldown.
func (m *Metrics) CandidateSuppressed(kind domain.ConditionKind) {
	if m == nil {
		return
	}
	m.suppressed.WithLabelValues(string(kind)).Inc()
}

// ScanError counts one failure at stage (products, history, persist, mark).
func (m *Metrics) ScanError(kind domain.ConditionKind, stage string) {
	if m == nil {
		return
	}
	m.scanErrors.WithLabelValues(string(kind), stage).Inc()
}

// Delivery counts one channel delivery attempt.
func (m *Metrics) Delivery(channel domain.Channel, ok bool) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(string(channel), outcome(ok)).Inc()
}

// FeedPublish counts one feed publish attempt.
func (m *Metrics) FeedPublish(ok bool) {
	if m == nil {
		return
	}
	m.feedPublishes.WithLabelValues(outcome(ok)).Inc()
}

// ObserveRequest records one admin API request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(route, method, statusClass(status)).Inc()
	m.requestLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
