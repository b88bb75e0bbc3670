package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"stockalert/internal/clock"
	"stockalert/internal/config"
	"stockalert/internal/dedup"
	"stockalert/internal/feed"
	"stockalert/internal/history"
	"stockalert/internal/httpapi"
	"stockalert/internal/logging"
	"stockalert/internal/metrics"
	"stockalert/internal/notify"
	"stockalert/internal/schedule"
	"stockalert/internal/storage"
	"stockalert/internal/trigger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config source and shared runtime components.
// Returns: runnable alerting service.
type Service struct {
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func()
	db        *gorm.DB
	history   history.Store
	feed      feed.Publisher
	runner    *Runner
	scheduler *schedule.Scheduler
	trigger   interface{ Close() error }
	httpSrv   *http.Server
	readyFlag atomic.Bool
	clock     clock.Clock
}

// NewService builds service instance from config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	logger = logger.With("service", cfg.Service.Name)

	service := &Service{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		feed:     feed.Discard{},
		clock:    clk,
	}
	if err := service.build(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	return service, nil
}

// build wires stores, notifiers, runner, scheduler, and HTTP server.
// Params: none.
// Returns: first setup error; partially acquired resources stay on the service for cleanup.
func (s *Service) build() error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	db, err := storage.Open(s.cfg.Database, s.logger.With("component", "storage"))
	if err != nil {
		return err
	}
	s.db = db
	inventory := storage.NewGormInventory(db)
	notifications := storage.NewGormNotifications(db)
	settings := storage.NewGormSettings(db)

	store, err := buildHistory(s.cfg, s.clock, notifications, inventory)
	if err != nil {
		return err
	}
	s.history = store
	gate := dedup.NewGate(store, dedup.PolicyFromConfig(s.cfg.Alerts.Cooldown))

	dispatcher, pushSender, err := s.buildDispatcher(m)
	if err != nil {
		return err
	}

	if s.cfg.Feed.Enabled {
		publisher, err := feed.NewNATSPublisher(s.cfg.NATS, s.cfg.Feed)
		if err != nil {
			return err
		}
		s.feed = publisher
	}

	s.runner = NewRunner(RunnerDeps{
		Inventory:       inventory,
		Notifications:   notifications,
		Settings:        settings,
		Gate:            gate,
		Dispatcher:      dispatcher,
		Feed:            s.feed,
		Metrics:         m,
		Logger:          s.logger.With("component", "runner"),
		Clock:           s.clock,
		ScanConcurrency: s.cfg.Service.ScanConcurrency,
	})

	scheduler, err := schedule.New(s.cfg.Schedule, s.runner.RunCycle, s.logger.With("component", "schedule"))
	if err != nil {
		return err
	}
	s.scheduler = scheduler

	if s.cfg.Trigger.Enabled {
		subscriber, err := trigger.NewNATSSubscriber(s.cfg.NATS, s.cfg.Trigger, s.runner, s.logger.With("component", "trigger"))
		if err != nil {
			return err
		}
		s.trigger = subscriber
	}

	router := httpapi.NewRouter(httpapi.Options{
		APIPrefix:      s.cfg.HTTP.APIPrefix,
		HealthPath:     s.cfg.HTTP.HealthPath,
		ReadyPath:      s.cfg.HTTP.ReadyPath,
		MetricsPath:    s.cfg.HTTP.MetricsPath,
		MaxBodyBytes:   s.cfg.HTTP.MaxBodyBytes,
		Runner:         s.runner,
		Notifications:  notifications,
		Settings:       settings,
		Push:           pushSender,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Ready:          s.ready,
		Logger:         s.logger,
	})
	s.httpSrv = &http.Server{
		Addr:              s.cfg.HTTP.Listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// buildDispatcher creates channel notifiers from notify config.
// Params: metrics handle for delivery outcomes.
// Returns: dispatcher and push sender used by the subscribe endpoint.
func (s *Service) buildDispatcher(m *metrics.Metrics) (*notify.Dispatcher, *notify.PushSender, error) {
	notifyLogger := s.logger.With("component", "notify")

	var email notify.EmailNotifier
	if s.cfg.Notify.Email.Enabled {
		smtpNotifier, err := notify.NewSMTPEmailNotifier(s.cfg.Notify.Email, s.clock.Now)
		if err != nil {
			return nil, nil, err
		}
		email = smtpNotifier
	}

	pushSender := notify.NewPushSender(s.cfg.Notify.Push, notify.NewMemorySubscribers(), notifyLogger)
	var push notify.PushNotifier
	if s.cfg.Notify.Push.Enabled {
		push = pushSender
	}

	return notify.NewDispatcher(email, push, s.cfg.Notify.Push.Subscribers, notifyLogger, m), pushSender, nil
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.HTTP.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if s.cfg.Schedule.Disabled {
		s.logger.Info("alert schedule disabled; cycles run only through the admin API")
	} else {
		s.scheduler.Start(ctx)
	}

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// ready reports readiness once started and while the database answers pings.
func (s *Service) ready(ctx context.Context) error {
	if !s.readyFlag.Load() {
		return errors.New("service not started")
	}
	return storage.Ping(ctx, s.db)
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.Service.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if !s.cfg.Schedule.Disabled {
		s.scheduler.Stop()
	}
	if s.trigger != nil {
		if err := s.trigger.Close(); err != nil {
			s.logger.Error("trigger consumer close failed", "error", err.Error())
			markErr(fmt.Errorf("trigger consumer close: %w", err))
		}
	}
	if err := s.feed.Close(); err != nil {
		s.logger.Error("alert feed close failed", "error", err.Error())
		markErr(fmt.Errorf("alert feed close: %w", err))
	}
	if err := s.history.Close(); err != nil {
		s.logger.Error("history store close failed", "error", err.Error())
		markErr(fmt.Errorf("history store close: %w", err))
	}
	if err := storage.Close(s.db); err != nil {
		s.logger.Error("database close failed", "error", err.Error())
		markErr(fmt.Errorf("database close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.trigger != nil {
		_ = s.trigger.Close()
		s.trigger = nil
	}
	if s.feed != nil {
		_ = s.feed.Close()
		s.feed = nil
	}
	if s.history != nil {
		_ = s.history.Close()
		s.history = nil
	}
	if s.db != nil {
		_ = storage.Close(s.db)
		s.db = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// Migrate applies database schema for the configured DSN and closes the connection.
// Params: config source.
// Returns: config, connection, or migration error.
func Migrate(source config.ConfigSource) error {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg.Database.AutoMigrate = false
	db, err := storage.Open(cfg.Database, logger.With("component", "storage"))
	if err != nil {
		return err
	}
	defer func() { _ = storage.Close(db) }()
	if err := storage.Migrate(db); err != nil {
		return err
	}
	logger.Info("database schema migrated")
	return nil
}

// buildHistory creates last-alert backend from config.
// Params: root config snapshot, clock, and database stores used by the database backend.
// Returns: selected history store.
func buildHistory(cfg config.Config, clk clock.Clock, notifications storage.NotificationStore, marker storage.AlertMarker) (history.Store, error) {
	switch cfg.History.Backend {
	case config.HistoryBackendMemory:
		return history.NewMemoryStore(clk.Now, time.Duration(cfg.History.RetentionSec)*time.Second), nil
	case config.HistoryBackendNATS:
		return history.NewNATSStore(config.DeriveHistoryNATSConfig(cfg))
	default:
		return storage.NewNotificationHistory(notifications, marker), nil
	}
}
