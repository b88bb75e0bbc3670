package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stockalert/internal/clock"
	"stockalert/internal/dedup"
	"stockalert/internal/domain"
	"stockalert/internal/evaluate"
	"stockalert/internal/feed"
	"stockalert/internal/metrics"
	"stockalert/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Dispatcher delivers one persisted notification over eligible channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification domain.Notification, product domain.Product, settings domain.Settings) domain.DeliveryResult
}

// RunnerDeps are collaborators of one Runner.
type RunnerDeps struct {
	Inventory       storage.InventorySource
	Notifications   storage.NotificationStore
	Settings        storage.SettingsSource
	Gate            *dedup.Gate
	Dispatcher      Dispatcher
	Feed            feed.Publisher
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	Clock           clock.Clock
	NewID           func() string
	ScanConcurrency int
}

// Runner executes alert cycles: evaluate, gate, persist, dispatch, and mark.
// Params: inventory, stores, cooldown gate, dispatcher, feed, and clock.
// Returns: cycle entrypoints used by scheduler and admin API.
type Runner struct {
	inventory     storage.InventorySource
	notifications storage.NotificationStore
	settings      storage.SettingsSource
	gate          *dedup.Gate
	dispatcher    Dispatcher
	feed          feed.Publisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
	clock         clock.Clock
	newID         func() string
	concurrency   int
}

// NewRunner creates runner; optional deps fall back to defaults.
func NewRunner(deps RunnerDeps) *Runner {
	r := &Runner{
		inventory:     deps.Inventory,
		notifications: deps.Notifications,
		settings:      deps.Settings,
		gate:          deps.Gate,
		dispatcher:    deps.Dispatcher,
		feed:          deps.Feed,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		clock:         deps.Clock,
		newID:         deps.NewID,
		concurrency:   deps.ScanConcurrency,
	}
	if r.feed == nil {
		r.feed = feed.Discard{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.clock == nil {
		r.clock = clock.RealClock{}
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.concurrency <= 0 {
		r.concurrency = len(domain.AllKinds())
	}
	return r
}

// RunAllChecks runs one cycle over every condition kind.
func (r *Runner) RunAllChecks(ctx context.Context) domain.CycleCounts {
	return r.RunCycle(ctx, domain.AllKinds()...)
}

// RunCycle scans kinds concurrently and returns notifications created per kind.
// Params: context and condition kinds (duplicates are ignored).
// Returns: per-kind counts; zero counts when settings cannot be loaded.
func (r *Runner) RunCycle(ctx context.Context, kinds ...domain.ConditionKind) domain.CycleCounts {
	started := time.Now()
	kinds = uniqueKinds(kinds)

	settings, err := r.loadSettings(ctx)
	if err != nil {
		r.logger.Error("alert cycle aborted", "error", err)
		r.metrics.ObserveCycle(false, time.Since(started))
		return domain.CycleCounts{}
	}

	created := make([]int, len(kinds))
	failed := make([]bool, len(kinds))
	var group errgroup.Group
	group.SetLimit(r.concurrency)
	for i, kind := range kinds {
		group.Go(func() error {
			count, err := r.scanKind(ctx, kind, settings)
			created[i] = count
			if err != nil {
				failed[i] = true
				r.logger.Error("condition scan aborted", "kind", kind, "created", count, "error", err)
			}
			return nil
		})
	}
	_ = group.Wait()

	var counts domain.CycleCounts
	ok := true
	for i, kind := range kinds {
		counts.Add(kind, created[i])
		ok = ok && !failed[i]
	}
	r.metrics.ObserveCycle(ok, time.Since(started))
	r.logger.Debug("alert cycle finished", "kinds", kinds, "total", counts.Total(), "elapsed", time.Since(started))
	return counts
}

// loadSettings returns settings snapshot; an absent record disables every channel.
func (r *Runner) loadSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := r.settings.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Settings{}, nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load notification settings: %w", err)
	}
	return settings, nil
}

// scanKind processes candidate products of kind serially.
// Params: context, condition kind, and settings snapshot.
// Returns: created count and error when products or history cannot be read.
func (r *Runner) scanKind(ctx context.Context, kind domain.ConditionKind, settings domain.Settings) (int, error) {
	evaluator, ok := evaluate.For(kind)
	if !ok {
		return 0, fmt.Errorf("no evaluator for kind %q", kind)
	}
	products, err := r.inventory.ProductsFor(ctx, kind)
	if err != nil {
		r.metrics.ScanError(kind, "products")
		return 0, err
	}

	created := 0
	for _, product := range products {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		accepted, err := r.processProduct(ctx, evaluator, product, settings)
		if err != nil {
			return created, err
		}
		if accepted {
			created++
		}
	}
	return created, nil
}

// processProduct runs one product through evaluate, gate, persist, dispatch, and mark.
// Params: evaluator of the scan, product, and settings snapshot.
// Returns: true when a notification was created; error only for history read failures.
// A history read error stops the scan, so the remaining products of that kind wait for the next cycle.
func (r *Runner) processProduct(ctx context.Context, evaluator evaluate.Evaluator, product domain.Product, settings domain.Settings) (bool, error) {
	kind := evaluator.Kind()
	now := r.clock.Now()

	candidate, ok := evaluator.Evaluate(product, now)
	if !ok {
		if kind == domain.KindExpiry && product.ExpiryDate != nil && product.ExpiryDate.Before(now) {
			r.logger.Debug("product already expired", "product_id", product.ID, "expiry_date", product.ExpiryDate.UTC())
		}
		return false, nil
	}
	accepted, err := r.gate.AcceptDefault(ctx, product.ID, kind, now)
	if err != nil {
		r.metrics.ScanError(kind, "history")
		return false, err
	}
	if !accepted {
		r.metrics.CandidateSuppressed(kind)
		return false, nil
	}

	notification := domain.NewNotification(candidate, r.newID(), now)
	if err := r.notifications.Create(ctx, notification); err != nil {
		r.metrics.ScanError(kind, "persist")
		r.logger.Error("notification persist failed", "kind", kind, "product_id", product.ID, "error", err)
		return false, nil
	}

	delivery := r.dispatcher.Dispatch(ctx, notification, product, settings)
	notification.EmailSent = delivery.EmailSent
	notification.PushSent = delivery.PushSent
	if delivery.EmailSent || delivery.PushSent {
		if err := r.notifications.UpdateDelivery(ctx, notification.ID, delivery); err != nil {
			r.logger.Warn("delivery flags update failed", "notification_id", notification.ID, "error", err)
		}
	}

	if err := r.gate.Commit(ctx, product.ID, kind, now); err != nil {
		r.metrics.ScanError(kind, "mark")
		r.logger.Warn("last alert mark failed", "kind", kind, "product_id", product.ID, "error", err)
	}

	r.publish(ctx, feed.NewEvent(notification, product, delivery, now))

	r.metrics.NotificationCreated(kind)
	r.logger.Info("notification created",
		"kind", kind,
		"product_id", product.ID,
		"notification_id", notification.ID,
		"severity", notification.Severity,
		"email_sent", delivery.EmailSent,
		"push_sent", delivery.PushSent,
	)
	return true, nil
}

// publish emits feed event best effort.
func (r *Runner) publish(ctx context.Context, event feed.Event) {
	if _, disabled := r.feed.(feed.Discard); disabled {
		return
	}
	err := r.feed.Publish(ctx, event)
	r.metrics.FeedPublish(err == nil)
	if err != nil {
		r.logger.Warn("alert feed publish failed", "notification_id", event.Notification.ID, "error", err)
	}
}

func uniqueKinds(kinds []domain.ConditionKind) []domain.ConditionKind {
	seen := make(map[domain.ConditionKind]struct{}, len(kinds))
	out := make([]domain.ConditionKind, 0, len(kinds))
	for _, kind := range kinds {
		if _, ok := seen[kind]; ok {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, kind)
	}
	return out
}
