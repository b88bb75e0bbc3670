package notify

import (
	"context"
	"errors"
	"log/slog"

	"stockalert/internal/domain"
	"stockalert/internal/metrics"
)

// Alert is one notification together with the product it describes.
type Alert struct {
	Product      domain.Product
	Notification domain.Notification
}

// EmailNotifier delivers one alert to a recipient list.
// Params: context, recipients, and alert payload.
// Returns: error when delivery failed.
type EmailNotifier interface {
	SendEmail(ctx context.Context, recipients []string, alert Alert) error
}

// PushNotifier delivers one alert to one subscriber.
// Params: context, subscriber ID, and alert payload.
// Returns: error when delivery failed or subscriber has no subscription.
type PushNotifier interface {
	SendPush(ctx context.Context, subscriberID string, alert Alert) error
}

// Dispatcher fans accepted notifications out to email and push.
// Params: optional notifiers, push subscriber IDs, logger, and metrics.
// Returns: best-effort delivery helper used by alert cycles.
type Dispatcher struct {
	email       EmailNotifier
	push        PushNotifier
	subscribers []string
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewDispatcher builds dispatcher; nil notifiers disable their channel.
func NewDispatcher(email EmailNotifier, push PushNotifier, subscribers []string, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	ids := make([]string, 0, len(subscribers))
	for _, id := range subscribers {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return &Dispatcher{
		email:       email,
		push:        push,
		subscribers: ids,
		logger:      logger,
		metrics:     m,
	}
}

// Dispatch attempts every eligible channel once.
// Params: persisted notification, its product, and settings snapshot of the cycle.
// Returns: per-channel outcome; failures are logged and recorded as false.
func (d *Dispatcher) Dispatch(ctx context.Context, notification domain.Notification, product domain.Product, settings domain.Settings) domain.DeliveryResult {
	alert := Alert{Product: product, Notification: notification}
	var result domain.DeliveryResult

	if d.emailEligible(notification.Kind, product, settings) {
		err := d.email.SendEmail(ctx, settings.Email.Addresses, alert)
		result.EmailSent = err == nil
		d.metrics.Delivery(domain.ChannelEmail, result.EmailSent)
		if err != nil {
			d.logger.Warn("email delivery failed",
				"notification_id", notification.ID,
				"product_id", product.ID,
				"kind", notification.Kind,
				"error", err,
			)
		}
	}

	if d.pushEligible(notification.Kind, product, settings) {
		result.PushSent = d.pushAll(ctx, alert)
		d.metrics.Delivery(domain.ChannelPush, result.PushSent)
	}
	return result
}

func (d *Dispatcher) emailEligible(kind domain.ConditionKind, product domain.Product, settings domain.Settings) bool {
	return d.email != nil &&
		product.ChannelEnabled(domain.ChannelEmail) &&
		settings.Email.Allows(kind) &&
		len(settings.Email.Addresses) > 0
}

func (d *Dispatcher) pushEligible(kind domain.ConditionKind, product domain.Product, settings domain.Settings) bool {
	return d.push != nil &&
		product.ChannelEnabled(domain.ChannelPush) &&
		settings.Push.Allows(kind) &&
		len(d.subscribers) > 0
}

// pushAll sends to every configured subscriber; true when at least one succeeded.
func (d *Dispatcher) pushAll(ctx context.Context, alert Alert) bool {
	sent := false
	for _, id := range d.subscribers {
		err := d.push.SendPush(ctx, id, alert)
		if err == nil {
			sent = true
			continue
		}
		level := slog.LevelWarn
		if errors.Is(err, ErrNoSubscription) {
			level = slog.LevelDebug
		}
		d.logger.Log(ctx, level, "push delivery failed",
			"notification_id", alert.Notification.ID,
			"product_id", alert.Product.ID,
			"subscriber", id,
			"permanent", IsPermanent(err),
			"error", err,
		)
	}
	return sent
}
