package storage

import (
	"context"
	"errors"
	"time"

	"stockalert/internal/domain"
)

// ErrNotFound indicates absent notification or settings record.
var ErrNotFound = errors.New("not found")

// InventorySource lists products worth evaluating for one condition kind.
// Implementations may over-select; evaluators re-check every product.
type InventorySource interface {
	ProductsFor(ctx context.Context, kind domain.ConditionKind) ([]domain.Product, error)
}

// AlertMarker refreshes per-product bookkeeping columns after an accepted alert.
type AlertMarker interface {
	MarkAlerted(ctx context.Context, productID string, kind domain.ConditionKind, at time.Time) error
}

// NotificationStore persists notifications and their lifecycle flags.
// Params: CRUD and listing operations keyed by notification ID.
// Returns: backend persistence behavior.
type NotificationStore interface {
	Create(ctx context.Context, notification domain.Notification) error
	UpdateDelivery(ctx context.Context, id string, result domain.DeliveryResult) error
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int64, error)
	Dismiss(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, int64, error)
	LatestFor(ctx context.Context, productID string, kind domain.ConditionKind) (time.Time, bool, error)
}

// SettingsSource loads global notification settings.
// Load returns ErrNotFound when no record exists.
type SettingsSource interface {
	Load(ctx context.Context) (domain.Settings, error)
}

// SettingsStore loads and replaces global notification settings.
type SettingsStore interface {
	SettingsSource
	Save(ctx context.Context, settings domain.Settings) error
}

// NotificationHistory derives last-alert marks from persisted notifications.
// Params: notification store for lookups and optional marker for product side columns.
// Returns: history store whose marks survive restarts with the notification table.
type NotificationHistory struct {
	notifications NotificationStore
	marker        AlertMarker
}

// NewNotificationHistory creates notification-backed history.
func NewNotificationHistory(notifications NotificationStore, marker AlertMarker) *NotificationHistory {
	return &NotificationHistory{notifications: notifications, marker: marker}
}

// LastAlert returns creation time of newest notification for pair.
func (h *NotificationHistory) LastAlert(ctx context.Context, productID string, kind domain.ConditionKind) (time.Time, bool, error) {
	return h.notifications.LatestFor(ctx, productID, kind)
}

// Mark refreshes product bookkeeping; the persisted notification already acts as the mark.
func (h *NotificationHistory) Mark(ctx context.Context, productID string, kind domain.ConditionKind, at time.Time) error {
	if h.marker == nil {
		return nil
	}
	return h.marker.MarkAlerted(ctx, productID, kind, at)
}

// Close releases nothing; the underlying stores are owned by the caller.
func (h *NotificationHistory) Close() error {
	return nil
}
