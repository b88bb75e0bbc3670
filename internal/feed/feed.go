package feed

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"stockalert/internal/domain"
)

// Event is one accepted notification published to the alert feed.
// Params: notification snapshot, product name, and delivery outcome.
// Returns: message body consumed by downstream subscribers.
type Event struct {
	ID           string                `json:"id"`
	Notification domain.Notification   `json:"notification"`
	ProductName  string                `json:"product_name,omitempty"`
	Delivery     domain.DeliveryResult `json:"delivery"`
	PublishedAt  time.Time             `json:"published_at"`
}

// NewEvent builds feed event with deterministic ID.
func NewEvent(notification domain.Notification, product domain.Product, delivery domain.DeliveryResult, now time.Time) Event {
	return Event{
		ID:           BuildEventID(notification),
		Notification: notification,
		ProductName:  product.Name,
		Delivery:     delivery,
		PublishedAt:  now.UTC(),
	}
}

// BuildEventID derives stable ID so the stream drops duplicate publishes of one notification.
// Params: persisted notification.
// Returns: SHA1 hex digest.
func BuildEventID(notification domain.Notification) string {
	raw := fmt.Sprintf(
		"%s|%s|%s|%d",
		notification.ID,
		notification.Kind,
		notification.ProductID,
		notification.CreatedAt.UnixNano(),
	)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Publisher emits feed events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Discard is a Publisher that drops every event; used when the feed is disabled.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

func (Discard) Close() error { return nil }
