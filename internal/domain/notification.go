package domain

import "time"

// Notification is the persisted record of one accepted alert candidate.
// Params: identity, condition facts, lifecycle flags, and delivery outcome.
// Returns: row shown in notification listings and used as cooldown history.
type Notification struct {
	ID        string         `json:"id"`
	Kind      ConditionKind  `json:"type"`
	ProductID string         `json:"product_id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"priority"`
	Read      bool           `json:"is_read"`
	Dismissed bool           `json:"is_dismissed"`
	EmailSent bool           `json:"email_sent"`
	PushSent  bool           `json:"push_sent"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewNotification builds an unread notification from candidate.
// Params: accepted candidate, generated ID, and creation time.
// Returns: notification with delivery flags unset.
func NewNotification(candidate AlertCandidate, id string, now time.Time) Notification {
	return Notification{
		ID:        id,
		Kind:      candidate.Kind,
		ProductID: candidate.ProductID,
		Title:     candidate.Title,
		Message:   candidate.Message,
		Severity:  candidate.Severity,
		Metadata:  candidate.Metadata,
		CreatedAt: now.UTC(),
	}
}

// DeliveryResult reports per-channel outcome of one dispatch.
type DeliveryResult struct {
	EmailSent bool `json:"email_sent"`
	PushSent  bool `json:"push_sent"`
}

// NotificationFilter narrows notification listings.
// Params: optional read state, kind, severity, dismissed inclusion, and limit.
// Returns: query description for notification stores.
type NotificationFilter struct {
	Read             *bool
	Kind             ConditionKind
	Severity         Severity
	IncludeDismissed bool
	Limit            int
}

// DefaultListLimit caps listings when filter carries no explicit limit.
const DefaultListLimit = 100

// EffectiveLimit returns bounded listing size.
func (f NotificationFilter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return DefaultListLimit
	}
	return f.Limit
}

// Matches reports whether notification passes filter predicates except limit.
// Params: candidate notification.
// Returns: true when notification should be listed.
func (f NotificationFilter) Matches(n Notification) bool {
	if f.Read != nil && n.Read != *f.Read {
		return false
	}
	if f.Kind != "" && n.Kind != f.Kind {
		return false
	}
	if f.Severity != "" && n.Severity != f.Severity {
		return false
	}
	if !f.IncludeDismissed && n.Dismissed {
		return false
	}
	return true
}
