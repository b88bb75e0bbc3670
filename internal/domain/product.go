package domain

import "time"

// DefaultExpiryAlertDays is the lead time used when a product carries no explicit window.
const DefaultExpiryAlertDays = 7

// Product is the inventory snapshot consumed by condition evaluators.
// Params: stock level, thresholds, perishability, reorder policy, and per-product channel flags.
// Returns: read-only view of one catalogue item at scan time.
type Product struct {
	ID                        string     `json:"id"`
	Name                      string     `json:"name"`
	SKU                       string     `json:"sku,omitempty"`
	Category                  string     `json:"category,omitempty"`
	Quantity                  int        `json:"quantity"`
	LowStockThreshold         int        `json:"low_stock_threshold"`
	IsPerishable              bool       `json:"is_perishable"`
	ExpiryDate                *time.Time `json:"expiry_date,omitempty"`
	ExpiryAlertDays           int        `json:"expiry_alert_days"`
	AutoReorderEnabled        bool       `json:"auto_reorder_enabled"`
	ReorderPoint              *int       `json:"reorder_point,omitempty"`
	ReorderQuantity           *int       `json:"reorder_quantity,omitempty"`
	EmailNotificationsEnabled bool       `json:"email_notifications_enabled"`
	PushNotificationsEnabled  bool       `json:"push_notifications_enabled"`
	LastStockAlertAt          *time.Time `json:"last_stock_alert_at,omitempty"`
	LastExpiryAlertAt         *time.Time `json:"last_expiry_alert_at,omitempty"`
}

// EffectiveExpiryAlertDays returns the configured expiry window or the default one.
// Params: none.
// Returns: positive number of days.
func (p Product) EffectiveExpiryAlertDays() int {
	if p.ExpiryAlertDays <= 0 {
		return DefaultExpiryAlertDays
	}
	return p.ExpiryAlertDays
}

// ChannelEnabled reports the per-product opt-in flag for one delivery channel.
// Params: channel name (email or push).
// Returns: true when product allows delivery through channel.
func (p Product) ChannelEnabled(channel Channel) bool {
	switch channel {
	case ChannelEmail:
		return p.EmailNotificationsEnabled
	case ChannelPush:
		return p.PushNotificationsEnabled
	default:
		return false
	}
}
