package domain

// Channel names one delivery transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// ChannelSettings holds global and per-condition switches for one channel.
// Params: master switch and one flag per condition kind.
// Returns: eligibility configuration for dispatch.
type ChannelSettings struct {
	Enabled    bool `json:"enabled"`
	LowStock   bool `json:"low_stock"`
	OutOfStock bool `json:"out_of_stock"`
	Expiry     bool `json:"expiry"`
	Reorder    bool `json:"reorder"`
}

// Allows reports whether channel is enabled globally and for kind.
// Params: condition kind of notification.
// Returns: true when both switches are on.
func (c ChannelSettings) Allows(kind ConditionKind) bool {
	if !c.Enabled {
		return false
	}
	switch kind {
	case KindLowStock:
		return c.LowStock
	case KindOutOfStock:
		return c.OutOfStock
	case KindExpiry:
		return c.Expiry
	case KindReorder:
		return c.Reorder
	default:
		return false
	}
}

// AllConditions returns settings with channel and every condition enabled.
func AllConditions() ChannelSettings {
	return ChannelSettings{Enabled: true, LowStock: true, OutOfStock: true, Expiry: true, Reorder: true}
}

// EmailSettings configures email delivery of alerts.
type EmailSettings struct {
	ChannelSettings
	Addresses []string `json:"addresses"`
}

// PushSettings configures push delivery of alerts.
type PushSettings struct {
	ChannelSettings
}

// Settings is the global notification configuration.
// The zero value disables every channel, which is also used when no record exists.
type Settings struct {
	Email EmailSettings `json:"email"`
	Push  PushSettings  `json:"push"`
}
