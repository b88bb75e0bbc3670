package domain

import (
	"fmt"
	"strings"
)

// ConditionKind identifies one inventory condition that can raise a notification.
type ConditionKind string

const (
	// KindLowStock fires when stock is positive but below threshold.
	KindLowStock ConditionKind = "low_stock"
	// KindOutOfStock fires when stock is exactly zero.
	KindOutOfStock ConditionKind = "out_of_stock"
	// KindExpiry fires when a perishable product approaches expiry.
	KindExpiry ConditionKind = "expiry"
	// KindReorder fires when auto-reorder product reaches its reorder point.
	KindReorder ConditionKind = "reorder"
)

var allKinds = []ConditionKind{KindLowStock, KindOutOfStock, KindExpiry, KindReorder}

// AllKinds returns every condition kind in evaluation order.
// Params: none.
// Returns: fresh slice safe for caller mutation.
func AllKinds() []ConditionKind {
	out := make([]ConditionKind, len(allKinds))
	copy(out, allKinds)
	return out
}

// ParseConditionKind normalizes user input into a known condition kind.
// Params: raw kind name; dashes and case are tolerated.
// Returns: condition kind or error for unknown names.
func ParseConditionKind(raw string) (ConditionKind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	for _, kind := range allKinds {
		if string(kind) == normalized {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown condition kind %q", raw)
}

// Valid reports whether kind is one of the supported kinds.
func (k ConditionKind) Valid() bool {
	for _, kind := range allKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Severity is alert priority attached to each notification.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity normalizes severity filter input.
// Params: raw severity name.
// Returns: severity or error for unknown names.
func ParseSeverity(raw string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityCritical:
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("unknown severity %q", raw)
	}
}

// AlertCandidate is evaluator output before cooldown gating and persistence.
// Params: condition kind, product reference, rendered text, severity, and kind-specific facts.
// Returns: proposal for one notification.
type AlertCandidate struct {
	Kind      ConditionKind
	ProductID string
	Title     string
	Message   string
	Severity  Severity
	Metadata  map[string]any
}

// CycleCounts reports how many notifications one cycle created per condition kind.
type CycleCounts struct {
	LowStock   int `json:"low_stock_count"`
	OutOfStock int `json:"out_of_stock_count"`
	Expiry     int `json:"expiry_count"`
	Reorder    int `json:"reorder_count"`
}

// Add increments counter of one kind.
// Params: condition kind and delta.
// Returns: counter updated in place; unknown kinds are ignored.
func (c *CycleCounts) Add(kind ConditionKind, delta int) {
	switch kind {
	case KindLowStock:
		c.LowStock += delta
	case KindOutOfStock:
		c.OutOfStock += delta
	case KindExpiry:
		c.Expiry += delta
	case KindReorder:
		c.Reorder += delta
	}
}

// Get returns counter of one kind.
func (c CycleCounts) Get(kind ConditionKind) int {
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
		return 0
	}
}

// Total sums all counters.
func (c CycleCounts) Total() int {
	return c.LowStock + c.OutOfStock + c.Expiry + c.Reorder
}
