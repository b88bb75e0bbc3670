package evaluate

import (
	"fmt"
	"math"
	"time"

	"stockalert/internal/domain"
)

// Evaluator decides whether one product satisfies a condition kind.
// Params: product snapshot and evaluation instant.
// Returns: candidate and true when the condition holds.
type Evaluator interface {
	Kind() domain.ConditionKind
	// Applicable is the cheap predicate stores use to pre-filter scans.
	Applicable(product domain.Product) bool
	Evaluate(product domain.Product, now time.Time) (domain.AlertCandidate, bool)
}

var registry = map[domain.ConditionKind]Evaluator{
	domain.KindLowStock:   LowStock{},
	domain.KindOutOfStock: OutOfStock{},
	domain.KindExpiry:     ExpiringSoon{},
	domain.KindReorder:    ReorderDue{},
}

// For returns evaluator registered for kind.
// Params: condition kind.
// Returns: evaluator and false for unknown kinds.
func For(kind domain.ConditionKind) (Evaluator, bool) {
	evaluator, ok := registry[kind]
	return evaluator, ok
}

// All returns evaluators in deterministic kind order.
func All() []Evaluator {
	out := make([]Evaluator, 0, len(registry))
	for _, kind := range domain.AllKinds() {
		out = append(out, registry[kind])
	}
	return out
}

// LowStock fires for 0 < quantity < threshold.
type LowStock struct{}

func (LowStock) Kind() domain.ConditionKind { return domain.KindLowStock }

func (LowStock) Applicable(p domain.Product) bool {
	return p.Quantity > 0 && p.Quantity < p.LowStockThreshold
}

func (e LowStock) Evaluate(p domain.Product, _ time.Time) (domain.AlertCandidate, bool) {
	if !e.Applicable(p) {
		return domain.AlertCandidate{}, false
	}
	return domain.AlertCandidate{
		Kind:      domain.KindLowStock,
		ProductID: p.ID,
		Title:     "Low Stock Alert",
		Message:   fmt.Sprintf("%s is running low (%d remaining)", p.Name, p.Quantity),
		Severity:  domain.SeverityHigh,
		Metadata: map[string]any{
			"currentStock": p.Quantity,
			"threshold":    p.LowStockThreshold,
		},
	}, true
}

// OutOfStock fires for quantity == 0.
type OutOfStock struct{}

func (OutOfStock) Kind() domain.ConditionKind { return domain.KindOutOfStock }

func (OutOfStock) Applicable(p domain.Product) bool {
	return p.Quantity == 0
}

func (e OutOfStock) Evaluate(p domain.Product, _ time.Time) (domain.AlertCandidate, bool) {
	if !e.Applicable(p) {
		return domain.AlertCandidate{}, false
	}
	return domain.AlertCandidate{
		Kind:      domain.KindOutOfStock,
		ProductID: p.ID,
		Title:     "Out of Stock Alert",
		Message:   fmt.Sprintf("%s is out of stock!", p.Name),
		Severity:  domain.SeverityCritical,
		Metadata: map[string]any{
			"currentStock": p.Quantity,
		},
	}, true
}

// ExpiringSoon fires for perishable products inside their expiry window.
// Products already past expiry (negative day count) do not fire.
type ExpiringSoon struct{}

func (ExpiringSoon) Kind() domain.ConditionKind { return domain.KindExpiry }

func (ExpiringSoon) Applicable(p domain.Product) bool {
	return p.IsPerishable && p.ExpiryDate != nil
}

func (e ExpiringSoon) Evaluate(p domain.Product, now time.Time) (domain.AlertCandidate, bool) {
	if !e.Applicable(p) {
		return domain.AlertCandidate{}, false
	}
	days := DaysUntil(*p.ExpiryDate, now)
	if days < 0 || days > p.EffectiveExpiryAlertDays() {
		return domain.AlertCandidate{}, false
	}
	return domain.AlertCandidate{
		Kind:      domain.KindExpiry,
		ProductID: p.ID,
		Title:     "Product Expiring Soon",
		Message:   fmt.Sprintf("%s expires in %d days", p.Name, days),
		Severity:  ExpirySeverity(days),
		Metadata: map[string]any{
			"daysUntilExpiry": days,
			"expiryDate":      p.ExpiryDate.UTC().Format(time.RFC3339),
		},
	}, true
}

// DaysUntil counts whole days to instant, rounding partial days up.
// Params: target instant and current instant.
// Returns: ceil((target-now)/24h); negative once target is a full day behind.
func DaysUntil(target, now time.Time) int {
	days := math.Ceil(target.Sub(now).Hours() / 24)
	if days == 0 {
		return 0
	}
	return int(days)
}

// ExpirySeverity bands remaining days into severity.
func ExpirySeverity(days int) domain.Severity {
	switch {
	case days <= 2:
		return domain.SeverityCritical
	case days <= 5:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

// ReorderDue fires for auto-reorder products at or below their reorder point.
type ReorderDue struct{}

func (ReorderDue) Kind() domain.ConditionKind { return domain.KindReorder }

func (ReorderDue) Applicable(p domain.Product) bool {
	return p.AutoReorderEnabled && p.ReorderPoint != nil && p.Quantity <= *p.ReorderPoint
}

func (e ReorderDue) Evaluate(p domain.Product, _ time.Time) (domain.AlertCandidate, bool) {
	if !e.Applicable(p) {
		return domain.AlertCandidate{}, false
	}
	metadata := map[string]any{
		"currentStock": p.Quantity,
		"reorderPoint": *p.ReorderPoint,
	}
	message := fmt.Sprintf("Time to reorder %s", p.Name)
	if p.ReorderQuantity != nil {
		message = fmt.Sprintf("Time to reorder %s (Suggested: %d units)", p.Name, *p.ReorderQuantity)
		metadata["reorderQuantity"] = *p.ReorderQuantity
	}
	return domain.AlertCandidate{
		Kind:      domain.KindReorder,
		ProductID: p.ID,
		Title:     "Reorder Reminder",
		Message:   message,
		Severity:  domain.SeverityMedium,
		Metadata:  metadata,
	}, true
}
