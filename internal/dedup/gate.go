package dedup

import (
	"context"
	"fmt"
	"time"

	"stockalert/internal/config"
	"stockalert/internal/domain"
	"stockalert/internal/history"
)

// Policy maps condition kinds to cooldown windows.
type Policy map[domain.ConditionKind]time.Duration

// DefaultPolicy returns 24h cooldowns with 48h for reorder reminders.
func DefaultPolicy() Policy {
	return Policy{
		domain.KindLowStock:   24 * time.Hour,
		domain.KindOutOfStock: 24 * time.Hour,
		domain.KindExpiry:     24 * time.Hour,
		domain.KindReorder:    48 * time.Hour,
	}
}

// PolicyFromConfig builds policy from cooldown settings.
// Params: cooldown config section after defaults.
// Returns: policy with one window per kind.
func PolicyFromConfig(cfg config.CooldownConfig) Policy {
	policy := make(Policy, len(domain.AllKinds()))
	for _, kind := range domain.AllKinds() {
		policy[kind] = cfg.For(kind)
	}
	return policy
}

// For returns cooldown of kind, falling back to the default policy.
func (p Policy) For(kind domain.ConditionKind) time.Duration {
	if window, ok := p[kind]; ok && window > 0 {
		return window
	}
	return DefaultPolicy()[kind]
}

// Gate suppresses repeat alerts for the same (product, kind) inside cooldown.
// Params: history store holding last-alert marks and per-kind policy.
// Returns: accept/commit operations used by alert cycles.
type Gate struct {
	store  history.Store
	policy Policy
}

// NewGate creates cooldown gate.
// Params: history store and cooldown policy (nil means default policy).
// Returns: initialized gate.
func NewGate(store history.Store, policy Policy) *Gate {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Gate{store: store, policy: policy}
}

// Cooldown returns configured window of kind.
func (g *Gate) Cooldown(kind domain.ConditionKind) time.Duration {
	return g.policy.For(kind)
}

// Accept reports whether a candidate may produce a new notification.
// Params: product ID, condition kind, evaluation time, and cooldown window.
// Returns: true when no mark exists or now-mark >= cooldown; error when history cannot be read.
func (g *Gate) Accept(ctx context.Context, productID string, kind domain.ConditionKind, now time.Time, cooldown time.Duration) (bool, error) {
	last, ok, err := g.store.LastAlert(ctx, productID, kind)
	if err != nil {
		return false, fmt.Errorf("read last alert %s/%s: %w", productID, kind, err)
	}
	if !ok {
		return true, nil
	}
	return now.Sub(last) >= cooldown, nil
}

// AcceptDefault runs Accept with the policy window of kind.
func (g *Gate) AcceptDefault(ctx context.Context, productID string, kind domain.ConditionKind, now time.Time) (bool, error) {
	return g.Accept(ctx, productID, kind, now, g.Cooldown(kind))
}

// Commit records accepted alert time; call only after the notification is persisted.
// Params: product ID, condition kind, and alert time.
// Returns: history write error.
func (g *Gate) Commit(ctx context.Context, productID string, kind domain.ConditionKind, at time.Time) error {
	if err := g.store.Mark(ctx, productID, kind, at); err != nil {
		return fmt.Errorf("mark last alert %s/%s: %w", productID, kind, err)
	}
	return nil
}
