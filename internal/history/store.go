package history

import (
	"context"
	"encoding/hex"
	"regexp"
	"time"

	"stockalert/internal/domain"
)

// Store persists the last time an alert was accepted for a (product, kind) pair.
// Params: lookup and update operations keyed by product ID and condition kind.
// Returns: backend persistence behavior.
type Store interface {
	LastAlert(ctx context.Context, productID string, kind domain.ConditionKind) (time.Time, bool, error)
	Mark(ctx context.Context, productID string, kind domain.ConditionKind, at time.Time) error
	Close() error
}

var safeProductID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Key builds normalized history key for one (product, kind) pair.
// Params: product ID and condition kind.
// Returns: key valid for KV backends; unsafe IDs are hex-encoded under a separate prefix.
func Key(productID string, kind domain.ConditionKind) string {
	if safeProductID.MatchString(productID) {
		return "p." + productID + "." + string(kind)
	}
	return "h." + hex.EncodeToString([]byte(productID)) + "." + string(kind)
}
