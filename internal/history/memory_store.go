package history

import (
	"context"
	"sync"
	"time"

	"stockalert/internal/domain"
)

// MemoryStore keeps last-alert marks in process memory for single-instance mode.
// Params: mark map, optional retention, and injected clock.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu        sync.RWMutex
	now       func() time.Time
	retention time.Duration
	marks     map[string]time.Time
}

// NewMemoryStore creates in-memory history store.
// Params: now function (defaults to time.Now when nil) and retention (0 keeps marks forever).
// Returns: initialized in-memory store.
func NewMemoryStore(now func() time.Time, retention time.Duration) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:       now,
		retention: retention,
		marks:     make(map[string]time.Time),
	}
}

// LastAlert returns mark for pair unless it is older than retention.
// Params: product ID and condition kind.
// Returns: mark time and presence flag.
func (s *MemoryStore) LastAlert(_ context.Context, productID string, kind domain.ConditionKind) (time.Time, bool, error) {
	key := Key(productID, kind)
	s.mu.RLock()
	at, ok := s.marks[key]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false, nil
	}
	if s.retention > 0 && s.now().Sub(at) >= s.retention {
		s.mu.Lock()
		if current, ok := s.marks[key]; ok && current.Equal(at) {
			delete(s.marks, key)
		}
		s.mu.Unlock()
		return time.Time{}, false, nil
	}
	return at, true, nil
}

// Mark records alert time for pair; an older time never replaces a newer mark.
// Params: product ID, condition kind, and alert time.
// Returns: nil (in-memory update).
func (s *MemoryStore) Mark(_ context.Context, productID string, kind domain.ConditionKind, at time.Time) error {
	key := Key(productID, kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.marks[key]; ok && current.After(at) {
		return nil
	}
	s.marks[key] = at.UTC()
	return nil
}

// Len returns number of stored marks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.marks)
}

// Close releases memory store resources.
// Params: none.
// Returns: nil.
func (s *MemoryStore) Close() error {
	return nil
}
