package clock

import (
	"sync"
	"time"
)

// Clock provides current time abstraction for deterministic cycles and tests.
// Params: none.
// Returns: current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock reads current UTC time from system clock.
// Params: none.
// Returns: current UTC timestamp.
type RealClock struct{}

// Now returns current UTC time.
// Params: none.
// Returns: current UTC timestamp.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a settable clock used by tests and replay tooling.
// Params: current instant guarded by mutex.
// Returns: clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates manual clock pinned at start.
// Params: initial instant.
// Returns: manual clock.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

// Now returns the pinned instant.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by delta.
func (m *Manual) Advance(delta time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(delta)
	m.mu.Unlock()
}

// Set pins the clock at instant.
func (m *Manual) Set(instant time.Time) {
	m.mu.Lock()
	m.now = instant.UTC()
	m.mu.Unlock()
}
