package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"stockalert/internal/domain"
	"stockalert/internal/evaluate"
)

// MemoryInventory keeps products in process memory for tests and demo mode.
type MemoryInventory struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewMemoryInventory creates in-memory inventory seeded with products.
func NewMemoryInventory(products ...domain.Product) *MemoryInventory {
	inv := &MemoryInventory{products: make(map[string]domain.Product, len(products))}
	_ = inv.Upsert(context.Background(), products...)
	return inv
}

// Upsert stores products by ID.
func (s *MemoryInventory) Upsert(_ context.Context, products ...domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, product := range products {
		s.products[product.ID] = product
	}
	return nil
}

// Get returns one product by ID.
func (s *MemoryInventory) Get(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	return product, ok
}

// ProductsFor returns applicable products ordered by ID.
// Params: condition kind.
// Returns: products passing the evaluator's applicability predicate.
func (s *MemoryInventory) ProductsFor(_ context.Context, kind domain.ConditionKind) ([]domain.Product, error) {
	evaluator, ok := evaluate.For(kind)
	if !ok {
		return nil, fmt.Errorf("unknown condition kind %q", kind)
	}
	s.mu.RLock()
	out := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		if evaluator.Applicable(product) {
			out = append(out, product)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MarkAlerted refreshes the product's last alert timestamp of kind.
func (s *MemoryInventory) MarkAlerted(_ context.Context, productID string, kind domain.ConditionKind, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[productID]
	if !ok {
		return nil
	}
	stamp := at.UTC()
	if kind == domain.KindExpiry {
		product.LastExpiryAlertAt = &stamp
	} else {
		product.LastStockAlertAt = &stamp
	}
	s.products[productID] = product
	return nil
}

// MemoryNotifications keeps notifications in insertion order.
type MemoryNotifications struct {
	mu    sync.RWMutex
	items []domain.Notification
	index map[string]int
}

// NewMemoryNotifications creates empty in-memory notification store.
func NewMemoryNotifications() *MemoryNotifications {
	return &MemoryNotifications{index: make(map[string]int)}
}

// Create appends notification; duplicate IDs are rejected.
func (s *MemoryNotifications) Create(_ context.Context, notification domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[notification.ID]; exists {
		return fmt.Errorf("notification %s already exists", notification.ID)
	}
	s.index[notification.ID] = len(s.items)
	s.items = append(s.items, notification)
	return nil
}

// UpdateDelivery stores per-channel delivery outcome.
func (s *MemoryNotifications) UpdateDelivery(_ context.Context, id string, result domain.DeliveryResult) error {
	return s.update(id, func(n *domain.Notification) {
		n.EmailSent = result.EmailSent
		n.PushSent = result.PushSent
	})
}

// MarkRead sets read flag.
func (s *MemoryNotifications) MarkRead(_ context.Context, id string) error {
	return s.update(id, func(n *domain.Notification) { n.Read = true })
}

// Dismiss sets dismissed flag.
func (s *MemoryNotifications) Dismiss(_ context.Context, id string) error {
	return s.update(id, func(n *domain.Notification) { n.Dismissed = true })
}

func (s *MemoryNotifications) update(id string, fn func(n *domain.Notification)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}
	fn(&s.items[pos])
	return nil
}

// MarkAllRead marks every unread notification as read.
func (s *MemoryNotifications) MarkAllRead(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated int64
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			updated++
		}
	}
	return updated, nil
}

// Delete removes notification by ID.
func (s *MemoryNotifications) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.items); i++ {
		s.index[s.items[i].ID] = i
	}
	return nil
}

// List returns newest matching notifications and unread count.
func (s *MemoryNotifications) List(_ context.Context, filter domain.NotificationFilter) ([]domain.Notification, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := filter.EffectiveLimit()
	out := make([]domain.Notification, 0)
	var unread int64
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		if !item.Read && !item.Dismissed {
			unread++
		}
		if len(out) < limit && filter.Matches(item) {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, unread, nil
}

// LatestFor returns creation time of newest notification for pair.
func (s *MemoryNotifications) LatestFor(_ context.Context, productID string, kind domain.ConditionKind) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest time.Time
		found  bool
	)
	for _, item := range s.items {
		if item.ProductID != productID || item.Kind != kind {
			continue
		}
		if !found || item.CreatedAt.After(latest) {
			latest = item.CreatedAt
			found = true
		}
	}
	return latest, found, nil
}

// Len returns number of stored notifications.
func (s *MemoryNotifications) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// MemorySettings holds settings in memory; nil settings behave as an absent record.
type MemorySettings struct {
	mu       sync.RWMutex
	settings *domain.Settings
}

// NewMemorySettings creates settings store; pass nil to simulate no record.
func NewMemorySettings(settings *domain.Settings) *MemorySettings {
	store := &MemorySettings{}
	if settings != nil {
		copied := *settings
		store.settings = &copied
	}
	return store
}

// Load returns stored settings or ErrNotFound.
func (s *MemorySettings) Load(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return domain.Settings{}, ErrNotFound
	}
	return *s.settings, nil
}

// Save replaces stored settings.
func (s *MemorySettings) Save(_ context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}
