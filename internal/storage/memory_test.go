package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockalert/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestMemoryInventoryFiltersByKind(t *testing.T) {
	t.Parallel()

	expiry := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	inv := NewMemoryInventory(
		domain.Product{ID: "b", Quantity: 3, LowStockThreshold: 10},
		domain.Product{ID: "a", Quantity: 1, LowStockThreshold: 5},
		domain.Product{ID: "c", Quantity: 0, LowStockThreshold: 5},
		domain.Product{ID: "d", Quantity: 50, LowStockThreshold: 5, IsPerishable: true, ExpiryDate: &expiry},
		domain.Product{ID: "e", Quantity: 4, LowStockThreshold: 1, AutoReorderEnabled: true, ReorderPoint: intPtr(4)},
	)
	ctx := context.Background()

	cases := []struct {
		kind domain.ConditionKind
		want []string
	}{
		{kind: domain.KindLowStock, want: []string{"a", "b"}},
		{kind: domain.KindOutOfStock, want: []string{"c"}},
		{kind: domain.KindExpiry, want: []string{"d"}},
		{kind: domain.KindReorder, want: []string{"e"}},
	}
	for _, tc := range cases {
		products, err := inv.ProductsFor(ctx, tc.kind)
		if err != nil {
			t.Fatalf("%s: products: %v", tc.kind, err)
		}
		if len(products) != len(tc.want) {
			t.Fatalf("%s: expected %v, got %d products", tc.kind, tc.want, len(products))
		}
		for i, id := range tc.want {
			if products[i].ID != id {
				t.Fatalf("%s: expected %s at %d, got %s", tc.kind, id, i, products[i].ID)
			}
		}
	}

	if _, err := inv.ProductsFor(ctx, domain.ConditionKind("bogus")); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestMemoryInventoryMarkAlertedSetsSideColumn(t *testing.T) {
	t.Parallel()

	inv := NewMemoryInventory(domain.Product{ID: "p1"})
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	if err := inv.MarkAlerted(context.Background(), "p1", domain.KindExpiry, at); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := inv.MarkAlerted(context.Background(), "p1", domain.KindOutOfStock, at.Add(time.Hour)); err != nil {
		t.Fatalf("mark: %v", err)
	}
	product, _ := inv.Get("p1")
	if product.LastExpiryAlertAt == nil || !product.LastExpiryAlertAt.Equal(at) {
		t.Fatalf("unexpected expiry mark: %v", product.LastExpiryAlertAt)
	}
	if product.LastStockAlertAt == nil || !product.LastStockAlertAt.Equal(at.Add(time.Hour)) {
		t.Fatalf("unexpected stock mark: %v", product.LastStockAlertAt)
	}
}

func TestMemoryNotificationsLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryNotifications()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"n1", "n2", "n3"} {
		n := domain.Notification{
			ID:        id,
			Kind:      domain.KindLowStock,
			ProductID: "p1",
			Severity:  domain.SeverityHigh,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Create(ctx, n); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := store.Create(ctx, domain.Notification{ID: "n1"}); err == nil {
		t.Fatalf("expected duplicate id error")
	}

	if err := store.MarkRead(ctx, "n1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := store.Dismiss(ctx, "n2"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	items, unread, err := store.List(ctx, domain.NotificationFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if unread != 1 {
		t.Fatalf("expected unread=1, got %d", unread)
	}
	if len(items) != 2 || items[0].ID != "n3" || items[1].ID != "n1" {
		t.Fatalf("unexpected listing: %+v", items)
	}

	updated, err := store.MarkAllRead(ctx)
	if err != nil || updated != 2 {
		t.Fatalf("expected 2 rows marked read, got %d err=%v", updated, err)
	}

	if err := store.Delete(ctx, "n1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.MarkRead(ctx, "n1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Dismiss(ctx, "n3"); err != nil {
		t.Fatalf("dismiss after delete must reindex: %v", err)
	}
}

func TestMemoryNotificationsLatestFor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryNotifications()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	_ = store.Create(ctx, domain.Notification{ID: "a", ProductID: "p1", Kind: domain.KindExpiry, CreatedAt: base.Add(2 * time.Hour)})
	_ = store.Create(ctx, domain.Notification{ID: "b", ProductID: "p1", Kind: domain.KindExpiry, CreatedAt: base})
	_ = store.Create(ctx, domain.Notification{ID: "c", ProductID: "p1", Kind: domain.KindReorder, CreatedAt: base.Add(5 * time.Hour)})

	latest, ok, err := store.LatestFor(ctx, "p1", domain.KindExpiry)
	if err != nil || !ok {
		t.Fatalf("expected latest, got ok=%v err=%v", ok, err)
	}
	if !latest.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("unexpected latest %s", latest)
	}
	if _, ok, _ := store.LatestFor(ctx, "p2", domain.KindExpiry); ok {
		t.Fatalf("unexpected latest for unknown product")
	}
}

func TestMemoryNotificationsDeliveryUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryNotifications()
	_ = store.Create(ctx, domain.Notification{ID: "n1", Kind: domain.KindOutOfStock})
	if err := store.UpdateDelivery(ctx, "n1", domain.DeliveryResult{EmailSent: true}); err != nil {
		t.Fatalf("update delivery: %v", err)
	}
	items, _, _ := store.List(ctx, domain.NotificationFilter{})
	if !items[0].EmailSent || items[0].PushSent {
		t.Fatalf("unexpected delivery flags: %+v", items[0])
	}
}

func TestMemorySettingsAbsentRecord(t *testing.T) {
	t.Parallel()

	store := NewMemorySettings(nil)
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	want := domain.Settings{Email: domain.EmailSettings{ChannelSettings: domain.AllConditions(), Addresses: []string{"ops@example.com"}}}
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(context.Background())
	if err != nil || !got.Email.Enabled || got.Email.Addresses[0] != "ops@example.com" {
		t.Fatalf("unexpected settings %+v err=%v", got, err)
	}
}

func TestNotificationHistoryUsesLatestNotification(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	notifications := NewMemoryNotifications()
	inv := NewMemoryInventory(domain.Product{ID: "p1"})
	hist := NewNotificationHistory(notifications, inv)

	if _, ok, _ := hist.LastAlert(ctx, "p1", domain.KindLowStock); ok {
		t.Fatalf("expected no mark before notifications")
	}
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	_ = notifications.Create(ctx, domain.Notification{ID: "n1", ProductID: "p1", Kind: domain.KindLowStock, CreatedAt: at})
	last, ok, err := hist.LastAlert(ctx, "p1", domain.KindLowStock)
	if err != nil || !ok || !last.Equal(at) {
		t.Fatalf("unexpected mark %s ok=%v err=%v", last, ok, err)
	}
	if err := hist.Mark(ctx, "p1", domain.KindLowStock, at); err != nil {
		t.Fatalf("mark: %v", err)
	}
	product, _ := inv.Get("p1")
	if product.LastStockAlertAt == nil {
		t.Fatalf("expected stock side column to be refreshed")
	}
}

func TestSplitAddresses(t *testing.T) {
	t.Parallel()

	got := SplitAddresses(" a@example.com, ;b@example.com ;; ")
	if len(got) != 2 || got[0] != "a@example.com" || got[1] != "b@example.com" {
		t.Fatalf("unexpected addresses %v", got)
	}
}

func TestSettingsRecordRoundTrip(t *testing.T) {
	t.Parallel()

	settings := domain.Settings{
		Email: domain.EmailSettings{
			ChannelSettings: domain.ChannelSettings{Enabled: true, Expiry: true},
			Addresses:       []string{"a@example.com", "b@example.com"},
		},
		Push: domain.PushSettings{ChannelSettings: domain.ChannelSettings{Enabled: true, OutOfStock: true}},
	}
	row := settingsRecordFrom(settings)
	if row.ID != settingsRowID || row.EmailAddress != "a@example.com,b@example.com" {
		t.Fatalf("unexpected row %+v", row)
	}
	back := row.ToDomain()
	if !back.Email.Allows(domain.KindExpiry) || back.Email.Allows(domain.KindLowStock) {
		t.Fatalf("email flags lost: %+v", back.Email)
	}
	if !back.Push.Allows(domain.KindOutOfStock) || len(back.Email.Addresses) != 2 {
		t.Fatalf("unexpected settings %+v", back)
	}
}
