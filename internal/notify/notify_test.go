package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"stockalert/internal/domain"
)

type recordingEmail struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recordingEmail) SendEmail(_ context.Context, recipients []string, _ Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recipients)
	return r.err
}

type recordingPush struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
}

func (r *recordingPush) SendPush(_ context.Context, subscriberID string, _ Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, subscriberID)
	return r.failOn[subscriberID]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func allOnSettings() domain.Settings {
	return domain.Settings{
		Email: domain.EmailSettings{ChannelSettings: domain.AllConditions(), Addresses: []string{"ops@example.com"}},
		Push:  domain.PushSettings{ChannelSettings: domain.AllConditions()},
	}
}

func TestDispatchEligibilityMatrix(t *testing.T) {
	t.Parallel()

	product := domain.Product{ID: "p1", EmailNotificationsEnabled: true, PushNotificationsEnabled: true}
	notification := domain.Notification{ID: "n1", Kind: domain.KindLowStock, ProductID: "p1"}

	cases := []struct {
		name      string
		product   func(p domain.Product) domain.Product
		settings  func(s domain.Settings) domain.Settings
		wantEmail bool
		wantPush  bool
	}{
		{name: "all enabled", wantEmail: true, wantPush: true},
		{
			name:     "product email off",
			product:  func(p domain.Product) domain.Product { p.EmailNotificationsEnabled = false; return p },
			wantPush: true,
		},
		{
			name:      "product push off",
			product:   func(p domain.Product) domain.Product { p.PushNotificationsEnabled = false; return p },
			wantEmail: true,
		},
		{
			name:     "email channel disabled",
			settings: func(s domain.Settings) domain.Settings { s.Email.Enabled = false; return s },
			wantPush: true,
		},
		{
			name:     "email kind flag off",
			settings: func(s domain.Settings) domain.Settings { s.Email.LowStock = false; return s },
			wantPush: true,
		},
		{
			name:     "no email addresses",
			settings: func(s domain.Settings) domain.Settings { s.Email.Addresses = nil; return s },
			wantPush: true,
		},
		{
			name:      "push kind flag off",
			settings:  func(s domain.Settings) domain.Settings { s.Push.LowStock = false; return s },
			wantEmail: true,
		},
		{
			name:     "no settings record",
			settings: func(domain.Settings) domain.Settings { return domain.Settings{} },
		},
	}

	for _, tc := range cases {
		p := product
		if tc.product != nil {
			p = tc.product(p)
		}
		s := allOnSettings()
		if tc.settings != nil {
			s = tc.settings(s)
		}
		email := &recordingEmail{}
		push := &recordingPush{}
		d := NewDispatcher(email, push, []string{"admin"}, discardLogger(), nil)
		result := d.Dispatch(context.Background(), notification, p, s)
		if result.EmailSent != tc.wantEmail || result.PushSent != tc.wantPush {
			t.Fatalf("%s: got %+v, want email=%v push=%v", tc.name, result, tc.wantEmail, tc.wantPush)
		}
		if tc.wantEmail != (len(email.calls) == 1) {
			t.Fatalf("%s: unexpected email attempts %d", tc.name, len(email.calls))
		}
		if tc.wantPush != (len(push.calls) == 1) {
			t.Fatalf("%s: unexpected push attempts %d", tc.name, len(push.calls))
		}
	}
}

func TestDispatchRecordsFailuresAsFalse(t *testing.T) {
	t.Parallel()

	email := &recordingEmail{err: errors.New("smtp down")}
	push := &recordingPush{failOn: map[string]error{"admin": errors.New("push down")}}
	d := NewDispatcher(email, push, []string{"admin"}, discardLogger(), nil)
	product := domain.Product{ID: "p1", EmailNotificationsEnabled: true, PushNotificationsEnabled: true}

	result := d.Dispatch(context.Background(), domain.Notification{ID: "n1", Kind: domain.KindOutOfStock}, product, allOnSettings())
	if result.EmailSent || result.PushSent {
		t.Fatalf("failed channels must be recorded as false, got %+v", result)
	}
}

func TestDispatchPushSucceedsWhenAnySubscriberReceives(t *testing.T) {
	t.Parallel()

	push := &recordingPush{failOn: map[string]error{"admin": ErrNoSubscription}}
	d := NewDispatcher(nil, push, []string{"admin", "", "ops"}, discardLogger(), nil)
	product := domain.Product{ID: "p1", PushNotificationsEnabled: true, EmailNotificationsEnabled: true}

	result := d.Dispatch(context.Background(), domain.Notification{ID: "n1", Kind: domain.KindExpiry}, product, allOnSettings())
	if !result.PushSent || result.EmailSent {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(push.calls) != 2 {
		t.Fatalf("expected two push attempts, got %v", push.calls)
	}
}

func TestDispatchWithoutSubscribersSkipsPush(t *testing.T) {
	t.Parallel()

	push := &recordingPush{}
	d := NewDispatcher(nil, push, nil, discardLogger(), nil)
	product := domain.Product{ID: "p1", PushNotificationsEnabled: true}
	result := d.Dispatch(context.Background(), domain.Notification{ID: "n1", Kind: domain.KindReorder}, product, allOnSettings())
	if result.PushSent || len(push.calls) != 0 {
		t.Fatalf("push must not be attempted without subscribers")
	}
}

func TestPermanentMarker(t *testing.T) {
	t.Parallel()

	base := errors.New("gone")
	marked := MarkPermanent(base)
	if !IsPermanent(marked) {
		t.Fatalf("expected permanent marker")
	}
	if !errors.Is(marked, base) {
		t.Fatalf("marker must unwrap to cause")
	}
	if IsPermanent(base) || IsPermanent(nil) || MarkPermanent(nil) != nil {
		t.Fatalf("unexpected marker behavior for plain or nil errors")
	}
	wrapped := errors.Join(errors.New("context"), marked)
	if !IsPermanent(wrapped) {
		t.Fatalf("marker must survive wrapping")
	}
}

func TestMemorySubscribersReplaceAndDelete(t *testing.T) {
	t.Parallel()

	store := NewMemorySubscribers()
	store.Put("admin", Subscription{Kind: SubscriptionTelegram, ChatID: "1"})
	store.Put("admin", Subscription{Kind: SubscriptionTelegram, ChatID: "2"})
	sub, ok := store.Get("admin")
	if !ok || sub.ChatID != "2" {
		t.Fatalf("later put must replace subscription, got %+v", sub)
	}
	store.Delete("admin")
	if _, ok := store.Get("admin"); ok {
		t.Fatalf("expected subscription removed")
	}
}

func TestSubscriptionNormalizeAndValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		sub     Subscription
		wantErr bool
	}{
		{name: "webpush default kind", sub: Subscription{Endpoint: "https://push.example.com/x", Keys: SubscriptionKeys{Auth: "a", P256dh: "b"}}},
		{name: "telegram inferred", sub: Subscription{ChatID: " 42 "}},
		{name: "relative endpoint", sub: Subscription{Endpoint: "/push", Keys: SubscriptionKeys{Auth: "a", P256dh: "b"}}, wantErr: true},
		{name: "missing keys", sub: Subscription{Endpoint: "https://push.example.com/x"}, wantErr: true},
		{name: "unknown kind", sub: Subscription{Kind: "sms"}, wantErr: true},
	}
	for _, tc := range cases {
		err := tc.sub.Normalize().Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: err=%v wantErr=%v", tc.name, err, tc.wantErr)
		}
	}
}

func testAlert(kind domain.ConditionKind) Alert {
	expiry := time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC)
	reorderPoint, reorderQty := 10, 40
	return Alert{
		Product: domain.Product{
			ID:                "p1",
			Name:              "Milk",
			SKU:               "MLK-1",
			Quantity:          3,
			LowStockThreshold: 5,
			IsPerishable:      true,
			ExpiryDate:        &expiry,
			ReorderPoint:      &reorderPoint,
			ReorderQuantity:   &reorderQty,
		},
		Notification: domain.Notification{
			ID:        "n1",
			Kind:      kind,
			ProductID: "p1",
			Title:     "Low Stock Alert",
			Message:   "Milk is running low. Current stock: 3",
			Severity:  domain.SeverityHigh,
			Metadata:  map[string]any{"daysUntilExpiry": 2},
		},
	}
}
