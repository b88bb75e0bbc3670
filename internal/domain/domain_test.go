package domain

import "testing"

func TestParseConditionKindNormalizesInput(t *testing.T) {
	t.Parallel()

	cases := map[string]ConditionKind{
		"low_stock":      KindLowStock,
		" Out-Of-Stock ": KindOutOfStock,
		"EXPIRY":         KindExpiry,
		"reorder":        KindReorder,
	}
	for raw, want := range cases {
		got, err := ParseConditionKind(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %q want %q", raw, got, want)
		}
	}
	if _, err := ParseConditionKind("overstock"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestChannelSettingsAllowsNeedsBothSwitches(t *testing.T) {
	t.Parallel()

	settings := ChannelSettings{Enabled: false, LowStock: true}
	if settings.Allows(KindLowStock) {
		t.Fatalf("disabled channel must not allow any kind")
	}
	settings.Enabled = true
	if !settings.Allows(KindLowStock) {
		t.Fatalf("expected low stock allowed")
	}
	if settings.Allows(KindReorder) {
		t.Fatalf("reorder flag is off")
	}

	var zero Settings
	for _, kind := range AllKinds() {
		if zero.Email.Allows(kind) || zero.Push.Allows(kind) {
			t.Fatalf("zero settings must disable %s", kind)
		}
	}
}

func TestCycleCountsAddAndTotal(t *testing.T) {
	t.Parallel()

	var counts CycleCounts
	counts.Add(KindLowStock, 2)
	counts.Add(KindReorder, 1)
	counts.Add(ConditionKind("unknown"), 5)

	if counts.Get(KindLowStock) != 2 || counts.Get(KindReorder) != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if counts.Total() != 3 {
		t.Fatalf("expected total 3, got %d", counts.Total())
	}
}

func TestNotificationFilterMatches(t *testing.T) {
	t.Parallel()

	unread := false
	filter := NotificationFilter{Read: &unread, Kind: KindExpiry}
	if !filter.Matches(Notification{Kind: KindExpiry}) {
		t.Fatalf("expected unread expiry notification to match")
	}
	if filter.Matches(Notification{Kind: KindExpiry, Read: true}) {
		t.Fatalf("read notification must not match unread filter")
	}
	if filter.Matches(Notification{Kind: KindExpiry, Dismissed: true}) {
		t.Fatalf("dismissed notification hidden by default")
	}
	if filter.EffectiveLimit() != DefaultListLimit {
		t.Fatalf("expected default limit")
	}
}
