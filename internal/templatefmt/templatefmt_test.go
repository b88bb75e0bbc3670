package templatefmt

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFormatDays(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want string
	}{
		{in: 0, want: "0 days"},
		{in: 1, want: "1 day"},
		{in: int64(5), want: "5 days"},
		{in: 1.2, want: "2 days"},
		{in: json.Number("3"), want: "3 days"},
		{in: "soon", want: "? days"},
	}
	for _, tc := range cases {
		if got := FormatDays(tc.in); got != tc.want {
			t.Fatalf("format %v: got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatDateHandlesNil(t *testing.T) {
	t.Parallel()

	var missing *time.Time
	if got := FormatDate(missing); got != "" {
		t.Fatalf("nil time must render empty, got %q", got)
	}
	local := time.Date(2026, 5, 5, 1, 0, 0, 0, time.FixedZone("plus3", 3*3600))
	if got := FormatDate(&local); got != "2026-05-04" {
		t.Fatalf("expected utc date, got %q", got)
	}
}

func TestRenderUsesSharedHelpers(t *testing.T) {
	t.Parallel()

	tpl, err := ParseNotificationTemplate("t", `{{ upper .Name }} {{ date .At }} {{ json .Meta }}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := Render(tpl, map[string]any{
		"Name": "milk",
		"At":   time.Date(2026, 5, 4, 23, 0, 0, 0, time.UTC),
		"Meta": map[string]int{"days": 2},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != `MILK 2026-05-04 {"days":2}` {
		t.Fatalf("unexpected render %q", out)
	}
}

func TestRenderMissingKeyFails(t *testing.T) {
	t.Parallel()

	tpl, err := ParseNotificationTemplate("t", `{{ .Missing }}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := Render(tpl, map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}
