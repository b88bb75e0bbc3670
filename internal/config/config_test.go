package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"stockalert/internal/domain"
)

const databaseSection = `[database]
dsn = "user:pass@tcp(127.0.0.1:3306)/inventory?parseTime=true"`

func TestLoadSnapshotAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg := mustLoadSnapshot(t, databaseSection)

	if cfg.Service.Name != "stockalert" {
		t.Fatalf("unexpected service name %q", cfg.Service.Name)
	}
	if cfg.Service.ScanConcurrency != 4 {
		t.Fatalf("unexpected scan concurrency %d", cfg.Service.ScanConcurrency)
	}
	if cfg.History.Backend != HistoryBackendDatabase {
		t.Fatalf("unexpected history backend %q", cfg.History.Backend)
	}
	if cfg.Schedule.RunAll != "0 * * * *" {
		t.Fatalf("unexpected run_all schedule %q", cfg.Schedule.RunAll)
	}
	if got := cfg.Alerts.Cooldown.For(domain.KindLowStock); got != 24*time.Hour {
		t.Fatalf("unexpected low stock cooldown %s", got)
	}
	if got := cfg.Alerts.Cooldown.For(domain.KindReorder); got != 48*time.Hour {
		t.Fatalf("unexpected reorder cooldown %s", got)
	}
	if !reflect.DeepEqual(cfg.Notify.Push.Subscribers, []string{"admin"}) {
		t.Fatalf("unexpected push subscribers %v", cfg.Notify.Push.Subscribers)
	}
	if !cfg.Log.Console.Enabled || cfg.Log.Console.Format != "line" {
		t.Fatalf("expected console line logging by default, got %+v", cfg.Log.Console)
	}
	if cfg.HTTP.APIPrefix != "/api" || cfg.HTTP.MetricsPath != "/metrics" {
		t.Fatalf("unexpected http paths %+v", cfg.HTTP)
	}
	if len(cfg.NATS.URL) != 0 {
		t.Fatalf("nats url must stay empty when nothing uses nats, got %v", cfg.NATS.URL)
	}
}

func TestLoadSnapshotNATSBackendGetsDefaultURL(t *testing.T) {
	t.Parallel()

	cfg := mustLoadSnapshot(t, joinSections(databaseSection, `[history]
backend = "NATS"
allow_create_bucket = true`))

	if cfg.History.Backend != HistoryBackendNATS {
		t.Fatalf("unexpected backend %q", cfg.History.Backend)
	}
	if !reflect.DeepEqual(cfg.NATS.URL, []string{"nats://127.0.0.1:4222"}) {
		t.Fatalf("unexpected nats url %v", cfg.NATS.URL)
	}
	derived := DeriveHistoryNATSConfig(cfg)
	if derived.Bucket != "stockalert_history" || derived.Retention != 7*24*time.Hour || !derived.AllowCreateBuckets {
		t.Fatalf("unexpected derived history config %+v", derived)
	}
}

func TestLoadSnapshotTriggerDefaults(t *testing.T) {
	t.Parallel()

	cfg := mustLoadSnapshot(t, joinSections(databaseSection, `[trigger]
enabled = true
max_deliver = -1`))

	if !reflect.DeepEqual(cfg.NATS.URL, []string{"nats://127.0.0.1:4222"}) {
		t.Fatalf("trigger consumer must get default nats url, got %v", cfg.NATS.URL)
	}
	if cfg.Trigger.Stream != "STOCKALERT_CHECKS" || cfg.Trigger.Subject != "stockalert.checks.run" {
		t.Fatalf("unexpected trigger routing %+v", cfg.Trigger)
	}
	if cfg.Trigger.AckWaitSec != 300 || cfg.Trigger.MaxDeliver != -1 {
		t.Fatalf("unexpected trigger ack policy %+v", cfg.Trigger)
	}
}

func TestLoadSnapshotRetentionCoversCooldowns(t *testing.T) {
	t.Parallel()

	cfg := mustLoadSnapshot(t, joinSections(databaseSection, `[history]
backend = "memory"
retention_sec = 172800`))
	if cfg.History.RetentionSec != 172800 {
		t.Fatalf("unexpected retention %d", cfg.History.RetentionSec)
	}

	cfg = mustLoadSnapshot(t, joinSections(databaseSection, `[history]
retention_sec = 60`))
	if cfg.History.Backend != HistoryBackendDatabase {
		t.Fatalf("database backend ignores retention, got backend %q", cfg.History.Backend)
	}
}

func TestLoadSnapshotKindScheduleDisablesDefaultRunAll(t *testing.T) {
	t.Parallel()

	cfg := mustLoadSnapshot(t, joinSections(databaseSection, `[schedule]
low_stock = "0 * * * *"
out_of_stock = "0 * * * *"
expiry = "0 9 * * *"
reorder = "0 */6 * * *"`))

	if cfg.Schedule.RunAll != "" {
		t.Fatalf("expected empty run_all, got %q", cfg.Schedule.RunAll)
	}
	if cfg.Schedule.KindExpr(domain.KindExpiry) != "0 9 * * *" {
		t.Fatalf("unexpected expiry schedule %q", cfg.Schedule.KindExpr(domain.KindExpiry))
	}
}

func TestLoadSnapshotFromDirOverlaysFragments(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	writeConfigFile(t, filepath.Join(tmpDir, "10-base.toml"), joinSections(
		databaseSection,
		`[schedule]
run_all = "0 * * * *"`,
		`[notify.email]
enabled = true
host = "smtp.example.com"
from = "alerts@example.com"`,
	))
	writeConfigFile(t, filepath.Join(tmpDir, "20-override.toml"), `[schedule]
run_all = "*/30 * * * *"`)
	writeConfigFile(t, filepath.Join(tmpDir, "README.md"), "ignored")

	cfg, err := LoadSnapshot(ConfigSource{Dir: tmpDir})
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if cfg.Schedule.RunAll != "*/30 * * * *" {
		t.Fatalf("expected override schedule, got %q", cfg.Schedule.RunAll)
	}
	if cfg.Notify.Email.Host != "smtp.example.com" || cfg.Notify.Email.Port != 587 {
		t.Fatalf("expected base email settings kept, got %+v", cfg.Notify.Email)
	}
}

func TestLoadSnapshotFromEmptyDirFails(t *testing.T) {
	t.Parallel()

	_, err := LoadSnapshot(ConfigSource{Dir: t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "no .toml files") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadSnapshotValidationErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing dsn",
			body: `[service]
name = "x"`,
			want: "database.dsn is required",
		},
		{
			name: "unknown backend",
			body: joinSections(databaseSection, `[history]
backend = "redis"`),
			want: "history.backend has unsupported value",
		},
		{
			name: "bad cron",
			body: joinSections(databaseSection, `[schedule]
run_all = "every hour"`),
			want: "schedule.run_all",
		},
		{
			name: "negative cooldown",
			body: joinSections(databaseSection, `[alerts.cooldown]
expiry_sec = -5`),
			want: "alerts.cooldown.expiry_sec must be >0",
		},
		{
			name: "memory retention shorter than cooldown",
			body: joinSections(databaseSection, `[history]
backend = "memory"
retention_sec = 3600`),
			want: "history.retention_sec must be >= low_stock cooldown (86400)",
		},
		{
			name: "nats retention shorter than reorder cooldown",
			body: joinSections(databaseSection, `[history]
backend = "nats"
retention_sec = 86400`),
			want: "history.retention_sec must be >= reorder cooldown (172800)",
		},
		{
			name: "email without host",
			body: joinSections(databaseSection, `[notify.email]
enabled = true
from = "alerts@example.com"`),
			want: "notify.email.host is required",
		},
		{
			name: "email template unknown kind",
			body: joinSections(databaseSection, `[notify.email.template.overstock]
subject = "x"`),
			want: "unknown condition kind",
		},
		{
			name: "email template syntax",
			body: joinSections(databaseSection, `[notify.email.template.low_stock]
body = "{{ .Product.Name "`),
			want: "notify.email.template.low_stock.body",
		},
		{
			name: "half vapid",
			body: joinSections(databaseSection, `[notify.push.webpush]
vapid_public_key = "pub"`),
			want: "must be set together",
		},
		{
			name: "push without transport",
			body: joinSections(databaseSection, `[notify.push]
enabled = true`),
			want: "requires webpush VAPID keys or telegram bot_token",
		},
		{
			name: "unknown field",
			body: joinSections(databaseSection, `[service]
mode = "single"`),
			want: "decode config file",
		},
		{
			name: "concurrency above kinds",
			body: joinSections(databaseSection, `[service]
scan_concurrency = 9`),
			want: "service.scan_concurrency must be <=4",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := loadSnapshotErr(t, tc.body)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestFromCLI(t *testing.T) {
	t.Parallel()

	if _, err := FromCLI("", ""); err == nil {
		t.Fatalf("expected error without source")
	}
	if _, err := FromCLI("a.toml", "dir"); err == nil {
		t.Fatalf("expected error with both sources")
	}
	src, err := FromCLI(" a.toml ", "")
	if err != nil {
		t.Fatalf("from cli: %v", err)
	}
	if src.File != "a.toml" || src.Dir != "" {
		t.Fatalf("unexpected source %+v", src)
	}
}

func mustLoadSnapshot(t *testing.T, body string) Config {
	t.Helper()
	cfg, err := loadSnapshotFromBody(t, body)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	return cfg
}

func loadSnapshotErr(t *testing.T, body string) error {
	t.Helper()
	_, err := loadSnapshotFromBody(t, body)
	return err
}

func loadSnapshotFromBody(t *testing.T, body string) (Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfigFile(t, path, body)
	return LoadSnapshot(ConfigSource{File: path})
}

func writeConfigFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func joinSections(sections ...string) string {
	return strings.Join(sections, "\n\n")
}
