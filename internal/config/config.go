package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stockalert/internal/domain"
	"stockalert/internal/templatefmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

const (
	defaultServiceName        = "stockalert"
	defaultScanConcurrency    = 4
	defaultShutdownTimeoutSec = 10
	defaultHTTPListen         = ":8080"
	defaultHealthPath         = "/healthz"
	defaultReadyPath          = "/readyz"
	defaultMetricsPath        = "/metrics"
	defaultAPIPrefix          = "/api"
	defaultMaxBodyBytes       = 1 << 20
	defaultNATSURL            = "nats://127.0.0.1:4222"
	defaultHistoryBucket      = "stockalert_history"
	defaultHistoryRetention   = 7 * 24 * 3600
	defaultFeedStream         = "STOCKALERT_NOTIFICATIONS"
	defaultFeedSubject        = "stockalert.notifications"
	defaultFeedMaxAgeSec      = 7 * 24 * 3600
	defaultTriggerStream      = "STOCKALERT_CHECKS"
	defaultTriggerSubject     = "stockalert.checks.run"
	defaultTriggerConsumer    = "stockalert-checks"
	defaultTriggerGroup       = "stockalert-workers"
	defaultTriggerAckWaitSec  = 300
	defaultTriggerNackDelayMS = 1000
	defaultTriggerMaxDeliver  = 5
	defaultRunAllSchedule     = "0 * * * *"
	defaultStockCooldownSec   = 24 * 3600
	defaultReorderCooldownSec = 48 * 3600
	defaultSMTPPort           = 587
	defaultNotifyTimeoutSec   = 10
	defaultWebPushTTLSec      = 3600
	defaultTelegramAPIBase    = "https://api.telegram.org"
	defaultPushSubscriber     = "admin"
	defaultDBMaxOpenConns     = 10
	defaultDBMaxIdleConns     = 5
	defaultDBSlowThresholdMS  = 200

	// HistoryBackendDatabase derives cooldown marks from persisted notifications.
	HistoryBackendDatabase = "database"
	// HistoryBackendMemory keeps cooldown marks in process memory.
	HistoryBackendMemory = "memory"
	// HistoryBackendNATS keeps cooldown marks in JetStream KV.
	HistoryBackendNATS = "nats"
)

// Config holds service runtime settings.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service  ServiceConfig  `toml:"service"`
	Log      LogConfig      `toml:"log"`
	HTTP     HTTPConfig     `toml:"http"`
	Database DatabaseConfig `toml:"database"`
	History  HistoryConfig  `toml:"history"`
	NATS     NATSConfig     `toml:"nats"`
	Feed     FeedConfig     `toml:"feed"`
	Trigger  TriggerConfig  `toml:"trigger"`
	Schedule ScheduleConfig `toml:"schedule"`
	Alerts   AlertsConfig   `toml:"alerts"`
	Notify   NotifyConfig   `toml:"notify"`
}

// ServiceConfig contains process-level settings.
// Params: name, condition scan parallelism, and shutdown budget.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name               string `toml:"name"`
	ScanConcurrency    int    `toml:"scan_concurrency"`
	ShutdownTimeoutSec int    `toml:"shutdown_timeout_sec"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, path, and rotation limits for file sinks.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled    bool   `toml:"enabled"`
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// HTTPConfig configures admin API and probes.
type HTTPConfig struct {
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	MetricsPath  string `toml:"metrics_path"`
	APIPrefix    string `toml:"api_prefix"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// DatabaseConfig configures MySQL access for products, settings, and notifications.
// Params: DSN, pool limits, migration switch, and slow-query threshold.
// Returns: gorm connection options.
type DatabaseConfig struct {
	DSN                string `toml:"dsn"`
	AutoMigrate        bool   `toml:"auto_migrate"`
	MaxOpenConns       int    `toml:"max_open_conns"`
	MaxIdleConns       int    `toml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `toml:"conn_max_lifetime_sec"`
	SlowThresholdMS    int    `toml:"slow_threshold_ms"`
}

// HistoryConfig selects where last-alert marks live.
type HistoryConfig struct {
	Backend           string `toml:"backend"`
	Bucket            string `toml:"bucket"`
	RetentionSec      int    `toml:"retention_sec"`
	AllowCreateBucket bool   `toml:"allow_create_bucket"`
}

// NATSConfig holds shared NATS connection URLs.
type NATSConfig struct {
	URL []string `toml:"url"`
}

// ServerURL joins configured URLs in nats.Connect form.
func (c NATSConfig) ServerURL() string {
	return strings.Join(c.URL, ",")
}

// NATSHistoryConfig contains JetStream KV controls for history backend.
// Params: URLs, bucket name, mark retention, and bucket creation switch.
// Returns: NATS history backend options.
type NATSHistoryConfig struct {
	URL                []string
	Bucket             string
	Retention          time.Duration
	AllowCreateBuckets bool
}

// DeriveHistoryNATSConfig builds NATS history backend settings from config snapshot.
// Params: full config snapshot.
// Returns: history backend options.
func DeriveHistoryNATSConfig(cfg Config) NATSHistoryConfig {
	return NATSHistoryConfig{
		URL:                append([]string(nil), cfg.NATS.URL...),
		Bucket:             cfg.History.Bucket,
		Retention:          time.Duration(cfg.History.RetentionSec) * time.Second,
		AllowCreateBuckets: cfg.History.AllowCreateBucket,
	}
}

// FeedConfig configures optional JetStream publication of accepted notifications.
type FeedConfig struct {
	Enabled   bool   `toml:"enabled"`
	Stream    string `toml:"stream"`
	Subject   string `toml:"subject"`
	MaxAgeSec int    `toml:"max_age_sec"`
}

// TriggerConfig configures JetStream queue consumer for on-demand check requests.
// Params: stream routing plus ack/redelivery policy.
// Returns: trigger consumer behavior.
type TriggerConfig struct {
	Enabled      bool   `toml:"enabled"`
	Stream       string `toml:"stream"`
	Subject      string `toml:"subject"`
	ConsumerName string `toml:"consumer_name"`
	DeliverGroup string `toml:"deliver_group"`
	AckWaitSec   int    `toml:"ack_wait_sec"`
	NackDelayMS  int    `toml:"nack_delay_ms"`
	MaxDeliver   int    `toml:"max_deliver"`
}

// ScheduleConfig defines cron expressions for periodic cycles.
// Params: unified expression plus optional per-kind overrides.
// Returns: scheduler plan.
type ScheduleConfig struct {
	Disabled   bool   `toml:"disabled"`
	RunOnStart bool   `toml:"run_on_start"`
	RunAll     string `toml:"run_all"`
	LowStock   string `toml:"low_stock"`
	OutOfStock string `toml:"out_of_stock"`
	Expiry     string `toml:"expiry"`
	Reorder    string `toml:"reorder"`
}

// KindExpr returns dedicated cron expression for kind or empty string.
func (s ScheduleConfig) KindExpr(kind domain.ConditionKind) string {
	switch kind {
	case domain.KindLowStock:
		return strings.TrimSpace(s.LowStock)
	case domain.KindOutOfStock:
		return strings.TrimSpace(s.OutOfStock)
	case domain.KindExpiry:
		return strings.TrimSpace(s.Expiry)
	case domain.KindReorder:
		return strings.TrimSpace(s.Reorder)
	default:
		return ""
	}
}

// AlertsConfig groups alert suppression settings.
type AlertsConfig struct {
	Cooldown CooldownConfig `toml:"cooldown"`
}

// CooldownConfig holds per-kind suppression windows in seconds.
type CooldownConfig struct {
	LowStockSec   int `toml:"low_stock_sec"`
	OutOfStockSec int `toml:"out_of_stock_sec"`
	ExpirySec     int `toml:"expiry_sec"`
	ReorderSec    int `toml:"reorder_sec"`
}

// For returns cooldown of kind.
func (c CooldownConfig) For(kind domain.ConditionKind) time.Duration {
	var sec int
	switch kind {
	case domain.KindLowStock:
		sec = c.LowStockSec
	case domain.KindOutOfStock:
		sec = c.OutOfStockSec
	case domain.KindExpiry:
		sec = c.ExpirySec
	case domain.KindReorder:
		sec = c.ReorderSec
	}
	return time.Duration(sec) * time.Second
}

// NotifyConfig configures delivery transports.
type NotifyConfig struct {
	Email EmailConfig `toml:"email"`
	Push  PushConfig  `toml:"push"`
}

// EmailConfig configures SMTP transport and per-kind templates.
// Params: SMTP endpoint, credentials, sender, timeout, and templates keyed by condition kind.
// Returns: email notifier options.
type EmailConfig struct {
	Enabled    bool                     `toml:"enabled"`
	Host       string                   `toml:"host"`
	Port       int                      `toml:"port"`
	Username   string                   `toml:"username"`
	Password   string                   `toml:"password"`
	From       string                   `toml:"from"`
	TimeoutSec int                      `toml:"timeout_sec"`
	Template   map[string]EmailTemplate `toml:"template"`
}

// EmailTemplate is one subject/body template pair.
type EmailTemplate struct {
	Subject string `toml:"subject"`
	Body    string `toml:"body"`
}

// PushConfig configures push transports and recipients.
type PushConfig struct {
	Enabled     bool           `toml:"enabled"`
	Subscribers []string       `toml:"subscribers"`
	LinkURL     string         `toml:"link_url"`
	TimeoutSec  int            `toml:"timeout_sec"`
	WebPush     WebPushConfig  `toml:"webpush"`
	Telegram    TelegramConfig `toml:"telegram"`
}

// WebPushConfig holds VAPID credentials.
type WebPushConfig struct {
	VAPIDPublicKey  string `toml:"vapid_public_key"`
	VAPIDPrivateKey string `toml:"vapid_private_key"`
	Subscriber      string `toml:"subscriber"`
	TTLSec          int    `toml:"ttl_sec"`
	Urgency         string `toml:"urgency"`
}

// Enabled reports whether VAPID keys are configured.
func (c WebPushConfig) Enabled() bool {
	return strings.TrimSpace(c.VAPIDPublicKey) != "" && strings.TrimSpace(c.VAPIDPrivateKey) != ""
}

// TelegramConfig holds bot credentials for telegram push subscriptions.
type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
	APIBase  string `toml:"api_base"`
}

// Enabled reports whether telegram transport is configured.
func (c TelegramConfig) Enabled() bool {
	return strings.TrimSpace(c.BotToken) != ""
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		err = overlayFile(&cfg, src.File)
	} else {
		err = overlayDir(&cfg, src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// overlayFile decodes one TOML file on top of existing config values.
// Params: destination config and file path.
// Returns: read/decode error.
func overlayFile(dst *Config, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	decoder := toml.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}
	return nil
}

// overlayDir decodes every *.toml file of directory in lexical order.
// Keys present in later fragments replace earlier values; absent keys are kept.
func overlayDir(dst *Config, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	for _, file := range files {
		if err := overlayFile(dst, file); err != nil {
			return err
		}
	}
	return nil
}

// applyDefaults fills omitted settings.
// Params: config pointer to mutate.
// Returns: config with defaults side-effect.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.ScanConcurrency <= 0 {
		cfg.Service.ScanConcurrency = defaultScanConcurrency
	}
	if cfg.Service.ShutdownTimeoutSec <= 0 {
		cfg.Service.ShutdownTimeoutSec = defaultShutdownTimeoutSec
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if cfg.Log.File.MaxSizeMB <= 0 {
		cfg.Log.File.MaxSizeMB = 100
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.HTTP.HealthPath) == "" {
		cfg.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.HTTP.ReadyPath) == "" {
		cfg.HTTP.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.HTTP.MetricsPath) == "" {
		cfg.HTTP.MetricsPath = defaultMetricsPath
	}
	if strings.TrimSpace(cfg.HTTP.APIPrefix) == "" {
		cfg.HTTP.APIPrefix = defaultAPIPrefix
	}
	cfg.HTTP.APIPrefix = "/" + strings.Trim(cfg.HTTP.APIPrefix, "/")
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}

	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = defaultDBMaxOpenConns
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = defaultDBMaxIdleConns
	}
	if cfg.Database.SlowThresholdMS <= 0 {
		cfg.Database.SlowThresholdMS = defaultDBSlowThresholdMS
	}

	cfg.History.Backend = strings.ToLower(strings.TrimSpace(cfg.History.Backend))
	if cfg.History.Backend == "" {
		cfg.History.Backend = HistoryBackendDatabase
	}
	if strings.TrimSpace(cfg.History.Bucket) == "" {
		cfg.History.Bucket = defaultHistoryBucket
	}
	if cfg.History.RetentionSec <= 0 {
		cfg.History.RetentionSec = defaultHistoryRetention
	}

	cfg.NATS.URL = normalizeNATSURLs(cfg.NATS.URL)
	if len(cfg.NATS.URL) == 0 && usesNATS(*cfg) {
		cfg.NATS.URL = []string{defaultNATSURL}
	}

	if strings.TrimSpace(cfg.Feed.Stream) == "" {
		cfg.Feed.Stream = defaultFeedStream
	}
	if strings.TrimSpace(cfg.Feed.Subject) == "" {
		cfg.Feed.Subject = defaultFeedSubject
	}
	if cfg.Feed.MaxAgeSec <= 0 {
		cfg.Feed.MaxAgeSec = defaultFeedMaxAgeSec
	}

	if strings.TrimSpace(cfg.Trigger.Stream) == "" {
		cfg.Trigger.Stream = defaultTriggerStream
	}
	if strings.TrimSpace(cfg.Trigger.Subject) == "" {
		cfg.Trigger.Subject = defaultTriggerSubject
	}
	if strings.TrimSpace(cfg.Trigger.ConsumerName) == "" {
		cfg.Trigger.ConsumerName = defaultTriggerConsumer
	}
	if strings.TrimSpace(cfg.Trigger.DeliverGroup) == "" {
		cfg.Trigger.DeliverGroup = defaultTriggerGroup
	}
	if cfg.Trigger.AckWaitSec <= 0 {
		cfg.Trigger.AckWaitSec = defaultTriggerAckWaitSec
	}
	if cfg.Trigger.NackDelayMS <= 0 {
		cfg.Trigger.NackDelayMS = defaultTriggerNackDelayMS
	}
	if cfg.Trigger.MaxDeliver == 0 {
		cfg.Trigger.MaxDeliver = defaultTriggerMaxDeliver
	}

	if strings.TrimSpace(cfg.Schedule.RunAll) == "" && !hasKindSchedule(cfg.Schedule) {
		cfg.Schedule.RunAll = defaultRunAllSchedule
	}

	if cfg.Alerts.Cooldown.LowStockSec == 0 {
		cfg.Alerts.Cooldown.LowStockSec = defaultStockCooldownSec
	}
	if cfg.Alerts.Cooldown.OutOfStockSec == 0 {
		cfg.Alerts.Cooldown.OutOfStockSec = defaultStockCooldownSec
	}
	if cfg.Alerts.Cooldown.ExpirySec == 0 {
		cfg.Alerts.Cooldown.ExpirySec = defaultStockCooldownSec
	}
	if cfg.Alerts.Cooldown.ReorderSec == 0 {
		cfg.Alerts.Cooldown.ReorderSec = defaultReorderCooldownSec
	}

	if cfg.Notify.Email.Port <= 0 {
		cfg.Notify.Email.Port = defaultSMTPPort
	}
	if cfg.Notify.Email.TimeoutSec <= 0 {
		cfg.Notify.Email.TimeoutSec = defaultNotifyTimeoutSec
	}
	if cfg.Notify.Push.TimeoutSec <= 0 {
		cfg.Notify.Push.TimeoutSec = defaultNotifyTimeoutSec
	}
	if len(cfg.Notify.Push.Subscribers) == 0 {
		cfg.Notify.Push.Subscribers = []string{defaultPushSubscriber}
	}
	if cfg.Notify.Push.WebPush.TTLSec <= 0 {
		cfg.Notify.Push.WebPush.TTLSec = defaultWebPushTTLSec
	}
	if strings.TrimSpace(cfg.Notify.Push.Telegram.APIBase) == "" {
		cfg.Notify.Push.Telegram.APIBase = defaultTelegramAPIBase
	}
}

// validateConfig validates config snapshot invariants.
// Params: config after defaults.
// Returns: validation error.
func validateConfig(cfg Config) error {
	switch cfg.History.Backend {
	case HistoryBackendDatabase, HistoryBackendMemory, HistoryBackendNATS:
	default:
		return fmt.Errorf("history.backend has unsupported value %q", cfg.History.Backend)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if usesNATS(cfg) {
		for i, url := range cfg.NATS.URL {
			if url == "" {
				return fmt.Errorf("nats.url[%d] is empty", i)
			}
		}
	}
	if cfg.Service.ScanConcurrency > len(domain.AllKinds()) {
		return fmt.Errorf("service.scan_concurrency must be <=%d", len(domain.AllKinds()))
	}
	for _, path := range []struct{ key, value string }{
		{"http.health_path", cfg.HTTP.HealthPath},
		{"http.ready_path", cfg.HTTP.ReadyPath},
		{"http.metrics_path", cfg.HTTP.MetricsPath},
	} {
		if !strings.HasPrefix(path.value, "/") {
			return fmt.Errorf("%s must start with /", path.key)
		}
	}

	if err := validateSchedule(cfg.Schedule); err != nil {
		return err
	}

	for _, kind := range domain.AllKinds() {
		if cfg.Alerts.Cooldown.For(kind) <= 0 {
			return fmt.Errorf("alerts.cooldown.%s_sec must be >0", kind)
		}
	}
	if err := validateHistoryRetention(cfg.History, cfg.Alerts.Cooldown); err != nil {
		return err
	}

	if err := validateEmail(cfg.Notify.Email); err != nil {
		return err
	}
	return validatePush(cfg.Notify.Push)
}

// validateHistoryRetention requires memory and NATS marks to outlive the longest cooldown.
// The database backend keeps marks as notification rows and ignores retention.
func validateHistoryRetention(history HistoryConfig, cooldown CooldownConfig) error {
	if history.Backend == HistoryBackendDatabase {
		return nil
	}
	retention := time.Duration(history.RetentionSec) * time.Second
	for _, kind := range domain.AllKinds() {
		if limit := cooldown.For(kind); retention < limit {
			return fmt.Errorf("history.retention_sec must be >= %s cooldown (%d)", kind, int64(limit/time.Second))
		}
	}
	return nil
}

// validateSchedule checks every configured cron expression.
func validateSchedule(schedule ScheduleConfig) error {
	if schedule.Disabled {
		return nil
	}
	if expr := strings.TrimSpace(schedule.RunAll); expr != "" {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("schedule.run_all: %w", err)
		}
	}
	for _, kind := range domain.AllKinds() {
		expr := schedule.KindExpr(kind)
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("schedule.%s: %w", kind, err)
		}
	}
	return nil
}

// validateEmail checks SMTP transport and template syntax.
func validateEmail(email EmailConfig) error {
	if email.Enabled {
		if strings.TrimSpace(email.Host) == "" {
			return errors.New("notify.email.host is required when notify.email.enabled=true")
		}
		if strings.TrimSpace(email.From) == "" {
			return errors.New("notify.email.from is required when notify.email.enabled=true")
		}
		if (email.Username == "") != (email.Password == "") {
			return errors.New("notify.email.username and notify.email.password must be set together")
		}
	}
	names := make([]string, 0, len(email.Template))
	for name := range email.Template {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		kind, err := domain.ParseConditionKind(name)
		if err != nil {
			return fmt.Errorf("notify.email.template.%s: %w", name, err)
		}
		tpl := email.Template[name]
		if tpl.Subject != "" {
			if _, err := templatefmt.ParseNotificationTemplate(string(kind)+".subject", tpl.Subject); err != nil {
				return fmt.Errorf("notify.email.template.%s.subject: %w", name, err)
			}
		}
		if tpl.Body != "" {
			if _, err := templatefmt.ParseNotificationTemplate(string(kind)+".body", tpl.Body); err != nil {
				return fmt.Errorf("notify.email.template.%s.body: %w", name, err)
			}
		}
	}
	return nil
}

// validatePush checks push transport credentials.
func validatePush(push PushConfig) error {
	webPush := push.WebPush
	hasPublic := strings.TrimSpace(webPush.VAPIDPublicKey) != ""
	hasPrivate := strings.TrimSpace(webPush.VAPIDPrivateKey) != ""
	if hasPublic != hasPrivate {
		return errors.New("notify.push.webpush.vapid_public_key and vapid_private_key must be set together")
	}
	switch strings.ToLower(strings.TrimSpace(webPush.Urgency)) {
	case "", "very-low", "low", "normal", "high":
	default:
		return fmt.Errorf("notify.push.webpush.urgency has unsupported value %q", webPush.Urgency)
	}
	if push.Enabled && !webPush.Enabled() && !push.Telegram.Enabled() {
		return errors.New("notify.push.enabled=true requires webpush VAPID keys or telegram bot_token")
	}
	for i, id := range push.Subscribers {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("notify.push.subscribers[%d] is empty", i)
		}
	}
	return nil
}

// usesNATS reports whether any enabled component needs a NATS connection.
func usesNATS(cfg Config) bool {
	return cfg.History.Backend == HistoryBackendNATS || cfg.Feed.Enabled || cfg.Trigger.Enabled
}

func hasKindSchedule(schedule ScheduleConfig) bool {
	for _, kind := range domain.AllKinds() {
		if schedule.KindExpr(kind) != "" {
			return true
		}
	}
	return false
}

// normalizeNATSURLs trims spaces around each configured NATS URL.
// Params: raw URL list from config.
// Returns: normalized URL list preserving element count for validation.
func normalizeNATSURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, len(urls))
	for i := range urls {
		out[i] = strings.TrimSpace(urls[i])
	}
	return out
}
