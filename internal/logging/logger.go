package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"stockalert/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBlue   = "\x1b[34m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiRed    = "\x1b[31m"
	ansiGray   = "\x1b[90m"
	ansiPurple = "\x1b[35m"
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// tokenPattern lists highlighted attrs; earlier groups win at the same offset.
var tokenPattern = regexp.MustCompile(
	`(?P<kind>\bkind=(?:low_stock|out_of_stock|expiry|reorder)\b)` +
		`|(?P<severity>\bseverity=(?:critical|high|medium|low)\b)` +
		`|(?P<product>\bproduct_id=\S+)` +
		`|(?P<component>\bcomponent=\S+)` +
		`|(?P<quoted>"[^"\n]*")` +
		`|(?P<number>\b\d+(?:\.\d+)?\b)`,
)

var tokenColors = map[string]string{
	"kind":      ansiCyan,
	"severity":  ansiRed,
	"product":   ansiPurple,
	"component": ansiGray,
	"quoted":    ansiGreen,
	"number":    ansiBlue,
}

type sink struct {
	handler slog.Handler
	closer  io.Closer
}

type sinkBuilder struct {
	name  string
	cfg   config.LogSinkConfig
	build func(config.LogSinkConfig) (sink, error)
}

// New builds a logger for configured sinks and returns a cleanup function.
// Params: cfg contains console/file sink settings.
// Returns: slog logger, cleanup callback, and setup error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	builders := []sinkBuilder{
		{name: "console", cfg: cfg.Console, build: consoleSink},
		{name: "file", cfg: cfg.File, build: fileSink},
	}

	var sinks []sink
	for _, b := range builders {
		if !b.cfg.Enabled {
			continue
		}
		s, err := b.build(b.cfg)
		if err != nil {
			closeSinks(sinks)
			return nil, nil, fmt.Errorf("build %s log sink: %w", b.name, err)
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		return nil, nil, errors.New("no log sinks enabled")
	}

	cleanup := func() { closeSinks(sinks) }
	if len(sinks) == 1 {
		return slog.New(sinks[0].handler), cleanup, nil
	}
	handlers := make([]slog.Handler, 0, len(sinks))
	for _, s := range sinks {
		handlers = append(handlers, s.handler)
	}
	return slog.New(fanoutHandler(handlers)), cleanup, nil
}

func closeSinks(sinks []sink) {
	for _, s := range sinks {
		if s.closer != nil {
			_ = s.closer.Close()
		}
	}
}

// consoleSink writes to stdout without timestamps; line format gets ANSI highlighting.
func consoleSink(cfg config.LogSinkConfig) (sink, error) {
	var out io.Writer = os.Stdout
	if isLineFormat(cfg.Format) {
		out = &colorLineWriter{dst: os.Stdout}
	}
	handler, err := formatHandler(cfg, out, true)
	if err != nil {
		return sink{}, err
	}
	return sink{handler: handler}, nil
}

// fileSink writes to a lumberjack-rotated file.
func fileSink(cfg config.LogSinkConfig) (sink, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return sink{}, errors.New("file sink path is required")
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	handler, err := formatHandler(cfg, rotator, false)
	if err != nil {
		_ = rotator.Close()
		return sink{}, err
	}
	return sink{handler: handler, closer: rotator}, nil
}

// formatHandler picks text or json slog handler for a sink.
// Params: sink config, destination writer, and whether to drop the time attr.
// Returns: handler or level/format error.
func formatHandler(cfg config.LogSinkConfig, w io.Writer, dropTime bool) (slog.Handler, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if dropTime {
		opts.ReplaceAttr = func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) == 0 && attr.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return attr
		}
	}

	if isLineFormat(cfg.Format) {
		return slog.NewTextHandler(w, opts), nil
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		return slog.NewJSONHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
}

func isLineFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "line", "text":
		return true
	}
	return false
}

// parseLevel maps config text to slog level; empty means info.
func parseLevel(raw string) (slog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return slog.LevelInfo, nil
	}
	level, ok := levelNames[name]
	if !ok {
		return 0, fmt.Errorf("unsupported log level %q", raw)
	}
	return level, nil
}

// fanoutHandler sends every record to all sinks that accept its level.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}

// colorLineWriter paints one text record per Write call.
// slog text handlers issue exactly one Write per record.
type colorLineWriter struct {
	dst io.Writer
}

func (w *colorLineWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	base := levelColor(line)

	var b strings.Builder
	b.Grow(len(line) + 64)
	b.WriteString(base)
	last := 0
	for _, match := range tokenPattern.FindAllStringSubmatchIndex(line, -1) {
		b.WriteString(line[last:match[0]])
		b.WriteString(tokenColor(match))
		b.WriteString(line[match[0]:match[1]])
		b.WriteString(ansiReset)
		b.WriteString(base)
		last = match[1]
	}
	b.WriteString(line[last:])
	b.WriteString(ansiReset)
	b.WriteByte('\n')

	if _, err := io.WriteString(w.dst, b.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func tokenColor(match []int) string {
	names := tokenPattern.SubexpNames()
	for i := 1; i < len(names); i++ {
		if match[2*i] >= 0 {
			return tokenColors[names[i]]
		}
	}
	return ""
}

func levelColor(line string) string {
	switch {
	case strings.Contains(line, "level=ERROR"):
		return ansiRed
	case strings.Contains(line, "level=WARN"):
		return ansiYellow
	case strings.Contains(line, "level=DEBUG"):
		return ansiGray
	default:
		return ansiGreen
	}
}
