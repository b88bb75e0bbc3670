package logging

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger adapts slog into gorm's logger interface.
// Params: base logger and slow query threshold.
// Returns: gorm logger writing warnings and errors through slog.
func GormLogger(logger *slog.Logger, slowThreshold time.Duration) gormlogger.Interface {
	return gormlogger.New(gormWriter{logger: logger.With("component", "gorm")}, gormlogger.Config{
		SlowThreshold:             slowThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

type gormWriter struct {
	logger *slog.Logger
}

// Printf forwards one formatted gorm line.
func (w gormWriter) Printf(format string, args ...interface{}) {
	line := strings.TrimSpace(fmt.Sprintf(format, args...))
	w.logger.Warn("gorm", "detail", line)
}

// CronLogger adapts slog into cron's logger interface.
// Params: base logger.
// Returns: cron logger; info messages go to debug level.
func CronLogger(logger *slog.Logger) cron.Logger {
	return cronLogger{logger: logger.With("component", "cron")}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{"error", errString(err)}, keysAndValues...)
	l.logger.Error(msg, args...)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
