// Package logger builds the service's structured slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/pricechek-rider/pkg/config"
)

// Logger wraps slog.Logger with a runtime adjustable level and optional rotating file output.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
	file  *lumberjack.Logger
}

// New creates a Logger configured from cfg. Errors are forwarded to Sentry when it is enabled.
func New(cfg config.Config) *Logger {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Logger.Level))

	var (
		out  io.Writer = os.Stdout
		file *lumberjack.Logger
	)
	if cfg.Logger.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.Logger.File,
			MaxSize:    cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups,
			MaxAge:     cfg.Logger.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	base := slog.New(NewHandler(out, cfg, level)).With(
		slog.String("service", "pricechek-rider"),
		slog.String("env", cfg.AppEnv),
	)

	return &Logger{Logger: base, level: level, file: file}
}

// NewHandler builds the masking handler chain writing to out. With Sentry
// enabled, records at error level and above are also sent as Sentry events.
func NewHandler(out io.Writer, cfg config.Config, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	if cfg.Sentry.Enabled {
		sentryHandler := slogsentry.Option{Level: slog.LevelError}.NewSentryHandler()
		handler = slogmulti.Fanout(handler, sentryHandler)
	}

	return NewMaskingHandler(handler)
}

// SetLevel changes the minimum level of every record emitted through l.
func (l *Logger) SetLevel(level string) {
	l.level.Set(ParseLevel(level))
}

// Level reports the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Close flushes the rotating log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}

	return nil
}

// ParseLevel converts a textual level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
