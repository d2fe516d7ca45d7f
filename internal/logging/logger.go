// Package logging provides the structured logger used across kbdebug.
//
// It wraps log/slog behind a small Logger interface carrying a component name
// and persistent fields, so packages log with context without depending on a
// concrete handler.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levels = [...]struct {
	name string
	slog slog.Level
}{
	LevelDebug: {"DEBUG", slog.LevelDebug},
	LevelInfo:  {"INFO", slog.LevelInfo},
	LevelWarn:  {"WARN", slog.LevelWarn},
	LevelError: {"ERROR", slog.LevelError},
}

func (l LogLevel) valid() bool { return l >= LevelDebug && l <= LevelError }

func (l LogLevel) String() string {
	if !l.valid() {
		return "UNKNOWN"
	}
	return levels[l].name
}

func (l LogLevel) slogLevel() slog.Level {
	if !l.valid() {
		return slog.LevelInfo
	}
	return levels[l].slog
}

// ParseLevel converts "debug", "info", "warn" or "error" to a LogLevel.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger interface for structured logging
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// KBLogger implements Logger on top of a slog handler. Fields added with
// With live in the slog logger; the component is kept apart so
// WithComponent can replace it.
type KBLogger struct {
	base      *slog.Logger
	component string
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level     LogLevel
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	Component string

	// HandlerWrapper, when set, decorates the slog handler before use.
	HandlerWrapper func(slog.Handler) slog.Handler
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// NewLogger creates a new structured logger
func NewLogger(config *LoggerConfig) *KBLogger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     config.Level.slogLevel(),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	if config.HandlerWrapper != nil {
		handler = config.HandlerWrapper(handler)
	}

	return &KBLogger{base: slog.New(handler), component: config.Component}
}

// Nop returns a logger that discards everything.
func Nop() *KBLogger {
	return &KBLogger{base: slog.New(slog.DiscardHandler)}
}

func (l *KBLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelDebug, nil, msg, fields)
}

func (l *KBLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelInfo, nil, msg, fields)
}

func (l *KBLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelWarn, err, msg, fields)
}

func (l *KBLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelError, err, msg, fields)
}

// With returns a child logger carrying fields as key/value pairs.
func (l *KBLogger) With(fields ...interface{}) Logger {
	return &KBLogger{base: l.base.With(fields...), component: l.component}
}

// WithComponent returns a child logger tagged with component.
func (l *KBLogger) WithComponent(component string) Logger {
	return &KBLogger{base: l.base, component: component}
}

// Slog exposes the underlying slog logger, without the component tag.
func (l *KBLogger) Slog() *slog.Logger {
	return l.base
}

func (l *KBLogger) log(ctx context.Context, level slog.Level, err error, msg string, fields []interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.base.Enabled(ctx, level) {
		return
	}

	args := make([]interface{}, 0, len(fields)+4)
	if l.component != "" {
		args = append(args, "component", l.component)
	}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	args = append(args, fields...)

	l.base.Log(ctx, level, msg, args...)
}
