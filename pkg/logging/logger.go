// Package logging wraps log/slog behind a small interface so estimator
// components can be handed a scoped logger and tests can silence output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Logger interface for dependency injection and testing
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
	SetLevel(level slog.Level)
}

// Config holds logger configuration
type Config struct {
	Level   slog.Level
	Format  Format
	Output  io.Writer
	AddTime bool
}

// Format represents the output format
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

const (
	envDebugFile  = "TOKENEST_DEBUG_FILE"
	envDebugLevel = "TOKENEST_DEBUG_LEVEL"
)

type slogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config Config) Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	level := new(slog.LevelVar)
	level.Set(config.Level)
	opts := &slog.HandlerOptions{Level: level}

	if !config.AddTime {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		}
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &slogLogger{logger: slog.New(handler), level: level}
}

// NewDefaultLogger creates a logger with sensible defaults for CLI tools
func NewDefaultLogger() Logger {
	return NewLogger(Config{Level: slog.LevelInfo, Format: FormatText, Output: os.Stderr})
}

// NewQuietLogger creates a logger that only shows errors
func NewQuietLogger() Logger {
	return NewLogger(Config{Level: slog.LevelError, Format: FormatText, Output: os.Stderr})
}

// NewVerboseLogger creates a logger that shows debug information
func NewVerboseLogger() Logger {
	return NewLogger(Config{Level: slog.LevelDebug, Format: FormatText, Output: os.Stderr})
}

// NewDisabledLogger creates a logger that discards all output (useful for tests)
func NewDisabledLogger() Logger {
	return NewLogger(Config{Level: slog.Level(1000), Format: FormatText, Output: io.Discard})
}

// ParseLevel maps a level name to a slog level, defaulting to error.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// GetDebugFilePath returns the debug file path from TOKENEST_DEBUG_FILE or a
// file under the temp directory.
func GetDebugFilePath(defaultFileName string) string {
	if debugFile := os.Getenv(envDebugFile); debugFile != "" {
		return debugFile
	}
	return filepath.Join(os.TempDir(), defaultFileName)
}

// NewFileLoggerFromEnv creates a file logger whose level comes from
// TOKENEST_DEBUG_LEVEL. Output is discarded when the file cannot be opened.
func NewFileLoggerFromEnv(defaultFileName string) Logger {
	level := ParseLevel(os.Getenv(envDebugLevel))
	file, err := os.OpenFile(GetDebugFilePath(defaultFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return NewLogger(Config{Level: level, Format: FormatText, Output: io.Discard})
	}
	return NewLogger(Config{Level: level, Format: FormatText, Output: file, AddTime: true})
}

func (l *slogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *slogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *slogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *slogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// With returns a logger with additional attributes. The level is shared with
// the parent.
func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...), level: l.level}
}

// WithGroup returns a logger with a group name
func (l *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{logger: l.logger.WithGroup(name), level: l.level}
}

// SetLevel updates the logger's level dynamically
func (l *slogLogger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

var globalLogger = NewDefaultLogger()

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger Logger) {
	globalLogger = logger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	return globalLogger
}

// NewComponentLogger scopes the global logger to one estimator component.
func NewComponentLogger(component string) Logger {
	return globalLogger.With("component", component)
}

// OrDisabled returns l, or a disabled logger when l is nil.
func OrDisabled(l Logger) Logger {
	if l == nil {
		return NewDisabledLogger()
	}
	return l
}
