package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	// Verbosity selects the console level: 0 warn, 1 info, 2 or more debug.
	Verbosity int
	// Console receives human-facing records; nil means stderr.
	Console io.Writer
	// File, when set, receives every record at debug level and rotates.
	File string
}

// Logger writes structured records to the console and, optionally, a log file.
type Logger struct {
	*slog.Logger
	Path string
	file *lumberjack.Logger
}

// NewLogger initializes console and file logging
func NewLogger(opts LoggerOptions) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: ConsoleLevel(opts.Verbosity)}),
	}

	l := &Logger{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		l.Path = opts.File
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		handlers = append(handlers, slog.NewTextHandler(l.file, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	l.Logger = slog.New(teeHandler(handlers))
	return l, nil
}

// ConsoleLevel maps a -v count to a level.
func ConsoleLevel(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return slog.LevelWarn
	case verbosity == 1:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// Component returns a logger tagged with a component attribute.
func (l *Logger) Component(name string) *slog.Logger {
	return l.With(slog.String("component", name))
}

// Infof logs an informational message
func (l *Logger) Infof(format string, v ...any) {
	l.Info(fmt.Sprintf(format, v...))
}

// Errorf logs an error message
func (l *Logger) Errorf(format string, v ...any) {
	l.Error(fmt.Sprintf(format, v...))
}

// Close closes the log file when done
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// teeHandler sends each record to every handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
