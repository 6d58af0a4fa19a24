// Package log provides logging for lastfm-rp.
package log

import (
	"log/slog"
	"os"
)

// Logger defines the interface for logging operations.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps slog.Logger to implement our Logger interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) {
	s.logger.Debug(msg, args...)
}

// Info logs an info message.
func (s *SlogAdapter) Info(msg string, args ...any) {
	s.logger.Info(msg, args...)
}

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) {
	s.logger.Warn(msg, args...)
}

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) {
	s.logger.Error(msg, args...)
}

// NewLogger creates a new logger with the specified verbosity.
// Output goes to stderr so the journal picks it up when running as a unit.
func NewLogger(verbose bool) Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if verbose {
		opts.Level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, opts)

	return &SlogAdapter{logger: slog.New(handler)}
}

var defaultLogger Logger

// GetLogger returns the default logger instance.
func GetLogger() Logger {
	if defaultLogger == nil {
		defaultLogger = NewLogger(false)
	}
	return defaultLogger
}

// Init initializes the default logger with the specified verbosity.
// This function should be called once at application startup.
func Init(verbose bool) {
	defaultLogger = NewLogger(verbose)
}

// NewSlogAdapter creates a Logger from an slog.Logger.
func NewSlogAdapter(slogLogger *slog.Logger) Logger {
	return &SlogAdapter{logger: slogLogger}
}
