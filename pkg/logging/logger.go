// Copyright (C) 2025 Kestrel Edge Systems (engineering@kestreledge.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for Kestrel components.
//
// The package is a thin layer over the standard library slog package with a
// project-wide Config. Default output is stderr text, following CLI
// conventions; daemon-style components switch to JSON.
//
//	logger := logging.Default()
//	logger.Info("plan ingested", "core_ops", n)
//
// # Log Levels
//
// Four levels are supported, matching slog conventions: Debug for
// development troubleshooting, Info for normal operation, Warn for
// recoverable issues, Error for operation failures.
//
// # Thread Safety
//
// Logger is safe for concurrent use; the underlying slog handler serializes
// writes.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Level represents log severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for potentially problematic situations.
	LevelWarn

	// LevelError is for operation failures the system survives.
	LevelError
)

// String returns the human-readable name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures Logger behavior. The zero value logs Info and above to
// stderr in text format.
type Config struct {
	// Level sets the minimum log level. Messages below it are discarded.
	Level Level

	// Service identifies the component generating logs and is attached to
	// every entry as the "service" attribute.
	Service string

	// JSON switches output to machine-parseable JSON objects.
	JSON bool

	// Quiet discards all output. Used by tests and by tools whose stdout is
	// the product.
	Quiet bool

	// Output overrides the destination. Nil means stderr.
	Output io.Writer
}

// Logger is a leveled structured logger.
type Logger struct {
	slogger *slog.Logger
}

// New creates a Logger from the given Config.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Quiet {
		out = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slogger := slog.New(handler)
	if cfg.Service != "" {
		slogger = slogger.With("service", cfg.Service)
	}
	return &Logger{slogger: slogger}
}

// Default returns a Logger with the zero-value Config: Info level, stderr,
// text format.
func Default() *Logger {
	return New(Config{})
}

// With returns a Logger that includes the given attributes in every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slogger: l.slogger.With(args...)}
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(msg string, args ...any) { l.slogger.Debug(msg, args...) }

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, args ...any) { l.slogger.Info(msg, args...) }

// Warn logs at LevelWarn.
func (l *Logger) Warn(msg string, args ...any) { l.slogger.Warn(msg, args...) }

// Error logs at LevelError.
func (l *Logger) Error(msg string, args ...any) { l.slogger.Error(msg, args...) }
