// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging builds the slog handler stack for the sqlagent binary.
//
// The service logs through the standard library slog package; this
// package only assembles the destinations and owns the log file handle:
//
//   - stderr, text or JSON per Config.JSON
//   - an optional daily JSON file under Config.LogDir
//
// cmd/sqlagent installs the result as the process-wide default logger,
// so every package (gateway, agent, sqldb, audit) logs through it
// without importing this package:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  os.Getenv("LOG_DIR"),
//	    Service: "sqlagent",
//	    JSON:    true,
//	})
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
//
// # Security Considerations
//
// Nothing here redacts attribute values. Ask handlers log questions and
// executed SQL deliberately; callers must keep tokens and connection
// strings out of log attributes.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Level is the minimum severity a handler passes through.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
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

// toSlogLevel maps Level onto slog's levels. Unknown values fall back
// to Info rather than silencing or flooding the log.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures the handler stack. The zero value logs Info and
// above to stderr as text.
type Config struct {
	// Level is the minimum level; lower records are discarded.
	Level Level

	// LogDir, when set, additionally writes every record to a daily
	// file "{Service}_{YYYY-MM-DD}.log" in that directory. The file is
	// always JSON regardless of the JSON flag, and the directory is
	// created (0750) when missing. Supports ~ expansion. A directory
	// that cannot be created degrades to stderr-only logging.
	LogDir string

	// Service is stamped on every record as the "service" attribute so
	// aggregated logs can be filtered per component.
	Service string

	// JSON switches stderr output from human-readable text to JSON.
	JSON bool
}

// Logger owns the assembled slog.Logger and the optional file handle
// behind it.
//
// # Thread Safety
//
// The returned slog.Logger is safe for concurrent use. Close must not
// race with in-flight logging; call it only at process shutdown.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *os.File
}

// New assembles the handler stack for the given configuration.
//
// The caller is responsible for Close when LogDir is set, otherwise
// records buffered by the OS may be lost on exit.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var stderrHandler slog.Handler
	if config.JSON {
		stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		stderrHandler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := &Logger{config: config}
	handler := stderrHandler

	if config.LogDir != "" {
		if file, err := openDailyLogFile(config); err != nil {
			// Keep serving with stderr only; a missing log dir must not
			// take the service down.
			fmt.Fprintf(os.Stderr, "logging: file logging disabled: %v\n", err)
		} else {
			logger.file = file
			handler = &multiHandler{handlers: []slog.Handler{
				stderrHandler,
				slog.NewJSONHandler(file, opts),
			}}
		}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", config.Service),
		})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Slog returns the assembled slog.Logger, typically for
// slog.SetDefault in main.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file, when one is open.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// openDailyLogFile opens (or creates) today's log file under LogDir.
func openDailyLogFile(config Config) (*os.File, error) {
	logDir := expandPath(config.LogDir)
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	serviceName := config.Service
	if serviceName == "" {
		serviceName = "sqlagent"
	}
	filename := fmt.Sprintf("%s_%s.log", serviceName, time.Now().Format("2006-01-02"))

	file, err := os.OpenFile(filepath.Join(logDir, filename),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// multiHandler fans each record out to stderr and the log file, which
// carry different formats and may carry different levels.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
