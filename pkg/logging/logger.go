// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides the structured logger shared by banditlab's
// command line and services.
//
// A Logger wraps log/slog and fans each record out to up to three
// destinations:
//
//	stderr    text or JSON, unless Quiet
//	file      {Service}_{YYYY-MM-DD}.log in LogDir, always JSON
//	exporter  an optional LogExporter that receives every entry
//
// Library packages accept a plain *slog.Logger; obtain one with Slog so that
// their records reach every destination too.
//
// Basic usage:
//
//	logger := logging.New(logging.Config{Level: logging.LevelInfo, Service: "banditlab"})
//	defer logger.Close()
//	logger.Info("run finished", "algorithm", "thompson_sampling", "trials", 10000)
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity. Messages below the configured level are
// dropped.
type Level int

const (
	// LevelDebug is for per-trial and per-arm detail.
	LevelDebug Level = iota

	// LevelInfo is for run lifecycle events.
	LevelInfo

	// LevelWarn is for recoverable problems such as an interrupted run.
	LevelWarn

	// LevelError is for failed operations.
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

func fromSlogLevel(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}

// ParseLevel parses a level name as written in config files and the
// BANDITLAB_LOG_LEVEL environment variable.
//
// Description:
//
//	Matching is case-insensitive and "warning" is accepted for LevelWarn.
//	The empty string parses as LevelInfo.
//
// Outputs:
//   - Level: The parsed level.
//   - error: Non-nil for unknown names.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures a Logger. The zero value writes Info and above to
// stderr as text.
type Config struct {
	// Level is the minimum level. Default: LevelInfo.
	Level Level

	// LogDir enables file logging. "~" expands to the home directory and
	// the directory is created with 0750 permissions.
	LogDir string

	// Service is attached to every record as the "service" attribute.
	Service string

	// JSON switches the stderr handler to JSON. File output is always JSON.
	JSON bool

	// Quiet disables the stderr handler.
	Quiet bool

	// Output replaces stderr as the console destination. Used by tests and
	// by the CLI when it redirects diagnostics.
	Output io.Writer

	// Exporter receives every record synchronously after formatting.
	Exporter LogExporter
}

// =============================================================================
// Export Interface
// =============================================================================

// LogExporter receives log entries for forwarding outside the process.
//
// Export is called on the logging goroutine, so implementations must not
// block for long. Flush and Close run once, in that order, from
// Logger.Close.
type LogExporter interface {
	Export(ctx context.Context, entry LogEntry) error
	Flush(ctx context.Context) error
	Close() error
}

// LogEntry is the exported form of one record.
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Service   string

	// Attrs holds the record's attributes, including those added with
	// Logger.With. Grouped attributes use dotted keys.
	Attrs map[string]any
}

// =============================================================================
// Logger
// =============================================================================

// Logger is a multi-destination structured logger.
//
// Thread Safety: Logger is safe for concurrent use. Close must be called
// once all logging has finished.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *os.File
	owner  bool
	mu     sync.Mutex
}

// New creates a Logger from config.
//
// Description:
//
//	If LogDir cannot be created or the day's log file cannot be opened, a
//	warning is written to the console and the logger carries on without
//	file output.
func New(config Config) *Logger {
	level := config.Level.toSlogLevel()
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler

	if !config.Quiet {
		out := config.Output
		if out == nil {
			out = os.Stderr
		}
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(out, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(out, opts))
		}
	}

	l := &Logger{config: config, owner: true}

	if config.LogDir != "" {
		f, err := openLogFile(config.LogDir, config.Service)
		if err != nil {
			fmt.Fprintf(consoleOf(config), "banditlab: file logging disabled: %v\n", err)
		} else {
			l.file = f
			handlers = append(handlers, slog.NewJSONHandler(f, opts))
		}
	}

	if config.Exporter != nil {
		handlers = append(handlers, &exportHandler{
			exporter: config.Exporter,
			service:  config.Service,
			level:    level,
		})
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.DiscardHandler
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	l.slog = slog.New(handler)
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(Config{Quiet: true})
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, args ...any) { l.slog.Info(msg, args...) }

// Warn logs at LevelWarn.
func (l *Logger) Warn(msg string, args ...any) { l.slog.Warn(msg, args...) }

// Error logs at LevelError.
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child logger that adds args to every record. The child
// shares destinations with its parent; closing it is a no-op.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
	}
}

// Slog returns the underlying *slog.Logger for packages that take one.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes the exporter and closes the log file. Safe to call more
// than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.owner {
		return nil
	}
	l.owner = false

	var errs []error
	if exp := l.config.Exporter; exp != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := exp.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		cancel()
		if err := exp.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
		l.file = nil
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// FilePath returns the path of the current log file, or "" when file
// logging is off.
func (l *Logger) FilePath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

func openLogFile(dir, service string) (*os.File, error) {
	dir = expandPath(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := service
	if name == "" {
		name = "banditlab"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", name, time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func consoleOf(config Config) io.Writer {
	if config.Output != nil {
		return config.Output
	}
	return os.Stderr
}

// =============================================================================
// Handlers
// =============================================================================

// multiHandler fans records out to several handlers.
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
			if err := handler.Handle(ctx, r.Clone()); err != nil {
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

// exportHandler converts records to LogEntry values for a LogExporter.
// Export errors are dropped so that a failing exporter never breaks logging.
type exportHandler struct {
	exporter LogExporter
	service  string
	level    slog.Level
	attrs    []slog.Attr
	group    string
}

func (h *exportHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *exportHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		flatten(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, h.group, a)
		return true
	})
	delete(attrs, "service")

	_ = h.exporter.Export(ctx, LogEntry{
		Timestamp: r.Time,
		Level:     fromSlogLevel(r.Level),
		Message:   r.Message,
		Service:   h.service,
		Attrs:     attrs,
	})
	return nil
}

func (h *exportHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *exportHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		next.group = h.group + "." + name
	} else {
		next.group = name
	}
	return &next
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			flatten(dst, key, ga)
		}
		return
	}
	dst[key] = v.Any()
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
