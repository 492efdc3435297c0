// Package observability provides structured logging for the application.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// StoreLogger provides structured logging for remote store operations.
type StoreLogger struct {
	backend string
	logger  *Logger
}

// NewStoreLogger creates a StoreLogger for the given store backend.
func NewStoreLogger(backend string) *StoreLogger {
	return &StoreLogger{backend: backend, logger: GlobalLogger}
}

// LogWrite logs a store write (or removal, when removed is true).
func (l *StoreLogger) LogWrite(ctx context.Context, path string, removed bool) {
	op := "write"
	if removed {
		op = "remove"
	}
	StoreOperationsTotal.WithLabelValues(l.backend, op).Inc()
	l.logger.InfoContext(ctx, "store write",
		slog.String("backend", l.backend),
		slog.String("path", path),
		slog.Bool("removed", removed),
	)
}

// LogRead logs a one-shot store read.
func (l *StoreLogger) LogRead(ctx context.Context, path string, found bool) {
	StoreOperationsTotal.WithLabelValues(l.backend, "read").Inc()
	l.logger.InfoContext(ctx, "store read",
		slog.String("backend", l.backend),
		slog.String("path", path),
		slog.Bool("found", found),
	)
}

// LogSubscribe logs listener registration and release.
func (l *StoreLogger) LogSubscribe(ctx context.Context, path string, active bool) {
	if active {
		StoreSubscriptions.WithLabelValues(l.backend).Inc()
	} else {
		StoreSubscriptions.WithLabelValues(l.backend).Dec()
	}
	l.logger.InfoContext(ctx, "store subscription",
		slog.String("backend", l.backend),
		slog.String("path", path),
		slog.Bool("active", active),
	)
}

// LogError logs a store error.
func (l *StoreLogger) LogError(ctx context.Context, path, operation string, err error) {
	StoreErrorsTotal.WithLabelValues(l.backend, operation).Inc()
	l.logger.ErrorContext(ctx, "store error",
		slog.String("backend", l.backend),
		slog.String("path", path),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// WSLogger provides structured logging for WebSocket operations.
type WSLogger struct {
	hubName string
	logger  *Logger
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hubName string) *WSLogger {
	return &WSLogger{hubName: hubName, logger: GlobalLogger}
}

// LogConnect logs a WebSocket connection event.
func (l *WSLogger) LogConnect(ctx context.Context, uid string) {
	l.logger.InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.String("uid", uid),
	)
}

// LogDisconnect logs a WebSocket disconnection event.
func (l *WSLogger) LogDisconnect(ctx context.Context, uid string, reason string) {
	l.logger.InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.String("uid", uid),
		slog.String("reason", reason),
	)
}

// LogError logs a WebSocket error event.
func (l *WSLogger) LogError(ctx context.Context, uid string, err error, eventType string) {
	l.logger.ErrorContext(ctx, "websocket error",
		slog.String("hub", l.hubName),
		slog.String("uid", uid),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}

// MirrorLogger provides structured logging for mirror lifecycle events.
type MirrorLogger struct {
	name   string
	logger *Logger
}

// NewMirrorLogger creates a MirrorLogger for the named mirror.
func NewMirrorLogger(name string) *MirrorLogger {
	return &MirrorLogger{name: name, logger: GlobalLogger}
}

// LogLifecycle logs a mirror lifecycle event (start, stop, resync).
func (l *MirrorLogger) LogLifecycle(ctx context.Context, event string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("mirror", l.name),
		slog.String("event", event),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.InfoContext(ctx, "mirror lifecycle", attrs...)
}

// LogError logs a mirror error.
func (l *MirrorLogger) LogError(ctx context.Context, operation string, err error) {
	l.logger.ErrorContext(ctx, "mirror error",
		slog.String("mirror", l.name),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
