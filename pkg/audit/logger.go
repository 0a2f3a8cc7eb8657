package audit

import (
	"context"
	"time"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event *Event) error

	// LogRoleChange records a derived-role assignment or removal.
	LogRoleChange(ctx context.Context, eventType EventType, user string, role string, reason string) error

	// LogDenied records a refused operation or access denial.
	LogDenied(ctx context.Context, eventType EventType, actor, subject, reason string) error

	// Search returns events matching the filter, newest first.
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)

	// Close flushes any buffered events.
	Close() error
}

// contextKey is the type for context keys
type contextKey string

// loggerKey is the context key for the audit logger
const loggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the audit logger from context, or a no-op
// logger when none is set.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return &noOpLogger{}
}

// NopLogger returns a logger that drops every event.
func NopLogger() Logger {
	return &noOpLogger{}
}

type noOpLogger struct{}

func (l *noOpLogger) Log(context.Context, *Event) error { return nil }

func (l *noOpLogger) LogRoleChange(context.Context, EventType, string, string, string) error {
	return nil
}

func (l *noOpLogger) LogDenied(context.Context, EventType, string, string, string) error {
	return nil
}

func (l *noOpLogger) Search(context.Context, SearchFilter) ([]*Event, error) {
	return nil, nil
}

func (l *noOpLogger) Close() error { return nil }

// newEvent creates an event with the common fields populated.
func newEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Details:   make(map[string]interface{}),
	}
}
