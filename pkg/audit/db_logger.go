package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DBLogger persists audit events to the audit_events table.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger.
func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db}
}

// Log records an audit event. Missing ids and timestamps are filled
// in.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		e := newEvent(event.EventType, event.Status)
		event.Timestamp = e.Timestamp
	}

	details := "{}"
	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal event details: %w", err)
		}
		details = string(raw)
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, timestamp, event_type, actor, subject, chapter_id, success, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Timestamp, string(event.EventType), event.Actor, event.Subject,
		event.ChapterID, event.Status == EventStatusSuccess, details)
	if err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// LogRoleChange records a derived-role assignment or removal.
func (l *DBLogger) LogRoleChange(ctx context.Context, eventType EventType, user string, role string, reason string) error {
	event := newEvent(eventType, EventStatusSuccess)
	event.Actor = user
	event.Subject = role
	event.Message = reason
	event.Details["role"] = role
	event.Details["reason"] = reason
	return l.Log(ctx, event)
}

// LogDenied records a refused operation or access denial.
func (l *DBLogger) LogDenied(ctx context.Context, eventType EventType, actor, subject, reason string) error {
	event := newEvent(eventType, EventStatusDenied)
	event.Actor = actor
	event.Subject = subject
	event.Message = reason
	event.Details["reason"] = reason
	return l.Log(ctx, event)
}

// Search returns events matching the filter, newest first.
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StartTime != nil {
		conds = append(conds, "timestamp >= "+arg(*filter.StartTime))
	}
	if filter.EndTime != nil {
		conds = append(conds, "timestamp <= "+arg(*filter.EndTime))
	}
	if filter.Actor != "" {
		conds = append(conds, "actor = "+arg(filter.Actor))
	}
	if filter.Subject != "" {
		conds = append(conds, "subject = "+arg(filter.Subject))
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			placeholders[i] = arg(string(et))
		}
		conds = append(conds, "event_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Status != nil {
		conds = append(conds, "success = "+arg(*filter.Status == EventStatusSuccess))
	}

	query := `SELECT id, timestamp, event_type, actor, subject, chapter_id, success, details FROM audit_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT " + arg(limit)
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var eventType string
		var success bool
		var details string
		if err := rows.Scan(&e.ID, &e.Timestamp, &eventType, &e.Actor, &e.Subject,
			&e.ChapterID, &success, &details); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.EventType = EventType(eventType)
		if success {
			e.Status = EventStatusSuccess
		} else {
			e.Status = EventStatusDenied
		}
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				e.Details = map[string]interface{}{"raw": details}
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Close is a no-op; the caller owns the database handle.
func (l *DBLogger) Close() error { return nil }
