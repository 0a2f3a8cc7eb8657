package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypePermissionCheck EventType = "authz.permission_check"
	EventTypeAccessDenied    EventType = "authz.access_denied"
	EventTypeFilterBuilt     EventType = "authz.filter_built"

	// Role synchronization events
	EventTypeRoleAssigned    EventType = "rolesync.role_assigned"
	EventTypeRoleRemoved     EventType = "rolesync.role_removed"
	EventTypeSyncRefused     EventType = "rolesync.refused"
	EventTypeBulkSync        EventType = "rolesync.bulk_sync"

	// Security validation events
	EventTypeValidationRun     EventType = "validation.run"
	EventTypeValidationFinding EventType = "validation.finding"

	// Configuration events
	EventTypeSettingChange EventType = "config.setting_change"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit log entry.
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor is the user the event concerns; Subject is the record or
	// user acted upon.
	Actor     string `json:"actor,omitempty"`
	Subject   string `json:"subject,omitempty"`
	ChapterID string `json:"chapter_id,omitempty"`

	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToJSON converts the event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime  *time.Time
	EndTime    *time.Time
	Actor      string
	Subject    string
	EventTypes []EventType
	Status     *EventStatus
	Limit      int
	Offset     int
}
