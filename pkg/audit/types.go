package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypeAccessGranted     EventType = "authz.access_granted"
	EventTypeAccessDenied      EventType = "authz.access_denied"
	EventTypeOwnerBypass       EventType = "authz.owner_bypass"
	EventTypeClientAccessCheck EventType = "authz.client_access_check"
	EventTypeCheckError        EventType = "authz.check_error"

	// Grant administration events
	EventTypeGrantCreated EventType = "grants.created"
	EventTypeGrantRevoked EventType = "grants.revoked"
	EventTypeRoleAssigned EventType = "roles.assigned"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusGranted EventStatus = "granted"
	EventStatusDenied  EventStatus = "denied"
	EventStatusError   EventStatus = "error"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID   string `json:"user_id,omitempty"`
	AgencyID string `json:"agency_id,omitempty"`

	// What was checked
	Resource string `json:"resource,omitempty"`
	Action   string `json:"action,omitempty"`
	ClientID string `json:"client_id,omitempty"`

	// Why it resolved the way it did (fixed reason strings, never raw errors)
	Reason string `json:"reason,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// Logger records audit events. Implementations must be safe for
// concurrent use. Callers on the authorization path treat logging as
// fire-and-forget: a failed write never fails the request.
type Logger interface {
	Log(event *Event) error
	Close() error
}
