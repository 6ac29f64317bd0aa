package audit

import (
	"time"

	"github.com/tidewater/agencyhub/pkg/observability"
)

// SlogLogger emits audit events as structured log lines. It is the
// default sink when no database trail is configured.
type SlogLogger struct {
	logger *observability.Logger
}

// NewSlogLogger creates an audit logger backed by the structured logger
func NewSlogLogger(logger *observability.Logger) *SlogLogger {
	return &SlogLogger{
		logger: logger.WithField("component", "audit"),
	}
}

// Log writes the event as a single structured log line
func (l *SlogLogger) Log(event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	entry := l.logger.WithFields(map[string]interface{}{
		"event_type": string(event.EventType),
		"status":     string(event.Status),
		"user_id":    event.UserID,
		"agency_id":  event.AgencyID,
		"resource":   event.Resource,
		"action":     event.Action,
		"client_id":  event.ClientID,
		"reason":     event.Reason,
		"request_id": event.RequestID,
		"path":       event.Path,
	})

	if event.Status == EventStatusError {
		entry.Error("audit event")
	} else {
		entry.Info("audit event")
	}
	return nil
}

// Close is a no-op for the log-backed sink
func (l *SlogLogger) Close() error {
	return nil
}
