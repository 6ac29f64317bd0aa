package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DBLogger persists audit events to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger
func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db}
}

// EnsureSchema creates the audit_events table if it does not exist
func (l *DBLogger) EnsureSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			event_type VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL,
			user_id VARCHAR(255),
			agency_id VARCHAR(255),
			resource VARCHAR(100),
			action VARCHAR(50),
			client_id VARCHAR(255),
			reason TEXT,
			request_id VARCHAR(255),
			method VARCHAR(10),
			path TEXT,
			metadata JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_events_agency_id ON audit_events(agency_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_user_id ON audit_events(user_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create audit_events table: %w", err)
	}
	return nil
}

// Log inserts the event into the audit trail
func (l *DBLogger) Log(event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var metadataArg interface{}
	if event.Metadata != nil {
		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		metadataArg = metadataJSON
	}

	query := `
		INSERT INTO audit_events (timestamp, event_type, status, user_id, agency_id, resource, action, client_id, reason, request_id, method, path, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := l.db.QueryRow(query,
		event.Timestamp,
		event.EventType,
		event.Status,
		nullIfEmpty(event.UserID),
		nullIfEmpty(event.AgencyID),
		nullIfEmpty(event.Resource),
		nullIfEmpty(event.Action),
		nullIfEmpty(event.ClientID),
		nullIfEmpty(event.Reason),
		nullIfEmpty(event.RequestID),
		nullIfEmpty(event.Method),
		nullIfEmpty(event.Path),
		metadataArg,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Cleanup removes events older than the retention window, returning the
// number of rows deleted.
func (l *DBLogger) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE timestamp < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit events: %w", err)
	}
	return result.RowsAffected()
}

// Close is a no-op; the caller owns the database handle
func (l *DBLogger) Close() error {
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
