// Package audit records authorization decisions and grant administration
// events for the AgencyHub access-control layer.
//
// Every denial from the permission middleware and every per-client access
// check is recorded as an Event through the Logger interface. Sinks:
//
//   - SlogLogger: structured log lines (always available)
//   - DBLogger: PostgreSQL audit_events table
//   - MultiLogger: fan-out to both
//
// Audit logging on the request path is fire-and-forget: the middleware
// ignores sink errors, so a broken trail degrades visibility but never
// availability. The RetentionSweeper prunes the database trail on a cron
// schedule.
package audit
