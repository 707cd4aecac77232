// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// AuditEvent is one security-relevant event in the ask pipeline.
//
// The gateway emits these alongside (not instead of) the session audit
// sinks: the sinks record completed sessions for the tamper-evident
// trail, while AuditEvents feed enterprise SIEM pipelines with
// finer-grained pipeline activity.
//
// # Event Types
//
// Events emitted by the gateway:
//   - "ask.question": a question was accepted for the agent loop
//   - "query.executed": the agent run completed and its SQL (if any)
//     was executed against the database
//   - "authz.denied": the AuthzProvider refused the request
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    "query.executed",
//	    Timestamp:    time.Now().UTC(),
//	    UserID:       authInfo.UserID,
//	    Action:       "execute",
//	    ResourceType: "query",
//	    Outcome:      "success",
//	    Metadata: map[string]any{
//	        "session_id":     sessionID,
//	        "executed_query": "SELECT COUNT(*) FROM Customers",
//	    },
//	}
type AuditEvent struct {
	// EventType categorizes the event, "category.action" form.
	EventType string

	// Timestamp is when the event occurred, always UTC. Implementations
	// should set it to time.Now().UTC() when zero.
	Timestamp time.Time

	// UserID identifies who asked. "local-user" under the no-op auth
	// provider, "anonymous" when unknown.
	UserID string

	// Action is the operation attempted: "ask", "execute".
	Action string

	// ResourceType is the kind of resource involved: "question",
	// "query", "table".
	ResourceType string

	// ResourceID names the specific resource when there is one, e.g. a
	// table name for a table-scoped authorization denial.
	ResourceID string

	// Outcome is "success", "failure", or "denied".
	Outcome string

	// Metadata carries event-specific detail. The gateway populates
	// "session_id" on every event, plus "executed_query" and "steps"
	// for query.executed.
	Metadata map[string]any
}

// AuditLogger receives pipeline audit events.
//
// Implementations must be safe for concurrent use, and Log must return
// quickly: the gateway calls it on the request path and treats failures
// as non-fatal (logged, never surfaced to the client). Enterprise
// implementations typically buffer and ship events to a SIEM; Flush is
// called once during graceful shutdown to drain that buffer.
type AuditLogger interface {
	// Log records one event. Implementations should stamp a zero
	// Timestamp before persisting.
	Log(ctx context.Context, event AuditEvent) error

	// Flush persists any buffered events. Sync implementations may
	// no-op.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events. The open source default: local
// deployments keep the session sinks, which need no SIEM.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

// Flush is a no-op; nothing is buffered.
func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

var _ AuditLogger = (*NopAuditLogger)(nil)
