// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit persists per-session question/answer records.
//
// Two sinks ship with the service: a local tamper-evident JSONL file and
// an optional Azure Table Storage sink. Sinks are best-effort; a sink
// failure is logged and counted but never fails the request that
// produced the record.
package audit

import (
	"context"
	"time"
)

// SessionRecord is one completed ask interaction.
type SessionRecord struct {
	SessionID     string `json:"session_id"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	ExecutedQuery string `json:"executed_query"`
	Steps         int    `json:"steps"`
	TimestampUTC  string `json:"timestamp_utc"`
}

// NewSessionRecord stamps a record with the current UTC time.
func NewSessionRecord(sessionID, question, answer, executedQuery string, steps int) SessionRecord {
	return SessionRecord{
		SessionID:     sessionID,
		Question:      question,
		Answer:        answer,
		ExecutedQuery: executedQuery,
		Steps:         steps,
		TimestampUTC:  time.Now().UTC().Format(time.RFC3339),
	}
}

// Sink persists session records.
//
// # Thread Safety
//
// Implementations must be safe for concurrent Write calls.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Write persists one record.
	Write(ctx context.Context, record SessionRecord) error

	// Close releases sink resources.
	Close() error
}
