// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// GenesisHash is the initial hash value for the first record in the chain.
// This allows verification that the chain starts from a known state.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// auditLogFileMode restricts read/write to owner only (0600).
//
// # Security Rationale
//
// The session log contains user questions, generated SQL, and query
// answers. Questions and answers can reveal business data; restricting
// to owner-only access prevents other system users from reading it.
const auditLogFileMode = 0600

// ChainedRecord is a SessionRecord linked into the hash chain.
//
// # Hash Chain
//
// Each record carries the hash of the previous record. Modifying or
// removing any line breaks verification of every later line.
type ChainedRecord struct {
	Sequence int64 `json:"sequence"`
	SessionRecord
	PrevHash  string `json:"prev_hash"`
	EntryHash string `json:"entry_hash"`
}

// SessionLog is a Sink writing tamper-evident JSONL to a local file.
//
// # Fields
//
//   - logFile: Handle to the audit log file, append-only.
//   - fileMu: Mutex serializing writes and chain-state updates.
//   - sequence: Monotonically increasing record number.
//   - prevHash: Hash of the previous entry.
//
// # Thread Safety
//
// All methods are thread-safe. File writes are serialized via mutex.
type SessionLog struct {
	logFile  *os.File
	logPath  string
	fileMu   sync.Mutex
	sequence int64
	prevHash string
}

// NewSessionLog opens (or creates) the audit file and resumes the hash
// chain from its last entry.
//
// # Inputs
//
//   - logPath: Path to the audit file. Created if not exists.
//
// # Outputs
//
//   - *SessionLog: Ready to use sink.
//   - error: Non-nil if the file cannot be opened or the existing chain
//     state cannot be read.
//
// # Limitations
//
//   - Rotation is driven externally; call ReopenLogFile after the old
//     file has been moved aside. Verification after rotation requires
//     preserving old files.
func NewSessionLog(logPath string) (*SessionLog, error) {
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, auditLogFileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log file: %w", err)
	}

	log := &SessionLog{
		logFile:  file,
		logPath:  logPath,
		prevHash: GenesisHash,
	}

	if err := log.initializeChainState(logPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to initialize chain state: %w", err)
	}

	slog.Info("Session audit log initialized",
		"log_path", logPath,
		"starting_sequence", log.sequence,
	)
	return log, nil
}

// Name implements Sink.
func (l *SessionLog) Name() string {
	return "session_log"
}

// Write implements Sink. The record is linked to the chain and flushed
// as one JSON line.
func (l *SessionLog) Write(ctx context.Context, record SessionRecord) error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	l.sequence++
	chained := ChainedRecord{
		Sequence:      l.sequence,
		SessionRecord: record,
		PrevHash:      l.prevHash,
	}
	chained.EntryHash = computeRecordHash(chained)

	line, err := json.Marshal(chained)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	if _, err := l.logFile.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	l.prevHash = chained.EntryHash
	return nil
}

// ReopenLogFile closes and reopens the log file at the same path.
//
// # Description
//
// Supports external log rotation (e.g., logrotate) by closing the
// current file handle and opening a new one after the old file has been
// moved aside. The chain state (sequence, prevHash) is preserved in
// memory, so records in the new file continue the chain.
//
// # Limitations
//
//   - Chain verification across rotated files requires processing the
//     files in chronological order externally.
func (l *SessionLog) ReopenLogFile() error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.logFile != nil {
		if err := l.logFile.Close(); err != nil {
			slog.Warn("Error closing old session log file during rotation",
				"path", l.logPath,
				"error", err,
			)
		}
		l.logFile = nil
	}

	file, err := os.OpenFile(l.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, auditLogFileMode)
	if err != nil {
		return fmt.Errorf("failed to reopen session log file: %w", err)
	}
	l.logFile = file

	slog.Info("Reopened session audit log file",
		"path", l.logPath,
		"sequence", l.sequence,
	)
	return nil
}

// Close implements Sink.
func (l *SessionLog) Close() error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()
	return l.logFile.Close()
}

// initializeChainState reads the last entry of an existing file so new
// records continue the chain instead of restarting it.
func (l *SessionLog) initializeChainState(logPath string) error {
	file, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var last *ChainedRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record ChainedRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("existing audit log is corrupt: %w", err)
		}
		last = &record
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if last != nil {
		l.sequence = last.Sequence
		l.prevHash = last.EntryHash
	}
	return nil
}

// VerifyChain replays a session log file and checks every hash link.
//
// # Outputs
//
//   - int: Number of valid records verified.
//   - error: Non-nil at the first broken link or malformed line.
func VerifyChain(logPath string) (int, error) {
	file, err := os.Open(logPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open session log: %w", err)
	}
	defer file.Close()

	verified := 0
	prevHash := GenesisHash
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var record ChainedRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return verified, fmt.Errorf("malformed record after %d valid entries: %w", verified, err)
		}
		if record.PrevHash != prevHash {
			return verified, fmt.Errorf("chain break at sequence %d: prev_hash mismatch", record.Sequence)
		}
		expected := computeRecordHash(record)
		if record.EntryHash != expected {
			return verified, fmt.Errorf("chain break at sequence %d: entry_hash mismatch", record.Sequence)
		}
		prevHash = record.EntryHash
		verified++
	}
	if err := scanner.Err(); err != nil {
		return verified, err
	}
	return verified, nil
}

// computeRecordHash hashes the record with EntryHash cleared.
func computeRecordHash(record ChainedRecord) string {
	record.EntryHash = ""
	payload, _ := json.Marshal(record)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

var _ Sink = (*SessionLog)(nil)
