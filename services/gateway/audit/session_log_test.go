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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecords(t *testing.T, log *SessionLog, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, log.Write(context.Background(), NewSessionRecord(
			"session-"+string(rune('a'+i)),
			"How many customers?",
			"There are 42 customers.",
			"SELECT COUNT(*) FROM Customers",
			3,
		)))
	}
}

// TestSessionLog_WriteAndVerify verifies the happy path: records chain
// from the genesis hash and the full file verifies.
func TestSessionLog_WriteAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.log")

	log, err := NewSessionLog(path)
	require.NoError(t, err)
	writeRecords(t, log, 3)
	require.NoError(t, log.Close())

	verified, err := VerifyChain(path)
	require.NoError(t, err)
	assert.Equal(t, 3, verified)

	// First record must link to the genesis hash.
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	scanner := bufio.NewScanner(file)
	require.True(t, scanner.Scan())
	var first ChainedRecord
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &first))
	assert.Equal(t, GenesisHash, first.PrevHash)
	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, "SELECT COUNT(*) FROM Customers", first.ExecutedQuery)
}

// TestSessionLog_ResumesChain verifies that reopening an existing log
// continues the chain instead of restarting it.
func TestSessionLog_ResumesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.log")

	log, err := NewSessionLog(path)
	require.NoError(t, err)
	writeRecords(t, log, 2)
	require.NoError(t, log.Close())

	reopened, err := NewSessionLog(path)
	require.NoError(t, err)
	writeRecords(t, reopened, 1)
	require.NoError(t, reopened.Close())

	verified, err := VerifyChain(path)
	require.NoError(t, err)
	assert.Equal(t, 3, verified)
}

// TestSessionLog_ReopenLogFile verifies rotation: after the old file is
// moved aside, new writes land in a fresh file that continues the chain.
func TestSessionLog_ReopenLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.log")

	log, err := NewSessionLog(path)
	require.NoError(t, err)
	writeRecords(t, log, 2)

	// Simulate logrotate: move the file, then reopen.
	require.NoError(t, os.Rename(path, filepath.Join(dir, "sessions.log.1")))
	require.NoError(t, log.ReopenLogFile())
	writeRecords(t, log, 1)
	require.NoError(t, log.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	scanner := bufio.NewScanner(file)
	require.True(t, scanner.Scan())
	var record ChainedRecord
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
	assert.Equal(t, int64(3), record.Sequence, "chain continues across rotation")
	assert.NotEqual(t, GenesisHash, record.PrevHash)
	assert.False(t, scanner.Scan(), "rotated file holds only post-rotation records")
}

// TestVerifyChain_DetectsTampering verifies that editing a record breaks
// verification.
func TestVerifyChain_DetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.log")

	log, err := NewSessionLog(path)
	require.NoError(t, err)
	writeRecords(t, log, 3)
	require.NoError(t, log.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "There are 42 customers.", "There are 43 customers.", 1)
	require.NotEqual(t, string(raw), tampered, "tamper target must exist in the log")
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0600))

	verified, err := VerifyChain(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry_hash mismatch")
	assert.Equal(t, 0, verified)
}

// TestSessionLog_FilePermissions verifies the owner-only file mode.
func TestSessionLog_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.log")

	log, err := NewSessionLog(path)
	require.NoError(t, err)
	writeRecords(t, log, 1)
	require.NoError(t, log.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
