// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultOptions verifies every extension point gets a no-op default.
func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.NotNil(t, opts.AuthProvider)
	assert.NotNil(t, opts.AuthzProvider)
	assert.NotNil(t, opts.AuditLogger)
}

// TestNopAuthProvider verifies any token authenticates as the admin
// local user.
func TestNopAuthProvider(t *testing.T) {
	provider := &NopAuthProvider{}

	for _, token := range []string{"", "any-token"} {
		info, err := provider.Validate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "local-user", info.UserID)
		assert.True(t, info.HasRole("admin"))
	}
}

// TestNopAuthzProvider verifies all actions are allowed.
func TestNopAuthzProvider(t *testing.T) {
	provider := &NopAuthzProvider{}
	err := provider.Authorize(context.Background(), AuthzRequest{
		User:         &AuthInfo{UserID: "anyone"},
		Action:       "execute",
		ResourceType: "query",
	})
	assert.NoError(t, err)
}

// TestNopAuditLogger verifies events are discarded without error.
func TestNopAuditLogger(t *testing.T) {
	logger := &NopAuditLogger{}
	ctx := context.Background()

	require.NoError(t, logger.Log(ctx, AuditEvent{EventType: "ask.question", UserID: "local-user"}))
	assert.NoError(t, logger.Flush(ctx))
}

// TestHasRole covers hit, miss, and empty role list.
func TestHasRole(t *testing.T) {
	info := &AuthInfo{UserID: "u", Roles: []string{"analyst", "viewer"}}
	assert.True(t, info.HasRole("viewer"))
	assert.False(t, info.HasRole("admin"))

	empty := &AuthInfo{UserID: "u"}
	assert.False(t, empty.HasRole("admin"))
}

// TestServiceOptions_With verifies the fluent setters return copies.
func TestServiceOptions_With(t *testing.T) {
	base := DefaultOptions()
	custom := &NopAuthProvider{}

	updated := base.WithAuth(custom)
	assert.Same(t, custom, updated.AuthProvider)
	assert.NotSame(t, base.AuthProvider, updated.AuthProvider)
}
