// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSQL/pkg/extensions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// tokenProvider authenticates exactly one token.
type tokenProvider struct {
	accepted string
	gotToken string
}

func (p *tokenProvider) Validate(_ context.Context, token string) (*extensions.AuthInfo, error) {
	p.gotToken = token
	if token != p.accepted {
		return nil, fmt.Errorf("bad token: %w", extensions.ErrUnauthorized)
	}
	return &extensions.AuthInfo{UserID: "user-1", Roles: []string{"analyst"}}, nil
}

func performAuthed(provider extensions.AuthProvider, header string) (*httptest.ResponseRecorder, *extensions.AuthInfo) {
	var captured *extensions.AuthInfo
	router := gin.New()
	router.GET("/v1/ping", AuthMiddleware(provider), func(c *gin.Context) {
		captured = GetAuthInfo(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder, captured
}

// TestAuthMiddleware_ValidToken verifies AuthInfo reaches the handler.
func TestAuthMiddleware_ValidToken(t *testing.T) {
	provider := &tokenProvider{accepted: "secret-token"}

	recorder, info := performAuthed(provider, "Bearer secret-token")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "secret-token", provider.gotToken)
	require.NotNil(t, info)
	assert.Equal(t, "user-1", info.UserID)
	assert.True(t, info.HasRole("analyst"))
}

// TestAuthMiddleware_InvalidToken verifies 401 on rejection.
func TestAuthMiddleware_InvalidToken(t *testing.T) {
	provider := &tokenProvider{accepted: "secret-token"}

	recorder, info := performAuthed(provider, "Bearer wrong")

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "unauthorized")
	assert.Nil(t, info)
}

// TestAuthMiddleware_NopProvider verifies the open source default admits
// requests with no credentials at all.
func TestAuthMiddleware_NopProvider(t *testing.T) {
	recorder, info := performAuthed(&extensions.NopAuthProvider{}, "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	require.NotNil(t, info)
	assert.Equal(t, "local-user", info.UserID)
}

// TestExtractBearerToken covers header parsing edge cases.
func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard bearer", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer ABC123", "ABC123"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"no token", "Bearer", ""},
		{"whitespace trimmed", "Bearer  abc123 ", "abc123"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				c.Request.Header.Set("Authorization", tc.header)
			}
			assert.Equal(t, tc.want, extractBearerToken(c))
		})
	}
}
