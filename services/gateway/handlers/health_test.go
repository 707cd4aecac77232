// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

func performGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

// TestHandleHealthz covers the healthy and unhealthy database paths.
func TestHandleHealthz(t *testing.T) {
	healthy := gin.New()
	healthy.GET("/healthz", HandleHealthz(&mockPinger{}))
	recorder := performGet(healthy, "/healthz")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"status":"ok"`)

	unhealthy := gin.New()
	unhealthy.GET("/healthz", HandleHealthz(&mockPinger{err: errors.New("login failed")}))
	recorder = performGet(unhealthy, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "login failed")
}

// TestHandleReadyz verifies readiness is unconditional once serving.
func TestHandleReadyz(t *testing.T) {
	router := gin.New()
	router.GET("/readyz", HandleReadyz())
	recorder := performGet(router, "/readyz")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"status":"ready"`)
}

// TestHandleVersion verifies the version payload.
func TestHandleVersion(t *testing.T) {
	router := gin.New()
	router.GET("/version", HandleVersion("1.2.3"))
	recorder := performGet(router, "/version")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"version":"1.2.3"`)
}
