// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the gateway HTTP handlers.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSQL/pkg/extensions"
	"github.com/AleutianAI/AleutianSQL/services/agent"
	"github.com/AleutianAI/AleutianSQL/services/gateway/audit"
	"github.com/AleutianAI/AleutianSQL/services/gateway/middleware"
	"github.com/AleutianAI/AleutianSQL/services/gateway/observability"
)

// AgentRunner is the slice of agent.Agent the ask handler needs.
type AgentRunner interface {
	Run(ctx context.Context, question string) (*agent.Result, error)
}

// AskRequest is the POST /v1/ask body. SessionID is optional; callers
// that correlate across requests may supply their own.
type AskRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id"`
}

// AskResponse is the POST /v1/ask reply.
type AskResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Query     string `json:"query,omitempty"`
	Steps     int    `json:"steps"`
}

// HandleAsk answers one natural language question about the database.
//
// # Description
//
// Assigns a session id, checks the caller may execute queries, runs the
// agent loop, records metrics, and fans the completed interaction out to
// every audit sink. Pipeline activity is additionally reported to the
// extension AuditLogger; sink and logger failures are logged and counted
// but never fail the request.
//
// # Outcomes
//
//   - 200: Agent produced a final answer.
//   - 400: Request body missing or malformed.
//   - 403: AuthzProvider denied query execution for this caller.
//   - 500: Agent loop failed (LLM unreachable, recursion limit, ...).
func HandleAsk(runner AgentRunner, sinks []audit.Sink, opts extensions.ServiceOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		info := middleware.GetAuthInfo(c)
		userID := "anonymous"
		if info != nil {
			userID = info.UserID
		}

		if err := authorizeQuery(c.Request.Context(), opts.AuthzProvider, info); err != nil {
			slog.Warn("Query execution denied",
				"session", sessionID,
				"user", userID,
				"error", err,
			)
			emitAuditEvent(c.Request.Context(), opts.AuditLogger, extensions.AuditEvent{
				EventType:    "authz.denied",
				UserID:       userID,
				Action:       "execute",
				ResourceType: "query",
				Outcome:      "denied",
				Metadata:     map[string]any{"session_id": sessionID},
			})
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		emitAuditEvent(c.Request.Context(), opts.AuditLogger, extensions.AuditEvent{
			EventType:    "ask.question",
			UserID:       userID,
			Action:       "ask",
			ResourceType: "question",
			Outcome:      "success",
			Metadata:     map[string]any{"session_id": sessionID},
		})

		start := time.Now()
		result, err := runner.Run(c.Request.Context(), req.Question)
		recordAgentMetrics(result, err, time.Since(start))

		if err != nil {
			slog.Error("Agent run failed",
				"session", sessionID,
				"question", req.Question,
				"error", err,
			)
			status := http.StatusInternalServerError
			if errors.Is(err, agent.ErrRecursionLimit) {
				c.JSON(status, gin.H{"error": "agent exceeded step budget without an answer"})
				return
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		slog.Info("Question answered",
			"session", sessionID,
			"user", userID,
			"question", req.Question,
			"executed_query", result.ExecutedQuery,
			"answer", result.Answer,
			"steps", result.Steps,
		)

		emitAuditEvent(c.Request.Context(), opts.AuditLogger, extensions.AuditEvent{
			EventType:    "query.executed",
			UserID:       userID,
			Action:       "execute",
			ResourceType: "query",
			Outcome:      "success",
			Metadata: map[string]any{
				"session_id":     sessionID,
				"executed_query": result.ExecutedQuery,
				"steps":          result.Steps,
			},
		})

		record := audit.NewSessionRecord(sessionID, req.Question, result.Answer, result.ExecutedQuery, result.Steps)
		for _, sink := range sinks {
			if err := sink.Write(c.Request.Context(), record); err != nil {
				slog.Error("Audit sink write failed",
					"session", sessionID,
					"sink", sink.Name(),
					"error", err,
				)
				if observability.DefaultMetrics != nil {
					observability.DefaultMetrics.AuditSinkErrorsTotal.WithLabelValues(sink.Name()).Inc()
				}
			}
		}

		c.JSON(http.StatusOK, AskResponse{
			SessionID: sessionID,
			Answer:    result.Answer,
			Query:     result.ExecutedQuery,
			Steps:     result.Steps,
		})
	}
}

// authorizeQuery runs the extension authorization check for the ask
// pipeline. A nil provider allows, matching the open source default.
func authorizeQuery(ctx context.Context, provider extensions.AuthzProvider, info *extensions.AuthInfo) error {
	if provider == nil {
		return nil
	}
	return provider.Authorize(ctx, extensions.AuthzRequest{
		User:         info,
		Action:       "execute",
		ResourceType: "query",
	})
}

// emitAuditEvent reports pipeline activity to the extension audit
// logger. Failures are logged, never propagated to the request.
func emitAuditEvent(ctx context.Context, logger extensions.AuditLogger, event extensions.AuditEvent) {
	if logger == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	if err := logger.Log(ctx, event); err != nil {
		slog.Warn("Audit event logging failed",
			"event_type", event.EventType,
			"error", err,
		)
	}
}

// recordAgentMetrics updates the ask metrics for one run. result may be
// non-nil even when err is set (partial run).
func recordAgentMetrics(result *agent.Result, err error, elapsed time.Duration) {
	m := observability.DefaultMetrics
	if m == nil {
		return
	}

	status := "success"
	switch {
	case errors.Is(err, agent.ErrRecursionLimit):
		status = "recursion_limit"
	case err != nil:
		status = "error"
	}

	m.AskRequestsTotal.WithLabelValues(status).Inc()
	m.AskDurationSeconds.WithLabelValues(status).Observe(elapsed.Seconds())

	if result != nil {
		m.AgentSteps.Observe(float64(result.Steps))
		for _, invocation := range result.ToolInvocations {
			toolStatus := "ok"
			if !invocation.OK {
				toolStatus = "error"
			}
			m.ToolInvocationsTotal.WithLabelValues(invocation.Name, toolStatus).Inc()
		}
	}
}
