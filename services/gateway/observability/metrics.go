// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the SQL agent
// gateway.
//
// # Description
//
// Metrics cover the ask endpoint (request counts, latency), the agent
// loop (steps consumed, tool invocations), and the audit pipeline
// (sink failures). All are exposed on /metrics for Prometheus scraping.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "sqlagent"

// Subsystem for agent-loop metrics
const agentSubsystem = "agent"

// AgentMetrics holds all Prometheus metrics for the ask pipeline.
//
// # Fields
//
//   - AskRequestsTotal: Counter of ask requests by status
//   - AskDurationSeconds: Histogram of end-to-end ask latency
//   - AgentSteps: Histogram of loop steps consumed per ask
//   - ToolInvocationsTotal: Counter of tool executions by tool and status
//   - AuditSinkErrorsTotal: Counter of audit sink write failures by sink
//
// # Thread Safety
//
// All operations are thread-safe.
type AgentMetrics struct {
	// AskRequestsTotal counts ask requests.
	// Labels: status (success, error, recursion_limit)
	AskRequestsTotal *prometheus.CounterVec

	// AskDurationSeconds measures end-to-end ask latency.
	// Labels: status (success, error, recursion_limit)
	AskDurationSeconds *prometheus.HistogramVec

	// AgentSteps measures loop steps consumed per completed ask.
	AgentSteps prometheus.Histogram

	// ToolInvocationsTotal counts tool executions.
	// Labels: tool (get_database_schema, ...), status (ok, error)
	ToolInvocationsTotal *prometheus.CounterVec

	// AuditSinkErrorsTotal counts audit sink write failures.
	// Labels: sink (session_log, azure_table)
	AuditSinkErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of AgentMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AgentMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Call once at startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *AgentMetrics {
	DefaultMetrics = &AgentMetrics{
		AskRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "ask_requests_total",
				Help:      "Total ask requests by outcome",
			},
			[]string{"status"},
		),

		AskDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "ask_duration_seconds",
				Help:      "End-to-end ask latency by outcome",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"status"},
		),

		AgentSteps: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "steps_per_ask",
				Help:      "Loop steps consumed per ask",
				Buckets:   prometheus.LinearBuckets(1, 1, 12),
			},
		),

		ToolInvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "tool_invocations_total",
				Help:      "Tool executions by tool name and outcome",
			},
			[]string{"tool", "status"},
		),

		AuditSinkErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "audit_sink_errors_total",
				Help:      "Audit sink write failures by sink",
			},
			[]string{"sink"},
		),
	}
	return DefaultMetrics
}
