// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent implements the natural-language-to-SQL control loop: a
// decision step that asks the model what to do next, and a tool step that
// executes the requested SQL tools, alternating until the model answers
// without tool calls or the recursion limit trips.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/AleutianAI/AleutianSQL/services/llm"
)

// DefaultRecursionLimit bounds node executions per run. Each decision
// step and each tool step counts as one. Twelve covers the full
// schema -> generate -> validate -> execute pipeline with room for one
// fix-and-retry cycle.
const DefaultRecursionLimit = 12

// ErrRecursionLimit is returned when a run exceeds its step budget
// without producing a final answer.
var ErrRecursionLimit = errors.New("agent exceeded recursion limit without a final answer")

// ToolInvocation records one tool execution for metrics and audit.
type ToolInvocation struct {
	Name string
	OK   bool
}

// Result is the outcome of one agent run.
type Result struct {
	// Answer is the model's final message content.
	Answer string
	// ExecutedQuery is the last successfully executed SQL query, empty
	// when the run never executed one.
	ExecutedQuery string
	// Steps is the number of node executions consumed.
	Steps int
	// ToolInvocations lists every tool call in execution order.
	ToolInvocations []ToolInvocation
	// Messages is the full transcript including tool exchanges.
	Messages []llm.Message
}

// Agent runs the two-node control loop over a Toolset.
type Agent struct {
	llm            llm.ChatClient
	tools          *Toolset
	recursionLimit int
}

// NewAgent wires the loop. A non-positive limit falls back to the
// default.
func NewAgent(chat llm.ChatClient, tools *Toolset, recursionLimit int) *Agent {
	if recursionLimit <= 0 {
		recursionLimit = DefaultRecursionLimit
	}
	return &Agent{
		llm:            chat,
		tools:          tools,
		recursionLimit: recursionLimit,
	}
}

// RecursionLimitFromEnv reads AGENT_RECURSION_LIMIT, falling back to the
// default on absence or garbage.
func RecursionLimitFromEnv() int {
	raw := os.Getenv("AGENT_RECURSION_LIMIT")
	if raw == "" {
		return DefaultRecursionLimit
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		slog.Warn("Ignoring invalid AGENT_RECURSION_LIMIT", "value", raw)
		return DefaultRecursionLimit
	}
	return parsed
}

// Run answers one natural language question.
//
// # Description
//
// Alternates decision and tool steps. The decision step sends the system
// prompt plus the accumulated transcript with the tool declarations
// attached; when the reply carries tool calls, the tool step executes
// each one and appends its result as a tool message. A reply without
// tool calls is the final answer.
//
// # Outputs
//
//   - *Result: Populated even on recursion-limit failure so callers can
//     audit the partial transcript.
//   - error: ErrRecursionLimit when the budget runs out, or the
//     underlying LLM failure.
func (a *Agent) Run(ctx context.Context, question string) (*Result, error) {
	result := &Result{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: question}},
	}
	params := llm.GenerationParams{Tools: a.tools.Definitions()}

	for result.Steps < a.recursionLimit {
		// Decision step.
		result.Steps++
		transcript := append([]llm.Message{{Role: llm.RoleSystem, Content: agentSystemPrompt}}, result.Messages...)
		reply, err := a.llm.Chat(ctx, transcript, params)
		if err != nil {
			return result, fmt.Errorf("agent decision step failed: %w", err)
		}
		result.Messages = append(result.Messages, reply)

		if len(reply.ToolCalls) == 0 {
			result.Answer = reply.Content
			slog.Debug("Agent run complete",
				"steps", result.Steps,
				"tool_invocations", len(result.ToolInvocations),
			)
			return result, nil
		}

		// Tool step. All calls from one reply share a step, matching
		// how a single tool node execution is budgeted.
		if result.Steps >= a.recursionLimit {
			break
		}
		result.Steps++
		for _, call := range reply.ToolCalls {
			toolResult, err := a.tools.Dispatch(ctx, call)
			if err != nil {
				return result, fmt.Errorf("tool %s failed: %w", call.Name, err)
			}

			result.ToolInvocations = append(result.ToolInvocations, ToolInvocation{
				Name: call.Name,
				OK:   toolResult.OK,
			})
			if toolResult.ExecutedQuery != "" {
				result.ExecutedQuery = toolResult.ExecutedQuery
			}
			result.Messages = append(result.Messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    toolResult.Content,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	slog.Warn("Agent hit recursion limit", "limit", a.recursionLimit)
	return result, ErrRecursionLimit
}
