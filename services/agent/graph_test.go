// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSQL/services/llm"
	"github.com/AleutianAI/AleutianSQL/services/sqldb"
)

// TestRun_DirectAnswer verifies a run where the model answers without
// any tool calls.
func TestRun_DirectAnswer(t *testing.T) {
	chat := &scriptedChat{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: "There are no questions to answer."},
	}}
	tools := newTestToolset(t, &fakeDB{tables: []string{"Customers"}}, chat)
	a := NewAgent(chat, tools, 0)

	result, err := a.Run(context.Background(), "Say hello")
	require.NoError(t, err)
	assert.Equal(t, "There are no questions to answer.", result.Answer)
	assert.Equal(t, 1, result.Steps)
	assert.Empty(t, result.ToolInvocations)
	assert.Empty(t, result.ExecutedQuery)

	// The decision step must carry the system prompt, the tool
	// declarations, and the user question.
	require.Len(t, chat.chatCalls, 1)
	transcript := chat.chatCalls[0]
	require.Len(t, transcript, 2)
	assert.Equal(t, llm.RoleSystem, transcript[0].Role)
	assert.Equal(t, llm.RoleUser, transcript[1].Role)
	assert.Len(t, chat.lastParams.Tools, 5)
}

// TestRun_ToolRoundTrip verifies a full execute pipeline: the tool reply
// is appended as a tool message, the executed query is captured, and the
// invocation ledger reflects the calls.
func TestRun_ToolRoundTrip(t *testing.T) {
	chat := &scriptedChat{replies: []llm.Message{
		{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{
				ID:        "call_1",
				Name:      ToolExecuteSQLQuery,
				Arguments: `{"sql_query": "SELECT COUNT(*) AS n FROM Customers"}`,
			}},
		},
		{Role: llm.RoleAssistant, Content: "There are 42 customers."},
	}}
	db := &fakeDB{
		tables: []string{"Customers"},
		runResult: &sqldb.QueryResult{
			Columns:  []string{"n"},
			Rows:     [][]string{{"42"}},
			RowCount: 1,
		},
	}
	tools := newTestToolset(t, db, chat)
	a := NewAgent(chat, tools, 0)

	result, err := a.Run(context.Background(), "How many customers are there?")
	require.NoError(t, err)
	assert.Equal(t, "There are 42 customers.", result.Answer)
	assert.Equal(t, "SELECT COUNT(*) AS n FROM Customers", result.ExecutedQuery)
	assert.Equal(t, 3, result.Steps)
	require.Len(t, result.ToolInvocations, 1)
	assert.Equal(t, ToolExecuteSQLQuery, result.ToolInvocations[0].Name)
	assert.True(t, result.ToolInvocations[0].OK)

	// Transcript: user, assistant tool call, tool reply, final answer.
	require.Len(t, result.Messages, 4)
	toolMsg := result.Messages[2]
	assert.Equal(t, llm.RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Equal(t, ToolExecuteSQLQuery, toolMsg.Name)
	assert.Contains(t, toolMsg.Content, `"row_count":1`)
}

// TestRun_FailedToolStillRecorded verifies that a rejected execution is
// recorded as a failed invocation and does not set the executed query.
func TestRun_FailedToolStillRecorded(t *testing.T) {
	chat := &scriptedChat{replies: []llm.Message{
		{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{
				ID:        "call_1",
				Name:      ToolExecuteSQLQuery,
				Arguments: `{"sql_query": "DROP TABLE Customers"}`,
			}},
		},
		{Role: llm.RoleAssistant, Content: "I can only run read-only queries."},
	}}
	tools := newTestToolset(t, &fakeDB{tables: []string{"Customers"}}, chat)
	a := NewAgent(chat, tools, 0)

	result, err := a.Run(context.Background(), "Drop the customers table")
	require.NoError(t, err)
	assert.Empty(t, result.ExecutedQuery)
	require.Len(t, result.ToolInvocations, 1)
	assert.False(t, result.ToolInvocations[0].OK)
}

// TestRun_RecursionLimit verifies that a model stuck in a tool loop is
// cut off with ErrRecursionLimit and a partial result.
func TestRun_RecursionLimit(t *testing.T) {
	loopReply := llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			ID:        "call_n",
			Name:      ToolValidateSQLQuery,
			Arguments: `{"query": "SELECT 1"}`,
		}},
	}
	chat := &scriptedChat{replies: []llm.Message{loopReply, loopReply, loopReply}}
	tools := newTestToolset(t, &fakeDB{tables: []string{"Customers"}}, chat)
	a := NewAgent(chat, tools, 4)

	result, err := a.Run(context.Background(), "loop forever")
	require.ErrorIs(t, err, ErrRecursionLimit)
	assert.Equal(t, 4, result.Steps)
	assert.Empty(t, result.Answer)
	assert.NotEmpty(t, result.ToolInvocations)
}

// TestRecursionLimitFromEnv covers default, valid, and garbage values.
func TestRecursionLimitFromEnv(t *testing.T) {
	t.Setenv("AGENT_RECURSION_LIMIT", "")
	assert.Equal(t, DefaultRecursionLimit, RecursionLimitFromEnv())

	t.Setenv("AGENT_RECURSION_LIMIT", "25")
	assert.Equal(t, 25, RecursionLimitFromEnv())

	t.Setenv("AGENT_RECURSION_LIMIT", "-3")
	assert.Equal(t, DefaultRecursionLimit, RecursionLimitFromEnv())

	t.Setenv("AGENT_RECURSION_LIMIT", "many")
	assert.Equal(t, DefaultRecursionLimit, RecursionLimitFromEnv())
}
