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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianSQL/services/llm"
	"github.com/AleutianAI/AleutianSQL/services/sqldb"
)

// Tool names as exposed to the model. These are part of the prompt
// contract; renaming one silently breaks the pipeline ordering in the
// system prompt.
const (
	ToolGetDatabaseSchema = "get_database_schema"
	ToolGenerateSQLQuery  = "generate_sql_query"
	ToolValidateSQLQuery  = "validate_sql_query"
	ToolExecuteSQLQuery   = "execute_sql_query"
	ToolFixSQLError       = "fix_sql_error"
)

// DatabaseClient is the slice of sqldb.Database the tools need.
type DatabaseClient interface {
	UsableTableNames(ctx context.Context) ([]string, error)
	TableInfo(ctx context.Context, tables []string) (string, error)
	Run(ctx context.Context, query string) (*sqldb.QueryResult, error)
}

// ToolResult is the outcome of one tool dispatch. Content is always the
// string handed back to the model; tool failures are reported as readable
// content rather than errors so the model can react to them.
type ToolResult struct {
	Content string
	// OK is false when the content describes a failure the model is
	// expected to recover from (validation rejection, execution error,
	// unknown tool).
	OK bool
	// ExecutedQuery is set only by a successful execute_sql_query call.
	ExecutedQuery string
}

// Toolset binds the five SQL tools to a database and a model.
//
// # Description
//
// The schema snapshot and table-name index are captured once at
// construction. That keeps every get_database_schema call cheap and makes
// a single agent run internally consistent even if the database changes
// mid-conversation.
//
// # Thread Safety
//
// Safe for concurrent use after construction; all fields are read-only.
type Toolset struct {
	db  DatabaseClient
	llm llm.ChatClient

	schemaSnapshot string
	tableNames     map[string]string // lowercase -> database casing
	tableList      []string
}

// NewToolset introspects the database and returns tools ready to dispatch.
func NewToolset(ctx context.Context, db DatabaseClient, chat llm.ChatClient) (*Toolset, error) {
	snapshot, err := db.TableInfo(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot database schema: %w", err)
	}

	tables, err := db.UsableTableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list usable tables: %w", err)
	}

	names := make(map[string]string, len(tables))
	for _, table := range tables {
		names[strings.ToLower(table)] = table
	}

	slog.Info("SQL toolset initialized",
		"tables", tables,
		"schema_bytes", len(snapshot),
	)
	return &Toolset{
		db:             db,
		llm:            chat,
		schemaSnapshot: snapshot,
		tableNames:     names,
		tableList:      tables,
	}, nil
}

// Definitions returns the tool declarations advertised to the model.
func (t *Toolset) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolGetDatabaseSchema,
			Description: "Get schema details for the database. Use before generating SQL.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"table_name": map[string]any{
						"type":        "string",
						"description": "Optional table to narrow the schema to.",
					},
				},
			},
		},
		{
			Name:        ToolGenerateSQLQuery,
			Description: "Generate a SELECT query for the given natural language question.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question": map[string]any{
						"type":        "string",
						"description": "The natural language question to answer.",
					},
					"schema_info": map[string]any{
						"type":        "string",
						"description": "Optional schema text to generate against.",
					},
				},
				"required": []string{"question"},
			},
		},
		{
			Name:        ToolValidateSQLQuery,
			Description: "Validate that the SQL query is read-only and safe.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The SQL query to validate.",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolExecuteSQLQuery,
			Description: "Validate and run the SQL query against the configured database.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sql_query": map[string]any{
						"type":        "string",
						"description": "The SQL query to execute.",
					},
				},
				"required": []string{"sql_query"},
			},
		},
		{
			Name:        ToolFixSQLError,
			Description: "Fix a failed SQL query by analyzing the error and regenerating it.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"original_query": map[string]any{
						"type":        "string",
						"description": "The query that failed.",
					},
					"error_message": map[string]any{
						"type":        "string",
						"description": "The error returned by the database.",
					},
					"question": map[string]any{
						"type":        "string",
						"description": "The original natural language question.",
					},
				},
				"required": []string{"original_query", "error_message", "question"},
			},
		},
	}
}

// Dispatch routes one model tool call to its implementation. Unknown
// tools and malformed arguments come back as readable failure content,
// never as a Go error; only infrastructure failures (an LLM call inside
// a tool) surface as errors.
func (t *Toolset) Dispatch(ctx context.Context, call llm.ToolCall) (ToolResult, error) {
	switch call.Name {
	case ToolGetDatabaseSchema:
		var args struct {
			TableName string `json:"table_name"`
		}
		if msg, ok := parseArgs(call.Arguments, &args); !ok {
			return ToolResult{Content: msg}, nil
		}
		return t.getDatabaseSchema(ctx, args.TableName), nil

	case ToolGenerateSQLQuery:
		var args struct {
			Question   string `json:"question"`
			SchemaInfo string `json:"schema_info"`
		}
		if msg, ok := parseArgs(call.Arguments, &args); !ok {
			return ToolResult{Content: msg}, nil
		}
		return t.generateSQLQuery(ctx, args.Question, args.SchemaInfo)

	case ToolValidateSQLQuery:
		var args struct {
			Query string `json:"query"`
		}
		if msg, ok := parseArgs(call.Arguments, &args); !ok {
			return ToolResult{Content: msg}, nil
		}
		result := ValidateSelectOnly(args.Query)
		return ToolResult{Content: result, OK: !IsValidationError(result)}, nil

	case ToolExecuteSQLQuery:
		var args struct {
			SQLQuery string `json:"sql_query"`
		}
		if msg, ok := parseArgs(call.Arguments, &args); !ok {
			return ToolResult{Content: msg}, nil
		}
		return t.executeSQLQuery(ctx, args.SQLQuery), nil

	case ToolFixSQLError:
		var args struct {
			OriginalQuery string `json:"original_query"`
			ErrorMessage  string `json:"error_message"`
			Question      string `json:"question"`
		}
		if msg, ok := parseArgs(call.Arguments, &args); !ok {
			return ToolResult{Content: msg}, nil
		}
		return t.fixSQLError(ctx, args.Question, args.OriginalQuery, args.ErrorMessage)

	default:
		slog.Warn("Model requested unknown tool", "tool", call.Name)
		return ToolResult{
			Content: fmt.Sprintf("Error: unknown tool %q.", call.Name),
		}, nil
	}
}

// =============================================================================
// Tool implementations
// =============================================================================

func (t *Toolset) getDatabaseSchema(ctx context.Context, tableName string) ToolResult {
	if tableName == "" {
		return ToolResult{Content: t.schemaSnapshot, OK: true}
	}

	if actual, ok := t.tableNames[strings.ToLower(tableName)]; ok {
		info, err := t.db.TableInfo(ctx, []string{actual})
		if err != nil {
			return t.schemaFallback(tableName)
		}
		return ToolResult{Content: info, OK: true}
	}

	if close := t.closestTable(tableName); close != "" {
		info, err := t.db.TableInfo(ctx, []string{close})
		if err != nil {
			return t.schemaFallback(tableName)
		}
		return ToolResult{
			Content: fmt.Sprintf("Requested table '%s' not found; using closest match '%s'.\n%s",
				tableName, close, info),
			OK: true,
		}
	}

	return ToolResult{
		Content: fmt.Sprintf("Requested table '%s' not found. Available tables: %v.\nFull schema:\n%s",
			tableName, t.tableList, t.schemaSnapshot),
		OK: true,
	}
}

// schemaFallback is the answer when a per-table introspection fails: hand
// the model everything we already know rather than a dead end.
func (t *Toolset) schemaFallback(tableName string) ToolResult {
	return ToolResult{
		Content: fmt.Sprintf("Error getting table '%s'. Available tables: %v.\nFull schema:\n%s",
			tableName, t.tableList, t.schemaSnapshot),
	}
}

func (t *Toolset) generateSQLQuery(ctx context.Context, question, schemaInfo string) (ToolResult, error) {
	if schemaInfo == "" {
		schemaInfo = t.schemaSnapshot
	}

	sql, err := t.llm.Generate(ctx, generateSystemPrompt, generatePrompt(question, schemaInfo), llm.GenerationParams{})
	if err != nil {
		return ToolResult{}, fmt.Errorf("SQL generation failed: %w", err)
	}
	return ToolResult{Content: strings.TrimSpace(sql), OK: true}, nil
}

func (t *Toolset) executeSQLQuery(ctx context.Context, sqlQuery string) ToolResult {
	validated := ValidateSelectOnly(sqlQuery)
	if IsValidationError(validated) {
		return ToolResult{Content: validated}
	}

	slog.Info("Executing query", "query", validated)
	result, err := t.db.Run(ctx, validated)
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("Execution error: %v", err)}
	}

	payload, err := json.Marshal(map[string]any{
		"rows":      result.Rows,
		"row_count": result.RowCount,
		"query":     validated,
	})
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("Execution error: %v", err)}
	}
	return ToolResult{Content: string(payload), OK: true, ExecutedQuery: validated}
}

func (t *Toolset) fixSQLError(ctx context.Context, question, originalQuery, errorMessage string) (ToolResult, error) {
	sql, err := t.llm.Generate(ctx, fixSystemPrompt, fixPrompt(question, originalQuery, errorMessage), llm.GenerationParams{})
	if err != nil {
		return ToolResult{}, fmt.Errorf("SQL repair failed: %w", err)
	}
	return ToolResult{Content: strings.TrimSpace(sql), OK: true}, nil
}

// closestTable resolves a misspelled or partial table name by substring
// match in either direction.
func (t *Toolset) closestTable(name string) string {
	lowered := strings.ToLower(name)
	for _, candidate := range t.tableList {
		candidateLower := strings.ToLower(candidate)
		if strings.Contains(candidateLower, lowered) || strings.Contains(lowered, candidateLower) {
			return candidate
		}
	}
	return ""
}

func parseArgs(raw string, dest any) (string, bool) {
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Sprintf("Error: malformed tool arguments: %v.", err), false
	}
	return "", true
}
