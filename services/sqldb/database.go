// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Database wraps a *sql.DB with the table allowlist and the schema
// rendering the agent tools consume.
//
// # Thread Safety
//
// Safe for concurrent use; database/sql manages the connection pool.
type Database struct {
	db            *sql.DB
	allowedTables []string
	sampleRows    int
}

// QueryResult holds the outcome of a read query.
type QueryResult struct {
	Columns  []string   `json:"columns"`
	Rows     [][]string `json:"rows"`
	RowCount int        `json:"row_count"`
}

// NewDatabase wraps an open connection. Exposed separately from Connect so
// tests can inject their own *sql.DB.
func NewDatabase(db *sql.DB, cfg Config) *Database {
	sampleRows := cfg.SchemaSampleRows
	if sampleRows == 0 && cfg.Server == "" {
		// Zero-value config in tests still renders sample rows.
		sampleRows = DefaultSampleRows
	}
	return &Database{
		db:            db,
		allowedTables: cfg.AllowedTables,
		sampleRows:    sampleRows,
	}
}

// Ping verifies connectivity with a lightweight SELECT 1.
func (d *Database) Ping(ctx context.Context) error {
	var one int
	if err := d.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health query failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// UsableTableNames returns the base tables the agent may query, filtered
// by the allowlist when one is configured. Names keep their database
// casing.
func (d *Database) UsableTableNames(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		if d.tableAllowed(name) {
			names = append(names, name)
		}
	}
	return names, rows.Err()
}

// TableInfo renders CREATE TABLE DDL plus up to SchemaSampleRows sample
// rows for the given tables. A nil or empty slice means every usable
// table. Sample-row failures degrade to DDL-only output; the schema
// snapshot must never fail because one table cannot be sampled.
func (d *Database) TableInfo(ctx context.Context, tables []string) (string, error) {
	if len(tables) == 0 {
		usable, err := d.UsableTableNames(ctx)
		if err != nil {
			return "", err
		}
		tables = usable
	}

	var sections []string
	for _, table := range tables {
		if !d.tableAllowed(table) {
			continue
		}

		columns, err := d.tableColumns(ctx, table)
		if err != nil {
			return "", fmt.Errorf("failed to introspect table %s: %w", table, err)
		}
		if len(columns) == 0 {
			continue
		}

		section := renderCreateTable(table, columns)
		if d.sampleRows > 0 {
			sample, err := d.sampleTable(ctx, table)
			if err != nil {
				slog.Warn("Sample row query failed, returning DDL only",
					"table", table, "error", err)
			} else {
				section += "\n\n" + renderSampleRows(table, d.sampleRows, sample)
			}
		}
		sections = append(sections, section)
	}

	return strings.Join(sections, "\n\n"), nil
}

// Run executes a read query and returns every row as formatted strings.
// Callers are expected to have validated the query as read-only; this
// method applies a query timeout but no further policing.
func (d *Database) Run(ctx context.Context, query string) (*QueryResult, error) {
	start := time.Now()
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	result, err := collectRows(rows)
	if err != nil {
		return nil, err
	}

	slog.Debug("Query executed",
		"rows", result.RowCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// =============================================================================
// Introspection internals
// =============================================================================

// columnInfo is one INFORMATION_SCHEMA.COLUMNS row, reduced to what the
// DDL rendering needs.
type columnInfo struct {
	Name      string
	DataType  string
	MaxLength sql.NullInt64
	Nullable  bool
}

func (d *Database) tableColumns(ctx context.Context, table string) ([]columnInfo, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT COLUMN_NAME, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH, IS_NULLABLE
		 FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_NAME = @p1
		 ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []columnInfo
	for rows.Next() {
		var col columnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &col.MaxLength, &nullable); err != nil {
			return nil, err
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (d *Database) sampleTable(ctx context.Context, table string) (*QueryResult, error) {
	query := fmt.Sprintf("SELECT TOP (%d) * FROM %s", d.sampleRows, quoteIdent(table))
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

func (d *Database) tableAllowed(name string) bool {
	if len(d.allowedTables) == 0 {
		return true
	}
	for _, allowed := range d.allowedTables {
		if strings.EqualFold(allowed, name) {
			return true
		}
	}
	return false
}

// =============================================================================
// Rendering helpers
// =============================================================================

// quoteIdent bracket-quotes a T-SQL identifier.
func quoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// renderCreateTable renders the column list as CREATE TABLE DDL, the form
// language models are most reliably trained on.
func renderCreateTable(table string, columns []columnInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", quoteIdent(table))
	for i, col := range columns {
		dataType := col.DataType
		if col.MaxLength.Valid {
			if col.MaxLength.Int64 < 0 {
				dataType += "(max)"
			} else {
				dataType = fmt.Sprintf("%s(%d)", dataType, col.MaxLength.Int64)
			}
		}
		nullability := "NOT NULL"
		if col.Nullable {
			nullability = "NULL"
		}
		fmt.Fprintf(&b, "\t%s %s %s", quoteIdent(col.Name), dataType, nullability)
		if i < len(columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// renderSampleRows renders sample rows tab-separated inside a comment
// block, mirroring the table-info format the prompts were written against.
func renderSampleRows(table string, limit int, sample *QueryResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/*\n%d rows from %s table:\n", limit, table)
	b.WriteString(strings.Join(sample.Columns, "\t"))
	b.WriteString("\n")
	for _, row := range sample.Rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteString("\n")
	}
	b.WriteString("*/")
	return b.String()
}

// collectRows drains a *sql.Rows into string cells. NULL renders as
// "NULL", byte slices as text.
func collectRows(rows *sql.Rows) (*QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &QueryResult{Columns: columns, Rows: [][]string{}}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		cells := make([]string, len(columns))
		for i, value := range values {
			cells[i] = formatCell(value)
		}
		result.Rows = append(result.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("result iteration failed: %w", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
