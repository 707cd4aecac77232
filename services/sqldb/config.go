// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqldb provides read-only, token-authenticated access to an Azure
// SQL Database (or Fabric T-SQL endpoint) for the agent tools.
//
// The package wraps database/sql with:
//   - Entra ID access-token authentication (no credentials in the DSN)
//   - a table allowlist limiting what the agent can see
//   - schema introspection rendered as CREATE TABLE DDL plus sample rows
package sqldb

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultSampleRows is the number of sample rows included per table when
// rendering schema info for the model.
const DefaultSampleRows = 3

// Config holds SQL connection settings for token-based Azure SQL auth.
//
// # Required Fields
//
//   - Server: fully qualified server name (e.g. myserver.database.windows.net)
//   - Database: database name
//
// # Optional Fields
//
//   - SchemaSampleRows: sample rows per table in schema info (default 3)
//   - AllowedTables: allowlist of tables exposed to the agent
//   - ConnectTimeout: driver connection timeout (default 30s)
type Config struct {
	Server           string
	Database         string
	SchemaSampleRows int
	AllowedTables    []string
	ConnectTimeout   time.Duration
}

// LoadConfig reads SQL connection info from environment variables.
//
// AZURE_SQL_SERVER and AZURE_SQL_DATABASE are required. SQL_ALLOWED_TABLES
// is a comma-separated allowlist; when unset a conservative default of
// "Customers" applies so a fresh deployment never exposes every table.
func LoadConfig() (Config, error) {
	server := os.Getenv("AZURE_SQL_SERVER")
	database := os.Getenv("AZURE_SQL_DATABASE")
	if server == "" || database == "" {
		return Config{}, fmt.Errorf("set AZURE_SQL_SERVER and AZURE_SQL_DATABASE for token-based Azure SQL connection")
	}

	sampleRows := DefaultSampleRows
	if raw := os.Getenv("SQL_SCHEMA_SAMPLE_ROWS"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return Config{}, fmt.Errorf("invalid SQL_SCHEMA_SAMPLE_ROWS %q", raw)
		}
		sampleRows = parsed
	}

	allowedTables := []string{"Customers"} // default allowlist
	if raw := os.Getenv("SQL_ALLOWED_TABLES"); raw != "" {
		allowedTables = nil
		for _, tbl := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(tbl); trimmed != "" {
				allowedTables = append(allowedTables, trimmed)
			}
		}
	}

	return Config{
		Server:           server,
		Database:         database,
		SchemaSampleRows: sampleRows,
		AllowedTables:    allowedTables,
		ConnectTimeout:   30 * time.Second,
	}, nil
}

// connectionString assembles the ADO-style DSN. Credentials never appear
// here; authentication happens via the access-token connector.
func (c Config) connectionString() string {
	timeout := c.ConnectTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return fmt.Sprintf(
		"Server=tcp:%s,1433;Database=%s;Encrypt=true;TrustServerCertificate=false;Connection Timeout=%d",
		c.Server, c.Database, int(timeout.Seconds()),
	)
}
