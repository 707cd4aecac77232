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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfig_MissingServer verifies that missing required variables
// produce an actionable error.
func TestLoadConfig_MissingServer(t *testing.T) {
	t.Setenv("AZURE_SQL_SERVER", "")
	t.Setenv("AZURE_SQL_DATABASE", "sales")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AZURE_SQL_SERVER")
}

// TestLoadConfig_Defaults verifies the conservative defaults applied when
// only the required variables are set.
func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AZURE_SQL_SERVER", "myserver.database.windows.net")
	t.Setenv("AZURE_SQL_DATABASE", "sales")
	t.Setenv("SQL_SCHEMA_SAMPLE_ROWS", "")
	t.Setenv("SQL_ALLOWED_TABLES", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultSampleRows, cfg.SchemaSampleRows)
	assert.Equal(t, []string{"Customers"}, cfg.AllowedTables)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
}

// TestLoadConfig_AllowedTableList verifies the comma-separated allowlist
// parsing, including whitespace and empty entries.
func TestLoadConfig_AllowedTableList(t *testing.T) {
	t.Setenv("AZURE_SQL_SERVER", "myserver.database.windows.net")
	t.Setenv("AZURE_SQL_DATABASE", "sales")
	t.Setenv("SQL_SCHEMA_SAMPLE_ROWS", "5")
	t.Setenv("SQL_ALLOWED_TABLES", " Customers , Orders ,,Invoices")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.SchemaSampleRows)
	assert.Equal(t, []string{"Customers", "Orders", "Invoices"}, cfg.AllowedTables)
}

// TestLoadConfig_BadSampleRows verifies rejection of malformed counts.
func TestLoadConfig_BadSampleRows(t *testing.T) {
	t.Setenv("AZURE_SQL_SERVER", "myserver.database.windows.net")
	t.Setenv("AZURE_SQL_DATABASE", "sales")
	t.Setenv("SQL_SCHEMA_SAMPLE_ROWS", "lots")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "SQL_SCHEMA_SAMPLE_ROWS")
}

// TestConnectionString verifies the DSN shape: encrypted, port 1433, and
// no credential material anywhere.
func TestConnectionString(t *testing.T) {
	cfg := Config{
		Server:         "myserver.database.windows.net",
		Database:       "sales",
		ConnectTimeout: 45 * time.Second,
	}

	dsn := cfg.connectionString()
	assert.Equal(t,
		"Server=tcp:myserver.database.windows.net,1433;Database=sales;Encrypt=true;TrustServerCertificate=false;Connection Timeout=45",
		dsn)
	assert.NotContains(t, dsn, "Password")
	assert.NotContains(t, dsn, "User ID")
}
