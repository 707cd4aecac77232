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
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestStripSQLFences covers fenced, unfenced, and mixed-case fence input.
func TestStripSQLFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain query untouched", "SELECT 1", "SELECT 1"},
		{"sql fence removed", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"uppercase fence removed", "```SQL\nSELECT 1\n```", "SELECT 1"},
		{"bare fence removed", "```\nSELECT 1\n```", "SELECT 1"},
		{"surrounding whitespace trimmed", "  \nSELECT 1\n  ", "SELECT 1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripSQLFences(tc.input))
		})
	}
}

// TestValidateSelectOnly_Allowed verifies that SELECT and CTE queries pass
// through cleaned.
func TestValidateSelectOnly_Allowed(t *testing.T) {
	assert.Equal(t, "SELECT TOP 5 * FROM Customers",
		ValidateSelectOnly("```sql\nSELECT TOP 5 * FROM Customers\n```"))
	assert.Equal(t, "WITH cte AS (SELECT 1 AS n) SELECT n FROM cte",
		ValidateSelectOnly("WITH cte AS (SELECT 1 AS n) SELECT n FROM cte"))
	assert.Equal(t, "select name from Customers",
		ValidateSelectOnly("select name from Customers"))
}

// TestValidateSelectOnly_NonSelect verifies rejection of statements that
// do not start with SELECT or WITH.
func TestValidateSelectOnly_NonSelect(t *testing.T) {
	for _, query := range []string{
		"DELETE FROM Customers",
		"EXEC sp_help",
		"-- comment\nSELECT 1",
		"",
	} {
		assert.Equal(t, "Error: Only SELECT or CTE queries are allowed.",
			ValidateSelectOnly(query), "query: %q", query)
	}
}

// TestValidateSelectOnly_ForbiddenKeyword verifies the blocklist catches
// write keywords buried inside an otherwise SELECT-shaped query.
func TestValidateSelectOnly_ForbiddenKeyword(t *testing.T) {
	for _, query := range []string{
		"SELECT 1; DROP TABLE Customers",
		"SELECT 1; delete from Customers",
		"WITH x AS (SELECT 1 AS n) SELECT n FROM x; TRUNCATE TABLE Orders",
	} {
		assert.Equal(t, "Error: Query contained a non-read keyword.",
			ValidateSelectOnly(query), "query: %q", query)
	}
}

// TestValidateSelectOnly_KeywordsNeedTrailingSpace verifies that column
// names containing a blocklisted word do not trip the filter.
func TestValidateSelectOnly_KeywordsNeedTrailingSpace(t *testing.T) {
	clean := ValidateSelectOnly("SELECT updated_total, deleted_flag FROM Customers")
	assert.False(t, IsValidationError(clean))
	assert.Equal(t, "SELECT updated_total, deleted_flag FROM Customers", clean)
}

// TestIsValidationError distinguishes rejections from cleaned queries.
func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError("Error: Query contained a non-read keyword."))
	assert.False(t, IsValidationError("SELECT 1"))
}
