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
	"regexp"
	"strings"
)

// Keyword blocklist applied after the SELECT/WITH prefix check. Each entry
// keeps its trailing space so column names like "created_at" never match.
var forbiddenKeywords = []string{
	"insert ",
	"update ",
	"delete ",
	"drop ",
	"alter ",
	"truncate ",
	"create ",
	"grant ",
	"revoke ",
	"exec ",
	"execute ",
	"merge ",
}

var (
	sqlFenceOpen  = regexp.MustCompile("(?i)```sql\\s*")
	sqlFenceClose = regexp.MustCompile("```\\s*")
)

// StripSQLFences removes markdown code fences the model wraps queries in.
func StripSQLFences(query string) string {
	clean := strings.TrimSpace(query)
	clean = sqlFenceOpen.ReplaceAllString(clean, "")
	clean = sqlFenceClose.ReplaceAllString(clean, "")
	return strings.TrimSpace(clean)
}

// ValidateSelectOnly strips fences and enforces the read-only policy.
// It returns the cleaned query on success, or a string beginning with
// "Error:" describing the rejection. The Error-string convention (rather
// than a Go error) keeps the result directly usable as a tool reply the
// model can read and react to.
func ValidateSelectOnly(query string) string {
	clean := StripSQLFences(query)
	lowered := strings.ToLower(clean)

	if !strings.HasPrefix(lowered, "select") && !strings.HasPrefix(lowered, "with") {
		return "Error: Only SELECT or CTE queries are allowed."
	}

	for _, keyword := range forbiddenKeywords {
		if strings.Contains(lowered, keyword) {
			return "Error: Query contained a non-read keyword."
		}
	}

	return clean
}

// IsValidationError reports whether a ValidateSelectOnly result is a
// rejection rather than a cleaned query.
func IsValidationError(result string) bool {
	return strings.HasPrefix(result, "Error:")
}
