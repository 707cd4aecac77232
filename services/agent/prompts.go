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

import "fmt"

// agentSystemPrompt steers the decision step. The tool ordering matters:
// models follow the listed pipeline far more reliably than an unordered
// tool inventory.
const agentSystemPrompt = "You are an expert Data analyst SQL assistant for Azure SQL Database or Fabric T-SQL endpoints. " +
	"You must answer by using the provided tools in this order when needed: " +
	"get_database_schema -> generate_sql_query -> validate_sql_query -> execute_sql_query. " +
	"Never return raw SQL as the final answer; always execute the query and return results. " +
	"Return a concise narrative summary AND, when rows are present, a clear table. " +
	"Only use read-only SQL (SELECT/CTE). Always inspect schema before generating SQL."

// generateSystemPrompt frames the single-shot SQL generation call.
const generateSystemPrompt = "You are a senior data analyst targeting Azure SQL DB or Fabric lakehouse SQL endpoints."

// fixSystemPrompt frames the single-shot SQL repair call.
const fixSystemPrompt = "You repair T-SQL queries for Azure SQL or Fabric SQL endpoints."

func generatePrompt(question, schemaInfo string) string {
	return fmt.Sprintf(`You translate natural language into safe T-SQL.
Use only the provided schema. Do not invent tables or columns.
Only produce a single SQL query wrapped in %[1]ssql%[1]s fences.

Schema:
%[2]s

Question: %[3]s
SQL:`, "```", schemaInfo, question)
}

func fixPrompt(question, originalQuery, errorMessage string) string {
	return fmt.Sprintf(`The SQL query below failed. Re-write a corrected query.
Rules:
- Keep it read-only (SELECT/CTE only).
- Use existing tables/columns only.
- Prefer explicit column names over SELECT *.
- Return only SQL, wrapped in %[1]ssql%[1]s fences.

Question: %[2]s
Original query:
%[3]s

Error message: %[4]s

Corrected SQL:`, "```", question, originalQuery, errorMessage)
}
