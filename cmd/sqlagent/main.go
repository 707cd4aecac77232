// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sqlagent starts the AleutianSQL gateway HTTP server.
//
// This is the main entry point for the containerized service. It reads
// configuration from environment variables (a local .env file is loaded
// when present) and starts the server.
//
// # Environment Variables
//
//   - SQLAGENT_PORT: HTTP server port (default: 8080)
//   - LLM_BACKEND_TYPE: LLM provider - azure, openai (default: azure)
//   - AZURE_OPENAI_ENDPOINT / _DEPLOYMENT_NAME / _API_VERSION / _API_KEY:
//     Azure OpenAI settings (required for the azure backend)
//   - AZURE_SQL_SERVER, AZURE_SQL_DATABASE: target database (required)
//   - SQL_ALLOWED_TABLES: comma-separated table allowlist
//   - SQL_SCHEMA_SAMPLE_ROWS: sample rows per table in schema info
//   - AGENT_RECURSION_LIMIT: agent loop step budget (default: 12)
//   - AUDIT_LOG_PATH: local session audit log (default: ./logs/sessions.log)
//   - AZURE_STORAGE_CONNECTION_STRING: enables the Azure Table audit sink
//   - AZURE_TABLE_NAME: audit table name (default: AgentLogs)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	# Build
//	go build -o sqlagent ./cmd/sqlagent
//
//	# Run
//	./sqlagent
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/AleutianAI/AleutianSQL/pkg/logging"
	"github.com/AleutianAI/AleutianSQL/services/gateway"
)

func main() {
	// Local development convenience; deployed environments set real
	// environment variables.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file")
	}

	// Setup structured logging. LOG_DIR additionally mirrors entries to
	// a daily JSON file.
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "sqlagent",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := gateway.Config{
		Port:                    getEnvInt("SQLAGENT_PORT", 8080),
		LLMBackend:              getEnvString("LLM_BACKEND_TYPE", "azure"),
		OTelEndpoint:            os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AuditLogPath:            getEnvString("AUDIT_LOG_PATH", "./logs/sessions.log"),
		StorageConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
		TableName:               os.Getenv("AZURE_TABLE_NAME"),
	}

	slog.Info("Starting sqlagent",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"otel_endpoint", cfg.OTelEndpoint,
	)

	// Create the gateway with default (no-op) extension options.
	// Enterprise builds pass custom ServiceOptions here.
	svc, err := gateway.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Gateway error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
