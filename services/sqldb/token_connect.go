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
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	mssql "github.com/microsoft/go-mssqldb"
)

// databaseTokenScope is the Entra ID scope for Azure SQL access tokens.
const databaseTokenScope = "https://database.windows.net/.default"

// tokenAcquireTimeout bounds a single credential exchange.
const tokenAcquireTimeout = 30 * time.Second

// Connect opens a Database using DefaultAzureCredential access tokens.
//
// # Description
//
// Builds a credential chain (environment, workload identity, managed
// identity, az cli), then opens a go-mssqldb connector that requests a
// fresh token for every new physical connection. This is the MFA-friendly
// path: no password or secret ever appears in the connection string.
//
// # Inputs
//
//   - ctx: Used for the initial connectivity probe.
//   - cfg: Connection settings. Server and Database must be set.
//
// # Outputs
//
//   - *Database: Ready-to-use wrapper with the allowlist applied.
//   - error: Non-nil if the credential chain, connector, or probe fails.
//
// # Limitations
//
//   - The credential chain is constructed once; rotating the underlying
//     identity requires a process restart.
//
// # Assumptions
//
//   - The executing identity has been granted access on the target DB
//     (CREATE USER ... FROM EXTERNAL PROVIDER).
func Connect(ctx context.Context, cfg Config) (*Database, error) {
	slog.Info("Connecting to Azure SQL",
		"server", cfg.Server,
		"database", cfg.Database,
		"allowed_tables", cfg.AllowedTables,
	)

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build DefaultAzureCredential: %w", err)
	}

	connector, err := mssql.NewAccessTokenConnector(cfg.connectionString(), func() (string, error) {
		tokenCtx, cancel := context.WithTimeout(context.Background(), tokenAcquireTimeout)
		defer cancel()

		token, err := credential.GetToken(tokenCtx, policy.TokenRequestOptions{
			Scopes: []string{databaseTokenScope},
		})
		if err != nil {
			return "", fmt.Errorf("failed to acquire database token: %w", err)
		}
		slog.Debug("Acquired Azure SQL access token", "expires_on", token.ExpiresOn)
		return token.Token, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create access token connector: %w", err)
	}

	db := sql.OpenDB(connector)

	wrapped := NewDatabase(db, cfg)
	if err := wrapped.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database connectivity probe failed: %w", err)
	}

	slog.Info("Azure SQL connection established", "database", cfg.Database)
	return wrapped, nil
}
