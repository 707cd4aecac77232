// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// DefaultTableName is used when AZURE_TABLE_NAME is unset.
const DefaultTableName = "AgentLogs"

// TableSink persists session records to Azure Table Storage.
//
// # Description
//
// Records partition by UTC date with the session id as row key, which
// keeps per-day scans cheap and makes the row key globally unique.
//
// # Thread Safety
//
// Safe for concurrent use; the aztables client is thread-safe.
type TableSink struct {
	client    *aztables.Client
	tableName string
}

// NewTableSink connects to Azure Table Storage and ensures the table
// exists.
//
// # Inputs
//
//   - connectionString: Storage account connection string.
//   - tableName: Target table. Empty uses DefaultTableName.
//
// # Outputs
//
//   - *TableSink: Ready to use sink.
//   - error: Non-nil if the client cannot be built or the table cannot
//     be created.
func NewTableSink(connectionString, tableName string) (*TableSink, error) {
	if tableName == "" {
		tableName = DefaultTableName
	}

	service, err := aztables.NewServiceClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create table service client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := service.CreateTable(ctx, tableName, nil); err != nil {
		var respErr *azcore.ResponseError
		if !errors.As(err, &respErr) || respErr.ErrorCode != "TableAlreadyExists" {
			return nil, fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
	}

	slog.Info("Azure Table audit sink enabled", "table", tableName)
	return &TableSink{
		client:    service.NewClient(tableName),
		tableName: tableName,
	}, nil
}

// Name implements Sink.
func (t *TableSink) Name() string {
	return "azure_table"
}

// Write implements Sink. Existing rows for the same session are replaced.
func (t *TableSink) Write(ctx context.Context, record SessionRecord) error {
	entity := aztables.EDMEntity{
		Entity: aztables.Entity{
			PartitionKey: time.Now().UTC().Format("2006-01-02"),
			RowKey:       record.SessionID,
		},
		Properties: map[string]any{
			"Question":      record.Question,
			"Answer":        record.Answer,
			"ExecutedQuery": record.ExecutedQuery,
			"Steps":         int32(record.Steps),
			"TimestampUtc":  record.TimestampUTC,
		},
	}

	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal table entity: %w", err)
	}
	if _, err := t.client.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{
		UpdateMode: aztables.UpdateModeReplace,
	}); err != nil {
		return fmt.Errorf("failed to upsert audit entity: %w", err)
	}
	return nil
}

// Close implements Sink. The aztables client holds no resources needing
// release.
func (t *TableSink) Close() error {
	return nil
}

var _ Sink = (*TableSink)(nil)
