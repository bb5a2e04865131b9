// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates the tables backing the store.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	// One row per stored path. revision is the clock value of the last write.
	`CREATE TABLE IF NOT EXISTS nodes (
    path TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    revision BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
)`,
	// Single-row commit clock. Every commit advances it by one.
	`CREATE TABLE IF NOT EXISTS clock (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    seq BIGINT NOT NULL
)`,
	`INSERT INTO clock (id, seq) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
}
