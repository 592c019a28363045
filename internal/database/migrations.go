// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package database

import (
	"fmt"

	"gorm.io/gorm"
)

// AllModels returns all database models for migration
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&AuthToken{},
		&Memory{},
		&ConflictLink{},
		&Checkpoint{},
	}
}

// Migrate runs database migrations for all models
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// DropAllTables drops all tables (use with caution!)
func DropAllTables(db *gorm.DB) error {
	// Drop in reverse order to avoid foreign key constraints
	models := []interface{}{
		&Checkpoint{},
		&ConflictLink{},
		&Memory{},
		&AuthToken{},
		&User{},
	}

	for _, model := range models {
		if err := db.Migrator().DropTable(model); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}

	return nil
}

// CreateIndexes creates additional indexes for better query performance
func CreateIndexes(db *gorm.DB) error {
	// Add composite indexes for frequently queried combinations
	indexes := []struct {
		table   string
		columns []string
		name    string
	}{
		{
			table:   "mindmirror_memories",
			columns: []string{"owner", "created_at"},
			name:    "idx_memories_owner_created",
		},
		{
			table:   "mindmirror_memories",
			columns: []string{"owner", "last_accessed_at"},
			name:    "idx_memories_owner_accessed",
		},
		{
			table:   "mindmirror_conflict_links",
			columns: []string{"owner", "source_id"},
			name:    "idx_links_owner_source",
		},
		{
			table:   "mindmirror_conflict_links",
			columns: []string{"owner", "target_id"},
			name:    "idx_links_owner_target",
		},
		{
			table:   "mindmirror_auth_tokens",
			columns: []string{"user_id", "expires_at"},
			name:    "idx_tokens_user_expires",
		},
	}

	for _, idx := range indexes {
		// Check if index exists
		hasIndex := db.Migrator().HasIndex(idx.table, idx.name)
		if !hasIndex {
			// Create the index using raw SQL (GORM doesn't support composite indexes well)
			sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				idx.name,
				idx.table,
				joinColumns(idx.columns))

			if err := db.Exec(sql).Error; err != nil {
				return fmt.Errorf("failed to create index %s: %w", idx.name, err)
			}
		}
	}

	return nil
}

// joinColumns joins column names with commas
func joinColumns(columns []string) string {
	result := ""
	for i, col := range columns {
		if i > 0 {
			result += ", "
		}
		result += col
	}
	return result
}
