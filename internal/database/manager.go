// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package database

import (
	"fmt"

	"gorm.io/gorm"
)

// Manager owns the database connection and keeps the schema current.
type Manager struct {
	db     *gorm.DB
	config *Config
}

// NewManager connects to the database, runs migrations and creates indexes
func NewManager(cfg *Config) (*Manager, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := CreateIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &Manager{
		db:     db,
		config: cfg,
	}, nil
}

// DB returns the database connection
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Ping checks if the database connection is alive
func (m *Manager) Ping() error {
	return Ping(m.db)
}

// Close closes the database connection
func (m *Manager) Close() error {
	return Close(m.db)
}

// GetJournalMode returns the current journal mode of a database
func GetJournalMode(db *gorm.DB) (string, error) {
	var mode string
	err := db.Raw("PRAGMA journal_mode").Scan(&mode).Error
	return mode, err
}
