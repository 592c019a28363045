// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package graph persists the conflict-link edges between memories.
// Every logical link is stored as two directed rows so that reading
// either endpoint sees the edge without an OR scan.
package graph

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/artemgetmann/mindmirror/internal/database"
)

// Manager handles conflict-link operations
type Manager struct {
	db *gorm.DB
}

// NewManager creates a new link manager
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// AddLink records a bidirectional conflict link between two memories.
// Both directed rows are written in one transaction; re-linking an
// existing pair updates the similarity instead of failing.
func (m *Manager) AddLink(ctx context.Context, owner, sourceID, targetID string, similarity float64) error {
	if sourceID == targetID {
		return fmt.Errorf("cannot link a memory to itself")
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, pair := range [][2]string{{sourceID, targetID}, {targetID, sourceID}} {
			link := database.ConflictLink{
				Owner:      owner,
				SourceID:   pair[0],
				TargetID:   pair[1],
				Similarity: similarity,
			}
			result := tx.Where("source_id = ? AND target_id = ?", pair[0], pair[1]).
				Assign(map[string]interface{}{"similarity": similarity, "owner": owner}).
				FirstOrCreate(&link)
			if result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add conflict link: %w", err)
	}
	return nil
}

// LinksFrom retrieves the outgoing links of a memory
func (m *Manager) LinksFrom(ctx context.Context, owner, memoryID string) ([]database.ConflictLink, error) {
	var links []database.ConflictLink
	err := m.db.WithContext(ctx).
		Where("owner = ? AND source_id = ?", owner, memoryID).
		Order("target_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict links: %w", err)
	}
	return links, nil
}

// LinksAmong retrieves all outgoing links of the given memories
func (m *Manager) LinksAmong(ctx context.Context, owner string, memoryIDs []string) ([]database.ConflictLink, error) {
	if len(memoryIDs) == 0 {
		return nil, nil
	}
	var links []database.ConflictLink
	err := m.db.WithContext(ctx).
		Where("owner = ? AND source_id IN ?", owner, memoryIDs).
		Order("source_id ASC, target_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict links: %w", err)
	}
	return links, nil
}

// RemoveLinksFor deletes every link row touching the memory, in both
// directions
func (m *Manager) RemoveLinksFor(ctx context.Context, owner, memoryID string) error {
	err := m.db.WithContext(ctx).
		Where("owner = ? AND (source_id = ? OR target_id = ?)", owner, memoryID, memoryID).
		Delete(&database.ConflictLink{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove conflict links: %w", err)
	}
	return nil
}

// RemoveAllLinks deletes every link row of the owner. Used when links
// are rebuilt from scratch.
func (m *Manager) RemoveAllLinks(ctx context.Context, owner string) error {
	err := m.db.WithContext(ctx).
		Where("owner = ?", owner).
		Delete(&database.ConflictLink{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove conflict links: %w", err)
	}
	return nil
}

// CountLinks returns the number of directed link rows for the owner
func (m *Manager) CountLinks(ctx context.Context, owner string) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).
		Model(&database.ConflictLink{}).
		Where("owner = ?", owner).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count conflict links: %w", err)
	}
	return count, nil
}
