// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package index stores memory rows with their embedding vectors and
// answers nearest-neighbor queries over them. Vectors live as blobs in
// the memories table; queries scan the owner's rows and rank by cosine
// distance.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/artemgetmann/mindmirror/internal/database"
	"github.com/artemgetmann/mindmirror/internal/embeddings"
)

// Neighbor is one result of a nearest-neighbor query. Distance is
// cosine distance in [0, 2], smaller is closer.
type Neighbor struct {
	ID        string
	Tag       string
	Distance  float64
	CreatedAt time.Time
}

// ErrNotFound is returned when a memory id does not exist for the owner
var ErrNotFound = errors.New("memory not found")

// VectorIndex is the persistence surface the memory service builds on
type VectorIndex interface {
	// Insert persists a memory row with its embedding
	Insert(ctx context.Context, mem *database.Memory) error

	// Get returns the memory with the given id for the owner
	Get(ctx context.Context, owner, id string) (*database.Memory, error)

	// GetMany returns the subset of ids that exist for the owner.
	// Missing ids are silently omitted.
	GetMany(ctx context.Context, owner string, ids []string) ([]database.Memory, error)

	// List returns the owner's memories, newest first. An empty tag
	// returns all tags.
	List(ctx context.Context, owner, tag string) ([]database.Memory, error)

	// Delete removes the memory with the given id for the owner
	Delete(ctx context.Context, owner, id string) error

	// QueryNearest returns up to k neighbors of the query vector among
	// the owner's memories, closest first. An empty tag searches all
	// tags; k <= 0 returns every neighbor.
	QueryNearest(ctx context.Context, owner string, vector []float32, tag string, k int) ([]Neighbor, error)

	// TouchAccess stamps last_accessed_at for the given ids
	TouchAccess(ctx context.Context, owner string, ids []string) error

	// ListStale returns memories created before createdBefore whose
	// last access is also older than accessedBefore, excluding the
	// given tags. Newest first.
	ListStale(ctx context.Context, owner string, createdBefore, accessedBefore time.Time, excludeTags []string) ([]database.Memory, error)
}

// SQLIndex implements VectorIndex on a gorm database
type SQLIndex struct {
	db *gorm.DB
}

// NewSQLIndex creates a vector index over the given database
func NewSQLIndex(db *gorm.DB) *SQLIndex {
	return &SQLIndex{db: db}
}

// Insert persists a memory row with its embedding
func (s *SQLIndex) Insert(ctx context.Context, mem *database.Memory) error {
	if err := s.db.WithContext(ctx).Create(mem).Error; err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

// Get returns the memory with the given id for the owner
func (s *SQLIndex) Get(ctx context.Context, owner, id string) (*database.Memory, error) {
	var mem database.Memory
	err := s.db.WithContext(ctx).
		Where("owner = ? AND id = ?", owner, id).
		First(&mem).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}
	return &mem, nil
}

// GetMany returns the subset of ids that exist for the owner
func (s *SQLIndex) GetMany(ctx context.Context, owner string, ids []string) ([]database.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var mems []database.Memory
	err := s.db.WithContext(ctx).
		Where("owner = ? AND id IN ?", owner, ids).
		Find(&mems).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load memories: %w", err)
	}
	return mems, nil
}

// List returns the owner's memories, newest first
func (s *SQLIndex) List(ctx context.Context, owner, tag string) ([]database.Memory, error) {
	query := s.db.WithContext(ctx).Where("owner = ?", owner)
	if tag != "" {
		query = query.Where("tag = ?", tag)
	}

	var mems []database.Memory
	if err := query.Order("created_at DESC, id DESC").Find(&mems).Error; err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	return mems, nil
}

// Delete removes the memory with the given id for the owner
func (s *SQLIndex) Delete(ctx context.Context, owner, id string) error {
	result := s.db.WithContext(ctx).
		Where("owner = ? AND id = ?", owner, id).
		Delete(&database.Memory{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete memory: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// QueryNearest scans the owner's rows and ranks them by cosine
// distance. Ties are broken by more recent created_at.
func (s *SQLIndex) QueryNearest(ctx context.Context, owner string, vector []float32, tag string, k int) ([]Neighbor, error) {
	query := s.db.WithContext(ctx).
		Select("id", "tag", "embedding", "created_at").
		Where("owner = ?", owner)
	if tag != "" {
		query = query.Where("tag = ?", tag)
	}

	var rows []database.Memory
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to scan memories: %w", err)
	}

	neighbors := make([]Neighbor, 0, len(rows))
	for _, row := range rows {
		stored := embeddings.BlobToFloat32Slice(row.Embedding)
		if stored == nil {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			ID:        row.ID,
			Tag:       row.Tag,
			Distance:  embeddings.CosineDistance(vector, stored),
			CreatedAt: row.CreatedAt,
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].CreatedAt.After(neighbors[j].CreatedAt)
	})

	if k > 0 && len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// TouchAccess stamps last_accessed_at for the given ids
func (s *SQLIndex) TouchAccess(ctx context.Context, owner string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&database.Memory{}).
		Where("owner = ? AND id IN ?", owner, ids).
		Update("last_accessed_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to update access time: %w", err)
	}
	return nil
}

// ListStale returns memories created before createdBefore and not
// accessed since accessedBefore, excluding the given tags
func (s *SQLIndex) ListStale(ctx context.Context, owner string, createdBefore, accessedBefore time.Time, excludeTags []string) ([]database.Memory, error) {
	query := s.db.WithContext(ctx).
		Where("owner = ? AND created_at < ? AND last_accessed_at < ?", owner, createdBefore, accessedBefore)
	if len(excludeTags) > 0 {
		query = query.Where("tag NOT IN ?", excludeTags)
	}

	var mems []database.Memory
	if err := query.Order("created_at DESC, id DESC").Find(&mems).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale memories: %w", err)
	}
	return mems, nil
}
