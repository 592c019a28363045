// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package integration

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artemgetmann/mindmirror/internal/config"
	"github.com/artemgetmann/mindmirror/internal/database"
	"github.com/artemgetmann/mindmirror/internal/embeddings"
	"github.com/artemgetmann/mindmirror/internal/memory"
)

// vecForSim returns a unit vector whose similarity to {1,0,0} is s
// under sim = (1 + cos) / 2.
func vecForSim(s float64) []float32 {
	c := 2*s - 1
	return []float32{float32(c), float32(math.Sqrt(1 - c*c)), 0}
}

// TestMemoryLifecycle walks the full store/search/delete flow: a
// memory is stored, a near-duplicate is rejected, a contradicting
// memory in the same tag is stored and linked, search and listing
// surface the conflict group, and deletion removes the link from
// both sides.
func TestMemoryLifecycle(t *testing.T) {
	db, err := database.Connect(&database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "integration.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		_ = database.Close(db)
	})

	vectors := map[string][]float32{
		"I prefer working out in the morning": {1, 0, 0},
		"I like to work out in the morning":   vecForSim(0.97),
		"I do my best workouts late at night": vecForSim(0.72),
		"morning exercise":                    {1, 0, 0},
	}
	embedder := &embeddings.MockClient{
		EmbedFunc: func(text string) ([]float32, error) {
			v, ok := vectors[text]
			require.True(t, ok, "unexpected embed call for %q", text)
			return v, nil
		},
	}

	svc, err := memory.NewService(db, embedder, config.DefaultConfig())
	require.NoError(t, err)
	ctx := context.Background()

	// Store the first memory
	first, err := svc.Store(ctx, "alice", "I prefer working out in the morning", "preference")
	require.NoError(t, err)
	require.NotNil(t, first.Memory)
	require.Nil(t, first.Rejection)

	// A near-duplicate in the same tag is rejected, not stored
	dup, err := svc.Store(ctx, "alice", "I like to work out in the morning", "preference")
	require.NoError(t, err)
	require.Nil(t, dup.Memory)
	require.NotNil(t, dup.Rejection)
	assert.Equal(t, first.Memory.ID, dup.Rejection.ExistingID)
	assert.InDelta(t, 0.97, dup.Rejection.Similarity, 0.001)

	// A contradicting memory in the same tag is stored and linked
	night, err := svc.Store(ctx, "alice", "I do my best workouts late at night", "preference")
	require.NoError(t, err)
	require.NotNil(t, night.Memory)
	require.Len(t, night.Conflicts, 1)
	assert.Equal(t, first.Memory.ID, night.Conflicts[0].ID)

	// Only the two real memories exist, and listing reports the group
	all, err := svc.List(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, all.Memories, 2)
	require.Len(t, all.ConflictGroups, 1)

	// Search surfaces both sides and the conflict group
	resp, err := svc.Search(ctx, "alice", "morning exercise", "", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, first.Memory.ID, resp.Results[0].Memory.ID)
	assert.Equal(t, memory.RelevanceHigh, resp.Results[0].Relevance)

	require.Len(t, resp.ConflictGroups, 1)
	want := []string{first.Memory.ID, night.Memory.ID}
	if want[0] > want[1] {
		want[0], want[1] = want[1], want[0]
	}
	assert.Equal(t, want, resp.ConflictGroups[0])

	// Deleting one side removes the link from the other
	require.NoError(t, svc.Delete(ctx, "alice", night.Memory.ID))

	remaining, err := svc.Get(ctx, "alice", first.Memory.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining.Conflicts)

	resp, err = svc.Search(ctx, "alice", "morning exercise", "", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Empty(t, resp.ConflictGroups)
}

// TestOwnerIsolation verifies that owners never see each other's
// memories, in search, listing, or duplicate checks.
func TestOwnerIsolation(t *testing.T) {
	db, err := database.Connect(&database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "integration.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		_ = database.Close(db)
	})

	embedder := &embeddings.MockClient{
		EmbedFunc: func(text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}

	svc, err := memory.NewService(db, embedder, config.DefaultConfig())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Store(ctx, "alice", "I drink tea every morning", "habit")
	require.NoError(t, err)

	// Identical text under another owner is not a duplicate
	stored, err := svc.Store(ctx, "bob", "I drink tea every morning", "habit")
	require.NoError(t, err)
	require.NotNil(t, stored.Memory)
	require.Nil(t, stored.Rejection)

	bobResults, err := svc.Search(ctx, "bob", "tea", "", 10)
	require.NoError(t, err)
	require.Len(t, bobResults.Results, 1)
	assert.Equal(t, "bob", bobResults.Results[0].Memory.Owner)

	_, err = svc.Get(ctx, "alice", stored.Memory.ID)
	assert.True(t, memory.IsNotFound(err))
}
