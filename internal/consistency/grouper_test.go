// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package consistency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artemgetmann/mindmirror/internal/database"
	"github.com/artemgetmann/mindmirror/internal/graph"
)

func mem(id string) database.Memory {
	return database.Memory{ID: id, Owner: "alice", Tag: "preference", Text: id}
}

func TestGrouper_TransitiveClosure(t *testing.T) {
	db := setupTestDB(t)
	links := graph.NewManager(db)
	ctx := context.Background()

	idx := &stubIndex{memories: []database.Memory{mem("a"), mem("b"), mem("c")}}
	require.NoError(t, links.AddLink(ctx, "alice", "a", "b", 0.7))
	require.NoError(t, links.AddLink(ctx, "alice", "b", "c", 0.68))

	grouper := NewConflictGrouper(idx, links)

	// Seeding with only "a" still pulls in the whole component
	groups, err := grouper.Groups(ctx, "alice", []string{"a"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "b", "c"}, groups[0])
}

func TestGrouper_MultipleComponents(t *testing.T) {
	db := setupTestDB(t)
	links := graph.NewManager(db)
	ctx := context.Background()

	idx := &stubIndex{memories: []database.Memory{
		mem("a"), mem("b"), mem("x"), mem("y"), mem("lone"),
	}}
	require.NoError(t, links.AddLink(ctx, "alice", "x", "y", 0.7))
	require.NoError(t, links.AddLink(ctx, "alice", "a", "b", 0.7))

	grouper := NewConflictGrouper(idx, links)

	groups, err := grouper.Groups(ctx, "alice", []string{"y", "lone", "b"})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	// Components ordered by their smallest member
	assert.Equal(t, []string{"a", "b"}, groups[0])
	assert.Equal(t, []string{"x", "y"}, groups[1])
}

func TestGrouper_SkipsDanglingIDs(t *testing.T) {
	db := setupTestDB(t)
	links := graph.NewManager(db)
	ctx := context.Background()

	// "ghost" has link rows but no memory row
	idx := &stubIndex{memories: []database.Memory{mem("a"), mem("b")}}
	require.NoError(t, links.AddLink(ctx, "alice", "a", "b", 0.7))
	require.NoError(t, links.AddLink(ctx, "alice", "a", "ghost", 0.7))

	grouper := NewConflictGrouper(idx, links)

	groups, err := grouper.Groups(ctx, "alice", []string{"a"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "b"}, groups[0])
}

func TestGrouper_NoSingletons(t *testing.T) {
	db := setupTestDB(t)
	links := graph.NewManager(db)
	ctx := context.Background()

	// The only counterpart is dangling, leaving "a" alone
	idx := &stubIndex{memories: []database.Memory{mem("a")}}
	require.NoError(t, links.AddLink(ctx, "alice", "a", "ghost", 0.7))

	grouper := NewConflictGrouper(idx, links)

	groups, err := grouper.Groups(ctx, "alice", []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestGrouper_NoLinks(t *testing.T) {
	db := setupTestDB(t)
	links := graph.NewManager(db)

	idx := &stubIndex{memories: []database.Memory{mem("a")}}
	grouper := NewConflictGrouper(idx, links)

	groups, err := grouper.Groups(context.Background(), "alice", []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, groups)

	// Empty seeds are a no-op
	groups, err = grouper.Groups(context.Background(), "alice", nil)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestGrouper_Deterministic(t *testing.T) {
	db := setupTestDB(t)
	links := graph.NewManager(db)
	ctx := context.Background()

	idx := &stubIndex{memories: []database.Memory{mem("a"), mem("b"), mem("c")}}
	require.NoError(t, links.AddLink(ctx, "alice", "c", "a", 0.7))
	require.NoError(t, links.AddLink(ctx, "alice", "b", "c", 0.7))

	grouper := NewConflictGrouper(idx, links)

	first, err := grouper.Groups(ctx, "alice", []string{"c"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := grouper.Groups(ctx, "alice", []string{"c"})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
