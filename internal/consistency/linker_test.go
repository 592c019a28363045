// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package consistency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artemgetmann/mindmirror/internal/graph"
	"github.com/artemgetmann/mindmirror/internal/index"
)

func TestConflictLinker_LinksWithinBand(t *testing.T) {
	links := graph.NewManager(setupTestDB(t))
	idx := &stubIndex{neighbors: []index.Neighbor{
		// Similarity 0.72, inside the band: linked
		{ID: "night-routine", Tag: "routine", Distance: 0.56},
		// Similarity 0.5, below the band: skipped
		{ID: "unrelated", Tag: "goal", Distance: 1.0},
		// Similarity 0.97, above the band: skipped
		{ID: "near-dup", Tag: "habit", Distance: 0.06},
	}}
	linker := NewConflictLinker(idx, links, 0.65, 0.95)

	conflicts, err := linker.Link(context.Background(), "alice", "new-mem", []float32{1, 0})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "night-routine", conflicts[0].ID)
	assert.Equal(t, "routine", conflicts[0].Tag)
	assert.InDelta(t, 0.72, conflicts[0].Similarity, 1e-9)

	// The link is bidirectional
	fromNew, err := links.LinksFrom(context.Background(), "alice", "new-mem")
	require.NoError(t, err)
	require.Len(t, fromNew, 1)

	fromOld, err := links.LinksFrom(context.Background(), "alice", "night-routine")
	require.NoError(t, err)
	require.Len(t, fromOld, 1)
	assert.Equal(t, "new-mem", fromOld[0].TargetID)
}

func TestConflictLinker_BandEndsInclusive(t *testing.T) {
	links := graph.NewManager(setupTestDB(t))
	idx := &stubIndex{neighbors: []index.Neighbor{
		// Exactly at the lower bound (similarity 0.65)
		{ID: "at-lower", Tag: "routine", Distance: 0.7},
		// Exactly at the upper bound (similarity 0.95)
		{ID: "at-upper", Tag: "goal", Distance: 0.1},
	}}
	linker := NewConflictLinker(idx, links, 0.65, 0.95)

	conflicts, err := linker.Link(context.Background(), "alice", "new-mem", []float32{1, 0})
	require.NoError(t, err)
	assert.Len(t, conflicts, 2)
}

func TestConflictLinker_LinksAcrossAndWithinTags(t *testing.T) {
	links := graph.NewManager(setupTestDB(t))
	idx := &stubIndex{neighbors: []index.Neighbor{
		// Similarity 0.72 in both cases; tag plays no role
		{ID: "same-tag", Tag: "preference", Distance: 0.56},
		{ID: "other-tag", Tag: "habit", Distance: 0.56},
	}}
	linker := NewConflictLinker(idx, links, 0.65, 0.95)

	conflicts, err := linker.Link(context.Background(), "alice", "new-mem", []float32{1, 0})
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "same-tag", conflicts[0].ID)
	assert.Equal(t, "other-tag", conflicts[1].ID)
}

func TestConflictLinker_SkipsSelfAndExcluded(t *testing.T) {
	links := graph.NewManager(setupTestDB(t))
	idx := &stubIndex{neighbors: []index.Neighbor{
		{ID: "new-mem", Tag: "routine", Distance: 0.56},
		{ID: "excluded", Tag: "routine", Distance: 0.56},
		{ID: "kept", Tag: "routine", Distance: 0.56},
	}}
	linker := NewConflictLinker(idx, links, 0.65, 0.95)

	conflicts, err := linker.Link(context.Background(), "alice", "new-mem", []float32{1, 0}, "excluded")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "kept", conflicts[0].ID)
}

func TestConflictLinker_ScansAllCandidates(t *testing.T) {
	links := graph.NewManager(setupTestDB(t))
	idx := &stubIndex{}
	linker := NewConflictLinker(idx, links, 0.65, 0.95)

	_, err := linker.Link(context.Background(), "alice", "new-mem", []float32{1, 0})
	require.NoError(t, err)

	// The scan is cross-tag and uncapped
	assert.Equal(t, "", idx.lastTag)
	assert.Equal(t, 0, idx.lastK)
}
