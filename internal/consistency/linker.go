// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package consistency

import (
	"context"
	"fmt"

	"github.com/artemgetmann/mindmirror/internal/graph"
	"github.com/artemgetmann/mindmirror/internal/index"
)

// Conflict describes a recorded potentially-contradicts link from a
// new memory to an existing one
type Conflict struct {
	ID         string
	Tag        string
	Similarity float64
}

// ConflictLinker records links between a newly accepted memory and
// similar memories of the same owner, regardless of tag.
type ConflictLinker struct {
	idx               index.VectorIndex
	links             *graph.Manager
	conflictThreshold float64
	dupThreshold      float64
}

// NewConflictLinker creates a linker for the [conflictThreshold,
// dupThreshold] similarity band, both ends inclusive.
func NewConflictLinker(idx index.VectorIndex, links *graph.Manager, conflictThreshold, dupThreshold float64) *ConflictLinker {
	return &ConflictLinker{
		idx:               idx,
		links:             links,
		conflictThreshold: conflictThreshold,
		dupThreshold:      dupThreshold,
	}
}

// Link finds the owner's memories whose similarity to the new memory
// falls inside the conflict band and records a bidirectional link for
// each. Candidates span every tag, so a preference can contradict a
// habit and two preferences can contradict each other. The new memory
// itself and any id in exclude are skipped. Returns the recorded
// conflicts.
func (l *ConflictLinker) Link(ctx context.Context, owner, newID string, vector []float32, exclude ...string) ([]Conflict, error) {
	// No tag filter and no candidate cap
	neighbors, err := l.idx.QueryNearest(ctx, owner, vector, "", 0)
	if err != nil {
		return nil, fmt.Errorf("conflict scan failed: %w", err)
	}

	skip := make(map[string]bool, len(exclude)+1)
	skip[newID] = true
	for _, id := range exclude {
		skip[id] = true
	}

	var conflicts []Conflict
	for _, n := range neighbors {
		if skip[n.ID] {
			continue
		}
		sim := Similarity(n.Distance)
		if sim < l.conflictThreshold || sim > l.dupThreshold {
			continue
		}
		if err := l.links.AddLink(ctx, owner, newID, n.ID, sim); err != nil {
			return nil, err
		}
		conflicts = append(conflicts, Conflict{
			ID:         n.ID,
			Tag:        n.Tag,
			Similarity: sim,
		})
	}

	return conflicts, nil
}
