// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package consistency

import (
	"context"
	"fmt"

	"github.com/artemgetmann/mindmirror/internal/index"
)

// Match identifies an existing memory and how similar it is to the
// candidate text
type Match struct {
	ID         string
	Similarity float64
}

// GuardResult is the outcome of a duplicate check. BestMatch is the
// closest same-scope memory regardless of the verdict, nil when the
// scope is empty.
type GuardResult struct {
	Duplicate bool
	BestMatch *Match
}

// DuplicateGuard rejects new memories that near-duplicate an existing
// memory of the same owner and tag.
type DuplicateGuard struct {
	idx       index.VectorIndex
	threshold float64
	neighborK int
}

// NewDuplicateGuard creates a guard that checks the top neighborK
// same-scope neighbors and flags any with similarity strictly above
// threshold.
func NewDuplicateGuard(idx index.VectorIndex, threshold float64, neighborK int) *DuplicateGuard {
	if neighborK < 1 {
		neighborK = 3
	}
	return &DuplicateGuard{
		idx:       idx,
		threshold: threshold,
		neighborK: neighborK,
	}
}

// Check queries the owner+tag scope for the candidate vector. An empty
// scope never rejects. The verdict is duplicate only when a neighbor
// scores strictly above the threshold; a score exactly at the
// threshold is accepted.
func (g *DuplicateGuard) Check(ctx context.Context, owner, tag string, vector []float32) (*GuardResult, error) {
	neighbors, err := g.idx.QueryNearest(ctx, owner, vector, tag, g.neighborK)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	result := &GuardResult{}
	for _, n := range neighbors {
		sim := Similarity(n.Distance)
		if result.BestMatch == nil || sim > result.BestMatch.Similarity {
			result.BestMatch = &Match{ID: n.ID, Similarity: sim}
		}
		if sim > g.threshold {
			result.Duplicate = true
		}
	}

	return result, nil
}
