// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package consistency

import (
	"context"
	"fmt"
	"sort"

	"github.com/artemgetmann/mindmirror/internal/graph"
	"github.com/artemgetmann/mindmirror/internal/index"
)

// ConflictGrouper computes connected components over the conflict
// links of a result set. Components are rebuilt from the link rows on
// every call; nothing is cached across requests.
type ConflictGrouper struct {
	idx   index.VectorIndex
	links *graph.Manager
}

// NewConflictGrouper creates a grouper over the given link store
func NewConflictGrouper(idx index.VectorIndex, links *graph.Manager) *ConflictGrouper {
	return &ConflictGrouper{
		idx:   idx,
		links: links,
	}
}

// Groups returns the conflict components reachable from the seed ids.
// The link closure is followed beyond the seeds, so a component is
// always reported whole. Link rows pointing at deleted memories are
// skipped silently. Only components with at least two live members are
// returned; members are sorted by id and components ordered by their
// smallest member.
func (g *ConflictGrouper) Groups(ctx context.Context, owner string, seedIDs []string) ([][]string, error) {
	if len(seedIDs) == 0 {
		return nil, nil
	}

	// Expand the closure: collect link rows until no new ids appear
	visited := make(map[string]bool, len(seedIDs))
	frontier := make([]string, 0, len(seedIDs))
	for _, id := range seedIDs {
		if !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	type edge struct{ source, target string }
	var edges []edge

	for len(frontier) > 0 {
		links, err := g.links.LinksAmong(ctx, owner, frontier)
		if err != nil {
			return nil, fmt.Errorf("failed to expand conflict groups: %w", err)
		}

		frontier = frontier[:0]
		for _, link := range links {
			edges = append(edges, edge{link.SourceID, link.TargetID})
			if !visited[link.TargetID] {
				visited[link.TargetID] = true
				frontier = append(frontier, link.TargetID)
			}
		}
	}

	if len(edges) == 0 {
		return nil, nil
	}

	// Drop ids whose memory row no longer exists
	all := make([]string, 0, len(visited))
	for id := range visited {
		all = append(all, id)
	}
	mems, err := g.idx.GetMany(ctx, owner, all)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conflict group members: %w", err)
	}
	live := make(map[string]bool, len(mems))
	for _, mem := range mems {
		live[mem.ID] = true
	}

	uf := newUnionFind()
	for _, e := range edges {
		if live[e.source] && live[e.target] {
			uf.union(e.source, e.target)
		}
	}

	// Collect components of size >= 2
	components := make(map[string][]string)
	for id := range uf.parent {
		root := uf.find(id)
		components[root] = append(components[root], id)
	}

	var groups [][]string
	for _, members := range components {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		groups = append(groups, members)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i][0] < groups[j][0]
	})

	return groups, nil
}

// unionFind is a disjoint-set forest with path compression
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

func (u *unionFind) find(x string) string {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		return x
	}
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	// Path compression
	for u.parent[x] != root {
		u.parent[x], x = root, u.parent[x]
	}
	return root
}

func (u *unionFind) union(a, b string) {
	rootA, rootB := u.find(a), u.find(b)
	if rootA == rootB {
		return
	}
	if u.rank[rootA] < u.rank[rootB] {
		rootA, rootB = rootB, rootA
	}
	u.parent[rootB] = rootA
	if u.rank[rootA] == u.rank[rootB] {
		u.rank[rootA]++
	}
}
