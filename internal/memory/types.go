// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package memory

import "time"

// Memory is one remembered fact for an owner
type Memory struct {
	ID           string    `yaml:"id" json:"id"`
	Owner        string    `yaml:"-" json:"owner"`
	Tag          string    `yaml:"tag" json:"tag"`
	Created      time.Time `yaml:"created" json:"created"`
	Updated      time.Time `yaml:"updated" json:"updated"`
	LastAccessed time.Time `yaml:"last_accessed" json:"last_accessed"`
	// Conflicts lists ids this memory potentially contradicts
	Conflicts []string `yaml:"conflicts,omitempty" json:"conflicts,omitempty"`
	Text      string   `yaml:"-" json:"text"`
}

// Relevance levels for search results
const (
	RelevanceHigh   = "high"
	RelevanceMedium = "medium"
	RelevanceLow    = "low"
)

// RelevanceFor buckets a similarity score into a relevance level
func RelevanceFor(similarity float64) string {
	switch {
	case similarity >= 0.8:
		return RelevanceHigh
	case similarity >= 0.5:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}

// SearchResult is one search hit with its score
type SearchResult struct {
	Memory     Memory  `json:"memory"`
	Similarity float64 `json:"similarity"`
	Relevance  string  `json:"relevance"`
}

// SearchResponse carries the ranked hits and the conflict groups among
// them. Each group is a sorted list of memory ids.
type SearchResponse struct {
	Results        []SearchResult `json:"results"`
	ConflictGroups [][]string     `json:"conflict_groups,omitempty"`
}

// ListResponse carries the listed memories, newest first, and the
// conflict groups among them
type ListResponse struct {
	Memories       []Memory   `json:"memories"`
	ConflictGroups [][]string `json:"conflict_groups,omitempty"`
}

// StoreResult is the outcome of a store. Exactly one of Memory and
// Rejection is set.
type StoreResult struct {
	Memory    *Memory             `json:"memory,omitempty"`
	Rejection *DuplicateRejection `json:"rejection,omitempty"`
	// Conflicts are the links recorded for the new memory
	Conflicts []ConflictInfo `json:"conflicts,omitempty"`
}

// ConflictInfo describes a conflict link recorded during a store
type ConflictInfo struct {
	ID         string  `json:"id"`
	Tag        string  `json:"tag"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// PruneCandidate is a memory the prune review flags as stale. Prune
// only reports; it never deletes.
type PruneCandidate struct {
	ID           string    `json:"id"`
	Tag          string    `json:"tag"`
	Text         string    `json:"text"`
	Created      time.Time `json:"created"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Checkpoint is a session snapshot, one per owner
type Checkpoint struct {
	Owner   string    `json:"owner"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}
