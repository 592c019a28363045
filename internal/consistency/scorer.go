// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package consistency keeps an owner's memories coherent on every
// write: near-identical memories in the same tag are rejected, and
// similar memories across tags are linked as potential contradictions.
package consistency

// Similarity maps a cosine distance in [0, 2] to a similarity score in
// [0, 1]. Distance 0 scores 1, distance 2 scores 0; out-of-range
// inputs are clamped.
func Similarity(distance float64) float64 {
	sim := 1 - distance/2
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// SimilarityOrZero scores an optional distance. A nil distance means
// the backend produced no score and maps to 0.
func SimilarityOrZero(distance *float64) float64 {
	if distance == nil {
		return 0
	}
	return Similarity(*distance)
}
