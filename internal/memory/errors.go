// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package memory

import (
	"errors"
	"fmt"
)

// ValidationError reports rejected input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError reports a memory id that does not exist for the owner
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("memory not found: %s", e.ID)
}

// Dependencies that can fail behind the service
const (
	DependencyEmbedding = "embedding"
	DependencyIndex     = "index"
)

// DependencyFailure reports a backend failure and which dependency
// produced it
type DependencyFailure struct {
	Dependency string
	Err        error
}

func (e *DependencyFailure) Error() string {
	return fmt.Sprintf("%s dependency failed: %v", e.Dependency, e.Err)
}

func (e *DependencyFailure) Unwrap() error {
	return e.Err
}

// DuplicateRejection reports that a store was refused because an
// existing memory in the same owner and tag is near-identical. It is
// a result, not an error: the caller gets it inside StoreResult.
type DuplicateRejection struct {
	ExistingID   string  `json:"existing_id"`
	ExistingText string  `json:"existing_text"`
	Similarity   float64 `json:"similarity"`
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
