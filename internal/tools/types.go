// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package tools implements the MCP tool surface over the memory store.
package tools

import (
	"context"

	"github.com/artemgetmann/mindmirror/internal/auth"
	"github.com/artemgetmann/mindmirror/internal/memory"
)

// ToolContext holds shared dependencies for all tools
type ToolContext struct {
	Service *memory.Service
	// DefaultOwner is used when the request context carries no
	// authenticated owner (stdio mode)
	DefaultOwner string
}

// NewToolContext creates a new tool context
func NewToolContext(svc *memory.Service, defaultOwner string) *ToolContext {
	return &ToolContext{
		Service:      svc,
		DefaultOwner: defaultOwner,
	}
}

// OwnerFor resolves the owner for a request: the authenticated owner
// when present, otherwise the configured default.
func (tc *ToolContext) OwnerFor(ctx context.Context) string {
	if owner, ok := auth.GetOwnerFromContext(ctx); ok {
		return owner
	}
	return tc.DefaultOwner
}
