// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewRebuildLinksTool creates the rebuild_links tool definition
func NewRebuildLinksTool() mcp.Tool {
	return mcp.NewTool("rebuild_links",
		mcp.WithDescription("Drop and recompute all conflict links from stored embeddings. Use after changing consistency thresholds or if links look stale."),
	)
}

// RebuildLinksHandler handles the rebuild_links tool
func RebuildLinksHandler(tc *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pairs, err := tc.Service.RebuildLinks(ctx, tc.OwnerFor(ctx))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if pairs == 0 {
			return mcp.NewToolResultText("Conflict links rebuilt: no contradictions found."), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Conflict links rebuilt: %d contradicting pair(s).", pairs)), nil
	}
}
