// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewRememberTool creates the remember tool definition
func NewRememberTool(tags []string) mcp.Tool {
	return mcp.NewTool("remember",
		mcp.WithDescription("Store a fact about the user. Near-duplicates of an existing memory in the same tag are rejected; similar memories in other tags are flagged as potential contradictions."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The fact to remember, in natural language"),
		),
		mcp.WithString("tag",
			mcp.Required(),
			mcp.Description(fmt.Sprintf("Category for the memory. One of: %s", strings.Join(tags, ", "))),
		),
	)
}

// RememberHandler handles the remember tool
func RememberHandler(tc *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := request.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		tag, err := request.RequireString("tag")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := tc.Service.Store(ctx, tc.OwnerFor(ctx), text, tag)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if result.Rejection != nil {
			r := result.Rejection
			return mcp.NewToolResultText(fmt.Sprintf(
				"Not stored: too similar to an existing %s memory (similarity %.2f).\n\nExisting memory [%s]: %s",
				tag, r.Similarity, r.ExistingID, r.ExistingText)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Remembered [%s] (%s): %s", result.Memory.ID, tag, result.Memory.Text)

		if len(result.Conflicts) > 0 {
			sb.WriteString("\n\nPotential contradictions:")
			for _, c := range result.Conflicts {
				fmt.Fprintf(&sb, "\n- [%s] (%s, similarity %.2f): %s", c.ID, c.Tag, c.Similarity, c.Text)
			}
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
