// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/artemgetmann/mindmirror/internal/memory"
)

// NewRecallTool creates the recall tool definition
func NewRecallTool() mcp.Tool {
	return mcp.NewTool("recall",
		mcp.WithDescription("Search the user's memories semantically. Results are ranked by similarity and annotated with relevance levels; memories that potentially contradict each other are reported as conflict groups."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to look for. A question, keywords, or topic."),
		),
		mcp.WithString("tag",
			mcp.Description("Limit results to one tag"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results. Default: 10"),
		),
	)
}

// RecallHandler handles the recall tool
func RecallHandler(tc *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		tag := request.GetString("tag", "")
		limit := int(request.GetFloat("limit", 10.0))

		resp, err := tc.Service.Search(ctx, tc.OwnerFor(ctx), query, tag, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if len(resp.Results) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No memories found for: '%s'", query)), nil
		}

		return mcp.NewToolResultText(formatRecallResults(resp)), nil
	}
}

func formatRecallResults(resp *memory.SearchResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d memories:\n", len(resp.Results))

	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "\n%d. [%s] (%s, %s relevance, similarity %.2f)\n   %s",
			i+1, r.Memory.ID, r.Memory.Tag, r.Relevance, r.Similarity, r.Memory.Text)
		if len(r.Memory.Conflicts) > 0 {
			fmt.Fprintf(&sb, "\n   potentially contradicts: %s", strings.Join(r.Memory.Conflicts, ", "))
		}
	}

	if len(resp.ConflictGroups) > 0 {
		sb.WriteString("\n\nConflict groups (memories that may contradict each other):")
		for _, group := range resp.ConflictGroups {
			fmt.Fprintf(&sb, "\n- %s", strings.Join(group, ", "))
		}
	}

	return sb.String()
}
