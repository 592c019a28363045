// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultPruneAfterDays    = 30
	defaultPruneInactiveDays = 30
)

// NewPruneReviewTool creates the prune_review tool definition
func NewPruneReviewTool() mcp.Tool {
	return mcp.NewTool("prune_review",
		mcp.WithDescription("Report memories that are old and have not been accessed recently, so they could be forgotten. Nothing is deleted; use the forget tool on ids you confirm."),
		mcp.WithNumber("older_than_days",
			mcp.Description("Only report memories created more than this many days ago (default 30)"),
		),
		mcp.WithNumber("inactive_days",
			mcp.Description("Only report memories not accessed in this many days (default 30)"),
		),
	)
}

// PruneReviewHandler handles the prune_review tool
func PruneReviewHandler(tc *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ageDays := request.GetFloat("older_than_days", defaultPruneAfterDays)
		if ageDays <= 0 {
			return mcp.NewToolResultError("older_than_days must be positive"), nil
		}
		inactiveDays := request.GetFloat("inactive_days", defaultPruneInactiveDays)
		if inactiveDays <= 0 {
			return mcp.NewToolResultError("inactive_days must be positive"), nil
		}

		now := time.Now()
		createdBefore := now.Add(-time.Duration(ageDays*24) * time.Hour)
		accessedBefore := now.Add(-time.Duration(inactiveDays*24) * time.Hour)

		candidates, err := tc.Service.Prune(ctx, tc.OwnerFor(ctx), createdBefore, accessedBefore)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if len(candidates) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("Nothing stale: no memory is both older than %.0f days and unread for %.0f days.", ageDays, inactiveDays)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%d memories older than %.0f days and not accessed in %.0f days (review, then use forget to delete):\n", len(candidates), ageDays, inactiveDays)
		for _, c := range candidates {
			fmt.Fprintf(&sb, "- [%s] (%s, created %s, last accessed %s) %s\n",
				c.ID, c.Tag, c.Created.Format("2006-01-02"), c.LastAccessed.Format("2006-01-02"), c.Text)
		}

		return mcp.NewToolResultText(strings.TrimRight(sb.String(), "\n")), nil
	}
}
