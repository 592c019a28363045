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

// NewCheckpointTool creates the checkpoint tool definition
func NewCheckpointTool() mcp.Tool {
	return mcp.NewTool("checkpoint",
		mcp.WithDescription("Save a session checkpoint so the next conversation can pick up where this one left off. Overwrites the previous checkpoint."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short title for the checkpoint"),
		),
		mcp.WithString("content",
			mcp.Description("Free-form notes about the session state"),
		),
	)
}

// CheckpointHandler handles the checkpoint tool
func CheckpointHandler(tc *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := request.RequireString("title")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content := request.GetString("content", "")

		cp, err := tc.Service.Checkpoint(ctx, tc.OwnerFor(ctx), title, content)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Checkpoint saved: %s", cp.Title)), nil
	}
}

// NewResumeTool creates the resume tool definition
func NewResumeTool() mcp.Tool {
	return mcp.NewTool("resume",
		mcp.WithDescription("Load the last checkpoint plus a digest of recent memories. Call at the start of a conversation to restore context."),
	)
}

// ResumeHandler handles the resume tool
func ResumeHandler(tc *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cp, digest, err := tc.Service.Resume(ctx, tc.OwnerFor(ctx))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		if cp != nil {
			fmt.Fprintf(&sb, "Checkpoint: %s (saved %s)\n", cp.Title, cp.Updated.Format("2006-01-02 15:04"))
			if cp.Content != "" {
				sb.WriteString(cp.Content)
				sb.WriteString("\n")
			}
		} else {
			sb.WriteString("No checkpoint saved yet.\n")
		}

		if len(digest) > 0 {
			sb.WriteString("\nRecent memories:\n")
			for _, mem := range digest {
				fmt.Fprintf(&sb, "- [%s] (%s) %s\n", mem.ID, mem.Tag, mem.Text)
			}
		}

		return mcp.NewToolResultText(strings.TrimRight(sb.String(), "\n")), nil
	}
}
