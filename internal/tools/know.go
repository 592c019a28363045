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

// NewWhatDoYouKnowTool creates the what_do_you_know tool definition
func NewWhatDoYouKnowTool() mcp.Tool {
	return mcp.NewTool("what_do_you_know",
		mcp.WithDescription("List everything stored about the user, newest first. Use when exploring or summarizing what is known."),
		mcp.WithString("tag",
			mcp.Description("Limit the digest to one tag"),
		),
	)
}

// WhatDoYouKnowHandler handles the what_do_you_know tool
func WhatDoYouKnowHandler(tc *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tag := request.GetString("tag", "")

		listed, err := tc.Service.List(ctx, tc.OwnerFor(ctx), tag)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if len(listed.Memories) == 0 {
			if tag != "" {
				return mcp.NewToolResultText(fmt.Sprintf("No %s memories stored yet.", tag)), nil
			}
			return mcp.NewToolResultText("No memories stored yet."), nil
		}

		return mcp.NewToolResultText(formatDigest(listed)), nil
	}
}

func formatDigest(listed *memory.ListResponse) string {
	mems := listed.Memories
	// Group by tag, keeping newest-first order inside each group
	byTag := make(map[string][]memory.Memory)
	var tagOrder []string
	for _, mem := range mems {
		if _, seen := byTag[mem.Tag]; !seen {
			tagOrder = append(tagOrder, mem.Tag)
		}
		byTag[mem.Tag] = append(byTag[mem.Tag], mem)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d memories stored:\n", len(mems))

	for _, tag := range tagOrder {
		fmt.Fprintf(&sb, "\n%s:\n", tag)
		for _, mem := range byTag[tag] {
			fmt.Fprintf(&sb, "- [%s] %s", mem.ID, mem.Text)
			if len(mem.Conflicts) > 0 {
				fmt.Fprintf(&sb, " (potentially contradicts: %s)", strings.Join(mem.Conflicts, ", "))
			}
			sb.WriteString("\n")
		}
	}

	if len(listed.ConflictGroups) > 0 {
		sb.WriteString("\nConflict groups (memories that may contradict each other):\n")
		for _, group := range listed.ConflictGroups {
			fmt.Fprintf(&sb, "- %s\n", strings.Join(group, ", "))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
