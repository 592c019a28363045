// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewForgetTool creates the forget tool definition
func NewForgetTool() mcp.Tool {
	return mcp.NewTool("forget",
		mcp.WithDescription("Delete a stored memory by id. Conflict links pointing at it are removed as well."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("ID of the memory to delete"),
		),
	)
}

// ForgetHandler handles the forget tool
func ForgetHandler(tc *ToolContext) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := tc.Service.Delete(ctx, tc.OwnerFor(ctx), id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Forgot memory %s.", id)), nil
	}
}
