// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package server wires the memory service into MCP transports.
package server

import (
	"github.com/mark3labs/mcp-go/server"
	"gorm.io/gorm"

	"github.com/artemgetmann/mindmirror/internal/auth"
	"github.com/artemgetmann/mindmirror/internal/config"
	"github.com/artemgetmann/mindmirror/internal/memory"
	"github.com/artemgetmann/mindmirror/internal/tools"
)

// MCPServer wraps the mcp-go server with our configuration
type MCPServer struct {
	mcpServer    *server.MCPServer
	config       *config.Config
	db           *gorm.DB
	tokenManager *auth.TokenManager
}

// NewMCPServer creates a new MCP server instance with all tools registered
func NewMCPServer(cfg *config.Config, db *gorm.DB, svc *memory.Service) (*MCPServer, error) {
	mcpServer := server.NewMCPServer(
		"MindMirror",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	tokenManager := auth.NewTokenManager(db, cfg.Security.TokenTTL)

	srv := &MCPServer{
		mcpServer:    mcpServer,
		config:       cfg,
		db:           db,
		tokenManager: tokenManager,
	}

	srv.registerTools(tools.NewToolContext(svc, cfg.Server.DefaultOwner))

	return srv, nil
}

// registerTools registers the MCP tool surface. The owner is resolved
// per request from the context, so one registration serves all users.
func (s *MCPServer) registerTools(toolCtx *tools.ToolContext) {
	s.mcpServer.AddTool(tools.NewRememberTool(s.config.Memory.Tags), tools.RememberHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewRecallTool(), tools.RecallHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewWhatDoYouKnowTool(), tools.WhatDoYouKnowHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewForgetTool(), tools.ForgetHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewPruneReviewTool(), tools.PruneReviewHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewCheckpointTool(), tools.CheckpointHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewResumeTool(), tools.ResumeHandler(toolCtx))
	s.mcpServer.AddTool(tools.NewRebuildLinksTool(), tools.RebuildLinksHandler(toolCtx))
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// GetTokenManager returns the token manager
func (s *MCPServer) GetTokenManager() *auth.TokenManager {
	return s.tokenManager
}
