// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"context"
	"encoding/json"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/artemgetmann/mindmirror/internal/auth"
	"github.com/artemgetmann/mindmirror/internal/database"
)

// HTTPServer handles HTTP routes
type HTTPServer struct {
	mcpServer      *MCPServer
	authMiddleware *auth.Middleware
	streamable     *mcpserver.StreamableHTTPServer
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(mcpServer *MCPServer) *HTTPServer {
	streamable := mcpserver.NewStreamableHTTPServer(
		mcpServer.GetMCPServer(),
		// The auth middleware stores the owner on the request context;
		// copy it onto the tool handler context.
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if owner, ok := auth.GetOwnerFromContext(r.Context()); ok {
				ctx = auth.WithOwner(ctx, owner)
			}
			return ctx
		}),
	)

	return &HTTPServer{
		mcpServer:      mcpServer,
		authMiddleware: auth.NewMiddleware(mcpServer.GetTokenManager()),
		streamable:     streamable,
	}
}

// RegisterRoutes registers all HTTP routes
func (h *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/auth/token", h.HandleTokenIssue)
	mux.HandleFunc("/auth/refresh", h.HandleTokenRefresh)

	// MCP endpoint (protected)
	mux.Handle("/mcp", h.authMiddleware.RequireAuth(h.streamable))
}

// HandleHealth reports server and database health
func (h *HTTPServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := database.Ping(h.mcpServer.db); err != nil {
		status = "degraded: " + err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// HandleTokenIssue authenticates the local system user and issues an
// access token for the MCP endpoint.
func (h *HTTPServer) HandleTokenIssue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	owner, err := auth.ResolveLocalOwner(h.mcpServer.config.Server.DefaultOwner)
	if err != nil {
		http.Error(w, "failed to resolve local user: "+err.Error(), http.StatusInternalServerError)
		return
	}

	user, err := auth.EnsureUser(h.mcpServer.db, owner)
	if err != nil {
		http.Error(w, "failed to ensure user: "+err.Error(), http.StatusInternalServerError)
		return
	}

	token, err := h.mcpServer.tokenManager.GenerateToken(user.ID)
	if err != nil {
		http.Error(w, "failed to generate token: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expires_at":    token.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		"owner":         user.Username,
	})
}

// HandleTokenRefresh exchanges a refresh token for a new access token
func (h *HTTPServer) HandleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		http.Error(w, "refresh_token is required", http.StatusBadRequest)
		return
	}

	token, err := h.mcpServer.tokenManager.RefreshToken(body.RefreshToken)
	if err != nil {
		http.Error(w, "failed to refresh token: "+err.Error(), http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expires_at":    token.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}
