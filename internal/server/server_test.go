// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/artemgetmann/mindmirror/internal/config"
	"github.com/artemgetmann/mindmirror/internal/database"
	"github.com/artemgetmann/mindmirror/internal/embeddings"
	"github.com/artemgetmann/mindmirror/internal/memory"
)

func setupServer(t *testing.T) (*HTTPServer, *gorm.DB) {
	t.Helper()

	db, err := database.Connect(&database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		_ = database.Close(db)
	})

	cfg := config.DefaultConfig()
	cfg.Server.DefaultOwner = "testuser"

	svc, err := memory.NewService(db, &embeddings.MockClient{}, cfg)
	require.NoError(t, err)

	mcpSrv, err := NewMCPServer(cfg, db, svc)
	require.NoError(t, err)

	return NewHTTPServer(mcpSrv), db
}

func TestHandleHealth(t *testing.T) {
	srv, _ := setupServer(t)

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleTokenIssue(t *testing.T) {
	srv, db := setupServer(t)

	rec := httptest.NewRecorder()
	srv.HandleTokenIssue(rec, httptest.NewRequest(http.MethodPost, "/auth/token", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.Equal(t, "testuser", body["owner"])

	// Repeated calls reuse the same user row
	rec = httptest.NewRecorder()
	srv.HandleTokenIssue(rec, httptest.NewRequest(http.MethodPost, "/auth/token", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, db.Model(&database.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHandleTokenIssue_RequiresPost(t *testing.T) {
	srv, _ := setupServer(t)

	rec := httptest.NewRecorder()
	srv.HandleTokenIssue(rec, httptest.NewRequest(http.MethodGet, "/auth/token", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleTokenRefresh(t *testing.T) {
	srv, _ := setupServer(t)

	rec := httptest.NewRecorder()
	srv.HandleTokenIssue(rec, httptest.NewRequest(http.MethodPost, "/auth/token", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var issued map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))

	payload, _ := json.Marshal(map[string]string{"refresh_token": issued["refresh_token"]})
	rec = httptest.NewRecorder()
	srv.HandleTokenRefresh(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", bytes.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code)

	var refreshed map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed["access_token"])
	assert.NotEqual(t, issued["access_token"], refreshed["access_token"])
}

func TestHandleTokenRefresh_MissingToken(t *testing.T) {
	srv, _ := setupServer(t)

	rec := httptest.NewRecorder()
	srv.HandleTokenRefresh(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", bytes.NewReader([]byte("{}"))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMCPEndpointRequiresAuth(t *testing.T) {
	srv, _ := setupServer(t)

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
