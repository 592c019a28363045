// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAuth_ValidToken(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice")
	tm := NewTokenManager(db, 24)

	token, err := tm.GenerateToken(user.ID)
	require.NoError(t, err)

	mw := NewMiddleware(tm)

	var gotOwner string
	var gotUserID uint
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner, _ = GetOwnerFromContext(r.Context())
		gotUserID, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", gotOwner)
	assert.Equal(t, user.ID, gotUserID)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	db := setupTestDB(t)
	mw := NewMiddleware(NewTokenManager(db, 24))

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	db := setupTestDB(t)
	mw := NewMiddleware(NewTokenManager(db, 24))

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_QueryParameterFallback(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice")
	tm := NewTokenManager(db, 24)

	token, err := tm.GenerateToken(user.ID)
	require.NoError(t, err)

	mw := NewMiddleware(tm)
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/?access_token="+token.AccessToken, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice")
	tm := NewTokenManager(db, 24)

	token, err := tm.GenerateToken(user.ID)
	require.NoError(t, err)

	mw := NewMiddleware(tm)

	var gotOwner string
	var hadOwner bool
	handler := mw.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner, hadOwner = GetOwnerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Without a token the request still passes
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, hadOwner)

	// With a token the owner is resolved
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, hadOwner)
	assert.Equal(t, "alice", gotOwner)
}

func TestWithOwner(t *testing.T) {
	ctx := WithOwner(context.Background(), "alice")
	owner, ok := GetOwnerFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "alice", owner)

	_, ok = GetOwnerFromContext(context.Background())
	assert.False(t, ok)
}
