// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/artemgetmann/mindmirror/internal/auth"
	"github.com/artemgetmann/mindmirror/internal/config"
	"github.com/artemgetmann/mindmirror/internal/database"
	"github.com/artemgetmann/mindmirror/internal/embeddings"
	"github.com/artemgetmann/mindmirror/internal/memory"
)

func setupScheduler(t *testing.T) (*Scheduler, *gorm.DB) {
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

	svc, err := memory.NewService(db, &embeddings.MockClient{}, config.DefaultConfig())
	require.NoError(t, err)

	tm := auth.NewTokenManager(db, 24)
	return NewScheduler(db, svc, tm, 60, 90), db
}

func TestRunOnce_CleansExpiredTokens(t *testing.T) {
	sched, db := setupScheduler(t)

	user, err := auth.EnsureUser(db, "alice")
	require.NoError(t, err)

	expired := &database.AuthToken{
		UserID:      user.ID,
		AccessToken: "expired-token",
		ExpiresAt:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.Create(expired).Error)

	valid := &database.AuthToken{
		UserID:      user.ID,
		AccessToken: "valid-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(valid).Error)

	sched.RunOnce()

	var tokens []database.AuthToken
	require.NoError(t, db.Find(&tokens).Error)
	require.Len(t, tokens, 1)
	assert.Equal(t, "valid-token", tokens[0].AccessToken)
}

func TestRunOnce_DoesNotDeleteStaleMemories(t *testing.T) {
	sched, db := setupScheduler(t)
	ctx := context.Background()

	stored, err := sched.svc.Store(ctx, "alice", "an old habit", "habit")
	require.NoError(t, err)

	// Backdate well past the prune window
	old := time.Now().AddDate(0, 0, -365)
	require.NoError(t, db.Model(&database.Memory{}).
		Where("id = ?", stored.Memory.ID).
		Updates(map[string]interface{}{
			"created_at":       old,
			"last_accessed_at": old,
		}).Error)

	sched.RunOnce()

	var count int64
	require.NoError(t, db.Model(&database.Memory{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestStartStop(t *testing.T) {
	sched, _ := setupScheduler(t)
	sched.interval = 10 * time.Millisecond

	sched.Start()
	time.Sleep(30 * time.Millisecond)
	sched.Stop()
}
