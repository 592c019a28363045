// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artemgetmann/mindmirror/internal/memory"
)

func testMemory(id, text string) *memory.Memory {
	now := time.Now()
	return &memory.Memory{
		ID:      id,
		Owner:   "alice",
		Tag:     "preference",
		Created: now,
		Updated: now,
		Text:    text,
	}
}

func TestOpen_InitializesRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive")

	arch, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, arch.Path())

	_, err = os.Stat(filepath.Join(path, ".git"))
	assert.NoError(t, err)

	// Reopening finds the existing repository
	again, err := Open(path)
	require.NoError(t, err)
	assert.NotNil(t, again)
}

func TestArchive_WritesAndCommits(t *testing.T) {
	arch, err := Open(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)

	mem := testMemory("01HV3GXH4NTKQZ8W2J5Y6M7R9D", "I prefer morning workouts")
	require.NoError(t, arch.Archive(context.Background(), mem))

	// File lands under owner/tag with a slugged name
	path := filepath.Join(arch.Path(), "alice", "preference",
		"i-prefer-morning-workouts-01HV3GXH4NTKQZ8W2J5Y6M7R9D.md")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "id: 01HV3GXH4NTKQZ8W2J5Y6M7R9D")
	assert.Contains(t, string(content), "I prefer morning workouts")

	commits, err := arch.History(10)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Contains(t, commits[0].Message, "01HV3GXH4NTKQZ8W2J5Y6M7R9D")
}

func TestArchive_MultipleMemories(t *testing.T) {
	arch, err := Open(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, arch.Archive(ctx, testMemory("01AAAAAAAAAAAAAAAAAAAAAAAA", "first memory")))
	require.NoError(t, arch.Archive(ctx, testMemory("01BBBBBBBBBBBBBBBBBBBBBBBB", "second memory")))

	commits, err := arch.History(0)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	// Newest first
	assert.Contains(t, commits[0].Message, "01BBBBBBBBBBBBBBBBBBBBBBBB")
	assert.Contains(t, commits[1].Message, "01AAAAAAAAAAAAAAAAAAAAAAAA")
}

func TestHistory_EmptyRepository(t *testing.T) {
	arch, err := Open(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)

	_, err = arch.History(10)
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "I prefer morning workouts", "i-prefer-morning-workouts"},
		{"special chars", "drink 2L of water/day!", "drink-2l-of-waterday"},
		{"collapses spaces", "too   many    spaces", "too-many-spaces"},
		{"empty", "!!!", "memory"},
		{"long text truncated", "a very long memory text that keeps going on and on and never seems to stop at all", "a-very-long-memory-text-that-keeps-going-on-and-on-and-never"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slugify(tt.in)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), maxSlugLen)
		})
	}
}
