// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package archive keeps an audit trail of forgotten memories. Each
// deleted memory is rendered to markdown and committed to a local git
// repository before the row is removed.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/artemgetmann/mindmirror/internal/memory"
)

const (
	commitAuthor = "MindMirror"
	commitEmail  = "archive@mindmirror.local"
)

var (
	slugKeepRegex  = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaceRegex = regexp.MustCompile(`[\s-]+`)
)

// GitArchive commits forgotten memories to a local git repository
type GitArchive struct {
	path string
	repo *git.Repository

	// go-git worktrees are not safe for concurrent commits
	mu sync.Mutex
}

// Open opens the archive repository at path, initializing it on first
// use
func Open(path string) (*GitArchive, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	repo, err := git.PlainOpen(path)
	if err == git.ErrRepositoryNotExists {
		repo, err = git.PlainInit(path, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive repository: %w", err)
	}

	return &GitArchive{path: path, repo: repo}, nil
}

// Path returns the archive repository path
func (a *GitArchive) Path() string {
	return a.path
}

// Archive renders the memory to markdown and commits it. The file
// lands under <owner>/<tag>/<slug>-<id>.md.
func (a *GitArchive) Archive(_ context.Context, mem *memory.Memory) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	content, err := mem.ToMarkdown()
	if err != nil {
		return fmt.Errorf("failed to render memory: %w", err)
	}

	relPath := a.memoryPath(mem)
	fullPath := filepath.Join(a.path, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create archive subdirectory: %w", err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}

	return a.commit(relPath, fmt.Sprintf("forget: archive memory '%s'", mem.ID))
}

// History returns the most recent archive commits, newest first
func (a *GitArchive) History(maxCount int) ([]*object.Commit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ref, err := a.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	commitIter, err := a.repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to get commit log: %w", err)
	}
	defer commitIter.Close()

	var commits []*object.Commit
	for maxCount <= 0 || len(commits) < maxCount {
		c, err := commitIter.Next()
		if err != nil {
			break
		}
		commits = append(commits, c)
	}
	return commits, nil
}

func (a *GitArchive) commit(relPath, message string) error {
	worktree, err := a.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	if _, err := worktree.Add(relPath); err != nil {
		return fmt.Errorf("failed to add file %s: %w", relPath, err)
	}

	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  commitAuthor,
			Email: commitEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// memoryPath lays the archive out per owner and tag
func (a *GitArchive) memoryPath(mem *memory.Memory) string {
	filename := fmt.Sprintf("%s-%s.md", slugify(mem.Text), mem.ID)
	return filepath.Join(slugify(mem.Owner), mem.Tag, filename)
}

const maxSlugLen = 60

// slugify turns free text into a filesystem-safe slug
func slugify(text string) string {
	slug := strings.ToLower(text)
	slug = slugKeepRegex.ReplaceAllString(slug, "")
	slug = slugSpaceRegex.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		slug = "memory"
	}
	return slug
}
