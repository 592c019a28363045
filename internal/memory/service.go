// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package memory implements the memory store: validation, embedding,
// duplicate rejection, conflict linking, and search with conflict
// groups. All writes for one owner are serialized.
package memory

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artemgetmann/mindmirror/internal/config"
	"github.com/artemgetmann/mindmirror/internal/consistency"
	"github.com/artemgetmann/mindmirror/internal/crypto"
	"github.com/artemgetmann/mindmirror/internal/database"
	"github.com/artemgetmann/mindmirror/internal/embeddings"
	"github.com/artemgetmann/mindmirror/internal/graph"
	"github.com/artemgetmann/mindmirror/internal/index"
	"github.com/artemgetmann/mindmirror/internal/locking"
)

// DefaultSearchLimit caps search results when the caller passes no limit
const DefaultSearchLimit = 10

// ResumeDigestSize is how many recent memories Resume returns
const ResumeDigestSize = 10

// Archiver receives memories as they are forgotten
type Archiver interface {
	Archive(ctx context.Context, mem *Memory) error
}

// Service orchestrates the memory store
type Service struct {
	db       *gorm.DB
	idx      index.VectorIndex
	embedder embeddings.Client
	links    *graph.Manager
	guard    *consistency.DuplicateGuard
	linker   *consistency.ConflictLinker
	grouper  *consistency.ConflictGrouper
	locks    *locking.OwnerLocker
	archiver Archiver

	tags      []string
	protected []string
	cipher    *crypto.Cipher

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewService wires the store over the given database and embedder
func NewService(db *gorm.DB, embedder embeddings.Client, cfg *config.Config) (*Service, error) {
	var cipher *crypto.Cipher
	if cfg.Security.EncryptionKey != "" {
		c, err := crypto.NewCipherFromString(cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load encryption key: %w", err)
		}
		cipher = c
	}

	idx := index.NewSQLIndex(db)
	links := graph.NewManager(db)

	return &Service{
		db:       db,
		idx:      idx,
		embedder: embedder,
		links:    links,
		guard:    consistency.NewDuplicateGuard(idx, cfg.Consistency.DuplicateThreshold, cfg.Consistency.NeighborK),
		linker:   consistency.NewConflictLinker(idx, links, cfg.Consistency.ConflictThreshold, cfg.Consistency.DuplicateThreshold),
		grouper:  consistency.NewConflictGrouper(idx, links),
		locks:    locking.NewOwnerLocker(),

		tags:      cfg.Memory.Tags,
		protected: cfg.Memory.ProtectedTags,
		cipher:    cipher,

		entropy: ulid.Monotonic(crand.Reader, 0),
	}, nil
}

// WithArchiver attaches an archive for forgotten memories
func (s *Service) WithArchiver(a Archiver) *Service {
	s.archiver = a
	return s
}

// Store validates, embeds, and persists a new memory. A near-duplicate
// in the same owner and tag returns a rejection instead of a memory;
// otherwise similar memories get conflict links, whatever their tag.
func (s *Service) Store(ctx context.Context, owner, text, tag string) (*StoreResult, error) {
	if err := s.validateOwner(owner); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "text", Message: "text cannot be empty"}
	}
	if err := s.validateTag(tag); err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyEmbedding, Err: err}
	}

	var result *StoreResult
	err = s.locks.WithLock(owner, func() error {
		verdict, err := s.guard.Check(ctx, owner, tag, vector)
		if err != nil {
			return &DependencyFailure{Dependency: DependencyIndex, Err: err}
		}

		if verdict.Duplicate {
			existing, err := s.idx.Get(ctx, owner, verdict.BestMatch.ID)
			if err != nil {
				return &DependencyFailure{Dependency: DependencyIndex, Err: err}
			}
			existingText, err := s.decodeText(existing)
			if err != nil {
				return err
			}
			result = &StoreResult{Rejection: &DuplicateRejection{
				ExistingID:   existing.ID,
				ExistingText: existingText,
				Similarity:   verdict.BestMatch.Similarity,
			}}
			return nil
		}

		now := time.Now()
		id := s.newID()

		storedText, encrypted, err := s.encodeText(text)
		if err != nil {
			return err
		}

		row := &database.Memory{
			ID:             id,
			Owner:          owner,
			Tag:            tag,
			Text:           storedText,
			Encrypted:      encrypted,
			Embedding:      embeddings.Float32SliceToBlob(vector),
			CreatedAt:      now,
			UpdatedAt:      now,
			LastAccessedAt: now,
		}
		if err := s.idx.Insert(ctx, row); err != nil {
			return &DependencyFailure{Dependency: DependencyIndex, Err: err}
		}

		conflicts, err := s.linker.Link(ctx, owner, id, vector)
		if err != nil {
			// Roll the insert back so a failed store leaves nothing behind
			_ = s.links.RemoveLinksFor(ctx, owner, id)
			_ = s.idx.Delete(ctx, owner, id)
			return &DependencyFailure{Dependency: DependencyIndex, Err: err}
		}

		infos, err := s.conflictInfos(ctx, owner, conflicts)
		if err != nil {
			return err
		}

		mem := s.toDomain(row, text)
		for _, info := range infos {
			mem.Conflicts = append(mem.Conflicts, info.ID)
		}

		result = &StoreResult{Memory: &mem, Conflicts: infos}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Search embeds the query and returns the owner's nearest memories,
// most similar first, with relevance levels and the conflict groups
// among the hits. Hits have their access time stamped.
func (s *Service) Search(ctx context.Context, owner, query, tag string, limit int) (*SearchResponse, error) {
	if err := s.validateOwner(owner); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Field: "query", Message: "query cannot be empty"}
	}
	if tag != "" {
		if err := s.validateTag(tag); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyEmbedding, Err: err}
	}

	neighbors, err := s.idx.QueryNearest(ctx, owner, vector, tag, limit)
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}
	if len(neighbors) == 0 {
		return &SearchResponse{}, nil
	}

	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
	}

	rows, err := s.idx.GetMany(ctx, owner, ids)
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}
	byID := make(map[string]*database.Memory, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	outgoing, err := s.conflictIDs(ctx, owner, ids)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(neighbors))
	for _, n := range neighbors {
		row, ok := byID[n.ID]
		if !ok {
			continue
		}
		text, err := s.decodeText(row)
		if err != nil {
			return nil, err
		}
		mem := s.toDomain(row, text)
		mem.Conflicts = outgoing[n.ID]

		sim := consistency.Similarity(n.Distance)
		results = append(results, SearchResult{
			Memory:     mem,
			Similarity: sim,
			Relevance:  RelevanceFor(sim),
		})
	}

	groups, err := s.grouper.Groups(ctx, owner, ids)
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}

	if err := s.idx.TouchAccess(ctx, owner, ids); err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}

	return &SearchResponse{Results: results, ConflictGroups: groups}, nil
}

// List returns the owner's memories, newest first, optionally filtered
// by tag, with the conflict groups among them. Listed memories have
// their access time stamped.
func (s *Service) List(ctx context.Context, owner, tag string) (*ListResponse, error) {
	if err := s.validateOwner(owner); err != nil {
		return nil, err
	}
	if tag != "" {
		if err := s.validateTag(tag); err != nil {
			return nil, err
		}
	}

	rows, err := s.idx.List(ctx, owner, tag)
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}
	if len(rows) == 0 {
		return &ListResponse{}, nil
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	outgoing, err := s.conflictIDs(ctx, owner, ids)
	if err != nil {
		return nil, err
	}

	mems := make([]Memory, 0, len(rows))
	for i := range rows {
		text, err := s.decodeText(&rows[i])
		if err != nil {
			return nil, err
		}
		mem := s.toDomain(&rows[i], text)
		mem.Conflicts = outgoing[rows[i].ID]
		mems = append(mems, mem)
	}

	groups, err := s.grouper.Groups(ctx, owner, ids)
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}

	if err := s.idx.TouchAccess(ctx, owner, ids); err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}

	return &ListResponse{Memories: mems, ConflictGroups: groups}, nil
}

// Get returns one memory by id and stamps its access time
func (s *Service) Get(ctx context.Context, owner, id string) (*Memory, error) {
	mem, err := s.fetch(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := s.idx.TouchAccess(ctx, owner, []string{id}); err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}
	return mem, nil
}

// fetch loads a memory without touching its access time
func (s *Service) fetch(ctx context.Context, owner, id string) (*Memory, error) {
	if err := s.validateOwner(owner); err != nil {
		return nil, err
	}

	row, err := s.idx.Get(ctx, owner, id)
	if errors.Is(err, index.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}

	text, err := s.decodeText(row)
	if err != nil {
		return nil, err
	}
	mem := s.toDomain(row, text)

	links, err := s.links.LinksFrom(ctx, owner, id)
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}
	for _, link := range links {
		mem.Conflicts = append(mem.Conflicts, link.TargetID)
	}

	return &mem, nil
}

// Delete removes a memory and every conflict link referencing it. When
// an archive is attached the memory is committed there first.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if err := s.validateOwner(owner); err != nil {
		return err
	}

	return s.locks.WithLock(owner, func() error {
		mem, err := s.fetch(ctx, owner, id)
		if err != nil {
			return err
		}

		if s.archiver != nil {
			if err := s.archiver.Archive(ctx, mem); err != nil {
				return fmt.Errorf("failed to archive memory: %w", err)
			}
		}

		if err := s.idx.Delete(ctx, owner, id); err != nil {
			if errors.Is(err, index.ErrNotFound) {
				return &NotFoundError{ID: id}
			}
			return &DependencyFailure{Dependency: DependencyIndex, Err: err}
		}

		if err := s.links.RemoveLinksFor(ctx, owner, id); err != nil {
			return &DependencyFailure{Dependency: DependencyIndex, Err: err}
		}
		return nil
	})
}

// Prune reports memories created before createdBefore and not accessed
// since accessedBefore, excluding protected tags. Both conditions must
// hold. It never deletes anything.
func (s *Service) Prune(ctx context.Context, owner string, createdBefore, accessedBefore time.Time) ([]PruneCandidate, error) {
	if err := s.validateOwner(owner); err != nil {
		return nil, err
	}

	rows, err := s.idx.ListStale(ctx, owner, createdBefore, accessedBefore, s.protected)
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}

	candidates := make([]PruneCandidate, 0, len(rows))
	for i := range rows {
		text, err := s.decodeText(&rows[i])
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, PruneCandidate{
			ID:           rows[i].ID,
			Tag:          rows[i].Tag,
			Text:         text,
			Created:      rows[i].CreatedAt,
			LastAccessed: rows[i].LastAccessedAt,
		})
	}
	return candidates, nil
}

// Checkpoint saves a session snapshot for the owner, replacing any
// previous one
func (s *Service) Checkpoint(ctx context.Context, owner, title, content string) (*Checkpoint, error) {
	if err := s.validateOwner(owner); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, &ValidationError{Field: "title", Message: "title cannot be empty"}
	}

	cp := database.Checkpoint{
		Owner:   owner,
		Title:   title,
		Content: content,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "content", "updated_at"}),
	}).Create(&cp).Error
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}

	var saved database.Checkpoint
	if err := s.db.WithContext(ctx).Where("owner = ?", owner).First(&saved).Error; err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}
	return checkpointToDomain(&saved), nil
}

// Resume returns the owner's checkpoint, or nil when none was saved,
// plus a digest of the most recent memories
func (s *Service) Resume(ctx context.Context, owner string) (*Checkpoint, []Memory, error) {
	if err := s.validateOwner(owner); err != nil {
		return nil, nil, err
	}

	var cp *Checkpoint
	var saved database.Checkpoint
	err := s.db.WithContext(ctx).Where("owner = ?", owner).First(&saved).Error
	if err == nil {
		cp = checkpointToDomain(&saved)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}

	listed, err := s.List(ctx, owner, "")
	if err != nil {
		return nil, nil, err
	}
	digest := listed.Memories
	if len(digest) > ResumeDigestSize {
		digest = digest[:ResumeDigestSize]
	}

	return cp, digest, nil
}

// RebuildLinks drops the owner's conflict links and recomputes them
// from the stored embeddings. Returns the number of linked pairs.
func (s *Service) RebuildLinks(ctx context.Context, owner string) (int, error) {
	if err := s.validateOwner(owner); err != nil {
		return 0, err
	}

	var pairs int
	err := s.locks.WithLock(owner, func() error {
		if err := s.links.RemoveAllLinks(ctx, owner); err != nil {
			return &DependencyFailure{Dependency: DependencyIndex, Err: err}
		}

		rows, err := s.idx.List(ctx, owner, "")
		if err != nil {
			return &DependencyFailure{Dependency: DependencyIndex, Err: err}
		}

		// Oldest first, replaying the original insertion order
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		})

		for i := range rows {
			vector := embeddings.BlobToFloat32Slice(rows[i].Embedding)
			if vector == nil {
				continue
			}
			if _, err := s.linker.Link(ctx, owner, rows[i].ID, vector); err != nil {
				return &DependencyFailure{Dependency: DependencyIndex, Err: err}
			}
		}

		total, err := s.links.CountLinks(ctx, owner)
		if err != nil {
			return &DependencyFailure{Dependency: DependencyIndex, Err: err}
		}
		// Two directed rows per pair
		pairs = int(total / 2)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pairs, nil
}

// Tags returns the allowed tag vocabulary
func (s *Service) Tags() []string {
	return s.tags
}

func (s *Service) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Service) validateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return &ValidationError{Field: "owner", Message: "owner cannot be empty"}
	}
	return nil
}

func (s *Service) validateTag(tag string) error {
	for _, t := range s.tags {
		if tag == t {
			return nil
		}
	}
	return &ValidationError{
		Field:   "tag",
		Message: fmt.Sprintf("unknown tag %q, allowed: %s", tag, strings.Join(s.tags, ", ")),
	}
}

func (s *Service) encodeText(text string) (string, bool, error) {
	if s.cipher == nil {
		return text, false, nil
	}
	encrypted, err := s.cipher.Encrypt([]byte(text))
	if err != nil {
		return "", false, fmt.Errorf("failed to encrypt memory text: %w", err)
	}
	return encrypted, true, nil
}

func (s *Service) decodeText(row *database.Memory) (string, error) {
	if !row.Encrypted {
		return row.Text, nil
	}
	if s.cipher == nil {
		return "", fmt.Errorf("memory %s is encrypted but no key is configured", row.ID)
	}
	text, err := s.cipher.Decrypt(row.Text)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt memory text: %w", err)
	}
	return string(text), nil
}

func (s *Service) toDomain(row *database.Memory, text string) Memory {
	return Memory{
		ID:           row.ID,
		Owner:        row.Owner,
		Tag:          row.Tag,
		Created:      row.CreatedAt,
		Updated:      row.UpdatedAt,
		LastAccessed: row.LastAccessedAt,
		Text:         text,
	}
}

// conflictIDs maps each id to the sorted targets of its outgoing links
func (s *Service) conflictIDs(ctx context.Context, owner string, ids []string) (map[string][]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	links, err := s.links.LinksAmong(ctx, owner, ids)
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}
	outgoing := make(map[string][]string)
	for _, link := range links {
		outgoing[link.SourceID] = append(outgoing[link.SourceID], link.TargetID)
	}
	for id := range outgoing {
		sort.Strings(outgoing[id])
	}
	return outgoing, nil
}

// conflictInfos resolves the texts of linked memories for reporting
func (s *Service) conflictInfos(ctx context.Context, owner string, conflicts []consistency.Conflict) ([]ConflictInfo, error) {
	if len(conflicts) == 0 {
		return nil, nil
	}
	ids := make([]string, len(conflicts))
	for i, c := range conflicts {
		ids[i] = c.ID
	}
	rows, err := s.idx.GetMany(ctx, owner, ids)
	if err != nil {
		return nil, &DependencyFailure{Dependency: DependencyIndex, Err: err}
	}
	texts := make(map[string]string, len(rows))
	for i := range rows {
		text, err := s.decodeText(&rows[i])
		if err != nil {
			return nil, err
		}
		texts[rows[i].ID] = text
	}

	infos := make([]ConflictInfo, 0, len(conflicts))
	for _, c := range conflicts {
		infos = append(infos, ConflictInfo{
			ID:         c.ID,
			Tag:        c.Tag,
			Text:       texts[c.ID],
			Similarity: c.Similarity,
		})
	}
	return infos, nil
}

func checkpointToDomain(cp *database.Checkpoint) *Checkpoint {
	return &Checkpoint{
		Owner:   cp.Owner,
		Title:   cp.Title,
		Content: cp.Content,
		Created: cp.CreatedAt,
		Updated: cp.UpdatedAt,
	}
}
