// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package scheduler runs periodic maintenance: expired token cleanup
// and stale memory reports.
package scheduler

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/artemgetmann/mindmirror/internal/auth"
	"github.com/artemgetmann/mindmirror/internal/database"
	"github.com/artemgetmann/mindmirror/internal/memory"
)

// Scheduler handles periodic maintenance tasks
type Scheduler struct {
	db             *gorm.DB
	svc            *memory.Service
	tokenManager   *auth.TokenManager
	interval       time.Duration
	pruneAfterDays int
	stopChan       chan bool
}

// NewScheduler creates a new scheduler
func NewScheduler(db *gorm.DB, svc *memory.Service, tokenManager *auth.TokenManager, intervalMinutes, pruneAfterDays int) *Scheduler {
	return &Scheduler{
		db:             db,
		svc:            svc,
		tokenManager:   tokenManager,
		interval:       time.Duration(intervalMinutes) * time.Minute,
		pruneAfterDays: pruneAfterDays,
		stopChan:       make(chan bool),
	}
}

// Start begins the scheduler
func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.stopChan <- true
}

// RunOnce executes one maintenance cycle
func (s *Scheduler) RunOnce() {
	s.cleanExpiredTokens()
	s.reportStaleMemories()
}

// cleanExpiredTokens deletes auth tokens past their refresh window
func (s *Scheduler) cleanExpiredTokens() {
	count, err := s.tokenManager.CleanExpiredTokens()
	if err != nil {
		log.Printf("Failed to clean expired tokens: %v", err)
		return
	}
	if count > 0 {
		log.Printf("Cleaned %d expired token(s)", count)
	}
}

// reportStaleMemories logs prune candidates per owner. Memories are
// never deleted automatically; deletion stays an explicit user action.
func (s *Scheduler) reportStaleMemories() {
	if s.pruneAfterDays < 1 {
		return
	}

	var owners []string
	if err := s.db.Model(&database.Memory{}).Distinct("owner").Pluck("owner", &owners).Error; err != nil {
		log.Printf("Failed to list memory owners: %v", err)
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.pruneAfterDays)
	for _, owner := range owners {
		candidates, err := s.svc.Prune(context.Background(), owner, cutoff, cutoff)
		if err != nil {
			log.Printf("Failed to check stale memories for %s: %v", owner, err)
			continue
		}
		if len(candidates) > 0 {
			log.Printf("%s has %d memories older than %d days and not accessed since; review with prune_review",
				owner, len(candidates), s.pruneAfterDays)
		}
	}
}
