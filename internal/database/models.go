// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package database

import (
	"time"
)

// User represents an owner of memories
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "mindmirror_users"
}

// AuthToken represents authentication tokens for users
type AuthToken struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	AccessToken  string    `gorm:"type:text;not null" json:"access_token"`
	RefreshToken string    `gorm:"type:text" json:"refresh_token"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Foreign key relationship
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for AuthToken
func (AuthToken) TableName() string {
	return "mindmirror_auth_tokens"
}

// Memory is a stored memory row. Text may hold ciphertext when at-rest
// encryption is configured; Embedding is the serialized float32 vector.
type Memory struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	Owner          string    `gorm:"index:idx_memories_owner_tag;not null" json:"owner"`
	Tag            string    `gorm:"index:idx_memories_owner_tag;not null" json:"tag"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	Encrypted      bool      `gorm:"default:false" json:"-"`
	Embedding      []byte    `gorm:"type:blob" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	LastAccessedAt time.Time `gorm:"column:last_accessed_at" json:"last_accessed_at"`
}

// TableName specifies the table name for Memory
func (Memory) TableName() string {
	return "mindmirror_memories"
}

// ConflictLink is one direction of a potentially-contradicts edge
// between two memories of the same owner. Links are always written in
// pairs (a->b and b->a) inside one transaction.
type ConflictLink struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Owner      string    `gorm:"index;not null" json:"owner"`
	SourceID   string    `gorm:"uniqueIndex:idx_links_source_target;index;not null" json:"source_id"`
	TargetID   string    `gorm:"uniqueIndex:idx_links_source_target;index;not null" json:"target_id"`
	Similarity float64   `gorm:"not null" json:"similarity"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for ConflictLink
func (ConflictLink) TableName() string {
	return "mindmirror_conflict_links"
}

// Checkpoint is a per-owner session snapshot. One row per owner,
// overwritten on each checkpoint.
type Checkpoint struct {
	Owner     string    `gorm:"primaryKey" json:"owner"`
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Checkpoint
func (Checkpoint) TableName() string {
	return "mindmirror_checkpoints"
}
