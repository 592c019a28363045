// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/artemgetmann/mindmirror/internal/database"
)

// TokenManager handles authentication token operations
type TokenManager struct {
	db       *gorm.DB
	ttlHours int
}

// NewTokenManager creates a new token manager
func NewTokenManager(db *gorm.DB, ttlHours int) *TokenManager {
	return &TokenManager{
		db:       db,
		ttlHours: ttlHours,
	}
}

// GenerateToken creates a new access and refresh token for a user
func (tm *TokenManager) GenerateToken(userID uint) (*database.AuthToken, error) {
	token := &database.AuthToken{
		UserID:       userID,
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    time.Now().Add(time.Duration(tm.ttlHours) * time.Hour),
	}

	if err := tm.db.Create(token).Error; err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	return token, nil
}

// ValidateToken checks if a token is valid and not expired
func (tm *TokenManager) ValidateToken(accessToken string) (*database.AuthToken, error) {
	var token database.AuthToken
	err := tm.db.Where("access_token = ?", accessToken).First(&token).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("token not found")
		}
		return nil, fmt.Errorf("failed to query token: %w", err)
	}

	if time.Now().After(token.ExpiresAt) {
		return nil, fmt.Errorf("token expired")
	}

	return &token, nil
}

// UserForToken resolves a valid access token to its user
func (tm *TokenManager) UserForToken(accessToken string) (*database.User, error) {
	token, err := tm.ValidateToken(accessToken)
	if err != nil {
		return nil, err
	}

	var user database.User
	if err := tm.db.First(&user, token.UserID).Error; err != nil {
		return nil, fmt.Errorf("failed to load token user: %w", err)
	}
	return &user, nil
}

// RefreshToken generates a new access token using a refresh token
func (tm *TokenManager) RefreshToken(refreshToken string) (*database.AuthToken, error) {
	var oldToken database.AuthToken
	err := tm.db.Where("refresh_token = ?", refreshToken).First(&oldToken).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("refresh token not found")
		}
		return nil, fmt.Errorf("failed to query refresh token: %w", err)
	}

	// Refresh tokens live twice as long as access tokens
	refreshExpiry := oldToken.CreatedAt.Add(time.Duration(tm.ttlHours*2) * time.Hour)
	if time.Now().After(refreshExpiry) {
		return nil, fmt.Errorf("refresh token expired")
	}

	oldToken.AccessToken = uuid.NewString()
	oldToken.ExpiresAt = time.Now().Add(time.Duration(tm.ttlHours) * time.Hour)
	oldToken.UpdatedAt = time.Now()

	if err := tm.db.Save(&oldToken).Error; err != nil {
		return nil, fmt.Errorf("failed to update token: %w", err)
	}

	return &oldToken, nil
}

// RevokeToken invalidates a token
func (tm *TokenManager) RevokeToken(accessToken string) error {
	result := tm.db.Where("access_token = ?", accessToken).Delete(&database.AuthToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("token not found")
	}
	return nil
}

// RevokeAllUserTokens invalidates all tokens for a user
func (tm *TokenManager) RevokeAllUserTokens(userID uint) error {
	result := tm.db.Where("user_id = ?", userID).Delete(&database.AuthToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", result.Error)
	}
	return nil
}

// CleanExpiredTokens removes expired tokens from the database
func (tm *TokenManager) CleanExpiredTokens() (int64, error) {
	result := tm.db.Where("expires_at < ?", time.Now()).Delete(&database.AuthToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean expired tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
