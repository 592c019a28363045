// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"gorm.io/gorm"

	"github.com/artemgetmann/mindmirror/internal/database"
)

// ResolveLocalOwner picks the owner for stdio mode. Precedence:
// configured default owner, then the ACCESSING_USER environment
// variable, then the system username.
func ResolveLocalOwner(defaultOwner string) (string, error) {
	if owner := strings.TrimSpace(defaultOwner); owner != "" {
		return owner, nil
	}

	if owner := strings.TrimSpace(os.Getenv("ACCESSING_USER")); owner != "" {
		return owner, nil
	}

	cmd := exec.Command("whoami")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get username via whoami: %w", err)
	}
	owner := strings.TrimSpace(string(output))
	if owner == "" {
		return "", fmt.Errorf("whoami returned empty username")
	}
	return owner, nil
}

// EnsureUser finds or creates the user record for a username
func EnsureUser(db *gorm.DB, username string) (*database.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}

	var user database.User
	result := db.Where("username = ?", username).FirstOrCreate(&user, database.User{
		Username: username,
		Email:    username + "@local",
	})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create/find user: %w", result.Error)
	}
	return &user, nil
}
