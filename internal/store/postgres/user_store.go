// Copyright 2026 The Redscope Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/redscope/redscope/internal/authz"
	"github.com/redscope/redscope/internal/devserver"
)

// UserStore implements devserver.UserStore on PostgreSQL, for dev setups
// that want accounts to survive restarts.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new user store
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, email, username, full_name, role, password_hash, mfa_enabled, mfa_secret, is_active`

// Create inserts a new user, assigning an ID when none is set.
func (s *UserStore) Create(ctx context.Context, user *devserver.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		user.ID, user.Email, user.Username, user.FullName, string(user.Role),
		user.PasswordHash, user.MFAEnabled, user.MFASecret, user.Active,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByEmail returns the user with the given email address.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*devserver.User, error) {
	row := s.db.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, email)
	return scanUser(row)
}

// GetByID returns the user with the given ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*devserver.User, error) {
	row := s.db.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

// UpdatePassword replaces the stored password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3
	`, passwordHash, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return devserver.ErrUserNotFound
	}
	return nil
}

// UpdateMFA sets a user's second-factor enrollment.
func (s *UserStore) UpdateMFA(ctx context.Context, id string, enabled bool, secret []byte) error {
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE users SET mfa_enabled = $1, mfa_secret = $2, updated_at = $3 WHERE id = $4
	`, enabled, secret, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update mfa settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return devserver.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*devserver.User, error) {
	var u devserver.User
	var role string
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.FullName, &role,
		&u.PasswordHash, &u.MFAEnabled, &u.MFASecret, &u.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, devserver.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Role, _ = authz.ParseRole(role)
	return &u, nil
}

// Seed inserts one account per role with the password "redscope" unless
// users already exist. Mirrors the in-memory seed.
func (s *UserStore) Seed(ctx context.Context, hasher *devserver.PasswordHasher) error {
	var count int
	if err := s.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := hasher.Hash("redscope")
	if err != nil {
		return err
	}
	for _, role := range authz.Roles {
		name := string(role)
		user := &devserver.User{
			Email:        name + "@redscope.local",
			Username:     name,
			FullName:     "Dev " + name,
			Role:         role,
			PasswordHash: hash,
			Active:       true,
		}
		if err := s.Create(ctx, user); err != nil {
			return err
		}
	}
	return nil
}
