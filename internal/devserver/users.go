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

package devserver

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/redscope/redscope/internal/authz"
)

// Domain errors
var (
	ErrUserNotFound = errors.New("user not found")
)

// User is an account record as the dev server stores it.
type User struct {
	ID           string
	Email        string
	Username     string
	FullName     string
	Role         authz.Role
	PasswordHash string
	MFAEnabled   bool
	MFASecret    []byte
	Active       bool
}

// UserStore is the account backend. The in-memory implementation seeds a
// fixed roster; the Postgres implementation reads a real table.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateMFA(ctx context.Context, id string, enabled bool, secret []byte) error
}

// MemoryUserStore holds accounts in a map.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
}

// NewMemoryUserStore creates an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

// Add inserts a user, assigning an ID when absent.
func (s *MemoryUserStore) Add(user *User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return user
}

// GetByEmail looks a user up by email.
func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *s.byID[id]
	return &u, nil
}

// GetByID looks a user up by ID.
func (s *MemoryUserStore) GetByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copy := *u
	return &copy, nil
}

// UpdatePassword replaces a user's password hash.
func (s *MemoryUserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// UpdateMFA sets a user's second-factor enrollment. A pending secret is
// stored with enabled still false until a code confirms it.
func (s *MemoryUserStore) UpdateMFA(ctx context.Context, id string, enabled bool, secret []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.MFAEnabled = enabled
	u.MFASecret = secret
	return nil
}

// SeedUsers populates the store with one account per role, all with the
// password "redscope". Dev convenience only.
func SeedUsers(store *MemoryUserStore, hasher *PasswordHasher) error {
	hash, err := hasher.Hash("redscope")
	if err != nil {
		return err
	}
	for _, role := range authz.Roles {
		name := string(role)
		store.Add(&User{
			Email:        name + "@redscope.local",
			Username:     name,
			FullName:     "Dev " + name,
			Role:         role,
			PasswordHash: hash,
			Active:       true,
		})
	}
	return nil
}
