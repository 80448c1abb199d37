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

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the token pair as a JSON file on the local machine,
// surviving process restarts. The file is written with owner-only
// permissions and replaced via rename, so a crash mid-write can never leave
// a torn pair on disk.
type FileStore struct {
	mu   sync.Mutex
	path string

	// clearGen increments on every Clear. A Save that began before a
	// Clear must not re-write stale tokens after it; SaveIfCurrent
	// checks the generation under the lock.
	clearGen uint64
}

// NewFileStore creates a store backed by the given file path. The parent
// directory is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the conventional credentials location under the
// user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "redscope", "credentials.json"), nil
}

// Save overwrites the stored pair atomically.
func (s *FileStore) Save(tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(tokens)
}

// Generation returns the current clear generation. Callers that may race a
// Clear snapshot it before starting long work and pass it to SaveIfCurrent.
func (s *FileStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearGen
}

// SaveIfCurrent saves the pair only if no Clear happened since the given
// generation was observed. Returns false when the save was discarded.
func (s *FileStore) SaveIfCurrent(tokens Tokens, gen uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearGen != gen {
		return false, nil
	}
	if err := s.writeLocked(tokens); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) writeLocked(tokens Tokens) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials dir: %w", err)
	}

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create temp credentials file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set credentials file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close credentials file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

// Load returns the persisted pair, or absent when the file does not exist.
func (s *FileStore) Load() (Tokens, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Tokens{}, false, nil
	}
	if err != nil {
		return Tokens{}, false, fmt.Errorf("failed to read credentials: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		// A corrupt file is treated as absent rather than wedging the
		// client; the next Save rewrites it.
		return Tokens{}, false, nil
	}
	if tokens.Empty() {
		return Tokens{}, false, nil
	}
	return tokens, true, nil
}

// Clear removes the credentials file. Removing an already-absent file is
// not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearGen++
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
