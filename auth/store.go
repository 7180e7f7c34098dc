// Package auth exposes the credential store the realtime and REST clients
// read their bearer tokens from. Token retrieval and refresh live in the
// backend's auth flow and are not handled here.
package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Storage keys, fixed by convention with the mobile app.
const (
	KeyAccessToken  = "campuscircle_access_token"
	KeyRefreshToken = "campuscircle_refresh_token"
)

var ErrNotFound = errors.New("auth: credential not found")

// CredentialStore is a read-only view over stored credentials.
type CredentialStore interface {
	Get(key string) (string, error)
}

// MemoryStore holds credentials in memory. Used by tests and by the CLI
// when a token is passed via flag or environment.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

// FileStore reads credentials from a JSON file of key/value pairs.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFileStore resolves the store under the user config directory.
func DefaultFileStore() (*FileStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return NewFileStore(filepath.Join(dir, "campuscircle", "credentials.json")), nil
}

func (s *FileStore) Get(key string) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}
