// Package auth manages the delegated-authorization token lifecycle for
// OAuth sources: the initial interactive grant, unattended refresh, and
// credential persistence. Downstream API calls depend only on Token(), so
// the interactive flow stays out of the hot path except on first use or
// full expiry of the refresh token.
package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentstation/tieout/pkg/constants"
	"github.com/agentstation/tieout/pkg/errors"
)

// Credential holds everything needed to call one OAuth source on behalf of
// one authenticated party. Created on first successful authorization,
// mutated on every refresh, cleared on logout or irrecoverable refresh
// failure. Owned exclusively by the Manager.
type Credential struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	InstanceURL  string    `json:"instance_url,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Store persists and retrieves credentials keyed by source name. A store
// may be shared across clients that use the same identity provider; the
// Manager serializes access.
type Store interface {
	// Load returns the stored credential, or ErrNoCredentials.
	Load(source string) (*Credential, error)

	// Save persists the credential, replacing any previous one.
	Save(source string, cred *Credential) error

	// Clear removes the stored credential. Idempotent.
	Clear(source string) error
}

// FileStore keeps one JSON file per source under a directory, written with
// owner-only permissions.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file-backed credential store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(source string) string {
	return filepath.Join(s.dir, source+".json")
}

// Load implements Store.
func (s *FileStore) Load(source string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(source))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrNoCredentials
		}
		return nil, errors.WrapIO("read", s.path(source), err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, errors.WrapIO("read", s.path(source), err)
	}
	return &cred, nil
}

// Save implements Store.
func (s *FileStore) Save(source string, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return errors.WrapIO("write", s.path(source), err)
	}
	if err := os.WriteFile(s.path(source), data, constants.SecureFilePermissions); err != nil {
		return errors.WrapIO("write", s.path(source), err)
	}
	return nil
}

// Clear implements Store.
func (s *FileStore) Clear(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(source)); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO("delete", s.path(source), err)
	}
	return nil
}

// MemStore is an in-memory credential store for tests and ephemeral runs.
type MemStore struct {
	mu    sync.Mutex
	creds map[string]*Credential
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{creds: make(map[string]*Credential)}
}

// Load implements Store.
func (s *MemStore) Load(source string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[source]
	if !ok {
		return nil, errors.ErrNoCredentials
	}
	clone := *cred
	return &clone, nil
}

// Save implements Store.
func (s *MemStore) Save(source string, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *cred
	s.creds[source] = &clone
	return nil
}

// Clear implements Store.
func (s *MemStore) Clear(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, source)
	return nil
}
