// ABOUTME: File-backed credential store under the user's config directory
// ABOUTME: Survives restarts; optionally sealed with a passphrase

package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const credentialFile = "credential.json"

// FileStore persists the credential as a JSON document. The decoded
// credential is kept in memory until the file on disk changes, so a sealed
// store pays for key derivation once per file version.
type FileStore struct {
	dir    string
	secret string
	mu     sync.Mutex

	cached *Credential
	info   os.FileInfo
}

// NewFileStore creates a store rooted at dir. A non-empty secret seals the
// file contents; an empty secret writes plaintext with 0600 permissions.
func NewFileStore(dir, secret string) *FileStore {
	return &FileStore{
		dir:    dir,
		secret: strings.TrimSpace(secret),
	}
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, credentialFile)
}

// Read loads the persisted credential. An unreadable or corrupt file is
// treated as absent so a damaged file cannot wedge the session.
func (s *FileStore) Read() (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path())
	if errors.Is(err, os.ErrNotExist) {
		s.forget()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	if s.cached != nil && sameVersion(s.info, info) {
		c := *s.cached
		return &c, nil
	}
	s.forget()

	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}

	if s.secret != "" {
		data, err = Open(s.secret, data)
		if err != nil {
			slog.Warn("Discarding unreadable credential", "path", s.path(), "error", err)
			return nil, nil
		}
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil || cred.Token == "" {
		slog.Warn("Discarding malformed credential", "path", s.path())
		return nil, nil
	}
	s.remember(&cred, info)
	return &cred, nil
}

// Write replaces the persisted credential atomically.
func (s *FileStore) Write(cred *Credential) error {
	if cred == nil || cred.Token == "" {
		return errors.New("credential token is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if s.secret != "" {
		data, err = Seal(s.secret, data)
		if err != nil {
			return fmt.Errorf("failed to seal credential: %w", err)
		}
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, credentialFile+".*")
	if err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	s.forget()
	if err := os.Rename(tmp.Name(), s.path()); err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	if info, err := os.Stat(s.path()); err == nil {
		s.remember(cred, info)
	}
	return nil
}

// Clear removes the persisted credential. Clearing an empty store is a no-op.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.forget()
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

func (s *FileStore) remember(cred *Credential, info os.FileInfo) {
	c := *cred
	s.cached = &c
	s.info = info
}

func (s *FileStore) forget() {
	s.cached = nil
	s.info = nil
}

// sameVersion reports whether the file was left untouched since it was
// cached. Writes replace the file by rename, which changes its identity.
func sameVersion(prev, cur os.FileInfo) bool {
	return prev != nil &&
		os.SameFile(prev, cur) &&
		prev.ModTime().Equal(cur.ModTime()) &&
		prev.Size() == cur.Size()
}

// MemoryStore keeps the credential in process memory only.
type MemoryStore struct {
	mu   sync.Mutex
	cred *Credential
}

// NewMemoryStore returns a store seeded with cred, which may be nil.
func NewMemoryStore(cred *Credential) *MemoryStore {
	return &MemoryStore{cred: cred}
}

func (s *MemoryStore) Read() (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, nil
	}
	c := *s.cred
	return &c, nil
}

func (s *MemoryStore) Write(cred *Credential) error {
	if cred == nil || cred.Token == "" {
		return errors.New("credential token is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cred
	s.cred = &c
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}
