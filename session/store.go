package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store persists the bearer credential across runs. It is the file analog of
// the single token slot the web client kept in localStorage.
type Store struct {
	Path string
}

// NewStore creates a credential store at the given path
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the persisted credential. A missing file is not an error, it
// just means nobody is logged in.
func (s *Store) Load() (string, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Save writes the credential, creating parent directories as needed
func (s *Store) Save(credential string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.Path, []byte(credential), 0o600)
}

// Clear removes the persisted credential. Idempotent.
func (s *Store) Clear() error {
	err := os.Remove(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
