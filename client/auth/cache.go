package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists one token between process invocations.
type Store interface {
	// Load returns the cached token. ok is false when no usable token
	// is cached; absence, corruption, and read failures all read as a
	// miss so the caller simply re-authenticates.
	Load() (tok Token, ok bool)
	// Save persists the token. Failures are advisory: callers keep
	// using the in-memory token regardless.
	Save(Token) error
}

// FileStore keeps the token in a single JSON file. Multiple processes
// may share the file without a locking protocol; the last writer wins
// and reads are advisory.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by the file at path. The
// parent directory is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (Token, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Token{}, false
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, false
	}
	if tok.AccessToken == "" {
		return Token{}, false
	}

	return tok, true
}

func (s *FileStore) Save(tok Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}

	return nil
}

// memStore caches the token for the lifetime of one Manager. It backs
// Managers constructed without a persistent store.
type memStore struct {
	mu  sync.Mutex
	tok Token
	set bool
}

func (s *memStore) Load() (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tok, s.set
}

func (s *memStore) Save(tok Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tok = tok
	s.set = true

	return nil
}
