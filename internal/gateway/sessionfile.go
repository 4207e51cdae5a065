package gateway

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/ytakahashi/todo-sync/internal/models"
)

// SessionStore persists the signed-in session between process runs.
type SessionStore interface {
	// Load returns the stored session, or nil when none is stored.
	Load() (*models.Session, error)
	Save(session models.Session) error
	Clear() error
}

// SessionFile stores the session as a TOML file readable only by the owner.
type SessionFile struct {
	path string
}

// NewSessionFile creates a store backed by path.
func NewSessionFile(path string) *SessionFile {
	return &SessionFile{path: path}
}

// Path returns the backing file path.
func (f *SessionFile) Path() string {
	return f.path
}

func (f *SessionFile) Load() (*models.Session, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file %s: %w", f.path, err)
	}

	var session models.Session
	if _, err := toml.Decode(string(data), &session); err != nil {
		return nil, fmt.Errorf("decode session file %s: %w", f.path, err)
	}
	if session.User.ID == "" {
		return nil, nil
	}
	return &session, nil
}

func (f *SessionFile) Save(session models.Session) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(session); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(f.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write session file %s: %w", f.path, err)
	}
	return nil
}

func (f *SessionFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file %s: %w", f.path, err)
	}
	return nil
}

// memorySessions keeps the session for the lifetime of the process only.
type memorySessions struct {
	mu      sync.Mutex
	session *models.Session
}

func (m *memorySessions) Load() (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *memorySessions) Save(session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &session
	return nil
}

func (m *memorySessions) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
