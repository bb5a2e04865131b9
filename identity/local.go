// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Binding ties this client to one ledger entry.
type Binding struct {
	Name     string    `json:"name"`
	Key      string    `json:"key"`
	ClientID string    `json:"clientId"`
	BoundAt  time.Time `json:"boundAt"`
}

// Local is everything a client keeps between runs. ClientID outlives
// bindings.
type Local struct {
	ClientID string   `json:"clientId"`
	Binding  *Binding `json:"binding,omitempty"`
}

// LocalStore persists Local on the client.
type LocalStore interface {
	Load() (Local, error)
	Save(Local) error
}

// FileStore keeps Local in a JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is the binding file under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "quickly-buzz", "identity.json"), nil
}

// Load reads the file. A missing file is an empty Local.
func (f *FileStore) Load() (Local, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Local{}, nil
	}
	if err != nil {
		return Local{}, fmt.Errorf("read identity: %w", err)
	}
	var l Local
	if err := json.Unmarshal(b, &l); err != nil {
		return Local{}, fmt.Errorf("parse identity %s: %w", f.path, err)
	}
	return l, nil
}

// Save replaces the file atomically.
func (f *FileStore) Save(l Local) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".identity-*")
	if err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write identity: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

// MemoryStore keeps Local in memory.
type MemoryStore struct {
	mu sync.Mutex
	l  Local
}

func (m *MemoryStore) Load() (Local, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.l
	if l.Binding != nil {
		b := *l.Binding
		l.Binding = &b
	}
	return l, nil
}

func (m *MemoryStore) Save(l Local) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.Binding != nil {
		b := *l.Binding
		l.Binding = &b
	}
	m.l = l
	return nil
}
