// Package settings persists user-facing preferences (profile, notification
// preferences and the premium subscription) behind a small key-value port.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"contentcal/internal/fsutil"
)

// Store is the persisted-settings port. Get reports false when key is
// absent; dst is left untouched in that case.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Put(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// FileStore keeps all settings in one YAML document, rewritten atomically
// with 0600 permissions on every change.
type FileStore struct {
	mu   sync.Mutex
	path string
	doc  map[string]*yaml.Node
}

// NewFileStore opens (or lazily creates) the settings file at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("settings path is empty")
	}
	s := &FileStore{path: path, doc: map[string]*yaml.Node{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if s.doc == nil {
		s.doc = map[string]*yaml.Node{}
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string, dst any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.doc[key]
	if !ok || n == nil {
		return false, nil
	}
	if err := n.Decode(dst); err != nil {
		return false, fmt.Errorf("decode setting %q: %w", key, err)
	}
	return true, nil
}

func (s *FileStore) Put(_ context.Context, key string, v any) error {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.doc[key]
	s.doc[key] = &n
	if err := s.save(); err != nil {
		if had {
			s.doc[key] = prev
		} else {
			delete(s.doc, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.doc[key]
	if !had {
		return nil
	}
	delete(s.doc, key)
	if err := s.save(); err != nil {
		s.doc[key] = prev
		return err
	}
	return nil
}

// save must be called with mu held.
func (s *FileStore) save() error {
	data, err := yaml.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
