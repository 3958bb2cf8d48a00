// Package filestore is the file-backed storage backend. Each scope is one
// JSON file under the root directory, written atomically.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/flint-bot/flint/internal/fsstore"
	"github.com/flint-bot/flint/storage"
)

type Store struct {
	root string
	mu   sync.Mutex
}

func New(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("filestore root is required")
	}
	if err := fsstore.EnsureDir(root); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// scopePath flattens the scope into a filename. Room ids contain no path
// separators but the escape keeps hostile scopes inside the root.
func (s *Store) scopePath(scope string) (string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "", fmt.Errorf("scope is required")
	}
	escaped := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(scope)
	return filepath.Join(s.root, escaped+".json"), nil
}

func (s *Store) load(scope string) (string, map[string]json.RawMessage, error) {
	path, err := s.scopePath(scope)
	if err != nil {
		return "", nil, err
	}
	data := make(map[string]json.RawMessage)
	if _, err := fsstore.ReadJSON(path, &data); err != nil {
		return "", nil, err
	}
	return path, data, nil
}

func (s *Store) Create(_ context.Context, scope, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, data, err := s.load(scope)
	if err != nil {
		return err
	}
	data[key] = append([]byte(nil), value...)
	return fsstore.WriteJSONAtomic(path, data)
}

func (s *Store) Read(_ context.Context, scope, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, data, err := s.load(scope)
	if err != nil {
		return nil, err
	}
	v, ok := data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) ReadScope(_ context.Context, scope string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, data, err := s.load(scope)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}
	out := make(map[string][]byte, len(data))
	for k, v := range data {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, data, err := s.load(scope)
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	if len(data) == 0 {
		return removeIfExists(path)
	}
	return fsstore.WriteJSONAtomic(path, data)
}

func (s *Store) DeleteScope(_ context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := s.scopePath(scope)
	if err != nil {
		return err
	}
	return removeIfExists(path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
