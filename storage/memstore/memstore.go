// Package memstore is the in-memory storage backend. It is the default and
// the one unit tests use.
package memstore

import (
	"context"
	"sync"

	"github.com/flint-bot/flint/storage"
)

type Store struct {
	mu     sync.RWMutex
	scopes map[string]map[string][]byte
}

func New() *Store {
	return &Store{scopes: make(map[string]map[string][]byte)}
}

func (s *Store) Create(_ context.Context, scope, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.scopes[scope]
	if !ok {
		m = make(map[string][]byte)
		s.scopes[scope] = m
	}
	m[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Read(_ context.Context, scope, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.scopes[scope]
	if !ok {
		return nil, storage.ErrNotFound
	}
	v, ok := m[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) ReadScope(_ context.Context, scope string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.scopes[scope]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.scopes[scope]; ok {
		delete(m, key)
		if len(m) == 0 {
			delete(s.scopes, scope)
		}
	}
	return nil
}

func (s *Store) DeleteScope(_ context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopes, scope)
	return nil
}
