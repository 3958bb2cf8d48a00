// Package storage defines the pluggable persistence contract bot instances
// use for their per-room memory. A scope is a room id; omitting the key
// addresses the whole scope.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: not found")

// Store is the uniform create/read/delete contract. Values are opaque bytes;
// the bot layer encodes JSON on top.
type Store interface {
	Create(ctx context.Context, scope, key string, value []byte) error
	Read(ctx context.Context, scope, key string) ([]byte, error)
	ReadScope(ctx context.Context, scope string) (map[string][]byte, error)
	Delete(ctx context.Context, scope, key string) error
	DeleteScope(ctx context.Context, scope string) error
}
