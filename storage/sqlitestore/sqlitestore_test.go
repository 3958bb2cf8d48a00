package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/flint-bot/flint/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRoundTripAndUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, "room-1", "k", []byte("v1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, "room-1", "k", []byte("v2")); err != nil {
		t.Fatalf("upsert Create: %v", err)
	}
	got, err := s.Read(ctx, "room-1", "k")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("Read = %q, want v2", got)
	}
}

func TestNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Read(ctx, "ghost", "k"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Read = %v, want ErrNotFound", err)
	}
	if _, err := s.ReadScope(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ReadScope = %v, want ErrNotFound", err)
	}
}

func TestReadScopeAndDeleteScope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Create(ctx, "room-1", "a", []byte("1"))
	s.Create(ctx, "room-1", "b", []byte("2"))
	s.Create(ctx, "room-2", "a", []byte("3"))

	m, err := s.ReadScope(ctx, "room-1")
	if err != nil {
		t.Fatalf("ReadScope: %v", err)
	}
	if len(m) != 2 || string(m["a"]) != "1" || string(m["b"]) != "2" {
		t.Fatalf("ReadScope = %v", m)
	}

	if err := s.DeleteScope(ctx, "room-1"); err != nil {
		t.Fatalf("DeleteScope: %v", err)
	}
	if _, err := s.ReadScope(ctx, "room-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatal("room-1 survived DeleteScope")
	}
	if got, err := s.Read(ctx, "room-2", "a"); err != nil || string(got) != "3" {
		t.Fatalf("room-2 damaged: %q %v", got, err)
	}
}

func TestDeleteMissingIsQuiet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Delete(ctx, "ghost", "k"); err != nil {
		t.Fatalf("Delete = %v, want nil", err)
	}
	if err := s.DeleteScope(ctx, "ghost"); err != nil {
		t.Fatalf("DeleteScope = %v, want nil", err)
	}
}
