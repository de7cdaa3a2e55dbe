package speakers

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

func TestSQLiteBackendRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "speakers.db")
	backend, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	defer backend.Close()

	empty, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if empty.Len() != 0 {
		t.Fatalf("expected empty database, got %d speakers", empty.Len())
	}

	db := NewDatabase()
	_ = db.Append("zed", []float64{1, 2, 3})
	_ = db.Append("amy", []float64{math.Pi, -0.5, 1e-300})
	_ = db.Append("zed", []float64{4, 5, 6})

	if err := backend.Save(ctx, db); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// a second save replaces rather than appends
	if err := backend.Save(ctx, db); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !equalStrings(loaded.Speakers(), []string{"zed", "amy"}) {
		t.Fatalf("unexpected order %v", loaded.Speakers())
	}
	for _, id := range db.Speakers() {
		want, _ := db.Vectors(id)
		got, _ := loaded.Vectors(id)
		if !equalVectors(got, want) {
			t.Errorf("speaker %s: got %v want %v", id, got, want)
		}
	}
	if err := backend.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestSQLiteBackendThroughStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "speakers.db")
	backend, err := OpenBackend(ctx, BackendConfig{Kind: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	store, err := Open(ctx, backend)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Add(ctx, "alice", []float64{1, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	store, err = Open(ctx, reopened)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if m := store.Identify([]float64{1, 0}, nil); m.Speaker != "alice" {
		t.Fatalf("expected alice after reopen, got %+v", m)
	}
}

func TestDecodeVectorRejectsCorruptBlob(t *testing.T) {
	t.Parallel()

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated blob")
	}
	if _, err := decodeVector(nil); err == nil {
		t.Fatalf("expected error for empty blob")
	}
}

func TestOpenBackendValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for _, cfg := range []BackendConfig{
		{Kind: "file"},
		{Kind: "sqlite"},
		{Kind: "postgres"},
		{Kind: "mongo"},
		{Kind: "redis", Path: "x"},
	} {
		if _, err := OpenBackend(ctx, cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}

	backend, err := OpenBackend(ctx, BackendConfig{Path: filepath.Join(t.TempDir(), "s.json")})
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, ok := backend.(*FileBackend); !ok {
		t.Fatalf("expected file backend by default, got %T", backend)
	}
}
