package speakers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"voice-analyze/voice"
)

type memoryBackend struct {
	mu      sync.Mutex
	saved   *Database
	saves   int
	failing bool
}

func (m *memoryBackend) Load(context.Context) (*Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved.Clone(), nil
}

func (m *memoryBackend) Save(_ context.Context, db *Database) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	m.saved = db.Clone()
	m.saves++
	return nil
}

func (m *memoryBackend) Close() error { return nil }

func TestStoreAddPersistsEveryVector(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &memoryBackend{}
	store, err := Open(ctx, backend)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const n = 4
	for i := 0; i < n; i++ {
		if err := store.Add(ctx, "s", []float64{float64(i), 1}); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}
	if backend.saves != n {
		t.Errorf("expected %d saves, got %d", n, backend.saves)
	}

	vectors, _ := backend.saved.Vectors("s")
	if len(vectors) != n {
		t.Fatalf("expected %d durable vectors, got %d", n, len(vectors))
	}
	for i := range vectors {
		if vectors[i][0] != float64(i) {
			t.Errorf("durable vector %d out of order: %v", i, vectors[i])
		}
	}
}

func TestStoreAddFailureLeavesMemoryUnchanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &memoryBackend{}
	store, err := Open(ctx, backend)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Add(ctx, "alice", []float64{1, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	backend.mu.Lock()
	backend.failing = true
	backend.mu.Unlock()

	err = store.Add(ctx, "bob", []float64{0, 1})
	if !errors.Is(err, voice.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("failed enrollment changed memory: %+v", store.Stats())
	}
	if m := store.Identify([]float64{0, 1}, nil); m.Speaker == "bob" {
		t.Fatalf("bob is identifiable after a failed save")
	}
}

func TestStoreAddRejectsDimensionChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &memoryBackend{}
	store, _ := Open(ctx, backend)
	_ = store.Add(ctx, "a", []float64{1, 2})

	err := store.Add(ctx, "a", []float64{1, 2, 3})
	if !errors.Is(err, voice.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if backend.saves != 1 {
		t.Fatalf("rejected vector was saved")
	}
}

func TestStoreConcurrentEnrollment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "speakers.json")
	store, err := Open(ctx, NewFileBackend(path))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vec := make([]float64, n)
			vec[i] = 1
			errs <- store.Add(ctx, fmt.Sprintf("speaker-%02d", i), vec)
		}(i)
	}
	// identification runs alongside enrollment
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			store.Identify(make([]float64, n), nil)
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	reloaded, err := NewFileBackend(path).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Len() != n {
		t.Fatalf("expected %d durable speakers, got %d", n, reloaded.Len())
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("speaker-%02d", i)
		vectors, ok := reloaded.Vectors(id)
		if !ok || len(vectors) != 1 || vectors[0][i] != 1 {
			t.Errorf("speaker %s not persisted correctly: %v", id, vectors)
		}
	}
}

func TestStoreIdentifyThreshold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := Open(ctx, &memoryBackend{})
	_ = store.Add(ctx, "a", []float64{1, 0})

	if m := store.Identify([]float64{0.1, 1}, nil); m.Speaker != "a" {
		t.Errorf("expected best effort match without threshold, got %+v", m)
	}
	high := 0.8
	if m := store.Identify([]float64{0.1, 1}, &high); m.Found {
		t.Errorf("expected no match above threshold, got %+v", m)
	}
}

func TestFileBackendMissingAndEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	db, err := NewFileBackend(filepath.Join(dir, "missing.json")).Load(ctx)
	if err != nil || db.Len() != 0 {
		t.Fatalf("missing file: db=%v err=%v", db, err)
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	db, err = NewFileBackend(empty).Load(ctx)
	if err != nil || db.Len() != 0 {
		t.Fatalf("empty file: db=%v err=%v", db, err)
	}
}

func TestFileBackendCorruptDocumentFailsOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "speakers.json")
	if err := os.WriteFile(path, []byte(`{"a": [[1, 2], [3]]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(context.Background(), NewFileBackend(path))
	if !errors.Is(err, voice.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "speakers.json")
	backend := NewFileBackend(path)

	db := NewDatabase()
	_ = db.Append("carol", []float64{0.1, 0.2, 0.3})
	_ = db.Append("alice", []float64{-1.5, 2.25, 1e-12})
	_ = db.Append("carol", []float64{3, 2, 1})

	if err := backend.Save(ctx, db); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !equalStrings(loaded.Speakers(), []string{"carol", "alice"}) {
		t.Fatalf("unexpected order %v", loaded.Speakers())
	}
	for _, id := range db.Speakers() {
		want, _ := db.Vectors(id)
		got, _ := loaded.Vectors(id)
		if !equalVectors(got, want) {
			t.Errorf("speaker %s: got %v want %v", id, got, want)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestFileBackendSaveHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "speakers.json")
	if err := NewFileBackend(path).Save(ctx, NewDatabase()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("document written despite cancellation")
	}
}
