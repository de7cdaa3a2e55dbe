package speakers

import (
	"context"
	"math"
	"os"
	"testing"
)

func TestPostgresBackendRoundTrip(t *testing.T) {
	dsn := os.Getenv("VOICE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOICE_TEST_POSTGRES_DSN not set; skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	backend, err := NewPostgresBackend(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresBackend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	db := NewDatabase()
	_ = db.Append("zed", []float64{1, 2, 3})
	_ = db.Append("amy", []float64{0.25, -0.5, 8})
	_ = db.Append("zed", []float64{4, 5, 6})

	if err := backend.Save(ctx, db); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Cleanup(func() { _ = backend.Save(context.Background(), NewDatabase()) })

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
		if len(got) != len(want) {
			t.Fatalf("speaker %s: got %d vectors want %d", id, len(got), len(want))
		}
		for i := range want {
			for j := range want[i] {
				if math.Abs(got[i][j]-want[i][j]) > 1e-6 {
					t.Errorf("speaker %s vector %d: got %v want %v", id, i, got[i], want[i])
				}
			}
		}
	}
}
