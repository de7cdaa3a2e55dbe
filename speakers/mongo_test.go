package speakers

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestMongoBackendRoundTrip(t *testing.T) {
	uri := os.Getenv("VOICE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("VOICE_TEST_MONGO_URI not set; skipping MongoDB integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	docID := "test-" + time.Now().UTC().Format("20060102150405.000000000")
	backend, err := NewMongoBackend(ctx, uri, "voice_analyze_test", "speaker_databases", docID)
	if err != nil {
		t.Fatalf("NewMongoBackend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	empty, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("Load missing document: %v", err)
	}
	if empty.Len() != 0 {
		t.Fatalf("expected empty database, got %d speakers", empty.Len())
	}

	db := NewDatabase()
	_ = db.Append("zed", []float64{1, 2, 3})
	_ = db.Append("amy", []float64{0.1, -0.2, 1e-9})
	if err := backend.Save(ctx, db); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Cleanup(func() {
		_, _ = backend.collection.DeleteOne(context.Background(), map[string]string{"_id": docID})
	})

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
}
