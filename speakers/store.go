package speakers

import (
	"context"
	"fmt"
	"sync"

	"voice-analyze/voice"
)

// Backend persists a whole Database. Save must replace the durable copy
// atomically: a failed Save leaves the previous document intact.
type Backend interface {
	Load(ctx context.Context) (*Database, error)
	Save(ctx context.Context, db *Database) error
	Close() error
}

// Store guards the in-memory Database. Identification takes the read lock;
// enrollment takes the write lock for the whole append-and-save step, so
// memory never runs ahead of the durable copy.
type Store struct {
	mu      sync.RWMutex
	db      *Database
	backend Backend
}

// Open loads the database from backend.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	db, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", voice.ErrPersistence, err)
	}
	if db == nil {
		db = NewDatabase()
	}
	return &Store{db: db, backend: backend}, nil
}

// Add appends vector to speaker's group and persists the result. If the save
// fails the in-memory database is left unchanged and the error wraps
// voice.ErrPersistence.
func (s *Store) Add(ctx context.Context, speaker string, vector []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.db.Clone()
	if err := next.Append(speaker, vector); err != nil {
		return err
	}
	if err := s.backend.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", voice.ErrPersistence, err)
	}
	s.db = next
	return nil
}

// Identify runs Identify under the read lock. A nil threshold disables the
// minimum score.
func (s *Store) Identify(query []float64, threshold *float64) Match {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if threshold != nil {
		return IdentifyWithThreshold(s.db, query, *threshold)
	}
	return Identify(s.db, query)
}

// Snapshot returns a copy of the current database.
func (s *Store) Snapshot() *Database {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Clone()
}

// Stats lists enrolled speakers in enrollment order.
func (s *Store) Stats() []SpeakerStat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Stats()
}

// Len is the number of enrolled speakers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Len()
}

// Ping reports whether the backend can currently be loaded from.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.backend.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
