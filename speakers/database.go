// Package speakers holds enrolled speaker vectors and answers identification queries.
package speakers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"voice-analyze/voice"
)

// Database maps speaker ids to their enrolled vectors. Speakers keep the order
// in which they were first enrolled; identification ties resolve to the
// earlier speaker. Vectors are never modified once appended.
type Database struct {
	order   []string
	vectors map[string][][]float64
}

// NewDatabase returns an empty database.
func NewDatabase() *Database {
	return &Database{vectors: make(map[string][][]float64)}
}

// Len is the number of enrolled speakers.
func (db *Database) Len() int {
	if db == nil {
		return 0
	}
	return len(db.order)
}

// Speakers returns the speaker ids in enrollment order.
func (db *Database) Speakers() []string {
	if db == nil {
		return nil
	}
	return append([]string(nil), db.order...)
}

// Vectors returns the vectors enrolled for id. The inner slices are shared
// and must not be modified.
func (db *Database) Vectors(id string) ([][]float64, bool) {
	if db == nil {
		return nil, false
	}
	v, ok := db.vectors[id]
	return append([][]float64(nil), v...), ok
}

// Dimension reports the vector length of a speaker's group.
func (db *Database) Dimension(id string) (int, bool) {
	if db == nil {
		return 0, false
	}
	v, ok := db.vectors[id]
	if !ok || len(v) == 0 {
		return 0, false
	}
	return len(v[0]), true
}

// Each calls fn for every speaker in enrollment order until fn returns false.
func (db *Database) Each(fn func(id string, vectors [][]float64) bool) {
	if db == nil {
		return
	}
	for _, id := range db.order {
		if !fn(id, db.vectors[id]) {
			return
		}
	}
}

// Clone returns a database that can be appended to without affecting db.
func (db *Database) Clone() *Database {
	out := NewDatabase()
	if db == nil {
		return out
	}
	out.order = append(out.order, db.order...)
	for id, v := range db.vectors {
		out.vectors[id] = append([][]float64(nil), v...)
	}
	return out
}

// Append adds a copy of vector to id's group, creating the group if needed.
// A vector whose length differs from the group's existing vectors is
// rejected with voice.ErrDimensionMismatch.
func (db *Database) Append(id string, vector []float64) error {
	if id == "" {
		return fmt.Errorf("speaker id is required")
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", voice.ErrDimensionMismatch)
	}
	if dim, ok := db.Dimension(id); ok && dim != len(vector) {
		return fmt.Errorf("%w: speaker %q has %d-dimensional vectors, got %d",
			voice.ErrDimensionMismatch, id, dim, len(vector))
	}

	if db.vectors == nil {
		db.vectors = make(map[string][][]float64)
	}
	if _, ok := db.vectors[id]; !ok {
		db.order = append(db.order, id)
	}
	db.vectors[id] = append(db.vectors[id], append([]float64(nil), vector...))
	return nil
}

// Validate checks that every group is non-empty and uses a single dimension.
func (db *Database) Validate() error {
	for _, id := range db.order {
		vectors := db.vectors[id]
		if len(vectors) == 0 {
			return fmt.Errorf("speaker %q has no vectors", id)
		}
		dim := len(vectors[0])
		for i, v := range vectors {
			if len(v) == 0 || len(v) != dim {
				return fmt.Errorf("%w: speaker %q vector %d has length %d, expected %d",
					voice.ErrDimensionMismatch, id, i, len(v), dim)
			}
		}
	}
	return nil
}

// MarshalJSON writes {"speaker": [[...], ...], ...} in enrollment order.
func (db *Database) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range db.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(db.vectors[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the document written by MarshalJSON, keeping key order.
func (db *Database) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("speaker database must be a JSON object")
	}

	next := NewDatabase()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", tok)
		}
		var vectors [][]float64
		if err := dec.Decode(&vectors); err != nil {
			return fmt.Errorf("speaker %q: %w", id, err)
		}
		if _, dup := next.vectors[id]; !dup {
			next.order = append(next.order, id)
		}
		next.vectors[id] = vectors
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*db = *next
	return nil
}

// SpeakerStat summarises one speaker's enrollment.
type SpeakerStat struct {
	Speaker   string `json:"speaker"`
	Vectors   int    `json:"vectors"`
	Dimension int    `json:"dimension"`
}

// Stats lists every speaker in enrollment order.
func (db *Database) Stats() []SpeakerStat {
	stats := make([]SpeakerStat, 0, db.Len())
	db.Each(func(id string, vectors [][]float64) bool {
		stat := SpeakerStat{Speaker: id, Vectors: len(vectors)}
		if len(vectors) > 0 {
			stat.Dimension = len(vectors[0])
		}
		stats = append(stats, stat)
		return true
	})
	return stats
}
