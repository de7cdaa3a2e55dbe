package speakers

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"voice-analyze/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// SQLiteBackend keeps speakers and their vectors in two tables. Vectors are
// stored as little-endian float64 blobs so they round-trip exactly.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (and if needed creates) the database at dataSourceName.
func NewSQLiteBackend(dataSourceName string) (*SQLiteBackend, error) {
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func createTables(db *sql.DB) error {
	createSpeakersTable := `
    CREATE TABLE IF NOT EXISTS speakers (
        position INTEGER PRIMARY KEY,
        speaker TEXT NOT NULL UNIQUE
    );
    `

	createVectorsTable := `
    CREATE TABLE IF NOT EXISTS speaker_vectors (
        speaker TEXT NOT NULL,
        seq INTEGER NOT NULL,
        vector BLOB NOT NULL,
        PRIMARY KEY (speaker, seq)
    );
    `

	if _, err := db.Exec(createSpeakersTable); err != nil {
		return fmt.Errorf("error creating speakers table: %w", err)
	}
	if _, err := db.Exec(createVectorsTable); err != nil {
		return fmt.Errorf("error creating speaker_vectors table: %w", err)
	}
	return nil
}

// Load reads every speaker in position order.
func (s *SQLiteBackend) Load(ctx context.Context) (*Database, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT s.speaker, v.vector
        FROM speakers s
        JOIN speaker_vectors v ON v.speaker = s.speaker
        ORDER BY s.position, v.seq`)
	if err != nil {
		return nil, fmt.Errorf("error querying speaker vectors: %w", err)
	}
	defer rows.Close()

	db := NewDatabase()
	for rows.Next() {
		var speaker string
		var blob []byte
		if err := rows.Scan(&speaker, &blob); err != nil {
			return nil, fmt.Errorf("error scanning speaker vector: %w", err)
		}
		vector, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("speaker %q: %w", speaker, err)
		}
		if err := db.Append(speaker, vector); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating speaker vectors: %w", err)
	}
	return db, nil
}

// Save replaces both tables inside one transaction.
func (s *SQLiteBackend) Save(ctx context.Context, db *Database) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM speaker_vectors`); err != nil {
		return fmt.Errorf("error clearing speaker vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM speakers`); err != nil {
		return fmt.Errorf("error clearing speakers: %w", err)
	}

	speakerStmt, err := tx.PrepareContext(ctx, `INSERT INTO speakers (position, speaker) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing speaker insert: %w", err)
	}
	defer speakerStmt.Close()

	vectorStmt, err := tx.PrepareContext(ctx, `INSERT INTO speaker_vectors (speaker, seq, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing vector insert: %w", err)
	}
	defer vectorStmt.Close()

	var insertErr error
	position := 0
	db.Each(func(id string, vectors [][]float64) bool {
		if _, insertErr = speakerStmt.ExecContext(ctx, position, id); insertErr != nil {
			return false
		}
		for seq, v := range vectors {
			if _, insertErr = vectorStmt.ExecContext(ctx, id, seq, encodeVector(v)); insertErr != nil {
				return false
			}
		}
		position++
		return true
	})
	if insertErr != nil {
		return fmt.Errorf("error inserting speaker rows: %w", insertErr)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(blob []byte) ([]float64, error) {
	if len(blob) == 0 || len(blob)%8 != 0 {
		return nil, fmt.Errorf("corrupt vector blob of %d bytes", len(blob))
	}
	v := make([]float64, len(blob)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return v, nil
}
