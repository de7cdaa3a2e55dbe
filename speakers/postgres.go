package speakers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

const ddlSpeakerVectors = `
CREATE TABLE IF NOT EXISTS speaker_vectors (
    speaker    TEXT    NOT NULL,
    position   INTEGER NOT NULL,
    seq        INTEGER NOT NULL,
    embedding  vector  NOT NULL,
    PRIMARY KEY (speaker, seq)
);

CREATE INDEX IF NOT EXISTS idx_speaker_vectors_position
    ON speaker_vectors (position, seq);
`

// PostgresBackend stores vectors in a pgvector column. pgvector holds
// single-precision values, so vectors loaded back are float32-rounded.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend connects to dsn, installs the vector extension and
// creates the speaker_vectors table when missing.
func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	// the extension has to exist before pgvector types can be registered
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres speakers: connect: %w", err)
	}
	_, err = conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres speakers: create extension: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres speakers: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres speakers: create pool: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlSpeakerVectors); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres speakers: migrate: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

// Load reads all vectors ordered by speaker position.
func (p *PostgresBackend) Load(ctx context.Context) (*Database, error) {
	rows, err := p.pool.Query(ctx, `
        SELECT speaker, embedding
        FROM speaker_vectors
        ORDER BY position, seq`)
	if err != nil {
		return nil, fmt.Errorf("postgres speakers: query: %w", err)
	}
	defer rows.Close()

	db := NewDatabase()
	for rows.Next() {
		var (
			speaker string
			vec     pgvector.Vector
		)
		if err := rows.Scan(&speaker, &vec); err != nil {
			return nil, fmt.Errorf("postgres speakers: scan: %w", err)
		}
		narrow := vec.Slice()
		wide := make([]float64, len(narrow))
		for i, x := range narrow {
			wide[i] = float64(x)
		}
		if err := db.Append(speaker, wide); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres speakers: rows: %w", err)
	}
	return db, nil
}

// Save replaces the table contents in a single transaction.
func (p *PostgresBackend) Save(ctx context.Context, db *Database) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres speakers: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM speaker_vectors`); err != nil {
		return fmt.Errorf("postgres speakers: clear: %w", err)
	}

	batch := &pgx.Batch{}
	position := 0
	db.Each(func(id string, vectors [][]float64) bool {
		for seq, v := range vectors {
			narrow := make([]float32, len(v))
			for i, x := range v {
				narrow[i] = float32(x)
			}
			batch.Queue(
				`INSERT INTO speaker_vectors (speaker, position, seq, embedding) VALUES ($1, $2, $3, $4)`,
				id, position, seq, pgvector.NewVector(narrow),
			)
		}
		position++
		return true
	})

	if batch.Len() > 0 {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("postgres speakers: insert: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("postgres speakers: insert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres speakers: commit: %w", err)
	}
	return nil
}

// Ping checks the pool.
func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the pool.
func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}
