package speakers

import (
	"context"
	"fmt"
	"strings"
)

// BackendConfig selects and configures a persistence backend.
type BackendConfig struct {
	// Kind is one of "file", "sqlite", "postgres" or "mongo".
	Kind       string
	Path       string
	DSN        string
	Database   string
	Collection string
}

// OpenBackend constructs the backend named by cfg.Kind. An empty kind means "file".
func OpenBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "file", "json":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file backend requires a path")
		}
		return NewFileBackend(cfg.Path), nil
	case "sqlite", "sqlite3":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.Path
		}
		if dsn == "" {
			return nil, fmt.Errorf("sqlite backend requires a path or dsn")
		}
		return NewSQLiteBackend(dsn)
	case "postgres", "postgresql", "pgvector":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a dsn")
		}
		return NewPostgresBackend(ctx, cfg.DSN)
	case "mongo", "mongodb":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mongo backend requires a uri")
		}
		database := cfg.Database
		if database == "" {
			database = "voice_analyze"
		}
		collection := cfg.Collection
		if collection == "" {
			collection = "speaker_databases"
		}
		return NewMongoBackend(ctx, cfg.DSN, database, collection, "speakers")
	default:
		return nil, fmt.Errorf("unknown speaker store backend %q", cfg.Kind)
	}
}
