package speakers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"voice-analyze/utils"
)

// FileBackend stores the database as a single JSON document.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: filepath.Clean(path)}
}

// Path is the location of the JSON document.
func (f *FileBackend) Path() string { return f.path }

// Load reads the document. A missing or empty file is an empty database.
func (f *FileBackend) Load(_ context.Context) (*Database, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewDatabase(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading speaker database: %w", err)
	}
	if len(data) == 0 {
		return NewDatabase(), nil
	}

	db := NewDatabase()
	if err := json.Unmarshal(data, db); err != nil {
		return nil, fmt.Errorf("error parsing speaker database %s: %w", f.path, err)
	}
	return db, nil
}

// Save writes the document to a temporary file in the same directory and
// renames it over the old one.
func (f *FileBackend) Save(ctx context.Context, db *Database) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal speaker database: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := utils.CreateFolder(dir); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write speaker database: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync speaker database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Close is a no-op.
func (f *FileBackend) Close() error { return nil }
