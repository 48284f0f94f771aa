// Package storage provides the durable relational store: chunks,
// call edges, type edges, notes, and a singleton metadata row, backed
// by SQLite (via the pure-Go modernc.org/sqlite driver, no CGO) with
// an FTS5 shadow table for lexical search, per SPEC_FULL.md §4.4.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jamie8johnson/cqs-sub000/internal/cqserrors"
	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// Store is the single relational handle for an index directory. All
// writes from the indexing pipeline flow through one *Store behind its
// mutex; reads share the mutex, but the pool's single connection runs
// their queries one at a time.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// OpenOptions configures model-identity validation on open.
type OpenOptions struct {
	ModelName string
	ModelDim  int
	// AllowEmpty permits opening a fresh store with no metadata row
	// yet (first index of a project).
	AllowEmpty bool
}

// Open opens (or creates) the store at path, applies WAL pragmas,
// runs schema DDL, and validates schema version and model identity
// against OpenOptions, per spec §4.4's invariants.
func Open(path string, opts OpenOptions) (*Store, error) {
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, cqserrors.IOError("store.open", dir, err)
			}
		}
	}

	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cqserrors.IOError("store.open", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, cqserrors.IOError("store.open", path, fmt.Errorf("set pragma %q: %w", p, err))
		}
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, cqserrors.IOError("store.open", path, fmt.Errorf("apply schema: %w", err))
	}

	s := &Store{db: db, path: path}

	if err := s.validateIdentity(opts); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) validateIdentity(opts OpenOptions) error {
	meta, err := s.getMetadataRow()
	if err != nil {
		return cqserrors.IOError("store.open", s.path, err)
	}

	if meta == nil {
		if opts.AllowEmpty {
			return nil
		}
		return s.writeMetadataRow(opts.ModelName, opts.ModelDim)
	}

	if meta.SchemaVersion > CurrentSchemaVersion {
		return cqserrors.SchemaMismatch("store.open",
			"index was built by a newer version of this tool; upgrade is required", false)
	}
	if meta.SchemaVersion < CurrentSchemaVersion {
		return cqserrors.SchemaMismatch("store.open",
			"index schema is stale; run a full reindex", true)
	}

	if opts.ModelName != "" && (meta.ModelName != opts.ModelName || meta.ModelDim != opts.ModelDim) {
		return cqserrors.ModelMismatch("store.open",
			fmt.Sprintf("index was built with model %q (dim %d); runtime model is %q (dim %d): reindex required",
				meta.ModelName, meta.ModelDim, opts.ModelName, opts.ModelDim), true)
	}

	return nil
}

type metadataRow struct {
	SchemaVersion int
	ModelName     string
	ModelDim      int
	UpdatedAt     time.Time
}

func (s *Store) getMetadataRow() (*metadataRow, error) {
	row := s.db.QueryRow(`SELECT schema_version, model_name, model_dim, updated_at FROM metadata WHERE id = 1`)
	var m metadataRow
	var updatedAtUnix int64
	if err := row.Scan(&m.SchemaVersion, &m.ModelName, &m.ModelDim, &updatedAtUnix); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m.UpdatedAt = time.Unix(updatedAtUnix, 0)
	return &m, nil
}

func (s *Store) writeMetadataRow(modelName string, modelDim int) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (id, schema_version, model_name, model_dim, updated_at) VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET schema_version=excluded.schema_version, model_name=excluded.model_name, model_dim=excluded.model_dim, updated_at=excluded.updated_at`,
		CurrentSchemaVersion, modelName, modelDim, time.Now().Unix())
	return err
}

// TouchUpdatedAt bumps the metadata row's timestamp, e.g. after an
// incremental upsert completes.
func (s *Store) TouchUpdatedAt(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cqserrors.Internal("store.touch_updated_at", "store is closed")
	}
	_, err := s.db.ExecContext(ctx, `UPDATE metadata SET updated_at = ? WHERE id = 1`, time.Now().Unix())
	return err
}

// Metadata returns the current index metadata as a model.IndexMetadata.
func (s *Store) Metadata(ctx context.Context) (*model.IndexMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.metadata", "store is closed")
	}
	row, err := s.getMetadataRow()
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, cqserrors.NotFound("store.metadata", "no index metadata row")
	}
	return &model.IndexMetadata{
		SchemaVersion: row.SchemaVersion,
		ModelName:     row.ModelName,
		ModelDim:      row.ModelDim,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

// Checkpoint forces a WAL checkpoint, used before a clean shutdown or
// to bound WAL growth on long indexing runs.
func (s *Store) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
