package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jamie8johnson/cqs-sub000/internal/cqserrors"
	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// UpsertChunksAndEdges replaces every row belonging to origin within
// one transaction: prior chunks (and, by cascade, their call/type
// edges) are deleted, the FTS shadow entries for that origin are
// dropped, then the new rows are inserted. A failure aborts the whole
// transaction, leaving the origin's prior rows untouched, per spec
// §4.4 and invariant P1.
func (s *Store) UpsertChunksAndEdges(ctx context.Context, origin string, chunks []*model.Chunk, callEdges []model.CallEdge, typeEdges []model.TypeEdge, fileMtime time.Time, expectedDim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cqserrors.Internal("store.upsert_chunks_and_edges", "store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cqserrors.IOError("store.upsert_chunks_and_edges", origin, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteOrigin(ctx, tx, origin); err != nil {
		return cqserrors.IOError("store.upsert_chunks_and_edges", origin, err)
	}

	if err := insertChunks(ctx, tx, chunks, expectedDim); err != nil {
		return cqserrors.Wrap(cqserrors.ErrCodeModelDimMismatch, "store.upsert_chunks_and_edges", err).WithPath(origin)
	}

	if err := insertCallEdges(ctx, tx, callEdges); err != nil {
		return cqserrors.IOError("store.upsert_chunks_and_edges", origin, err)
	}
	if err := insertTypeEdges(ctx, tx, typeEdges); err != nil {
		return cqserrors.IOError("store.upsert_chunks_and_edges", origin, err)
	}

	if err := tx.Commit(); err != nil {
		return cqserrors.IOError("store.upsert_chunks_and_edges", origin, err)
	}
	return nil
}

func deleteOrigin(ctx context.Context, tx *sql.Tx, origin string) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE origin = ?`, origin)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`, id); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE origin = ?`, origin); err != nil {
		return err
	}
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []*model.Chunk, expectedDim int) error {
	if len(chunks) == 0 {
		return nil
	}

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, origin, name, chunk_type, language, line_start, line_end, signature, doc, content, content_hash, parent_id, window_idx, embedding, source_mtime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks_fts (chunk_id, content) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer ftsStmt.Close()

	for _, c := range chunks {
		var embBytes []byte
		if len(c.Embedding) > 0 {
			embBytes, err = embeddingToBytes(c.Embedding, expectedDim)
			if err != nil {
				return err
			}
		}

		var parentID any
		if c.ParentID != "" {
			parentID = c.ParentID
		}
		var windowIdx any
		if c.WindowIdx != nil {
			windowIdx = *c.WindowIdx
		}

		if _, err := insertStmt.ExecContext(ctx, c.ID, c.Origin, c.Name, string(c.ChunkType), string(c.Language),
			c.LineStart, c.LineEnd, c.Signature, c.Doc, c.Content, c.ContentHash, parentID, windowIdx, embBytes, c.SourceMtime.Unix()); err != nil {
			return err
		}

		normalized := normalizeIdentifiers(c.Content + " " + c.Name + " " + c.Signature + " " + c.Doc)
		if _, err := ftsStmt.ExecContext(ctx, c.ID, normalized); err != nil {
			return err
		}
	}
	return nil
}

func insertCallEdges(ctx context.Context, tx *sql.Tx, edges []model.CallEdge) error {
	if len(edges) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO call_edges (caller_chunk_id, callee_name, call_line) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.CallerChunkID, e.CalleeName, e.CallLine); err != nil {
			return err
		}
	}
	return nil
}

func insertTypeEdges(ctx context.Context, tx *sql.Tx, edges []model.TypeEdge) error {
	if len(edges) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO type_edges (source_chunk_id, target_type_name, kind, line) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.SourceChunkID, e.TargetTypeName, string(e.Kind), e.Line); err != nil {
			return err
		}
	}
	return nil
}

// NeedsReindex compares path's current mtime against the stored
// source_mtime for any chunk at that origin; a file with no stored
// chunks always needs indexing.
func (s *Store) NeedsReindex(ctx context.Context, path string, currentMtime time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, cqserrors.Internal("store.needs_reindex", "store is closed")
	}

	var storedMtime sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(source_mtime) FROM chunks WHERE origin = ?`, path).Scan(&storedMtime)
	if err != nil {
		if err == sql.ErrNoRows {
			return true, nil
		}
		return false, cqserrors.IOError("store.needs_reindex", path, err)
	}
	if !storedMtime.Valid || storedMtime.Int64 == 0 {
		return true, nil
	}
	return currentMtime.Unix() > storedMtime.Int64, nil
}

// GetEmbeddingsByHashes returns the stored embedding for each
// content_hash that has one, used by the pipeline's cache lookup to
// skip re-embedding unchanged chunks. Errors are returned, never
// silently dropped, per spec §4.4.
func (s *Store) GetEmbeddingsByHashes(ctx context.Context, hashes []string) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.get_embeddings_by_hashes", "store is closed")
	}
	if len(hashes) == 0 {
		return map[string][]float32{}, nil
	}

	placeholders, args := inClause(hashes)
	query := `SELECT content_hash, embedding FROM chunks WHERE content_hash IN (` + placeholders + `) AND embedding IS NOT NULL`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cqserrors.IOError("store.get_embeddings_by_hashes", "", err)
	}
	defer rows.Close()

	out := make(map[string][]float32, len(hashes))
	for rows.Next() {
		var hash string
		var buf []byte
		if err := rows.Scan(&hash, &buf); err != nil {
			return nil, cqserrors.IOError("store.get_embeddings_by_hashes", "", err)
		}
		if _, exists := out[hash]; !exists {
			out[hash] = bytesToEmbedding(buf)
		}
	}
	return out, rows.Err()
}
