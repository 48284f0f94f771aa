package storage

import (
	"context"
	"strings"

	"github.com/jamie8johnson/cqs-sub000/internal/cqserrors"
	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// Filter restricts which chunks a search operation considers.
type Filter struct {
	Language   model.Language
	ChunkType  model.ChunkType
	PathGlob   string // pre-compiled glob matching happens in retrieval; this is advisory
	ChunkIDs   []string
}

// FTSResult is one lexical hit, ranked by FTS5's bm25() relevance.
type FTSResult struct {
	ChunkID string
	Score   float64
}

// SearchFTS runs a full-text search over normalized chunk content,
// per spec §4.4's search_fts primitive. Query text is normalized the
// same way indexed content is (identifier-tokenized).
func (s *Store) SearchFTS(ctx context.Context, queryText string, limit int) ([]FTSResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.search_fts", "store is closed")
	}

	normalized := normalizeIdentifiers(queryText)
	if normalized == "" {
		return []FTSResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, bm25(chunks_fts) AS score
		FROM chunks_fts
		WHERE content MATCH ?
		ORDER BY score
		LIMIT ?`, normalized, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []FTSResult{}, nil
		}
		return nil, cqserrors.IOError("store.search_fts", "", err)
	}
	defer rows.Close()

	var results []FTSResult
	for rows.Next() {
		var r FTSResult
		if err := rows.Scan(&r.ChunkID, &r.Score); err != nil {
			return nil, cqserrors.IOError("store.search_fts", "", err)
		}
		r.Score = -r.Score // fts5 bm25() returns negative values; lower = better
		results = append(results, r)
	}
	return results, rows.Err()
}

// SearchByName returns chunks whose name exactly or partially matches
// name, ordered by how close the match is (exact, then prefix, then
// contains), per the name_score used at fusion time.
func (s *Store) SearchByName(ctx context.Context, name string, limit int) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.search_by_name", "store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks
		WHERE name = ? OR name LIKE ? OR name LIKE ?
		ORDER BY
			CASE
				WHEN name = ? THEN 0
				WHEN name LIKE ? THEN 1
				ELSE 2
			END,
			length(name)
		LIMIT ?`,
		name, name+"%", "%"+name+"%", name, name+"%", limit)
	if err != nil {
		return nil, cqserrors.IOError("store.search_by_name", "", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// SearchByNamesBatch runs SearchByName for each name, used when the
// caller (e.g. structural queries) needs quick name resolution across
// many candidate callee names at once.
func (s *Store) SearchByNamesBatch(ctx context.Context, names []string, limitEach int) (map[string][]*model.Chunk, error) {
	out := make(map[string][]*model.Chunk, len(names))
	for _, n := range names {
		chunks, err := s.SearchByName(ctx, n, limitEach)
		if err != nil {
			return nil, err
		}
		out[n] = chunks
	}
	return out, nil
}

// FetchByIDs fetches full chunk rows (including embeddings) for a
// candidate ID set, preserving no particular order; callers re-rank.
func (s *Store) FetchByIDs(ctx context.Context, ids []string) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.fetch_by_ids", "store is closed")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, cqserrors.IOError("store.fetch_by_ids", "", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// StreamAll yields every chunk in ascending id order, applying filter
// if non-nil. Used both for the brute-force retrieval fallback (no
// vector index loaded) and for vector-index rebuilds.
func (s *Store) StreamAll(ctx context.Context, filter *Filter) (*ChunkIterator, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, cqserrors.Internal("store.stream_all", "store is closed")
	}

	query := `SELECT ` + chunkColumns + ` FROM chunks`
	var args []any
	var conds []string
	if filter != nil {
		if filter.Language != "" {
			conds = append(conds, "language = ?")
			args = append(args, string(filter.Language))
		}
		if filter.ChunkType != "" {
			conds = append(conds, "chunk_type = ?")
			args = append(args, string(filter.ChunkType))
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	s.mu.RUnlock()
	if err != nil {
		return nil, cqserrors.IOError("store.stream_all", "", err)
	}
	return &ChunkIterator{rows: rows}, nil
}

// ChunkIterator streams chunk rows one at a time without materializing
// the full result set, used by the vector-index rebuild path.
type ChunkIterator struct {
	rows interface {
		Next() bool
		Scan(...any) error
		Err() error
		Close() error
	}
}

func (it *ChunkIterator) Next() (*model.Chunk, bool, error) {
	if !it.rows.Next() {
		return nil, false, it.rows.Err()
	}
	c, err := scanChunkRow(it.rows)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (it *ChunkIterator) Close() error { return it.rows.Close() }

func inClause(values []string) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return strings.Join(placeholders, ","), args
}
