package storage

import (
	"context"

	"github.com/jamie8johnson/cqs-sub000/internal/cqserrors"
	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// CallEdgeRow pairs a stored call edge with the caller's origin, used
// by callers/callees/impact/gather to resolve names back to chunks.
type CallEdgeRow struct {
	CallerChunkID string
	CalleeName    string
	CallLine      int
}

// GetCallGraph materializes the full forward/reverse call adjacency,
// used by impact/gather's BFS and by drift detection. Forward maps a
// caller chunk ID to the edges it originates; Reverse maps a callee
// name to the chunk IDs that call it.
func (s *Store) GetCallGraph(ctx context.Context) (*model.CallGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.get_call_graph", "store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT caller_chunk_id, callee_name, call_line FROM call_edges`)
	if err != nil {
		return nil, cqserrors.IOError("store.get_call_graph", "", err)
	}
	defer rows.Close()

	g := &model.CallGraph{
		Forward: make(map[string][]model.CallEdge),
		Reverse: make(map[string][]string),
	}
	for rows.Next() {
		var e model.CallEdge
		if err := rows.Scan(&e.CallerChunkID, &e.CalleeName, &e.CallLine); err != nil {
			return nil, cqserrors.IOError("store.get_call_graph", "", err)
		}
		g.Forward[e.CallerChunkID] = append(g.Forward[e.CallerChunkID], e)
		g.Reverse[e.CalleeName] = append(g.Reverse[e.CalleeName], e.CallerChunkID)
	}
	return g, rows.Err()
}

// GetCallersFull resolves the chunks that call a named function,
// joining call_edges back to the defining chunk rows so results carry
// full chunk bodies rather than bare IDs.
func (s *Store) GetCallersFull(ctx context.Context, name string) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.get_callers_full", "store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedChunkColumns("c")+`
		FROM chunks c
		JOIN call_edges e ON e.caller_chunk_id = c.id
		WHERE e.callee_name = ?
		GROUP BY c.id
		ORDER BY c.id`, name)
	if err != nil {
		return nil, cqserrors.IOError("store.get_callers_full", name, err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetCalleesFull resolves the chunks defining every name that
// chunkID's body calls, when those names resolve to something
// indexed (unresolved external calls are simply absent).
func (s *Store) GetCalleesFull(ctx context.Context, chunkID string) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.get_callees_full", "store is closed")
	}

	nameRows, err := s.db.QueryContext(ctx, `SELECT DISTINCT callee_name FROM call_edges WHERE caller_chunk_id = ?`, chunkID)
	if err != nil {
		return nil, cqserrors.IOError("store.get_callees_full", chunkID, err)
	}
	var names []string
	for nameRows.Next() {
		var n string
		if err := nameRows.Scan(&n); err != nil {
			nameRows.Close()
			return nil, cqserrors.IOError("store.get_callees_full", chunkID, err)
		}
		names = append(names, n)
	}
	nameRows.Close()
	if err := nameRows.Err(); err != nil {
		return nil, cqserrors.IOError("store.get_callees_full", chunkID, err)
	}
	if len(names) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(names)
	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE name IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, cqserrors.IOError("store.get_callees_full", chunkID, err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetTypesUsedBy returns the type edges originating from chunkID, the
// raw adjacency used by structural "what types does this touch"
// queries before any name resolution.
func (s *Store) GetTypesUsedBy(ctx context.Context, chunkID string) ([]model.TypeEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.get_types_used_by", "store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT source_chunk_id, target_type_name, kind, line FROM type_edges WHERE source_chunk_id = ?`, chunkID)
	if err != nil {
		return nil, cqserrors.IOError("store.get_types_used_by", chunkID, err)
	}
	defer rows.Close()

	var out []model.TypeEdge
	for rows.Next() {
		var e model.TypeEdge
		var kind string
		if err := rows.Scan(&e.SourceChunkID, &e.TargetTypeName, &kind, &e.Line); err != nil {
			return nil, cqserrors.IOError("store.get_types_used_by", chunkID, err)
		}
		e.Kind = model.EdgeKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetTypeUsers returns the chunks whose bodies reference typeName,
// the reverse direction used by "who uses this type" queries.
func (s *Store) GetTypeUsers(ctx context.Context, typeName string) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.get_type_users", "store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedChunkColumns("c")+`
		FROM chunks c
		JOIN type_edges e ON e.source_chunk_id = c.id
		WHERE e.target_type_name = ?
		GROUP BY c.id
		ORDER BY c.id`, typeName)
	if err != nil {
		return nil, cqserrors.IOError("store.get_type_users", typeName, err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetTypeGraph materializes the full type-edge adjacency, used by
// impact/gather when a query seeds from a type rather than a function.
func (s *Store) GetTypeGraph(ctx context.Context) (*model.TypeGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.get_type_graph", "store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT source_chunk_id, target_type_name, kind, line FROM type_edges`)
	if err != nil {
		return nil, cqserrors.IOError("store.get_type_graph", "", err)
	}
	defer rows.Close()

	g := &model.TypeGraph{
		Forward: make(map[string][]model.TypeEdge),
		Reverse: make(map[string][]string),
	}
	for rows.Next() {
		var e model.TypeEdge
		var kind string
		if err := rows.Scan(&e.SourceChunkID, &e.TargetTypeName, &kind, &e.Line); err != nil {
			return nil, cqserrors.IOError("store.get_type_graph", "", err)
		}
		e.Kind = model.EdgeKind(kind)
		g.Forward[e.SourceChunkID] = append(g.Forward[e.SourceChunkID], e)
		g.Reverse[e.TargetTypeName] = append(g.Reverse[e.TargetTypeName], e.SourceChunkID)
	}
	return g, rows.Err()
}

func prefixedChunkColumns(alias string) string {
	cols := []string{"id", "origin", "name", "chunk_type", "language", "line_start", "line_end",
		"signature", "doc", "content", "content_hash", "parent_id", "window_idx", "embedding", "source_mtime"}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}
