package storage

import (
	"context"
	"encoding/json"

	"github.com/jamie8johnson/cqs-sub000/internal/cqserrors"
)

// NoteSummary is a lightweight projection of a note row, used by
// retrieval's note-boost pass without paying for embedding bytes.
type NoteSummary struct {
	ID        string
	Text      string
	Sentiment float64
	Mentions  []string
}

// ListNotesSummaries returns every note without its embedding, the
// shape retrieval needs to apply sentiment-boost per spec §4.8.
func (s *Store) ListNotesSummaries(ctx context.Context) ([]NoteSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqserrors.Internal("store.list_notes_summaries", "store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, sentiment, mentions FROM notes ORDER BY id`)
	if err != nil {
		return nil, cqserrors.IOError("store.list_notes_summaries", "", err)
	}
	defer rows.Close()

	var out []NoteSummary
	for rows.Next() {
		var n NoteSummary
		var mentionsJSON string
		if err := rows.Scan(&n.ID, &n.Text, &n.Sentiment, &mentionsJSON); err != nil {
			return nil, cqserrors.IOError("store.list_notes_summaries", "", err)
		}
		if mentionsJSON != "" {
			if err := json.Unmarshal([]byte(mentionsJSON), &n.Mentions); err != nil {
				return nil, cqserrors.Wrap(cqserrors.ErrCodeInternal, "store.list_notes_summaries", err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ReplaceNotes overwrites the entire notes table in one transaction,
// mirroring UpsertChunksAndEdges's atomic-replace shape: the notes
// file is the source of truth and is re-synced wholesale on each load.
func (s *Store) ReplaceNotes(ctx context.Context, notes []NoteSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cqserrors.Internal("store.replace_notes", "store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cqserrors.IOError("store.replace_notes", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return cqserrors.IOError("store.replace_notes", "", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO notes (id, text, sentiment, mentions, created_at) VALUES (?, ?, ?, ?, strftime('%s','now'))`)
	if err != nil {
		return cqserrors.IOError("store.replace_notes", "", err)
	}
	defer stmt.Close()

	for _, n := range notes {
		mentionsJSON, err := json.Marshal(n.Mentions)
		if err != nil {
			return cqserrors.Wrap(cqserrors.ErrCodeInternal, "store.replace_notes", err)
		}
		if _, err := stmt.ExecContext(ctx, n.ID, n.Text, n.Sentiment, string(mentionsJSON)); err != nil {
			return cqserrors.IOError("store.replace_notes", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cqserrors.IOError("store.replace_notes", "", err)
	}
	return nil
}
