package storage

import "fmt"

// CurrentSchemaVersion is bumped whenever the schema changes in a way
// that requires migration or a full rebuild, per SPEC_FULL.md §4.4.
const CurrentSchemaVersion = 1

var schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS metadata (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	schema_version INTEGER NOT NULL,
	model_name TEXT NOT NULL,
	model_dim INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	origin TEXT NOT NULL,
	name TEXT NOT NULL,
	chunk_type TEXT NOT NULL,
	language TEXT NOT NULL,
	line_start INTEGER NOT NULL,
	line_end INTEGER NOT NULL,
	signature TEXT NOT NULL,
	doc TEXT NOT NULL,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	parent_id TEXT,
	window_idx INTEGER,
	embedding BLOB,
	source_mtime INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_origin ON chunks(origin);
CREATE INDEX IF NOT EXISTS idx_chunks_name ON chunks(name);
CREATE INDEX IF NOT EXISTS idx_chunks_content_hash ON chunks(content_hash);
CREATE INDEX IF NOT EXISTS idx_chunks_parent_id ON chunks(parent_id);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_id UNINDEXED,
	content,
	tokenize='unicode61'
);

CREATE TABLE IF NOT EXISTS call_edges (
	caller_chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	callee_name TEXT NOT NULL,
	call_line INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_call_edges_caller ON call_edges(caller_chunk_id);
CREATE INDEX IF NOT EXISTS idx_call_edges_callee ON call_edges(callee_name);

CREATE TABLE IF NOT EXISTS type_edges (
	source_chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	target_type_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	line INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_type_edges_source ON type_edges(source_chunk_id);
CREATE INDEX IF NOT EXISTS idx_type_edges_target ON type_edges(target_type_name);

CREATE TABLE IF NOT EXISTS notes (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	sentiment REAL NOT NULL,
	mentions TEXT NOT NULL, -- JSON array
	created_at INTEGER NOT NULL
);

INSERT OR IGNORE INTO schema_version (version) VALUES (` + fmt.Sprintf("%d", CurrentSchemaVersion) + `);
`
