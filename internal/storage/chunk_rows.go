package storage

import (
	"database/sql"
	"time"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// chunkColumns is the column list shared by every SELECT that
// materializes full model.Chunk rows, kept in one place so
// scanChunkRow's Scan order always matches the query.
const chunkColumns = `id, origin, name, chunk_type, language, line_start, line_end, signature, doc, content, content_hash, parent_id, window_idx, embedding, source_mtime`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunkRow(r rowScanner) (*model.Chunk, error) {
	var c model.Chunk
	var chunkType, language string
	var parentID sql.NullString
	var windowIdx sql.NullInt64
	var embBytes []byte
	var sourceMtimeUnix int64

	if err := r.Scan(&c.ID, &c.Origin, &c.Name, &chunkType, &language, &c.LineStart, &c.LineEnd,
		&c.Signature, &c.Doc, &c.Content, &c.ContentHash, &parentID, &windowIdx, &embBytes, &sourceMtimeUnix); err != nil {
		return nil, err
	}

	c.ChunkType = model.ChunkType(chunkType)
	c.Language = model.Language(language)
	if parentID.Valid {
		c.ParentID = parentID.String
	}
	if windowIdx.Valid {
		v := int(windowIdx.Int64)
		c.WindowIdx = &v
	}
	if len(embBytes) > 0 {
		c.Embedding = bytesToEmbedding(embBytes)
	}
	c.SourceMtime = time.Unix(sourceMtimeUnix, 0)

	return &c, nil
}

func scanChunks(rows *sql.Rows) ([]*model.Chunk, error) {
	var out []*model.Chunk
	for rows.Next() {
		c, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
