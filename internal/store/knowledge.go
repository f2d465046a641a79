// File path: internal/store/knowledge.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/cascadia-pm/backoffice/internal/kb"
)

const chunkColumns = `id, content, source_type, source_title, source_url, source_section`

type chunkRow struct {
	ID            string `db:"id"`
	Content       string `db:"content"`
	SourceType    string `db:"source_type"`
	SourceTitle   string `db:"source_title"`
	SourceURL     string `db:"source_url"`
	SourceSection string `db:"source_section"`
}

func (r chunkRow) toChunk() kb.Chunk {
	return kb.Chunk{
		ID:            r.ID,
		Content:       r.Content,
		SourceType:    kb.ParseSourceType(r.SourceType),
		SourceTitle:   r.SourceTitle,
		SourceURL:     r.SourceURL,
		SourceSection: r.SourceSection,
	}
}

func rowsToChunks(rows []chunkRow) []kb.Chunk {
	chunks := make([]kb.Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, row.toChunk())
	}
	return chunks
}

// UpsertChunks writes chunk text rows keyed on id. The FTS index follows via
// triggers.
func (s *Store) UpsertChunks(ctx context.Context, chunks []kb.Chunk) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialised")
	}
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin chunk upsert: %w", err)
	}
	const stmt = `INSERT INTO chunks (id, content, source_type, source_title, source_url, source_section)
                VALUES (?, ?, ?, ?, ?, ?)
                ON CONFLICT(id) DO UPDATE SET
                        content = excluded.content,
                        source_type = excluded.source_type,
                        source_title = excluded.source_title,
                        source_url = excluded.source_url,
                        source_section = excluded.source_section,
                        updated_at = CURRENT_TIMESTAMP`
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.ID) == "" {
			tx.Rollback()
			return errors.New("chunk id required")
		}
		if _, err := tx.ExecContext(ctx, stmt,
			chunk.ID, chunk.Content, string(chunk.SourceType),
			chunk.SourceTitle, chunk.SourceURL, chunk.SourceSection,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert chunk %s: %w", chunk.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk upsert: %w", err)
	}
	return nil
}

// FulltextSearch runs a ranked keyword query over the FTS index. Query terms
// are OR-ed so partial matches still rank.
func (s *Store) FulltextSearch(ctx context.Context, query string, limit int) ([]kb.Chunk, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialised")
	}
	match := fulltextMatchExpr(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	rows := []chunkRow{}
	stmt := fulltextQuery()
	if err := s.db.SelectContext(ctx, &rows, stmt, match, limit); err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	return rowsToChunks(rows), nil
}

// PhraseSearch matches an exact contiguous phrase via an FTS5 phrase query.
func (s *Store) PhraseSearch(ctx context.Context, phrase string, limit int) ([]kb.Chunk, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialised")
	}
	trimmed := strings.TrimSpace(phrase)
	if trimmed == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	match := `"` + strings.ReplaceAll(trimmed, `"`, `""`) + `"`
	rows := []chunkRow{}
	stmt := fulltextQuery()
	if err := s.db.SelectContext(ctx, &rows, stmt, match, limit); err != nil {
		return nil, fmt.Errorf("phrase search: %w", err)
	}
	return rowsToChunks(rows), nil
}

// SubstringSearch performs a literal containment match. It backs section
// number lookups and is the fallback when a phrase query finds nothing.
func (s *Store) SubstringSearch(ctx context.Context, text string, limit int) ([]kb.Chunk, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialised")
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(trimmed) + "%"
	rows := []chunkRow{}
	stmt := fmt.Sprintf(`SELECT %s FROM chunks
                WHERE content LIKE ? ESCAPE '\' OR source_section LIKE ? ESCAPE '\'
                ORDER BY source_section, id LIMIT ?`, chunkColumns)
	if err := s.db.SelectContext(ctx, &rows, stmt, pattern, pattern, limit); err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	return rowsToChunks(rows), nil
}

// ChunkByID fetches a single chunk, returning sql.ErrNoRows when absent.
func (s *Store) ChunkByID(ctx context.Context, id string) (kb.Chunk, error) {
	if s == nil || s.db == nil {
		return kb.Chunk{}, errors.New("store not initialised")
	}
	var row chunkRow
	stmt := fmt.Sprintf(`SELECT %s FROM chunks WHERE id = ?`, chunkColumns)
	if err := s.db.GetContext(ctx, &row, stmt, id); err != nil {
		return kb.Chunk{}, err
	}
	return row.toChunk(), nil
}

// ChunksByIDs fetches chunks in the order requested, skipping unknown ids.
func (s *Store) ChunksByIDs(ctx context.Context, ids []string) ([]kb.Chunk, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialised")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	stmt, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM chunks WHERE id IN (?)`, chunkColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build chunk lookup: %w", err)
	}
	rows := []chunkRow{}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(stmt), args...); err != nil {
		return nil, fmt.Errorf("chunks by ids: %w", err)
	}
	byID := make(map[string]kb.Chunk, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.toChunk()
	}
	chunks := make([]kb.Chunk, 0, len(rows))
	for _, id := range ids {
		if chunk, ok := byID[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// ChunkCount reports how many chunks are indexed.
func (s *Store) ChunkCount(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store not initialised")
	}
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chunks`); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// fulltextQuery joins the FTS index back to the base table so results arrive
// in bm25 order.
func fulltextQuery() string {
	cols := make([]string, 0, 6)
	for _, col := range strings.Split(chunkColumns, ", ") {
		cols = append(cols, "c."+col)
	}
	return fmt.Sprintf(`SELECT %s FROM chunks_fts
                JOIN chunks c ON c.rowid = chunks_fts.rowid
                WHERE chunks_fts MATCH ? ORDER BY chunks_fts.rank LIMIT ?`, strings.Join(cols, ", "))
}

// fulltextMatchExpr quotes each term so user punctuation cannot break FTS5
// query syntax, then ORs the terms together.
func fulltextMatchExpr(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		cleaned := strings.ReplaceAll(field, `"`, "")
		if cleaned == "" {
			continue
		}
		terms = append(terms, `"`+cleaned+`"`)
	}
	return strings.Join(terms, " OR ")
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
