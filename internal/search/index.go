package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/medleyhq/medley/internal/title"
	_ "modernc.org/sqlite"
)

const indexSchema = `
	CREATE VIRTUAL TABLE IF NOT EXISTS titles_fts USING fts5(
		id UNINDEXED,
		title,
		actors,
		director,
		synopsis
	);
`

type (
	// Entry is the narrow projection of a canonical record held in the
	// search store. The index is a cache: on any disagreement the canonical
	// store wins and a rebuild reconciles the index.
	Entry struct {
		ID       uuid.UUID
		Title    string
		Actors   string
		Director string
		Synopsis string
	}

	// Index is the embedded full-text search store. It supports bulk clear,
	// bulk insert and ranked text queries; all enrichment happens by a
	// second lookup into the canonical store using the returned ids.
	Index struct {
		db *sql.DB
	}
)

func EntryFromRecord(record *title.Record) Entry {
	return Entry{
		ID:       record.ID,
		Title:    record.Title,
		Actors:   record.Actors,
		Director: record.Director,
		Synopsis: record.Synopsis,
	}
}

// OpenIndex opens (creating if needed) the search index database at the
// given path. An in-memory index can be requested with ':memory:'.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open search index at %s: %w", path, err)
	}

	// The FTS virtual table implementation does not tolerate concurrent
	// writers over separate connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise search index schema: %w", err)
	}

	return &Index{db: db}, nil
}

func (index *Index) Close() error { return index.db.Close() }

func (index *Index) Clear(ctx context.Context) error {
	if _, err := index.db.ExecContext(ctx, `DELETE FROM titles_fts`); err != nil {
		return fmt.Errorf("failed to clear search index: %w", err)
	}

	return nil
}

// InsertBatch writes the given entries in one transaction.
func (index *Index) InsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := index.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO titles_fts(id, title, actors, director, synopsis) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx, entry.ID.String(), entry.Title, entry.Actors, entry.Director, entry.Synopsis); err != nil {
			return fmt.Errorf("failed to index entry %s: %w", entry.ID, err)
		}
	}

	return tx.Commit()
}

// Upsert refreshes a single entry, replacing any existing rows for the same
// record id.
func (index *Index) Upsert(ctx context.Context, entry Entry) error {
	tx, err := index.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM titles_fts WHERE id = ?`, entry.ID.String()); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO titles_fts(id, title, actors, director, synopsis) VALUES (?, ?, ?, ?, ?)
	`, entry.ID.String(), entry.Title, entry.Actors, entry.Director, entry.Synopsis)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Query runs a ranked full-text match over the index and returns the ids of
// the matching records, best match first.
func (index *Index) Query(ctx context.Context, text string, limit int) ([]uuid.UUID, error) {
	rows, err := index.db.QueryContext(ctx, `
		SELECT id FROM titles_fts WHERE titles_fts MATCH ? ORDER BY rank LIMIT ?
	`, quoteMatchQuery(text), limit)
	if err != nil {
		return nil, fmt.Errorf("search index query failed: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			// A malformed id means a corrupt index row; skip it and let
			// the next rebuild reconcile.
			continue
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// quoteMatchQuery wraps the user-provided text as a quoted FTS string so that
// match-syntax metacharacters cannot alter the query.
func quoteMatchQuery(text string) string {
	return `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
}
