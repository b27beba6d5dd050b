package title

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/medleyhq/medley/internal/database"
)

var ErrTitleNotFound = errors.New("title does not exist")

const allColumns = `
	id, title, title_norm, release_year, area, actors, director, writer,
	synopsis, cover_url, category, play_sources, contributing_providers,
	provider_priority, quality_score, is_valid, created_at, updated_at
`

type Store struct{}

func NewStore() *Store { return &Store{} }

// Save persists the given record, inserting it if the ID is unseen and
// otherwise replacing every mutable column. The updated_at timestamp is
// bumped on every write; created_at survives conflicts.
func (store *Store) Save(db database.Queryable, record *Record) error {
	_, err := db.NamedExec(`
		INSERT INTO titles(id, title, title_norm, release_year, area, actors, director, writer,
			synopsis, cover_url, category, play_sources, contributing_providers,
			provider_priority, quality_score, is_valid, created_at, updated_at)
		VALUES (:id, :title, :title_norm, :release_year, :area, :actors, :director, :writer,
			:synopsis, :cover_url, :category, :play_sources, :contributing_providers,
			:provider_priority, :quality_score, :is_valid, current_timestamp, current_timestamp)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			title_norm = EXCLUDED.title_norm,
			release_year = EXCLUDED.release_year,
			area = EXCLUDED.area,
			actors = EXCLUDED.actors,
			director = EXCLUDED.director,
			writer = EXCLUDED.writer,
			synopsis = EXCLUDED.synopsis,
			cover_url = EXCLUDED.cover_url,
			category = EXCLUDED.category,
			play_sources = EXCLUDED.play_sources,
			contributing_providers = EXCLUDED.contributing_providers,
			provider_priority = EXCLUDED.provider_priority,
			quality_score = EXCLUDED.quality_score,
			is_valid = EXCLUDED.is_valid,
			updated_at = current_timestamp
	`, record)
	if err != nil {
		return fmt.Errorf("failed to save title %s: %w", record.ID, err)
	}

	return nil
}

func (store *Store) Get(db database.Queryable, id uuid.UUID) (*Record, error) {
	var record Record
	err := db.Get(&record, `SELECT `+allColumns+` FROM titles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTitleNotFound
	} else if err != nil {
		return nil, err
	}

	record.AdoptLegacyPlaySources()
	return &record, nil
}

// GetByIdentity finds the record matching the exact identity key, or
// ErrTitleNotFound. If multiple rows share the key (pending consolidation),
// the freshest one is returned so that ingestion refreshes the record most
// likely to survive a merge.
func (store *Store) GetByIdentity(db database.Queryable, titleNorm string, releaseYear *int) (*Record, error) {
	query := squirrel.
		Select(allColumns).
		From("titles").
		Where(squirrel.Eq{"title_norm": titleNorm}).
		OrderBy("updated_at DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)
	if releaseYear == nil {
		query = query.Where(squirrel.Eq{"release_year": nil})
	} else {
		query = query.Where(squirrel.Eq{"release_year": *releaseYear})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct identity query: %w", err)
	}

	var record Record
	if err := db.Get(&record, sqlStr, args...); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTitleNotFound
	} else if err != nil {
		return nil, err
	}

	record.AdoptLegacyPlaySources()
	return &record, nil
}

// GetAll returns every record in the store, ordered by ascending update time
// so that callers replaying play-source contributions see the freshest last.
func (store *Store) GetAll(db database.Queryable) ([]*Record, error) {
	var records []*Record
	if err := db.Select(&records, `SELECT `+allColumns+` FROM titles ORDER BY updated_at ASC`); err != nil {
		return nil, err
	}

	adoptLegacy(records)
	return records, nil
}

// GetAllValid returns a page of valid records ordered by ID, for bounded
// batch consumers such as the search index rebuild.
func (store *Store) GetAllValid(db database.Queryable, offset int, limit int) ([]*Record, error) {
	var records []*Record
	err := db.Select(&records, `
		SELECT `+allColumns+` FROM titles WHERE is_valid ORDER BY id LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}

	adoptLegacy(records)
	return records, nil
}

func (store *Store) GetMany(db database.Queryable, ids []uuid.UUID) ([]*Record, error) {
	if len(ids) == 0 {
		return []*Record{}, nil
	}

	sqlStr, args, err := squirrel.
		Select(allColumns).
		From("titles").
		Where(squirrel.Eq{"id": ids}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct batch query: %w", err)
	}

	var records []*Record
	if err := db.Select(&records, sqlStr, args...); err != nil {
		return nil, err
	}

	adoptLegacy(records)
	return records, nil
}

// SearchByTitle performs a case-insensitive substring scan over record
// titles. This is the query-time fallback when the search index yields no
// hits; the primary store remains authoritative.
func (store *Store) SearchByTitle(db database.Queryable, fragment string, limit int) ([]*Record, error) {
	var records []*Record
	err := db.Select(&records, `
		SELECT `+allColumns+` FROM titles
		WHERE is_valid AND title ILIKE '%' || $1 || '%'
		ORDER BY quality_score DESC
		LIMIT $2
	`, fragment, limit)
	if err != nil {
		return nil, err
	}

	adoptLegacy(records)
	return records, nil
}

// DeleteMany removes the given records. Intended to run inside the same
// transaction as the merge survivor's update.
func (store *Store) DeleteMany(db database.Queryable, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	return database.InExec(db, `DELETE FROM titles WHERE id IN (?)`, ids)
}

type (
	// Distribution is one bucket of a grouped count (per provider, category
	// or score band).
	Distribution struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}

	// Stats is the aggregate snapshot the health monitor derives its
	// classification from.
	Stats struct {
		TotalCount   int
		ValidCount   int
		AverageScore float64
		NewestUpdate *time.Time
	}
)

func (store *Store) GetStats(db database.Queryable) (*Stats, error) {
	var row struct {
		TotalCount   int          `db:"total_count"`
		ValidCount   int          `db:"valid_count"`
		AverageScore float64      `db:"average_score"`
		NewestUpdate sql.NullTime `db:"newest_update"`
	}
	err := db.Get(&row, `
		SELECT COUNT(*) AS total_count,
			COUNT(*) FILTER (WHERE is_valid) AS valid_count,
			COALESCE(AVG(quality_score), 0)::float8 AS average_score,
			MAX(updated_at) AS newest_update
		FROM titles
	`)
	if err != nil {
		return nil, err
	}

	stats := Stats{
		TotalCount:   row.TotalCount,
		ValidCount:   row.ValidCount,
		AverageScore: row.AverageScore,
	}
	if row.NewestUpdate.Valid {
		stats.NewestUpdate = &row.NewestUpdate.Time
	}

	return &stats, nil
}

// GetProviderDistribution counts records per contributing provider. A record
// attributed to multiple providers counts once towards each.
func (store *Store) GetProviderDistribution(db database.Queryable) ([]Distribution, error) {
	var dist []Distribution
	err := db.Select(&dist, `
		SELECT p AS key, COUNT(*) AS count
		FROM titles, unnest(contributing_providers) AS p
		GROUP BY p ORDER BY count DESC
	`)

	return dist, err
}

func (store *Store) GetCategoryDistribution(db database.Queryable) ([]Distribution, error) {
	var dist []Distribution
	err := db.Select(&dist, `
		SELECT category AS key, COUNT(*) AS count
		FROM titles WHERE category != ''
		GROUP BY category ORDER BY count DESC
	`)

	return dist, err
}

// GetScoreDistribution buckets records by quality score in bands of 20.
func (store *Store) GetScoreDistribution(db database.Queryable) ([]Distribution, error) {
	var dist []Distribution
	err := db.Select(&dist, `
		SELECT CONCAT(LEAST(quality_score / 20 * 20, 100), '+') AS key, COUNT(*) AS count
		FROM titles
		GROUP BY LEAST(quality_score / 20 * 20, 100)
		ORDER BY LEAST(quality_score / 20 * 20, 100)
	`)

	return dist, err
}

func adoptLegacy(records []*Record) {
	for _, record := range records {
		record.AdoptLegacyPlaySources()
	}
}
