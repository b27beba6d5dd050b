package title

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/medleyhq/medley/internal/provider"
)

// legacyLabel is the play-source label assigned to playback data found in the
// old raw-string column shape. Rows written before structured playback maps
// were introduced store the bare delimited string; when such a row is read it
// is parsed and filed under this label, then re-attributed to the record's
// first contributing provider where one is known.
const legacyLabel = "legacy"

type (
	// PlaySources maps a provider label to that provider's episode list. The
	// underlying column holds two shapes: a JSON object (current) or a raw
	// delimited playback string (legacy). The shape is sniffed at scan time
	// so that consumers only ever see the structured form.
	PlaySources map[string][]provider.Episode

	// Record is a single canonical title row. One record exists per distinct
	// (normalized title, release year) identity the system believes is
	// unique; duplicate records sharing an identity are consolidated by the
	// aggregation pass.
	Record struct {
		ID                    uuid.UUID      `db:"id" json:"id"`
		Title                 string         `db:"title" json:"title"`
		TitleNorm             string         `db:"title_norm" json:"-"`
		ReleaseYear           *int           `db:"release_year" json:"release_year"`
		Area                  string         `db:"area" json:"area"`
		Actors                string         `db:"actors" json:"actors"`
		Director              string         `db:"director" json:"director"`
		Writer                string         `db:"writer" json:"writer"`
		Synopsis              string         `db:"synopsis" json:"synopsis"`
		CoverURL              string         `db:"cover_url" json:"cover_url"`
		Category              string         `db:"category" json:"category"`
		PlaySources           PlaySources    `db:"play_sources" json:"play_sources"`
		ContributingProviders pq.StringArray `db:"contributing_providers" json:"contributing_providers"`
		ProviderPriority      int            `db:"provider_priority" json:"provider_priority"`
		QualityScore          int            `db:"quality_score" json:"quality_score"`
		IsValid               bool           `db:"is_valid" json:"is_valid"`
		CreatedAt             time.Time      `db:"created_at" json:"created_at"`
		UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
	}

	// IdentityKey is the exact-match duplicate detection key. Titles are
	// compared by their normalized form plus release year; no fuzzy matching
	// is performed, as near-miss grouping risks merging genuinely distinct
	// titles (remakes, same-name films from different years).
	IdentityKey struct {
		NormalizedTitle string
		ReleaseYear     int
	}
)

// NormalizeTitle produces the canonical comparison form of a title: lowercased
// with all runs of whitespace collapsed to a single space.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// IdentityKey returns this records duplicate-detection key. A missing release
// year participates in identity as zero, so two year-less records with the
// same normalized title are considered duplicates of each other (but never of
// a record that does carry a year).
func (record *Record) IdentityKey() IdentityKey {
	key := IdentityKey{NormalizedTitle: record.TitleNorm}
	if record.ReleaseYear != nil {
		key.ReleaseYear = *record.ReleaseYear
	}

	return key
}

func (key IdentityKey) String() string {
	return fmt.Sprintf("%s (%d)", key.NormalizedTitle, key.ReleaseYear)
}

// HasPlayableURL reports whether any play source carries at least one episode.
// Episode URLs are validated at parse time, so presence implies playability.
func (record *Record) HasPlayableURL() bool {
	for _, episodes := range record.PlaySources {
		if len(episodes) > 0 {
			return true
		}
	}

	return false
}

// AdoptLegacyPlaySources re-attributes playback data scanned from the legacy
// column shape to the record's first contributing provider. Called on every
// store read path so downstream consumers never observe the placeholder label.
func (record *Record) AdoptLegacyPlaySources() {
	episodes, ok := record.PlaySources[legacyLabel]
	if !ok {
		return
	}

	delete(record.PlaySources, legacyLabel)
	if len(record.ContributingProviders) == 0 {
		record.PlaySources[legacyLabel] = episodes
		return
	}

	label := record.ContributingProviders[0]
	if _, exists := record.PlaySources[label]; !exists {
		record.PlaySources[label] = episodes
	}
}

// Value implements driver.Valuer; play sources are always persisted in the
// structured JSON shape.
func (sources PlaySources) Value() (driver.Value, error) {
	if sources == nil {
		sources = PlaySources{}
	}

	return json.Marshal(sources)
}

// Scan implements sql.Scanner, accepting both column shapes. A value whose
// first non-space byte is '{' is decoded as the structured JSON map; anything
// else is treated as a legacy raw delimited playback string and parsed under
// the legacy label.
func (sources *PlaySources) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*sources = PlaySources{}
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("cannot scan play sources from %T", src)
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		*sources = PlaySources{}
		return nil
	}

	if trimmed[0] == '{' {
		decoded := PlaySources{}
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return fmt.Errorf("cannot scan play sources: %w", err)
		}

		*sources = decoded
		return nil
	}

	*sources = PlaySources(provider.ParsePlaySources(map[string]string{legacyLabel: trimmed}))
	return nil
}
