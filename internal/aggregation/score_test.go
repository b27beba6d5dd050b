package aggregation_test

import (
	"strings"
	"testing"

	"github.com/medleyhq/medley/internal/aggregation"
	"github.com/medleyhq/medley/internal/title"
	"github.com/stretchr/testify/assert"
)

func playableSources() title.PlaySources {
	return title.PlaySources{"m3u8": {{Name: "Episode 1", URL: "https://a.com/1.m3u8"}}}
}

func Test_Score_EmptyRecord(t *testing.T) {
	assert.Equal(t, 0, aggregation.Score(&title.Record{}))
}

func Test_Score_IndividualSignals(t *testing.T) {
	tests := []struct {
		summary  string
		record   title.Record
		expected int
	}{
		{"cover", title.Record{CoverURL: "https://img.example.com/cover.jpg"}, 20},
		{"short cover rejected", title.Record{CoverURL: "https://x"}, 0},
		{"non-url cover rejected", title.Record{CoverURL: "a perfectly long non-url value"}, 0},
		{"actors", title.Record{Actors: "A,B,C"}, 15},
		{"director", title.Record{Director: "D"}, 10},
		{"synopsis at floor", title.Record{Synopsis: strings.Repeat("x", 20)}, 25},
		{"synopsis below floor", title.Record{Synopsis: "too short"}, 0},
		{"long synopsis earns capped bonus", title.Record{Synopsis: strings.Repeat("x", 2000)}, 35},
		{"playable url", title.Record{PlaySources: playableSources()}, 30},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			assert.Equal(t, test.expected, aggregation.Score(&test.record))
		})
	}
}

func Test_Score_FullRecordHitsMaximum(t *testing.T) {
	record := title.Record{
		CoverURL:    "https://img.example.com/cover.jpg",
		Actors:      "A,B",
		Director:    "D",
		Synopsis:    strings.Repeat("x", 2000),
		PlaySources: playableSources(),
	}

	assert.Equal(t, 110, aggregation.Score(&record))
}

// Adding a previously-missing field never decreases the score.
func Test_Score_Monotonicity(t *testing.T) {
	record := title.Record{}
	previous := aggregation.Score(&record)

	additions := []func(*title.Record){
		func(r *title.Record) { r.Actors = "A" },
		func(r *title.Record) { r.Director = "D" },
		func(r *title.Record) { r.CoverURL = "https://img.example.com/c.jpg" },
		func(r *title.Record) { r.Synopsis = strings.Repeat("s", 200) },
		func(r *title.Record) { r.PlaySources = playableSources() },
	}

	for _, add := range additions {
		add(&record)
		current := aggregation.Score(&record)
		assert.GreaterOrEqual(t, current, previous)
		previous = current
	}
}

// CJK synopses are measured in runes, not bytes.
func Test_Score_SynopsisLengthCountsRunes(t *testing.T) {
	record := title.Record{Synopsis: strings.Repeat("剧", 20)}
	assert.Equal(t, 25, aggregation.Score(&record))
}
