package title_test

import (
	"testing"

	"github.com/lib/pq"
	"github.com/medleyhq/medley/internal/provider"
	"github.com/medleyhq/medley/internal/title"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NormalizeTitle(t *testing.T) {
	tests := []struct {
		summary  string
		input    string
		expected string
	}{
		{"lowercases", "The Matrix", "the matrix"},
		{"collapses whitespace", "  The   Matrix \t Reloaded ", "the matrix reloaded"},
		{"cjk untouched", "流浪地球", "流浪地球"},
		{"empty", "   ", ""},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			assert.Equal(t, test.expected, title.NormalizeTitle(test.input))
		})
	}
}

func Test_IdentityKey_YearHandling(t *testing.T) {
	year := 2020
	withYear := title.Record{TitleNorm: "foo", ReleaseYear: &year}
	withoutYear := title.Record{TitleNorm: "foo"}

	assert.Equal(t, title.IdentityKey{NormalizedTitle: "foo", ReleaseYear: 2020}, withYear.IdentityKey())
	assert.Equal(t, title.IdentityKey{NormalizedTitle: "foo", ReleaseYear: 0}, withoutYear.IdentityKey())
	assert.NotEqual(t, withYear.IdentityKey(), withoutYear.IdentityKey())
}

func Test_PlaySources_ScanStructuredShape(t *testing.T) {
	var sources title.PlaySources
	require.NoError(t, sources.Scan([]byte(`{"m3u8":[{"name":"第1集","url":"https://a.com/1.m3u8"}]}`)))

	require.Contains(t, sources, "m3u8")
	assert.Equal(t, []provider.Episode{{Name: "第1集", URL: "https://a.com/1.m3u8"}}, sources["m3u8"])
}

// Rows written before structured playback maps hold the bare delimited
// string; scanning one parses it under the legacy placeholder label.
func Test_PlaySources_ScanLegacyShape(t *testing.T) {
	var sources title.PlaySources
	require.NoError(t, sources.Scan("第1集$http://a.com/1.m3u8#第2集$http://a.com/2.m3u8"))

	require.Len(t, sources, 1)
	episodes := sources["legacy"]
	require.Len(t, episodes, 2)
	assert.Equal(t, "https://a.com/1.m3u8", episodes[0].URL)
}

func Test_PlaySources_ScanEmptyAndNil(t *testing.T) {
	var fromNil title.PlaySources
	require.NoError(t, fromNil.Scan(nil))
	assert.Empty(t, fromNil)

	var fromEmpty title.PlaySources
	require.NoError(t, fromEmpty.Scan(""))
	assert.Empty(t, fromEmpty)
}

func Test_PlaySources_ValueAlwaysStructured(t *testing.T) {
	var sources title.PlaySources
	require.NoError(t, sources.Scan("第1集$https://a.com/1.m3u8"))

	value, err := sources.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"legacy":[{"name":"第1集","url":"https://a.com/1.m3u8"}]}`, string(value.([]byte)))
}

func Test_Record_AdoptLegacyPlaySources(t *testing.T) {
	record := title.Record{
		ContributingProviders: pq.StringArray{"alpha", "beta"},
		PlaySources: title.PlaySources{
			"legacy": {{Name: "Episode 1", URL: "https://a.com/1"}},
		},
	}

	record.AdoptLegacyPlaySources()
	assert.NotContains(t, record.PlaySources, "legacy")
	require.Contains(t, record.PlaySources, "alpha")
	assert.Equal(t, "https://a.com/1", record.PlaySources["alpha"][0].URL)
}

// Without provenance there is nothing to re-attribute to; the placeholder
// label is kept rather than dropping the episodes.
func Test_Record_AdoptLegacyPlaySources_NoProviders(t *testing.T) {
	record := title.Record{
		PlaySources: title.PlaySources{"legacy": {{Name: "Episode 1", URL: "https://a.com/1"}}},
	}

	record.AdoptLegacyPlaySources()
	assert.Contains(t, record.PlaySources, "legacy")
}

func Test_Record_HasPlayableURL(t *testing.T) {
	empty := title.Record{PlaySources: title.PlaySources{}}
	assert.False(t, empty.HasPlayableURL())

	record := title.Record{PlaySources: title.PlaySources{"m3u8": {{Name: "a", URL: "https://a.com/1"}}}}
	assert.True(t, record.HasPlayableURL())
}
