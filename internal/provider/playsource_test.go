package provider_test

import (
	"strings"
	"testing"

	"github.com/medleyhq/medley/internal/provider"
	"github.com/stretchr/testify/assert"
)

func Test_ParseEpisodes_NamedSegments(t *testing.T) {
	episodes := provider.ParseEpisodes("第1集$http://a.com/1.m3u8#第2集$http://a.com/2.m3u8")

	assert.Equal(t, []provider.Episode{
		{Name: "第1集", URL: "https://a.com/1.m3u8"},
		{Name: "第2集", URL: "https://a.com/2.m3u8"},
	}, episodes)
}

func Test_ParseEpisodes_DefaultNaming(t *testing.T) {
	episodes := provider.ParseEpisodes("http://a.com/1.m3u8#http://a.com/2.m3u8")

	assert.Equal(t, []provider.Episode{
		{Name: "Episode 1", URL: "https://a.com/1.m3u8"},
		{Name: "Episode 2", URL: "https://a.com/2.m3u8"},
	}, episodes)
}

func Test_ParseEpisodes_SplitsOnFirstDollarOnly(t *testing.T) {
	episodes := provider.ParseEpisodes("EP$https://a.com/play$extra")

	assert.Equal(t, []provider.Episode{{Name: "EP", URL: "https://a.com/play$extra"}}, episodes)
}

func Test_ParseEpisodes_MalformedSegments(t *testing.T) {
	tests := []struct {
		summary  string
		raw      string
		expected []provider.Episode
	}{
		{"empty input", "", []provider.Episode{}},
		{"empty url", "第1集$", []provider.Episode{}},
		{"unrecognized scheme", "第1集$ftp://a.com/1", []provider.Episode{}},
		{"bare text segment", "not a url", []provider.Episode{}},
		{
			"valid segment amongst junk",
			"#junk$#第3集$https://a.com/3.m3u8#",
			[]provider.Episode{{Name: "第3集", URL: "https://a.com/3.m3u8"}},
		},
		{
			"empty name synthesizes positional default",
			"$https://a.com/1.m3u8",
			[]provider.Episode{{Name: "Episode 1", URL: "https://a.com/1.m3u8"}},
		},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			assert.Equal(t, test.expected, provider.ParseEpisodes(test.raw))
		})
	}
}

// Every URL in the output must use the secure scheme, no matter the input.
func Test_ParseEpisodes_SecureSchemeInvariant(t *testing.T) {
	inputs := []string{
		"a$http://x.com/1#b$https://x.com/2#c$ftp://x.com/3",
		"http://x.com/1",
		"a$http://x.com/1$http://nested",
		"junk#$#a$",
	}

	for _, input := range inputs {
		for _, episode := range provider.ParseEpisodes(input) {
			assert.Truef(t, strings.HasPrefix(episode.URL, "https://"),
				"episode %q from input %q has insecure URL %q", episode.Name, input, episode.URL)
		}
	}
}

func Test_ParsePlaySources_OmitsProvidersWithNoValidEpisodes(t *testing.T) {
	sources := provider.ParsePlaySources(map[string]string{
		"alpha": "第1集$http://a.com/1.m3u8",
		"beta":  "第1集$",
		"":      "第1集$https://a.com/1.m3u8",
	})

	assert.Len(t, sources, 1)
	assert.Contains(t, sources, "alpha")
	assert.NotContains(t, sources, "beta")
}

func Test_UpgradeURL(t *testing.T) {
	assert.Equal(t, "https://a.com/x", provider.UpgradeURL("http://a.com/x"))
	assert.Equal(t, "https://a.com/x", provider.UpgradeURL("https://a.com/x"))
	assert.Equal(t, "ftp://a.com/x", provider.UpgradeURL("ftp://a.com/x"))
}
