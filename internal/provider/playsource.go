package provider

import (
	"fmt"
	"strings"
)

const (
	insecureScheme = "http://"
	secureScheme   = "https://"

	segmentSeparator = "#"
	nameSeparator    = "$"
)

// Episode is a single named playback entry within a play source.
type Episode struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// UpgradeURL rewrites an insecure URL to use the secure scheme by literal
// prefix replacement. The upgrade is unconditional: stations that do not
// actually serve HTTPS will fail at playback time, which is an accepted
// risk of the upstream contract.
func UpgradeURL(url string) string {
	if strings.HasPrefix(url, insecureScheme) {
		return secureScheme + url[len(insecureScheme):]
	}

	return url
}

// ParseEpisodes parses a single stations raw delimited playback string of
// the grammar `name$url#name$url#...` into a structured episode list.
//
// Segments missing the `$` separator (or with an empty name portion) are
// given a synthesized `Episode {n}` name based on their 1-based position.
// URLs are upgraded to the secure scheme, and any segment whose URL is
// empty or not recognisable after the upgrade is dropped.
//
// This function is pure and never fails; malformed input degrades to an
// empty episode list.
func ParseEpisodes(raw string) []Episode {
	segments := strings.Split(raw, segmentSeparator)
	episodes := make([]Episode, 0, len(segments))

	index := 0
	for _, segment := range segments {
		if segment == "" {
			continue
		}

		index++
		name, url, found := strings.Cut(segment, nameSeparator)
		if !found {
			url = name
			name = ""
		}

		if name == "" {
			name = fmt.Sprintf("Episode %d", index)
		}

		url = UpgradeURL(strings.TrimSpace(url))
		if !strings.HasPrefix(url, secureScheme) {
			continue
		}

		episodes = append(episodes, Episode{Name: name, URL: url})
	}

	return episodes
}

// ParsePlaySources normalizes a mapping of station play-source labels to raw
// delimited playback strings. Labels whose raw string yields zero valid
// episodes are omitted entirely from the output; an empty map (never nil
// episode lists) is the worst possible outcome.
func ParsePlaySources(raw map[string]string) map[string][]Episode {
	sources := make(map[string][]Episode, len(raw))
	for label, rawEpisodes := range raw {
		if label == "" {
			continue
		}

		if episodes := ParseEpisodes(rawEpisodes); len(episodes) > 0 {
			sources[label] = episodes
		}
	}

	return sources
}
