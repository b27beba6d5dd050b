package provider

import (
	"strconv"
	"strings"
)

// sourceGroupSeparator separates the per-label chunks inside both the
// `vod_play_from` and `vod_play_url` fields of a station record.
const sourceGroupSeparator = "$$$"

// Number is a station-reported scalar that may arrive as a JSON number, a
// quoted numeric string, an empty string or null. Decoding never fails;
// malformed values surface as parse errors from the accessors instead.
type Number string

func (number *Number) UnmarshalJSON(data []byte) error {
	value := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if value == "null" {
		value = ""
	}

	*number = Number(value)
	return nil
}

func (number Number) String() string { return string(number) }

func (number Number) Int64() (int64, error) {
	return strconv.ParseInt(string(number), 10, 64)
}

type (
	// ListResponse is the envelope returned by a stations videolist
	// endpoint. Stations disagree on optional fields, so everything
	// outside of the list itself is advisory.
	ListResponse struct {
		Code      int        `json:"code"`
		Message   string     `json:"msg"`
		Page      Number     `json:"page"`
		PageCount Number     `json:"pagecount"`
		Total     Number     `json:"total"`
		List      []RawTitle `json:"list"`
	}

	// RawTitle is a single upstream title record, exactly as reported by a
	// resource station. Every field is optional in practice: stations
	// routinely omit, rename or misformat fields, so all accessors on this
	// type degrade rather than fail.
	RawTitle struct {
		ID         Number `json:"vod_id"`
		Name       string `json:"vod_name"`
		Year       Number `json:"vod_year"`
		Area       string `json:"vod_area"`
		Actors     string `json:"vod_actor"`
		Director   string `json:"vod_director"`
		Writer     string `json:"vod_writer"`
		Synopsis   string `json:"vod_content"`
		CoverURL   string `json:"vod_pic"`
		CategoryID Number `json:"type_id"`

		// PlayFrom lists the play-source labels, PlayURL the matching raw
		// delimited playback strings; both are `$$$`-separated and are
		// expected (but not guaranteed) to have the same arity.
		PlayFrom string `json:"vod_play_from"`
		PlayURL  string `json:"vod_play_url"`
	}
)

// ReleaseYear parses the stations year field, returning nil when absent or
// unparseable rather than propagating the malformation.
func (raw *RawTitle) ReleaseYear() *int {
	year, err := strconv.Atoi(strings.TrimSpace(raw.Year.String()))
	if err != nil || year <= 0 {
		return nil
	}

	return &year
}

// RawPlaySources zips the stations play-from labels with their playback
// strings. Mismatched arity is tolerated: labels without a matching chunk
// (and chunks without a label) are dropped.
func (raw *RawTitle) RawPlaySources() map[string]string {
	if raw.PlayFrom == "" || raw.PlayURL == "" {
		return map[string]string{}
	}

	labels := strings.Split(raw.PlayFrom, sourceGroupSeparator)
	chunks := strings.Split(raw.PlayURL, sourceGroupSeparator)

	sources := make(map[string]string, len(labels))
	for i, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" || i >= len(chunks) {
			continue
		}

		sources[label] = chunks[i]
	}

	return sources
}

// PlaySources returns the fully normalized playback map for this record.
func (raw *RawTitle) PlaySources() map[string][]Episode {
	return ParsePlaySources(raw.RawPlaySources())
}
