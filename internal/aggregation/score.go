package aggregation

import (
	"strings"
	"unicode/utf8"

	"github.com/medleyhq/medley/internal/title"
)

// Scoring weights. Each signal is independent of the others so the total is
// order-independent and reproducible; the theoretical maximum is 110.
const (
	coverScore    = 20
	actorsScore   = 15
	directorScore = 10
	synopsisScore = 25
	playableScore = 30

	maxSynopsisBonus = 10

	// A cover URL shorter than this cannot plausibly point at an image.
	coverMinLength = 10

	// Synopses below the floor are treated as absent; every further
	// synopsisBonusStep runes past the floor earn one bonus point.
	synopsisLengthFloor = 20
	synopsisBonusStep   = 50
)

// Score computes the completeness score of a record from its current field
// values. It is a pure function; the stored quality_score column is only ever
// a cache of this result and is recomputed after every mutation.
func Score(record *title.Record) int {
	score := 0
	if isValidCoverURL(record.CoverURL) {
		score += coverScore
	}

	if strings.TrimSpace(record.Actors) != "" {
		score += actorsScore
	}

	if strings.TrimSpace(record.Director) != "" {
		score += directorScore
	}

	if length := utf8.RuneCountInString(strings.TrimSpace(record.Synopsis)); length >= synopsisLengthFloor {
		score += synopsisScore
		score += min((length-synopsisLengthFloor)/synopsisBonusStep, maxSynopsisBonus)
	}

	if record.HasPlayableURL() {
		score += playableScore
	}

	return score
}

func isValidCoverURL(coverURL string) bool {
	coverURL = strings.TrimSpace(coverURL)
	return len(coverURL) >= coverMinLength &&
		(strings.HasPrefix(coverURL, "http://") || strings.HasPrefix(coverURL, "https://"))
}
