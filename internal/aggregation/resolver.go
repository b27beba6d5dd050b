package aggregation

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/medleyhq/medley/internal/title"
)

// MergeResult is the outcome of consolidating one duplicate group: the
// survivor with its merged field set, and the records to remove.
type MergeResult struct {
	Primary  *title.Record
	LoserIDs []uuid.UUID
}

// Consolidate elects a primary from the group and folds every member's
// fields, playback sources and provenance into it. The function is pure: it
// never touches storage and never mutates the input records, so re-running it
// over the same group always produces the same survivor with the same field
// values.
func Consolidate(group DuplicateGroup) MergeResult {
	// Stored scores may be stale; rank on freshly computed ones.
	members := make([]*title.Record, len(group.Members))
	copy(members, group.Members)
	scores := make(map[uuid.UUID]int, len(members))
	for _, member := range members {
		scores[member.ID] = Score(member)
	}

	sort.Slice(members, func(i, j int) bool {
		if scores[members[i].ID] != scores[members[j].ID] {
			return scores[members[i].ID] > scores[members[j].ID]
		}
		if members[i].ProviderPriority != members[j].ProviderPriority {
			return members[i].ProviderPriority > members[j].ProviderPriority
		}
		return members[i].ID.String() < members[j].ID.String()
	})

	primary := *members[0]
	loserIDs := make([]uuid.UUID, 0, len(members)-1)
	for _, loser := range members[1:] {
		loserIDs = append(loserIDs, loser.ID)
	}

	// A loser may hold a better value for any individual field than the
	// overall winner, so scalar fields are picked longest-valid-wins across
	// the whole group rather than inherited from the primary.
	primary.CoverURL = longestWhere(members, isValidCoverURL, func(r *title.Record) string { return r.CoverURL })
	primary.Area = longest(members, func(r *title.Record) string { return r.Area })
	primary.Actors = longest(members, func(r *title.Record) string { return r.Actors })
	primary.Director = longest(members, func(r *title.Record) string { return r.Director })
	primary.Writer = longest(members, func(r *title.Record) string { return r.Writer })
	primary.Synopsis = longest(members, func(r *title.Record) string { return r.Synopsis })
	if primary.Category == "" {
		primary.Category = longest(members, func(r *title.Record) string { return r.Category })
	}

	primary.PlaySources = unionPlaySources(members)
	primary.ContributingProviders = pq.StringArray(unionProviders(members))
	primary.ProviderPriority = maxPriority(members)
	primary.QualityScore = Score(&primary)
	primary.IsValid = primary.HasPlayableURL()

	return MergeResult{Primary: &primary, LoserIDs: loserIDs}
}

// unionPlaySources merges every member's playback map by provider label.
// When two members report the same label the freshest member's parse wins
// outright; episode lists from one provider are already complete, so
// episode-level union would only resurrect stale entries.
func unionPlaySources(members []*title.Record) title.PlaySources {
	byFreshness := make([]*title.Record, len(members))
	copy(byFreshness, members)
	sort.Slice(byFreshness, func(i, j int) bool {
		return byFreshness[i].UpdatedAt.Before(byFreshness[j].UpdatedAt)
	})

	merged := title.PlaySources{}
	for _, member := range byFreshness {
		for label, episodes := range member.PlaySources {
			merged[label] = episodes
		}
	}

	return merged
}

func unionProviders(members []*title.Record) []string {
	seen := make(map[string]struct{})
	for _, member := range members {
		for _, provider := range member.ContributingProviders {
			seen[provider] = struct{}{}
		}
	}

	providers := make([]string, 0, len(seen))
	for provider := range seen {
		providers = append(providers, provider)
	}

	sort.Strings(providers)
	return providers
}

func maxPriority(members []*title.Record) int {
	highest := members[0].ProviderPriority
	for _, member := range members[1:] {
		if member.ProviderPriority > highest {
			highest = member.ProviderPriority
		}
	}

	return highest
}

func longest(members []*title.Record, extract func(*title.Record) string) string {
	return longestWhere(members, func(string) bool { return true }, extract)
}

func longestWhere(members []*title.Record, valid func(string) bool, extract func(*title.Record) string) string {
	best := ""
	bestLength := 0
	for _, member := range members {
		value := strings.TrimSpace(extract(member))
		if value == "" || !valid(value) {
			continue
		}

		if length := utf8.RuneCountInString(value); length > bestLength {
			best, bestLength = value, length
		}
	}

	return best
}
