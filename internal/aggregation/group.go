package aggregation

import (
	"sort"

	"github.com/medleyhq/medley/internal/title"
)

// DuplicateGroup is an ephemeral set of records sharing one identity key. It
// is computed fresh per batch run and never persisted.
type DuplicateGroup struct {
	Key     title.IdentityKey
	Members []*title.Record
}

// BuildGroups partitions the given records by identity key and returns only
// the groups with more than one member, ordered by descending size so a
// bounded batch spends its budget on the most impactful merges first. The
// input is never mutated.
func BuildGroups(records []*title.Record) []DuplicateGroup {
	byKey := make(map[title.IdentityKey][]*title.Record)
	for _, record := range records {
		key := record.IdentityKey()
		byKey[key] = append(byKey[key], record)
	}

	groups := make([]DuplicateGroup, 0)
	for key, members := range byKey {
		if len(members) > 1 {
			groups = append(groups, DuplicateGroup{Key: key, Members: members})
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Members) != len(groups[j].Members) {
			return len(groups[i].Members) > len(groups[j].Members)
		}

		// Equal-sized groups are ordered by key so a rerun over the same
		// store contents processes groups in the same order.
		if groups[i].Key.NormalizedTitle != groups[j].Key.NormalizedTitle {
			return groups[i].Key.NormalizedTitle < groups[j].Key.NormalizedTitle
		}
		return groups[i].Key.ReleaseYear < groups[j].Key.ReleaseYear
	})

	return groups
}
