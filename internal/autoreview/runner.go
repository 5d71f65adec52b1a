package autoreview

import "sort"

// RunForPage evaluates every revision of a page, oldest first. Revisions
// with equal timestamps are ordered by revision id. profiles maps usernames
// to the editors' profiles; a missing entry means the editor is unknown.
func RunForPage(revisions []Revision, profiles map[string]EditorProfile, cfg WikiConfiguration) []RevisionResult {
	ordered := SortOldestFirst(revisions)
	rules := NewRules(cfg)

	results := make([]RevisionResult, 0, len(ordered))
	for _, rev := range ordered {
		results = append(results, rules.Evaluate(rev, profileFor(profiles, rev.UserName)))
	}
	return results
}

// SortOldestFirst returns a copy of revisions ordered by timestamp, then
// revision id.
func SortOldestFirst(revisions []Revision) []Revision {
	ordered := make([]Revision, len(revisions))
	copy(ordered, revisions)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.RevID < b.RevID
	})
	return ordered
}

// Usernames returns the distinct non-empty editor names of the revisions.
func Usernames(revisions []Revision) []string {
	seen := make(map[string]struct{}, len(revisions))
	var out []string
	for _, rev := range revisions {
		if rev.UserName == "" {
			continue
		}
		if _, ok := seen[rev.UserName]; ok {
			continue
		}
		seen[rev.UserName] = struct{}{}
		out = append(out, rev.UserName)
	}
	sort.Strings(out)
	return out
}

func profileFor(profiles map[string]EditorProfile, username string) *EditorProfile {
	if username == "" {
		return nil
	}
	profile, ok := profiles[username]
	if !ok {
		return nil
	}
	return &profile
}
