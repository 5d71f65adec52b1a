package autoreview

import (
	"sort"

	"golang.org/x/text/cases"
)

// Lookup maps case-folded keys to the canonical configured spelling.
type Lookup map[string]string

// NewLookup builds a case-insensitive lookup from configured values. Empty
// values are skipped and the first spelling seen for a key wins.
func NewLookup(values []string) Lookup {
	lookup := make(Lookup, len(values))
	caser := cases.Fold()
	for _, value := range values {
		if value == "" {
			continue
		}
		key := caser.String(value)
		if key == "" {
			continue
		}
		if _, ok := lookup[key]; ok {
			continue
		}
		lookup[key] = value
	}
	return lookup
}

// Fold returns the case-folded form used for lookup keys.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Values returns the canonical values in sorted order.
func (l Lookup) Values() []string {
	out := make([]string, 0, len(l))
	for _, v := range l {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// match folds every candidate and returns the sorted, deduplicated canonical
// values it hits.
func (l Lookup) match(candidates []string) []string {
	if len(l) == 0 {
		return nil
	}
	caser := cases.Fold()
	seen := make(map[string]struct{})
	var out []string
	for _, candidate := range candidates {
		canonical, ok := l[caser.String(candidate)]
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out
}
