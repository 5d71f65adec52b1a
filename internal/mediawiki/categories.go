package mediawiki

import (
	"regexp"
	"sort"
	"strings"
)

var linkPattern = regexp.MustCompile(`\[\[\s*([^\[\]|:]+?)\s*:([^\[\]|]*)(?:\|[^\[\]]*)?\]\]`)

// ParseCategories returns the sorted distinct categories a wikitext links
// itself into. Besides "Category", any of aliases is accepted as the
// namespace name. Sort keys are dropped; links prefixed with a colon are
// plain links and ignored.
func ParseCategories(wikitext string, aliases ...string) []string {
	seen := map[string]struct{}{}
	for _, m := range linkPattern.FindAllStringSubmatch(wikitext, -1) {
		if !isCategoryNamespace(m[1], aliases) {
			continue
		}
		name := strings.TrimSpace(strings.ReplaceAll(m[2], "_", " "))
		if name == "" {
			continue
		}
		seen[name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func isCategoryNamespace(ns string, aliases []string) bool {
	if strings.EqualFold(ns, "category") {
		return true
	}
	for _, alias := range aliases {
		if strings.EqualFold(ns, alias) {
			return true
		}
	}
	return false
}
