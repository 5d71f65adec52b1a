package autoreview

import "golang.org/x/text/cases"

const botGroup = "bot"

// IsBot reports whether the editor should be treated as a bot: the profile
// says so, the recent-changes bot flag is set, or the editor held the bot
// group at edit time.
func IsBot(rev Revision, profile *EditorProfile) bool {
	if profile != nil && profile.IsBot {
		return true
	}
	if rev.Superset.RecentChangeBot() {
		return true
	}
	caser := cases.Fold()
	for _, group := range rev.Superset.Groups() {
		if caser.String(group) == botGroup {
			return true
		}
	}
	return false
}

// MatchedGroups returns the configured auto-approved groups the editor
// belongs to, using both the edit-time groups and the profile groups.
func MatchedGroups(rev Revision, profile *EditorProfile, allowed Lookup) []string {
	if len(allowed) == 0 {
		return nil
	}
	groups := make([]string, 0, len(rev.Superset.Groups()))
	groups = append(groups, nonEmpty(rev.Superset.Groups())...)
	if profile != nil {
		groups = append(groups, nonEmpty(profile.Groups)...)
	}
	return allowed.match(groups)
}

// BlockingCategoryHits returns the configured blocking categories present on
// the previous version of the page.
func BlockingCategoryHits(rev Revision, blocking Lookup) []string {
	if len(blocking) == 0 {
		return nil
	}
	categories := make([]string, 0, len(rev.Categories))
	categories = append(categories, rev.Categories...)
	categories = append(categories, nonEmpty(rev.Superset.Categories())...)
	return blocking.match(categories)
}

// DefaultRights lists the built-in rights that allow auto-approval when the
// wiki defines no auto-approved groups.
func DefaultRights(profile *EditorProfile) []string {
	if profile == nil {
		return nil
	}
	var rights []string
	if profile.IsAutopatrolled {
		rights = append(rights, "Autopatrolled")
	}
	if profile.IsAutoreviewed {
		rights = append(rights, "Autoreviewed")
	}
	return rights
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
