package autoreview

import (
	"encoding/json"
	"strings"
)

// SupersetData is the side-channel metadata captured with a revision. Every
// field is optional; decoding drops entries of the wrong shape instead of
// failing.
type SupersetData struct {
	RCBot            *Flag      `json:"rc_bot,omitempty"`
	RCPatrolled      *Flag      `json:"rc_patrolled,omitempty"`
	UserBlocked      *Flag      `json:"user_blocked,omitempty"`
	UserGroups       StringList `json:"user_groups,omitempty"`
	UserFormerGroups StringList `json:"user_former_groups,omitempty"`
	PageCategories   StringList `json:"page_categories,omitempty"`
	ChangeTags       StringList `json:"change_tags,omitempty"`
}

// RecentChangeBot reports whether the recent-changes bot flag is set.
func (d *SupersetData) RecentChangeBot() bool {
	return d != nil && d.RCBot.Bool()
}

// Blocked reports whether the editor was blocked at fetch time.
func (d *SupersetData) Blocked() bool {
	return d != nil && d.UserBlocked.Bool()
}

// Groups returns the editor's groups at edit time.
func (d *SupersetData) Groups() []string {
	if d == nil {
		return nil
	}
	return d.UserGroups
}

// Categories returns the categories of the previous page version.
func (d *SupersetData) Categories() []string {
	if d == nil {
		return nil
	}
	return d.PageCategories
}

// Tags returns the change tags of the revision.
func (d *SupersetData) Tags() []string {
	if d == nil {
		return nil
	}
	return d.ChangeTags
}

// Flag is a boolean that also accepts numbers and yes/no style strings.
type Flag bool

// NewFlag returns a pointer to a flag with the given value.
func NewFlag(v bool) *Flag {
	f := Flag(v)
	return &f
}

// Bool is nil-safe.
func (f *Flag) Bool() bool {
	return f != nil && bool(*f)
}

// UnmarshalJSON never fails; unrecognised values decode as false.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		*f = false
		return nil
	}
	switch v := raw.(type) {
	case bool:
		*f = Flag(v)
	case float64:
		*f = v != 0
	case string:
		value, _ := ParseFlag(v)
		*f = Flag(value)
	default:
		*f = false
	}
	return nil
}

// ParseFlag interprets the textual booleans found in query results. ok is
// false for empty, "null" and unrecognised input.
func ParseFlag(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true, true
	case "0", "false", "f", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// StringList is a list of non-empty strings. It decodes from a JSON array,
// skipping non-string and empty entries, or from a comma-joined string.
type StringList []string

// UnmarshalJSON never fails; values of another shape decode as an empty list.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = nil
		return nil
	}
	switch v := raw.(type) {
	case []any:
		out := make(StringList, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		*l = out
	case string:
		*l = SplitList(v)
	default:
		*l = nil
	}
	return nil
}

// SplitList splits a comma-joined list, trimming items and dropping empties.
func SplitList(s string) StringList {
	if s == "" {
		return nil
	}
	var out StringList
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
