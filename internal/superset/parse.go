package superset

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/metalagman/pendingreview/internal/autoreview"
	"github.com/rs/zerolog/log"
)

// Row is one result row of an SQL Lab query, keyed by column name.
type Row map[string]any

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"20060102150405",
}

// ParseTimestamp parses the timestamp forms the replicas and SQL Lab
// produce: ISO 8601 with or without a zone, a space instead of the "T",
// and 14-digit MediaWiki timestamps. Values without a zone are UTC. It
// returns nil for empty or unparsable values.
func ParseTimestamp(value any) *time.Time {
	s := scalarString(value)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	ts, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		log.Warn().Str("value", s).Msg("unable to parse superset timestamp")
		return nil
	}
	ts = ts.UTC()
	return &ts
}

// ParseList splits a comma-joined column into trimmed, non-empty entries.
// JSON arrays are accepted as well.
func ParseList(value any) []string {
	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case []string:
		return ParseList(anySlice(v))
	}
	return []string(autoreview.SplitList(scalarString(value)))
}

// ParseOptionalInt returns nil when value is missing or not an integer.
func ParseOptionalInt(value any) *int64 {
	s := scalarString(value)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// ParseBool interprets the flag encodings seen in replica results. The
// second result is false when value is null or not recognised.
func ParseBool(value any) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	case float64:
		return v != 0, true
	case json.Number:
		f, err := v.Float64()
		return f != 0, err == nil
	}
	return autoreview.ParseFlag(scalarString(value))
}

// Metadata converts a row into the side-channel metadata stored with a
// revision. Lists and flags are normalised the same way the rule engine
// decodes them.
func Metadata(row Row) *autoreview.SupersetData {
	data := &autoreview.SupersetData{
		UserGroups:       ParseList(row["user_groups"]),
		UserFormerGroups: ParseList(row["user_former_groups"]),
		PageCategories:   ParseList(row["page_categories"]),
		ChangeTags:       ParseList(row["change_tags"]),
	}
	if v, ok := ParseBool(row["rc_bot"]); ok {
		data.RCBot = autoreview.NewFlag(v)
	}
	if v, ok := ParseBool(row["rc_patrolled"]); ok {
		data.RCPatrolled = autoreview.NewFlag(v)
	}
	if v, ok := ParseBool(row["user_blocked"]); ok {
		data.UserBlocked = autoreview.NewFlag(v)
	}
	return data
}

func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
