package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/metalagman/pendingreview/internal/autoreview"
)

// EditorProfile caches what is known about an editor on one wiki.
type EditorProfile struct {
	WikiID          int64     `json:"-"`
	Username        string    `json:"username"`
	Groups          []string  `json:"usergroups"`
	IsBlocked       bool      `json:"is_blocked"`
	IsBot           bool      `json:"is_bot"`
	IsAutopatrolled bool      `json:"is_autopatrolled"`
	IsAutoreviewed  bool      `json:"is_autoreviewed"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// Expired reports whether the profile is older than maxAge at now.
func (p EditorProfile) Expired(now time.Time, maxAge time.Duration) bool {
	return p.FetchedAt.Before(now.Add(-maxAge))
}

// Profile converts the cached row into rule engine input.
func (p EditorProfile) Profile() autoreview.EditorProfile {
	return autoreview.EditorProfile{
		IsBot:           p.IsBot,
		IsAutopatrolled: p.IsAutopatrolled,
		IsAutoreviewed:  p.IsAutoreviewed,
		Groups:          p.Groups,
	}
}

// EditorProfiles returns the stored profiles of the named editors keyed by
// username. Unknown editors are absent from the result.
func (s *Store) EditorProfiles(ctx context.Context, wikiID int64, usernames []string) (map[string]EditorProfile, error) {
	out := make(map[string]EditorProfile, len(usernames))
	if len(usernames) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(usernames)+1)
	args = append(args, wikiID)
	for _, name := range usernames {
		args = append(args, name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(usernames)), ",")
	rows, err := s.db.QueryContext(ctx, `SELECT username, usergroups_json, is_blocked, is_bot, is_autopatrolled, is_autoreviewed, fetched_at
		FROM editor_profiles WHERE wiki_id=? AND username IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("list editor profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		p := EditorProfile{WikiID: wikiID}
		var groups, fetchedAt string
		if err := rows.Scan(&p.Username, &groups, &p.IsBlocked, &p.IsBot, &p.IsAutopatrolled, &p.IsAutoreviewed, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan editor profile: %w", err)
		}
		if p.Groups, err = decodeList(groups); err != nil {
			return nil, fmt.Errorf("groups of %s: %w", p.Username, err)
		}
		if p.FetchedAt, err = parseTime(fetchedAt); err != nil {
			return nil, err
		}
		out[p.Username] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate editor profiles: %w", err)
	}
	return out, nil
}

// UpsertEditorProfile stores the profile and stamps its fetch time.
func (s *Store) UpsertEditorProfile(ctx context.Context, p EditorProfile) (EditorProfile, error) {
	groups, err := encodeList(p.Groups)
	if err != nil {
		return EditorProfile{}, err
	}
	p.FetchedAt = s.now().UTC()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO editor_profiles(wiki_id, username, usergroups_json, is_blocked, is_bot, is_autopatrolled, is_autoreviewed, fetched_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wiki_id, username) DO UPDATE SET
			usergroups_json=excluded.usergroups_json, is_blocked=excluded.is_blocked, is_bot=excluded.is_bot,
			is_autopatrolled=excluded.is_autopatrolled, is_autoreviewed=excluded.is_autoreviewed,
			fetched_at=excluded.fetched_at`,
		p.WikiID, p.Username, groups, p.IsBlocked, p.IsBot, p.IsAutopatrolled, p.IsAutoreviewed, formatTime(p.FetchedAt)); err != nil {
		return EditorProfile{}, fmt.Errorf("upsert editor profile %s: %w", p.Username, err)
	}
	return p, nil
}

// ProfileFromGroups derives the rights flags from the editor's groups.
func ProfileFromGroups(wikiID int64, username string, groups []string, blocked bool) EditorProfile {
	sorted := append([]string{}, groups...)
	sort.Strings(sorted)
	p := EditorProfile{
		WikiID:    wikiID,
		Username:  username,
		Groups:    sorted,
		IsBlocked: blocked,
	}
	for _, g := range sorted {
		switch g {
		case "bot":
			p.IsBot = true
		case "autopatrolled":
			p.IsAutopatrolled = true
		case "autoreview", "autoreviewer":
			p.IsAutoreviewed = true
		}
	}
	return p
}

// ProfileFromSuperset derives a profile from replica metadata attached to a
// revision. A recent-changes bot flag marks the editor as a bot as well.
func ProfileFromSuperset(wikiID int64, username string, data *autoreview.SupersetData) EditorProfile {
	p := ProfileFromGroups(wikiID, username, data.Groups(), data.Blocked())
	if data.RecentChangeBot() {
		p.IsBot = true
	}
	return p
}
