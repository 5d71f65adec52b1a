package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/metalagman/pendingreview/internal/store"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRecentLimit = 50
	maxRecentLimit     = 500
	DefaultLanguage    = "fi"
)

// SupportedLanguages are the language editions recent edits are served for.
var SupportedLanguages = []string{"en", "fi"}

// RecentEdit is one entry of a wiki's recent changes feed.
type RecentEdit struct {
	Title      string    `json:"title"`
	User       string    `json:"user"`
	Timestamp  time.Time `json:"timestamp"`
	Comment    string    `json:"comment"`
	OldID      int64     `json:"oldid"`
	NewID      int64     `json:"newid"`
	Type       string    `json:"type"`
	UserGroups []string  `json:"user_groups"`
}

// IsSupportedLanguage reports whether lang is served by RecentEdits.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// ClampRecentLimit maps a requested limit onto [1, 500]; zero or less
// means the default.
func ClampRecentLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > maxRecentLimit:
		return maxRecentLimit
	default:
		return limit
	}
}

// RecentEdits returns the latest edits of a language edition with the
// editors' groups attached. Failing to look up groups leaves them empty.
func (s *Service) RecentEdits(ctx context.Context, lang string, limit int) ([]RecentEdit, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = DefaultLanguage
	}
	if !IsSupportedLanguage(lang) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	limit = ClampRecentLimit(limit)

	wiki, err := s.recentWiki(ctx, lang)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecentChanges, err)
	}
	client, err := s.api(wiki)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecentChanges, err)
	}
	changes, err := client.RecentChanges(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecentChanges, err)
	}
	if len(changes) > limit {
		changes = changes[:limit]
	}

	edits := make([]RecentEdit, 0, len(changes))
	names := map[string]struct{}{}
	for _, c := range changes {
		edits = append(edits, RecentEdit{
			Title:     c.Title,
			User:      c.User,
			Timestamp: c.Timestamp,
			Comment:   c.Comment,
			OldID:     c.OldRevID,
			NewID:     c.RevID,
			Type:      c.Type,
		})
		if c.User != "" {
			names[c.User] = struct{}{}
		}
	}

	groups := map[string][]string{}
	if len(names) > 0 {
		usernames := sortedKeys(names)
		users, err := client.Users(ctx, usernames)
		if err != nil {
			log.Warn().Err(err).Str("lang", lang).Msg("failed to fetch user groups")
		}
		for _, u := range users {
			groups[u.Name] = normalizeGroups(u.Groups)
		}
	}
	for i := range edits {
		edits[i].UserGroups = groups[edits[i].User]
		if edits[i].UserGroups == nil {
			edits[i].UserGroups = []string{}
		}
	}
	return edits, nil
}

func (s *Service) recentWiki(ctx context.Context, lang string) (store.Wiki, error) {
	wiki, err := s.WikiByCode(ctx, lang)
	if err == nil {
		return wiki, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Wiki{}, err
	}
	return store.Wiki{
		Code:        lang,
		Name:        lang + ".wikipedia",
		Family:      "wikipedia",
		ScriptPath:  "/w",
		APIEndpoint: "https://" + lang + ".wikipedia.org/w/api.php",
	}, nil
}

func normalizeGroups(groups []string) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if g = strings.ToLower(strings.TrimSpace(g)); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// Languages returns a sorted copy of SupportedLanguages.
func Languages() []string {
	out := append([]string(nil), SupportedLanguages...)
	sort.Strings(out)
	return out
}
