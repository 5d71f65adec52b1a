package review

import (
	"context"
	"time"

	"github.com/metalagman/pendingreview/internal/autoreview"
	"github.com/metalagman/pendingreview/internal/store"
)

// PagePayload is a cached pending page as presented to clients.
type PagePayload struct {
	PageID       int64             `json:"pageid"`
	Title        string            `json:"title"`
	StableRevID  int64             `json:"stable_revid"`
	PendingSince *time.Time        `json:"pending_since"`
	Categories   []string          `json:"categories"`
	Revisions    []RevisionPayload `json:"revisions"`
}

// RevisionPayload is a cached pending revision as presented to clients.
type RevisionPayload struct {
	RevID         int64                    `json:"revid"`
	ParentID      *int64                   `json:"parentid"`
	Timestamp     time.Time                `json:"timestamp"`
	AgeSeconds    int64                    `json:"age_seconds"`
	UserName      string                   `json:"user_name"`
	Comment       string                   `json:"comment"`
	SHA1          string                   `json:"sha1"`
	ChangeTags    []string                 `json:"change_tags"`
	Categories    []string                 `json:"categories"`
	EditorProfile *store.EditorProfile     `json:"editor_profile"`
	SupersetData  *autoreview.SupersetData `json:"superset_data,omitempty"`
}

// Pending lists the wiki's cached pending pages with their revisions.
func (s *Service) Pending(ctx context.Context, wikiID int64) ([]PagePayload, error) {
	if _, err := s.store.Wiki(ctx, wikiID); err != nil {
		return nil, err
	}
	pages, err := s.store.ListPendingPages(ctx, wikiID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.store.EditorProfiles(ctx, wikiID, usernamesOf(pages))
	if err != nil {
		return nil, err
	}
	return pagePayloads(pages, profiles), nil
}

// PageRevisions returns one cached page with its revisions.
func (s *Service) PageRevisions(ctx context.Context, wikiID, pageID int64) (PagePayload, error) {
	page, err := s.store.PendingPage(ctx, wikiID, pageID)
	if err != nil {
		return PagePayload{}, err
	}
	pages := []store.PendingPage{page}
	profiles, err := s.store.EditorProfiles(ctx, wikiID, usernamesOf(pages))
	if err != nil {
		return PagePayload{}, err
	}
	return pagePayloads(pages, profiles)[0], nil
}

func pagePayloads(pages []store.PendingPage, profiles map[string]store.EditorProfile) []PagePayload {
	out := make([]PagePayload, 0, len(pages))
	for _, p := range pages {
		payload := PagePayload{
			PageID:       p.PageID,
			Title:        p.Title,
			StableRevID:  p.StableRevID,
			PendingSince: p.PendingSince,
			Categories:   nonNil(p.Categories),
			Revisions:    make([]RevisionPayload, 0, len(p.Revisions)),
		}
		for _, r := range p.Revisions {
			payload.Revisions = append(payload.Revisions, revisionPayload(p.WikiID, r, profiles))
		}
		out = append(out, payload)
	}
	return out
}

func revisionPayload(wikiID int64, r store.PendingRevision, profiles map[string]store.EditorProfile) RevisionPayload {
	payload := RevisionPayload{
		RevID:        r.RevID,
		ParentID:     r.ParentID,
		Timestamp:    r.Timestamp,
		AgeSeconds:   int64(r.AgeAtFetch / time.Second),
		UserName:     r.UserName,
		Comment:      r.Comment,
		SHA1:         r.SHA1,
		ChangeTags:   firstNonEmpty(r.ChangeTags, r.Superset.Tags()),
		Categories:   firstNonEmpty(r.Categories, r.Superset.Categories()),
		SupersetData: r.Superset,
	}
	if r.UserName == "" {
		return payload
	}
	if profile, ok := profiles[r.UserName]; ok {
		payload.EditorProfile = &profile
	} else if r.Superset != nil {
		derived := store.ProfileFromSuperset(wikiID, r.UserName, r.Superset)
		derived.FetchedAt = r.FetchedAt
		payload.EditorProfile = &derived
	}
	return payload
}

func firstNonEmpty(primary, fallback []string) []string {
	if len(primary) > 0 {
		return primary
	}
	return nonNil(fallback)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
