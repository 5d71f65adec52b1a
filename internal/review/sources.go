package review

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/metalagman/pendingreview/internal/mediawiki"
	"github.com/metalagman/pendingreview/internal/store"
	"github.com/metalagman/pendingreview/internal/superset"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// WikiAPI is the part of the MediaWiki action API the service uses.
type WikiAPI interface {
	OldReviewedPages(ctx context.Context, limit int) ([]mediawiki.ReviewedPage, error)
	PendingRevisions(ctx context.Context, pageID, stableRevID int64) ([]mediawiki.Revision, error)
	RevisionWikitext(ctx context.Context, revID int64) (string, error)
	Users(ctx context.Context, names []string) ([]mediawiki.User, error)
	RecentChanges(ctx context.Context, limit int) ([]mediawiki.RecentChange, error)
}

// WikiAPIFactory returns the API client of a wiki.
type WikiAPIFactory func(wiki store.Wiki) WikiAPI

// Snapshot is everything a source knows about a wiki's pending changes.
type Snapshot struct {
	Pages    []store.PendingPage
	Profiles []store.EditorProfile
}

// Fetcher loads a snapshot of the wiki's pending changes.
type Fetcher interface {
	Fetch(ctx context.Context, wiki store.Wiki, limit int) (Snapshot, error)
}

// APISource reads pending changes through the action API: the pending pages
// first, then each page's revisions concurrently, then the editors' rights.
type APISource struct {
	Client      WikiAPIFactory
	Concurrency int
}

func (s APISource) Fetch(ctx context.Context, wiki store.Wiki, limit int) (Snapshot, error) {
	client := s.Client(wiki)
	listed, err := client.OldReviewedPages(ctx, limit)
	if err != nil {
		return Snapshot{}, err
	}

	pages := make([]store.PendingPage, len(listed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Concurrency, 1))
	for i, entry := range listed {
		pages[i] = store.PendingPage{
			PageID:       entry.PageID,
			Title:        entry.Title,
			StableRevID:  entry.StableRevID,
			PendingSince: entry.PendingSince,
		}
		g.Go(func() error {
			revs, err := client.PendingRevisions(gctx, entry.PageID, entry.StableRevID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// One broken page must not fail the whole refresh.
				log.Warn().Err(err).Str("wiki", wiki.Code).Int64("page_id", entry.PageID).Msg("failed to fetch revisions")
				return nil
			}
			pages[i].Revisions = convertAPIRevisions(revs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	names := usernamesOf(pages)
	profiles, err := fetchProfiles(ctx, client, wiki.ID, names)
	if err != nil {
		log.Warn().Err(err).Str("wiki", wiki.Code).Msg("failed to fetch editor rights")
		profiles = nil
	}
	return Snapshot{Pages: pages, Profiles: profiles}, nil
}

func convertAPIRevisions(revs []mediawiki.Revision) []store.PendingRevision {
	out := make([]store.PendingRevision, 0, len(revs))
	for _, r := range revs {
		out = append(out, store.PendingRevision{
			RevID:      r.RevID,
			ParentID:   r.ParentID,
			UserName:   r.User,
			UserID:     r.UserID,
			Timestamp:  r.Timestamp,
			SHA1:       r.SHA1,
			Comment:    r.Comment,
			ChangeTags: r.Tags,
			Wikitext:   r.Content,
			Categories: r.Categories,
		})
	}
	return out
}

func fetchProfiles(ctx context.Context, client WikiAPI, wikiID int64, names []string) ([]store.EditorProfile, error) {
	if len(names) == 0 {
		return nil, nil
	}
	users, err := client.Users(ctx, names)
	if err != nil {
		return nil, err
	}
	profiles := make([]store.EditorProfile, 0, len(users))
	for _, u := range users {
		if u.Missing {
			continue
		}
		profiles = append(profiles, store.ProfileFromGroups(wikiID, u.Name, u.Groups, u.Blocked))
	}
	return profiles, nil
}

func usernamesOf(pages []store.PendingPage) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, p := range pages {
		for _, r := range p.Revisions {
			if r.UserName == "" {
				continue
			}
			if _, ok := seen[r.UserName]; ok {
				continue
			}
			seen[r.UserName] = struct{}{}
			names = append(names, r.UserName)
		}
	}
	sort.Strings(names)
	return names
}

// SupersetAPI runs the replica query for pending pages.
type SupersetAPI interface {
	PendingPages(ctx context.Context, schema string, limit int, now time.Time) ([]superset.Page, error)
}

// SupersetSource reads pending changes from the replicas in one query.
// Editor profiles are derived from the groups and flags in the rows.
type SupersetSource struct {
	Client SupersetAPI
	Now    func() time.Time
}

func (s SupersetSource) Fetch(ctx context.Context, wiki store.Wiki, limit int) (Snapshot, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	rows, err := s.Client.PendingPages(ctx, superset.Schema(wiki.Code, wiki.Family), limit, now())
	if err != nil {
		return Snapshot{}, fmt.Errorf("superset: %w", err)
	}

	snap := Snapshot{Pages: make([]store.PendingPage, 0, len(rows))}
	profiles := map[string]store.EditorProfile{}
	for _, p := range rows {
		page := store.PendingPage{
			PageID:       p.PageID,
			Title:        p.Title,
			StableRevID:  p.StableRevID,
			PendingSince: p.PendingSince,
		}
		for _, r := range p.Revisions {
			page.Revisions = append(page.Revisions, store.PendingRevision{
				RevID:      r.RevID,
				ParentID:   r.ParentID,
				UserName:   r.User,
				UserID:     r.UserID,
				Timestamp:  r.Timestamp,
				SHA1:       r.SHA1,
				Comment:    r.Comment,
				ChangeTags: r.Tags,
				Categories: r.Categories,
				Superset:   r.Metadata,
			})
			if r.User != "" {
				profiles[r.User] = store.ProfileFromSuperset(wiki.ID, r.User, r.Metadata)
			}
		}
		snap.Pages = append(snap.Pages, page)
	}
	for _, name := range sortedKeys(profiles) {
		snap.Profiles = append(snap.Profiles, profiles[name])
	}
	return snap, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
