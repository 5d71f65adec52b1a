package review

import (
	"context"
	"time"

	"github.com/metalagman/pendingreview/internal/autoreview"
	"github.com/metalagman/pendingreview/internal/mediawiki"
	"github.com/metalagman/pendingreview/internal/run"
	"github.com/metalagman/pendingreview/internal/store"
	"github.com/rs/zerolog/log"
)

// AutoreviewResult is the dry-run outcome for every pending revision of a page.
type AutoreviewResult struct {
	PageID  int64                       `json:"pageid"`
	Title   string                      `json:"title"`
	Mode    string                      `json:"mode"`
	RunID   string                      `json:"run_id,omitempty"`
	Digest  string                      `json:"digest,omitempty"`
	Results []autoreview.RevisionResult `json:"results"`
}

// Evaluate runs the autoreview checks over the page's pending revisions
// without recording a run.
func (s *Service) Evaluate(ctx context.Context, wikiID, pageID int64) (AutoreviewResult, error) {
	_, page, results, err := s.evaluate(ctx, wikiID, pageID)
	if err != nil {
		return AutoreviewResult{}, err
	}
	return AutoreviewResult{
		PageID:  page.PageID,
		Title:   page.Title,
		Mode:    run.ModeDryRun,
		Results: results,
	}, nil
}

// Autoreview evaluates the page's pending revisions and records the
// outcome in the run log.
func (s *Service) Autoreview(ctx context.Context, wikiID, pageID int64) (AutoreviewResult, error) {
	wiki, page, results, err := s.evaluate(ctx, wikiID, pageID)
	if err != nil {
		return AutoreviewResult{}, err
	}
	rec, err := run.NewRecord(wiki.ID, page.PageID, page.Title, results, s.opts.Now())
	if err != nil {
		return AutoreviewResult{}, err
	}
	if err := s.runs.CreateRun(ctx, rec); err != nil {
		return AutoreviewResult{}, err
	}
	log.Info().
		Str("wiki", wiki.Code).
		Int64("page_id", page.PageID).
		Str("run_id", rec.RunID).
		Int("approve", rec.Approve).
		Int("blocked", rec.Blocked).
		Int("manual", rec.Manual).
		Msg("autoreview finished")

	return AutoreviewResult{
		PageID:  page.PageID,
		Title:   page.Title,
		Mode:    rec.Mode,
		RunID:   rec.RunID,
		Digest:  rec.Digest,
		Results: results,
	}, nil
}

func (s *Service) evaluate(ctx context.Context, wikiID, pageID int64) (store.Wiki, store.PendingPage, []autoreview.RevisionResult, error) {
	wiki, err := s.store.Wiki(ctx, wikiID)
	if err != nil {
		return store.Wiki{}, store.PendingPage{}, nil, err
	}
	page, err := s.store.PendingPage(ctx, wikiID, pageID)
	if err != nil {
		return store.Wiki{}, store.PendingPage{}, nil, err
	}
	cfg, err := s.store.Configuration(ctx, wikiID)
	if err != nil {
		return store.Wiki{}, store.PendingPage{}, nil, err
	}

	revisions := make([]autoreview.Revision, 0, len(page.Revisions))
	for i := range page.Revisions {
		s.hydrateCategories(ctx, wiki, &page.Revisions[i])
		revisions = append(revisions, page.Revisions[i].Revision())
	}

	stored, err := s.resolveProfiles(ctx, wiki, autoreview.Usernames(revisions))
	if err != nil {
		return store.Wiki{}, store.PendingPage{}, nil, err
	}
	profiles := make(map[string]autoreview.EditorProfile, len(stored))
	for name, p := range stored {
		profiles[name] = p.Profile()
	}

	start := time.Now()
	results := autoreview.RunForPage(revisions, profiles, cfg)
	pageEvaluationDuration.Observe(time.Since(start).Seconds())
	for _, r := range results {
		decisionCount.WithLabelValues(string(r.Decision.Status)).Inc()
	}
	return wiki, page, results, nil
}

// hydrateCategories fills in the categories of a revision that has none by
// parsing its wikitext, fetching the wikitext first when it is not cached.
// Failures leave the revision without categories.
func (s *Service) hydrateCategories(ctx context.Context, wiki store.Wiki, rev *store.PendingRevision) {
	if len(rev.Categories) > 0 || len(rev.Superset.Categories()) > 0 {
		return
	}
	l := log.With().Str("wiki", wiki.Code).Int64("revid", rev.RevID).Logger()

	if rev.Wikitext == "" {
		if s.wikiAPI == nil {
			return
		}
		text, err := s.wikiAPI(wiki).RevisionWikitext(ctx, rev.RevID)
		if err != nil {
			l.Warn().Err(err).Msg("failed to fetch wikitext")
			return
		}
		if text == "" {
			return
		}
		rev.Wikitext = text
		if err := s.store.SetRevisionWikitext(ctx, rev.ID, text); err != nil {
			l.Warn().Err(err).Msg("failed to cache wikitext")
		}
	}

	rev.Categories = mediawiki.ParseCategories(rev.Wikitext, s.opts.CategoryAliases[wiki.Code]...)
	if len(rev.Categories) == 0 {
		return
	}
	if err := s.store.SetRevisionCategories(ctx, rev.ID, rev.Categories); err != nil {
		l.Warn().Err(err).Msg("failed to cache categories")
	}
}

// resolveProfiles looks editors up in the profile cache, then the store,
// and finally asks the wiki about editors that are unknown or whose stored
// profile has expired.
func (s *Service) resolveProfiles(ctx context.Context, wiki store.Wiki, usernames []string) (map[string]store.EditorProfile, error) {
	out := make(map[string]store.EditorProfile, len(usernames))
	l := log.With().Str("wiki", wiki.Code).Logger()

	var missing []string
	for _, name := range usernames {
		if s.cache != nil {
			p, ok, err := s.cache.Get(ctx, wiki.ID, name)
			if err != nil {
				l.Warn().Err(err).Str("user", name).Msg("profile cache lookup failed")
			}
			if ok {
				profileLookups.WithLabelValues("cache").Inc()
				out[name] = p
				continue
			}
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return out, nil
	}

	stored, err := s.store.EditorProfiles(ctx, wiki.ID, missing)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	var stale []string
	for _, name := range missing {
		p, ok := stored[name]
		if ok && (s.opts.ProfileMaxAge <= 0 || !p.Expired(now, s.opts.ProfileMaxAge)) {
			profileLookups.WithLabelValues("store").Inc()
			out[name] = p
			s.remember(ctx, p)
			continue
		}
		stale = append(stale, name)
	}
	if len(stale) == 0 || s.wikiAPI == nil {
		keepStale(out, stored, stale)
		return out, nil
	}

	fetched, err := fetchProfiles(ctx, s.wikiAPI(wiki), wiki.ID, stale)
	if err != nil {
		l.Warn().Err(err).Strs("users", stale).Msg("failed to fetch editor rights")
		keepStale(out, stored, stale)
		return out, nil
	}
	for _, p := range fetched {
		saved, err := s.store.UpsertEditorProfile(ctx, p)
		if err != nil {
			return nil, err
		}
		profileLookups.WithLabelValues("api").Inc()
		out[saved.Username] = saved
		s.remember(ctx, saved)
	}
	keepStale(out, stored, stale)
	return out, nil
}

// keepStale falls back to expired profiles for editors nothing fresher was
// found for.
func keepStale(out, stored map[string]store.EditorProfile, names []string) {
	for _, name := range names {
		if _, ok := out[name]; ok {
			continue
		}
		if p, ok := stored[name]; ok {
			profileLookups.WithLabelValues("stale").Inc()
			out[name] = p
		}
	}
}

func (s *Service) remember(ctx context.Context, p store.EditorProfile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, p); err != nil {
		log.Warn().Err(err).Str("user", p.Username).Msg("failed to cache profile")
	}
}
