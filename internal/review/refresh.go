package review

import (
	"context"
	"fmt"

	"github.com/metalagman/pendingreview/internal/store"
	"github.com/rs/zerolog/log"
)

// Refresh replaces the wiki's cached pending pages with a fresh snapshot
// from the source and stores the editors' profiles that came with it.
func (s *Service) Refresh(ctx context.Context, wikiID int64) ([]PagePayload, error) {
	wiki, err := s.store.Wiki(ctx, wikiID)
	if err != nil {
		return nil, err
	}
	l := log.With().Str("wiki", wiki.Code).Logger()

	var snap Snapshot
	if s.opts.RefreshLimit > 0 {
		snap, err = s.source.Fetch(ctx, wiki, s.opts.RefreshLimit)
		if err != nil {
			refreshCount.WithLabelValues(wiki.Code, "error").Inc()
			l.Error().Err(err).Msg("refresh failed")
			return nil, fmt.Errorf("%w: %w", ErrRefresh, err)
		}
	}

	pages, err := s.store.ReplacePendingPages(ctx, wikiID, snap.Pages)
	if err != nil {
		refreshCount.WithLabelValues(wiki.Code, "error").Inc()
		return nil, err
	}

	profiles := make(map[string]store.EditorProfile, len(snap.Profiles))
	for _, p := range snap.Profiles {
		p.WikiID = wikiID
		saved, err := s.store.UpsertEditorProfile(ctx, p)
		if err != nil {
			return nil, err
		}
		profiles[saved.Username] = saved
		if s.cache != nil {
			if err := s.cache.Purge(ctx, wikiID, saved.Username); err != nil {
				l.Warn().Err(err).Str("user", saved.Username).Msg("failed to purge cached profile")
			}
		}
	}

	refreshCount.WithLabelValues(wiki.Code, "ok").Inc()
	refreshPages.WithLabelValues(wiki.Code).Set(float64(len(pages)))
	l.Info().Int("pages", len(pages)).Int("profiles", len(profiles)).Msg("refreshed pending pages")

	return pagePayloads(pages, profiles), nil
}
