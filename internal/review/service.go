// Package review serves the pending-changes cache: refreshing it from a
// source, presenting it, and running the autoreview engine over it.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/pendingreview/internal/autoreview"
	"github.com/metalagman/pendingreview/internal/profilecache"
	"github.com/metalagman/pendingreview/internal/run"
	"github.com/metalagman/pendingreview/internal/store"
)

// Options tune the service.
type Options struct {
	// RefreshLimit caps the pages fetched per refresh. Zero or less fetches nothing.
	RefreshLimit int
	// ProfileMaxAge is how long a stored editor profile stays trusted.
	ProfileMaxAge time.Duration
	// Wikis are created on first use.
	Wikis []store.Wiki
	// CategoryAliases lists localized category namespace names by wiki code.
	CategoryAliases map[string][]string
	Now             func() time.Time
}

// Service is the pending-changes review service.
type Service struct {
	store   *store.Store
	runs    *run.Store
	cache   profilecache.Store
	source  Fetcher
	wikiAPI WikiAPIFactory
	opts    Options
}

// New builds the service. cache and wikiAPI may be nil; without wikiAPI
// profiles and categories are never fetched lazily and recent edits fail.
func New(st *store.Store, runs *run.Store, cache profilecache.Store, source Fetcher, wikiAPI WikiAPIFactory, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:   st,
		runs:    runs,
		cache:   cache,
		source:  source,
		wikiAPI: wikiAPI,
		opts:    opts,
	}
}

// EnsureWikis creates the default wikis that do not exist yet.
func (s *Service) EnsureWikis(ctx context.Context) error {
	return s.store.EnsureWikis(ctx, s.opts.Wikis)
}

// Wikis lists the known wikis, creating the defaults first.
func (s *Service) Wikis(ctx context.Context) ([]store.Wiki, error) {
	if err := s.EnsureWikis(ctx); err != nil {
		return nil, err
	}
	return s.store.ListWikis(ctx)
}

// Wiki returns one wiki by row id.
func (s *Service) Wiki(ctx context.Context, wikiID int64) (store.Wiki, error) {
	return s.store.Wiki(ctx, wikiID)
}

// WikiByCode returns one wiki by its language code.
func (s *Service) WikiByCode(ctx context.Context, code string) (store.Wiki, error) {
	if err := s.EnsureWikis(ctx); err != nil {
		return store.Wiki{}, err
	}
	return s.store.WikiByCode(ctx, code)
}

// Configuration returns the wiki's autoreview configuration.
func (s *Service) Configuration(ctx context.Context, wikiID int64) (autoreview.WikiConfiguration, error) {
	if _, err := s.store.Wiki(ctx, wikiID); err != nil {
		return autoreview.WikiConfiguration{}, err
	}
	return s.store.Configuration(ctx, wikiID)
}

// UpdateConfiguration replaces the wiki's configuration. Entries are
// trimmed and empty ones dropped.
func (s *Service) UpdateConfiguration(ctx context.Context, wikiID int64, cfg autoreview.WikiConfiguration) (autoreview.WikiConfiguration, error) {
	if _, err := s.store.Wiki(ctx, wikiID); err != nil {
		return autoreview.WikiConfiguration{}, err
	}
	cfg = autoreview.WikiConfiguration{
		AutoApprovedGroups: cleanEntries(cfg.AutoApprovedGroups),
		BlockingCategories: cleanEntries(cfg.BlockingCategories),
	}
	if err := s.store.UpdateConfiguration(ctx, wikiID, cfg); err != nil {
		return autoreview.WikiConfiguration{}, err
	}
	return cfg, nil
}

// ClearCache drops the wiki's cached pages and revisions.
func (s *Service) ClearCache(ctx context.Context, wikiID int64) error {
	if _, err := s.store.Wiki(ctx, wikiID); err != nil {
		return err
	}
	return s.store.ClearCache(ctx, wikiID)
}

// IsNotFound reports whether err means a wiki, page or run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, run.ErrNotFound)
}

func cleanEntries(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s *Service) api(wiki store.Wiki) (WikiAPI, error) {
	if s.wikiAPI == nil {
		return nil, fmt.Errorf("no api client for wiki %s", wiki.Code)
	}
	return s.wikiAPI(wiki), nil
}
