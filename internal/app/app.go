// Package app wires the pendingreview components together with fx.
package app

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/metalagman/pendingreview/internal/config"
	"github.com/metalagman/pendingreview/internal/db"
	"github.com/metalagman/pendingreview/internal/httpclient"
	"github.com/metalagman/pendingreview/internal/mediawiki"
	"github.com/metalagman/pendingreview/internal/profilecache"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/metalagman/pendingreview/internal/run"
	"github.com/metalagman/pendingreview/internal/store"
	"github.com/metalagman/pendingreview/internal/superset"
	"github.com/metalagman/pendingreview/internal/web"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// Core provides everything except the HTTP server.
func Core(cfg config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			NewDB,
			store.New,
			run.NewStore,
			NewHTTPClient,
			NewProfileCache,
			NewWikiAPIFactory,
			NewFetcher,
			NewService,
		),
		fx.WithLogger(func() fxevent.Logger { return eventLogger{} }),
	)
}

// Server adds the HTTP server on top of Core.
func Server(cfg config.Config) fx.Option {
	return fx.Options(
		Core(cfg),
		fx.Provide(NewWebServer),
		fx.Invoke(func(*http.Server) {}),
	)
}

// NewDB opens the SQLite cache and closes it on shutdown.
func NewDB(lc fx.Lifecycle, cfg config.Config) (*sql.DB, error) {
	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return conn.Close() }})
	return conn, nil
}

// NewHTTPClient builds the retrying client shared by the upstream APIs.
func NewHTTPClient(cfg config.Config) *http.Client {
	return httpclient.New(
		httpclient.WithMaxRetries(cfg.MediaWiki.MaxRetries),
		httpclient.WithTimeout(cfg.MediaWiki.Timeout),
		httpclient.WithUserAgent(cfg.MediaWiki.UserAgent),
		httpclient.WithLogger(log.Logger),
	)
}

// NewProfileCache selects the configured editor profile cache.
func NewProfileCache(lc fx.Lifecycle, cfg config.Config) (profilecache.Store, error) {
	if cfg.Cache.Backend != config.CacheRedis {
		return profilecache.NewMem(cfg.Cache.Size, cfg.Cache.TTL), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cache, err := profilecache.NewRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.Size, cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return cache.Close() }})
	return cache, nil
}

// NewWikiAPIFactory returns a factory handing out one MediaWiki client per
// wiki code.
func NewWikiAPIFactory(cfg config.Config, client *http.Client) review.WikiAPIFactory {
	aliases := categoryAliases(cfg)
	var mu sync.Mutex
	clients := map[string]*mediawiki.Client{}
	return func(wiki store.Wiki) review.WikiAPI {
		mu.Lock()
		defer mu.Unlock()
		if c, ok := clients[wiki.Code]; ok && c.Endpoint() == wiki.APIEndpoint {
			return c
		}
		c := mediawiki.New(wiki.APIEndpoint, client, mediawiki.WithCategoryAliases(aliases[wiki.Code]...))
		clients[wiki.Code] = c
		return c
	}
}

// NewFetcher selects the configured pending-changes source.
func NewFetcher(cfg config.Config, client *http.Client, wikiAPI review.WikiAPIFactory) review.Fetcher {
	if cfg.Source == config.SourceSuperset {
		token := os.Getenv(cfg.Superset.TokenEnv)
		if token == "" {
			log.Warn().Str("env", cfg.Superset.TokenEnv).Msg("superset token is not set")
		}
		return review.SupersetSource{Client: superset.New(cfg.Superset.URL, token, cfg.Superset.DatabaseID, client)}
	}
	return review.APISource{Client: wikiAPI, Concurrency: cfg.Refresh.Concurrency}
}

// NewService builds the review service.
func NewService(cfg config.Config, st *store.Store, runs *run.Store, cache profilecache.Store, source review.Fetcher, wikiAPI review.WikiAPIFactory) *review.Service {
	return review.New(st, runs, cache, source, wikiAPI, review.Options{
		RefreshLimit:    cfg.Refresh.Limit,
		ProfileMaxAge:   cfg.Profiles.MaxAge,
		Wikis:           Wikis(cfg),
		CategoryAliases: categoryAliases(cfg),
	})
}

// Wikis converts the configured wikis into store rows.
func Wikis(cfg config.Config) []store.Wiki {
	out := make([]store.Wiki, 0, len(cfg.Wikis))
	for _, w := range cfg.Wikis {
		w = w.Normalized()
		out = append(out, store.Wiki{
			Name:        w.Name,
			Code:        w.Code,
			Family:      w.Family,
			APIEndpoint: w.APIEndpoint,
			ScriptPath:  w.ScriptPath,
		})
	}
	return out
}

func categoryAliases(cfg config.Config) map[string][]string {
	out := make(map[string][]string, len(cfg.Wikis))
	for _, w := range cfg.Wikis {
		out[w.Code] = w.CategoryAliases
	}
	return out
}

// NewWebServer serves the web UI for the lifetime of the app.
func NewWebServer(lc fx.Lifecycle, cfg config.Config, svc *review.Service) (*http.Server, error) {
	handler, err := web.NewServer(svc)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.EnsureWikis(ctx); err != nil {
				return err
			}
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info().Str("addr", ln.Addr().String()).Msg("serving web UI")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("http server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
	return srv, nil
}

// eventLogger reports fx lifecycle events through zerolog.
type eventLogger struct{}

func (eventLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("callee", e.FunctionName).Msg("start hook failed")
			return
		}
		log.Debug().Str("callee", e.FunctionName).Dur("runtime", e.Runtime).Msg("start hook executed")
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("callee", e.FunctionName).Msg("stop hook failed")
			return
		}
		log.Debug().Str("callee", e.FunctionName).Dur("runtime", e.Runtime).Msg("stop hook executed")
	case *fxevent.Invoked:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("function", e.FunctionName).Msg("invoke failed")
		}
	case *fxevent.Provided:
		if e.Err != nil {
			log.Error().Err(e.Err).Msg("provide failed")
		}
	case *fxevent.Started:
		if e.Err != nil {
			log.Error().Err(e.Err).Msg("start failed")
			return
		}
		log.Debug().Msg("started")
	case *fxevent.Stopped:
		if e.Err != nil {
			log.Error().Err(e.Err).Msg("stop failed")
		}
	}
}
