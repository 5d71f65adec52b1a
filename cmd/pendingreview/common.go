package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/metalagman/pendingreview/internal/app"
	"github.com/metalagman/pendingreview/internal/config"
	"github.com/metalagman/pendingreview/internal/db"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/metalagman/pendingreview/internal/run"
	"github.com/metalagman/pendingreview/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const stopTimeout = 10 * time.Second

// startCore loads the config and starts the core components, populating
// targets. The returned function stops them.
func startCore(ctx context.Context, targets ...any) (config.Config, func(), error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return config.Config{}, func() {}, err
	}
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return config.Config{}, func() {}, err
	}
	fxApp := fx.New(app.Core(cfg), fx.Populate(targets...))
	if err := fxApp.Start(ctx); err != nil {
		return config.Config{}, func() {}, err
	}
	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = fxApp.Stop(stopCtx)
	}
	return cfg, stop, nil
}

// cliLock takes a named lock next to the database. In-memory databases are
// private to the process and need none.
func cliLock(cfg config.Config, name string) (func(), error) {
	if cfg.Database.Path == db.MemoryPath {
		return func() {}, nil
	}
	l, err := run.TryLock(filepath.Dir(cfg.Database.Path), name)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := l.Release(); err != nil {
			log.Warn().Err(err).Str("lock", name).Msg("release lock")
		}
	}, nil
}

func wikiByCode(ctx context.Context, svc *review.Service, code string) (store.Wiki, error) {
	if code == "" {
		return store.Wiki{}, fmt.Errorf("--wiki is required")
	}
	w, err := svc.WikiByCode(ctx, code)
	if err != nil {
		return store.Wiki{}, fmt.Errorf("wiki %q: %w", code, err)
	}
	return w, nil
}

func addWikiFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "wiki", "w", "", "wiki language code, for example fi")
}

func addFormatFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "format", "f", "table", "output format: table, json or markdown")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
