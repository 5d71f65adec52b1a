package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/metalagman/pendingreview/internal/report"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/metalagman/pendingreview/internal/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and prune recorded autoreview runs",
	}
	cmd.AddCommand(runsListCmd(), runsShowCmd(), runsPruneCmd())
	return cmd
}

func runsListCmd() *cobra.Command {
	var (
		wiki   string
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the latest runs of a wiki",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				svc  *review.Service
				runs *run.Store
			)
			_, stop, err := startCore(cmd.Context(), &svc, &runs)
			if err != nil {
				return err
			}
			defer stop()

			w, err := wikiByCode(cmd.Context(), svc, wiki)
			if err != nil {
				return err
			}
			records, err := runs.ListRuns(cmd.Context(), w.ID, limit)
			if err != nil {
				return err
			}
			if format == string(report.FormatJSON) {
				return printJSON(cmd.OutOrStdout(), records)
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RunsTable(records))
			return nil
		},
	}
	addWikiFlag(cmd, &wiki)
	addFormatFlag(cmd, &format)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs, 0 for all")
	return cmd
}

func runsShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show the recorded results of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			var runs *run.Store
			_, stop, err := startCore(cmd.Context(), &runs)
			if err != nil {
				return err
			}
			defer stop()

			rec, err := runs.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return report.WriteAutoreview(cmd.OutOrStdout(), f, review.AutoreviewResult{
				PageID:  rec.PageID,
				Title:   rec.Title,
				Mode:    rec.Mode,
				RunID:   rec.RunID,
				Digest:  rec.Digest,
				Results: rec.Results,
			})
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func runsPruneCmd() *cobra.Command {
	var keepLast int
	var keepDays int
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Prune old runs from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			var conn *sql.DB
			cfg, stop, err := startCore(cmd.Context(), &conn)
			if err != nil {
				return err
			}
			defer stop()

			policy := run.RetentionPolicy{KeepLast: keepLast, KeepDays: keepDays}
			if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
				policy = run.RetentionPolicy{
					KeepLast: cfg.Retention.KeepLast,
					KeepDays: cfg.Retention.KeepDays,
				}
			}
			if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
				return fmt.Errorf("set --keep-last or --keep-days (or configure retention in the config file)")
			}

			release, err := cliLock(cfg, "prune")
			if err != nil {
				return err
			}
			defer release()

			res, err := run.PruneRuns(cmd.Context(), conn, policy, time.Now(), dryRun)
			if err != nil {
				return err
			}
			log.Info().
				Int("considered", res.Considered).
				Int("kept", res.Kept).
				Int("deleted", res.Deleted).
				Bool("dry_run", dryRun).
				Msg("prune finished")
			fmt.Fprintf(cmd.OutOrStdout(), "kept %d, deleted %d of %d runs\n", res.Kept, res.Deleted, res.Considered)
			return nil
		},
	}
	cmd.Flags().IntVar(&keepLast, "keep-last", 0, "keep the newest N runs")
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "keep runs newer than N days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	return cmd
}
