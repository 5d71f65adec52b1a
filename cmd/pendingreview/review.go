package main

import (
	"fmt"

	"github.com/metalagman/pendingreview/internal/report"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/metalagman/pendingreview/internal/tui"
	"github.com/spf13/cobra"
)

func refreshCmd() *cobra.Command {
	var wiki string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the wiki's pending pages into the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *review.Service
			cfg, stop, err := startCore(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			w, err := wikiByCode(cmd.Context(), svc, wiki)
			if err != nil {
				return err
			}
			release, err := cliLock(cfg, "refresh-"+w.Code)
			if err != nil {
				return err
			}
			defer release()

			pages, err := svc.Refresh(cmd.Context(), w.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.PagesTable(pages))
			fmt.Fprintf(cmd.OutOrStdout(), "%d pending pages cached for %s\n", len(pages), w.Code)
			return nil
		},
	}
	addWikiFlag(cmd, &wiki)
	return cmd
}

func pendingCmd() *cobra.Command {
	var wiki, format string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List cached pending pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *review.Service
			_, stop, err := startCore(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			w, err := wikiByCode(cmd.Context(), svc, wiki)
			if err != nil {
				return err
			}
			pages, err := svc.Pending(cmd.Context(), w.ID)
			if err != nil {
				return err
			}
			if format == string(report.FormatJSON) {
				return printJSON(cmd.OutOrStdout(), map[string]any{"pages": pages})
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.PagesTable(pages))
			return nil
		},
	}
	addWikiFlag(cmd, &wiki)
	addFormatFlag(cmd, &format)
	return cmd
}

func autoreviewCmd() *cobra.Command {
	var (
		wiki   string
		pageID int64
		all    bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "autoreview",
		Short: "Run the dry-run autoreview checks on cached pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if pageID == 0 && !all {
				return fmt.Errorf("set --page or --all")
			}

			var svc *review.Service
			_, stop, err := startCore(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			w, err := wikiByCode(cmd.Context(), svc, wiki)
			if err != nil {
				return err
			}
			pageIDs := []int64{pageID}
			if all {
				pages, err := svc.Pending(cmd.Context(), w.ID)
				if err != nil {
					return err
				}
				pageIDs = pageIDs[:0]
				for _, p := range pages {
					pageIDs = append(pageIDs, p.PageID)
				}
			}
			for _, id := range pageIDs {
				res, err := svc.Autoreview(cmd.Context(), w.ID, id)
				if err != nil {
					return err
				}
				if err := report.WriteAutoreview(cmd.OutOrStdout(), f, res); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addWikiFlag(cmd, &wiki)
	addFormatFlag(cmd, &format)
	cmd.Flags().Int64VarP(&pageID, "page", "p", 0, "MediaWiki page id")
	cmd.Flags().BoolVar(&all, "all", false, "review every cached page of the wiki")
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local pending-changes cache",
	}
	var wiki string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop the wiki's cached pages and revisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *review.Service
			_, stop, err := startCore(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			w, err := wikiByCode(cmd.Context(), svc, wiki)
			if err != nil {
				return err
			}
			if err := svc.ClearCache(cmd.Context(), w.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache cleared for %s\n", w.Code)
			return nil
		},
	}
	addWikiFlag(clearCmd, &wiki)
	cmd.AddCommand(clearCmd)
	return cmd
}

func recentCmd() *cobra.Command {
	var (
		lang   string
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the latest edits of a language edition with the editors' groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *review.Service
			_, stop, err := startCore(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			edits, err := svc.RecentEdits(cmd.Context(), lang, limit)
			if err != nil {
				return err
			}
			if format == string(report.FormatJSON) {
				return printJSON(cmd.OutOrStdout(), edits)
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RecentTable(edits))
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", review.DefaultLanguage, "language code")
	cmd.Flags().IntVarP(&limit, "limit", "n", review.DefaultRecentLimit, "number of edits (1-500)")
	addFormatFlag(cmd, &format)
	return cmd
}

func browseCmd() *cobra.Command {
	var wiki string
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse cached revisions and their decisions interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *review.Service
			_, stop, err := startCore(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			w, err := wikiByCode(cmd.Context(), svc, wiki)
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), svc, w)
		},
	}
	addWikiFlag(cmd, &wiki)
	return cmd
}
