package main

import (
	"fmt"

	"github.com/metalagman/pendingreview/internal/autoreview"
	"github.com/metalagman/pendingreview/internal/report"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/spf13/cobra"
)

func wikisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wikis",
		Short: "Manage wikis and their autoreview configuration",
	}
	cmd.AddCommand(wikisListCmd(), wikisConfigureCmd())
	return cmd
}

func wikisListCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known wikis",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *review.Service
			_, stop, err := startCore(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			wikis, err := svc.Wikis(cmd.Context())
			if err != nil {
				return err
			}
			if format == string(report.FormatJSON) {
				return printJSON(cmd.OutOrStdout(), wikis)
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.WikisTable(wikis))
			return nil
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func wikisConfigureCmd() *cobra.Command {
	var (
		wiki       string
		blocking   []string
		groups     []string
		clearLists bool
	)
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Show or change a wiki's blocking categories and auto-approved groups",
		Long: "Without flags the current configuration is printed. --blocking-category and " +
			"--auto-approved-group replace the respective list; --clear empties both first.",
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
			cfg, err := svc.Configuration(cmd.Context(), w.ID)
			if err != nil {
				return err
			}
			changed := clearLists || cmd.Flags().Changed("blocking-category") || cmd.Flags().Changed("auto-approved-group")
			if changed {
				if clearLists {
					cfg = autoreview.WikiConfiguration{}
				}
				if cmd.Flags().Changed("blocking-category") {
					cfg.BlockingCategories = blocking
				}
				if cmd.Flags().Changed("auto-approved-group") {
					cfg.AutoApprovedGroups = groups
				}
				if cfg, err = svc.UpdateConfiguration(cmd.Context(), w.ID, cfg); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
	addWikiFlag(cmd, &wiki)
	cmd.Flags().StringSliceVar(&blocking, "blocking-category", nil, "blocking category (repeatable)")
	cmd.Flags().StringSliceVar(&groups, "auto-approved-group", nil, "auto-approved user group (repeatable)")
	cmd.Flags().BoolVar(&clearLists, "clear", false, "empty both lists before applying the other flags")
	return cmd
}
