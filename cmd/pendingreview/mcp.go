package main

import (
	"github.com/metalagman/pendingreview/internal/mcpserver"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/spf13/cobra"
)

var version = "dev"

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the review tools over MCP on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *review.Service
			_, stop, err := startCore(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()
			return mcpserver.Serve(cmd.Context(), svc, version)
		},
	}
}
