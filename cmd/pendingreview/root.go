package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/metalagman/pendingreview/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "PENDINGREVIEW"

var envKeys = []string{
	"database.path",
	"http.listen",
	"source",
	"refresh.limit",
	"cache.backend",
	"cache.redis_url",
	"cache.size",
	"cache.ttl",
	"profiles.max_age",
	"superset.url",
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile   string
		debug     bool
		logFormat string
	)
	rootCmd := &cobra.Command{
		Use:           "pendingreview",
		Short:         "pendingreview explains which pending changes could be auto-approved",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			logging.Init(debug, logFormat)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatConsole, "log format: console or json")
	cobra.CheckErr(viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")))

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		cobra.CheckErr(viper.BindEnv(key))
	}

	rootCmd.AddCommand(
		initCmd(),
		validateCmd(),
		serveCmd(),
		wikisCmd(),
		refreshCmd(),
		pendingCmd(),
		autoreviewCmd(),
		cacheCmd(),
		runsCmd(),
		recentCmd(),
		browseCmd(),
		mcpCmd(),
	)
	return rootCmd
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
}
