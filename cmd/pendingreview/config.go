package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/metalagman/pendingreview/internal/config"
	"github.com/metalagman/pendingreview/internal/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var defaultConfigPath = filepath.Join(config.DefaultDir, config.DefaultConfigFile)

func resolveConfigPath(repoRoot, path string) string {
	if path == "" {
		path = defaultConfigPath
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(repoRoot, path)
}

// loadConfig layers the config file and environment over the defaults. A
// missing file is only an error when it was asked for explicitly.
func loadConfig(repoRoot string) (config.Config, error) {
	requested := viper.GetString("config")
	path := resolveConfigPath(repoRoot, requested)

	cfg := config.Default()
	switch _, err := os.Stat(path); {
	case err == nil:
		if err := config.ValidateFile(path); err != nil {
			return config.Config{}, err
		}
		viper.SetConfigFile(path)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && (requested == "" || requested == defaultConfigPath):
		log.Debug().Str("path", path).Msg("no config file, using defaults")
	default:
		return config.Config{}, fmt.Errorf("read config: %w", err)
	}

	if viper.IsSet("wikis") {
		cfg.Wikis = nil
	}
	if err := viper.Unmarshal(&cfg, viper.DecodeHook(config.DecodeHook())); err != nil {
		return config.Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Database.Path != "" && cfg.Database.Path != db.MemoryPath && !filepath.IsAbs(cfg.Database.Path) {
		cfg.Database.Path = filepath.Join(repoRoot, cfg.Database.Path)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
