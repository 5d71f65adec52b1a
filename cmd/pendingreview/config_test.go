package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeTestFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestResolveConfigPath(t *testing.T) {
	t.Parallel()

	repoRoot := t.TempDir()
	if got, want := resolveConfigPath(repoRoot, ""), filepath.Join(repoRoot, defaultConfigPath); got != want {
		t.Fatalf("resolve config path = %q, want %q", got, want)
	}
	abs := filepath.Join(t.TempDir(), "other.yaml")
	if got := resolveConfigPath(repoRoot, abs); got != abs {
		t.Fatalf("resolve config path = %q, want %q", got, abs)
	}
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	repoRoot := t.TempDir()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", defaultConfigPath)

	cfg, err := loadConfig(repoRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Source != "api" {
		t.Fatalf("source = %q, want api", cfg.Source)
	}
	if len(cfg.Wikis) != 4 {
		t.Fatalf("wikis = %d, want 4", len(cfg.Wikis))
	}
	if want := filepath.Join(repoRoot, ".pendingreview", "pendingreview.db"); cfg.Database.Path != want {
		t.Fatalf("database path = %q, want %q", cfg.Database.Path, want)
	}
}

func TestLoadConfig_UsesYAML(t *testing.T) {
	repoRoot := t.TempDir()
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), `source: superset
refresh:
  limit: 10
  concurrency: 2
wikis:
  - code: sv
    category_aliases: "Kategori, Category"
mediawiki:
  timeout: 45s
superset:
  url: https://superset.example.org
  database_id: 3
retention:
  keep_last: 10
  keep_days: 5
`); err != nil {
		t.Fatalf("write yaml config: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", defaultConfigPath)

	cfg, err := loadConfig(repoRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Source != "superset" || cfg.Superset.DatabaseID != 3 {
		t.Fatalf("superset settings not applied: %+v", cfg.Superset)
	}
	if cfg.Refresh.Limit != 10 || cfg.Refresh.Concurrency != 2 {
		t.Fatalf("refresh = %+v", cfg.Refresh)
	}
	if cfg.MediaWiki.Timeout != 45*time.Second {
		t.Fatalf("timeout = %s, want 45s", cfg.MediaWiki.Timeout)
	}
	if cfg.MediaWiki.MaxRetries != 3 {
		t.Fatalf("max retries = %d, want default 3", cfg.MediaWiki.MaxRetries)
	}
	if len(cfg.Wikis) != 1 || cfg.Wikis[0].Code != "sv" {
		t.Fatalf("wikis = %+v, want only sv", cfg.Wikis)
	}
	if got := strings.Join(cfg.Wikis[0].CategoryAliases, "|"); got != "Kategori|Category" {
		t.Fatalf("category aliases = %q", got)
	}
	if cfg.Retention.KeepLast != 10 || cfg.Retention.KeepDays != 5 {
		t.Fatalf("retention = %+v", cfg.Retention)
	}
}

func TestLoadConfig_RejectsUnknownKeys(t *testing.T) {
	repoRoot := t.TempDir()
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), "profile: default\n"); err != nil {
		t.Fatalf("write yaml config: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", defaultConfigPath)

	if _, err := loadConfig(repoRoot); err == nil {
		t.Fatal("expected schema error for unknown key")
	}
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	repoRoot := t.TempDir()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", "missing.yaml")

	if _, err := loadConfig(repoRoot); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadConfig_CrossFieldValidation(t *testing.T) {
	repoRoot := t.TempDir()
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), "cache:\n  backend: redis\n"); err != nil {
		t.Fatalf("write yaml config: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", defaultConfigPath)

	_, err := loadConfig(repoRoot)
	if err == nil || !strings.Contains(err.Error(), "cache.redis_url") {
		t.Fatalf("load config error = %v, want redis_url complaint", err)
	}
}
