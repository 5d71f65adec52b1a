package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, SourceAPI, cfg.Source)
	assert.Equal(t, 120*time.Minute, cfg.Profiles.MaxAge)
	codes := make([]string, 0, len(cfg.Wikis))
	for _, w := range cfg.Wikis {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []string{"de", "en", "pl", "fi"}, codes)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Source = "dump"
	cfg.Cache.Backend = CacheRedis
	cfg.Refresh.Concurrency = 0
	cfg.Cache.Size = 0
	cfg.Cache.TTL = 0
	cfg.Wikis = []Wiki{{Code: "fi"}, {Code: "fi"}, {Code: " "}}

	err := cfg.Validate()

	require.Error(t, err)
	for _, want := range []string{
		`source "dump"`,
		"cache.redis_url must be set",
		"refresh.concurrency must be > 0",
		"cache.size must be > 0",
		"cache.ttl must be > 0",
		`wikis[1].code "fi" is duplicated`,
		"wikis[2].code must be set",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_SupersetNeedsURL(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Source = SourceSuperset
	cfg.Superset.URL = ""

	assert.ErrorContains(t, cfg.Validate(), "superset.url must be set")
}

func TestWikiNormalized_DerivesEndpoint(t *testing.T) {
	t.Parallel()

	got := Wiki{Code: "fi"}.Normalized()

	assert.Equal(t, "wikipedia", got.Family)
	assert.Equal(t, "/w", got.ScriptPath)
	assert.Equal(t, "https://fi.wikipedia.org/w/api.php", got.APIEndpoint)

	custom := Wiki{Code: "test", APIEndpoint: "http://localhost/api.php"}.Normalized()
	assert.Equal(t, "http://localhost/api.php", custom.APIEndpoint)
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings map[string]any
		wantErr  string
	}{
		{
			name: "valid",
			settings: map[string]any{
				"source":   "superset",
				"profiles": map[string]any{"max_age": "2h"},
				"wikis":    []any{map[string]any{"code": "fi", "category_aliases": "Luokka"}},
			},
		},
		{
			name:     "unknown key",
			settings: map[string]any{"agents": map[string]any{}},
			wantErr:  "agents",
		},
		{
			name:     "bad source",
			settings: map[string]any{"source": "dump"},
			wantErr:  "source",
		},
		{
			name:     "duration without unit",
			settings: map[string]any{"cache": map[string]any{"ttl": "90"}},
			wantErr:  "cache.ttl",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateSettings(tc.settings)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: api\nrefresh:\n  limit: 10\n  concurrency: 2\n"), 0o644))
	require.NoError(t, ValidateFile(path))

	require.NoError(t, os.WriteFile(path, []byte("refresh:\n  concurrency: 0\n"), 0o644))
	assert.ErrorContains(t, ValidateFile(path), "concurrency")
}

func TestDecodeHook(t *testing.T) {
	t.Parallel()

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &cfg,
	})
	require.NoError(t, err)

	err = decoder.Decode(map[string]any{
		"cache": map[string]any{"ttl": "15m"},
		"wikis": []any{map[string]any{"code": "de", "category_aliases": "Kategorie, ,Category"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	require.Len(t, cfg.Wikis, 1)
	assert.Equal(t, []string{"Kategorie", "Category"}, cfg.Wikis[0].CategoryAliases)
}
