// Package config provides configuration loading and management for pendingreview.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Data sources for pending revisions.
const (
	SourceAPI      = "api"
	SourceSuperset = "superset"
)

// Profile cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Defaults shared by Default and the init command.
const (
	DefaultDir          = ".pendingreview"
	DefaultConfigFile   = "config.yaml"
	DefaultListen       = "127.0.0.1:8080"
	DefaultRefreshLimit = 50
	DefaultProfileTTL   = 120 * time.Minute
	DefaultUserAgent    = "pendingreview/1.0 (https://github.com/metalagman/pendingreview)"
)

// Config is the root configuration.
type Config struct {
	Database  Database        `json:"database"  mapstructure:"database"  yaml:"database"`
	HTTP      HTTP            `json:"http"      mapstructure:"http"      yaml:"http"`
	Source    string          `json:"source"    mapstructure:"source"    yaml:"source"`
	Refresh   Refresh         `json:"refresh"   mapstructure:"refresh"   yaml:"refresh"`
	Wikis     []Wiki          `json:"wikis"     mapstructure:"wikis"     yaml:"wikis"`
	MediaWiki MediaWiki       `json:"mediawiki" mapstructure:"mediawiki" yaml:"mediawiki"`
	Superset  Superset        `json:"superset"  mapstructure:"superset"  yaml:"superset"`
	Cache     Cache           `json:"cache"     mapstructure:"cache"     yaml:"cache"`
	Profiles  Profiles        `json:"profiles"  mapstructure:"profiles"  yaml:"profiles"`
	Retention RetentionPolicy `json:"retention" mapstructure:"retention" yaml:"retention"`
}

// Database locates the SQLite cache.
type Database struct {
	Path string `json:"path" mapstructure:"path" yaml:"path"`
}

// HTTP configures the web server.
type HTTP struct {
	Listen string `json:"listen" mapstructure:"listen" yaml:"listen"`
}

// Refresh bounds a pending-pages refresh.
type Refresh struct {
	Limit       int `json:"limit"       mapstructure:"limit"       yaml:"limit"`
	Concurrency int `json:"concurrency" mapstructure:"concurrency" yaml:"concurrency"`
}

// Wiki describes a wiki whose pending changes are inspected.
type Wiki struct {
	Code            string   `json:"code"                       mapstructure:"code"             yaml:"code"`
	Name            string   `json:"name"                       mapstructure:"name"             yaml:"name"`
	Family          string   `json:"family,omitempty"           mapstructure:"family"           yaml:"family,omitempty"`
	APIEndpoint     string   `json:"api_endpoint,omitempty"     mapstructure:"api_endpoint"     yaml:"api_endpoint,omitempty"`
	ScriptPath      string   `json:"script_path,omitempty"      mapstructure:"script_path"      yaml:"script_path,omitempty"`
	CategoryAliases []string `json:"category_aliases,omitempty" mapstructure:"category_aliases" yaml:"category_aliases,omitempty"`
}

// MediaWiki configures the action API client.
type MediaWiki struct {
	UserAgent  string        `json:"user_agent"  mapstructure:"user_agent"  yaml:"user_agent"`
	Timeout    time.Duration `json:"timeout"     mapstructure:"timeout"     yaml:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries" yaml:"max_retries"`
}

// Superset configures the SQL Lab client used by the superset source.
type Superset struct {
	URL        string `json:"url"         mapstructure:"url"         yaml:"url"`
	TokenEnv   string `json:"token_env"   mapstructure:"token_env"   yaml:"token_env"`
	DatabaseID int    `json:"database_id" mapstructure:"database_id" yaml:"database_id"`
}

// Cache selects the editor profile cache.
type Cache struct {
	Backend  string        `json:"backend"   mapstructure:"backend"   yaml:"backend"`
	RedisURL string        `json:"redis_url" mapstructure:"redis_url" yaml:"redis_url,omitempty"`
	Size     int           `json:"size"      mapstructure:"size"      yaml:"size"`
	TTL      time.Duration `json:"ttl"       mapstructure:"ttl"       yaml:"ttl"`
}

// Profiles controls how long stored editor profiles stay fresh.
type Profiles struct {
	MaxAge time.Duration `json:"max_age" mapstructure:"max_age" yaml:"max_age"`
}

// RetentionPolicy defines how many autoreview runs to keep.
type RetentionPolicy struct {
	KeepLast int `json:"keep_last,omitempty" mapstructure:"keep_last" yaml:"keep_last,omitempty"`
	KeepDays int `json:"keep_days,omitempty" mapstructure:"keep_days" yaml:"keep_days,omitempty"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		Database: Database{Path: filepath.Join(DefaultDir, "pendingreview.db")},
		HTTP:     HTTP{Listen: DefaultListen},
		Source:   SourceAPI,
		Refresh:  Refresh{Limit: DefaultRefreshLimit, Concurrency: 4},
		Wikis:    DefaultWikis(),
		MediaWiki: MediaWiki{
			UserAgent:  DefaultUserAgent,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Superset: Superset{
			URL:        "https://superset.wmcloud.org",
			TokenEnv:   "SUPERSET_TOKEN",
			DatabaseID: 1,
		},
		Cache:     Cache{Backend: CacheMemory, Size: 4096, TTL: DefaultProfileTTL},
		Profiles:  Profiles{MaxAge: DefaultProfileTTL},
		Retention: RetentionPolicy{KeepLast: 500, KeepDays: 30},
	}
}

// DefaultWikis lists the wikis seeded when none are configured.
func DefaultWikis() []Wiki {
	return []Wiki{
		{Code: "de", Name: "German Wikipedia", CategoryAliases: []string{"Kategorie"}},
		{Code: "en", Name: "English Wikipedia"},
		{Code: "pl", Name: "Polish Wikipedia", CategoryAliases: []string{"Kategoria"}},
		{Code: "fi", Name: "Finnish Wikipedia", CategoryAliases: []string{"Luokka"}},
	}
}

// Normalized fills the derived wiki fields.
func (w Wiki) Normalized() Wiki {
	w.Code = strings.TrimSpace(w.Code)
	if w.Family == "" {
		w.Family = "wikipedia"
	}
	if w.ScriptPath == "" {
		w.ScriptPath = "/w"
	}
	if w.Name == "" {
		w.Name = w.Code + "." + w.Family
	}
	if w.APIEndpoint == "" {
		w.APIEndpoint = fmt.Sprintf("https://%s.%s.org%s/api.php", w.Code, w.Family, w.ScriptPath)
	}
	return w
}

// Validate checks cross-field constraints the schema cannot express.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path must be set"))
	}
	switch c.Source {
	case SourceAPI:
	case SourceSuperset:
		if c.Superset.URL == "" {
			errs = append(errs, errors.New("superset.url must be set when source is superset"))
		}
		if c.Superset.DatabaseID <= 0 {
			errs = append(errs, errors.New("superset.database_id must be > 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("source %q is not one of %s, %s", c.Source, SourceAPI, SourceSuperset))
	}
	if c.Refresh.Concurrency <= 0 {
		errs = append(errs, errors.New("refresh.concurrency must be > 0"))
	}
	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url must be set when cache.backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of %s, %s", c.Cache.Backend, CacheMemory, CacheRedis))
	}
	if c.Cache.Size <= 0 {
		errs = append(errs, errors.New("cache.size must be > 0"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be > 0"))
	}
	seen := make(map[string]struct{}, len(c.Wikis))
	for i, w := range c.Wikis {
		code := strings.TrimSpace(w.Code)
		if code == "" {
			errs = append(errs, fmt.Errorf("wikis[%d].code must be set", i))
			continue
		}
		if _, dup := seen[code]; dup {
			errs = append(errs, fmt.Errorf("wikis[%d].code %q is duplicated", i, code))
		}
		seen[code] = struct{}{}
	}
	return errors.Join(errs...)
}

// DecodeHook converts the string forms used in YAML and environment
// variables into durations and string lists.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToListHook,
	)
}

func stringToListHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	raw, _ := data.(string)
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}
