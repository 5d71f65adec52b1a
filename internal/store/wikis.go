package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/metalagman/pendingreview/internal/autoreview"
)

// Wiki is a project whose pending changes are inspected.
type Wiki struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Family      string `json:"family"`
	APIEndpoint string `json:"api_endpoint"`
	ScriptPath  string `json:"script_path"`
}

// EnsureWikis inserts every wiki whose code is not stored yet. Existing rows
// are left untouched.
func (s *Store) EnsureWikis(ctx context.Context, wikis []Wiki) error {
	now := formatTime(s.now())
	return s.withTx(ctx, "ensure wikis", func(tx *sql.Tx) error {
		for _, w := range wikis {
			if _, err := tx.ExecContext(ctx, `INSERT INTO wikis(name, code, family, api_endpoint, script_path, created_at, updated_at)
				VALUES(?, ?, ?, ?, ?, ?, ?) ON CONFLICT(code) DO NOTHING`,
				w.Name, w.Code, w.Family, w.APIEndpoint, w.ScriptPath, now, now); err != nil {
				return fmt.Errorf("insert wiki %s: %w", w.Code, err)
			}
		}
		return nil
	})
}

// ListWikis returns every wiki ordered by code.
func (s *Store) ListWikis(ctx context.Context) ([]Wiki, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, code, family, api_endpoint, script_path FROM wikis ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list wikis: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Wiki
	for rows.Next() {
		var w Wiki
		if err := rows.Scan(&w.ID, &w.Name, &w.Code, &w.Family, &w.APIEndpoint, &w.ScriptPath); err != nil {
			return nil, fmt.Errorf("scan wiki: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wikis: %w", err)
	}
	return out, nil
}

// Wiki returns the wiki with the given id.
func (s *Store) Wiki(ctx context.Context, id int64) (Wiki, error) {
	return s.scanWiki(s.db.QueryRowContext(ctx, `SELECT id, name, code, family, api_endpoint, script_path FROM wikis WHERE id=?`, id))
}

// WikiByCode returns the wiki with the given language code.
func (s *Store) WikiByCode(ctx context.Context, code string) (Wiki, error) {
	return s.scanWiki(s.db.QueryRowContext(ctx, `SELECT id, name, code, family, api_endpoint, script_path FROM wikis WHERE code=?`, code))
}

func (s *Store) scanWiki(row *sql.Row) (Wiki, error) {
	var w Wiki
	err := row.Scan(&w.ID, &w.Name, &w.Code, &w.Family, &w.APIEndpoint, &w.ScriptPath)
	if errors.Is(err, sql.ErrNoRows) {
		return Wiki{}, fmt.Errorf("wiki: %w", ErrNotFound)
	}
	if err != nil {
		return Wiki{}, fmt.Errorf("read wiki: %w", err)
	}
	return w, nil
}

// Configuration returns the wiki's autoreview configuration. A wiki that was
// never configured gets empty lists.
func (s *Store) Configuration(ctx context.Context, wikiID int64) (autoreview.WikiConfiguration, error) {
	var blocking, groups string
	err := s.db.QueryRowContext(ctx, `SELECT blocking_categories_json, auto_approved_groups_json FROM wiki_configurations WHERE wiki_id=?`, wikiID).
		Scan(&blocking, &groups)
	if errors.Is(err, sql.ErrNoRows) {
		return autoreview.WikiConfiguration{AutoApprovedGroups: []string{}, BlockingCategories: []string{}}, nil
	}
	if err != nil {
		return autoreview.WikiConfiguration{}, fmt.Errorf("read configuration: %w", err)
	}
	cfg := autoreview.WikiConfiguration{}
	if cfg.BlockingCategories, err = decodeList(blocking); err != nil {
		return autoreview.WikiConfiguration{}, fmt.Errorf("blocking categories: %w", err)
	}
	if cfg.AutoApprovedGroups, err = decodeList(groups); err != nil {
		return autoreview.WikiConfiguration{}, fmt.Errorf("auto-approved groups: %w", err)
	}
	return cfg, nil
}

// UpdateConfiguration stores the wiki's autoreview configuration.
func (s *Store) UpdateConfiguration(ctx context.Context, wikiID int64, cfg autoreview.WikiConfiguration) error {
	blocking, err := encodeList(cfg.BlockingCategories)
	if err != nil {
		return err
	}
	groups, err := encodeList(cfg.AutoApprovedGroups)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO wiki_configurations(wiki_id, blocking_categories_json, auto_approved_groups_json, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(wiki_id) DO UPDATE SET
			blocking_categories_json=excluded.blocking_categories_json,
			auto_approved_groups_json=excluded.auto_approved_groups_json,
			updated_at=excluded.updated_at`,
		wikiID, blocking, groups, formatTime(s.now())); err != nil {
		return fmt.Errorf("update configuration: %w", err)
	}
	return nil
}
