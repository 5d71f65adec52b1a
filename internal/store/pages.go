package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/metalagman/pendingreview/internal/autoreview"
)

// PendingPage is a page with unreviewed changes.
type PendingPage struct {
	ID           int64
	WikiID       int64
	PageID       int64
	Title        string
	StableRevID  int64
	PendingSince *time.Time
	FetchedAt    time.Time
	Categories   []string
	Revisions    []PendingRevision
}

// PendingRevision is a revision newer than the page's stable revision.
type PendingRevision struct {
	ID         int64
	PageRowID  int64
	RevID      int64
	ParentID   *int64
	UserName   string
	UserID     *int64
	Timestamp  time.Time
	FetchedAt  time.Time
	AgeAtFetch time.Duration
	SHA1       string
	Comment    string
	ChangeTags []string
	Wikitext   string
	Categories []string
	Superset   *autoreview.SupersetData
}

// Revision converts the cached row into rule engine input.
func (r PendingRevision) Revision() autoreview.Revision {
	return autoreview.Revision{
		RevID:      r.RevID,
		ParentID:   r.ParentID,
		UserName:   r.UserName,
		Timestamp:  r.Timestamp,
		Categories: r.Categories,
		Superset:   r.Superset,
	}
}

// ReplacePendingPages swaps the wiki's cached pages for pages, including
// their revisions, in one transaction. The stored pages are returned with
// their row ids.
func (s *Store) ReplacePendingPages(ctx context.Context, wikiID int64, pages []PendingPage) ([]PendingPage, error) {
	now := s.now()
	out := make([]PendingPage, 0, len(pages))
	err := s.withTx(ctx, "replace pending pages", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_pages WHERE wiki_id=?`, wikiID); err != nil {
			return fmt.Errorf("delete pending pages: %w", err)
		}
		for _, page := range pages {
			categories, err := encodeList(page.Categories)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `INSERT INTO pending_pages(wiki_id, pageid, title, stable_revid, pending_since, fetched_at, categories_json)
				VALUES(?, ?, ?, ?, ?, ?, ?)`,
				wikiID, page.PageID, page.Title, page.StableRevID, nullableTime(page.PendingSince), formatTime(now), categories)
			if err != nil {
				return fmt.Errorf("insert pending page %d: %w", page.PageID, err)
			}
			if page.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("pending page id: %w", err)
			}
			page.WikiID = wikiID
			page.FetchedAt = now
			page.Revisions = append([]PendingRevision(nil), page.Revisions...)
			for i := range page.Revisions {
				page.Revisions[i].PageRowID = page.ID
				if err := upsertRevision(ctx, tx, &page.Revisions[i], now); err != nil {
					return err
				}
			}
			out = append(out, page)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPendingPages returns the wiki's cached pages ordered by title, each
// with its revisions.
func (s *Store) ListPendingPages(ctx context.Context, wikiID int64) ([]PendingPage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, wiki_id, pageid, title, stable_revid, pending_since, fetched_at, categories_json
		FROM pending_pages WHERE wiki_id=? ORDER BY title, pageid`, wikiID)
	if err != nil {
		return nil, fmt.Errorf("list pending pages: %w", err)
	}
	var pages []PendingPage
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate pending pages: %w", err)
	}
	_ = rows.Close()

	for i := range pages {
		if pages[i].Revisions, err = s.PageRevisions(ctx, pages[i].ID); err != nil {
			return nil, err
		}
	}
	return pages, nil
}

// PendingPage returns one cached page, by MediaWiki page id, with its
// revisions.
func (s *Store) PendingPage(ctx context.Context, wikiID, pageID int64) (PendingPage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, wiki_id, pageid, title, stable_revid, pending_since, fetched_at, categories_json
		FROM pending_pages WHERE wiki_id=? AND pageid=?`, wikiID, pageID)
	page, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingPage{}, fmt.Errorf("pending page %d: %w", pageID, ErrNotFound)
	}
	if err != nil {
		return PendingPage{}, err
	}
	if page.Revisions, err = s.PageRevisions(ctx, page.ID); err != nil {
		return PendingPage{}, err
	}
	return page, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(row scanner) (PendingPage, error) {
	var (
		page         PendingPage
		pendingSince sql.NullString
		fetchedAt    string
		categories   string
	)
	if err := row.Scan(&page.ID, &page.WikiID, &page.PageID, &page.Title, &page.StableRevID, &pendingSince, &fetchedAt, &categories); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PendingPage{}, err
		}
		return PendingPage{}, fmt.Errorf("scan pending page: %w", err)
	}
	var err error
	if page.PendingSince, err = parseNullableTime(pendingSince); err != nil {
		return PendingPage{}, err
	}
	if page.FetchedAt, err = parseTime(fetchedAt); err != nil {
		return PendingPage{}, err
	}
	if page.Categories, err = decodeList(categories); err != nil {
		return PendingPage{}, fmt.Errorf("page categories: %w", err)
	}
	return page, nil
}

const revisionColumns = `id, page_id, revid, parentid, user_name, user_id, timestamp, fetched_at, age_at_fetch_seconds,
	sha1, comment, change_tags_json, wikitext, categories_json, superset_data_json`

// PageRevisions returns a page's cached revisions, oldest first.
func (s *Store) PageRevisions(ctx context.Context, pageRowID int64) ([]PendingRevision, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+revisionColumns+` FROM pending_revisions WHERE page_id=? ORDER BY timestamp, revid`, pageRowID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	revisions := []PendingRevision{}
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return revisions, nil
}

func scanRevision(row scanner) (PendingRevision, error) {
	var (
		rev                  PendingRevision
		parentID, userID     sql.NullInt64
		timestamp, fetchedAt string
		ageSeconds           int64
		tags, categories     string
		superset             sql.NullString
	)
	if err := row.Scan(&rev.ID, &rev.PageRowID, &rev.RevID, &parentID, &rev.UserName, &userID, &timestamp, &fetchedAt, &ageSeconds,
		&rev.SHA1, &rev.Comment, &tags, &rev.Wikitext, &categories, &superset); err != nil {
		return PendingRevision{}, fmt.Errorf("scan revision: %w", err)
	}
	rev.ParentID = intPtr(parentID)
	rev.UserID = intPtr(userID)
	rev.AgeAtFetch = time.Duration(ageSeconds) * time.Second
	var err error
	if rev.Timestamp, err = parseTime(timestamp); err != nil {
		return PendingRevision{}, err
	}
	if rev.FetchedAt, err = parseTime(fetchedAt); err != nil {
		return PendingRevision{}, err
	}
	if rev.ChangeTags, err = decodeList(tags); err != nil {
		return PendingRevision{}, fmt.Errorf("change tags: %w", err)
	}
	if rev.Categories, err = decodeList(categories); err != nil {
		return PendingRevision{}, fmt.Errorf("revision categories: %w", err)
	}
	if superset.Valid && superset.String != "" {
		rev.Superset = &autoreview.SupersetData{}
		if err := json.Unmarshal([]byte(superset.String), rev.Superset); err != nil {
			return PendingRevision{}, fmt.Errorf("decode superset data for %d: %w", rev.RevID, err)
		}
	}
	return rev, nil
}

// UpsertRevisions stores revisions of a cached page, replacing any row with
// the same revision id.
func (s *Store) UpsertRevisions(ctx context.Context, pageRowID int64, revisions []PendingRevision) error {
	now := s.now()
	return s.withTx(ctx, "upsert revisions", func(tx *sql.Tx) error {
		for i := range revisions {
			rev := revisions[i]
			rev.PageRowID = pageRowID
			if err := upsertRevision(ctx, tx, &rev, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertRevision(ctx context.Context, tx *sql.Tx, rev *PendingRevision, now time.Time) error {
	tags, err := encodeList(rev.ChangeTags)
	if err != nil {
		return err
	}
	categories, err := encodeList(rev.Categories)
	if err != nil {
		return err
	}
	var superset any
	if rev.Superset != nil {
		data, err := json.Marshal(rev.Superset)
		if err != nil {
			return fmt.Errorf("encode superset data for %d: %w", rev.RevID, err)
		}
		superset = string(data)
	}
	rev.FetchedAt = now
	rev.AgeAtFetch = now.Sub(rev.Timestamp)
	row := tx.QueryRowContext(ctx, `INSERT INTO pending_revisions(page_id, revid, parentid, user_name, user_id, timestamp, fetched_at,
			age_at_fetch_seconds, sha1, comment, change_tags_json, wikitext, categories_json, superset_data_json)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(page_id, revid) DO UPDATE SET
			parentid=excluded.parentid, user_name=excluded.user_name, user_id=excluded.user_id,
			timestamp=excluded.timestamp, fetched_at=excluded.fetched_at,
			age_at_fetch_seconds=excluded.age_at_fetch_seconds, sha1=excluded.sha1, comment=excluded.comment,
			change_tags_json=excluded.change_tags_json, wikitext=excluded.wikitext,
			categories_json=excluded.categories_json, superset_data_json=excluded.superset_data_json
		RETURNING id`,
		rev.PageRowID, rev.RevID, nullableInt(rev.ParentID), rev.UserName, nullableInt(rev.UserID), formatTime(rev.Timestamp),
		formatTime(now), int64(rev.AgeAtFetch/time.Second), rev.SHA1, rev.Comment, tags, rev.Wikitext, categories, superset)
	if err := row.Scan(&rev.ID); err != nil {
		return fmt.Errorf("upsert revision %d: %w", rev.RevID, err)
	}
	return nil
}

// SetRevisionWikitext caches the wikitext of a revision fetched lazily.
func (s *Store) SetRevisionWikitext(ctx context.Context, revisionRowID int64, wikitext string) error {
	return s.updateRevision(ctx, `UPDATE pending_revisions SET wikitext=? WHERE id=?`, wikitext, revisionRowID)
}

// SetRevisionCategories caches the categories parsed from a revision.
func (s *Store) SetRevisionCategories(ctx context.Context, revisionRowID int64, categories []string) error {
	encoded, err := encodeList(categories)
	if err != nil {
		return err
	}
	return s.updateRevision(ctx, `UPDATE pending_revisions SET categories_json=? WHERE id=?`, encoded, revisionRowID)
}

func (s *Store) updateRevision(ctx context.Context, query string, value any, revisionRowID int64) error {
	res, err := s.db.ExecContext(ctx, query, value, revisionRowID)
	if err != nil {
		return fmt.Errorf("update revision %d: %w", revisionRowID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update revision %d: %w", revisionRowID, err)
	}
	if n == 0 {
		return fmt.Errorf("revision %d: %w", revisionRowID, ErrNotFound)
	}
	return nil
}

// ClearCache drops the wiki's cached pages and, by cascade, their revisions.
func (s *Store) ClearCache(ctx context.Context, wikiID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_pages WHERE wiki_id=?`, wikiID); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
