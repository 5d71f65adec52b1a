// Package run records autoreview runs so past dry-run decisions can be
// listed, compared by digest and pruned.
package run

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"github.com/metalagman/pendingreview/internal/autoreview"
)

// ModeDryRun is the only mode runs are recorded in.
const ModeDryRun = "dry-run"

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Record is one page evaluation.
type Record struct {
	RunID     string                      `json:"run_id"`
	WikiID    int64                       `json:"wiki_id"`
	PageID    int64                       `json:"pageid"`
	Title     string                      `json:"title"`
	Mode      string                      `json:"mode"`
	CreatedAt time.Time                   `json:"created_at"`
	Digest    string                      `json:"digest"`
	Approve   int                         `json:"approve"`
	Blocked   int                         `json:"blocked"`
	Manual    int                         `json:"manual"`
	Results   []autoreview.RevisionResult `json:"results,omitempty"`
}

// NewRecord builds a run record for the page's results. The digest is the
// SHA-256 of the results in RFC 8785 canonical JSON, so identical decisions
// yield identical digests.
func NewRecord(wikiID, pageID int64, title string, results []autoreview.RevisionResult, now time.Time) (Record, error) {
	digest, err := Digest(results)
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		RunID:     uuid.NewString(),
		WikiID:    wikiID,
		PageID:    pageID,
		Title:     title,
		Mode:      ModeDryRun,
		CreatedAt: now.UTC(),
		Digest:    digest,
		Results:   results,
	}
	for _, r := range results {
		switch r.Decision.Status {
		case autoreview.DecisionApprove:
			rec.Approve++
		case autoreview.DecisionBlocked:
			rec.Blocked++
		case autoreview.DecisionManual:
			rec.Manual++
		}
	}
	return rec, nil
}

// Digest returns the hex SHA-256 of the canonical JSON form of results.
func Digest(results []autoreview.RevisionResult) (string, error) {
	if results == nil {
		results = []autoreview.RevisionResult{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize results: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// timeLayout is fixed width so created_at sorts in time order as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts RFC 3339 values written before the fixed layout.
func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

// Store persists run records.
type Store struct {
	db *sql.DB
}

// NewStore creates a store for run persistence.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateRun inserts the run record.
func (s *Store) CreateRun(ctx context.Context, rec Record) error {
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("encode run results: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO autoreview_runs(run_id, wiki_id, pageid, title, mode, created_at, digest,
			approve_count, blocked_count, manual_count, results_json)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.WikiID, rec.PageID, rec.Title, rec.Mode, formatTime(rec.CreatedAt), rec.Digest,
		rec.Approve, rec.Blocked, rec.Manual, string(results)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the newest runs first, without their results. A zero
// wikiID lists every wiki; a non-positive limit lists everything.
func (s *Store) ListRuns(ctx context.Context, wikiID int64, limit int) ([]Record, error) {
	query := `SELECT run_id, wiki_id, pageid, title, mode, created_at, digest, approve_count, blocked_count, manual_count
		FROM autoreview_runs WHERE (? = 0 OR wiki_id = ?) ORDER BY created_at DESC, run_id`
	args := []any{wikiID, wikiID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var rec Record
		var createdAt string
		if err := rows.Scan(&rec.RunID, &rec.WikiID, &rec.PageID, &rec.Title, &rec.Mode, &createdAt, &rec.Digest,
			&rec.Approve, &rec.Blocked, &rec.Manual); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.CreatedAt, _ = parseTime(createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Run returns one run including its results.
func (s *Store) Run(ctx context.Context, runID string) (Record, error) {
	var rec Record
	var createdAt, results string
	err := s.db.QueryRowContext(ctx, `SELECT run_id, wiki_id, pageid, title, mode, created_at, digest, approve_count, blocked_count, manual_count, results_json
		FROM autoreview_runs WHERE run_id=?`, runID).
		Scan(&rec.RunID, &rec.WikiID, &rec.PageID, &rec.Title, &rec.Mode, &createdAt, &rec.Digest, &rec.Approve, &rec.Blocked, &rec.Manual, &results)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read run: %w", err)
	}
	rec.CreatedAt, _ = parseTime(createdAt)
	if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
		return Record{}, fmt.Errorf("decode run results: %w", err)
	}
	return rec, nil
}
