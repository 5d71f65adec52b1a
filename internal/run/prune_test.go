package run

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/metalagman/pendingreview/internal/autoreview"
	internaldb "github.com/metalagman/pendingreview/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := internaldb.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	_, err = database.Exec(`INSERT INTO wikis(name, code, api_endpoint, created_at, updated_at) VALUES('Finnish', 'fi', 'https://fi.wikipedia.org/w/api.php', 'x', 'x')`)
	require.NoError(t, err)
	return database
}

func seedRuns(t *testing.T, store *Store, ages ...time.Duration) []Record {
	t.Helper()
	var out []Record
	for i, age := range ages {
		rec, err := NewRecord(1, int64(i+1), "Page", []autoreview.RevisionResult{}, now.Add(-age))
		require.NoError(t, err)
		require.NoError(t, store.CreateRun(context.Background(), rec))
		out = append(out, rec)
	}
	return out
}

func TestPruneRuns_KeepLast(t *testing.T) {
	t.Parallel()
	database := openTestDB(t)
	store := NewStore(database)
	seedRuns(t, store, time.Hour, 2*time.Hour, 3*time.Hour, 4*time.Hour)

	res, err := PruneRuns(context.Background(), database, RetentionPolicy{KeepLast: 2}, now, false)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{Considered: 4, Kept: 2, Deleted: 2}, res)

	runs, err := store.ListRuns(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(1), runs[0].PageID)
	assert.Equal(t, int64(2), runs[1].PageID)
}

func TestPruneRuns_KeepDaysDryRun(t *testing.T) {
	t.Parallel()
	database := openTestDB(t)
	store := NewStore(database)
	seedRuns(t, store, time.Hour, 3*24*time.Hour, 10*24*time.Hour)

	res, err := PruneRuns(context.Background(), database, RetentionPolicy{KeepDays: 2}, now, true)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{Considered: 3, Kept: 1, Deleted: 2}, res)

	runs, err := store.ListRuns(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3, "dry run must not delete")
}

func TestPruneRuns_KeepsUnparsableTimestamps(t *testing.T) {
	t.Parallel()
	database := openTestDB(t)
	_, err := database.Exec(`INSERT INTO autoreview_runs(run_id, wiki_id, pageid, mode, created_at, digest, results_json)
		VALUES('legacy', 1, 1, 'dry-run', 'yesterday', '', '[]')`)
	require.NoError(t, err)

	res, err := PruneRuns(context.Background(), database, RetentionPolicy{KeepDays: 1}, now, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Kept)
	assert.Zero(t, res.Deleted)
}

func TestPruneRuns_NoPolicyIsNoop(t *testing.T) {
	t.Parallel()
	database := openTestDB(t)
	seedRuns(t, NewStore(database), 100*24*time.Hour)

	res, err := PruneRuns(context.Background(), database, RetentionPolicy{}, now, false)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{}, res)
}
