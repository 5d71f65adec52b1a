package run

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// RetentionPolicy controls run cleanup.
type RetentionPolicy struct {
	KeepLast int
	KeepDays int
}

// PruneResult summarizes a prune operation.
type PruneResult struct {
	Considered int
	Kept       int
	Deleted    int
}

// PruneRuns deletes run records outside the retention policy. A run is kept
// when it is among the newest KeepLast or younger than KeepDays. Rows whose
// timestamp cannot be parsed are always kept.
func PruneRuns(ctx context.Context, db *sql.DB, policy RetentionPolicy, now time.Time, dryRun bool) (PruneResult, error) {
	if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
		return PruneResult{}, nil
	}
	cutoff := time.Time{}
	if policy.KeepDays > 0 {
		cutoff = now.UTC().Add(-time.Duration(policy.KeepDays) * 24 * time.Hour)
	}
	rows, err := db.QueryContext(ctx, `SELECT run_id, created_at FROM autoreview_runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return PruneResult{}, fmt.Errorf("list runs: %w", err)
	}

	type runRow struct {
		id        string
		createdAt time.Time
		parseErr  error
	}
	var runs []runRow
	for rows.Next() {
		var id, createdAt string
		if err := rows.Scan(&id, &createdAt); err != nil {
			_ = rows.Close()
			return PruneResult{}, fmt.Errorf("scan run: %w", err)
		}
		parsed, parseErr := parseTime(createdAt)
		runs = append(runs, runRow{id: id, createdAt: parsed, parseErr: parseErr})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return PruneResult{}, fmt.Errorf("iterate runs: %w", err)
	}
	_ = rows.Close()
	sort.SliceStable(runs, func(i, j int) bool {
		iok, jok := runs[i].parseErr == nil, runs[j].parseErr == nil
		if iok != jok {
			return iok
		}
		return iok && runs[i].createdAt.After(runs[j].createdAt)
	})

	res := PruneResult{Considered: len(runs)}
	for idx, row := range runs {
		keep := row.parseErr != nil || (policy.KeepLast > 0 && idx < policy.KeepLast)
		if !keep && policy.KeepDays > 0 {
			keep = row.createdAt.After(cutoff)
		}
		if keep {
			res.Kept++
			continue
		}
		if !dryRun {
			if _, err := db.ExecContext(ctx, `DELETE FROM autoreview_runs WHERE run_id=?`, row.id); err != nil {
				return res, fmt.Errorf("delete run %s: %w", row.id, err)
			}
		}
		log.Debug().Str("run_id", row.id).Bool("dry_run", dryRun).Msg("pruned run")
		res.Deleted++
	}
	return res, nil
}
