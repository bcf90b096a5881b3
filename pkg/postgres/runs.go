package postgres

import (
	"context"
	"fmt"

	"github.com/okabe-dev/wardshift/pkg/db"
)

// InsertRun records one completed solve run.
func (d *DB) InsertRun(ctx context.Context, run *db.SolveRun) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO solve_run (id, created_at, status, objective, fairness_slack, weakened_bonus, disabled_soft, plan, roster, memo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, run.ID, run.CreatedAt, run.Status, run.Objective, run.FairnessSlack, run.WeakenedBonus, run.DisabledSoft, run.PlanJSON, run.RosterJSON, run.Memo)
	if err != nil {
		return fmt.Errorf("failed to insert solve run: %w", err)
	}
	return nil
}

// GetRuns retrieves the most recent solve runs, newest first. A non-positive
// limit returns everything.
func (d *DB) GetRuns(ctx context.Context, limit int) ([]db.SolveRun, error) {
	query := `
		SELECT id, created_at, status, objective, fairness_slack, weakened_bonus, disabled_soft, plan, roster, memo
		FROM solve_run
		ORDER BY created_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query solve runs: %w", err)
	}
	defer rows.Close()

	var runs []db.SolveRun
	for rows.Next() {
		var run db.SolveRun
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.Status, &run.Objective,
			&run.FairnessSlack, &run.WeakenedBonus, &run.DisabledSoft,
			&run.PlanJSON, &run.RosterJSON, &run.Memo); err != nil {
			return nil, fmt.Errorf("failed to scan solve run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating solve runs: %w", err)
	}

	return runs, nil
}

// GetRun retrieves a single solve run by id.
func (d *DB) GetRun(ctx context.Context, id string) (*db.SolveRun, error) {
	var run db.SolveRun
	err := d.pool.QueryRow(ctx, `
		SELECT id, created_at, status, objective, fairness_slack, weakened_bonus, disabled_soft, plan, roster, memo
		FROM solve_run
		WHERE id = $1
	`, id).Scan(&run.ID, &run.CreatedAt, &run.Status, &run.Objective,
		&run.FairnessSlack, &run.WeakenedBonus, &run.DisabledSoft,
		&run.PlanJSON, &run.RosterJSON, &run.Memo)
	if err != nil {
		return nil, fmt.Errorf("failed to get solve run %s: %w", id, err)
	}
	return &run, nil
}
