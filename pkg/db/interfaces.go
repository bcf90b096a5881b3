package db

import "context"

// RunStore defines the interface for solve-run history operations.
// postgres.DB implements this interface; tests substitute struct fakes.
type RunStore interface {
	InsertRun(ctx context.Context, run *SolveRun) error
	GetRuns(ctx context.Context, limit int) ([]SolveRun, error)
	GetRun(ctx context.Context, id string) (*SolveRun, error)
}
