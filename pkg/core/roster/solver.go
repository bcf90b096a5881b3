package roster

import (
	"context"
	"fmt"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	sppb "github.com/google/or-tools/ortools/sat/proto/satparameters"

	"github.com/okabe-dev/wardshift/pkg/core/model"
)

// CPSolver runs built models through the CP-SAT engine. It is stateless; the
// per-attempt knobs all arrive via SolveOptions.
type CPSolver struct {
	logger *zap.Logger
}

func NewCPSolver(logger *zap.Logger) *CPSolver {
	return &CPSolver{logger: logger}
}

// Solve runs one attempt under the time budget. A budget expiry surfaces as
// StatusUnknown, never as a hang; the engine enforces the wall clock itself.
func (s *CPSolver) Solve(ctx context.Context, m *Model, opts SolveOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("solve aborted before start: %w", err)
	}

	params := &sppb.SatParameters{
		MaxTimeInSeconds: proto.Float64(opts.TimeBudget.Seconds()),
	}
	if opts.Deterministic {
		// Reproducibility needs a single worker: parallel portfolios race
		// and return whichever solution lands first.
		params.NumSearchWorkers = proto.Int32(1)
		params.RandomSeed = proto.Int32(int32(opts.Seed))
	} else {
		params.NumSearchWorkers = proto.Int32(int32(opts.Workers))
	}

	response, err := cpmodel.SolveCpModelWithParameters(m.Proto, params)
	if err != nil {
		return nil, fmt.Errorf("failed to solve the model: %w", err)
	}

	status, err := mapStatus(response.GetStatus())
	if err != nil {
		return nil, err
	}

	s.logger.Debug("solve attempt finished",
		zap.String("status", string(status)),
		zap.Float64("objective", response.GetObjectiveValue()),
		zap.Int("fairnessSlack", m.Attempt.FairnessSlack),
		zap.Bool("weakenedBonus", m.Attempt.WeakenPlacementBonus),
		zap.Int("disabledSoft", len(m.Attempt.DisabledSoft)),
	)

	result := &Result{Status: status}
	if status.Solved() {
		result.Objective = response.GetObjectiveValue()
		result.Values = extractValues(response, m)
	}
	return result, nil
}

func mapStatus(status cmpb.CpSolverStatus) (Status, error) {
	switch status {
	case cmpb.CpSolverStatus_OPTIMAL:
		return StatusOptimal, nil
	case cmpb.CpSolverStatus_FEASIBLE:
		return StatusFeasible, nil
	case cmpb.CpSolverStatus_INFEASIBLE:
		return StatusInfeasible, nil
	case cmpb.CpSolverStatus_MODEL_INVALID:
		// An invalid model is a bug in the builder, not an input problem.
		return "", fmt.Errorf("solver rejected the model as invalid")
	default:
		return StatusUnknown, nil
	}
}

func extractValues(response *cmpb.CpSolverResponse, m *Model) Assignment {
	kinds := len(model.AllShiftKinds())
	values := make(Assignment, len(m.X))
	for d := range m.X {
		values[d] = make([][]bool, kinds)
		for k := range m.X[d] {
			values[d][k] = make([]bool, len(m.X[d][k]))
			for i, v := range m.X[d][k] {
				values[d][k][i] = cpmodel.SolutionBooleanValue(response, v)
			}
		}
	}
	return values
}
