package roster

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/okabe-dev/wardshift/pkg/core/model"
	"github.com/okabe-dev/wardshift/pkg/core/prefs"
)

// State names one rung of the relaxation ladder. The ladder is strictly
// monotonic: a relaxation applied on one rung stays applied on every later
// rung, so each rung's model accepts a superset of the previous rung's
// rosters.
type State string

const (
	StateStrict        State = "strict"
	StateRelaxedSlack  State = "relaxed_slack"
	StateWeakenedBonus State = "weakened_bonus"
	StateDropWeak      State = "drop_weak"
	StateDropStrong    State = "drop_strong"
	StateDiagnose      State = "diagnose"
)

// Transition records one build+solve attempt for the final report.
type Transition struct {
	State     State
	Attempt   Attempt
	Status    Status
	Objective float64
	// Disabled is the record newly dropped for this attempt, if any.
	Disabled uuid.UUID
	// Probed is the absolute record singly ignored, for diagnose attempts.
	Probed uuid.UUID
}

// Report is the outcome of a full recovery run: either a roster plus the
// concessions made to reach it, or a diagnosis of what blocks one.
type Report struct {
	Status    Status
	Objective float64
	Values    Assignment
	Model     *Model

	FinalState   State
	FinalAttempt Attempt
	Transitions  []Transition

	// DisabledSoft lists the strong/weak records dropped to reach the
	// result, in the order they were dropped.
	DisabledSoft []prefs.Record

	// BlockingCandidates are the absolute records whose sole removal made
	// the model solvable during the diagnostic probe. NoSingleBlocker set
	// with an empty list means the conflict needs more than one record
	// removed.
	BlockingCandidates []prefs.Record
	NoSingleBlocker    bool

	// SawUnknown notes that at least one attempt exhausted its budget
	// without a verdict; such attempts were treated as infeasible.
	SawUnknown bool
}

// Controller walks the relaxation ladder, rebuilding and re-solving the model
// at each rung until a roster appears or the ladder is exhausted.
type Controller struct {
	build  BuildFunc
	solver Solver
	opts   SolveOptions

	strictSlack  int
	relaxedSlack int

	classified *prefs.Result
	logger     *zap.Logger
}

func NewController(build BuildFunc, solver Solver, opts SolveOptions, settings model.Settings, classified *prefs.Result, logger *zap.Logger) *Controller {
	return &Controller{
		build:        build,
		solver:       solver,
		opts:         opts,
		strictSlack:  settings.FairnessSlack,
		relaxedSlack: settings.RelaxedSlack,
		classified:   classified,
		logger:       logger,
	}
}

// Run executes the ladder. It returns an error only for internal failures
// (build or solver errors); an unsolvable model is a valid Report with
// Status infeasible and a diagnosis attached.
func (c *Controller) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	solveOnce := func(state State, attempt Attempt, disabled, probed uuid.UUID) (*Result, *Model, error) {
		m, err := c.build(attempt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build model for state %s: %w", state, err)
		}
		res, err := c.solver.Solve(ctx, m, c.opts)
		if err != nil {
			return nil, nil, fmt.Errorf("solve failed in state %s: %w", state, err)
		}
		if res.Status == StatusUnknown {
			report.SawUnknown = true
		}
		report.Transitions = append(report.Transitions, Transition{
			State: state, Attempt: attempt, Status: res.Status,
			Objective: res.Objective, Disabled: disabled, Probed: probed,
		})
		c.logger.Info("recovery attempt",
			zap.String("state", string(state)),
			zap.String("status", string(res.Status)),
			zap.Int("fairnessSlack", attempt.FairnessSlack),
			zap.Int("disabledSoft", len(attempt.DisabledSoft)),
		)
		return res, m, nil
	}

	succeed := func(state State, attempt Attempt, res *Result, m *Model) *Report {
		report.Status = res.Status
		report.Objective = res.Objective
		report.Values = res.Values
		report.Model = m
		report.FinalState = state
		report.FinalAttempt = attempt
		return report
	}

	attempt := Attempt{
		FairnessSlack: c.strictSlack,
		DisabledSoft:  make(map[uuid.UUID]bool),
	}

	// Rungs that change only the attempt knobs.
	ladder := []struct {
		state State
		apply func(*Attempt)
	}{
		{StateStrict, func(*Attempt) {}},
		{StateRelaxedSlack, func(a *Attempt) { a.FairnessSlack = c.relaxedSlack }},
		{StateWeakenedBonus, func(a *Attempt) { a.WeakenPlacementBonus = true }},
	}
	for _, rung := range ladder {
		rung.apply(&attempt)
		res, m, err := solveOnce(rung.state, attempt.Clone(), uuid.Nil, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if res.Status.Solved() {
			return succeed(rung.state, attempt, res, m), nil
		}
	}

	// Greedy cumulative soft-record disabling, weak tier first. Records go
	// in stored order and stay disabled once dropped.
	for _, stage := range []struct {
		state State
		tier  model.Tier
	}{
		{StateDropWeak, model.TierWeak},
		{StateDropStrong, model.TierStrong},
	} {
		for _, rec := range c.classified.ByTier(stage.tier) {
			attempt.DisabledSoft[rec.ID] = true
			report.DisabledSoft = append(report.DisabledSoft, rec)
			res, m, err := solveOnce(stage.state, attempt.Clone(), rec.ID, uuid.Nil)
			if err != nil {
				return nil, err
			}
			if res.Status.Solved() {
				return succeed(stage.state, attempt, res, m), nil
			}
		}
	}

	// Terminal diagnosis: probe each surviving absolute alone, at the most
	// relaxed level reached. Pins are never probed.
	for _, rec := range c.classified.ByTier(model.TierAbsolute) {
		probe := attempt.Clone()
		probe.IgnoreAbsolute = rec.ID
		res, _, err := solveOnce(StateDiagnose, probe, uuid.Nil, rec.ID)
		if err != nil {
			return nil, err
		}
		if res.Status.Solved() {
			report.BlockingCandidates = append(report.BlockingCandidates, rec)
		}
	}
	report.NoSingleBlocker = len(report.BlockingCandidates) == 0

	report.Status = StatusInfeasible
	report.FinalState = StateDiagnose
	report.FinalAttempt = attempt
	return report, nil
}
