package roster

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okabe-dev/wardshift/pkg/core/model"
)

// Status is the normalized outcome of one solve attempt.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusInfeasible Status = "infeasible"
	// StatusUnknown means the solver ran out of budget before proving
	// anything. The recovery controller treats it like infeasible when
	// deciding transitions but reports it distinctly.
	StatusUnknown Status = "unknown"
)

// Solved reports whether the attempt produced a usable roster.
func (s Status) Solved() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Attempt parameterizes one model build. The recovery controller mutates only
// these knobs between attempts; everything else about the model is fixed for
// the run.
type Attempt struct {
	// FairnessSlack is the pairwise weekend/holiday tolerance among juniors
	// for this attempt.
	FairnessSlack int
	// WeakenPlacementBonus halves the optional-shift placement bonus.
	WeakenPlacementBonus bool
	// DisabledSoft removes the named strong/weak records from the
	// objective. The set only ever grows across a run.
	DisabledSoft map[uuid.UUID]bool
	// IgnoreAbsolute, when non-zero, drops a single absolute record from
	// the model. Used only by the diagnostic probe.
	IgnoreAbsolute uuid.UUID
}

// Disabled reports whether a soft record is excluded from this attempt.
func (a Attempt) Disabled(id uuid.UUID) bool {
	return a.DisabledSoft[id]
}

// Clone returns a copy whose DisabledSoft set can be grown independently.
func (a Attempt) Clone() Attempt {
	out := a
	out.DisabledSoft = make(map[uuid.UUID]bool, len(a.DisabledSoft))
	for id := range a.DisabledSoft {
		out.DisabledSoft[id] = true
	}
	return out
}

// SolveOptions are the solver budget and reproducibility knobs for a run.
type SolveOptions struct {
	TimeBudget time.Duration
	// Workers is the parallel search width used when not deterministic.
	Workers int
	// Deterministic pins the search to a single worker with a fixed seed
	// so identical inputs reproduce identical rosters.
	Deterministic bool
	Seed          int64
}

// OptionsFromSettings lifts the solver knobs out of the run settings.
func OptionsFromSettings(s model.Settings) SolveOptions {
	return SolveOptions{
		TimeBudget:    s.TimeBudget,
		Workers:       s.Workers,
		Deterministic: s.Deterministic,
		Seed:          s.Seed,
	}
}

// Assignment is the extracted 0/1 solution: [day][kind][staff]. The kind axis
// follows model.AllShiftKinds order.
type Assignment [][][]bool

// Holds reports whether staff i holds the given kind on day d.
func (a Assignment) Holds(d int, kind model.ShiftKind, i int) bool {
	return a[d][KindIndex(kind)][i]
}

// StaffFor returns the staff indices holding a kind on a day.
func (a Assignment) StaffFor(d int, kind model.ShiftKind) []int {
	var out []int
	for i, held := range a[d][KindIndex(kind)] {
		if held {
			out = append(out, i)
		}
	}
	return out
}

// AnyShift reports whether staff i holds any kind (leave included) on day d.
func (a Assignment) AnyShift(d, i int) bool {
	for k := range a[d] {
		if a[d][k][i] {
			return true
		}
	}
	return false
}

// Result is one solve outcome. Values and Objective are only meaningful when
// Status.Solved().
type Result struct {
	Status    Status
	Objective float64
	Values    Assignment
}

// Solver runs one built model under a budget. Implementations must return
// StatusUnknown rather than block when the budget expires.
type Solver interface {
	Solve(ctx context.Context, m *Model, opts SolveOptions) (*Result, error)
}

// BuildFunc builds the model for one attempt. The recovery controller depends
// on this instead of a concrete builder so it can be exercised without the
// underlying solver toolchain.
type BuildFunc func(attempt Attempt) (*Model, error)

var kindToIndex = func() map[model.ShiftKind]int {
	m := make(map[model.ShiftKind]int)
	for i, k := range model.AllShiftKinds() {
		m[k] = i
	}
	return m
}()

// KindIndex returns the fixed axis index of a shift kind.
func KindIndex(kind model.ShiftKind) int {
	return kindToIndex[kind]
}
