package model

import "time"

// Grade is a staff member's training tier.
type Grade string

const (
	// GradeJunior (J1) staff are ineligible for ICU shifts and form the
	// weekend-fairness cohort.
	GradeJunior Grade = "J1"
	// GradeSenior (J2) staff may rotate through ICU and carry a desired
	// ICU ratio.
	GradeSenior Grade = "J2"
)

func (g Grade) IsValid() bool {
	return g == GradeJunior || g == GradeSenior
}

// ShiftKind is one of the mutually exclusive shift types a staff member may
// hold on a given day.
type ShiftKind string

const (
	ShiftEarly    ShiftKind = "early"
	ShiftDay1     ShiftKind = "day1"
	ShiftDay2     ShiftKind = "day2"
	ShiftDay3     ShiftKind = "day3"
	ShiftLate     ShiftKind = "late"
	ShiftICU      ShiftKind = "icu"
	ShiftVacation ShiftKind = "vacation"
)

// AllShiftKinds returns every shift kind in canonical order. The order is
// load-bearing: it fixes the kind axis of the assignment matrix.
func AllShiftKinds() []ShiftKind {
	return []ShiftKind{ShiftEarly, ShiftDay1, ShiftDay2, ShiftDay3, ShiftLate, ShiftICU, ShiftVacation}
}

// BaseShiftKinds are the kinds required exactly once per day unless a per-day
// override suppresses them.
func BaseShiftKinds() []ShiftKind {
	return []ShiftKind{ShiftEarly, ShiftDay1, ShiftLate}
}

func (k ShiftKind) IsValid() bool {
	for _, known := range AllShiftKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// IsBase reports whether the kind is one of the daily-required base kinds.
func (k ShiftKind) IsBase() bool {
	return k == ShiftEarly || k == ShiftDay1 || k == ShiftLate
}

// Tier is the strength of a preference request.
type Tier string

const (
	// TierAbsolute requests become hard constraints.
	TierAbsolute Tier = "A"
	// TierStrong and TierWeak requests become weighted objective penalties.
	TierStrong Tier = "B"
	TierWeak   Tier = "C"
)

func (t Tier) IsValid() bool {
	return t == TierAbsolute || t == TierStrong || t == TierWeak
}

// PreferenceKind is what a preference request asks for. It is a superset of
// the shift kinds: "off" asks for no assignment at all and "day" asks for any
// daytime kind (day1 or day2).
type PreferenceKind string

const (
	PrefOff      PreferenceKind = "off"
	PrefEarly    PreferenceKind = "early"
	PrefLate     PreferenceKind = "late"
	PrefDay      PreferenceKind = "day"
	PrefDay1     PreferenceKind = "day1"
	PrefDay2     PreferenceKind = "day2"
	PrefICU      PreferenceKind = "icu"
	PrefVacation PreferenceKind = "vacation"
)

func (k PreferenceKind) IsValid() bool {
	switch k {
	case PrefOff, PrefEarly, PrefLate, PrefDay, PrefDay1, PrefDay2, PrefICU, PrefVacation:
		return true
	}
	return false
}

// StaffMember is one person on the roster. Immutable for the duration of a
// solve.
type StaffMember struct {
	Name string
	// Grade is the role tier. Juniors never hold ICU.
	Grade Grade
	// DesiredICURatio is the fraction of the per-person total the member
	// would like to spend in ICU. Meaningful only for seniors; forced to
	// zero for juniors.
	DesiredICURatio float64
}

// PreferenceRequest is a raw (day, staff, kind, tier) request as supplied by
// the data-entry layer, before classification.
type PreferenceRequest struct {
	Date  time.Time
	Staff string
	Kind  PreferenceKind
	Tier  Tier
}

// PinnedAssignment is an externally supplied fixed assignment. Pins carry
// absolute strength and are applied before preferences.
type PinnedAssignment struct {
	Date  time.Time
	Staff string
	Shift ShiftKind
}

// Weights are the non-negative soft-objective weights. They are scaled to
// integers before entering the solver.
type Weights struct {
	// Day2Weekday and Day3Weekday reward placing the optional daytime
	// kinds on days they are allowed; BonusDay variants add extra reward
	// on the designated weekday.
	Day2Weekday float64
	Day2Bonus   float64
	Day3Weekday float64
	Day3Bonus   float64
	// ICURatio weighs each senior's deviation from their declared ICU
	// ratio target.
	ICURatio float64
	// PrefStrong and PrefWeak are the miss penalties for tiers B and C.
	PrefStrong float64
	PrefWeak   float64
	// Fatigue penalizes a late shift immediately followed by an early
	// shift the next day.
	Fatigue float64
}

// Settings is the immutable numeric configuration for one run. It is passed
// explicitly into every model-build attempt; nothing in the pipeline reads
// ambient process state.
type Settings struct {
	// PerPersonTotal is the exact number of assignments (leave included)
	// every staff member must receive over the period.
	PerPersonTotal int
	// MaxConsecutive is the sliding-window cap on consecutive working days.
	MaxConsecutive int

	AllowDay3       bool
	AllowWeekendICU bool
	// Caps on ICU placements falling on weekend/holiday days. Only
	// consulted when AllowWeekendICU is set.
	MaxWeekendICUTotal     int
	MaxWeekendICUPerPerson int

	// FairnessSlack is the strict pairwise weekend/holiday tolerance among
	// juniors; RelaxedSlack is what the recovery controller widens it to.
	FairnessSlack int
	RelaxedSlack  int

	// BonusWeekday is the single weekday that earns the extra placement
	// bonus for optional daytime kinds.
	BonusWeekday time.Weekday

	EnableFatigue bool
	Weights       Weights

	// Solver budget and reproducibility knobs.
	TimeBudget    time.Duration
	Workers       int
	Deterministic bool
	Seed          int64
}

// DefaultSettings mirrors the production defaults of the scheduling service.
func DefaultSettings() Settings {
	return Settings{
		PerPersonTotal:         22,
		MaxConsecutive:         5,
		AllowDay3:              false,
		AllowWeekendICU:        false,
		MaxWeekendICUTotal:     0,
		MaxWeekendICUPerPerson: 0,
		FairnessSlack:          1,
		RelaxedSlack:           2,
		BonusWeekday:           time.Wednesday,
		EnableFatigue:          true,
		Weights: Weights{
			Day2Weekday: 6.0,
			Day2Bonus:   8.0,
			Day3Weekday: 6.0,
			Day3Bonus:   8.0,
			ICURatio:    6.0,
			PrefStrong:  25.0,
			PrefWeak:    12.0,
			Fatigue:     12.0,
		},
		TimeBudget:    20 * time.Second,
		Workers:       8,
		Deterministic: true,
		Seed:          42,
	}
}
