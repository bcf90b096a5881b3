package db

import "time"

// SolveRun is one recorded solve: the plan it ran from, the outcome, and the
// roster it produced. Plan and roster are stored as their JSON snapshot forms
// so a run can be inspected or re-published without re-solving.
type SolveRun struct {
	ID        string
	CreatedAt time.Time

	Status    string
	Objective float64

	// FairnessSlack and WeakenedBonus record the relaxation level the
	// accepted roster was solved at.
	FairnessSlack int
	WeakenedBonus bool
	// DisabledSoft lists the soft records dropped to reach feasibility.
	DisabledSoft []string

	PlanJSON   []byte
	RosterJSON []byte

	Memo string
}
