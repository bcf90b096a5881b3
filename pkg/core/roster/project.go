package roster

import (
	"fmt"
	"math"
	"time"

	"github.com/okabe-dev/wardshift/pkg/core/calendar"
	"github.com/okabe-dev/wardshift/pkg/core/model"
	"github.com/okabe-dev/wardshift/pkg/core/prefs"
)

// DayRow is one projected roster day.
type DayRow struct {
	Date    time.Time
	Holiday bool
	Closed  bool

	// Assigned lists the staff holding each kind, roster order.
	Assigned map[model.ShiftKind][]string
	// Forced marks the names placed by a pin or an absolute request.
	Forced map[model.ShiftKind][]string
	// OffGranted lists, per tier, the off requesters left unassigned.
	OffGranted map[model.Tier][]string
}

// TierScore is a satisfied/applicable tally for one preference tier.
type TierScore struct {
	Satisfied  int
	Applicable int
}

// Fraction returns the satisfaction ratio, 1 when nothing was applicable.
func (t TierScore) Fraction() float64 {
	if t.Applicable == 0 {
		return 1
	}
	return float64(t.Satisfied) / float64(t.Applicable)
}

// StaffSummary aggregates one person's roster.
type StaffSummary struct {
	Name  string
	Grade model.Grade

	Counts       map[model.ShiftKind]int
	Total        int
	HolidayTotal int
	// FatigueEvents counts late shifts followed by a next-day early shift.
	FatigueEvents int

	Strong TierScore
	Weak   TierScore

	// ICUTarget is round(desired ratio x total); ICUActual the placed count.
	// Both zero for juniors.
	ICUTarget int
	ICUActual int
}

// Projection is the final aggregated outcome of a solved run.
type Projection struct {
	Status    Status
	Objective float64
	Days      []DayRow
	Staff     []StaffSummary
}

// Project aggregates a solved report into presentable tables. It re-verifies
// the hard invariants against the raw solution: a violated pin, an ignored
// absolute off, or a base coverage mismatch is an internal error, never
// silently smoothed over.
func Project(cal *calendar.Calendar, staff []model.StaffMember, classified *prefs.Result, settings model.Settings, report *Report) (*Projection, error) {
	if !report.Status.Solved() {
		return nil, fmt.Errorf("cannot project an unsolved run (status %s)", report.Status)
	}
	values := report.Values

	if err := verifyInvariants(cal, staff, settings, report); err != nil {
		return nil, err
	}

	proj := &Projection{
		Status:    report.Status,
		Objective: report.Objective,
	}

	forcedByDay := make(map[int]map[model.ShiftKind][]string)
	for _, f := range report.Model.Forced {
		if forcedByDay[f.DayIndex] == nil {
			forcedByDay[f.DayIndex] = make(map[model.ShiftKind][]string)
		}
		forcedByDay[f.DayIndex][f.Kind] = append(forcedByDay[f.DayIndex][f.Kind], staff[f.StaffIndex].Name)
	}

	offByDay := make(map[int][]prefs.Record)
	for _, rec := range classified.Records {
		if rec.Kind == model.PrefOff {
			offByDay[rec.DayIndex] = append(offByDay[rec.DayIndex], rec)
		}
	}

	for d, day := range cal.Days {
		row := DayRow{
			Date:       day.Date,
			Holiday:    day.Holiday,
			Closed:     day.Closed,
			Assigned:   make(map[model.ShiftKind][]string),
			Forced:     forcedByDay[d],
			OffGranted: make(map[model.Tier][]string),
		}
		for _, kind := range model.AllShiftKinds() {
			for _, i := range values.StaffFor(d, kind) {
				row.Assigned[kind] = append(row.Assigned[kind], staff[i].Name)
			}
		}
		for _, rec := range offByDay[d] {
			if !values.AnyShift(d, rec.StaffIndex) {
				row.OffGranted[rec.Tier] = append(row.OffGranted[rec.Tier], rec.Staff)
			}
		}
		proj.Days = append(proj.Days, row)
	}

	scores := softScores(cal, staff, classified, report.FinalAttempt, values)

	for i, member := range staff {
		summary := StaffSummary{
			Name:   member.Name,
			Grade:  member.Grade,
			Counts: make(map[model.ShiftKind]int),
			Strong: scores[i][model.TierStrong],
			Weak:   scores[i][model.TierWeak],
		}
		for d, day := range cal.Days {
			for _, kind := range model.AllShiftKinds() {
				if values.Holds(d, kind, i) {
					summary.Counts[kind]++
					summary.Total++
					if day.Holiday {
						summary.HolidayTotal++
					}
				}
			}
			if d+1 < len(cal.Days) && values.Holds(d, model.ShiftLate, i) && values.Holds(d+1, model.ShiftEarly, i) {
				summary.FatigueEvents++
			}
		}
		if member.Grade == model.GradeSenior {
			summary.ICUTarget = int(math.Round(member.DesiredICURatio * float64(settings.PerPersonTotal)))
			summary.ICUActual = summary.Counts[model.ShiftICU]
		}
		proj.Staff = append(proj.Staff, summary)
	}

	return proj, nil
}

// RecordSatisfied evaluates one soft record against a solution using the same
// applicability gates the model builder uses for its penalty terms. A record
// whose penalty could never enter the objective (closed slot, ineligible
// grade) is reported not applicable rather than unsatisfied.
func RecordSatisfied(rec prefs.Record, grade model.Grade, day calendar.DayCapacity, values Assignment) (satisfied, applicable bool) {
	d, i := rec.DayIndex, rec.StaffIndex
	switch rec.Kind {
	case model.PrefOff:
		return !values.AnyShift(d, i), true
	case model.PrefEarly:
		return values.Holds(d, model.ShiftEarly, i), day.SlotOpen(model.ShiftEarly)
	case model.PrefLate:
		return values.Holds(d, model.ShiftLate, i), day.SlotOpen(model.ShiftLate)
	case model.PrefDay1:
		return values.Holds(d, model.ShiftDay1, i), day.SlotOpen(model.ShiftDay1)
	case model.PrefDay2:
		return values.Holds(d, model.ShiftDay2, i), day.AllowDay2
	case model.PrefDay:
		return values.Holds(d, model.ShiftDay1, i) || values.Holds(d, model.ShiftDay2, i),
			day.SlotOpen(model.ShiftDay1) || day.AllowDay2
	case model.PrefICU:
		return values.Holds(d, model.ShiftICU, i), grade == model.GradeSenior && day.AllowICU
	case model.PrefVacation:
		return values.Holds(d, model.ShiftVacation, i), true
	}
	return false, false
}

// softScores tallies per-staff per-tier satisfaction for the strong and weak
// records still active in the final attempt.
func softScores(cal *calendar.Calendar, staff []model.StaffMember, classified *prefs.Result, attempt Attempt, values Assignment) map[int]map[model.Tier]TierScore {
	scores := make(map[int]map[model.Tier]TierScore, len(staff))
	for i := range staff {
		scores[i] = map[model.Tier]TierScore{
			model.TierStrong: {},
			model.TierWeak:   {},
		}
	}
	for _, rec := range classified.Records {
		if rec.Tier == model.TierAbsolute || attempt.Disabled(rec.ID) {
			continue
		}
		satisfied, applicable := RecordSatisfied(rec, staff[rec.StaffIndex].Grade, cal.Days[rec.DayIndex], values)
		if !applicable {
			continue
		}
		score := scores[rec.StaffIndex][rec.Tier]
		score.Applicable++
		if satisfied {
			score.Satisfied++
		}
		scores[rec.StaffIndex][rec.Tier] = score
	}
	return scores
}

// verifyInvariants re-checks the hard constraints the solver was given. Any
// failure here means the builder and solver disagree and the result cannot be
// trusted.
func verifyInvariants(cal *calendar.Calendar, staff []model.StaffMember, settings model.Settings, report *Report) error {
	values := report.Values

	for d, day := range cal.Days {
		for i := range staff {
			held := 0
			for _, kind := range model.AllShiftKinds() {
				if values.Holds(d, kind, i) {
					held++
				}
			}
			if held > 1 {
				return fmt.Errorf("internal consistency: %s holds %d kinds on %s",
					staff[i].Name, held, day.Date.Format("2006-01-02"))
			}
		}
		for _, base := range model.BaseShiftKinds() {
			if got := len(values.StaffFor(d, base)); got != day.Required[base] {
				return fmt.Errorf("internal consistency: %s coverage on %s is %d, want %d",
					base, day.Date.Format("2006-01-02"), got, day.Required[base])
			}
		}
	}

	for i, member := range staff {
		total := 0
		for d := range cal.Days {
			for _, kind := range model.AllShiftKinds() {
				if values.Holds(d, kind, i) {
					total++
				}
			}
		}
		if total != settings.PerPersonTotal {
			return fmt.Errorf("internal consistency: %s received %d assignments, want %d",
				member.Name, total, settings.PerPersonTotal)
		}
	}

	for _, f := range report.Model.Forced {
		if !values.Holds(f.DayIndex, f.Kind, f.StaffIndex) {
			return fmt.Errorf("internal consistency: forced %s for %s on %s not honored",
				f.Kind, staff[f.StaffIndex].Name, cal.Days[f.DayIndex].Date.Format("2006-01-02"))
		}
	}
	for key := range report.Model.OffForced {
		if values.AnyShift(key[0], key[1]) {
			return fmt.Errorf("internal consistency: %s assigned on %s despite an absolute off",
				staff[key[1]].Name, cal.Days[key[0]].Date.Format("2006-01-02"))
		}
	}

	return nil
}
