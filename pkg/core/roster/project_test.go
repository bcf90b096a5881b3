package roster

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabe-dev/wardshift/pkg/core/calendar"
	"github.com/okabe-dev/wardshift/pkg/core/model"
	"github.com/okabe-dev/wardshift/pkg/core/prefs"
)

// projectFixture builds a hand-checked 4-day solved run: every day staffs the
// three base slots, every person works exactly 3 of the 4 days.
type projectFixture struct {
	cal        *calendar.Calendar
	staff      []model.StaffMember
	settings   model.Settings
	classified *prefs.Result
	report     *Report
}

func newProjectFixture(t *testing.T) *projectFixture {
	t.Helper()

	cal, err := calendar.Derive(calendar.DeriveInput{
		Start: testDate(2025, time.September, 1),
		End:   testDate(2025, time.September, 4),
	})
	require.NoError(t, err)

	staff := []model.StaffMember{
		{Name: "Aoki", Grade: model.GradeJunior},
		{Name: "Baba", Grade: model.GradeJunior},
		{Name: "Chiba", Grade: model.GradeSenior, DesiredICURatio: 0.5},
		{Name: "Doi", Grade: model.GradeSenior},
	}

	settings := model.DefaultSettings()
	settings.PerPersonTotal = 3

	values := emptyAssignment(len(cal.Days), len(staff))
	assign := func(d int, kind model.ShiftKind, i int) {
		values[d][KindIndex(kind)][i] = true
	}
	// Day 0: Aoki off. Day 1: Baba off. Day 2: Chiba off. Day 3: Doi off.
	assign(0, model.ShiftEarly, 1)
	assign(0, model.ShiftDay1, 2)
	assign(0, model.ShiftLate, 3)
	assign(1, model.ShiftEarly, 3) // late day 0 -> early day 1: fatigue for Doi
	assign(1, model.ShiftDay1, 2)
	assign(1, model.ShiftLate, 0)
	assign(2, model.ShiftEarly, 1)
	assign(2, model.ShiftDay1, 3)
	assign(2, model.ShiftLate, 0)
	assign(3, model.ShiftEarly, 1)
	assign(3, model.ShiftDay1, 2)
	assign(3, model.ShiftLate, 0)

	return &projectFixture{
		cal:        cal,
		staff:      staff,
		settings:   settings,
		classified: &prefs.Result{},
		report: &Report{
			Status:    StatusOptimal,
			Objective: 1234,
			Values:    values,
			Model:     &Model{OffForced: make(map[[2]int]uuid.UUID)},
		},
	}
}

func emptyAssignment(days, people int) Assignment {
	values := make(Assignment, days)
	for d := range values {
		values[d] = make([][]bool, len(model.AllShiftKinds()))
		for k := range values[d] {
			values[d][k] = make([]bool, people)
		}
	}
	return values
}

func TestProject_DayRowsAndSummaries(t *testing.T) {
	f := newProjectFixture(t)

	proj, err := Project(f.cal, f.staff, f.classified, f.settings, f.report)
	require.NoError(t, err)

	assert.Equal(t, StatusOptimal, proj.Status)
	assert.Equal(t, float64(1234), proj.Objective)
	require.Len(t, proj.Days, 4)
	require.Len(t, proj.Staff, 4)

	assert.Equal(t, []string{"Baba"}, proj.Days[0].Assigned[model.ShiftEarly])
	assert.Equal(t, []string{"Chiba"}, proj.Days[0].Assigned[model.ShiftDay1])
	assert.Equal(t, []string{"Doi"}, proj.Days[0].Assigned[model.ShiftLate])
	assert.Empty(t, proj.Days[0].Assigned[model.ShiftICU])

	aoki := proj.Staff[0]
	assert.Equal(t, 3, aoki.Total)
	assert.Equal(t, 3, aoki.Counts[model.ShiftLate])
	assert.Equal(t, 0, aoki.FatigueEvents)
	assert.Equal(t, 0, aoki.HolidayTotal)

	doi := proj.Staff[3]
	assert.Equal(t, 1, doi.FatigueEvents, "late day 0 into early day 1")

	// Chiba wants half of 3 assignments in ICU but got none placed.
	chiba := proj.Staff[2]
	assert.Equal(t, 2, chiba.ICUTarget)
	assert.Equal(t, 0, chiba.ICUActual)

	// Juniors carry no ICU target.
	assert.Equal(t, 0, aoki.ICUTarget)
}

func TestProject_OffGrantedAndScores(t *testing.T) {
	f := newProjectFixture(t)
	f.classified = &prefs.Result{
		Records: []prefs.Record{
			// Aoki is free on day 0: granted.
			{ID: uuid.New(), DayIndex: 0, StaffIndex: 0, Staff: "Aoki", Kind: model.PrefOff, Tier: model.TierWeak},
			// Baba works day 0: not granted, counts as an unmet weak request.
			{ID: uuid.New(), DayIndex: 0, StaffIndex: 1, Staff: "Baba", Kind: model.PrefOff, Tier: model.TierWeak},
			// Doi holds early on day 1: satisfied strong request.
			{ID: uuid.New(), DayIndex: 1, StaffIndex: 3, Staff: "Doi", Kind: model.PrefEarly, Tier: model.TierStrong},
		},
	}

	proj, err := Project(f.cal, f.staff, f.classified, f.settings, f.report)
	require.NoError(t, err)

	assert.Equal(t, []string{"Aoki"}, proj.Days[0].OffGranted[model.TierWeak])
	assert.Empty(t, proj.Days[1].OffGranted)

	assert.Equal(t, TierScore{Satisfied: 1, Applicable: 1}, proj.Staff[0].Weak)
	assert.Equal(t, TierScore{Satisfied: 0, Applicable: 1}, proj.Staff[1].Weak)
	assert.Equal(t, TierScore{Satisfied: 1, Applicable: 1}, proj.Staff[3].Strong)
	assert.Equal(t, float64(0), proj.Staff[1].Weak.Fraction())
	assert.Equal(t, float64(1), proj.Staff[1].Strong.Fraction(), "nothing applicable counts as fully satisfied")
}

func TestProject_DisabledRecordsLeaveTheScore(t *testing.T) {
	f := newProjectFixture(t)
	dropped := prefs.Record{ID: uuid.New(), DayIndex: 0, StaffIndex: 1, Staff: "Baba", Kind: model.PrefOff, Tier: model.TierWeak}
	f.classified = &prefs.Result{Records: []prefs.Record{dropped}}
	f.report.FinalAttempt = Attempt{DisabledSoft: map[uuid.UUID]bool{dropped.ID: true}}

	proj, err := Project(f.cal, f.staff, f.classified, f.settings, f.report)
	require.NoError(t, err)

	assert.Equal(t, TierScore{}, proj.Staff[1].Weak)
}

func TestProject_ForcedMarkers(t *testing.T) {
	f := newProjectFixture(t)
	f.report.Model.Forced = []ForcedAssignment{
		{DayIndex: 0, StaffIndex: 1, Kind: model.ShiftEarly},
	}

	proj, err := Project(f.cal, f.staff, f.classified, f.settings, f.report)
	require.NoError(t, err)

	assert.Equal(t, []string{"Baba"}, proj.Days[0].Forced[model.ShiftEarly])
	assert.Empty(t, proj.Days[1].Forced)
}

func TestProject_RejectsUnsolvedReport(t *testing.T) {
	f := newProjectFixture(t)
	f.report.Status = StatusInfeasible

	_, err := Project(f.cal, f.staff, f.classified, f.settings, f.report)
	assert.Error(t, err)
}

func TestProject_DetectsDishonoredForce(t *testing.T) {
	f := newProjectFixture(t)
	f.report.Model.Forced = []ForcedAssignment{
		{DayIndex: 0, StaffIndex: 0, Kind: model.ShiftEarly}, // Aoki is off day 0
	}

	_, err := Project(f.cal, f.staff, f.classified, f.settings, f.report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal consistency")
}

func TestProject_DetectsViolatedAbsoluteOff(t *testing.T) {
	f := newProjectFixture(t)
	f.report.Model.OffForced[[2]int{0, 1}] = uuid.New() // Baba works day 0

	_, err := Project(f.cal, f.staff, f.classified, f.settings, f.report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal consistency")
}

func TestProject_DetectsCoverageGap(t *testing.T) {
	f := newProjectFixture(t)
	f.report.Values[3][KindIndex(model.ShiftLate)][0] = false

	_, err := Project(f.cal, f.staff, f.classified, f.settings, f.report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal consistency")
}

func TestProject_DetectsDoubleAssignment(t *testing.T) {
	f := newProjectFixture(t)
	f.report.Values[0][KindIndex(model.ShiftICU)][3] = true

	_, err := Project(f.cal, f.staff, f.classified, f.settings, f.report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal consistency")
}

func TestRecordSatisfied_ApplicabilityGates(t *testing.T) {
	cal := testCal(t, calendar.DeriveInput{})
	weekday := cal.Days[2]
	saturday, _ := cal.Index(testDate(2025, time.September, 6))
	weekend := cal.Days[saturday]

	values := emptyAssignment(len(cal.Days), 3)
	values[2][KindIndex(model.ShiftDay1)][0] = true

	// Day-group request met through day1.
	sat, app := RecordSatisfied(
		prefs.Record{DayIndex: 2, StaffIndex: 0, Kind: model.PrefDay},
		model.GradeJunior, weekday, values)
	assert.True(t, sat)
	assert.True(t, app)

	// Day2 has no slot on a weekend: not applicable.
	_, app = RecordSatisfied(
		prefs.Record{DayIndex: saturday, StaffIndex: 0, Kind: model.PrefDay2},
		model.GradeJunior, weekend, values)
	assert.False(t, app)

	// ICU is inapplicable for juniors even on open days.
	_, app = RecordSatisfied(
		prefs.Record{DayIndex: 2, StaffIndex: 0, Kind: model.PrefICU},
		model.GradeJunior, weekday, values)
	assert.False(t, app)

	// An off request is always applicable; here it is broken by the day1
	// assignment.
	sat, app = RecordSatisfied(
		prefs.Record{DayIndex: 2, StaffIndex: 0, Kind: model.PrefOff},
		model.GradeJunior, weekday, values)
	assert.False(t, sat)
	assert.True(t, app)
}
