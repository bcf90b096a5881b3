package prefs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabe-dev/wardshift/pkg/core/calendar"
	"github.com/okabe-dev/wardshift/pkg/core/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.Derive(calendar.DeriveInput{
		Start: date(2025, time.September, 1),
		End:   date(2025, time.September, 14),
	})
	require.NoError(t, err)
	return cal
}

func testStaff() []model.StaffMember {
	return []model.StaffMember{
		{Name: "Aoki", Grade: model.GradeJunior},
		{Name: "Baba", Grade: model.GradeJunior},
		{Name: "Chiba", Grade: model.GradeSenior, DesiredICURatio: 0.2},
	}
}

func violationsOf(t *testing.T, err error) []Violation {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected a ValidationError, got %v", err)
	return verr.Violations
}

func TestClassify_ResolvesIndices(t *testing.T) {
	cal := testCalendar(t)

	result, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 3), Staff: "Baba", Kind: model.PrefOff, Tier: model.TierStrong},
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, 2, rec.DayIndex)
	assert.Equal(t, 1, rec.StaffIndex)
	assert.Equal(t, model.TierStrong, rec.Tier)
	assert.False(t, rec.Demoted)
	assert.NotEqual(t, rec.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestClassify_DeduplicatesExactRepeats(t *testing.T) {
	cal := testCalendar(t)
	req := model.PreferenceRequest{
		Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefOff, Tier: model.TierWeak,
	}

	result, err := Classify(cal, testStaff(), []model.PreferenceRequest{req, req, req}, nil)
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
}

func TestClassify_DifferentTiersAreNotDuplicates(t *testing.T) {
	cal := testCalendar(t)

	result, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefOff, Tier: model.TierWeak},
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefOff, Tier: model.TierStrong},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
}

func TestClassify_UnknownStaffIsViolation(t *testing.T) {
	cal := testCalendar(t)

	_, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 3), Staff: "Nobody", Kind: model.PrefOff, Tier: model.TierWeak},
	}, nil)

	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleUnknownStaff, violations[0].Rule)
}

func TestClassify_OutsidePeriodIsViolation(t *testing.T) {
	cal := testCalendar(t)

	_, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.October, 1), Staff: "Aoki", Kind: model.PrefOff, Tier: model.TierWeak},
	}, nil)

	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleOutsidePeriod, violations[0].Rule)
}

func TestClassify_InvalidKindOrTier(t *testing.T) {
	cal := testCalendar(t)

	_, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: "night", Tier: model.TierWeak},
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefOff, Tier: "D"},
	}, nil)

	violations := violationsOf(t, err)
	assert.Len(t, violations, 2)
	for _, v := range violations {
		assert.Equal(t, RuleInvalidValue, v.Rule)
	}
}

func TestClassify_DuplicateStaffNameIsViolation(t *testing.T) {
	cal := testCalendar(t)
	staff := append(testStaff(), model.StaffMember{Name: "Aoki", Grade: model.GradeSenior})

	_, err := Classify(cal, staff, nil, nil)

	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleInvalidValue, violations[0].Rule)
}

func TestClassify_JuniorAbsoluteICUIsError(t *testing.T) {
	// A junior can never hold ICU, so an absolute ICU request is rejected
	// outright instead of being demoted.
	cal := testCalendar(t)

	_, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefICU, Tier: model.TierAbsolute},
	}, nil)

	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleIneligibleICU, violations[0].Rule)
}

func TestClassify_SeniorAbsoluteICUDemoted(t *testing.T) {
	cal := testCalendar(t)

	result, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 3), Staff: "Chiba", Kind: model.PrefICU, Tier: model.TierAbsolute},
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, model.TierStrong, result.Records[0].Tier)
	assert.True(t, result.Records[0].Demoted)
}

func TestClassify_AbsoluteDayGroupDemoted(t *testing.T) {
	cal := testCalendar(t)

	result, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefDay, Tier: model.TierAbsolute},
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, model.TierStrong, result.Records[0].Tier)
	assert.True(t, result.Records[0].Demoted)
}

func TestClassify_AbsoluteForClosedSlotDemoted(t *testing.T) {
	// Day2 does not exist on a Saturday, so the absolute request survives
	// only as a strong-soft one.
	cal := testCalendar(t)

	result, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 6), Staff: "Aoki", Kind: model.PrefDay2, Tier: model.TierAbsolute},
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, model.TierStrong, result.Records[0].Tier)
	assert.True(t, result.Records[0].Demoted)
}

func TestClassify_AbsoluteOpenSlotStaysAbsolute(t *testing.T) {
	cal := testCalendar(t)

	result, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefEarly, Tier: model.TierAbsolute},
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, model.TierAbsolute, result.Records[0].Tier)
	assert.False(t, result.Records[0].Demoted)
}

func TestClassify_ContradictoryAbsolutes(t *testing.T) {
	// Off and early on the same day cannot both be forced.
	cal := testCalendar(t)

	_, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefOff, Tier: model.TierAbsolute},
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefEarly, Tier: model.TierAbsolute},
	}, nil)

	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleContradiction, violations[0].Rule)
}

func TestClassify_PinAgreeingWithAbsoluteIsFine(t *testing.T) {
	cal := testCalendar(t)

	result, err := Classify(cal, testStaff(),
		[]model.PreferenceRequest{
			{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefEarly, Tier: model.TierAbsolute},
		},
		[]model.PinnedAssignment{
			{Date: date(2025, time.September, 3), Staff: "Aoki", Shift: model.ShiftEarly},
		})
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Len(t, result.Pins, 1)
}

func TestClassify_PinContradictingAbsolute(t *testing.T) {
	cal := testCalendar(t)

	_, err := Classify(cal, testStaff(),
		[]model.PreferenceRequest{
			{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefOff, Tier: model.TierAbsolute},
		},
		[]model.PinnedAssignment{
			{Date: date(2025, time.September, 3), Staff: "Aoki", Shift: model.ShiftLate},
		})

	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleContradiction, violations[0].Rule)
}

func TestClassify_SlotOverflow(t *testing.T) {
	// Two people absolutely claiming the single late slot on the same day.
	cal := testCalendar(t)

	_, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefLate, Tier: model.TierAbsolute},
		{Date: date(2025, time.September, 3), Staff: "Baba", Kind: model.PrefLate, Tier: model.TierAbsolute},
	}, nil)

	violations := violationsOf(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleSlotOverflow, violations[0].Rule)
}

func TestClassify_ViolationsOrderIsStable(t *testing.T) {
	// Two independent contradictions plus an overflow, submitted out of
	// order. The report lists them by (date, staff) regardless of input
	// order, and joined details are alphabetical.
	cal := testCalendar(t)

	_, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 5), Staff: "Baba", Kind: model.PrefOff, Tier: model.TierAbsolute},
		{Date: date(2025, time.September, 5), Staff: "Baba", Kind: model.PrefLate, Tier: model.TierAbsolute},
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefOff, Tier: model.TierAbsolute},
		{Date: date(2025, time.September, 3), Staff: "Aoki", Kind: model.PrefEarly, Tier: model.TierAbsolute},
		{Date: date(2025, time.September, 8), Staff: "Baba", Kind: model.PrefEarly, Tier: model.TierAbsolute},
		{Date: date(2025, time.September, 8), Staff: "Aoki", Kind: model.PrefEarly, Tier: model.TierAbsolute},
	}, nil)

	violations := violationsOf(t, err)
	require.Len(t, violations, 3)

	assert.Equal(t, RuleContradiction, violations[0].Rule)
	assert.Equal(t, date(2025, time.September, 3), violations[0].Date)
	assert.Equal(t, "Aoki", violations[0].Staff)
	assert.Contains(t, violations[0].Detail, "early vs off")

	assert.Equal(t, RuleContradiction, violations[1].Rule)
	assert.Equal(t, date(2025, time.September, 5), violations[1].Date)
	assert.Equal(t, "Baba", violations[1].Staff)

	assert.Equal(t, RuleSlotOverflow, violations[2].Rule)
	assert.Equal(t, date(2025, time.September, 8), violations[2].Date)
	assert.Equal(t, "Aoki, Baba", violations[2].Staff)
}

func TestClassify_PinRules(t *testing.T) {
	cal := testCalendar(t)

	tests := []struct {
		name string
		pin  model.PinnedAssignment
		rule Rule
	}{
		{
			name: "unknown staff",
			pin:  model.PinnedAssignment{Date: date(2025, time.September, 3), Staff: "Nobody", Shift: model.ShiftEarly},
			rule: RuleUnknownStaff,
		},
		{
			name: "outside period",
			pin:  model.PinnedAssignment{Date: date(2025, time.October, 3), Staff: "Aoki", Shift: model.ShiftEarly},
			rule: RuleOutsidePeriod,
		},
		{
			name: "leave pin rejected",
			pin:  model.PinnedAssignment{Date: date(2025, time.September, 3), Staff: "Aoki", Shift: model.ShiftVacation},
			rule: RuleInvalidValue,
		},
		{
			name: "junior ICU pin",
			pin:  model.PinnedAssignment{Date: date(2025, time.September, 3), Staff: "Aoki", Shift: model.ShiftICU},
			rule: RuleIneligibleICU,
		},
		{
			name: "pin to a closed slot",
			pin:  model.PinnedAssignment{Date: date(2025, time.September, 6), Staff: "Aoki", Shift: model.ShiftDay2},
			rule: RulePinConflict,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Classify(cal, testStaff(), nil, []model.PinnedAssignment{tc.pin})
			violations := violationsOf(t, err)
			require.Len(t, violations, 1)
			assert.Equal(t, tc.rule, violations[0].Rule)
		})
	}
}

func TestByTier_PreservesStoredOrder(t *testing.T) {
	cal := testCalendar(t)

	result, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 2), Staff: "Aoki", Kind: model.PrefOff, Tier: model.TierWeak},
		{Date: date(2025, time.September, 3), Staff: "Baba", Kind: model.PrefOff, Tier: model.TierStrong},
		{Date: date(2025, time.September, 4), Staff: "Chiba", Kind: model.PrefOff, Tier: model.TierWeak},
	}, nil)
	require.NoError(t, err)

	weak := result.ByTier(model.TierWeak)
	require.Len(t, weak, 2)
	assert.Equal(t, "Aoki", weak[0].Staff)
	assert.Equal(t, "Chiba", weak[1].Staff)
}

func TestLeaveRequested(t *testing.T) {
	cal := testCalendar(t)

	result, err := Classify(cal, testStaff(), []model.PreferenceRequest{
		{Date: date(2025, time.September, 2), Staff: "Aoki", Kind: model.PrefVacation, Tier: model.TierAbsolute},
		{Date: date(2025, time.September, 3), Staff: "Baba", Kind: model.PrefVacation, Tier: model.TierWeak},
		{Date: date(2025, time.September, 4), Staff: "Chiba", Kind: model.PrefOff, Tier: model.TierWeak},
	}, nil)
	require.NoError(t, err)

	leave := result.LeaveRequested()
	assert.True(t, leave[[2]int{1, 0}])
	assert.True(t, leave[[2]int{2, 1}])
	assert.Len(t, leave, 2)
}
