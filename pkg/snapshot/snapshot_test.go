package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabe-dev/wardshift/pkg/core/model"
	"github.com/okabe-dev/wardshift/pkg/core/roster"
)

func intPtr(v int) *int           { return &v }
func boolPtr(v bool) *bool        { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func testPlan() *Plan {
	return &Plan{
		Period:   Period{Start: "2025-09-01", End: "2025-09-14"},
		Holidays: []string{"2025-09-15"},
		Staff: []Staff{
			{Name: "Aoki", Grade: "J1"},
			{Name: "Chiba", Grade: "J2", DesiredICURatio: 0.25},
		},
		Preferences: []Preference{
			{Date: "2025-09-03", Staff: "Aoki", Kind: "off", Tier: "B"},
		},
		Pins: []Pin{
			{Date: "2025-09-04", Staff: "Chiba", Shift: "late"},
		},
		Memo: "september draft",
	}
}

func TestPlanSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	plan := testPlan()
	plan.Settings = &Settings{
		PerPersonTotal: intPtr(12),
		Weights:        &Weights{PrefStrong: floatPtr(30)},
	}

	require.NoError(t, Save(path, plan))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, plan.Period, loaded.Period)
	assert.Equal(t, plan.Staff, loaded.Staff)
	assert.Equal(t, plan.Preferences, loaded.Preferences)
	assert.Equal(t, plan.Pins, loaded.Pins)
	assert.Equal(t, plan.Memo, loaded.Memo)
	require.NotNil(t, loaded.Settings)
	assert.Equal(t, 12, *loaded.Settings.PerPersonTotal)
	assert.Equal(t, float64(30), *loaded.Settings.Weights.PrefStrong)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestInputs_ResolvesTypedValues(t *testing.T) {
	deriveInput, staff, requests, pins, settings, err := testPlan().Inputs()
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), deriveInput.Start)
	assert.Equal(t, time.Date(2025, time.September, 14, 0, 0, 0, 0, time.UTC), deriveInput.End)
	require.Len(t, deriveInput.Holidays, 1)

	require.Len(t, staff, 2)
	assert.Equal(t, model.GradeJunior, staff[0].Grade)
	assert.Equal(t, model.GradeSenior, staff[1].Grade)
	assert.Equal(t, 0.25, staff[1].DesiredICURatio)

	require.Len(t, requests, 1)
	assert.Equal(t, model.PrefOff, requests[0].Kind)
	assert.Equal(t, model.TierStrong, requests[0].Tier)

	require.Len(t, pins, 1)
	assert.Equal(t, model.ShiftLate, pins[0].Shift)

	// No overrides: production defaults throughout.
	assert.Equal(t, model.DefaultSettings(), settings)
}

func TestInputs_SettingsOverridesMergeOverDefaults(t *testing.T) {
	plan := testPlan()
	plan.Settings = &Settings{
		PerPersonTotal:    intPtr(12),
		AllowDay3:         boolPtr(true),
		EnableFatigue:     boolPtr(false),
		BonusWeekday:      strPtr("friday"),
		TimeBudgetSeconds: floatPtr(2.5),
		Weights: &Weights{
			PrefWeak: floatPtr(3),
		},
	}

	_, _, _, _, settings, err := plan.Inputs()
	require.NoError(t, err)

	defaults := model.DefaultSettings()
	assert.Equal(t, 12, settings.PerPersonTotal)
	assert.True(t, settings.AllowDay3)
	assert.False(t, settings.EnableFatigue)
	assert.Equal(t, time.Friday, settings.BonusWeekday)
	assert.Equal(t, 2500*time.Millisecond, settings.TimeBudget)
	assert.Equal(t, float64(3), settings.Weights.PrefWeak)
	// Untouched fields keep their defaults.
	assert.Equal(t, defaults.MaxConsecutive, settings.MaxConsecutive)
	assert.Equal(t, defaults.Weights.PrefStrong, settings.Weights.PrefStrong)
	assert.Equal(t, defaults.Seed, settings.Seed)
}

func TestInputs_AllowFlagsFlowIntoDerivation(t *testing.T) {
	plan := testPlan()
	plan.Settings = &Settings{
		AllowDay3:       boolPtr(true),
		AllowWeekendICU: boolPtr(true),
	}

	deriveInput, _, _, _, _, err := plan.Inputs()
	require.NoError(t, err)
	assert.True(t, deriveInput.AllowDay3)
	assert.True(t, deriveInput.AllowWeekendICU)
}

func TestInputs_RejectsUnknownGrade(t *testing.T) {
	plan := testPlan()
	plan.Staff[0].Grade = "J9"

	_, _, _, _, _, err := plan.Inputs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown grade")
}

func TestInputs_RejectsUnknownBonusWeekday(t *testing.T) {
	plan := testPlan()
	plan.Settings = &Settings{BonusWeekday: strPtr("someday")}

	_, _, _, _, _, err := plan.Inputs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid weekday")
}

func TestInputs_RejectsMalformedDate(t *testing.T) {
	plan := testPlan()
	plan.Preferences[0].Date = "03/09/2025"

	_, _, _, _, _, err := plan.Inputs()
	assert.Error(t, err)
}

func TestWriteCSV_ShapeAndJoining(t *testing.T) {
	proj := csvProjection()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, proj))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	// date, weekday, one column per kind, off.
	assert.Equal(t, "date,weekday,early,day1,day2,day3,late,icu,vacation,off", string(lines[0]))
	assert.Equal(t, "2025-09-01,Monday,Aoki,Baba/Chiba,,,,,,Doi", string(lines[1]))
}

// csvProjection is a minimal one-day projection for the CSV renderer.
func csvProjection() *roster.Projection {
	return &roster.Projection{
		Status: roster.StatusOptimal,
		Days: []roster.DayRow{
			{
				Date: time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
				Assigned: map[model.ShiftKind][]string{
					model.ShiftEarly: {"Aoki"},
					model.ShiftDay1:  {"Baba", "Chiba"},
				},
				OffGranted: map[model.Tier][]string{
					model.TierWeak: {"Doi"},
				},
			},
		},
	}
}
