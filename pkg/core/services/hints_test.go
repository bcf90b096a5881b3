package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/okabe-dev/wardshift/pkg/core/model"
	"github.com/okabe-dev/wardshift/pkg/core/prefs"
	"github.com/okabe-dev/wardshift/pkg/core/roster"
)

func hintsContain(hints []string, fragment string) bool {
	for _, h := range hints {
		if strings.Contains(h, fragment) {
			return true
		}
	}
	return false
}

func TestImprovementHints_NilWithoutProjection(t *testing.T) {
	assert.Nil(t, ImprovementHints(&GenerateResult{}))
}

func TestImprovementHints_QuietWhenEverythingMet(t *testing.T) {
	result := &GenerateResult{
		Settings: model.DefaultSettings(),
		Report:   &roster.Report{},
		Projection: &roster.Projection{
			Staff: []roster.StaffSummary{
				{Strong: roster.TierScore{Satisfied: 2, Applicable: 2}, ICUTarget: 1, ICUActual: 1},
			},
		},
	}

	assert.Empty(t, ImprovementHints(result))
}

func TestImprovementHints_UnmetSoftSuggestsKnobs(t *testing.T) {
	settings := model.DefaultSettings() // strict slack, maxConsecutive 5, fatigue on
	settings.MaxConsecutive = 4
	result := &GenerateResult{
		Settings: settings,
		Report:   &roster.Report{},
		Projection: &roster.Projection{
			Staff: []roster.StaffSummary{
				{Strong: roster.TierScore{Satisfied: 1, Applicable: 3}},
			},
		},
	}

	hints := ImprovementHints(result)
	assert.True(t, hintsContain(hints, "prefStrong/prefWeak"))
	assert.True(t, hintsContain(hints, "fairnessSlack"))
	assert.True(t, hintsContain(hints, "maxConsecutive"))
	assert.True(t, hintsContain(hints, "fatigue"))
	assert.True(t, hintsContain(hints, "placement bonuses"))
}

func TestImprovementHints_ICUShortfall(t *testing.T) {
	result := &GenerateResult{
		Settings: model.DefaultSettings(), // weekend ICU disabled
		Report:   &roster.Report{},
		Projection: &roster.Projection{
			Staff: []roster.StaffSummary{
				{ICUTarget: 3, ICUActual: 1},
			},
		},
	}

	hints := ImprovementHints(result)
	assert.True(t, hintsContain(hints, "weekend ICU"))
	assert.True(t, hintsContain(hints, "icuRatio"))
	assert.False(t, hintsContain(hints, "prefStrong"), "no unmet soft requests here")
}

func TestImprovementHints_DroppedRequestsFlagged(t *testing.T) {
	result := &GenerateResult{
		Settings: model.DefaultSettings(),
		Report: &roster.Report{
			DisabledSoft: []prefs.Record{{Staff: "Aoki"}},
		},
		Projection: &roster.Projection{},
	}

	hints := ImprovementHints(result)
	assert.True(t, hintsContain(hints, "dropped"))
}
