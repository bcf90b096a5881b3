package services

// ImprovementHints suggests setting changes after a solved run that still left
// strong/weak requests or ICU targets unmet. The hints mirror the knobs the
// recovery controller cannot touch on its own.
func ImprovementHints(result *GenerateResult) []string {
	if result.Projection == nil {
		return nil
	}

	unmetSoft := false
	icuShortfall := false
	for _, s := range result.Projection.Staff {
		if s.Strong.Satisfied < s.Strong.Applicable || s.Weak.Satisfied < s.Weak.Applicable {
			unmetSoft = true
		}
		if s.ICUTarget > 0 && s.ICUActual < s.ICUTarget {
			icuShortfall = true
		}
	}

	var hints []string
	if unmetSoft {
		hints = append(hints, "Some strong/weak requests went unmet; raising prefStrong/prefWeak weights prioritizes them.")
		if result.Settings.FairnessSlack <= 1 {
			hints = append(hints, "Widening fairnessSlack can free assignments blocked by weekend balancing.")
		}
		if result.Settings.MaxConsecutive <= 4 {
			hints = append(hints, "Raising maxConsecutive by one gives the search more freedom.")
		}
		if result.Settings.EnableFatigue && result.Settings.Weights.Fatigue >= 12 {
			hints = append(hints, "Lowering the fatigue weight allows more late-to-early sequences.")
		}
		if result.Settings.Weights.Day2Weekday+result.Settings.Weights.Day2Bonus > 0 ||
			result.Settings.Weights.Day3Weekday+result.Settings.Weights.Day3Bonus > 0 {
			hints = append(hints, "Weakening the day2/day3 placement bonuses leaves more room for requests.")
		}
	}
	if icuShortfall {
		if !result.Settings.AllowWeekendICU {
			hints = append(hints, "ICU targets fell short; consider enabling weekend ICU.")
		}
		hints = append(hints, "Raising the icuRatio weight pushes seniors toward their ICU targets.")
	}
	if len(result.Report.DisabledSoft) > 0 {
		hints = append(hints, "Some requests were dropped to reach feasibility; review them before publishing.")
	}

	return hints
}
