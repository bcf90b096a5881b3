package roster

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/okabe-dev/wardshift/pkg/core/calendar"
	"github.com/okabe-dev/wardshift/pkg/core/model"
	"github.com/okabe-dev/wardshift/pkg/core/prefs"
)

// CheckCapacity runs the arithmetic sanity check before any solve. The summed
// per-person totals must cover the required base slots of the period; a total
// below that floor can never be feasible and is rejected without touching the
// solver. A total above the theoretical ceiling of absorbable slots is merely
// suspicious and is logged, since soft structure may still make it work out.
func CheckCapacity(cal *calendar.Calendar, staff []model.StaffMember, settings model.Settings, classified *prefs.Result, logger *zap.Logger) error {
	demand := len(staff) * settings.PerPersonTotal
	floor := cal.RequiredCoverage()

	if demand < floor {
		return fmt.Errorf(
			"per-person totals sum to %d but the period requires %d base slots; raise the totals or shrink the period",
			demand, floor,
		)
	}

	day2, day3, icu := cal.OptionalCapacity()
	if !settings.AllowDay3 {
		day3 = 0
	}
	leave := len(classified.LeaveRequested())
	ceiling := floor + day2 + day3 + icu + leave

	if demand > ceiling {
		logger.Warn("per-person totals exceed the absorbable slot ceiling; the solve may be infeasible",
			zap.Int("demand", demand),
			zap.Int("requiredSlots", floor),
			zap.Int("ceiling", ceiling),
		)
	}

	// Juniors cannot hold ICU, so their cohort has a tighter ceiling of base
	// and optional day slots.
	juniors := 0
	for _, member := range staff {
		if member.Grade == model.GradeJunior {
			juniors++
		}
	}
	juniorDemand := juniors * settings.PerPersonTotal
	juniorCeiling := floor + day2 + day3
	if juniorDemand > juniorCeiling {
		logger.Warn("junior totals exceed the slots juniors can hold; the solve may be infeasible",
			zap.Int("juniorDemand", juniorDemand),
			zap.Int("juniorCeiling", juniorCeiling),
		)
	}

	return nil
}
