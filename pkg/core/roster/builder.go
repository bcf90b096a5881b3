package roster

import (
	"fmt"
	"math"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	"github.com/google/uuid"

	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"

	"github.com/okabe-dev/wardshift/pkg/core/calendar"
	"github.com/okabe-dev/wardshift/pkg/core/model"
	"github.com/okabe-dev/wardshift/pkg/core/prefs"
)

// objectiveScale lifts the fractional weights into integers before they enter
// the solver. ICU ratio deviations are already expressed on this scale, so
// their weight is applied unscaled.
const objectiveScale = 100

// ForcedAssignment records one hard-placed (day, staff, kind) cell, from a pin
// or an absolute request. The projector verifies these against the solution.
type ForcedAssignment struct {
	DayIndex   int
	StaffIndex int
	Kind       model.ShiftKind
	// RecordID is the absolute record behind the placement; zero for pins.
	RecordID uuid.UUID
}

// Model is one built CP model plus the bookkeeping the recovery controller and
// projector need. The builder never decides feasibility.
type Model struct {
	Proto *cmpb.CpModelProto
	// X is the decision cube: X[day][kind][staff], kind axis in
	// model.AllShiftKinds order.
	X [][][]cpmodel.BoolVar

	Attempt Attempt
	Forced  []ForcedAssignment
	// OffForced maps (dayIndex, staffIndex) to the absolute off record that
	// zeroed the whole day for that person.
	OffForced map[[2]int]uuid.UUID
	// Soft lists the strong/weak records that actually contributed an
	// objective term under this attempt.
	Soft []prefs.Record
}

// Builder constructs CP models over a fixed (calendar, staff, classified
// preferences, settings) tuple, one per recovery attempt.
type Builder struct {
	cal        *calendar.Calendar
	staff      []model.StaffMember
	classified *prefs.Result
	settings   model.Settings
}

func NewBuilder(cal *calendar.Calendar, staff []model.StaffMember, classified *prefs.Result, settings model.Settings) *Builder {
	return &Builder{cal: cal, staff: staff, classified: classified, settings: settings}
}

// BuildFunc adapts the builder to the recovery controller's build hook.
func (b *Builder) BuildFunc() BuildFunc {
	return b.Build
}

// Build assembles the model for one attempt: hard constraints first, then the
// weighted soft objective.
func (b *Builder) Build(attempt Attempt) (*Model, error) {
	cp := cpmodel.NewCpModelBuilder()

	days := len(b.cal.Days)
	people := len(b.staff)
	kinds := model.AllShiftKinds()

	x := make([][][]cpmodel.BoolVar, days)
	for d := 0; d < days; d++ {
		x[d] = make([][]cpmodel.BoolVar, len(kinds))
		for k := range kinds {
			x[d][k] = make([]cpmodel.BoolVar, people)
			for i := 0; i < people; i++ {
				x[d][k][i] = cp.NewBoolVar()
			}
		}
	}

	m := &Model{
		X:         x,
		Attempt:   attempt,
		OffForced: make(map[[2]int]uuid.UUID),
	}

	kEarly := KindIndex(model.ShiftEarly)
	kDay1 := KindIndex(model.ShiftDay1)
	kDay2 := KindIndex(model.ShiftDay2)
	kDay3 := KindIndex(model.ShiftDay3)
	kLate := KindIndex(model.ShiftLate)
	kICU := KindIndex(model.ShiftICU)
	kVac := KindIndex(model.ShiftVacation)

	// Sum of every kind a person could hold on one day.
	daySum := func(d, i int) cpmodel.LinearArgument {
		sum := cpmodel.NewLinearExpr()
		for k := range kinds {
			sum.Add(x[d][k][i])
		}
		return sum
	}

	// (1) At most one kind per person per day.
	for d := 0; d < days; d++ {
		for i := 0; i < people; i++ {
			cp.AddLessOrEqual(daySum(d, i), cpmodel.NewConstant(1))
		}
	}

	// (2) Juniors never hold ICU.
	for i, member := range b.staff {
		if member.Grade != model.GradeJunior {
			continue
		}
		for d := 0; d < days; d++ {
			cp.AddEquality(x[d][kICU][i], cpmodel.NewConstant(0))
		}
	}

	// (3) Sliding consecutive-day cap. Leave counts as a working day here;
	// the target total does too, so a run of assignments is a run of
	// occupied days regardless of kind.
	window := b.settings.MaxConsecutive + 1
	for i := 0; i < people; i++ {
		for start := 0; start+window <= days; start++ {
			sum := cpmodel.NewLinearExpr()
			for off := 0; off < window; off++ {
				for k := range kinds {
					sum.Add(x[start+off][k][i])
				}
			}
			cp.AddLessOrEqual(sum, cpmodel.NewConstant(int64(b.settings.MaxConsecutive)))
		}
	}

	// (4) Exact per-person total over the period, leave included.
	for i := 0; i < people; i++ {
		total := cpmodel.NewLinearExpr()
		for d := 0; d < days; d++ {
			for k := range kinds {
				total.Add(x[d][k][i])
			}
		}
		cp.AddEquality(total, cpmodel.NewConstant(int64(b.settings.PerPersonTotal)))
	}

	// (5) Base coverage: each base slot staffed exactly per the derived
	// capacity (0 when a per-day override dropped it).
	for d, day := range b.cal.Days {
		for _, base := range model.BaseShiftKinds() {
			sum := cpmodel.NewLinearExpr()
			for i := 0; i < people; i++ {
				sum.Add(x[d][KindIndex(base)][i])
			}
			cp.AddEquality(sum, cpmodel.NewConstant(int64(day.Required[base])))
		}
	}

	// (6) Optional kinds capped at 1 on allowed days, 0 elsewhere, and
	// anchored on the day1 slot actually being staffed.
	for d, day := range b.cal.Days {
		d1Sum := cpmodel.NewLinearExpr()
		for i := 0; i < people; i++ {
			d1Sum.Add(x[d][kDay1][i])
		}
		for _, opt := range []struct {
			kindIdx int
			allowed bool
		}{
			{kDay2, day.AllowDay2},
			{kDay3, day.AllowDay3},
			{kICU, day.AllowICU},
		} {
			kindIdx, allowed := opt.kindIdx, opt.allowed
			sum := cpmodel.NewLinearExpr()
			for i := 0; i < people; i++ {
				sum.Add(x[d][kindIdx][i])
			}
			limit := int64(0)
			if allowed {
				limit = 1
			}
			cp.AddLessOrEqual(sum, cpmodel.NewConstant(limit))
			if kindIdx != kICU {
				// Extra daytime kinds only run alongside day1.
				cp.AddLessOrEqual(sum, d1Sum)
			}
		}
	}

	// (7) Weekend/holiday ICU caps, system-wide and per person.
	if b.settings.AllowWeekendICU {
		holidayIdx := b.cal.HolidayIndices()
		total := cpmodel.NewLinearExpr()
		for _, d := range holidayIdx {
			for i := 0; i < people; i++ {
				total.Add(x[d][kICU][i])
			}
		}
		cp.AddLessOrEqual(total, cpmodel.NewConstant(int64(b.settings.MaxWeekendICUTotal)))
		for i := 0; i < people; i++ {
			per := cpmodel.NewLinearExpr()
			for _, d := range holidayIdx {
				per.Add(x[d][kICU][i])
			}
			cp.AddLessOrEqual(per, cpmodel.NewConstant(int64(b.settings.MaxWeekendICUPerPerson)))
		}
	}

	// (8) Leave is opt-in: zero everywhere it was never requested.
	leave := b.classified.LeaveRequested()
	for d := 0; d < days; d++ {
		for i := 0; i < people; i++ {
			if !leave[[2]int{d, i}] {
				cp.AddEquality(x[d][kVac][i], cpmodel.NewConstant(0))
			}
		}
	}

	// (9) Pins, then absolutes. The classifier already rejected
	// contradictions, so forcing is unconditional here.
	for _, pin := range b.classified.Pins {
		cp.AddEquality(x[pin.DayIndex][KindIndex(pin.Shift)][pin.StaffIndex], cpmodel.NewConstant(1))
		m.Forced = append(m.Forced, ForcedAssignment{
			DayIndex: pin.DayIndex, StaffIndex: pin.StaffIndex, Kind: pin.Shift,
		})
	}
	for _, rec := range b.classified.Records {
		if rec.Tier != model.TierAbsolute || rec.ID == attempt.IgnoreAbsolute {
			continue
		}
		switch rec.Kind {
		case model.PrefOff:
			cp.AddEquality(daySum(rec.DayIndex, rec.StaffIndex), cpmodel.NewConstant(0))
			m.OffForced[[2]int{rec.DayIndex, rec.StaffIndex}] = rec.ID
		case model.PrefVacation:
			cp.AddEquality(x[rec.DayIndex][kVac][rec.StaffIndex], cpmodel.NewConstant(1))
			m.Forced = append(m.Forced, ForcedAssignment{
				DayIndex: rec.DayIndex, StaffIndex: rec.StaffIndex,
				Kind: model.ShiftVacation, RecordID: rec.ID,
			})
		case model.PrefEarly, model.PrefLate, model.PrefDay1, model.PrefDay2:
			kind := concreteShift(rec.Kind)
			cp.AddEquality(x[rec.DayIndex][KindIndex(kind)][rec.StaffIndex], cpmodel.NewConstant(1))
			m.Forced = append(m.Forced, ForcedAssignment{
				DayIndex: rec.DayIndex, StaffIndex: rec.StaffIndex,
				Kind: kind, RecordID: rec.ID,
			})
		default:
			// The classifier demotes group and scarce-kind absolutes,
			// so nothing else reaches here.
			return nil, fmt.Errorf("absolute record %s has unforcible kind %q", rec.ID, rec.Kind)
		}
	}

	// (10) Weekend/holiday fairness among juniors, and senior holiday
	// counts dominated by the junior maximum.
	holidayIdx := b.cal.HolidayIndices()
	var juniors, seniors []int
	for i, member := range b.staff {
		if member.Grade == model.GradeJunior {
			juniors = append(juniors, i)
		} else {
			seniors = append(seniors, i)
		}
	}
	holidayVars := func(i int) []cpmodel.BoolVar {
		var out []cpmodel.BoolVar
		for _, d := range holidayIdx {
			for k := range kinds {
				out = append(out, x[d][k][i])
			}
		}
		return out
	}
	for ai, a := range juniors {
		for _, bIdx := range juniors[ai+1:] {
			b.addPairwiseSlack(cp, holidayVars(a), holidayVars(bIdx), attempt.FairnessSlack)
		}
	}
	if len(juniors) > 0 && len(seniors) > 0 {
		holCount := make(map[int]cpmodel.IntVar, people)
		for _, i := range append(append([]int{}, juniors...), seniors...) {
			hv := cp.NewIntVarFromDomain(cpmodel.NewDomain(0, int64(len(holidayIdx))))
			sum := cpmodel.NewLinearExpr()
			for _, v := range holidayVars(i) {
				sum.Add(v)
			}
			cp.AddEquality(hv, sum)
			holCount[i] = hv
		}
		juniorMax := cp.NewIntVarFromDomain(cpmodel.NewDomain(0, int64(len(holidayIdx))))
		juniorHol := make([]cpmodel.LinearArgument, len(juniors))
		for idx, i := range juniors {
			juniorHol[idx] = holCount[i]
		}
		cp.AddMaxEquality(juniorMax, juniorHol...)
		for _, j := range seniors {
			cp.AddLessOrEqual(holCount[j], juniorMax)
		}
	}

	// (11) Junior workload balance: pairwise early, late and day1+day2
	// counts within ±2.
	categoryVars := func(i int, kindIdxs ...int) []cpmodel.BoolVar {
		var out []cpmodel.BoolVar
		for d := 0; d < days; d++ {
			for _, k := range kindIdxs {
				out = append(out, x[d][k][i])
			}
		}
		return out
	}
	for ai, a := range juniors {
		for _, bIdx := range juniors[ai+1:] {
			b.addPairwiseSlack(cp, categoryVars(a, kEarly), categoryVars(bIdx, kEarly), 2)
			b.addPairwiseSlack(cp, categoryVars(a, kLate), categoryVars(bIdx, kLate), 2)
			b.addPairwiseSlack(cp, categoryVars(a, kDay1, kDay2), categoryVars(bIdx, kDay1, kDay2), 2)
		}
	}

	// ---- Soft objective ----
	objective := cpmodel.NewLinearExpr()

	missVar := func(correct ...cpmodel.BoolVar) cpmodel.BoolVar {
		// miss == 1 - sum(correct); valid because the candidates share a
		// (day, person) and are mutually exclusive.
		miss := cp.NewBoolVar()
		sum := cpmodel.NewLinearExpr().Add(miss)
		for _, v := range correct {
			sum.Add(v)
		}
		cp.AddEquality(sum, cpmodel.NewConstant(1))
		return miss
	}

	for _, rec := range b.classified.Records {
		if rec.Tier == model.TierAbsolute || attempt.Disabled(rec.ID) {
			continue
		}
		weight := b.settings.Weights.PrefWeak
		if rec.Tier == model.TierStrong {
			weight = b.settings.Weights.PrefStrong
		}
		coeff := int64(math.Round(objectiveScale * weight))
		if coeff <= 0 {
			continue
		}

		d, i := rec.DayIndex, rec.StaffIndex
		day := b.cal.Days[d]
		added := true

		switch rec.Kind {
		case model.PrefOff:
			// Any assignment at all breaks an off request.
			for k := range kinds {
				objective.AddTerm(x[d][k][i], coeff)
			}
		case model.PrefEarly, model.PrefLate, model.PrefDay1, model.PrefDay2:
			kind := concreteShift(rec.Kind)
			if day.SlotOpen(kind) {
				objective.AddTerm(missVar(x[d][KindIndex(kind)][i]), coeff)
			} else {
				added = false
			}
		case model.PrefDay:
			var candidates []cpmodel.BoolVar
			if day.SlotOpen(model.ShiftDay1) {
				candidates = append(candidates, x[d][kDay1][i])
			}
			if day.AllowDay2 {
				candidates = append(candidates, x[d][kDay2][i])
			}
			if len(candidates) > 0 {
				objective.AddTerm(missVar(candidates...), coeff)
			} else {
				added = false
			}
		case model.PrefICU:
			if b.staff[i].Grade == model.GradeSenior && day.AllowICU {
				objective.AddTerm(missVar(x[d][kICU][i]), coeff)
			} else {
				added = false
			}
		case model.PrefVacation:
			objective.AddTerm(missVar(x[d][kVac][i]), coeff)
		default:
			added = false
		}

		if added {
			m.Soft = append(m.Soft, rec)
		}
	}

	// Fatigue: a late shift immediately followed by an early shift.
	if b.settings.EnableFatigue {
		coeff := int64(math.Round(objectiveScale * b.settings.Weights.Fatigue))
		if coeff > 0 {
			for i := 0; i < people; i++ {
				for d := 0; d+1 < days; d++ {
					late := x[d][kLate][i]
					early := x[d+1][kEarly][i]
					f := cp.NewBoolVar()
					both := cpmodel.NewConstant(-1).Add(late).Add(early)
					cp.AddGreaterOrEqual(f, both)
					cp.AddLessOrEqual(f, late)
					cp.AddLessOrEqual(f, early)
					objective.AddTerm(f, coeff)
				}
			}
		}
	}

	// Placement bonus: leaving an enabled optional slot empty costs its
	// weekday weight plus the designated-weekday bonus.
	for d, day := range b.cal.Days {
		if day.AllowDay2 {
			b.addPlacementPenalty(cp, objective, x[d][kDay2], day,
				b.settings.Weights.Day2Weekday, b.settings.Weights.Day2Bonus, attempt.WeakenPlacementBonus)
		}
		if day.AllowDay3 {
			b.addPlacementPenalty(cp, objective, x[d][kDay3], day,
				b.settings.Weights.Day3Weekday, b.settings.Weights.Day3Bonus, attempt.WeakenPlacementBonus)
		}
	}

	// ICU ratio deviation per senior, already on the objective scale.
	if coeff := int64(math.Round(b.settings.Weights.ICURatio)); coeff > 0 {
		hi := int64(objectiveScale * (days + b.settings.PerPersonTotal))
		for _, j := range seniors {
			target := int64(math.Round(b.staff[j].DesiredICURatio*objectiveScale)) * int64(b.settings.PerPersonTotal)
			dev := cp.NewIntVarFromDomain(cpmodel.NewDomain(0, hi))
			over := cpmodel.NewConstant(-target)
			under := cpmodel.NewConstant(target)
			for d := 0; d < days; d++ {
				over.AddTerm(x[d][kICU][j], objectiveScale)
				under.AddTerm(x[d][kICU][j], -objectiveScale)
			}
			cp.AddGreaterOrEqual(dev, over)
			cp.AddGreaterOrEqual(dev, under)
			objective.AddTerm(dev, coeff)
		}
	}

	cp.Minimize(objective)

	proto, err := cp.Model()
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate the CP model: %w", err)
	}
	m.Proto = proto
	return m, nil
}

// addPairwiseSlack bounds |sum(as) - sum(bs)| by slack.
func (b *Builder) addPairwiseSlack(cp *cpmodel.Builder, as, bs []cpmodel.BoolVar, slack int) {
	diff := cpmodel.NewLinearExpr()
	for _, v := range as {
		diff.Add(v)
	}
	for _, v := range bs {
		diff.AddTerm(v, -1)
	}
	cp.AddLessOrEqual(diff, cpmodel.NewConstant(int64(slack)))
	cp.AddGreaterOrEqual(diff, cpmodel.NewConstant(int64(-slack)))
}

// addPlacementPenalty charges the day's placement weight when the optional
// slot stays empty. The slot holds at most one person, so 1 - sum is a valid
// boolean.
func (b *Builder) addPlacementPenalty(cp *cpmodel.Builder, objective *cpmodel.LinearExpr, slot []cpmodel.BoolVar, day calendar.DayCapacity, base, bonus float64, weaken bool) {
	weight := base
	if day.Weekday == b.settings.BonusWeekday {
		weight += bonus
	}
	if weaken {
		weight *= 0.5
	}
	coeff := int64(math.Round(objectiveScale * weight))
	if coeff <= 0 {
		return
	}
	empty := cp.NewBoolVar()
	sum := cpmodel.NewLinearExpr().Add(empty)
	for _, v := range slot {
		sum.Add(v)
	}
	cp.AddEquality(sum, cpmodel.NewConstant(1))
	objective.AddTerm(empty, coeff)
}

// concreteShift maps the concrete preference kinds to their shift kind.
func concreteShift(kind model.PreferenceKind) model.ShiftKind {
	switch kind {
	case model.PrefEarly:
		return model.ShiftEarly
	case model.PrefLate:
		return model.ShiftLate
	case model.PrefDay1:
		return model.ShiftDay1
	case model.PrefDay2:
		return model.ShiftDay2
	}
	return ""
}
