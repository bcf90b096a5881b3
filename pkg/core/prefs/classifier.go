package prefs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okabe-dev/wardshift/pkg/core/calendar"
	"github.com/okabe-dev/wardshift/pkg/core/model"
)

// Record is a classified preference request. Classification assigns a stable
// id, resolves day and staff indices, and applies tier demotions. Records keep
// their stored order, which the recovery controller later relies on.
type Record struct {
	ID         uuid.UUID
	Date       time.Time
	DayIndex   int
	Staff      string
	StaffIndex int
	Kind       model.PreferenceKind
	Tier       model.Tier
	// Demoted marks an absolute request that was downgraded to strong-soft
	// because it could never be honored as a hard constraint. Demotions
	// are never silent drops.
	Demoted bool
}

// Pin is a resolved pinned assignment. Pins carry absolute strength.
type Pin struct {
	Date       time.Time
	DayIndex   int
	Staff      string
	StaffIndex int
	Shift      model.ShiftKind
}

// Result is the classified preference set handed to the model builder.
type Result struct {
	Records []Record
	Pins    []Pin
}

// ByTier returns the records of one tier in stored order.
func (r *Result) ByTier(tier model.Tier) []Record {
	var out []Record
	for _, rec := range r.Records {
		if rec.Tier == tier {
			out = append(out, rec)
		}
	}
	return out
}

// LeaveRequested returns the set of (dayIndex, staffIndex) pairs with a leave
// request of any tier. Leave is opt-in: the builder zeroes the leave variable
// everywhere else.
func (r *Result) LeaveRequested() map[[2]int]bool {
	set := make(map[[2]int]bool)
	for _, rec := range r.Records {
		if rec.Kind == model.PrefVacation {
			set[[2]int{rec.DayIndex, rec.StaffIndex}] = true
		}
	}
	return set
}

// Rule identifies which validation rule a violation breaks.
type Rule string

const (
	RuleUnknownStaff  Rule = "unknown_staff"
	RuleOutsidePeriod Rule = "outside_period"
	RuleInvalidValue  Rule = "invalid_value"
	RuleIneligibleICU Rule = "ineligible_icu"
	RuleContradiction Rule = "contradiction"
	RuleSlotOverflow  Rule = "slot_overflow"
	RulePinConflict   Rule = "pin_conflict"
)

// Violation is one user-facing validation error with enough structure to act
// on: the offending record's day and staff, the rule, and a rendered detail.
type Violation struct {
	Date   time.Time
	Staff  string
	Rule   Rule
	Detail string
}

func (v Violation) String() string {
	when := "-"
	if !v.Date.IsZero() {
		when = v.Date.Format("2006-01-02")
	}
	return fmt.Sprintf("%s %s: %s", when, v.Staff, v.Detail)
}

// ValidationError aggregates every violation found in one pass so callers can
// present the itemized list instead of fixing one problem per run.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.String()
	}
	return fmt.Sprintf("%d invalid input record(s):\n%s", len(e.Violations), strings.Join(lines, "\n"))
}

// Classify normalizes raw preference requests and pins against the derived
// calendar and the staff roster. It applies the demotion invariant (an
// absolute request for a slot the day disables, for the group kind, or for
// ICU by an eligible senior becomes strong-soft) and then runs the
// feasibility pre-check. Logically contradictory absolute inputs are returned
// as a *ValidationError; the solver is never asked to prove them infeasible.
func Classify(cal *calendar.Calendar, staff []model.StaffMember, requests []model.PreferenceRequest, pins []model.PinnedAssignment) (*Result, error) {
	var violations []Violation

	staffIdx := make(map[string]int, len(staff))
	for i, member := range staff {
		if _, dup := staffIdx[member.Name]; dup {
			violations = append(violations, Violation{
				Staff: member.Name, Rule: RuleInvalidValue,
				Detail: fmt.Sprintf("staff name %q appears more than once in the roster", member.Name),
			})
			continue
		}
		staffIdx[member.Name] = i
	}

	result := &Result{}
	seen := make(map[string]bool)

	for _, req := range requests {
		if !req.Kind.IsValid() || !req.Tier.IsValid() {
			violations = append(violations, Violation{
				Date: req.Date, Staff: req.Staff, Rule: RuleInvalidValue,
				Detail: fmt.Sprintf("unknown preference kind %q or tier %q", req.Kind, req.Tier),
			})
			continue
		}

		i, known := staffIdx[req.Staff]
		if !known {
			violations = append(violations, Violation{
				Date: req.Date, Staff: req.Staff, Rule: RuleUnknownStaff,
				Detail: fmt.Sprintf("preference names %q, who is not on the roster", req.Staff),
			})
			continue
		}

		d, inPeriod := cal.Index(req.Date)
		if !inPeriod {
			violations = append(violations, Violation{
				Date: req.Date, Staff: req.Staff, Rule: RuleOutsidePeriod,
				Detail: fmt.Sprintf("preference date %s is outside the period", req.Date.Format("2006-01-02")),
			})
			continue
		}

		// Exact duplicates collapse to the first occurrence.
		key := fmt.Sprintf("%d|%d|%s|%s", d, i, req.Kind, req.Tier)
		if seen[key] {
			continue
		}
		seen[key] = true

		rec := Record{
			ID:         uuid.New(),
			Date:       cal.Days[d].Date,
			DayIndex:   d,
			Staff:      req.Staff,
			StaffIndex: i,
			Kind:       req.Kind,
			Tier:       req.Tier,
		}

		if rec.Tier == model.TierAbsolute {
			switch {
			case rec.Kind == model.PrefICU && staff[i].Grade == model.GradeJunior:
				// An absolute scarce-kind request a junior can never
				// hold is a validation error, not a demotion.
				violations = append(violations, Violation{
					Date: rec.Date, Staff: rec.Staff, Rule: RuleIneligibleICU,
					Detail: "absolute ICU request from a junior (J1), who is ICU-ineligible",
				})
				continue
			case rec.Kind == model.PrefICU, rec.Kind == model.PrefDay:
				// ICU placement competes with the ratio quota and
				// "day" is a kind group; neither can be forced.
				rec.Tier = model.TierStrong
				rec.Demoted = true
			case concreteSlotKind(rec.Kind) != "" && !cal.Days[d].SlotOpen(concreteSlotKind(rec.Kind)):
				rec.Tier = model.TierStrong
				rec.Demoted = true
			}
		}

		result.Records = append(result.Records, rec)
	}

	for _, pin := range pins {
		i, known := staffIdx[pin.Staff]
		if !known {
			violations = append(violations, Violation{
				Date: pin.Date, Staff: pin.Staff, Rule: RuleUnknownStaff,
				Detail: fmt.Sprintf("pin names %q, who is not on the roster", pin.Staff),
			})
			continue
		}
		d, inPeriod := cal.Index(pin.Date)
		if !inPeriod {
			violations = append(violations, Violation{
				Date: pin.Date, Staff: pin.Staff, Rule: RuleOutsidePeriod,
				Detail: fmt.Sprintf("pin date %s is outside the period", pin.Date.Format("2006-01-02")),
			})
			continue
		}
		if !pin.Shift.IsValid() || pin.Shift == model.ShiftVacation {
			violations = append(violations, Violation{
				Date: pin.Date, Staff: pin.Staff, Rule: RuleInvalidValue,
				Detail: fmt.Sprintf("pin targets %q; leave is requested through preferences, not pins", pin.Shift),
			})
			continue
		}
		if pin.Shift == model.ShiftICU && staff[i].Grade == model.GradeJunior {
			violations = append(violations, Violation{
				Date: pin.Date, Staff: pin.Staff, Rule: RuleIneligibleICU,
				Detail: "ICU pin for a junior (J1), who is ICU-ineligible",
			})
			continue
		}
		if !cal.Days[d].SlotOpen(pin.Shift) {
			violations = append(violations, Violation{
				Date: pin.Date, Staff: pin.Staff, Rule: RulePinConflict,
				Detail: fmt.Sprintf("pin targets %s, but that slot does not exist on %s", pin.Shift, pin.Date.Format("2006-01-02")),
			})
			continue
		}

		result.Pins = append(result.Pins, Pin{
			Date:       cal.Days[d].Date,
			DayIndex:   d,
			Staff:      pin.Staff,
			StaffIndex: i,
			Shift:      pin.Shift,
		})
	}

	violations = append(violations, checkContradictions(result, staff)...)
	violations = append(violations, checkSlotOverflow(result)...)

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return result, nil
}

// checkContradictions flags (day, staff) pairs holding more than one surviving
// absolute commitment. Two distinct forced kinds can never coexist under the
// one-kind-per-day invariant, and an absolute off contradicts any forced work
// or leave.
func checkContradictions(result *Result, staff []model.StaffMember) []Violation {
	type commitment struct {
		kind string
		date time.Time
	}
	var violations []Violation
	byDayStaff := make(map[[2]int][]commitment)

	for _, rec := range result.Records {
		if rec.Tier != model.TierAbsolute {
			continue
		}
		key := [2]int{rec.DayIndex, rec.StaffIndex}
		byDayStaff[key] = append(byDayStaff[key], commitment{kind: string(rec.Kind), date: rec.Date})
	}
	for _, pin := range result.Pins {
		key := [2]int{pin.DayIndex, pin.StaffIndex}
		byDayStaff[key] = append(byDayStaff[key], commitment{kind: "pin:" + string(pin.Shift), date: pin.Date})
	}

	for key, commitments := range byDayStaff {
		if len(commitments) < 2 {
			continue
		}
		distinct := make(map[string]bool)
		for _, c := range commitments {
			// A pin and an absolute request for the same kind agree.
			distinct[strings.TrimPrefix(c.kind, "pin:")] = true
		}
		if len(distinct) < 2 {
			continue
		}
		kinds := make([]string, 0, len(distinct))
		for k := range distinct {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		violations = append(violations, Violation{
			Date:  commitments[0].date,
			Staff: staff[key[1]].Name,
			Rule:  RuleContradiction,
			Detail: fmt.Sprintf("contradictory absolute commitments for the same day: %s",
				strings.Join(kinds, " vs ")),
		})
	}
	sortViolations(violations)
	return violations
}

// checkSlotOverflow flags singleton slots claimed by more than one absolute
// commitment. Every concrete slot has capacity 1, so two different people
// cannot both hold it exclusively.
func checkSlotOverflow(result *Result) []Violation {
	type claim struct {
		date  time.Time
		staff map[int]string
	}
	claims := make(map[string]*claim)

	add := func(dayIndex int, date time.Time, kind model.ShiftKind, staffIndex int, staffName string) {
		key := fmt.Sprintf("%d|%s", dayIndex, kind)
		c, ok := claims[key]
		if !ok {
			c = &claim{date: date, staff: make(map[int]string)}
			claims[key] = c
		}
		c.staff[staffIndex] = staffName
	}

	for _, rec := range result.Records {
		if rec.Tier != model.TierAbsolute {
			continue
		}
		if kind := concreteSlotKind(rec.Kind); kind != "" {
			add(rec.DayIndex, rec.Date, kind, rec.StaffIndex, rec.Staff)
		}
	}
	for _, pin := range result.Pins {
		add(pin.DayIndex, pin.Date, pin.Shift, pin.StaffIndex, pin.Staff)
	}

	var violations []Violation
	for key, c := range claims {
		if len(c.staff) < 2 {
			continue
		}
		names := make([]string, 0, len(c.staff))
		for _, name := range c.staff {
			names = append(names, name)
		}
		sort.Strings(names)
		kind := key[strings.Index(key, "|")+1:]
		violations = append(violations, Violation{
			Date:  c.date,
			Staff: strings.Join(names, ", "),
			Rule:  RuleSlotOverflow,
			Detail: fmt.Sprintf("%d absolute commitments target the %s slot, which has capacity 1",
				len(c.staff), kind),
		})
	}
	sortViolations(violations)
	return violations
}

// sortViolations orders map-derived violations by (date, staff) so the same
// invalid plan always reports the same list.
func sortViolations(violations []Violation) {
	sort.Slice(violations, func(i, j int) bool {
		if !violations[i].Date.Equal(violations[j].Date) {
			return violations[i].Date.Before(violations[j].Date)
		}
		return violations[i].Staff < violations[j].Staff
	})
}

// concreteSlotKind maps a preference kind to the singleton shift slot it
// claims, or "" for kinds ("off", "day", "vacation") that claim none.
func concreteSlotKind(kind model.PreferenceKind) model.ShiftKind {
	switch kind {
	case model.PrefEarly:
		return model.ShiftEarly
	case model.PrefDay1:
		return model.ShiftDay1
	case model.PrefDay2:
		return model.ShiftDay2
	case model.PrefICU:
		return model.ShiftICU
	case model.PrefLate:
		return model.ShiftLate
	}
	return ""
}
