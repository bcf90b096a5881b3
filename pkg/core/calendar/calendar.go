package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/okabe-dev/wardshift/pkg/core/model"
)

// DayCapacity is the derived capacity record for one day: how many of each
// base kind are required, and which optional kinds may be placed.
type DayCapacity struct {
	Date    time.Time
	Weekday time.Weekday

	// Holiday is true for weekends and declared holidays.
	Holiday bool
	// Closed days never host the optional daytime kinds.
	Closed bool

	// Required is 1 for every base kind unless a per-day override dropped
	// it, in which case it is 0. Non-base kinds are absent.
	Required map[model.ShiftKind]int
	// Dropped names the base kind suppressed by the override, if any.
	Dropped model.ShiftKind

	AllowDay2 bool
	AllowDay3 bool
	AllowICU  bool
}

// Calendar is the derived capacity table for the whole period. It is computed
// once per run and never mutated by the solver.
type Calendar struct {
	Days  []DayCapacity
	index map[string]int
}

// DeriveInput are the period parameters the capacity table is derived from.
// Absent data means a fully open day; derivation itself cannot fail beyond an
// invalid period.
type DeriveInput struct {
	Start time.Time
	End   time.Time

	Holidays   []time.Time
	ClosedDays []time.Time

	// BaseOverrides maps a date to the single base kind suppressed that
	// day ("special" day with one slot dropped).
	BaseOverrides map[time.Time]model.ShiftKind

	AllowDay3       bool
	AllowWeekendICU bool
}

const dayKey = "2006-01-02"

// Derive expands the period into per-day capacity records.
func Derive(in DeriveInput) (*Calendar, error) {
	start := midnightUTC(in.Start)
	end := midnightUTC(in.End)
	if end.Before(start) {
		return nil, fmt.Errorf("period end %s is before start %s", end.Format(dayKey), start.Format(dayKey))
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: start,
		Until:   end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build daily recurrence: %w", err)
	}

	holidays := dateSet(in.Holidays)
	closed := dateSet(in.ClosedDays)

	overrides := make(map[string]model.ShiftKind, len(in.BaseOverrides))
	for date, kind := range in.BaseOverrides {
		if !kind.IsBase() {
			return nil, fmt.Errorf("override for %s names %q, which is not a base kind", date.Format(dayKey), kind)
		}
		overrides[midnightUTC(date).Format(dayKey)] = kind
	}

	dates := rule.All()
	cal := &Calendar{
		Days:  make([]DayCapacity, 0, len(dates)),
		index: make(map[string]int, len(dates)),
	}

	for _, date := range dates {
		key := date.Format(dayKey)
		weekend := date.Weekday() == time.Saturday || date.Weekday() == time.Sunday

		day := DayCapacity{
			Date:    date,
			Weekday: date.Weekday(),
			Holiday: weekend || holidays[key],
			Closed:  closed[key],
			Required: map[model.ShiftKind]int{
				model.ShiftEarly: 1,
				model.ShiftDay1:  1,
				model.ShiftLate:  1,
			},
		}

		if dropped, ok := overrides[key]; ok {
			day.Required[dropped] = 0
			day.Dropped = dropped
		}

		// Optional daytime kinds exist only on open weekdays; day3 is
		// additionally gated on the day2 slot being available, not
		// merely on the weekday itself.
		day.AllowDay2 = !day.Holiday && !day.Closed
		day.AllowDay3 = in.AllowDay3 && day.AllowDay2

		// ICU runs on open weekdays; weekend/holiday ICU is a policy
		// decision with its own caps applied by the model.
		day.AllowICU = (!day.Holiday && !day.Closed) || (in.AllowWeekendICU && day.Holiday)

		cal.index[key] = len(cal.Days)
		cal.Days = append(cal.Days, day)
	}

	return cal, nil
}

// Index returns the day index for a date, or false if the date falls outside
// the period.
func (c *Calendar) Index(date time.Time) (int, bool) {
	i, ok := c.index[midnightUTC(date).Format(dayKey)]
	return i, ok
}

// HolidayIndices returns the indices of all weekend/holiday days.
func (c *Calendar) HolidayIndices() []int {
	var out []int
	for i, day := range c.Days {
		if day.Holiday {
			out = append(out, i)
		}
	}
	return out
}

// RequiredCoverage is the total number of base slots that must be staffed
// over the period.
func (c *Calendar) RequiredCoverage() int {
	total := 0
	for _, day := range c.Days {
		for _, req := range day.Required {
			total += req
		}
	}
	return total
}

// OptionalCapacity counts the days on which day2, day3 and ICU slots may be
// placed, in that order.
func (c *Calendar) OptionalCapacity() (day2, day3, icu int) {
	for _, day := range c.Days {
		if day.AllowDay2 {
			day2++
		}
		if day.AllowDay3 {
			day3++
		}
		if day.AllowICU {
			icu++
		}
	}
	return day2, day3, icu
}

// SlotOpen reports whether a concrete shift kind can be held at all on the
// given day.
func (d DayCapacity) SlotOpen(kind model.ShiftKind) bool {
	switch kind {
	case model.ShiftEarly, model.ShiftDay1, model.ShiftLate:
		return d.Required[kind] == 1
	case model.ShiftDay2:
		return d.AllowDay2
	case model.ShiftDay3:
		return d.AllowDay3
	case model.ShiftICU:
		return d.AllowICU
	case model.ShiftVacation:
		return true
	}
	return false
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dateSet(dates []time.Time) map[string]bool {
	set := make(map[string]bool, len(dates))
	for _, d := range dates {
		set[midnightUTC(d).Format(dayKey)] = true
	}
	return set
}
