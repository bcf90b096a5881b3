package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/okabe-dev/wardshift/pkg/core/calendar"
	"github.com/okabe-dev/wardshift/pkg/core/model"
)

const dateLayout = "2006-01-02"

// Plan is the on-disk run input: the period, the roster, every preference and
// pin, and optional setting overrides. Dates are ISO strings so plans stay
// hand-editable.
type Plan struct {
	Period     Period   `json:"period"`
	Holidays   []string `json:"holidays,omitempty"`
	ClosedDays []string `json:"closedDays,omitempty"`
	// BaseOverrides maps a date to the single base kind suppressed that day.
	BaseOverrides map[string]string `json:"baseOverrides,omitempty"`

	Staff       []Staff      `json:"staff"`
	Preferences []Preference `json:"preferences,omitempty"`
	Pins        []Pin        `json:"pins,omitempty"`

	// Settings overrides the production defaults field by field; absent
	// fields keep their defaults.
	Settings *Settings `json:"settings,omitempty"`

	Memo string `json:"memo,omitempty"`
}

type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Staff struct {
	Name            string  `json:"name"`
	Grade           string  `json:"grade"`
	DesiredICURatio float64 `json:"desiredICURatio,omitempty"`
}

type Preference struct {
	Date  string `json:"date"`
	Staff string `json:"staff"`
	Kind  string `json:"kind"`
	Tier  string `json:"tier"`
}

type Pin struct {
	Date  string `json:"date"`
	Staff string `json:"staff"`
	Shift string `json:"shift"`
}

// Settings mirrors model.Settings with optional fields.
type Settings struct {
	PerPersonTotal         *int     `json:"perPersonTotal,omitempty"`
	MaxConsecutive         *int     `json:"maxConsecutive,omitempty"`
	AllowDay3              *bool    `json:"allowDay3,omitempty"`
	AllowWeekendICU        *bool    `json:"allowWeekendICU,omitempty"`
	MaxWeekendICUTotal     *int     `json:"maxWeekendICUTotal,omitempty"`
	MaxWeekendICUPerPerson *int     `json:"maxWeekendICUPerPerson,omitempty"`
	FairnessSlack          *int     `json:"fairnessSlack,omitempty"`
	RelaxedSlack           *int     `json:"relaxedSlack,omitempty"`
	EnableFatigue          *bool    `json:"enableFatigue,omitempty"`
	BonusWeekday           *string  `json:"bonusWeekday,omitempty"`
	Weights                *Weights `json:"weights,omitempty"`
	TimeBudgetSeconds      *float64 `json:"timeBudgetSeconds,omitempty"`
	Workers                *int     `json:"workers,omitempty"`
	Deterministic          *bool    `json:"deterministic,omitempty"`
	Seed                   *int64   `json:"seed,omitempty"`
}

type Weights struct {
	Day2Weekday *float64 `json:"day2Weekday,omitempty"`
	Day2Bonus   *float64 `json:"day2Bonus,omitempty"`
	Day3Weekday *float64 `json:"day3Weekday,omitempty"`
	Day3Bonus   *float64 `json:"day3Bonus,omitempty"`
	ICURatio    *float64 `json:"icuRatio,omitempty"`
	PrefStrong  *float64 `json:"prefStrong,omitempty"`
	PrefWeak    *float64 `json:"prefWeak,omitempty"`
	Fatigue     *float64 `json:"fatigue,omitempty"`
}

// Load reads and parses a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}

	return &plan, nil
}

// Save writes a plan file.
func Save(path string, plan *Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	return nil
}

// Inputs resolves the plan into the typed run inputs: the calendar derivation
// input, the staff roster, raw preferences and pins, and the merged settings.
func (p *Plan) Inputs() (calendar.DeriveInput, []model.StaffMember, []model.PreferenceRequest, []model.PinnedAssignment, model.Settings, error) {
	var in calendar.DeriveInput

	start, err := parseDate(p.Period.Start, "period.start")
	if err != nil {
		return in, nil, nil, nil, model.Settings{}, err
	}
	end, err := parseDate(p.Period.End, "period.end")
	if err != nil {
		return in, nil, nil, nil, model.Settings{}, err
	}

	settings, err := p.resolveSettings()
	if err != nil {
		return in, nil, nil, nil, model.Settings{}, err
	}

	in = calendar.DeriveInput{
		Start:           start,
		End:             end,
		AllowDay3:       settings.AllowDay3,
		AllowWeekendICU: settings.AllowWeekendICU,
	}
	for _, raw := range p.Holidays {
		d, err := parseDate(raw, "holidays")
		if err != nil {
			return in, nil, nil, nil, model.Settings{}, err
		}
		in.Holidays = append(in.Holidays, d)
	}
	for _, raw := range p.ClosedDays {
		d, err := parseDate(raw, "closedDays")
		if err != nil {
			return in, nil, nil, nil, model.Settings{}, err
		}
		in.ClosedDays = append(in.ClosedDays, d)
	}
	if len(p.BaseOverrides) > 0 {
		in.BaseOverrides = make(map[time.Time]model.ShiftKind, len(p.BaseOverrides))
		for raw, kind := range p.BaseOverrides {
			d, err := parseDate(raw, "baseOverrides")
			if err != nil {
				return in, nil, nil, nil, model.Settings{}, err
			}
			in.BaseOverrides[d] = model.ShiftKind(kind)
		}
	}

	staff := make([]model.StaffMember, 0, len(p.Staff))
	for _, s := range p.Staff {
		grade := model.Grade(s.Grade)
		if !grade.IsValid() {
			return in, nil, nil, nil, model.Settings{}, fmt.Errorf("staff %q has unknown grade %q", s.Name, s.Grade)
		}
		staff = append(staff, model.StaffMember{
			Name:            s.Name,
			Grade:           grade,
			DesiredICURatio: s.DesiredICURatio,
		})
	}

	requests := make([]model.PreferenceRequest, 0, len(p.Preferences))
	for _, pref := range p.Preferences {
		d, err := parseDate(pref.Date, "preferences")
		if err != nil {
			return in, nil, nil, nil, model.Settings{}, err
		}
		requests = append(requests, model.PreferenceRequest{
			Date:  d,
			Staff: pref.Staff,
			Kind:  model.PreferenceKind(pref.Kind),
			Tier:  model.Tier(pref.Tier),
		})
	}

	pins := make([]model.PinnedAssignment, 0, len(p.Pins))
	for _, pin := range p.Pins {
		d, err := parseDate(pin.Date, "pins")
		if err != nil {
			return in, nil, nil, nil, model.Settings{}, err
		}
		pins = append(pins, model.PinnedAssignment{
			Date:  d,
			Staff: pin.Staff,
			Shift: model.ShiftKind(pin.Shift),
		})
	}

	return in, staff, requests, pins, settings, nil
}

// resolveSettings merges the plan's overrides over the production defaults.
func (p *Plan) resolveSettings() (model.Settings, error) {
	settings := model.DefaultSettings()
	o := p.Settings
	if o == nil {
		return settings, nil
	}

	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}

	setInt(&settings.PerPersonTotal, o.PerPersonTotal)
	setInt(&settings.MaxConsecutive, o.MaxConsecutive)
	setBool(&settings.AllowDay3, o.AllowDay3)
	setBool(&settings.AllowWeekendICU, o.AllowWeekendICU)
	setInt(&settings.MaxWeekendICUTotal, o.MaxWeekendICUTotal)
	setInt(&settings.MaxWeekendICUPerPerson, o.MaxWeekendICUPerPerson)
	setInt(&settings.FairnessSlack, o.FairnessSlack)
	setInt(&settings.RelaxedSlack, o.RelaxedSlack)
	setBool(&settings.EnableFatigue, o.EnableFatigue)
	if o.BonusWeekday != nil {
		weekday, err := parseWeekday(*o.BonusWeekday)
		if err != nil {
			return model.Settings{}, err
		}
		settings.BonusWeekday = weekday
	}
	if o.Weights != nil {
		setFloat(&settings.Weights.Day2Weekday, o.Weights.Day2Weekday)
		setFloat(&settings.Weights.Day2Bonus, o.Weights.Day2Bonus)
		setFloat(&settings.Weights.Day3Weekday, o.Weights.Day3Weekday)
		setFloat(&settings.Weights.Day3Bonus, o.Weights.Day3Bonus)
		setFloat(&settings.Weights.ICURatio, o.Weights.ICURatio)
		setFloat(&settings.Weights.PrefStrong, o.Weights.PrefStrong)
		setFloat(&settings.Weights.PrefWeak, o.Weights.PrefWeak)
		setFloat(&settings.Weights.Fatigue, o.Weights.Fatigue)
	}
	if o.TimeBudgetSeconds != nil {
		settings.TimeBudget = time.Duration(*o.TimeBudgetSeconds * float64(time.Second))
	}
	setInt(&settings.Workers, o.Workers)
	setBool(&settings.Deterministic, o.Deterministic)
	if o.Seed != nil {
		settings.Seed = *o.Seed
	}

	return settings, nil
}

func parseWeekday(raw string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(raw, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q in settings.bonusWeekday", raw)
}

func parseDate(raw, field string) (time.Time, error) {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q in %s: %w", raw, field, err)
	}
	return d, nil
}
