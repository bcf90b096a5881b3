package snapshot

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/okabe-dev/wardshift/pkg/core/model"
	"github.com/okabe-dev/wardshift/pkg/core/roster"
)

// RunSnapshot is the persisted outcome of one solve: the plan it ran from and
// the projected roster, so a run can be inspected or re-published later.
type RunSnapshot struct {
	SavedAt   string  `json:"savedAt"`
	Status    string  `json:"status"`
	Objective float64 `json:"objective"`
	// DisabledSoft describes the soft records the recovery controller
	// dropped to reach this roster.
	DisabledSoft []string `json:"disabledSoft,omitempty"`

	Plan   Plan         `json:"plan"`
	Roster []RosterDay  `json:"roster"`
	Stats  []StaffStats `json:"stats"`
}

// RosterDay is one presentable roster row.
type RosterDay struct {
	Date    string              `json:"date"`
	Weekday string              `json:"weekday"`
	Holiday bool                `json:"holiday,omitempty"`
	Shifts  map[string][]string `json:"shifts"`
	Off     []string            `json:"off,omitempty"`
}

// StaffStats is one person's aggregate line.
type StaffStats struct {
	Name         string         `json:"name"`
	Grade        string         `json:"grade"`
	Counts       map[string]int `json:"counts"`
	Total        int            `json:"total"`
	HolidayTotal int            `json:"holidayTotal"`
	Fatigue      int            `json:"fatigue"`
	StrongRate   float64        `json:"strongRate"`
	WeakRate     float64        `json:"weakRate"`
	ICUTarget    int            `json:"icuTarget,omitempty"`
	ICUActual    int            `json:"icuActual,omitempty"`
}

// BuildRunSnapshot assembles the persisted form of a solved run.
func BuildRunSnapshot(plan *Plan, proj *roster.Projection, report *roster.Report) *RunSnapshot {
	snap := &RunSnapshot{
		SavedAt:   time.Now().UTC().Format(time.RFC3339),
		Status:    string(proj.Status),
		Objective: proj.Objective,
		Plan:      *plan,
	}
	for _, rec := range report.DisabledSoft {
		snap.DisabledSoft = append(snap.DisabledSoft,
			fmt.Sprintf("%s %s %s-%s", rec.Date.Format(dateLayout), rec.Staff, rec.Tier, rec.Kind))
	}
	for _, day := range proj.Days {
		row := RosterDay{
			Date:    day.Date.Format(dateLayout),
			Weekday: day.Date.Weekday().String(),
			Holiday: day.Holiday,
			Shifts:  make(map[string][]string),
		}
		for kind, names := range day.Assigned {
			row.Shifts[string(kind)] = names
		}
		for _, tier := range []model.Tier{model.TierAbsolute, model.TierStrong, model.TierWeak} {
			row.Off = append(row.Off, day.OffGranted[tier]...)
		}
		snap.Roster = append(snap.Roster, row)
	}
	for _, s := range proj.Staff {
		stats := StaffStats{
			Name:         s.Name,
			Grade:        string(s.Grade),
			Counts:       make(map[string]int),
			Total:        s.Total,
			HolidayTotal: s.HolidayTotal,
			Fatigue:      s.FatigueEvents,
			StrongRate:   s.Strong.Fraction(),
			WeakRate:     s.Weak.Fraction(),
			ICUTarget:    s.ICUTarget,
			ICUActual:    s.ICUActual,
		}
		for kind, n := range s.Counts {
			stats.Counts[string(kind)] = n
		}
		snap.Stats = append(snap.Stats, stats)
	}
	return snap
}

// SaveRunSnapshot writes a run snapshot file.
func SaveRunSnapshot(path string, snap *RunSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run snapshot: %w", err)
	}
	return nil
}

// LoadRunSnapshot reads a run snapshot file back.
func LoadRunSnapshot(path string) (*RunSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run snapshot: %w", err)
	}
	var snap RunSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse run snapshot: %w", err)
	}
	return &snap, nil
}

// WriteCSV renders the roster as one CSV row per day, one column per kind,
// names joined with "/" when a kind holds several people.
func WriteCSV(w io.Writer, proj *roster.Projection) error {
	cw := csv.NewWriter(w)

	header := []string{"date", "weekday"}
	for _, kind := range model.AllShiftKinds() {
		header = append(header, string(kind))
	}
	header = append(header, "off")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, day := range proj.Days {
		row := []string{day.Date.Format(dateLayout), day.Date.Weekday().String()}
		for _, kind := range model.AllShiftKinds() {
			row = append(row, strings.Join(day.Assigned[kind], "/"))
		}
		var off []string
		for _, tier := range []model.Tier{model.TierAbsolute, model.TierStrong, model.TierWeak} {
			off = append(off, day.OffGranted[tier]...)
		}
		row = append(row, strings.Join(off, "/"))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
