package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/okabe-dev/wardshift/pkg/core/calendar"
	"github.com/okabe-dev/wardshift/pkg/core/model"
	"github.com/okabe-dev/wardshift/pkg/core/prefs"
	"github.com/okabe-dev/wardshift/pkg/core/roster"
	"github.com/okabe-dev/wardshift/pkg/db"
	"github.com/okabe-dev/wardshift/pkg/snapshot"
)

// GenerateResult is the outcome of one full roster generation run.
type GenerateResult struct {
	Plan     *snapshot.Plan
	Calendar *calendar.Calendar
	Staff    []model.StaffMember
	Settings model.Settings

	// Report always carries the recovery trail; Projection is non-nil only
	// when a roster was found.
	Report     *roster.Report
	Projection *roster.Projection
}

// Solved reports whether the run produced a usable roster.
func (r *GenerateResult) Solved() bool {
	return r.Report != nil && r.Report.Status.Solved()
}

// GenerateRoster runs the full pipeline for one plan: derive the calendar,
// classify and validate the preferences, pre-check capacity, then hand the
// model to the recovery controller. Invalid input surfaces as an error;
// an unsolvable model is a valid result carrying the diagnosis.
func GenerateRoster(ctx context.Context, plan *snapshot.Plan, solver roster.Solver, logger *zap.Logger) (*GenerateResult, error) {
	deriveInput, staff, requests, pins, settings, err := plan.Inputs()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}
	if len(staff) == 0 {
		return nil, fmt.Errorf("plan has no staff")
	}

	logger.Debug("Deriving calendar",
		zap.String("start", deriveInput.Start.Format("2006-01-02")),
		zap.String("end", deriveInput.End.Format("2006-01-02")))
	cal, err := calendar.Derive(deriveInput)
	if err != nil {
		return nil, fmt.Errorf("failed to derive calendar: %w", err)
	}

	logger.Debug("Classifying preferences",
		zap.Int("requests", len(requests)),
		zap.Int("pins", len(pins)))
	classified, err := prefs.Classify(cal, staff, requests, pins)
	if err != nil {
		return nil, fmt.Errorf("preference validation failed: %w", err)
	}

	if err := roster.CheckCapacity(cal, staff, settings, classified, logger); err != nil {
		return nil, fmt.Errorf("capacity pre-check failed: %w", err)
	}

	builder := roster.NewBuilder(cal, staff, classified, settings)
	controller := roster.NewController(
		builder.BuildFunc(),
		solver,
		roster.OptionsFromSettings(settings),
		settings,
		classified,
		logger,
	)

	logger.Info("Solving roster",
		zap.Int("days", len(cal.Days)),
		zap.Int("staff", len(staff)),
		zap.Duration("budget", settings.TimeBudget))
	report, err := controller.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("solve run failed: %w", err)
	}

	result := &GenerateResult{
		Plan:     plan,
		Calendar: cal,
		Staff:    staff,
		Settings: settings,
		Report:   report,
	}

	if report.Status.Solved() {
		projection, err := roster.Project(cal, staff, classified, settings, report)
		if err != nil {
			return nil, fmt.Errorf("failed to project result: %w", err)
		}
		result.Projection = projection
		logger.Info("Roster generated",
			zap.String("status", string(report.Status)),
			zap.Float64("objective", report.Objective),
			zap.String("finalState", string(report.FinalState)),
			zap.Int("disabledSoft", len(report.DisabledSoft)))
	} else {
		logger.Warn("No roster found",
			zap.Int("blockingCandidates", len(report.BlockingCandidates)),
			zap.Bool("noSingleBlocker", report.NoSingleBlocker),
			zap.Bool("sawUnknown", report.SawUnknown))
	}

	return result, nil
}

// SaveRun records a solved run in the history store.
func SaveRun(ctx context.Context, store db.RunStore, result *GenerateResult, logger *zap.Logger) (string, error) {
	if !result.Solved() {
		return "", fmt.Errorf("cannot save an unsolved run")
	}

	planJSON, err := json.Marshal(result.Plan)
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan: %w", err)
	}
	snap := snapshot.BuildRunSnapshot(result.Plan, result.Projection, result.Report)
	rosterJSON, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal roster snapshot: %w", err)
	}

	run := &db.SolveRun{
		ID:            uuid.New().String(),
		CreatedAt:     time.Now().UTC(),
		Status:        string(result.Report.Status),
		Objective:     result.Report.Objective,
		FairnessSlack: result.Report.FinalAttempt.FairnessSlack,
		WeakenedBonus: result.Report.FinalAttempt.WeakenPlacementBonus,
		PlanJSON:      planJSON,
		RosterJSON:    rosterJSON,
		Memo:          result.Plan.Memo,
	}
	for _, rec := range result.Report.DisabledSoft {
		run.DisabledSoft = append(run.DisabledSoft,
			fmt.Sprintf("%s %s %s-%s", rec.Date.Format("2006-01-02"), rec.Staff, rec.Tier, rec.Kind))
	}

	if err := store.InsertRun(ctx, run); err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}

	logger.Info("Run saved to history", zap.String("run_id", run.ID))
	return run.ID, nil
}
