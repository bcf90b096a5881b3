package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/okabe-dev/wardshift/internal/config"
	"github.com/okabe-dev/wardshift/pkg/clients/sheetsclient"
	"github.com/okabe-dev/wardshift/pkg/core/calendar"
	"github.com/okabe-dev/wardshift/pkg/core/model"
	"github.com/okabe-dev/wardshift/pkg/core/prefs"
	"github.com/okabe-dev/wardshift/pkg/core/roster"
	"github.com/okabe-dev/wardshift/pkg/core/services"
	"github.com/okabe-dev/wardshift/pkg/db"
	"github.com/okabe-dev/wardshift/pkg/postgres"
	"github.com/okabe-dev/wardshift/pkg/snapshot"
	"github.com/okabe-dev/wardshift/pkg/utils/logging"
)

// App holds the application dependencies. The sheets client and the history
// store are expensive to set up (OAuth flow, database connection), so they are
// initialized lazily by the commands that need them.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	ctx      context.Context
	sheets   *sheetsclient.Client
	database *postgres.DB
}

var (
	env string
	app *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wardshift",
		Short: "Wardshift CLI - Generate and publish ward shift rosters",
		Long:  `A CLI tool for generating monthly ward shift rosters from staff preference plans, inspecting the derived calendar, and publishing results.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if app.database != nil {
					app.database.Close()
				}
				if app.logger != nil {
					app.logger.Sync()
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(solveCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(publishCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up the logger and configuration.
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	app.logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger.Info("Starting application", zap.String("environment", env))

	app.cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.logger.Debug("Configuration loaded successfully")

	return nil
}

// sheetsClient initializes the Google Sheets client on first use.
func (a *App) sheetsClient() (*sheetsclient.Client, error) {
	if a.sheets != nil {
		return a.sheets, nil
	}

	a.logger.Info("Loading OAuth client configuration")
	oauthCfg, err := config.LoadOAuthClientWithEnv(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	a.logger.Info("Initializing sheets client")
	a.sheets, err = sheetsclient.NewClient(a.ctx, oauthCfg, env)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return a.sheets, nil
}

// runStore connects to the solve-run history database on first use.
func (a *App) runStore() (db.RunStore, error) {
	if a.database != nil {
		return a.database, nil
	}
	if a.cfg.PostgresURL == "" {
		return nil, fmt.Errorf("no postgresURL configured; run history is unavailable")
	}

	a.logger.Info("Connecting to history database")
	database, err := postgres.NewDB(a.ctx, a.cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.RunMigrations(a.ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	a.database = database
	return a.database, nil
}

// planPath resolves the plan file: the flag when given, the config otherwise.
func planPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if app.cfg.PlanPath != "" {
		return app.cfg.PlanPath, nil
	}
	return "", fmt.Errorf("no plan file given and no planPath configured")
}

// Command definitions

func solveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Generate a roster from a plan file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			planFlag, _ := cmd.Flags().GetString("plan")
			csvPath, _ := cmd.Flags().GetString("csv")
			snapshotPath, _ := cmd.Flags().GetString("snapshot")
			saveHistory, _ := cmd.Flags().GetBool("save-history")

			path, err := planPath(planFlag)
			if err != nil {
				return err
			}

			plan, err := snapshot.Load(path)
			if err != nil {
				return err
			}

			result, err := services.GenerateRoster(app.ctx, plan, roster.NewCPSolver(app.logger), app.logger)
			if err != nil {
				var verr *prefs.ValidationError
				if errors.As(err, &verr) {
					printViolations(verr)
					return fmt.Errorf("plan is invalid")
				}
				return err
			}

			if !result.Solved() {
				printDiagnosis(result.Report)
				return fmt.Errorf("no feasible roster")
			}

			printRoster(result.Projection)
			printStats(result.Projection)
			printConcessions(result)
			printHints(services.ImprovementHints(result))

			if csvPath != "" {
				if err := writeCSVFile(csvPath, result.Projection); err != nil {
					return err
				}
				fmt.Printf("CSV written to %s\n", csvPath)
			}

			// Every solved run leaves a snapshot behind; --snapshot only
			// picks the path.
			snap := snapshot.BuildRunSnapshot(plan, result.Projection, result.Report)
			if snapshotPath == "" {
				snapshotPath = filepath.Join(app.cfg.SnapshotDir,
					fmt.Sprintf("run_%s.json", time.Now().Format("2006-01-02_15-04-05")))
			}
			if err := os.MkdirAll(filepath.Dir(snapshotPath), 0755); err != nil {
				return fmt.Errorf("failed to create snapshot directory: %w", err)
			}
			if err := snapshot.SaveRunSnapshot(snapshotPath, snap); err != nil {
				return err
			}
			fmt.Printf("Snapshot written to %s\n", snapshotPath)

			if saveHistory {
				store, err := app.runStore()
				if err != nil {
					return err
				}
				runID, err := services.SaveRun(app.ctx, store, result, app.logger)
				if err != nil {
					return err
				}
				fmt.Printf("Run saved to history: %s\n", runID)
			}

			return nil
		},
	}

	cmd.Flags().String("plan", "", "Plan file (defaults to planPath from config)")
	cmd.Flags().String("csv", "", "Write the roster as CSV to this path")
	cmd.Flags().String("snapshot", "", "Run snapshot path (defaults to a timestamped file under snapshotDir)")
	cmd.Flags().Bool("save-history", false, "Save the run to the history database")

	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a plan file without solving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			planFlag, _ := cmd.Flags().GetString("plan")
			path, err := planPath(planFlag)
			if err != nil {
				return err
			}

			plan, err := snapshot.Load(path)
			if err != nil {
				return err
			}
			deriveInput, staff, requests, pins, settings, err := plan.Inputs()
			if err != nil {
				return fmt.Errorf("failed to resolve plan: %w", err)
			}

			cal, err := calendar.Derive(deriveInput)
			if err != nil {
				return err
			}

			classified, err := prefs.Classify(cal, staff, requests, pins)
			if err != nil {
				var verr *prefs.ValidationError
				if errors.As(err, &verr) {
					printViolations(verr)
					return fmt.Errorf("plan is invalid")
				}
				return err
			}

			if err := roster.CheckCapacity(cal, staff, settings, classified, app.logger); err != nil {
				fmt.Printf("\n✗ Capacity check failed: %v\n", err)
				return fmt.Errorf("plan is invalid")
			}

			demoted := 0
			for _, rec := range classified.Records {
				if rec.Demoted {
					demoted++
					fmt.Printf("  note: %s %s absolute %q demoted to strong\n",
						rec.Date.Format("2006-01-02"), rec.Staff, rec.Kind)
				}
			}

			fmt.Printf("\n✓ Plan is valid: %d days, %d staff, %d preference records (%d demoted), %d pins\n",
				len(cal.Days), len(staff), len(classified.Records), demoted, len(classified.Pins))
			return nil
		},
	}

	cmd.Flags().String("plan", "", "Plan file (defaults to planPath from config)")

	return cmd
}

func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show the derived day-by-day capacity for a plan's period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			planFlag, _ := cmd.Flags().GetString("plan")
			path, err := planPath(planFlag)
			if err != nil {
				return err
			}

			plan, err := snapshot.Load(path)
			if err != nil {
				return err
			}
			deriveInput, _, _, _, _, err := plan.Inputs()
			if err != nil {
				return fmt.Errorf("failed to resolve plan: %w", err)
			}

			cal, err := calendar.Derive(deriveInput)
			if err != nil {
				return err
			}

			fmt.Printf("\n%-12s %-10s %-8s %-8s %-16s %-6s %-6s %-6s\n",
				"Date", "Weekday", "Holiday", "Closed", "Base", "Day2", "Day3", "ICU")
			for _, day := range cal.Days {
				base := make([]string, 0, 3)
				for _, kind := range model.BaseShiftKinds() {
					if day.Required[kind] == 1 {
						base = append(base, string(kind))
					}
				}
				fmt.Printf("%-12s %-10s %-8s %-8s %-16s %-6s %-6s %-6s\n",
					day.Date.Format("2006-01-02"),
					day.Weekday,
					yesNo(day.Holiday),
					yesNo(day.Closed),
					strings.Join(base, ","),
					yesNo(day.AllowDay2),
					yesNo(day.AllowDay3),
					yesNo(day.AllowICU),
				)
			}

			day2, day3, icu := cal.OptionalCapacity()
			fmt.Printf("\nBase slots required: %d\n", cal.RequiredCoverage())
			fmt.Printf("Optional slots:      day2 on %d days, day3 on %d days, ICU on %d days\n", day2, day3, icu)
			return nil
		},
	}

	cmd.Flags().String("plan", "", "Plan file (defaults to planPath from config)")

	return cmd
}

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <snapshot_file>",
		Short: "Publish a saved run snapshot to the roster spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot.LoadRunSnapshot(args[0])
			if err != nil {
				return err
			}

			client, err := app.sheetsClient()
			if err != nil {
				return err
			}

			tabTitle, err := services.PublishRoster(app.ctx, client, app.cfg.RosterSheetID, snap, app.logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Roster published to tab %q\n", tabTitle)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run_id]",
		Short: "List saved runs, or show one run in full",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.runStore()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				run, err := store.GetRun(app.ctx, args[0])
				if err != nil {
					return err
				}
				printRun(run)
				return nil
			}

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := store.GetRuns(app.ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No saved runs.")
				return nil
			}

			fmt.Printf("\n%-38s %-22s %-10s %-10s %s\n", "ID", "Saved", "Status", "Objective", "Memo")
			for _, run := range runs {
				fmt.Printf("%-38s %-22s %-10s %-10.0f %s\n",
					run.ID,
					run.CreatedAt.Format(time.RFC3339),
					run.Status,
					run.Objective,
					run.Memo,
				)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")

	return cmd
}

// Output helpers

func printViolations(verr *prefs.ValidationError) {
	fmt.Printf("\n✗ %d invalid input record(s):\n", len(verr.Violations))
	for _, v := range verr.Violations {
		fmt.Printf("  - %s\n", v)
	}
}

func printRoster(proj *roster.Projection) {
	kinds := model.AllShiftKinds()

	fmt.Printf("\n%-12s %-10s", "Date", "Weekday")
	for _, kind := range kinds {
		fmt.Printf(" %-14s", kind)
	}
	fmt.Printf(" %s\n", "off")

	for _, day := range proj.Days {
		marker := " "
		if day.Holiday {
			marker = "*"
		}
		fmt.Printf("%-12s %-9s%s", day.Date.Format("2006-01-02"), day.Date.Weekday(), marker)
		for _, kind := range kinds {
			fmt.Printf(" %-14s", strings.Join(day.Assigned[kind], "/"))
		}
		var off []string
		for _, tier := range []model.Tier{model.TierAbsolute, model.TierStrong, model.TierWeak} {
			off = append(off, day.OffGranted[tier]...)
		}
		fmt.Printf(" %s\n", strings.Join(off, "/"))
	}
}

func printStats(proj *roster.Projection) {
	fmt.Printf("\n%-14s %-6s %-6s %-8s %-8s %-8s %-8s %s\n",
		"Staff", "Grade", "Total", "Holiday", "Fatigue", "Strong", "Weak", "ICU")
	for _, s := range proj.Staff {
		icu := "-"
		if s.ICUTarget > 0 || s.ICUActual > 0 {
			icu = fmt.Sprintf("%d/%d", s.ICUActual, s.ICUTarget)
		}
		fmt.Printf("%-14s %-6s %-6d %-8d %-8d %-8s %-8s %s\n",
			s.Name,
			s.Grade,
			s.Total,
			s.HolidayTotal,
			s.FatigueEvents,
			fmt.Sprintf("%d/%d", s.Strong.Satisfied, s.Strong.Applicable),
			fmt.Sprintf("%d/%d", s.Weak.Satisfied, s.Weak.Applicable),
			icu,
		)
	}
	fmt.Printf("\nStatus: %s, objective %.0f\n", proj.Status, proj.Objective)
}

func printConcessions(result *services.GenerateResult) {
	report := result.Report
	if report.FinalState != roster.StateStrict {
		fmt.Printf("\nConcessions made to reach feasibility (final state %q):\n", report.FinalState)
		if report.FinalAttempt.FairnessSlack != result.Settings.FairnessSlack {
			fmt.Printf("  - weekend fairness slack widened to ±%d\n", report.FinalAttempt.FairnessSlack)
		}
		if report.FinalAttempt.WeakenPlacementBonus {
			fmt.Println("  - placement bonuses halved")
		}
		for _, rec := range report.DisabledSoft {
			fmt.Printf("  - dropped %s %s %s-%s\n",
				rec.Date.Format("2006-01-02"), rec.Staff, rec.Tier, rec.Kind)
		}
	}
	if report.SawUnknown {
		fmt.Println("\n⚠️  Some attempts ran out of time without a verdict; consider raising the time budget.")
	}
}

func printHints(hints []string) {
	if len(hints) == 0 {
		return
	}
	fmt.Println("\nHints:")
	for _, hint := range hints {
		fmt.Printf("  - %s\n", hint)
	}
}

func printDiagnosis(report *roster.Report) {
	fmt.Println("\n✗ No roster satisfies the hard constraints, even fully relaxed.")
	if report.SawUnknown {
		fmt.Println("⚠️  Some attempts ran out of time without a verdict; a larger time budget may change the outcome.")
	}
	if len(report.BlockingCandidates) > 0 {
		fmt.Println("\nRemoving any one of these absolute requests makes the plan solvable:")
		for _, rec := range report.BlockingCandidates {
			fmt.Printf("  - %s %s %s-%s\n",
				rec.Date.Format("2006-01-02"), rec.Staff, rec.Tier, rec.Kind)
		}
	} else if report.NoSingleBlocker {
		fmt.Println("\nNo single absolute request is responsible: the conflict involves several together, or the structural constraints themselves.")
	}
}

func printRun(run *db.SolveRun) {
	fmt.Printf("\nRun %s\n", run.ID)
	fmt.Printf("Saved:      %s\n", run.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Status:     %s\n", run.Status)
	fmt.Printf("Objective:  %.0f\n", run.Objective)
	fmt.Printf("Slack:      %d\n", run.FairnessSlack)
	fmt.Printf("Weakened:   %t\n", run.WeakenedBonus)
	if run.Memo != "" {
		fmt.Printf("Memo:       %s\n", run.Memo)
	}
	if len(run.DisabledSoft) > 0 {
		fmt.Println("Dropped requests:")
		for _, d := range run.DisabledSoft {
			fmt.Printf("  - %s\n", d)
		}
	}
	fmt.Printf("\nRoster snapshot:\n%s\n", string(run.RosterJSON))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func writeCSVFile(path string, proj *roster.Projection) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()
	return snapshot.WriteCSV(f, proj)
}
