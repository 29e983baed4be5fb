package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-mirror/internal/config"
	"github.com/jakechorley/shift-mirror/pkg/clients/calendarclient"
	"github.com/jakechorley/shift-mirror/pkg/clients/portalclient"
	"github.com/jakechorley/shift-mirror/pkg/core/model"
	"github.com/jakechorley/shift-mirror/pkg/core/services"
	"github.com/jakechorley/shift-mirror/pkg/utils/logging"
)

// tokenFileName stores the Google OAuth token between runs.
const tokenFileName = "calendarToken.json"

// App holds the application dependencies
type App struct {
	cfg    *config.Config
	creds  *config.Credentials
	portal *portalclient.Client
	logger *zap.Logger
	ctx    context.Context

	// calendar is created lazily: only the sync commands need Google
	// authorization.
	calendar *calendarclient.Client
}

var (
	configPath string
	verbose    bool
	app        *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shift-mirror",
		Short: "Mirror an ESS portal work roster to Google Calendar",
		Long: `shift-mirror logs into a legacy employee self-service portal, navigates
its one-week-at-a-time roster view and mirrors your shifts to Google
Calendar or an ICS file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.logger != nil {
				app.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: search cwd and home)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug output on the console")

	rootCmd.AddCommand(fetchRosterCmd())
	rootCmd.AddCommand(syncCalendarCmd())
	rootCmd.AddCommand(exportIcsCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, credentials and the portal session
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	app.logger, err = logging.InitLogger(verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger.Info("Loading configuration")
	if configPath != "" {
		app.cfg, err = config.LoadFromPath(configPath)
	} else {
		app.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.logger.Info("Loading portal credentials", zap.String("file", app.cfg.CredentialsFile))
	app.creds, err = config.LoadCredentials(app.cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	loc, err := app.cfg.Location()
	if err != nil {
		return fmt.Errorf("failed to resolve timezone: %w", err)
	}

	app.logger.Info("Logging into portal", zap.String("url", app.cfg.PortalURL))
	app.portal, err = portalclient.NewClient(app.ctx, app.cfg.PortalURL, app.creds, loc, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create portal session: %w", err)
	}
	app.logger.Debug("Portal session established")

	return nil
}

// ensureCalendarClient builds the Google Calendar client on first use,
// which may run the interactive OAuth flow.
func ensureCalendarClient() error {
	if app.calendar != nil {
		return nil
	}

	app.logger.Info("Loading OAuth client configuration")
	oauthCfg, err := config.LoadOAuthClient()
	if err != nil {
		return fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	app.logger.Info("Initializing calendar client")
	app.calendar, err = calendarclient.NewClient(app.ctx, oauthCfg, tokenFileName)
	if err != nil {
		return fmt.Errorf("failed to create calendar client: %w", err)
	}

	return nil
}

// Command definitions

func fetchRosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetchRoster [weeks_ahead]",
		Short: "Fetch and print one week's roster (default: current week)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weeksAhead := 0
			if len(args) > 0 {
				var err error
				weeksAhead, err = strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("weeks_ahead must be a number: %w", err)
				}
			}

			loc, err := app.cfg.Location()
			if err != nil {
				return err
			}

			roster, err := services.GetRoster(app.ctx, app.portal, app.logger, loc, weeksAhead, app.cfg.MaxReloads)
			if err != nil {
				return err
			}

			printRoster(roster)
			return nil
		},
	}
}

func syncCalendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "syncCalendar",
		Short: "Mirror the roster onto the configured Google calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureCalendarClient(); err != nil {
				return err
			}

			result, err := services.SyncCalendar(app.ctx, app.portal, app.calendar, app.cfg, app.logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Calendar sync completed!\n\n")
			fmt.Printf("Weeks synced:   %d\n", result.WeeksSynced)
			fmt.Printf("Empty weeks:    %d\n", result.EmptyWeeks)
			fmt.Printf("Events created: %d\n", result.Created)
			fmt.Printf("Events deleted: %d\n", result.Deleted)
			return nil
		},
	}
}

func exportIcsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exportIcs <file>",
		Short: "Export one week's roster as an iCalendar file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weeksAhead, _ := cmd.Flags().GetInt("weeks-ahead")

			loc, err := app.cfg.Location()
			if err != nil {
				return err
			}

			roster, err := services.GetRoster(app.ctx, app.portal, app.logger, loc, weeksAhead, app.cfg.MaxReloads)
			if err != nil {
				return err
			}
			if roster == nil {
				fmt.Println("No roster for the requested week - nothing to export.")
				return nil
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()

			if err := services.ExportICS(roster, app.cfg, f); err != nil {
				return err
			}

			fmt.Printf("\n✓ Exported %d shifts to %s\n", len(roster.Shifts), args[0])
			return nil
		},
	}

	cmd.Flags().Int("weeks-ahead", 0, "Week offset from today (1 = next week, -1 = last week)")

	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep syncing the calendar on the configured cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cfg.RefreshCron == "" {
				return fmt.Errorf("watch requires refreshCron to be set in the config")
			}
			if err := ensureCalendarClient(); err != nil {
				return err
			}

			scheduler := newSyncScheduler(app.logger)
			_, err := scheduler.AddFunc(app.cfg.RefreshCron, func() {
				result, err := services.SyncCalendar(app.ctx, app.portal, app.calendar, app.cfg, app.logger)
				if err != nil {
					app.logger.Error("Scheduled sync failed", zap.Error(err))
					return
				}
				app.logger.Info("Scheduled sync finished",
					zap.Int("created", result.Created),
					zap.Int("deleted", result.Deleted))
			})
			if err != nil {
				return fmt.Errorf("failed to schedule sync: %w", err)
			}

			scheduler.Start()
			defer scheduler.Stop()

			fmt.Printf("Watching - syncing on schedule %q. Press Ctrl+C to stop.\n", app.cfg.RefreshCron)

			ctx, stop := signal.NotifyContext(app.ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			fmt.Println("\nStopping.")
			return nil
		},
	}
}

// newSyncScheduler builds the watch-mode scheduler. Runs are serialized:
// the portal session holds a single current page and is not safe for
// concurrent use, so a sync that outlasts the next tick makes that tick
// skip rather than overlap.
func newSyncScheduler(logger *zap.Logger) *cron.Cron {
	return cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: logger})))
}

// cronLogger adapts zap to the cron logger interface.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

// printRoster renders a roster for the terminal.
func printRoster(roster *model.Roster) {
	if roster == nil {
		fmt.Println("\nNo roster for the requested week.")
		return
	}

	fmt.Printf("\nRoster for week starting %s (%d shifts):\n\n",
		roster.PeriodStart.Format("Mon 02 Jan 2006"), len(roster.Shifts))

	for _, shift := range roster.Shifts {
		line := fmt.Sprintf("  %s  %s - %s",
			shift.Start.Format("Mon 02 Jan"),
			shift.Start.Format("15:04"),
			shift.End.Format("15:04"))
		if shift.Role != "" {
			line += "  " + shift.Role
		}

		if len(shift.Columns) > 0 {
			names := make([]string, 0, len(shift.Columns))
			for name := range shift.Columns {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				line += fmt.Sprintf("  [%s: %s]", name, shift.Columns[name])
			}
		}

		fmt.Println(line)
	}
	fmt.Println()
}
