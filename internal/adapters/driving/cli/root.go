// Package cli implements the pulse command line.
//
// Commands talk to driving ports held in package variables. The root
// command fills them from the configuration file before any subcommand
// runs; tests inject their own and the bootstrap steps aside.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pulse/internal/adapters/driven/config/file"
	"github.com/custodia-labs/pulse/internal/app"
	"github.com/custodia-labs/pulse/internal/core/ports/driving"
	"github.com/custodia-labs/pulse/internal/core/services"
	"github.com/custodia-labs/pulse/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// annotationNoStore marks commands that run without opening the datastore.
const annotationNoStore = "pulse/no-store"

var (
	configDir string
	verbose   bool

	settingsService  driving.SettingsService
	identityService  driving.IdentityRegistry
	rosterService    driving.RosterService
	runnerService    driving.IngestRunner
	activityService  driving.ActivityService
	summaryService   driving.SummaryService
	aggregateService driving.AggregateService
	trackerService   driving.SnapshotTracker

	// opened is the app bootstrap created and shutdown must close.
	opened *app.App
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Team activity feed across GitHub, Slack, Notion, Drive and email",
	Long: `Pulse ingests activity events from collaboration tools, attributes each
one to a canonical person, tracks edits to mutable documents as diffs, and
serves the resulting feed to the CLI, an HTTP API and MCP clients.`,
	SilenceUsage:       true,
	PersistentPreRunE:  bootstrap,
	PersistentPostRunE: shutdown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding config.toml (default ~/.pulse)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// bootstrap loads settings, configures logging and opens the store.
func bootstrap(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if cmd.Annotations[annotationNoStore] == "true" || runnerService != nil {
		return nil
	}
	if err := loadSettingsService(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		return err
	}
	logger.Init(logger.Config{Level: settings.Log.Level, Format: settings.Log.Format})

	a, err := app.New(*settings)
	if err != nil {
		return err
	}
	useApp(a)
	opened = a
	return nil
}

// loadSettingsService reads config.toml from --config-dir unless a
// settings service is already set.
func loadSettingsService() error {
	if settingsService != nil {
		return nil
	}
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return err
	}
	settingsService = services.NewSettingsService(store)
	return nil
}

// useApp points every port at the services of a.
func useApp(a *app.App) {
	identityService = a.Identity
	rosterService = a.Roster
	runnerService = a.Runner
	activityService = a.Query
	summaryService = a.Query
	aggregateService = a.Query
	trackerService = a.Tracker
}

func shutdown(_ *cobra.Command, _ []string) error {
	if opened == nil {
		return nil
	}
	err := opened.Close()
	opened = nil
	resetPorts()
	return err
}

func resetPorts() {
	identityService = nil
	rosterService = nil
	runnerService = nil
	activityService = nil
	summaryService = nil
	aggregateService = nil
	trackerService = nil
}
