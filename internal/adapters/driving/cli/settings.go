package cli

import (
	"errors"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and initialise settings. Settings live in config.toml under
--config-dir; any key can be overridden with an environment variable such
as PULSE_STORAGE_DSN.`,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show current settings",
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runSettingsShow,
}

var settingsInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write the effective settings to config.toml",
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runSettingsInit,
}

func init() {
	settingsInitCmd.Flags().String("driver", "", "storage driver: sqlite, postgres or memory")
	settingsInitCmd.Flags().String("dsn", "", "PostgreSQL connection string")
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsInitCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if err := loadSettingsService(); err != nil {
		return err
	}
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return err
	}
	printSettings(cmd, settings)
	return nil
}

func runSettingsInit(cmd *cobra.Command, _ []string) error {
	if err := loadSettingsService(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		defaults := settingsService.GetDefaults()
		settings = &defaults
	}
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		settings.Storage.Driver = domain.StorageDriver(v)
	}
	if v, _ := cmd.Flags().GetString("dsn"); v != "" {
		settings.Storage.DSN = v
	}

	if err := settingsService.Save(settings); err != nil {
		return err
	}
	cmd.Println(successStyle.Render("Settings saved."))
	printSettings(cmd, settings)
	return nil
}

func printSettings(cmd *cobra.Command, s *domain.AppSettings) {
	cmd.Println(titleStyle.Render("Storage"))
	cmd.Printf("  Driver:   %s (%s)\n", s.Storage.Driver, s.Storage.Driver.Description())
	if s.Storage.DataDir != "" {
		cmd.Printf("  Data dir: %s\n", s.Storage.DataDir)
	}
	if s.Storage.DSN != "" {
		cmd.Printf("  DSN:      %s\n", maskDSN(s.Storage.DSN))
	}

	cmd.Println(titleStyle.Render("Logging"))
	cmd.Printf("  Level:  %s\n", s.Log.Level)
	cmd.Printf("  Format: %s\n", s.Log.Format)

	cmd.Println(titleStyle.Render("Ingestion"))
	cmd.Printf("  Workers per source: %d\n", s.Ingest.WorkersPerSource)
	if s.Ingest.MaxEventsPerSecond > 0 {
		cmd.Printf("  Max events/second:  %g\n", s.Ingest.MaxEventsPerSecond)
	} else {
		cmd.Println("  Max events/second:  unlimited")
	}

	cmd.Println(titleStyle.Render("Query"))
	cmd.Printf("  Page size:  %d\n", s.Query.PageSize)
	cmd.Printf("  Max recent: %d\n", s.Query.MaxRecent)

	cmd.Println(titleStyle.Render("Server"))
	cmd.Printf("  Address:          %s\n", s.Server.Addr)
	cmd.Printf("  Shutdown timeout: %s\n", s.Server.ShutdownTimeout)
}

// maskDSN hides the password of a URL-form DSN.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
