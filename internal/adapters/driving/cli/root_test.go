package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pulse/internal/app"
	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/core/services"
)

// setupTestServices points every port at services over an in-memory store.
func setupTestServices(t *testing.T) *app.App {
	t.Helper()
	settings := domain.DefaultAppSettings()
	settings.Storage.Driver = domain.StorageMemory
	a := app.NewWithStore(settings, memory.NewStore())

	useApp(a)
	settingsService = services.NewSettingsService(memory.NewConfigStore())
	t.Cleanup(func() {
		_ = a.Close()
		resetPorts()
		settingsService = nil
	})
	return a
}

// execute runs the root command with args and returns its output.
// Flags of every command are reset afterwards.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "person", "bind", "resolve", "unresolved", "roster",
		"activity", "track", "serve", "mcp", "settings", "version"} {
		require.True(t, names[want], "missing command %s", want)
	}
}

func TestCommands_FailWithoutServices(t *testing.T) {
	// A non-nil runner stops bootstrap from opening a real store.
	setupTestServices(t)
	identityService = nil
	activityService = nil
	trackerService = nil
	rosterService = nil

	for _, args := range [][]string{
		{"person", "list"},
		{"activity", "list"},
		{"track", "doc", "--source", "notion", "--revision", "r1"},
		{"roster", "sync", "roster.yaml"},
	} {
		_, err := execute(t, "", args...)
		require.Error(t, err, "%v", args)
		require.Contains(t, err.Error(), "not configured")
	}
}
