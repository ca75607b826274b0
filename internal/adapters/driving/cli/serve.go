package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pulse/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/pulse/internal/core/domain"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP query API",
	Long: `Serve the HTTP API: event ingestion, activity queries, per-person
summaries, identity binding, document observations and Prometheus metrics
on /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if runnerService == nil || settingsService == nil {
		return errors.New("services not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return err
	}
	server := settings.Server
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		server.Addr = addr
	}

	srv, err := httpapi.NewServer(&httpapi.Ports{
		Runner:     runnerService,
		Registry:   identityService,
		Activities: activityService,
		Summaries:  summaryService,
		Aggregates: aggregateService,
		Tracker:    trackerService,
	}, server)
	if err != nil {
		return err
	}
	cmd.Printf("Listening on %s\n", displayAddr(server))
	return srv.Run(cmd.Context())
}

func displayAddr(s domain.ServerSettings) string {
	if len(s.Addr) > 0 && s.Addr[0] == ':' {
		return "http://localhost" + s.Addr
	}
	return "http://" + s.Addr
}
