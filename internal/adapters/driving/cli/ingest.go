package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pulse/internal/adapters/driving/spool"
	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/logger"
	"github.com/custodia-labs/pulse/internal/normalisers/jsonl"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.jsonl>...",
	Short: "Ingest event files",
	Long: `Ingest one or more newline-delimited JSON event files as a single run.
Use "-" to read from stdin.

Events already in the log are skipped. Malformed lines are counted and
reported; they never stop the run. Actors that do not resolve to a person
are listed at the end so they can be bound.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var ingestWatchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest event files as they appear in a spool directory",
	Long: `Watch a spool directory and ingest every *.jsonl file renamed into it.
Processed files move to done/ and files that fail move to failed/.

With --once the files already present are ingested and the command exits.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestWatch,
}

func init() {
	ingestCmd.Flags().Bool("json", false, "print the run summary as JSON")
	ingestWatchCmd.Flags().Bool("once", false, "process existing files and exit")
	ingestCmd.AddCommand(ingestWatchCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if runnerService == nil {
		return errors.New("ingest service not configured")
	}

	var (
		events   []domain.Event
		rejected []error
	)
	for _, path := range args {
		e, bad, err := readEvents(cmd, path)
		if err != nil {
			return err
		}
		events = append(events, e...)
		rejected = append(rejected, bad...)
	}

	summary, err := ingestEvents(cmd.Context(), events, rejected)
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if jerr := writeSummaryJSON(cmd.OutOrStdout(), summary); jerr != nil {
			return jerr
		}
	} else {
		renderRunSummary(cmd.OutOrStdout(), summary, rejected)
	}
	return err
}

// ingestEvents runs one ingestion and folds decode rejects into its summary.
func ingestEvents(ctx context.Context, events []domain.Event, rejected []error) (*domain.RunSummary, error) {
	summary, err := runnerService.Run(ctx, events)
	if summary == nil {
		summary = domain.NewRunSummary()
	}
	for range rejected {
		summary.RecordMalformed()
	}
	return summary, err
}

func readEvents(cmd *cobra.Command, path string) ([]domain.Event, []error, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		r = f
	}

	events, rejected, err := jsonl.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	for i, bad := range rejected {
		rejected[i] = fmt.Errorf("%s: %w", path, bad)
	}
	return events, rejected, nil
}

func writeSummaryJSON(w io.Writer, s *domain.RunSummary) error {
	type warning struct {
		Actor       string `json:"actor"`
		Occurrences int    `json:"occurrences"`
	}
	out := struct {
		Inserted         int       `json:"inserted"`
		AlreadyExisting  int       `json:"already_existing"`
		Malformed        int       `json:"malformed"`
		UnresolvedEvents int       `json:"unresolved_events"`
		Unresolved       []warning `json:"unresolved_actors"`
	}{
		Inserted:         s.Inserted(),
		AlreadyExisting:  s.AlreadyExisting(),
		Malformed:        s.Malformed(),
		UnresolvedEvents: s.UnresolvedEvents(),
		Unresolved:       []warning{},
	}
	for _, warn := range s.Warnings() {
		out.Unresolved = append(out.Unresolved, warning{Actor: warn.Actor.String(), Occurrences: warn.Occurrences})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runIngestWatch(cmd *cobra.Command, args []string) error {
	if runnerService == nil {
		return errors.New("ingest service not configured")
	}

	w := spool.New(args[0], ingestFile)
	if once, _ := cmd.Flags().GetBool("once"); once {
		done, failed, err := w.ProcessExisting(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("Processed %d file(s), %d failed\n", done, failed)
		return nil
	}
	return w.Run(cmd.Context())
}

// ingestFile is the spool handler. Malformed lines do not fail a file;
// a datastore error does.
func ingestFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	events, rejected, err := jsonl.ReadAll(f)
	if err != nil {
		return err
	}
	ctx = logger.WithRunID(ctx, logger.NewID())
	summary, err := ingestEvents(ctx, events, rejected)
	if err != nil {
		return err
	}

	logger.Ctx(ctx).Info().
		Str("file", path).
		Int("inserted", summary.Inserted()).
		Int("already_existing", summary.AlreadyExisting()).
		Int("malformed", summary.Malformed()).
		Int("unresolved_events", summary.UnresolvedEvents()).
		Msg("spool run finished")
	return nil
}
