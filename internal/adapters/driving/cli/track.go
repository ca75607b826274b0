package cli

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

var trackCmd = &cobra.Command{
	Use:   "track <document-id>",
	Short: "Record a revision of a mutable document",
	Long: `Record the current content of a document and, when the revision is new,
store the change since the previous one as a diff activity attributed to
the editor.

Content is read from --file or stdin. The first observation of a document
only records a baseline.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrack,
}

func init() {
	f := trackCmd.Flags()
	f.String("source", "", "source type of the document")
	f.String("revision", "", "source revision marker")
	f.StringP("file", "f", "", "read content from this file instead of stdin")
	f.String("segmentation", string(domain.SegmentLines), "lines or blocks")
	f.String("editor", "", "editor identity as source_type:source_key")
	f.String("editor-email", "", "editor email address")
	f.String("type", "", "activity type of the diff (default content_diff)")
	f.String("at", "", "modification time of the revision (RFC 3339)")
	_ = trackCmd.MarkFlagRequired("source")
	_ = trackCmd.MarkFlagRequired("revision")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	if trackerService == nil {
		return errors.New("tracker service not configured")
	}
	flags := cmd.Flags()

	source, _ := flags.GetString("source")
	st, err := domain.ParseSourceType(source)
	if err != nil {
		return err
	}

	content, err := readContent(cmd)
	if err != nil {
		return err
	}

	obs := domain.Observation{
		DocumentID: args[0],
		SourceType: st,
		Content:    content,
	}
	obs.RevisionMarker, _ = flags.GetString("revision")
	obs.ActivityType, _ = flags.GetString("type")
	seg, _ := flags.GetString("segmentation")
	obs.Segmentation = domain.Segmentation(seg)

	if v, _ := flags.GetString("editor"); v != "" {
		ref, err := domain.ParseIdentifierRef(v)
		if err != nil {
			return err
		}
		obs.Editor = domain.Actor{SourceType: ref.SourceType, SourceKey: ref.SourceKey}
	} else if v, _ := flags.GetString("editor-email"); v != "" {
		obs.Editor = domain.EmailActor(v, "")
	}
	if v, _ := flags.GetString("at"); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return errors.New("--at must be RFC 3339")
		}
		obs.ObservedAt = at.UTC()
	}

	res, err := trackerService.Observe(cmd.Context(), obs)
	if err != nil {
		return err
	}

	switch {
	case res.Diff != nil:
		renderDiff(cmd.OutOrStdout(), res.Diff)
		cmd.Printf("Stored %s (%s)\n", res.ActivityKey, res.Outcome)
	case res.Changed:
		cmd.Printf("%s: recorded revision %s as %s\n", res.DocumentID, obs.RevisionMarker, res.State)
	default:
		cmd.Printf("%s: revision %s already recorded\n", res.DocumentID, obs.RevisionMarker)
	}
	return nil
}

func readContent(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("file")
	var r io.Reader = cmd.InOrStdin()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
