package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Read the activity log",
}

var activityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List activities, newest first",
	Long: `List activities newest first. Filters combine:

  pulse activity list --person p-123 --since 2024-05-01T00:00:00Z
  pulse activity list --identifier github:janedoe --type commit

Use --cursor with the value printed after a page to read the next one.`,
	Args: cobra.NoArgs,
	RunE: runActivityList,
}

var activitySummaryCmd = &cobra.Command{
	Use:   "summary [person-id...]",
	Short: "Activity count and recent activity per person",
	Long: `Show how many activities each person has and their most recent ones.
Without arguments every active person is summarised.`,
	RunE: runActivitySummary,
}

func init() {
	f := activityListCmd.Flags()
	f.String("person", "", "person id")
	f.String("identifier", "", "source identity as source_type:source_key")
	f.String("source", "", "source type")
	f.String("type", "", "activity type")
	f.String("since", "", "inclusive lower bound (RFC 3339)")
	f.String("until", "", "exclusive upper bound (RFC 3339)")
	f.String("cursor", "", "resume after a previous page")
	f.IntP("limit", "n", 20, "page size")
	f.Bool("json", false, "print activities as JSON")

	activitySummaryCmd.Flags().Int("recent", 5, "recent activities per person")

	activityCmd.AddCommand(activityListCmd)
	activityCmd.AddCommand(activitySummaryCmd)
	rootCmd.AddCommand(activityCmd)
}

func runActivityList(cmd *cobra.Command, _ []string) error {
	if activityService == nil {
		return errors.New("activity service not configured")
	}
	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	cursor, _ := cmd.Flags().GetString("cursor")
	limit, _ := cmd.Flags().GetInt("limit")

	page, err := activityService.QueryPage(cmd.Context(), filter, cursor, limit)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		out := struct {
			Activities []activityJSON `json:"activities"`
			NextCursor string         `json:"next_cursor,omitempty"`
		}{make([]activityJSON, len(page.Activities)), page.NextCursor}
		for i := range page.Activities {
			out.Activities[i] = toActivityJSON(&page.Activities[i])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	renderActivities(cmd.OutOrStdout(), page.Activities, personNames(cmd))
	if page.NextCursor != "" {
		cmd.Println(mutedStyle.Render("next page: --cursor " + page.NextCursor))
	}
	return nil
}

func runActivitySummary(cmd *cobra.Command, args []string) error {
	if summaryService == nil {
		return errors.New("summary service not configured")
	}
	recent, _ := cmd.Flags().GetInt("recent")
	names := personNames(cmd)

	ids := args
	if len(ids) == 0 {
		if identityService == nil {
			return errors.New("identity service not configured")
		}
		persons, err := identityService.ListPersons(cmd.Context(), false)
		if err != nil {
			return err
		}
		for i := range persons {
			ids = append(ids, persons[i].ID)
		}
	}
	if len(ids) == 0 {
		cmd.Println("No persons.")
		return nil
	}

	summaries, err := summaryService.Summaries(cmd.Context(), ids, recent)
	if err != nil {
		return err
	}

	t := newTable("Person", "Activities", "Latest")
	for i := range summaries {
		latest := ""
		if len(summaries[i].Recent) > 0 {
			a := summaries[i].Recent[0]
			latest = fmt.Sprintf("%s %s/%s", a.OccurredAt.Format(time.RFC3339), a.SourceType, a.ActivityType)
		}
		t.Row(personLabel(summaries[i].PersonID, names), strconv.Itoa(summaries[i].ActivityCount), latest)
	}
	cmd.Println(t.Render())
	return nil
}

type activityJSON struct {
	Key          string          `json:"key"`
	PersonID     string          `json:"person_id"`
	Actor        domain.Actor    `json:"actor"`
	SourceType   string          `json:"source_type"`
	ActivityType string          `json:"activity_type"`
	NativeID     string          `json:"native_id"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

func toActivityJSON(a *domain.Activity) activityJSON {
	return activityJSON{
		Key:          a.Key,
		PersonID:     a.AttributedTo(),
		Actor:        a.Actor,
		SourceType:   string(a.SourceType),
		ActivityType: a.ActivityType,
		NativeID:     a.NativeID,
		OccurredAt:   a.OccurredAt,
		Payload:      a.Payload.Data,
	}
}

func filterFromFlags(cmd *cobra.Command) (domain.ActivityFilter, error) {
	flags := cmd.Flags()
	var f domain.ActivityFilter
	f.PersonID, _ = flags.GetString("person")
	f.ActivityType, _ = flags.GetString("type")

	if v, _ := flags.GetString("source"); v != "" {
		st, err := domain.ParseSourceType(v)
		if err != nil {
			return f, err
		}
		f.SourceType = st
	}
	if v, _ := flags.GetString("identifier"); v != "" {
		ref, err := domain.ParseIdentifierRef(v)
		if err != nil {
			return f, err
		}
		f.Identifier = ref
	}
	for name, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		v, _ := flags.GetString(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%w: --%s must be RFC 3339", domain.ErrInvalidInput, name)
		}
		*dst = t.UTC()
	}
	return f, nil
}

// personNames maps person ids to display names for rendering. A lookup
// failure only costs the names.
func personNames(cmd *cobra.Command) map[string]string {
	names := make(map[string]string)
	if identityService == nil {
		return names
	}
	persons, err := identityService.ListPersons(cmd.Context(), true)
	if err != nil {
		return names
	}
	for i := range persons {
		names[persons[i].ID] = persons[i].DisplayName
	}
	return names
}
