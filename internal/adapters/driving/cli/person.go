package cli

import (
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pulse/internal/adapters/driven/roster"
	"github.com/custodia-labs/pulse/internal/core/domain"
)

var personCmd = &cobra.Command{
	Use:   "person",
	Short: "Manage canonical persons",
}

var personAddCmd = &cobra.Command{
	Use:   "add <display-name>",
	Short: "Add a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonAdd,
}

var personListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persons",
	Args:  cobra.NoArgs,
	RunE:  runPersonList,
}

var personShowCmd = &cobra.Command{
	Use:   "show <person-id>",
	Short: "Show a person and their bound identities",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonShow,
}

var personDeactivateCmd = &cobra.Command{
	Use:   "deactivate <person-id>",
	Short: "Mark a person as having left",
	Long: `Mark a person inactive. Their identities stay bound, so historical
activity keeps resolving to them.`,
	Args: cobra.ExactArgs(1),
	RunE: runPersonDeactivate,
}

var bindCmd = &cobra.Command{
	Use:   "bind <person-id> <source_type:source_key>",
	Short: "Bind a source identity to a person",
	Long: `Bind a source identity to a person. Past activity by that identity is
attributed to the person from now on without being rewritten.

Binding an identity already bound to someone else is refused.`,
	Args: cobra.ExactArgs(2),
	RunE: runBind,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <source_type:source_key>",
	Short: "Show which person a source identity belongs to",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

var unresolvedCmd = &cobra.Command{
	Use:   "unresolved",
	Short: "List source identities seen in activity but not bound",
	Args:  cobra.NoArgs,
	RunE:  runUnresolved,
}

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Roster reconciliation",
}

var rosterSyncCmd = &cobra.Command{
	Use:   "sync <roster.yaml>",
	Short: "Reconcile persons and identities with a roster file",
	Long: `Reconcile the registry with a YAML roster:

  members:
    - name: Jane Doe
      email: jane@example.com
      identifiers:
        github: [janedoe]
        slack: [U024BE7LH]

Missing persons are created, returning ones reactivated and absent ones
deactivated. Identities bound to someone else are reported, never moved.`,
	Args: cobra.ExactArgs(1),
	RunE: runRosterSync,
}

func init() {
	personAddCmd.Flags().String("email", "", "primary email address")
	personListCmd.Flags().Bool("all", false, "include inactive persons")

	personCmd.AddCommand(personAddCmd)
	personCmd.AddCommand(personListCmd)
	personCmd.AddCommand(personShowCmd)
	personCmd.AddCommand(personDeactivateCmd)
	rosterCmd.AddCommand(rosterSyncCmd)

	rootCmd.AddCommand(personCmd)
	rootCmd.AddCommand(bindCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(unresolvedCmd)
	rootCmd.AddCommand(rosterCmd)
}

func runPersonAdd(cmd *cobra.Command, args []string) error {
	if identityService == nil {
		return errors.New("identity service not configured")
	}
	email, _ := cmd.Flags().GetString("email")

	p, err := identityService.CreatePerson(cmd.Context(), args[0], email)
	if err != nil {
		return err
	}
	cmd.Printf("Added %s (%s)\n", p.DisplayName, p.ID)
	return nil
}

func runPersonList(cmd *cobra.Command, _ []string) error {
	if identityService == nil {
		return errors.New("identity service not configured")
	}
	all, _ := cmd.Flags().GetBool("all")

	persons, err := identityService.ListPersons(cmd.Context(), all)
	if err != nil {
		return err
	}
	if len(persons) == 0 {
		cmd.Println("No persons.")
		return nil
	}

	t := newTable("ID", "Name", "Email", "Status")
	for i := range persons {
		status := successStyle.Render("active")
		if !persons[i].Active {
			status = mutedStyle.Render("inactive")
		}
		t.Row(persons[i].ID, persons[i].DisplayName, persons[i].PrimaryEmail, status)
	}
	cmd.Println(t.Render())
	return nil
}

func runPersonShow(cmd *cobra.Command, args []string) error {
	if identityService == nil {
		return errors.New("identity service not configured")
	}
	ctx := cmd.Context()

	p, err := identityService.GetPerson(ctx, args[0])
	if err != nil {
		return err
	}
	ids, err := identityService.Identifiers(ctx, p.ID)
	if err != nil {
		return err
	}

	cmd.Println(titleStyle.Render(p.DisplayName))
	cmd.Printf("  ID:     %s\n", p.ID)
	if p.PrimaryEmail != "" {
		cmd.Printf("  Email:  %s\n", p.PrimaryEmail)
	}
	cmd.Printf("  Active: %t\n", p.Active)
	cmd.Println("  Identities:")
	if len(ids) == 0 {
		cmd.Println("    " + mutedStyle.Render("none"))
	}
	for i := range ids {
		cmd.Printf("    %s:%s\n", ids[i].SourceType, ids[i].SourceKey)
	}
	return nil
}

func runPersonDeactivate(cmd *cobra.Command, args []string) error {
	if identityService == nil {
		return errors.New("identity service not configured")
	}
	if err := identityService.DeactivatePerson(cmd.Context(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Deactivated %s\n", args[0])
	return nil
}

func runBind(cmd *cobra.Command, args []string) error {
	if identityService == nil {
		return errors.New("identity service not configured")
	}
	ref, err := domain.ParseIdentifierRef(args[1])
	if err != nil {
		return err
	}

	if err := identityService.Bind(cmd.Context(), args[0], ref.SourceType, ref.SourceKey); err != nil {
		return err
	}
	cmd.Printf("Bound %s to %s\n", ref, args[0])
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	if identityService == nil {
		return errors.New("identity service not configured")
	}
	ref, err := domain.ParseIdentifierRef(args[0])
	if err != nil {
		return err
	}

	personID, ok, err := identityService.Resolve(cmd.Context(), ref.SourceType, ref.SourceKey)
	if err != nil {
		return err
	}
	if !ok {
		cmd.Printf("%s is not bound to anyone\n", ref)
		return nil
	}
	name := personID
	if p, err := identityService.GetPerson(cmd.Context(), personID); err == nil {
		name = p.DisplayName + " (" + p.ID + ")"
	}
	cmd.Printf("%s -> %s\n", ref, name)
	return nil
}

func runUnresolved(cmd *cobra.Command, _ []string) error {
	if identityService == nil {
		return errors.New("identity service not configured")
	}
	actors, err := identityService.Unresolved(cmd.Context())
	if err != nil {
		return err
	}
	if len(actors) == 0 {
		cmd.Println("Every actor is resolved.")
		return nil
	}

	t := newTable("Identity", "Observed name", "Events", "Last seen")
	for _, a := range actors {
		ref := domain.IdentifierRef{SourceType: a.SourceType, SourceKey: a.SourceKey}
		t.Row(ref.String(), a.ObservedDisplayName, strconv.Itoa(a.Occurrences), a.LastSeen.Format(time.RFC3339))
	}
	cmd.Println(t.Render())
	return nil
}

func runRosterSync(cmd *cobra.Command, args []string) error {
	if rosterService == nil {
		return errors.New("roster service not configured")
	}
	r, err := roster.Load(args[0])
	if err != nil {
		return err
	}

	report, err := rosterService.Sync(cmd.Context(), *r)
	if err != nil {
		return err
	}

	cmd.Println(titleStyle.Render("Roster sync"))
	t := newTable("Change", "Count").
		Row("created", strconv.Itoa(len(report.Created))).
		Row("reactivated", strconv.Itoa(len(report.Reactivated))).
		Row("deactivated", strconv.Itoa(len(report.Deactivated))).
		Row("identities bound", strconv.Itoa(len(report.Bound))).
		Row("already bound", strconv.Itoa(report.AlreadyBound))
	cmd.Println(t.Render())

	for i := range report.Conflicts {
		cmd.Println(warningStyle.Render("conflict: ") + report.Conflicts[i].Error())
	}
	for _, msg := range report.Invalid {
		cmd.Println(errorStyle.Render("invalid: ") + msg)
	}
	return nil
}
