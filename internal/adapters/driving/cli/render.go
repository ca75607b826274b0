package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// Palette shared by every command's output.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
	colourBorder  = lipgloss.Color("#45475A")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// newTable returns a bordered table with the shared header style.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colourBorder)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// renderRunSummary writes the operator report of an ingestion run.
func renderRunSummary(w io.Writer, s *domain.RunSummary, rejected []error) {
	fmt.Fprintln(w, titleStyle.Render("Ingestion run"))

	t := newTable("Outcome", "Events").
		Row("inserted", successStyle.Render(strconv.Itoa(s.Inserted()))).
		Row("already existing", strconv.Itoa(s.AlreadyExisting())).
		Row("malformed", countStyle(s.Malformed(), errorStyle).Render(strconv.Itoa(s.Malformed()))).
		Row("unresolved actor", countStyle(s.UnresolvedEvents(), warningStyle).Render(strconv.Itoa(s.UnresolvedEvents())))
	fmt.Fprintln(w, t.Render())

	if warnings := s.Warnings(); len(warnings) > 0 {
		fmt.Fprintln(w, warningStyle.Render("Unresolved actors (bind them with `pulse bind`):"))
		wt := newTable("Actor", "Name", "Events")
		for _, warn := range warnings {
			wt.Row(warn.Actor.String(), warn.Actor.DisplayName, strconv.Itoa(warn.Occurrences))
		}
		fmt.Fprintln(w, wt.Render())
	}

	for _, err := range rejected {
		fmt.Fprintln(w, errorStyle.Render("rejected: ")+err.Error())
	}
}

func countStyle(n int, nonZero lipgloss.Style) lipgloss.Style {
	if n == 0 {
		return lipgloss.NewStyle()
	}
	return nonZero
}

// renderActivities writes activities as a table, newest first.
func renderActivities(w io.Writer, activities []domain.Activity, names map[string]string) {
	if len(activities) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No activities."))
		return
	}
	t := newTable("When", "Person", "Source", "Type", "Actor", "Native ID")
	for i := range activities {
		a := &activities[i]
		t.Row(
			a.OccurredAt.Format(time.RFC3339),
			personLabel(a.AttributedTo(), names),
			string(a.SourceType),
			a.ActivityType,
			a.Actor.String(),
			truncate(a.NativeID, 32),
		)
	}
	fmt.Fprintln(w, t.Render())
}

func personLabel(id string, names map[string]string) string {
	if id == domain.UnknownPersonID {
		return mutedStyle.Render("unknown")
	}
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// renderDiff writes a diff in unified style, deletions first.
func renderDiff(w io.Writer, d *domain.ContentDiff) {
	fmt.Fprintf(w, "%s %s -> %s (net %+d bytes)\n",
		titleStyle.Render(d.DocumentID), d.FromRevision, d.ToRevision, d.NetSizeDelta)
	for _, f := range d.DeletedFragments {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("-%d: %s", f.Index, strings.TrimRight(f.Text, "\n"))))
	}
	for _, f := range d.AddedFragments {
		fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("+%d: %s", f.Index, strings.TrimRight(f.Text, "\n"))))
	}
}
