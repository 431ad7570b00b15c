package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ylchen07/lazyjira/internal/jira"
	"github.com/ylchen07/lazyjira/internal/repository"
)

// HumanFormatter outputs in human-readable format with colors
type HumanFormatter struct {
	w       io.Writer
	success *color.Color
	failure *color.Color
	info    *color.Color
	dim     *color.Color
	todo    *color.Color
	doing   *color.Color
	done    *color.Color
}

// NewHumanFormatter creates a new human-readable formatter writing to w
func NewHumanFormatter(w io.Writer) *HumanFormatter {
	return &HumanFormatter{
		w:       w,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		info:    color.New(color.FgCyan),
		dim:     color.New(color.Faint),
		todo:    color.New(color.FgBlue),
		doing:   color.New(color.FgYellow),
		done:    color.New(color.FgGreen),
	}
}

// DisableColor turns off escape sequences regardless of the terminal.
func (f *HumanFormatter) DisableColor() *HumanFormatter {
	for _, c := range []*color.Color{f.success, f.failure, f.info, f.dim, f.todo, f.doing, f.done} {
		c.DisableColor()
	}
	return f
}

func (f *HumanFormatter) status(s jira.Status) string {
	switch s.Category {
	case jira.CategoryToDo:
		return f.todo.Sprint(s.Name)
	case jira.CategoryInProgress:
		return f.doing.Sprint(s.Name)
	case jira.CategoryDone:
		return f.done.Sprint(s.Name)
	}
	return s.Name
}

func assigneeName(u *jira.User) string {
	if u == nil {
		return "Unassigned"
	}
	return u.DisplayName
}

// FormatTicket outputs a ticket in human-readable format
func (f *HumanFormatter) FormatTicket(t *jira.Ticket) error {
	fmt.Fprintf(f.w, "%s  %s\n", f.info.Sprint(t.Key), t.Summary)
	fmt.Fprintf(f.w, "  Status:   %s\n", f.status(t.Status))
	fmt.Fprintf(f.w, "  Type:     %s\n", t.IssueType)
	fmt.Fprintf(f.w, "  Priority: %s\n", t.Priority.Name)
	fmt.Fprintf(f.w, "  Assignee: %s\n", assigneeName(t.Assignee))
	if len(t.Labels) > 0 {
		fmt.Fprintf(f.w, "  Labels:   %s\n", strings.Join(t.Labels, ", "))
	}
	if !t.Updated.IsZero() {
		fmt.Fprintf(f.w, "  Updated:  %s\n", f.dim.Sprint(t.Updated.Format("2006-01-02 15:04")))
	}
	if text := t.Description.PlainText(); text != "" {
		fmt.Fprintln(f.w)
		for _, line := range strings.Split(text, "\n") {
			fmt.Fprintf(f.w, "  %s\n", line)
		}
	}
	return nil
}

// FormatTickets outputs a search page in human-readable format
func (f *HumanFormatter) FormatTickets(page jira.SearchPage, tickets []*jira.Ticket) error {
	for _, t := range tickets {
		fmt.Fprintf(f.w, "%s\t%s\t%s\t%s\n",
			f.info.Sprint(t.Key),
			f.status(t.Status),
			f.dim.Sprint(assigneeName(t.Assignee)),
			t.Summary)
	}
	if page.Total == 0 {
		fmt.Fprintln(f.w, f.dim.Sprint("No tickets found"))
		return nil
	}
	summary := fmt.Sprintf("Showing %d-%d of %d", page.StartAt+1, page.NextStartAt(), page.Total)
	if page.HasMore() {
		summary += fmt.Sprintf(" (next page starts at %d)", page.NextStartAt())
	}
	fmt.Fprintln(f.w, f.dim.Sprint(summary))
	return nil
}

// FormatTransitions outputs transitions in human-readable format
func (f *HumanFormatter) FormatTransitions(key string, transitions []jira.Transition) error {
	if len(transitions) == 0 {
		fmt.Fprintf(f.w, "No transitions available for %s\n", key)
		return nil
	}
	for _, tr := range transitions {
		fmt.Fprintf(f.w, "%s\t%s -> %s\n", f.dim.Sprint(tr.ID), tr.Name, f.status(tr.To))
	}
	return nil
}

// FormatComments outputs comments in human-readable format
func (f *HumanFormatter) FormatComments(key string, comments []jira.Comment) error {
	if len(comments) == 0 {
		fmt.Fprintf(f.w, "No comments on %s\n", key)
		return nil
	}
	for _, c := range comments {
		fmt.Fprintf(f.w, "%s %s\n", f.info.Sprint(assigneeName(c.Author)), f.dim.Sprint(c.Created.Format("2006-01-02 15:04")))
		for _, line := range strings.Split(c.Body.PlainText(), "\n") {
			fmt.Fprintf(f.w, "  %s\n", line)
		}
	}
	return nil
}

// FormatProjects outputs projects in human-readable format
func (f *HumanFormatter) FormatProjects(projects []jira.Project) error {
	for _, p := range projects {
		fmt.Fprintf(f.w, "%s\t%s\n", f.info.Sprint(p.Key), p.Name)
	}
	return nil
}

// FormatIssueTypes outputs issue types in human-readable format
func (f *HumanFormatter) FormatIssueTypes(types []jira.IssueType) error {
	for _, it := range types {
		name := it.Name
		if it.Subtask {
			name += f.dim.Sprint(" (subtask)")
		}
		fmt.Fprintf(f.w, "%s\t%s\n", f.dim.Sprint(it.ID), name)
	}
	return nil
}

// FormatConnection outputs a connectivity check in human-readable format
func (f *HumanFormatter) FormatConnection(status repository.ConnectionStatus) error {
	if status.OK() {
		name := ""
		if status.User != nil {
			name = status.User.DisplayName
		}
		f.success.Fprintf(f.w, "✓ Connected as %s\n", name)
		return nil
	}
	f.failure.Fprintf(f.w, "✗ %s\n", status.Message())
	return nil
}
