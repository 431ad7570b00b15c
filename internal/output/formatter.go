// Package output renders repository results for the command line.
package output

import (
	"io"

	"github.com/ylchen07/lazyjira/internal/jira"
	"github.com/ylchen07/lazyjira/internal/repository"
)

// Formatter defines the interface for different output formats
type Formatter interface {
	// FormatTicket outputs a single ticket with its description
	FormatTicket(t *jira.Ticket) error

	// FormatTickets outputs a search page and the tickets it resolved to
	FormatTickets(page jira.SearchPage, tickets []*jira.Ticket) error

	// FormatTransitions outputs the transitions available for a ticket
	FormatTransitions(key string, transitions []jira.Transition) error

	// FormatComments outputs the comments of a ticket
	FormatComments(key string, comments []jira.Comment) error

	// FormatProjects outputs project metadata
	FormatProjects(projects []jira.Project) error

	// FormatIssueTypes outputs issue type metadata
	FormatIssueTypes(types []jira.IssueType) error

	// FormatConnection outputs a connectivity check
	FormatConnection(status repository.ConnectionStatus) error
}

// Get returns the appropriate formatter based on format type
func Get(format string, w io.Writer) Formatter {
	switch format {
	case "json":
		return NewJSONFormatter(w)
	default:
		return NewHumanFormatter(w)
	}
}
