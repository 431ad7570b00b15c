package repository

import (
	"strings"

	"github.com/ylchen07/lazyjira/internal/jira"
)

// FilterByCategory keeps tickets whose status is in category.
func FilterByCategory(tickets []*jira.Ticket, category jira.StatusCategory) []*jira.Ticket {
	return filter(tickets, func(t *jira.Ticket) bool { return t.Status.Category == category })
}

// FilterByAssignee keeps tickets assigned to accountID.
func FilterByAssignee(tickets []*jira.Ticket, accountID string) []*jira.Ticket {
	return filter(tickets, func(t *jira.Ticket) bool {
		return t.Assignee != nil && t.Assignee.AccountID == accountID
	})
}

// FilterByText keeps tickets whose summary or key contains query, ignoring
// case.
func FilterByText(tickets []*jira.Ticket, query string) []*jira.Ticket {
	q := strings.ToLower(query)
	return filter(tickets, func(t *jira.Ticket) bool {
		return strings.Contains(strings.ToLower(t.Summary), q) ||
			strings.Contains(strings.ToLower(t.Key), q)
	})
}

func filter(tickets []*jira.Ticket, keep func(*jira.Ticket) bool) []*jira.Ticket {
	out := make([]*jira.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
