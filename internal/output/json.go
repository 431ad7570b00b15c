package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ylchen07/lazyjira/internal/jira"
	"github.com/ylchen07/lazyjira/internal/repository"
)

// JSONFormatter outputs in JSON format
type JSONFormatter struct {
	encoder *json.Encoder
}

// NewJSONFormatter creates a new JSON formatter writing to w
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return &JSONFormatter{encoder: enc}
}

type statusOutput struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type ticketOutput struct {
	ID          string       `json:"id"`
	Key         string       `json:"key"`
	Summary     string       `json:"summary"`
	Status      statusOutput `json:"status"`
	Assignee    string       `json:"assignee,omitempty"`
	Priority    string       `json:"priority"`
	IssueType   string       `json:"issueType"`
	Project     string       `json:"project"`
	Labels      []string     `json:"labels,omitempty"`
	Description string       `json:"description,omitempty"`
	Created     *time.Time   `json:"created,omitempty"`
	Updated     *time.Time   `json:"updated,omitempty"`
	Version     int64        `json:"version"`
}

func toStatusOutput(s jira.Status) statusOutput {
	return statusOutput{ID: s.ID, Name: s.Name, Category: s.Category.Key()}
}

func toTicketOutput(t *jira.Ticket) ticketOutput {
	out := ticketOutput{
		ID:          t.ID,
		Key:         t.Key,
		Summary:     t.Summary,
		Status:      toStatusOutput(t.Status),
		Priority:    t.Priority.Name,
		IssueType:   t.IssueType,
		Project:     t.ProjectKey,
		Labels:      t.Labels,
		Description: t.Description.PlainText(),
		Created:     timePtr(t.Created),
		Updated:     timePtr(t.Updated),
		Version:     t.Version,
	}
	if t.Assignee != nil {
		out.Assignee = t.Assignee.DisplayName
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// FormatTicket outputs a ticket in JSON format
func (f *JSONFormatter) FormatTicket(t *jira.Ticket) error {
	return f.encoder.Encode(toTicketOutput(t))
}

// FormatTickets outputs a search page in JSON format
func (f *JSONFormatter) FormatTickets(page jira.SearchPage, tickets []*jira.Ticket) error {
	issues := make([]ticketOutput, len(tickets))
	for i, t := range tickets {
		issues[i] = toTicketOutput(t)
	}
	return f.encoder.Encode(map[string]any{
		"jql":        page.JQL,
		"startAt":    page.StartAt,
		"maxResults": page.PageSize,
		"total":      page.Total,
		"hasMore":    page.HasMore(),
		"issues":     issues,
	})
}

type transitionOutput struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	To   statusOutput `json:"to"`
}

// FormatTransitions outputs transitions in JSON format
func (f *JSONFormatter) FormatTransitions(key string, transitions []jira.Transition) error {
	out := make([]transitionOutput, len(transitions))
	for i, tr := range transitions {
		out[i] = transitionOutput{ID: tr.ID, Name: tr.Name, To: toStatusOutput(tr.To)}
	}
	return f.encoder.Encode(map[string]any{
		"key":         key,
		"transitions": out,
	})
}

type commentOutput struct {
	ID      string    `json:"id"`
	Author  string    `json:"author,omitempty"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
}

// FormatComments outputs comments in JSON format
func (f *JSONFormatter) FormatComments(key string, comments []jira.Comment) error {
	out := make([]commentOutput, len(comments))
	for i, c := range comments {
		out[i] = commentOutput{ID: c.ID, Body: c.Body.PlainText(), Created: c.Created}
		if c.Author != nil {
			out[i].Author = c.Author.DisplayName
		}
	}
	return f.encoder.Encode(map[string]any{
		"key":      key,
		"comments": out,
	})
}

// FormatProjects outputs projects in JSON format
func (f *JSONFormatter) FormatProjects(projects []jira.Project) error {
	type projectOutput struct {
		ID   string `json:"id"`
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	out := make([]projectOutput, len(projects))
	for i, p := range projects {
		out[i] = projectOutput(p)
	}
	return f.encoder.Encode(map[string]any{"projects": out})
}

// FormatIssueTypes outputs issue types in JSON format
func (f *JSONFormatter) FormatIssueTypes(types []jira.IssueType) error {
	type issueTypeOutput struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Subtask     bool   `json:"subtask"`
	}
	out := make([]issueTypeOutput, len(types))
	for i, it := range types {
		out[i] = issueTypeOutput(it)
	}
	return f.encoder.Encode(map[string]any{"issueTypes": out})
}

// FormatConnection outputs a connectivity check in JSON format
func (f *JSONFormatter) FormatConnection(status repository.ConnectionStatus) error {
	out := map[string]any{
		"connected": status.OK(),
		"state":     status.State.String(),
	}
	if status.User != nil {
		out["account"] = status.User.DisplayName
	}
	if msg := status.Message(); msg != "" {
		out["message"] = msg
	}
	return f.encoder.Encode(out)
}
