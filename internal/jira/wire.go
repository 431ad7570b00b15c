package jira

import (
	"encoding/json"
	"strings"
	"time"
)

// TimeLayout is the timestamp format used by the REST API.
const TimeLayout = "2006-01-02T15:04:05.000-0700"

// ticketFields is the field list requested for every ticket read.
var ticketFields = []string{
	"summary", "status", "assignee", "priority", "issuetype", "project",
	"labels", "description", "created", "updated",
}

type issueResource struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Summary     string            `json:"summary"`
	Status      *statusResource   `json:"status"`
	Assignee    *userResource     `json:"assignee"`
	Priority    *priorityResource `json:"priority"`
	IssueType   *namedResource    `json:"issuetype"`
	Project     *projectResource  `json:"project"`
	Labels      []string          `json:"labels,omitempty"`
	Description Document          `json:"description"`
	Created     string            `json:"created"`
	Updated     string            `json:"updated"`
}

type statusResource struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	StatusCategory *struct {
		Key string `json:"key"`
	} `json:"statusCategory"`
}

type userResource struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

type priorityResource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type namedResource struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type projectResource struct {
	ID   string `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

type transitionResource struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	To   *statusResource `json:"to"`
}

type commentResource struct {
	ID      string        `json:"id"`
	Author  *userResource `json:"author"`
	Body    Document      `json:"body"`
	Created string        `json:"created"`
	Updated string        `json:"updated"`
}

type searchResponse struct {
	StartAt    int             `json:"startAt"`
	MaxResults int             `json:"maxResults"`
	Total      int             `json:"total"`
	Issues     []issueResource `json:"issues"`
}

// ParseTicket decodes an issue resource.
func ParseTicket(data []byte) (*Ticket, error) {
	var res issueResource
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, parseError("decode issue: %w", err)
	}
	return res.toTicket()
}

// MarshalTicket encodes t as an issue resource.
func MarshalTicket(t *Ticket) ([]byte, error) {
	return json.Marshal(fromTicket(t))
}

func (r issueResource) toTicket() (*Ticket, error) {
	if r.Key == "" {
		return nil, parseError("issue %q: missing key", r.ID)
	}
	f := r.Fields

	status, err := f.Status.toStatus()
	if err != nil {
		return nil, parseError("issue %s: %w", r.Key, err)
	}
	if f.IssueType == nil || f.IssueType.Name == "" {
		return nil, parseError("issue %s: missing issuetype", r.Key)
	}
	if f.Project == nil || f.Project.Key == "" {
		return nil, parseError("issue %s: missing project", r.Key)
	}
	created, err := parseTime(f.Created)
	if err != nil {
		return nil, parseError("issue %s: created: %w", r.Key, err)
	}
	updated, err := parseTime(f.Updated)
	if err != nil {
		return nil, parseError("issue %s: updated: %w", r.Key, err)
	}

	t := &Ticket{
		ID:          r.ID,
		Key:         r.Key,
		Summary:     f.Summary,
		Status:      status,
		Assignee:    f.Assignee.toUser(),
		Priority:    DefaultPriority,
		IssueType:   f.IssueType.Name,
		ProjectKey:  f.Project.Key,
		Labels:      f.Labels,
		Description: f.Description,
		Created:     created,
		Updated:     updated,
		Version:     VersionOf(updated),
	}
	if f.Priority != nil && f.Priority.Name != "" {
		t.Priority = Priority{ID: f.Priority.ID, Name: f.Priority.Name}
	}
	return t, nil
}

func fromTicket(t *Ticket) issueResource {
	f := issueFields{
		Summary: t.Summary,
		Status: &statusResource{
			ID:   t.Status.ID,
			Name: t.Status.Name,
			StatusCategory: &struct {
				Key string `json:"key"`
			}{Key: t.Status.Category.Key()},
		},
		Priority:    &priorityResource{ID: t.Priority.ID, Name: t.Priority.Name},
		IssueType:   &namedResource{Name: t.IssueType},
		Project:     &projectResource{Key: t.ProjectKey},
		Labels:      t.Labels,
		Description: t.Description,
		Created:     formatTime(t.Created),
		Updated:     formatTime(t.Updated),
	}
	if t.Assignee != nil {
		f.Assignee = &userResource{
			AccountID:    t.Assignee.AccountID,
			DisplayName:  t.Assignee.DisplayName,
			EmailAddress: t.Assignee.Email,
		}
	}
	return issueResource{ID: t.ID, Key: t.Key, Fields: f}
}

func (s *statusResource) toStatus() (Status, error) {
	if s == nil || s.Name == "" {
		return Status{}, parseError("missing status")
	}
	if s.StatusCategory == nil {
		return Status{}, parseError("status %q: missing statusCategory", s.Name)
	}
	category, err := ParseStatusCategory(s.StatusCategory.Key)
	if err != nil {
		return Status{}, parseError("status %q: %w", s.Name, err)
	}
	return Status{ID: s.ID, Name: s.Name, Category: category}, nil
}

func (u *userResource) toUser() *User {
	if u == nil || u.AccountID == "" {
		return nil
	}
	name := u.DisplayName
	if name == "" {
		name = "Unknown"
	}
	return &User{AccountID: u.AccountID, DisplayName: name, Email: u.EmailAddress}
}

func (r transitionResource) toTransition() (Transition, error) {
	if r.ID == "" {
		return Transition{}, parseError("transition %q: missing id", r.Name)
	}
	to, err := r.To.toStatus()
	if err != nil {
		return Transition{}, parseError("transition %s: %w", r.ID, err)
	}
	return Transition{ID: r.ID, Name: r.Name, To: to}, nil
}

func (r commentResource) toComment() (Comment, error) {
	created, err := parseTime(r.Created)
	if err != nil {
		return Comment{}, parseError("comment %s: created: %w", r.ID, err)
	}
	updated, err := parseTime(r.Updated)
	if err != nil {
		return Comment{}, parseError("comment %s: updated: %w", r.ID, err)
	}
	return Comment{
		ID:      r.ID,
		Author:  r.Author.toUser(),
		Body:    r.Body,
		Created: created,
		Updated: updated,
	}, nil
}

// parseTime accepts the API layout, the same without a zone, and RFC 3339.
// An empty value is the zero time.
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{TimeLayout, "2006-01-02T15:04:05.000", time.RFC3339Nano} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	_, err := time.Parse(TimeLayout, value)
	return time.Time{}, err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}
