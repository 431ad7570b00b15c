package jira

import (
	"fmt"
	"slices"
	"time"
)

// StatusCategory groups project-specific statuses into the three buckets
// every workflow shares.
type StatusCategory int

const (
	CategoryToDo StatusCategory = iota + 1
	CategoryInProgress
	CategoryDone
)

// ParseStatusCategory maps a wire key ("new", "indeterminate", "done").
func ParseStatusCategory(key string) (StatusCategory, error) {
	switch key {
	case "new":
		return CategoryToDo, nil
	case "indeterminate":
		return CategoryInProgress, nil
	case "done":
		return CategoryDone, nil
	}
	return 0, fmt.Errorf("unknown status category %q", key)
}

// Key returns the wire key.
func (c StatusCategory) Key() string {
	switch c {
	case CategoryToDo:
		return "new"
	case CategoryInProgress:
		return "indeterminate"
	case CategoryDone:
		return "done"
	}
	return ""
}

func (c StatusCategory) String() string {
	switch c {
	case CategoryToDo:
		return "To Do"
	case CategoryInProgress:
		return "In Progress"
	case CategoryDone:
		return "Done"
	}
	return "Unknown"
}

// Status is a workflow status. Name is project specific; Category is not.
type Status struct {
	ID       string
	Name     string
	Category StatusCategory
}

// User references an account.
type User struct {
	AccountID   string
	DisplayName string
	Email       string
}

// Priority references a priority scheme entry.
type Priority struct {
	ID   string
	Name string
}

// DefaultPriority is assumed when an issue carries no priority.
var DefaultPriority = Priority{ID: "3", Name: "Medium"}

// Ticket is an issue as the client sees it. Key never changes once
// assigned; Version increases with every server-side update.
type Ticket struct {
	ID          string
	Key         string
	Summary     string
	Status      Status
	Assignee    *User
	Priority    Priority
	IssueType   string
	ProjectKey  string
	Labels      []string
	Description Document
	Created     time.Time
	Updated     time.Time
	Version     int64
}

// Clone returns a deep copy so callers cannot mutate cached values.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	if t.Assignee != nil {
		a := *t.Assignee
		out.Assignee = &a
	}
	out.Labels = slices.Clone(t.Labels)
	out.Description = Document(slices.Clone([]byte(t.Description)))
	return &out
}

// VersionOf derives the optimistic-concurrency version from the last
// update time.
func VersionOf(updated time.Time) int64 {
	if updated.IsZero() {
		return 0
	}
	return updated.UnixMilli()
}

// Transition is a workflow step currently available for a ticket.
type Transition struct {
	ID   string
	Name string
	To   Status
}

// Project is reference metadata for a project.
type Project struct {
	ID   string
	Key  string
	Name string
}

// IssueType is reference metadata for an issue type.
type IssueType struct {
	ID          string
	Name        string
	Description string
	Subtask     bool
}

// Comment is a single comment on a ticket.
type Comment struct {
	ID      string
	Author  *User
	Body    Document
	Created time.Time
	Updated time.Time
}

// SearchPage is one page of search results. It holds keys only; tickets
// are resolved through the ticket cache.
type SearchPage struct {
	JQL      string
	StartAt  int
	PageSize int
	Total    int
	Keys     []string
}

// HasMore reports whether results exist beyond this page.
func (p SearchPage) HasMore() bool { return p.StartAt+len(p.Keys) < p.Total }

// NextStartAt is the offset of the following page.
func (p SearchPage) NextStartAt() int { return p.StartAt + len(p.Keys) }

// SearchResult pairs a page with the tickets it was built from.
type SearchResult struct {
	Page    SearchPage
	Tickets []*Ticket
}

// Ref identifies a newly created ticket.
type Ref struct {
	ID  string
	Key string
}
