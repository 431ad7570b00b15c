package jira

import (
	"fmt"
	"slices"
	"strings"
)

// TicketInput describes a ticket to create.
type TicketInput struct {
	ProjectKey  string
	IssueType   string
	Summary     string
	Description Document
	Priority    string
	Assignee    string
	Labels      []string
	Fields      map[string]FieldValue
}

// Patch describes an update. Nil pointers and nil slices leave the field
// unchanged; an empty Assignee unassigns and an empty non-nil Labels
// clears labels.
type Patch struct {
	Summary     *string
	Description *Document
	Priority    *string
	Assignee    *string
	Labels      []string
	Fields      map[string]FieldValue

	// IfVersion, when non-zero, refuses the update unless the ticket is
	// still at that version.
	IfVersion int64
}

// Fields that only a dedicated operation may change.
var reservedFields = map[string]string{
	"status":  "status changes go through workflow transitions",
	"key":     "ticket keys are immutable",
	"project": "tickets cannot be moved between projects by update",
}

// Fields with a typed setter on TicketInput or Patch.
var typedFields = []string{"summary", "description", "priority", "assignee", "labels", "issuetype"}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Summary == nil && p.Description == nil && p.Priority == nil &&
		p.Assignee == nil && p.Labels == nil && len(p.Fields) == 0
}

// Validate checks the patch without touching the network.
func (p Patch) Validate() error {
	problems := map[string]string{}
	if p.IsEmpty() {
		problems["patch"] = "no fields to update"
	}
	if p.Summary != nil && strings.TrimSpace(*p.Summary) == "" {
		problems["summary"] = "summary cannot be empty"
	}
	if p.Description != nil && !p.Description.IsZero() {
		if err := p.Description.Validate(); err != nil {
			problems["description"] = err.Error()
		}
	}
	if p.Priority != nil && strings.TrimSpace(*p.Priority) == "" {
		problems["priority"] = "priority cannot be empty"
	}
	validateLabels(p.Labels, problems)
	validateCustomFields(p.Fields, problems)

	if len(problems) > 0 {
		return validationError("update ticket", "", problems)
	}
	return nil
}

// Validate checks the input without touching the network.
func (in TicketInput) Validate() error {
	problems := map[string]string{}
	if strings.TrimSpace(in.ProjectKey) == "" {
		problems["project"] = "project key is required"
	}
	if strings.TrimSpace(in.IssueType) == "" {
		problems["issuetype"] = "issue type is required"
	}
	switch summary := strings.TrimSpace(in.Summary); {
	case summary == "":
		problems["summary"] = "summary is required"
	case len(summary) > 255:
		problems["summary"] = "summary must be at most 255 characters"
	}
	if !in.Description.IsZero() {
		if err := in.Description.Validate(); err != nil {
			problems["description"] = err.Error()
		}
	}
	validateLabels(in.Labels, problems)
	validateCustomFields(in.Fields, problems)

	if len(problems) > 0 {
		return validationError("create ticket", in.ProjectKey, problems)
	}
	return nil
}

func validateLabels(labels []string, problems map[string]string) {
	for _, l := range labels {
		if strings.TrimSpace(l) == "" || strings.ContainsAny(l, " \t\n") {
			problems["labels"] = fmt.Sprintf("invalid label %q: labels cannot be empty or contain whitespace", l)
			return
		}
	}
}

func validateCustomFields(fields map[string]FieldValue, problems map[string]string) {
	for name, value := range fields {
		switch {
		case strings.TrimSpace(name) == "":
			problems["fields"] = "field names cannot be empty"
		case reservedFields[name] != "":
			problems[name] = reservedFields[name]
		case slices.Contains(typedFields, name):
			problems[name] = "use the dedicated setter for " + name
		default:
			if err := value.Validate(); err != nil {
				problems[name] = err.Error()
			}
		}
	}
}

func (in TicketInput) wireFields() map[string]any {
	fields := map[string]any{
		"project":   map[string]string{"key": in.ProjectKey},
		"issuetype": map[string]string{"name": in.IssueType},
		"summary":   strings.TrimSpace(in.Summary),
	}
	if !in.Description.IsZero() {
		fields["description"] = in.Description
	}
	if in.Priority != "" {
		fields["priority"] = map[string]string{"name": in.Priority}
	}
	if in.Assignee != "" {
		fields["assignee"] = map[string]string{"accountId": in.Assignee}
	}
	if len(in.Labels) > 0 {
		fields["labels"] = in.Labels
	}
	for name, value := range in.Fields {
		fields[name] = value
	}
	return fields
}

func (p Patch) wireFields() map[string]any {
	fields := map[string]any{}
	if p.Summary != nil {
		fields["summary"] = strings.TrimSpace(*p.Summary)
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Priority != nil {
		fields["priority"] = map[string]string{"name": *p.Priority}
	}
	if p.Assignee != nil {
		if *p.Assignee == "" {
			fields["assignee"] = nil
		} else {
			fields["assignee"] = map[string]string{"accountId": *p.Assignee}
		}
	}
	if p.Labels != nil {
		fields["labels"] = p.Labels
	}
	for name, value := range p.Fields {
		fields[name] = value
	}
	return fields
}
