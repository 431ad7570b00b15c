package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ylchen07/lazyjira/internal/jira"
	"github.com/ylchen07/lazyjira/internal/repository"
)

// Repository is what the tools need from *repository.Repository.
type Repository interface {
	GetTicket(ctx context.Context, key string) (*jira.Ticket, error)
	Search(ctx context.Context, jql string, startAt, pageSize int) (jira.SearchPage, error)
	Tickets(ctx context.Context, page jira.SearchPage) ([]*jira.Ticket, error)
	CreateTicket(ctx context.Context, in jira.TicketInput) (*jira.Ticket, error)
	UpdateTicket(ctx context.Context, key string, patch jira.Patch) (*jira.Ticket, error)
	AddComment(ctx context.Context, key string, body jira.Document) (jira.Comment, error)
	Comments(ctx context.Context, key string) ([]jira.Comment, error)
	AvailableTransitions(ctx context.Context, key string) ([]jira.Transition, error)
	ApplyTransition(ctx context.Context, key, transitionID string, comment jira.Document) (*jira.Ticket, error)
	Projects(ctx context.Context) ([]jira.Project, error)
	IssueTypes(ctx context.Context) ([]jira.IssueType, error)
	TestConnection(ctx context.Context) repository.ConnectionStatus
	LastJQL() string
}

// JiraTools wires the ticket repository into MCP tools.
type JiraTools struct {
	repo    Repository
	siteURL string
}

// NewJiraTools registers Jira tools on the server.
func NewJiraTools(s *server.MCPServer, repo Repository, siteURL string) *JiraTools {
	jt := &JiraTools{
		repo:    repo,
		siteURL: strings.TrimRight(siteURL, "/"),
	}

	s.AddTool(
		mcp.NewTool(
			"jira.list_projects",
			mcp.WithDescription("List available Jira projects accessible to the configured account"),
			mcp.WithInputSchema[JiraListProjectsArgs](),
			mcp.WithOutputSchema[JiraProjectListResult](),
		),
		mcp.NewTypedToolHandler(jt.handleListProjects),
	)

	s.AddTool(
		mcp.NewTool(
			"jira.list_issue_types",
			mcp.WithDescription("List the issue types that can be used when creating issues"),
			mcp.WithInputSchema[JiraListIssueTypesArgs](),
			mcp.WithOutputSchema[JiraIssueTypeListResult](),
		),
		mcp.NewTypedToolHandler(jt.handleListIssueTypes),
	)

	s.AddTool(
		mcp.NewTool(
			"jira.get_issue",
			mcp.WithDescription("Fetch a single Jira issue by key"),
			mcp.WithInputSchema[JiraGetIssueArgs](),
			mcp.WithOutputSchema[JiraIssueSummary](),
		),
		mcp.NewTypedToolHandler(jt.handleGetIssue),
	)

	s.AddTool(
		mcp.NewTool(
			"jira.search_issues",
			mcp.WithDescription("Execute a JQL search and return matching issues"),
			mcp.WithInputSchema[JiraSearchIssuesArgs](),
			mcp.WithOutputSchema[JiraSearchIssuesResult](),
		),
		mcp.NewTypedToolHandler(jt.handleSearchIssues),
	)

	s.AddTool(
		mcp.NewTool(
			"jira.create_issue",
			mcp.WithDescription("Create a new Jira issue in the specified project"),
			mcp.WithInputSchema[JiraCreateIssueArgs](),
			mcp.WithOutputSchema[JiraIssueSummary](),
		),
		mcp.NewTypedToolHandler(jt.handleCreateIssue),
	)

	s.AddTool(
		mcp.NewTool(
			"jira.update_issue",
			mcp.WithDescription("Update fields on an existing Jira issue"),
			mcp.WithInputSchema[JiraUpdateIssueArgs](),
			mcp.WithOutputSchema[JiraIssueSummary](),
		),
		mcp.NewTypedToolHandler(jt.handleUpdateIssue),
	)

	s.AddTool(
		mcp.NewTool(
			"jira.add_comment",
			mcp.WithDescription("Add a comment to an existing Jira issue"),
			mcp.WithInputSchema[JiraAddCommentArgs](),
			mcp.WithOutputSchema[OperationStatus](),
		),
		mcp.NewTypedToolHandler(jt.handleAddComment),
	)

	s.AddTool(
		mcp.NewTool(
			"jira.list_comments",
			mcp.WithDescription("List the comments on a Jira issue"),
			mcp.WithInputSchema[JiraListCommentsArgs](),
			mcp.WithOutputSchema[JiraCommentsResult](),
		),
		mcp.NewTypedToolHandler(jt.handleListComments),
	)

	s.AddTool(
		mcp.NewTool(
			"jira.list_transitions",
			mcp.WithDescription("List available workflow transitions for an issue"),
			mcp.WithInputSchema[JiraListTransitionsArgs](),
			mcp.WithOutputSchema[JiraTransitionsResult](),
		),
		mcp.NewTypedToolHandler(jt.handleListTransitions),
	)

	s.AddTool(
		mcp.NewTool(
			"jira.transition_issue",
			mcp.WithDescription("Move an issue using a workflow transition"),
			mcp.WithInputSchema[JiraTransitionIssueArgs](),
			mcp.WithOutputSchema[JiraIssueSummary](),
		),
		mcp.NewTypedToolHandler(jt.handleTransitionIssue),
	)

	s.AddTool(
		mcp.NewTool(
			"jira.check_connection",
			mcp.WithDescription("Verify that the configured site and credentials work"),
			mcp.WithInputSchema[JiraCheckConnectionArgs](),
			mcp.WithOutputSchema[JiraConnectionResult](),
		),
		mcp.NewTypedToolHandler(jt.handleCheckConnection),
	)

	return jt
}

// JiraListProjectsArgs parameters for listing projects.
type JiraListProjectsArgs struct {
	MaxResults int `json:"maxResults,omitempty" jsonschema_description:"Maximum number of projects to return" jsonschema:"minimum=1"`
}

// JiraProject represents project metadata returned to clients.
type JiraProject struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// JiraProjectListResult wraps the project list response.
type JiraProjectListResult struct {
	Projects []JiraProject `json:"projects"`
}

// JiraListIssueTypesArgs takes no parameters.
type JiraListIssueTypesArgs struct{}

// JiraIssueType describes an issue type.
type JiraIssueType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Subtask     bool   `json:"subtask"`
}

// JiraIssueTypeListResult wraps the issue type list response.
type JiraIssueTypeListResult struct {
	IssueTypes []JiraIssueType `json:"issueTypes"`
}

// OperationStatus represents an acknowledgement response for state-changing operations.
type OperationStatus struct {
	Message string `json:"message"`
}

// JiraGetIssueArgs parameters for fetching one issue.
type JiraGetIssueArgs struct {
	Key string `json:"key" jsonschema:"required" jsonschema_description:"Issue key"`
}

// JiraIssueSummary summarises issue details.
type JiraIssueSummary struct {
	ID             string   `json:"id"`
	Key            string   `json:"key"`
	Summary        string   `json:"summary"`
	Status         string   `json:"status"`
	StatusCategory string   `json:"statusCategory"`
	Assignee       string   `json:"assignee,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	IssueType      string   `json:"issueType,omitempty"`
	Labels         []string `json:"labels,omitempty"`
	Description    string   `json:"description,omitempty"`
	Version        int64    `json:"version"`
	URL            string   `json:"url"`
}

// JiraListTransitionsArgs parameters for retrieving workflow transitions.
type JiraListTransitionsArgs struct {
	Key string `json:"key" jsonschema:"required" jsonschema_description:"Issue key"`
}

// JiraTransition represents a workflow step that can be applied to an issue.
type JiraTransition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"to"`
}

// JiraTransitionsResult wraps transition responses.
type JiraTransitionsResult struct {
	Transitions []JiraTransition `json:"transitions"`
}

// JiraTransitionIssueArgs parameters for executing a transition.
type JiraTransitionIssueArgs struct {
	Key          string `json:"key" jsonschema:"required" jsonschema_description:"Issue key"`
	TransitionID string `json:"transitionId" jsonschema:"required" jsonschema_description:"Workflow transition ID"`
	Comment      any    `json:"comment,omitempty" jsonschema_description:"Optional comment, plain text or Atlassian document"`
}

func (j *JiraTools) issueURL(key string) string {
	return fmt.Sprintf("%s/browse/%s", j.siteURL, key)
}

func (j *JiraTools) summarise(t *jira.Ticket) JiraIssueSummary {
	s := JiraIssueSummary{
		ID:             t.ID,
		Key:            t.Key,
		Summary:        t.Summary,
		Status:         t.Status.Name,
		StatusCategory: t.Status.Category.Key(),
		Priority:       t.Priority.Name,
		IssueType:      t.IssueType,
		Labels:         t.Labels,
		Description:    t.Description.PlainText(),
		Version:        t.Version,
		URL:            j.issueURL(t.Key),
	}
	if t.Assignee != nil {
		s.Assignee = t.Assignee.DisplayName
	}
	return s
}

func (j *JiraTools) handleListProjects(ctx context.Context, _ mcp.CallToolRequest, args JiraListProjectsArgs) (*mcp.CallToolResult, error) {
	projects, err := j.repo.Projects(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("jira list projects failed", err), nil
	}
	if args.MaxResults > 0 && len(projects) > args.MaxResults {
		projects = projects[:args.MaxResults]
	}

	result := JiraProjectListResult{Projects: make([]JiraProject, 0, len(projects))}
	for _, p := range projects {
		result.Projects = append(result.Projects, JiraProject{
			ID:   p.ID,
			Key:  p.Key,
			Name: p.Name,
			URL:  j.issueURL(p.Key),
		})
	}

	fallback := fmt.Sprintf("Found %d Jira projects", len(result.Projects))
	return mcp.NewToolResultStructured(result, fallback), nil
}

func (j *JiraTools) handleListIssueTypes(ctx context.Context, _ mcp.CallToolRequest, _ JiraListIssueTypesArgs) (*mcp.CallToolResult, error) {
	types, err := j.repo.IssueTypes(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("jira list issue types failed", err), nil
	}

	result := JiraIssueTypeListResult{IssueTypes: make([]JiraIssueType, 0, len(types))}
	for _, it := range types {
		result.IssueTypes = append(result.IssueTypes, JiraIssueType(it))
	}

	fallback := fmt.Sprintf("Found %d issue types", len(result.IssueTypes))
	return mcp.NewToolResultStructured(result, fallback), nil
}

func (j *JiraTools) handleGetIssue(ctx context.Context, _ mcp.CallToolRequest, args JiraGetIssueArgs) (*mcp.CallToolResult, error) {
	ticket, err := j.repo.GetTicket(ctx, args.Key)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("jira get issue failed", err), nil
	}

	result := j.summarise(ticket)
	fallback := fmt.Sprintf("%s [%s] %s", result.Key, result.Status, result.Summary)
	return mcp.NewToolResultStructured(result, fallback), nil
}

// JiraSearchIssuesArgs parameters for JQL searches.
type JiraSearchIssuesArgs struct {
	JQL        string `json:"jql,omitempty" jsonschema_description:"JQL query string; defaults to the previous query"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema_description:"Maximum number of issues to fetch" jsonschema:"minimum=1,maximum=100"`
	StartAt    int    `json:"startAt,omitempty" jsonschema_description:"Pagination offset" jsonschema:"minimum=0"`
}

// JiraSearchIssuesResult response payload.
type JiraSearchIssuesResult struct {
	JQL       string             `json:"jql"`
	Total     int                `json:"total"`
	StartAt   int                `json:"startAt"`
	MaxResult int                `json:"maxResults"`
	HasMore   bool               `json:"hasMore"`
	Issues    []JiraIssueSummary `json:"issues"`
}

func (j *JiraTools) handleSearchIssues(ctx context.Context, _ mcp.CallToolRequest, args JiraSearchIssuesArgs) (*mcp.CallToolResult, error) {
	jql := strings.TrimSpace(args.JQL)
	if jql == "" {
		jql = j.repo.LastJQL()
	}
	if jql == "" {
		return mcp.NewToolResultError("JQL query must not be empty"), nil
	}

	page, err := j.repo.Search(ctx, jql, args.StartAt, args.MaxResults)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("jira search issues failed", err), nil
	}
	tickets, err := j.repo.Tickets(ctx, page)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("jira search issues failed", err), nil
	}

	response := JiraSearchIssuesResult{
		JQL:       page.JQL,
		Total:     page.Total,
		StartAt:   page.StartAt,
		MaxResult: page.PageSize,
		HasMore:   page.HasMore(),
		Issues:    make([]JiraIssueSummary, 0, len(tickets)),
	}
	for _, t := range tickets {
		response.Issues = append(response.Issues, j.summarise(t))
	}

	fallback := fmt.Sprintf("Found %d/%d issues for JQL", len(response.Issues), response.Total)
	return mcp.NewToolResultStructured(response, fallback), nil
}

// JiraCreateIssueArgs define creation parameters.
type JiraCreateIssueArgs struct {
	ProjectKey  string         `json:"projectKey" jsonschema:"required" jsonschema_description:"Project key"`
	IssueType   string         `json:"issueType" jsonschema:"required" jsonschema_description:"Issue type name"`
	Summary     string         `json:"summary" jsonschema:"required" jsonschema_description:"Issue summary"`
	Description any            `json:"description,omitempty" jsonschema_description:"Issue description, plain text or Atlassian document"`
	Priority    string         `json:"priority,omitempty" jsonschema_description:"Priority name"`
	Assignee    string         `json:"assignee,omitempty" jsonschema_description:"Assignee account ID"`
	Labels      []string       `json:"labels,omitempty" jsonschema_description:"Labels to set"`
	Fields      map[string]any `json:"fields,omitempty" jsonschema_description:"Additional field values keyed by field ID"`
}

func (j *JiraTools) handleCreateIssue(ctx context.Context, _ mcp.CallToolRequest, args JiraCreateIssueArgs) (*mcp.CallToolResult, error) {
	description, err := toDocument(args.Description)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid description: %v", err)), nil
	}
	fields, err := jira.ParseFields(args.Fields)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid fields: %v", err)), nil
	}

	created, err := j.repo.CreateTicket(ctx, jira.TicketInput{
		ProjectKey:  args.ProjectKey,
		IssueType:   args.IssueType,
		Summary:     args.Summary,
		Description: description,
		Priority:    args.Priority,
		Assignee:    args.Assignee,
		Labels:      args.Labels,
		Fields:      fields,
	})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("jira create issue failed", err), nil
	}

	fallback := fmt.Sprintf("Created Jira issue %s", created.Key)
	return mcp.NewToolResultStructured(j.summarise(created), fallback), nil
}

// JiraUpdateIssueArgs define fields for updates.
type JiraUpdateIssueArgs struct {
	Key         string         `json:"key" jsonschema:"required" jsonschema_description:"Issue key"`
	Summary     *string        `json:"summary,omitempty" jsonschema_description:"New summary"`
	Description any            `json:"description,omitempty" jsonschema_description:"New description"`
	Priority    *string        `json:"priority,omitempty" jsonschema_description:"New priority name"`
	Assignee    *string        `json:"assignee,omitempty" jsonschema_description:"New assignee account ID; empty to unassign"`
	Labels      []string       `json:"labels,omitempty" jsonschema_description:"Replacement labels"`
	Fields      map[string]any `json:"fields,omitempty" jsonschema_description:"Additional field updates"`
	IfVersion   int64          `json:"ifVersion,omitempty" jsonschema_description:"Refuse the update unless the issue is still at this version"`
}

func (j *JiraTools) handleUpdateIssue(ctx context.Context, _ mcp.CallToolRequest, args JiraUpdateIssueArgs) (*mcp.CallToolResult, error) {
	patch := jira.Patch{
		Summary:   args.Summary,
		Priority:  args.Priority,
		Assignee:  args.Assignee,
		Labels:    args.Labels,
		IfVersion: args.IfVersion,
	}
	if args.Description != nil {
		doc, err := toDocument(args.Description)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid description: %v", err)), nil
		}
		patch.Description = &doc
	}
	fields, err := jira.ParseFields(args.Fields)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid fields: %v", err)), nil
	}
	patch.Fields = fields

	if patch.IsEmpty() {
		return mcp.NewToolResultError("no updates provided"), nil
	}

	updated, err := j.repo.UpdateTicket(ctx, args.Key, patch)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("jira update issue failed", err), nil
	}

	fallback := fmt.Sprintf("Updated Jira issue %s", updated.Key)
	return mcp.NewToolResultStructured(j.summarise(updated), fallback), nil
}

// JiraAddCommentArgs parameters for commenting.
type JiraAddCommentArgs struct {
	Key  string `json:"key" jsonschema:"required" jsonschema_description:"Issue key"`
	Body any    `json:"body" jsonschema:"required" jsonschema_description:"Comment body as plain text or Atlassian document"`
}

func (j *JiraTools) handleAddComment(ctx context.Context, _ mcp.CallToolRequest, args JiraAddCommentArgs) (*mcp.CallToolResult, error) {
	body, err := toDocument(args.Body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid comment body: %v", err)), nil
	}
	if body.IsZero() {
		return mcp.NewToolResultError("comment body must not be empty"), nil
	}

	if _, err := j.repo.AddComment(ctx, args.Key, body); err != nil {
		return mcp.NewToolResultErrorFromErr("jira add comment failed", err), nil
	}

	fallback := fmt.Sprintf("Added comment to Jira issue %s", args.Key)
	return mcp.NewToolResultStructured(OperationStatus{Message: fallback}, fallback), nil
}

// JiraListCommentsArgs parameters for listing comments.
type JiraListCommentsArgs struct {
	Key string `json:"key" jsonschema:"required" jsonschema_description:"Issue key"`
}

// JiraComment is one comment in plain text.
type JiraComment struct {
	ID      string `json:"id"`
	Author  string `json:"author,omitempty"`
	Body    string `json:"body"`
	Created string `json:"created"`
}

// JiraCommentsResult wraps comment responses.
type JiraCommentsResult struct {
	Comments []JiraComment `json:"comments"`
}

func (j *JiraTools) handleListComments(ctx context.Context, _ mcp.CallToolRequest, args JiraListCommentsArgs) (*mcp.CallToolResult, error) {
	comments, err := j.repo.Comments(ctx, args.Key)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("jira list comments failed", err), nil
	}

	result := JiraCommentsResult{Comments: make([]JiraComment, 0, len(comments))}
	for _, c := range comments {
		out := JiraComment{ID: c.ID, Body: c.Body.PlainText(), Created: c.Created.Format(jira.TimeLayout)}
		if c.Author != nil {
			out.Author = c.Author.DisplayName
		}
		result.Comments = append(result.Comments, out)
	}

	fallback := fmt.Sprintf("Found %d comments on %s", len(result.Comments), args.Key)
	return mcp.NewToolResultStructured(result, fallback), nil
}

func (j *JiraTools) handleListTransitions(ctx context.Context, _ mcp.CallToolRequest, args JiraListTransitionsArgs) (*mcp.CallToolResult, error) {
	transitions, err := j.repo.AvailableTransitions(ctx, args.Key)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("jira list transitions failed", err), nil
	}

	result := JiraTransitionsResult{Transitions: make([]JiraTransition, 0, len(transitions))}
	for _, tr := range transitions {
		out := JiraTransition{ID: tr.ID, Name: tr.Name}
		out.To.ID = tr.To.ID
		out.To.Name = tr.To.Name
		out.To.Category = tr.To.Category.Key()
		result.Transitions = append(result.Transitions, out)
	}

	fallback := fmt.Sprintf("Found %d transitions for %s", len(result.Transitions), args.Key)
	return mcp.NewToolResultStructured(result, fallback), nil
}

func (j *JiraTools) handleTransitionIssue(ctx context.Context, _ mcp.CallToolRequest, args JiraTransitionIssueArgs) (*mcp.CallToolResult, error) {
	comment, err := toDocument(args.Comment)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid comment: %v", err)), nil
	}

	ticket, err := j.repo.ApplyTransition(ctx, args.Key, args.TransitionID, comment)
	if err != nil {
		if errors.Is(err, jira.ErrInvalidTransition) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultErrorFromErr("jira transition issue failed", err), nil
	}

	fallback := fmt.Sprintf("Transitioned %s to %s", ticket.Key, ticket.Status.Name)
	return mcp.NewToolResultStructured(j.summarise(ticket), fallback), nil
}

// JiraCheckConnectionArgs takes no parameters.
type JiraCheckConnectionArgs struct{}

// JiraConnectionResult reports a connectivity check.
type JiraConnectionResult struct {
	Connected bool   `json:"connected"`
	State     string `json:"state"`
	Account   string `json:"account,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (j *JiraTools) handleCheckConnection(ctx context.Context, _ mcp.CallToolRequest, _ JiraCheckConnectionArgs) (*mcp.CallToolResult, error) {
	status := j.repo.TestConnection(ctx)
	result := JiraConnectionResult{
		Connected: status.OK(),
		State:     status.State.String(),
		Message:   status.Message(),
	}
	if status.User != nil {
		result.Account = status.User.DisplayName
	}

	fallback := "Connected to " + j.siteURL
	if !status.OK() {
		fallback = result.Message
	}
	return mcp.NewToolResultStructured(result, fallback), nil
}

// toDocument accepts plain text or an Atlassian document object.
func toDocument(v any) (jira.Document, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return jira.TextDocument(val), nil
	case map[string]any:
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		doc := jira.Document(raw)
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, fmt.Errorf("expected text or a document object, got %T", v)
}
