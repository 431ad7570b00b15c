package jira

import (
	"context"
	"net/http"
	"strconv"
)

// GetProjects returns every project visible to the caller. Each page is a
// separate limited, retried request, so a failure part way through only
// repeats the failing page.
func (c *Client) GetProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	for startAt := 0; ; {
		page, err := call(ctx, c, "get projects", "", func(ctx context.Context) (ProjectPage, error) {
			return c.metadata.ProjectPage(ctx, startAt, projectPageSize)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Projects...)
		if page.IsLast || len(page.Projects) == 0 {
			return out, nil
		}
		startAt += len(page.Projects)
	}
}

// GetIssueTypes returns every issue type visible to the caller.
func (c *Client) GetIssueTypes(ctx context.Context) ([]IssueType, error) {
	return call(ctx, c, "get issue types", "", c.metadata.IssueTypes)
}

// ProjectPage is one page of the project search.
type ProjectPage struct {
	Projects []Project
	IsLast   bool
}

const projectPageSize = 50

// restMetadata reads metadata through the client's own transport. It runs
// inside call, so it performs single attempts only.
type restMetadata struct {
	c *Client
}

func (m restMetadata) ProjectPage(ctx context.Context, startAt, pageSize int) (ProjectPage, error) {
	var page struct {
		Values []struct {
			ID   string `json:"id"`
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"values"`
		IsLast bool `json:"isLast"`
	}
	query := map[string]string{
		"startAt":    strconv.Itoa(startAt),
		"maxResults": strconv.Itoa(pageSize),
		"orderBy":    "key",
	}
	if err := m.c.send(ctx, http.MethodGet, apiPath("project", "search"), query, nil, &page); err != nil {
		return ProjectPage{}, err
	}
	out := ProjectPage{IsLast: page.IsLast, Projects: make([]Project, 0, len(page.Values))}
	for _, p := range page.Values {
		out.Projects = append(out.Projects, Project{ID: p.ID, Key: p.Key, Name: p.Name})
	}
	return out, nil
}

func (m restMetadata) IssueTypes(ctx context.Context) ([]IssueType, error) {
	var types []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Subtask     bool   `json:"subtask"`
	}
	if err := m.c.send(ctx, http.MethodGet, apiPath("issuetype"), nil, nil, &types); err != nil {
		return nil, err
	}
	out := make([]IssueType, 0, len(types))
	for _, t := range types {
		out = append(out, IssueType{ID: t.ID, Name: t.Name, Description: t.Description, Subtask: t.Subtask})
	}
	return out, nil
}
