package jira

import (
	"context"
	"net/http"
)

// Search fetches one page of tickets matching jql. A zero pageSize uses
// DefaultPageSize; the server may return fewer results than requested and
// the page reports what came back.
func (c *Client) Search(ctx context.Context, jql string, startAt, pageSize int) (SearchResult, error) {
	const op = "search"
	problems := map[string]string{}
	if startAt < 0 {
		problems["startAt"] = "must not be negative"
	}
	if pageSize < 0 {
		problems["maxResults"] = "must not be negative"
	}
	if len(problems) > 0 {
		return SearchResult{}, validationError(op, jql, problems)
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	body := map[string]any{
		"jql":        jql,
		"startAt":    startAt,
		"maxResults": pageSize,
		"fields":     ticketFields,
	}
	return call(ctx, c, op, jql, func(ctx context.Context) (SearchResult, error) {
		var res searchResponse
		if err := c.send(ctx, http.MethodPost, apiPath("search"), nil, body, &res); err != nil {
			return SearchResult{}, err
		}
		return res.toResult(jql, startAt, pageSize)
	})
}

// SearchAll walks every page of jql and returns the concatenated result.
func (c *Client) SearchAll(ctx context.Context, jql string, pageSize int) (SearchResult, error) {
	var all SearchResult
	all.Page.JQL = jql

	for startAt := 0; ; {
		res, err := c.Search(ctx, jql, startAt, pageSize)
		if err != nil {
			return SearchResult{}, err
		}
		all.Page.PageSize = res.Page.PageSize
		all.Page.Total = res.Page.Total
		all.Page.Keys = append(all.Page.Keys, res.Page.Keys...)
		all.Tickets = append(all.Tickets, res.Tickets...)

		if !res.Page.HasMore() || len(res.Page.Keys) == 0 {
			return all, nil
		}
		startAt = res.Page.NextStartAt()
	}
}

func (r searchResponse) toResult(jql string, startAt, pageSize int) (SearchResult, error) {
	if r.StartAt != 0 || startAt == 0 {
		startAt = r.StartAt
	}
	if r.MaxResults > 0 {
		pageSize = r.MaxResults
	}
	if r.Total < 0 || startAt+len(r.Issues) > r.Total {
		return SearchResult{}, parseError("page at %d with %d issues exceeds total %d", startAt, len(r.Issues), r.Total)
	}

	out := SearchResult{
		Page: SearchPage{
			JQL:      jql,
			StartAt:  startAt,
			PageSize: pageSize,
			Total:    r.Total,
			Keys:     make([]string, 0, len(r.Issues)),
		},
		Tickets: make([]*Ticket, 0, len(r.Issues)),
	}
	for _, issue := range r.Issues {
		t, err := issue.toTicket()
		if err != nil {
			return SearchResult{}, err
		}
		out.Page.Keys = append(out.Page.Keys, t.Key)
		out.Tickets = append(out.Tickets, t)
	}
	return out, nil
}
