package jira

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// AddComment appends a comment to the ticket.
func (c *Client) AddComment(ctx context.Context, key string, body Document) (Comment, error) {
	const op = "add comment"
	if err := ValidateKey(key); err != nil {
		return Comment{}, classify(op, key, err)
	}
	if body.IsZero() {
		return Comment{}, validationError(op, key, map[string]string{"body": "comment body is required"})
	}
	if err := body.Validate(); err != nil {
		return Comment{}, validationError(op, key, map[string]string{"body": err.Error()})
	}

	path := apiPath("issue", url.PathEscape(key), "comment")
	return call(ctx, c, op, key, func(ctx context.Context) (Comment, error) {
		var res commentResource
		if err := c.send(ctx, http.MethodPost, path, nil, map[string]any{"body": body}, &res); err != nil {
			return Comment{}, err
		}
		return res.toComment()
	})
}

// ListComments returns every comment on the ticket, oldest first.
func (c *Client) ListComments(ctx context.Context, key string) ([]Comment, error) {
	const op = "list comments"
	if err := ValidateKey(key); err != nil {
		return nil, classify(op, key, err)
	}

	path := apiPath("issue", url.PathEscape(key), "comment")
	return call(ctx, c, op, key, func(ctx context.Context) ([]Comment, error) {
		var out []Comment
		for startAt := 0; ; {
			if startAt > 0 {
				if err := c.limiter.Wait(ctx); err != nil {
					return nil, err
				}
			}
			var page struct {
				StartAt  int               `json:"startAt"`
				Total    int               `json:"total"`
				Comments []commentResource `json:"comments"`
			}
			query := map[string]string{"startAt": strconv.Itoa(startAt), "orderBy": "created"}
			if err := c.send(ctx, http.MethodGet, path, query, nil, &page); err != nil {
				return nil, err
			}
			for _, r := range page.Comments {
				cm, err := r.toComment()
				if err != nil {
					return nil, err
				}
				out = append(out, cm)
			}
			startAt += len(page.Comments)
			if len(page.Comments) == 0 || startAt >= page.Total {
				return out, nil
			}
		}
	})
}
