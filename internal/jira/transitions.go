package jira

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// ListTransitions retrieves the workflow transitions currently available
// for a ticket. The server is authoritative; nothing is computed locally.
func (c *Client) ListTransitions(ctx context.Context, key string) ([]Transition, error) {
	const op = "list transitions"
	if err := ValidateKey(key); err != nil {
		return nil, classify(op, key, err)
	}

	path := apiPath("issue", url.PathEscape(key), "transitions")
	return call(ctx, c, op, key, func(ctx context.Context) ([]Transition, error) {
		var out struct {
			Transitions []transitionResource `json:"transitions"`
		}
		if err := c.send(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
			return nil, err
		}
		transitions := make([]Transition, 0, len(out.Transitions))
		for _, r := range out.Transitions {
			t, err := r.toTransition()
			if err != nil {
				return nil, err
			}
			transitions = append(transitions, t)
		}
		return transitions, nil
	})
}

// ExecuteTransition moves a ticket through a workflow transition, adding
// comment alongside when it is not empty.
func (c *Client) ExecuteTransition(ctx context.Context, key, transitionID string, comment Document) error {
	const op = "execute transition"
	if err := ValidateKey(key); err != nil {
		return classify(op, key, err)
	}
	if strings.TrimSpace(transitionID) == "" {
		return validationError(op, key, map[string]string{"transition": "transition id is required"})
	}
	if !comment.IsZero() {
		if err := comment.Validate(); err != nil {
			return validationError(op, key, map[string]string{"comment": err.Error()})
		}
	}

	body := map[string]any{
		"transition": map[string]string{"id": transitionID},
	}
	if !comment.IsZero() {
		body["update"] = map[string]any{
			"comment": []map[string]any{{"add": map[string]any{"body": comment}}},
		}
	}

	path := apiPath("issue", url.PathEscape(key), "transitions")
	_, err := call(ctx, c, op, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.send(ctx, http.MethodPost, path, nil, body, nil)
	})
	return err
}
