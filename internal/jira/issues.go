package jira

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// GetTicket fetches a single ticket by key.
func (c *Client) GetTicket(ctx context.Context, key string) (*Ticket, error) {
	const op = "get ticket"
	if err := ValidateKey(key); err != nil {
		return nil, classify(op, key, err)
	}

	return call(ctx, c, op, key, func(ctx context.Context) (*Ticket, error) {
		var res issueResource
		query := map[string]string{"fields": strings.Join(ticketFields, ",")}
		if err := c.send(ctx, http.MethodGet, apiPath("issue", url.PathEscape(key)), query, nil, &res); err != nil {
			return nil, err
		}
		return res.toTicket()
	})
}

// CreateTicket creates a ticket and returns its server-assigned identity.
func (c *Client) CreateTicket(ctx context.Context, in TicketInput) (Ref, error) {
	const op = "create ticket"
	if err := in.Validate(); err != nil {
		return Ref{}, err
	}

	body := map[string]any{"fields": in.wireFields()}
	return call(ctx, c, op, in.ProjectKey, func(ctx context.Context) (Ref, error) {
		var created struct {
			ID  string `json:"id"`
			Key string `json:"key"`
		}
		if err := c.send(ctx, http.MethodPost, apiPath("issue"), nil, body, &created); err != nil {
			return Ref{}, err
		}
		if created.Key == "" {
			return Ref{}, parseError("create response carries no key")
		}
		return Ref{ID: created.ID, Key: created.Key}, nil
	})
}

// UpdateTicket applies patch to the ticket. The server replies without a
// body; callers re-fetch to observe the result.
func (c *Client) UpdateTicket(ctx context.Context, key string, patch Patch) error {
	const op = "update ticket"
	if err := ValidateKey(key); err != nil {
		return classify(op, key, err)
	}
	if err := patch.Validate(); err != nil {
		return classify(op, key, err)
	}

	body := map[string]any{"fields": patch.wireFields()}
	_, err := call(ctx, c, op, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.send(ctx, http.MethodPut, apiPath("issue", url.PathEscape(key)), nil, body, nil)
	})
	return err
}

// Myself returns the authenticated account.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	return call(ctx, c, "get current user", "", func(ctx context.Context) (*User, error) {
		var res userResource
		if err := c.send(ctx, http.MethodGet, apiPath("myself"), nil, nil, &res); err != nil {
			return nil, err
		}
		u := res.toUser()
		if u == nil {
			return nil, parseError("current user carries no accountId")
		}
		return u, nil
	})
}
