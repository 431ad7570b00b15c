package jira

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ylchen07/lazyjira/internal/atlassian"
	"github.com/ylchen07/lazyjira/internal/retry"
)

const (
	apiPrefix = "/rest/api/3"

	// DefaultPageSize is used when a search does not ask for a page size.
	DefaultPageSize = 50
)

// Limiter gates outbound requests. *ratelimit.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// MetadataSource fetches reference metadata. Every method performs a
// single request; the client adds limiting and retries around it.
type MetadataSource interface {
	ProjectPage(ctx context.Context, startAt, pageSize int) (ProjectPage, error)
	IssueTypes(ctx context.Context) ([]IssueType, error)
}

// Client exposes typed Jira REST operations. Every call waits on the
// limiter, runs under the retry policy and returns errors classified as
// *Error.
type Client struct {
	rest     *atlassian.Client
	limiter  Limiter
	backoff  *retry.Backoff
	logger   *slog.Logger
	metadata MetadataSource
}

// Option customises a Client.
type Option func(*Client)

// WithLimiter gates every request attempt on l.
func WithLimiter(l Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithBackoff sets the retry policy. A nil policy disables retries.
func WithBackoff(b *retry.Backoff) Option {
	return func(c *Client) {
		c.backoff = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetadata replaces the REST-backed project and issue type lookups.
func WithMetadata(m MetadataSource) Option {
	return func(c *Client) {
		if m != nil {
			c.metadata = m
		}
	}
}

// NewClient creates a Jira client on top of the REST transport.
func NewClient(rest *atlassian.Client, opts ...Option) *Client {
	c := &Client{
		rest:    rest,
		limiter: unlimited{},
		backoff: retry.New(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metadata == nil {
		c.metadata = restMetadata{c}
	}
	return c
}

type unlimited struct{}

func (unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// call runs attempt under the limiter and retry policy and classifies the
// outcome against op and target.
func call[T any](ctx context.Context, c *Client, op, target string, attempt func(ctx context.Context) (T, error)) (T, error) {
	n := 0
	out, err := retry.Do(ctx, c.backoff, func(ctx context.Context) (T, error) {
		n++
		if err := c.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		v, err := attempt(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				var zero T
				return zero, ctxErr
			}
			err = classify(op, target, err)
			if retry.IsTransient(err) {
				c.logger.Debug("jira attempt failed",
					slog.String("op", op),
					slog.String("target", target),
					slog.Int("attempt", n),
					slog.Any("error", err),
				)
			}
		}
		return v, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// send performs one request and decodes the response into out.
func (c *Client) send(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	req, err := c.rest.NewRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	return c.rest.Do(req, out)
}

// apiPath constructs Jira API paths by joining parts with the API prefix.
func apiPath(parts ...string) string {
	builder := strings.Builder{}
	builder.WriteString(strings.TrimRight(apiPrefix, "/"))

	for _, part := range parts {
		if trimmed := strings.Trim(part, "/"); trimmed != "" {
			builder.WriteByte('/')
			builder.WriteString(trimmed)
		}
	}

	return builder.String()
}
