package atlassian

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/ylchen07/lazyjira/internal/auth"
	"github.com/ylchen07/lazyjira/internal/clock"
	"github.com/ylchen07/lazyjira/internal/config"
)

const defaultTimeout = 30 * time.Second

// Client is a helper around the Atlassian REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	clock      clock.Clock
}

// Option customises a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithClock sets the clock used to resolve Retry-After dates.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// NewClient constructs a Client for the specified base URL and credentials.
// A base without a scheme is assumed to be HTTPS.
func NewClient(base string, creds config.ServiceCredentials, logger *slog.Logger, opts ...Option) (*Client, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, fmt.Errorf("atlassian: base URL required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	parsed, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("atlassian: parse base url: %w", err)
	}

	transport := auth.NewTransport(nil, creds)
	httpClient := &http.Client{
		Timeout:   defaultTimeout,
		Transport: transport,
	}

	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: httpClient,
		logger:     logger,
		clock:      clock.Real(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewRequest builds an HTTP request with optional query parameters. A
// non-nil body is always sent as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, query map[string]string, body any) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + path

	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var bodyReader io.Reader
	contentType := ""
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("atlassian: encode body: %w", err)
		}
		bodyReader = buf
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

// Do executes the request and decodes the response JSON into out if provided.
// Non-2xx responses are returned as *Error; undecodable bodies wrap ErrDecode.
func (c *Client) Do(req *http.Request, out any) error {
	start := c.clock.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("atlassian request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Any("error", err),
		)
		return err
	}
	defer res.Body.Close()

	c.logger.Debug("atlassian request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", res.StatusCode),
		slog.Duration("elapsed", c.clock.Now().Sub(start)),
	)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return parseError(res, c.clock.Now())
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return nil
}

// SetTransport overrides the underlying HTTP transport. Useful for testing.
func (c *Client) SetTransport(rt http.RoundTripper) {
	if rt == nil {
		return
	}
	c.httpClient.Transport = rt
}
