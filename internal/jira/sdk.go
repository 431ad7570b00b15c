package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jiraapi "github.com/ctreminiom/go-atlassian/v2/jira/v3"
	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"

	"github.com/ylchen07/lazyjira/internal/atlassian"
	"github.com/ylchen07/lazyjira/internal/auth"
	"github.com/ylchen07/lazyjira/internal/clock"
	"github.com/ylchen07/lazyjira/internal/config"
)

// SDKOption customises construction of the Jira SDK client.
type SDKOption func(*jiraapi.Client)

// WithUserAgent sets a custom user agent on the Jira SDK client.
func WithUserAgent(agent string) SDKOption {
	return func(client *jiraapi.Client) {
		if strings.TrimSpace(agent) != "" {
			client.Auth.SetUserAgent(agent)
		}
	}
}

// WithHTTPClient overrides the HTTP client used by the Jira SDK.
// The SDK stores the http.Client by reference, so customise transport and
// timeouts before passing it in.
func WithHTTPClient(httpClient *http.Client) SDKOption {
	return func(client *jiraapi.Client) {
		if httpClient != nil {
			client.HTTP = httpClient
		}
	}
}

// NewSDK creates a Jira REST v3 client backed by the go-atlassian SDK.
// The site must be the Atlassian base URL (e.g. https://<tenant>.atlassian.net).
// OAuth bearer tokens take precedence over basic auth (email/API token).
func NewSDK(site string, creds config.ServiceCredentials, opts ...SDKOption) (*jiraapi.Client, error) {
	base, err := normalizeSite(site)
	if err != nil {
		return nil, err
	}

	client, err := jiraapi.New(&http.Client{Timeout: 30 * time.Second}, base)
	if err != nil {
		return nil, fmt.Errorf("jira: initialise client: %w", err)
	}

	client.Auth.SetUserAgent(auth.UserAgent)

	for _, opt := range opts {
		opt(client)
	}

	switch {
	case strings.TrimSpace(creds.OAuthToken) != "":
		client.Auth.SetBearerToken(strings.TrimSpace(creds.OAuthToken))
	case strings.TrimSpace(creds.Email) != "" && strings.TrimSpace(creds.APIToken) != "":
		client.Auth.SetBasicAuth(strings.TrimSpace(creds.Email), strings.TrimSpace(creds.APIToken))
	default:
		return nil, fmt.Errorf("jira: %w", auth.ErrInsufficientCredentials)
	}

	return client, nil
}

func normalizeSite(site string) (string, error) {
	trimmed := strings.TrimSpace(site)
	if trimmed == "" {
		return "", fmt.Errorf("jira: site is required to construct client")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("jira: parse site: %w", err)
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/")
	for _, suffix := range []string{"/rest/api/3", "/rest/api/2"} {
		if strings.HasSuffix(parsed.Path, suffix) {
			parsed.Path = strings.TrimSuffix(parsed.Path, suffix)
			parsed.Path = strings.TrimRight(parsed.Path, "/")
			break
		}
	}

	if parsed.Path != "" && !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	return parsed.String(), nil
}

// SDKMetadata serves project and issue type lookups through the SDK.
type SDKMetadata struct {
	client *jiraapi.Client
	clock  clock.Clock
}

// NewSDKMetadata wraps an SDK client. A nil clock uses the wall clock.
func NewSDKMetadata(client *jiraapi.Client, clk clock.Clock) *SDKMetadata {
	return &SDKMetadata{client: client, clock: clock.OrReal(clk)}
}

// ProjectPage reads one page of the project search.
func (m *SDKMetadata) ProjectPage(ctx context.Context, startAt, pageSize int) (ProjectPage, error) {
	page, res, err := m.client.Project.Search(ctx, &models.ProjectSearchOptionsScheme{OrderBy: "key"}, startAt, pageSize)
	if err != nil {
		return ProjectPage{}, m.responseError(res, err)
	}
	if page == nil {
		return ProjectPage{IsLast: true}, nil
	}
	out := ProjectPage{IsLast: page.IsLast, Projects: make([]Project, 0, len(page.Values))}
	for _, p := range page.Values {
		if p == nil {
			continue
		}
		out.Projects = append(out.Projects, Project{ID: p.ID, Key: p.Key, Name: p.Name})
	}
	return out, nil
}

// IssueTypes lists the issue types visible to the caller.
func (m *SDKMetadata) IssueTypes(ctx context.Context) ([]IssueType, error) {
	types, res, err := m.client.Issue.Type.Gets(ctx)
	if err != nil {
		return nil, m.responseError(res, err)
	}
	out := make([]IssueType, 0, len(types))
	for _, t := range types {
		if t == nil {
			continue
		}
		out = append(out, IssueType{ID: t.ID, Name: t.Name, Description: t.Description, Subtask: t.Subtask})
	}
	return out, nil
}

// responseError turns an SDK failure into the transport error shape so the
// usual classification applies.
func (m *SDKMetadata) responseError(res *models.ResponseScheme, err error) error {
	if res == nil || res.Code == 0 {
		return err
	}
	apiErr := &atlassian.Error{StatusCode: res.Code, Message: strings.TrimSpace(res.Bytes.String())}
	if res.Response != nil {
		apiErr.RetryAfter, apiErr.HasRetryAfter = atlassian.RetryAfter(res.Header, m.clock.Now())
	}
	if apiErr.Message == "" {
		apiErr.Message = err.Error()
	}
	return apiErr
}
