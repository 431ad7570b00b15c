package integration

import (
	"os"
	"strings"
	"testing"

	"github.com/ylchen07/lazyjira/internal/cli"
	"github.com/ylchen07/lazyjira/internal/config"
	"github.com/ylchen07/lazyjira/internal/repository"
	"github.com/ylchen07/lazyjira/pkg/logging"
)

// requireIntegration skips the test if LAZYJIRA_INTEGRATION is not set.
func requireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("LAZYJIRA_INTEGRATION") == "" {
		t.Skip("LAZYJIRA_INTEGRATION not set; skipping integration tests")
	}
}

// resolveEnv returns the first non-empty environment variable value from the provided keys.
func resolveEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

// credsValid checks if credentials are valid (either OAuth token or email+API token).
func credsValid(creds config.ServiceCredentials) bool {
	if creds.OAuthToken != "" {
		return true
	}
	return creds.Email != "" && creds.APIToken != ""
}

// setupRepository builds the full client stack from environment variables
// and skips the test when no site or credentials are available.
func setupRepository(t *testing.T) (*repository.Repository, string) {
	t.Helper()

	site := resolveEnv("LAZYJIRA_ATLASSIAN_JIRA_SITE", "LAZYJIRA_ATLASSIAN_SITE")
	if site == "" {
		t.Skip("LAZYJIRA_ATLASSIAN_SITE not set")
	}

	creds := config.ServiceCredentials{
		Email:      os.Getenv("LAZYJIRA_ATLASSIAN_JIRA_EMAIL"),
		APIToken:   os.Getenv("LAZYJIRA_ATLASSIAN_JIRA_API_TOKEN"),
		OAuthToken: os.Getenv("LAZYJIRA_ATLASSIAN_JIRA_OAUTH_TOKEN"),
	}
	if !credsValid(creds) {
		t.Skip("Jira credentials not provided")
	}

	cfg := config.Default()
	cfg.Atlassian.Jira.Site = site
	cfg.Atlassian.Jira.ServiceCredentials = creds

	repo, err := cli.Build(cfg, logging.New("debug", "text"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return repo, strings.TrimRight(site, "/")
}

// skipIfEmpty skips the test if the provided slice is empty with a helpful message.
func skipIfEmpty[T any](t *testing.T, items []T, itemType string) {
	t.Helper()
	if len(items) == 0 {
		t.Skipf("no %s found; cannot proceed with test", itemType)
	}
}
