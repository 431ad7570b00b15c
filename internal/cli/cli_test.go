package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureHTTPS(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in  string
		out string
	}{
		{"example.atlassian.net", "https://example.atlassian.net"},
		{"https://example.atlassian.net/", "https://example.atlassian.net"},
		{"http://example.atlassian.net", "http://example.atlassian.net"},
		{"  ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			if got := ensureHTTPS(tc.in); got != tc.out {
				t.Fatalf("ensureHTTPS(%q) = %q, want %q", tc.in, got, tc.out)
			}
		})
	}
}

func issue(key, status, category string) map[string]any {
	return map[string]any{
		"id":  "10" + strings.TrimPrefix(key, "PROJ-"),
		"key": key,
		"fields": map[string]any{
			"summary":   "Summary of " + key,
			"status":    map[string]any{"id": "1", "name": status, "statusCategory": map[string]any{"key": category}},
			"issuetype": map[string]any{"name": "Task"},
			"project":   map[string]any{"key": "PROJ"},
			"created":   "2026-02-01T10:00:00.000+0000",
			"updated":   "2026-02-02T11:30:00.000+0000",
		},
	}
}

// fakeSite serves the subset of the Jira REST API the commands use.
type fakeSite struct {
	mu          sync.Mutex
	status      string
	category    string
	transitions int
	requests    []string
}

func (f *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	write := func(status int, body any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}

	switch {
	case r.URL.Path == "/rest/api/3/myself":
		write(http.StatusOK, map[string]any{"accountId": "abc", "displayName": "Ada"})
	case r.URL.Path == "/rest/api/3/issue/PROJ-1" && r.Method == http.MethodGet:
		write(http.StatusOK, issue("PROJ-1", f.status, f.category))
	case r.URL.Path == "/rest/api/3/issue/PROJ-404":
		write(http.StatusNotFound, map[string]any{"errorMessages": []string{"Issue does not exist"}})
	case r.URL.Path == "/rest/api/3/search":
		write(http.StatusOK, map[string]any{
			"startAt": 0, "maxResults": 50, "total": 2,
			"issues": []any{issue("PROJ-1", f.status, f.category), issue("PROJ-2", "Done", "done")},
		})
	case r.URL.Path == "/rest/api/3/issue/PROJ-1/transitions" && r.Method == http.MethodGet:
		write(http.StatusOK, map[string]any{"transitions": []any{
			map[string]any{"id": "31", "name": "Finish", "to": map[string]any{"id": "3", "name": "Done", "statusCategory": map[string]any{"key": "done"}}},
		}})
	case r.URL.Path == "/rest/api/3/issue/PROJ-1/transitions" && r.Method == http.MethodPost:
		f.transitions++
		f.status, f.category = "Done", "done"
		w.WriteHeader(http.StatusNoContent)
	default:
		write(http.StatusNotFound, map[string]any{"errorMessages": []string{"no route " + r.URL.Path}})
	}
}

func setup(t *testing.T) (*fakeSite, string) {
	t.Helper()
	site := &fakeSite{status: "To Do", category: "new"}
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := `server:
  log_level: error
atlassian:
  site: ` + srv.URL + `
  jira:
    email: ada@example.com
    api_token: secret
client:
  retry:
    max_attempts: 1
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return site, path
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(strings.NewReader(s)).Decode(&m))
	return m
}

func TestGetCommand(t *testing.T) {
	_, cfg := setup(t)

	code, out, errOut := execute(t, "--config", cfg, "--json", "get", "PROJ-1")
	require.Equal(t, 0, code, errOut)
	got := decode(t, out)
	assert.Equal(t, "PROJ-1", got["key"])
	assert.Equal(t, "Summary of PROJ-1", got["summary"])
	assert.Equal(t, "new", got["status"].(map[string]any)["category"])
}

func TestGetCommandNotFound(t *testing.T) {
	_, cfg := setup(t)

	code, out, errOut := execute(t, "--config", cfg, "--json", "get", "PROJ-404")
	assert.Equal(t, exitNotFound, code)
	assert.Empty(t, out)
	assert.Contains(t, decode(t, errOut)["error"], "not found")
}

func TestGetCommandRejectsMalformedKey(t *testing.T) {
	site, cfg := setup(t)

	code, _, errOut := execute(t, "--config", cfg, "get", "not a key")
	assert.Equal(t, exitInvalidInput, code)
	assert.True(t, strings.HasPrefix(errOut, "Error: "), errOut)
	assert.Empty(t, site.requests)
}

func TestSearchCommandFilters(t *testing.T) {
	_, cfg := setup(t)

	code, out, errOut := execute(t, "--config", cfg, "--json", "search", "project = PROJ", "--category", "done")
	require.Equal(t, 0, code, errOut)
	got := decode(t, out)
	assert.EqualValues(t, 2, got["total"])
	issues := got["issues"].([]any)
	require.Len(t, issues, 1)
	assert.Equal(t, "PROJ-2", issues[0].(map[string]any)["key"])
}

func TestSearchCommandUnknownCategory(t *testing.T) {
	_, cfg := setup(t)

	code, _, _ := execute(t, "--config", cfg, "search", "project = PROJ", "--category", "someday")
	assert.Equal(t, exitInvalidInput, code)
}

func TestTransitionCommand(t *testing.T) {
	site, cfg := setup(t)

	code, out, errOut := execute(t, "--config", cfg, "--json", "transition", "PROJ-1", "31")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Done", decode(t, out)["status"].(map[string]any)["name"])
	assert.Equal(t, 1, site.transitions)
}

func TestTransitionCommandUnknownTransition(t *testing.T) {
	site, cfg := setup(t)

	code, _, errOut := execute(t, "--config", cfg, "transition", "PROJ-1", "99")
	assert.Equal(t, exitInvalidInput, code)
	assert.Contains(t, errOut, "31")
	assert.Zero(t, site.transitions)
}

func TestCheckCommand(t *testing.T) {
	_, cfg := setup(t)

	code, out, errOut := execute(t, "--config", cfg, "--json", "check")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "connected", decode(t, out)["state"])
}

func TestUpdateCommandRequiresChanges(t *testing.T) {
	site, cfg := setup(t)

	code, _, _ := execute(t, "--config", cfg, "update", "PROJ-1")
	assert.Equal(t, exitInvalidInput, code)
	for _, r := range site.requests {
		assert.NotEqual(t, "PUT /rest/api/3/issue/PROJ-1", r)
	}
}

func TestMissingConfiguration(t *testing.T) {
	t.Setenv("LAZYJIRA_ATLASSIAN_SITE", "")
	t.Setenv("NETRC", filepath.Join(t.TempDir(), "none"))
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  log_level: error\n"), 0o600))

	code, _, errOut := execute(t, "--config", dir, "projects")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "atlassian.site is required")
}

func TestRootHelp(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand(&out, io.Discard)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})
	require.NoError(t, cmd.Execute())
	for _, name := range []string{"get", "search", "transition", "update", "serve"} {
		assert.Contains(t, out.String(), name)
	}
}
