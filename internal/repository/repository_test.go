package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ylchen07/lazyjira/internal/auth"
	"github.com/ylchen07/lazyjira/internal/cache"
	"github.com/ylchen07/lazyjira/internal/clock"
	"github.com/ylchen07/lazyjira/internal/jira"
	"github.com/ylchen07/lazyjira/internal/state"
	"github.com/ylchen07/lazyjira/internal/workflow"
	"github.com/ylchen07/lazyjira/pkg/logging"
)

var (
	epoch      = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	todo       = jira.Status{ID: "1", Name: "To Do", Category: jira.CategoryToDo}
	inProgress = jira.Status{ID: "3", Name: "In Progress", Category: jira.CategoryInProgress}
)

// fakeJira plays the server for the cache, the machine and the repository.
type fakeJira struct {
	mu        sync.Mutex
	tickets   map[string]*jira.Ticket
	calls     map[string]int
	next      int
	updateErr error
	myselfErr error
	// onUpdate runs after a successful update, under the lock.
	onUpdate func(key string)
}

func newFakeJira(n int) *fakeJira {
	f := &fakeJira{tickets: map[string]*jira.Ticket{}, calls: map[string]int{}, next: n + 1}
	for i := 1; i <= n; i++ {
		key := "PROJ-" + strconv.Itoa(i)
		f.tickets[key] = &jira.Ticket{
			ID:         strconv.Itoa(10000 + i),
			Key:        key,
			Summary:    "ticket " + strconv.Itoa(i),
			Status:     todo,
			ProjectKey: "PROJ",
			Updated:    epoch,
			Version:    jira.VersionOf(epoch),
		}
	}
	return f
}

func (f *fakeJira) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeJira) GetTicket(_ context.Context, key string) (*jira.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get"]++
	t, ok := f.tickets[key]
	if !ok {
		return nil, &jira.Error{Kind: jira.ErrNotFound, Op: "get ticket", Target: key, StatusCode: 404}
	}
	return t.Clone(), nil
}

func (f *fakeJira) Search(_ context.Context, jql string, startAt, pageSize int) (jira.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["search"]++
	keys := make([]string, 0, len(f.tickets))
	for i := 1; i < f.next; i++ {
		if _, ok := f.tickets["PROJ-"+strconv.Itoa(i)]; ok {
			keys = append(keys, "PROJ-"+strconv.Itoa(i))
		}
	}
	res := jira.SearchResult{Page: jira.SearchPage{JQL: jql, StartAt: startAt, PageSize: pageSize, Total: len(keys)}}
	for i := startAt; i < len(keys) && i < startAt+pageSize; i++ {
		res.Page.Keys = append(res.Page.Keys, keys[i])
		res.Tickets = append(res.Tickets, f.tickets[keys[i]].Clone())
	}
	return res, nil
}

func (f *fakeJira) ListTransitions(context.Context, string) ([]jira.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["transitions"]++
	return []jira.Transition{{ID: "21", Name: "Start", To: inProgress}}, nil
}

func (f *fakeJira) ExecuteTransition(_ context.Context, key, _ string, _ jira.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["execute"]++
	f.touch(key).Status = inProgress
	return nil
}

func (f *fakeJira) GetProjects(context.Context) ([]jira.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["projects"]++
	return []jira.Project{{ID: "1", Key: "PROJ", Name: "Project"}}, nil
}

func (f *fakeJira) GetIssueTypes(context.Context) ([]jira.IssueType, error) {
	return []jira.IssueType{{ID: "10001", Name: "Task"}}, nil
}

func (f *fakeJira) CreateTicket(_ context.Context, in jira.TicketInput) (jira.Ref, error) {
	if err := in.Validate(); err != nil {
		return jira.Ref{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++
	n := f.next
	f.next++
	key := in.ProjectKey + "-" + strconv.Itoa(n)
	f.tickets[key] = &jira.Ticket{
		ID: strconv.Itoa(10000 + n), Key: key, Summary: in.Summary, Status: todo,
		ProjectKey: in.ProjectKey, IssueType: in.IssueType, Updated: epoch, Version: jira.VersionOf(epoch),
	}
	return jira.Ref{ID: strconv.Itoa(10000 + n), Key: key}, nil
}

func (f *fakeJira) UpdateTicket(_ context.Context, key string, patch jira.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["update"]++
	if f.updateErr != nil {
		return f.updateErr
	}
	t := f.touch(key)
	if patch.Summary != nil {
		t.Summary = *patch.Summary
	}
	if f.onUpdate != nil {
		f.onUpdate(key)
	}
	return nil
}

func (f *fakeJira) AddComment(_ context.Context, key string, body jira.Document) (jira.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["comment"]++
	f.touch(key)
	return jira.Comment{ID: "100", Body: body, Created: epoch}, nil
}

func (f *fakeJira) ListComments(context.Context, string) ([]jira.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["comments"]++
	return []jira.Comment{{ID: "100", Body: jira.TextDocument("hello")}}, nil
}

func (f *fakeJira) Myself(context.Context) (*jira.User, error) {
	if f.myselfErr != nil {
		return nil, f.myselfErr
	}
	return &jira.User{AccountID: "abc", DisplayName: "Jane Doe"}, nil
}

// touch bumps the version of key the way a server-side update would.
func (f *fakeJira) touch(key string) *jira.Ticket {
	t := f.tickets[key]
	t.Updated = t.Updated.Add(time.Second)
	t.Version = jira.VersionOf(t.Updated)
	return t
}

func newTestRepository(f *fakeJira) *Repository {
	logger := logging.Discard()
	c := cache.New(f, cache.Config{}, clock.Fake(epoch), logger)
	m := workflow.New(f, c, state.NewTracker(), logger)
	return New(f, c, m, logger)
}

func TestGetTicketIsCached(t *testing.T) {
	t.Parallel()

	f := newFakeJira(1)
	r := newTestRepository(f)
	ctx := context.Background()

	for range 2 {
		got, err := r.GetTicket(ctx, "PROJ-1")
		require.NoError(t, err)
		require.Equal(t, "ticket 1", got.Summary)
	}
	require.Equal(t, 1, f.count("get"))

	_, err := r.Refresh(ctx, "PROJ-1")
	require.NoError(t, err)
	require.Equal(t, 2, f.count("get"))

	_, err = r.GetTicket(ctx, "bad key")
	require.ErrorIs(t, err, jira.ErrValidation)
}

func TestSearchAndResolveTickets(t *testing.T) {
	t.Parallel()

	f := newFakeJira(5)
	r := newTestRepository(f)
	ctx := context.Background()

	page, err := r.Search(ctx, "project = PROJ", 0, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"PROJ-1", "PROJ-2"}, page.Keys)
	require.True(t, page.HasMore())
	require.Equal(t, "project = PROJ", r.LastJQL())

	tickets, err := r.Tickets(ctx, page)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	require.Zero(t, f.count("get"), "search primes the ticket cache")

	all, err := r.SearchAll(ctx, "project = PROJ", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"PROJ-1", "PROJ-2", "PROJ-3", "PROJ-4", "PROJ-5"}, all.Keys)
	require.Equal(t, 5, all.Total)
	// the first page came from cache
	require.Equal(t, 3, f.count("search"))
}

func TestTicketsSkipsDeletedTickets(t *testing.T) {
	t.Parallel()

	f := newFakeJira(2)
	r := newTestRepository(f)

	tickets, err := r.Tickets(context.Background(), jira.SearchPage{Keys: []string{"PROJ-1", "PROJ-9", "PROJ-2"}})
	require.NoError(t, err)
	keys := make([]string, 0, len(tickets))
	for _, tk := range tickets {
		keys = append(keys, tk.Key)
	}
	require.Equal(t, []string{"PROJ-1", "PROJ-2"}, keys)
}

func TestCreateTicketInvalidatesSearches(t *testing.T) {
	t.Parallel()

	f := newFakeJira(1)
	r := newTestRepository(f)
	ctx := context.Background()

	_, err := r.Search(ctx, "project = PROJ", 0, 10)
	require.NoError(t, err)

	created, err := r.CreateTicket(ctx, jira.TicketInput{ProjectKey: "PROJ", IssueType: "Task", Summary: "new"})
	require.NoError(t, err)
	require.Equal(t, "PROJ-2", created.Key)

	page, err := r.Search(ctx, "project = PROJ", 0, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"PROJ-1", "PROJ-2"}, page.Keys)
	require.Equal(t, 2, f.count("search"))

	_, err = r.CreateTicket(ctx, jira.TicketInput{ProjectKey: "PROJ"})
	require.ErrorIs(t, err, jira.ErrValidation)
}

func TestAddCommentInvalidatesSearches(t *testing.T) {
	t.Parallel()

	f := newFakeJira(2)
	r := newTestRepository(f)
	ctx := context.Background()
	const jql = "project = PROJ ORDER BY updated DESC"

	_, err := r.Search(ctx, jql, 0, 10)
	require.NoError(t, err)
	_, err = r.Search(ctx, jql, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 1, f.count("search"))

	_, err = r.AddComment(ctx, "PROJ-1", jira.TextDocument("bumped"))
	require.NoError(t, err)

	_, err = r.Search(ctx, jql, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 2, f.count("search"))
}

func TestWritesPurgeExpiredEntries(t *testing.T) {
	t.Parallel()

	f := newFakeJira(3)
	logger := logging.Discard()
	fake := clock.Fake(epoch)
	c := cache.New(f, cache.Config{}, fake, logger)
	r := New(f, c, workflow.New(f, c, state.NewTracker(), logger), logger)
	ctx := context.Background()

	for _, key := range []string{"PROJ-2", "PROJ-3"} {
		_, err := r.GetTicket(ctx, key)
		require.NoError(t, err)
	}
	require.Equal(t, 2, r.CacheStats().Tickets.Entries)

	fake.Advance(cache.DefaultTicketTTL)
	_, err := r.AddComment(ctx, "PROJ-1", jira.TextDocument("ping"))
	require.NoError(t, err)
	require.Zero(t, r.CacheStats().Tickets.Entries)
}

func TestUpdateTicketRefetches(t *testing.T) {
	t.Parallel()

	f := newFakeJira(1)
	r := newTestRepository(f)
	ctx := context.Background()

	before, err := r.GetTicket(ctx, "PROJ-1")
	require.NoError(t, err)

	summary := "renamed"
	after, err := r.UpdateTicket(ctx, "PROJ-1", jira.Patch{Summary: &summary})
	require.NoError(t, err)
	require.Equal(t, "renamed", after.Summary)
	require.Greater(t, after.Version, before.Version)

	diff := cmp.Diff(before, after)
	require.Contains(t, diff, "renamed")

	cached, err := r.GetTicket(ctx, "PROJ-1")
	require.NoError(t, err)
	require.Equal(t, after, cached)
	require.Equal(t, 2, f.count("get"))
}

func TestUpdateTicketRefetchErrorIsSurfaced(t *testing.T) {
	t.Parallel()

	f := newFakeJira(1)
	f.onUpdate = func(key string) { delete(f.tickets, key) }
	r := newTestRepository(f)
	ctx := context.Background()

	_, err := r.GetTicket(ctx, "PROJ-1")
	require.NoError(t, err)

	summary := "renamed"
	_, err = r.UpdateTicket(ctx, "PROJ-1", jira.Patch{Summary: &summary})
	require.ErrorIs(t, err, jira.ErrNotFound)

	_, err = r.GetTicket(ctx, "PROJ-1")
	require.ErrorIs(t, err, jira.ErrNotFound, "the pre-update copy must not be served")
}

func TestUpdateTicketFailureKeepsCache(t *testing.T) {
	t.Parallel()

	f := newFakeJira(1)
	f.updateErr = &jira.Error{Kind: jira.ErrValidation, Op: "update ticket", Target: "PROJ-1", FieldErrors: map[string]string{"summary": "too long"}}
	r := newTestRepository(f)
	ctx := context.Background()

	_, err := r.GetTicket(ctx, "PROJ-1")
	require.NoError(t, err)

	summary := "renamed"
	_, err = r.UpdateTicket(ctx, "PROJ-1", jira.Patch{Summary: &summary})
	require.ErrorIs(t, err, jira.ErrValidation)

	_, err = r.GetTicket(ctx, "PROJ-1")
	require.NoError(t, err)
	require.Equal(t, 1, f.count("get"))
}

func TestUpdateTicketIfVersion(t *testing.T) {
	t.Parallel()

	f := newFakeJira(1)
	r := newTestRepository(f)
	ctx := context.Background()

	current, err := r.GetTicket(ctx, "PROJ-1")
	require.NoError(t, err)

	// someone else comments, moving the version on
	_, err = f.AddComment(ctx, "PROJ-1", jira.TextDocument("elsewhere"))
	require.NoError(t, err)

	summary := "renamed"
	_, err = r.UpdateTicket(ctx, "PROJ-1", jira.Patch{Summary: &summary, IfVersion: current.Version})
	require.ErrorIs(t, err, jira.ErrConflict)
	require.Zero(t, f.count("update"))

	fresh, err := r.GetTicket(ctx, "PROJ-1")
	require.NoError(t, err)
	updated, err := r.UpdateTicket(ctx, "PROJ-1", jira.Patch{Summary: &summary, IfVersion: fresh.Version})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Summary)
}

func TestApplyTransitionThroughRepository(t *testing.T) {
	t.Parallel()

	f := newFakeJira(1)
	r := newTestRepository(f)
	ctx := context.Background()

	_, err := r.ApplyTransition(ctx, "PROJ-1", "11", nil)
	require.ErrorIs(t, err, jira.ErrInvalidTransition)
	require.Zero(t, f.count("execute"))

	ticket, err := r.ApplyTransition(ctx, "PROJ-1", "21", nil)
	require.NoError(t, err)
	require.Equal(t, inProgress, ticket.Status)

	tracked, ok := r.Status("PROJ-1")
	require.True(t, ok)
	require.Equal(t, inProgress, tracked.Status)
}

func TestCommentsAndMetadata(t *testing.T) {
	t.Parallel()

	f := newFakeJira(1)
	r := newTestRepository(f)
	ctx := context.Background()

	_, err := r.GetTicket(ctx, "PROJ-1")
	require.NoError(t, err)
	c, err := r.AddComment(ctx, "PROJ-1", jira.TextDocument("looks good"))
	require.NoError(t, err)
	require.Equal(t, "looks good", c.Body.PlainText())

	_, err = r.GetTicket(ctx, "PROJ-1")
	require.NoError(t, err)
	require.Equal(t, 2, f.count("get"))

	comments, err := r.Comments(ctx, "PROJ-1")
	require.NoError(t, err)
	require.Len(t, comments, 1)

	for range 2 {
		projects, err := r.Projects(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 1)
	}
	require.Equal(t, 1, f.count("projects"))
	require.EqualValues(t, 1, r.CacheStats().Projects.Hits)

	types, err := r.IssueTypes(ctx)
	require.NoError(t, err)
	require.Equal(t, "Task", types[0].Name)
}

func TestTestConnection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		state ConnectionState
	}{
		{name: "connected", state: Connected},
		{name: "auth", err: &jira.Error{Kind: jira.ErrAuth, StatusCode: 401}, state: AuthenticationFailed},
		{name: "network", err: &jira.Error{Kind: jira.ErrNetwork, Err: errors.New("dial tcp: refused")}, state: NetworkError},
		{name: "credentials", err: errors.Join(auth.ErrInsufficientCredentials), state: ConfigurationError},
		{name: "other", err: &jira.Error{Kind: jira.ErrServer, StatusCode: 500}, state: UnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFakeJira(0)
			f.myselfErr = tt.err
			status := newTestRepository(f).TestConnection(context.Background())
			require.Equal(t, tt.state, status.State)
			require.Equal(t, tt.state == Connected, status.OK())
			if tt.state == Connected {
				require.Equal(t, "Jane Doe", status.User.DisplayName)
				require.Empty(t, status.Message())
			} else {
				require.NotEmpty(t, status.Message())
			}
			if tt.state == UnknownError {
				require.True(t, strings.Contains(status.Message(), "server error"))
			}
		})
	}
}
