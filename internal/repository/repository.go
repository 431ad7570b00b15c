// Package repository is the entry point UI code uses to read and change
// tickets. Reads go through the cache; writes go to the server first and
// then invalidate whatever they may have made stale.
package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ylchen07/lazyjira/internal/cache"
	"github.com/ylchen07/lazyjira/internal/jira"
	"github.com/ylchen07/lazyjira/internal/state"
	"github.com/ylchen07/lazyjira/internal/workflow"
)

// API is the set of remote writes the repository performs directly.
// *jira.Client satisfies it.
type API interface {
	CreateTicket(ctx context.Context, in jira.TicketInput) (jira.Ref, error)
	UpdateTicket(ctx context.Context, key string, patch jira.Patch) error
	AddComment(ctx context.Context, key string, body jira.Document) (jira.Comment, error)
	ListComments(ctx context.Context, key string) ([]jira.Comment, error)
	Myself(ctx context.Context) (*jira.User, error)
}

// Cache is the read side. *cache.TicketCache satisfies it.
type Cache interface {
	GetTicket(ctx context.Context, key string) (*jira.Ticket, error)
	Search(ctx context.Context, jql string, startAt, pageSize int) (jira.SearchPage, error)
	Projects(ctx context.Context) ([]jira.Project, error)
	IssueTypes(ctx context.Context) ([]jira.IssueType, error)
	InvalidateTicket(key string)
	InvalidateTransitions(key string)
	InvalidateSearchesAffecting(key string) int
	Purge() int
	Stats() cache.CacheStats
}

// Repository combines the API client, the cache and the workflow machine.
type Repository struct {
	api      API
	cache    Cache
	machine  *workflow.Machine
	logger   *slog.Logger
	pageSize int
}

// Option customises a Repository.
type Option func(*Repository)

// WithPageSize sets the page size used when callers pass zero.
func WithPageSize(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// New constructs a Repository.
func New(api API, c Cache, machine *workflow.Machine, logger *slog.Logger, opts ...Option) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{
		api:      api,
		cache:    c,
		machine:  machine,
		logger:   logger,
		pageSize: jira.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetTicket returns a ticket, from cache when fresh.
func (r *Repository) GetTicket(ctx context.Context, key string) (*jira.Ticket, error) {
	if err := jira.ValidateKey(key); err != nil {
		return nil, err
	}
	return r.cache.GetTicket(ctx, key)
}

// Refresh discards what is cached for key and fetches it again.
func (r *Repository) Refresh(ctx context.Context, key string) (*jira.Ticket, error) {
	if err := jira.ValidateKey(key); err != nil {
		return nil, err
	}
	r.cache.InvalidateTicket(key)
	r.cache.InvalidateTransitions(key)
	return r.fetchAuthoritative(ctx, key)
}

// Search returns one page of ticket keys matching jql.
func (r *Repository) Search(ctx context.Context, jql string, startAt, pageSize int) (jira.SearchPage, error) {
	if pageSize == 0 {
		pageSize = r.pageSize
	}
	page, err := r.cache.Search(ctx, jql, startAt, pageSize)
	if err != nil {
		return jira.SearchPage{}, err
	}
	r.machine.Tracker().SetLastJQL(jql)
	return page, nil
}

// SearchAll walks every page of jql through the cache and returns the
// concatenated keys as a single page.
func (r *Repository) SearchAll(ctx context.Context, jql string, pageSize int) (jira.SearchPage, error) {
	page, err := r.Search(ctx, jql, 0, pageSize)
	if err != nil {
		return jira.SearchPage{}, err
	}
	all := page
	for page.HasMore() && len(page.Keys) > 0 {
		page, err = r.Search(ctx, jql, page.NextStartAt(), page.PageSize)
		if err != nil {
			return jira.SearchPage{}, err
		}
		all.Keys = append(all.Keys, page.Keys...)
		all.Total = page.Total
	}
	all.PageSize = len(all.Keys)
	return all, nil
}

// Tickets resolves the keys of page through the ticket cache, in page
// order. Tickets deleted since the search are skipped.
func (r *Repository) Tickets(ctx context.Context, page jira.SearchPage) ([]*jira.Ticket, error) {
	tickets := make([]*jira.Ticket, 0, len(page.Keys))
	for _, key := range page.Keys {
		t, err := r.cache.GetTicket(ctx, key)
		if errors.Is(err, jira.ErrNotFound) {
			r.logger.Debug("search result no longer exists", slog.String("key", key))
			continue
		}
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// CreateTicket creates a ticket and returns it as the server stored it.
func (r *Repository) CreateTicket(ctx context.Context, in jira.TicketInput) (*jira.Ticket, error) {
	ref, err := r.api.CreateTicket(ctx, in)
	if err != nil {
		return nil, err
	}
	r.cache.InvalidateSearchesAffecting(ref.Key)
	r.logger.Info("ticket created", slog.String("key", ref.Key))
	return r.fetchAuthoritative(ctx, ref.Key)
}

// UpdateTicket applies patch and returns the re-fetched ticket. When
// patch.IfVersion is set the update is refused with jira.ErrConflict
// unless the server still holds that version. An error re-fetching after a
// successful update is returned as is.
func (r *Repository) UpdateTicket(ctx context.Context, key string, patch jira.Patch) (*jira.Ticket, error) {
	if err := jira.ValidateKey(key); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	unlock, err := r.machine.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if patch.IfVersion != 0 {
		r.cache.InvalidateTicket(key)
		current, err := r.cache.GetTicket(ctx, key)
		if err != nil {
			return nil, err
		}
		if current.Version != patch.IfVersion {
			return nil, jira.NewConflictError(key, patch.IfVersion, current.Version)
		}
	}

	if err := r.api.UpdateTicket(ctx, key, patch); err != nil {
		return nil, err
	}
	r.invalidateAfterWrite(key)
	return r.fetchAuthoritative(ctx, key)
}

// AddComment posts a comment. The ticket's update time moves, so it is
// invalidated like any other write, including searches ordered by it.
func (r *Repository) AddComment(ctx context.Context, key string, body jira.Document) (jira.Comment, error) {
	c, err := r.api.AddComment(ctx, key, body)
	if err != nil {
		return jira.Comment{}, err
	}
	r.invalidateAfterWrite(key)
	return c, nil
}

// Comments lists the comments of a ticket. They are not cached.
func (r *Repository) Comments(ctx context.Context, key string) ([]jira.Comment, error) {
	return r.api.ListComments(ctx, key)
}

// AvailableTransitions lists the transitions the server offers for key.
func (r *Repository) AvailableTransitions(ctx context.Context, key string) ([]jira.Transition, error) {
	return r.machine.AvailableTransitions(ctx, key)
}

// ApplyTransition moves key through transitionID.
func (r *Repository) ApplyTransition(ctx context.Context, key, transitionID string, comment jira.Document) (*jira.Ticket, error) {
	return r.machine.ApplyTransition(ctx, key, transitionID, comment)
}

// Status returns the tracked status of key.
func (r *Repository) Status(key string) (state.Tracked, bool) {
	return r.machine.Status(key)
}

// LastJQL returns the most recent query that succeeded.
func (r *Repository) LastJQL() string {
	return r.machine.Tracker().LastJQL()
}

// Projects returns the projects visible to the account.
func (r *Repository) Projects(ctx context.Context) ([]jira.Project, error) {
	return r.cache.Projects(ctx)
}

// IssueTypes returns the issue types visible to the account.
func (r *Repository) IssueTypes(ctx context.Context) ([]jira.IssueType, error) {
	return r.cache.IssueTypes(ctx)
}

// CacheStats reports cache activity.
func (r *Repository) CacheStats() cache.CacheStats {
	return r.cache.Stats()
}

func (r *Repository) invalidateAfterWrite(key string) {
	r.cache.InvalidateTicket(key)
	r.cache.InvalidateTransitions(key)
	n := r.cache.InvalidateSearchesAffecting(key)
	purged := r.cache.Purge()
	r.logger.Debug("write invalidated cache",
		slog.String("key", key),
		slog.Int("searches", n),
		slog.Int("expired", purged),
	)
}

// fetchAuthoritative reads key through the cache after an invalidation
// and records the status it reports.
func (r *Repository) fetchAuthoritative(ctx context.Context, key string) (*jira.Ticket, error) {
	t, err := r.cache.GetTicket(ctx, key)
	if err != nil {
		return nil, err
	}
	r.machine.Tracker().Confirm(key, t.Status)
	return t, nil
}
