package cache

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/ylchen07/lazyjira/internal/clock"
	"github.com/ylchen07/lazyjira/internal/jira"
)

const (
	DefaultTicketTTL      = 5 * time.Minute
	DefaultSearchTTL      = 30 * time.Second
	DefaultMetadataTTL    = time.Hour
	DefaultTransitionsTTL = 15 * time.Second
)

// Config sets the lifetime of each kind of entry.
type Config struct {
	TicketTTL      time.Duration
	SearchTTL      time.Duration
	MetadataTTL    time.Duration
	TransitionsTTL time.Duration
}

// DefaultConfig returns the default lifetimes.
func DefaultConfig() Config {
	return Config{
		TicketTTL:      DefaultTicketTTL,
		SearchTTL:      DefaultSearchTTL,
		MetadataTTL:    DefaultMetadataTTL,
		TransitionsTTL: DefaultTransitionsTTL,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TicketTTL <= 0 {
		c.TicketTTL = d.TicketTTL
	}
	if c.SearchTTL <= 0 {
		c.SearchTTL = d.SearchTTL
	}
	if c.MetadataTTL <= 0 {
		c.MetadataTTL = d.MetadataTTL
	}
	if c.TransitionsTTL <= 0 {
		c.TransitionsTTL = d.TransitionsTTL
	}
	return c
}

// Source is the remote side of the cache. *jira.Client satisfies it.
type Source interface {
	GetTicket(ctx context.Context, key string) (*jira.Ticket, error)
	Search(ctx context.Context, jql string, startAt, pageSize int) (jira.SearchResult, error)
	ListTransitions(ctx context.Context, key string) ([]jira.Transition, error)
	GetProjects(ctx context.Context) ([]jira.Project, error)
	GetIssueTypes(ctx context.Context) ([]jira.IssueType, error)
}

// SearchKey identifies one search page.
type SearchKey struct {
	JQL      string
	StartAt  int
	PageSize int
}

func (k SearchKey) String() string {
	return strconv.Quote(k.JQL) + "@" + strconv.Itoa(k.StartAt) + "+" + strconv.Itoa(k.PageSize)
}

const metadataKey = "all"

// TicketCache is the read-through cache in front of a Source. Search pages
// hold keys only; tickets are resolved through the ticket store. Values
// handed out are copies.
type TicketCache struct {
	source Source
	logger *slog.Logger

	tickets     *Store[string, *jira.Ticket]
	searches    *Store[SearchKey, jira.SearchPage]
	projects    *Store[string, []jira.Project]
	issueTypes  *Store[string, []jira.IssueType]
	transitions *Store[string, []jira.Transition]
}

// CacheStats reports activity per store.
type CacheStats struct {
	Tickets     Stats
	Searches    Stats
	Projects    Stats
	IssueTypes  Stats
	Transitions Stats
}

// New creates a cache over source. Zero lifetimes in cfg take defaults.
func New(source Source, cfg Config, clk clock.Clock, logger *slog.Logger) *TicketCache {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	opts := []StoreOption{WithClock(clk), WithLogger(logger)}
	return &TicketCache{
		source:      source,
		logger:      logger,
		tickets:     NewStore[string, *jira.Ticket]("tickets", cfg.TicketTTL, opts...),
		searches:    NewStore[SearchKey, jira.SearchPage]("searches", cfg.SearchTTL, opts...),
		projects:    NewStore[string, []jira.Project]("projects", cfg.MetadataTTL, opts...),
		issueTypes:  NewStore[string, []jira.IssueType]("issue-types", cfg.MetadataTTL, opts...),
		transitions: NewStore[string, []jira.Transition]("transitions", cfg.TransitionsTTL, opts...),
	}
}

// GetTicket returns the ticket, fetching it when absent or stale.
func (c *TicketCache) GetTicket(ctx context.Context, key string) (*jira.Ticket, error) {
	t, err := c.tickets.Get(ctx, key, func(ctx context.Context) (*jira.Ticket, error) {
		return c.source.GetTicket(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// Peek returns the cached ticket without fetching.
func (c *TicketCache) Peek(key string) (*jira.Ticket, bool) {
	t, ok := c.tickets.Peek(key)
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Search returns one page of keys for jql. Tickets carried by the response
// prime the ticket store unless a ticket was invalidated meanwhile.
func (c *TicketCache) Search(ctx context.Context, jql string, startAt, pageSize int) (jira.SearchPage, error) {
	if pageSize == 0 {
		pageSize = jira.DefaultPageSize
	}
	key := SearchKey{JQL: jql, StartAt: startAt, PageSize: pageSize}
	page, err := c.searches.Get(ctx, key, func(ctx context.Context) (jira.SearchPage, error) {
		mark := c.tickets.Mark()
		res, err := c.source.Search(ctx, jql, startAt, pageSize)
		if err != nil {
			return jira.SearchPage{}, err
		}
		for _, t := range res.Tickets {
			if !c.tickets.PutIfUnchanged(t.Key, t, mark) {
				break
			}
		}
		return res.Page, nil
	})
	if err != nil {
		return jira.SearchPage{}, err
	}
	page.Keys = slices.Clone(page.Keys)
	return page, nil
}

// Projects returns the reference list of projects.
func (c *TicketCache) Projects(ctx context.Context) ([]jira.Project, error) {
	projects, err := c.projects.Get(ctx, metadataKey, c.source.GetProjects)
	return slices.Clone(projects), err
}

// IssueTypes returns the reference list of issue types.
func (c *TicketCache) IssueTypes(ctx context.Context) ([]jira.IssueType, error) {
	types, err := c.issueTypes.Get(ctx, metadataKey, c.source.GetIssueTypes)
	return slices.Clone(types), err
}

// Transitions returns the transitions currently available for key.
func (c *TicketCache) Transitions(ctx context.Context, key string) ([]jira.Transition, error) {
	transitions, err := c.transitions.Get(ctx, key, func(ctx context.Context) ([]jira.Transition, error) {
		return c.source.ListTransitions(ctx, key)
	})
	return slices.Clone(transitions), err
}

// InvalidateTicket drops the cached ticket.
func (c *TicketCache) InvalidateTicket(key string) {
	c.tickets.Invalidate(key)
}

// InvalidateTransitions drops the cached transitions of a ticket.
func (c *TicketCache) InvalidateTransitions(key string) {
	c.transitions.Invalidate(key)
}

// InvalidateSearchesMatching drops every search page pred accepts, plus any
// search in flight. It returns the number of cached pages dropped.
func (c *TicketCache) InvalidateSearchesMatching(pred func(SearchKey, jira.SearchPage) bool) int {
	return c.searches.InvalidateMatching(pred)
}

// InvalidateSearchesAffecting drops every page that could include key.
func (c *TicketCache) InvalidateSearchesAffecting(key string) int {
	n := c.InvalidateSearchesMatching(func(k SearchKey, page jira.SearchPage) bool {
		return SearchAffectedBy(key, k.JQL, page.Keys)
	})
	c.logger.Debug("cache invalidated searches", slog.String("ticket", key), slog.Int("pages", n))
	return n
}

// InvalidateMetadata drops the project and issue type lists.
func (c *TicketCache) InvalidateMetadata() {
	c.projects.InvalidateAll()
	c.issueTypes.InvalidateAll()
}

// Purge drops expired entries from every store and returns how many were
// removed.
func (c *TicketCache) Purge() int {
	return c.tickets.Purge() + c.searches.Purge() + c.projects.Purge() +
		c.issueTypes.Purge() + c.transitions.Purge()
}

// Stats returns counters for every store.
func (c *TicketCache) Stats() CacheStats {
	return CacheStats{
		Tickets:     c.tickets.Stats(),
		Searches:    c.searches.Stats(),
		Projects:    c.projects.Stats(),
		IssueTypes:  c.issueTypes.Stats(),
		Transitions: c.transitions.Stats(),
	}
}
