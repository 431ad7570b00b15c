// Package workflow applies ticket status transitions. The server decides
// which transitions are legal; the machine only offers what the server
// last reported and tracks the optimistic outcome until it is confirmed.
package workflow

import (
	"context"
	"log/slog"
	"slices"

	"github.com/ylchen07/lazyjira/internal/jira"
	"github.com/ylchen07/lazyjira/internal/state"
)

// Cache is the slice of the ticket cache the machine reads and invalidates.
type Cache interface {
	GetTicket(ctx context.Context, key string) (*jira.Ticket, error)
	Peek(key string) (*jira.Ticket, bool)
	Transitions(ctx context.Context, key string) ([]jira.Transition, error)
	InvalidateTicket(key string)
	InvalidateTransitions(key string)
	InvalidateSearchesAffecting(key string) int
}

// Executor performs a transition remotely. *jira.Client satisfies it.
type Executor interface {
	ExecuteTransition(ctx context.Context, key, transitionID string, comment jira.Document) error
}

// Machine validates and applies transitions.
type Machine struct {
	cache   Cache
	api     Executor
	tracker *state.Tracker
	locks   *KeyLocks
	logger  *slog.Logger
}

// New constructs a Machine. A nil tracker gets a fresh one.
func New(api Executor, cache Cache, tracker *state.Tracker, logger *slog.Logger) *Machine {
	if tracker == nil {
		tracker = state.NewTracker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cache:   cache,
		api:     api,
		tracker: tracker,
		locks:   &KeyLocks{},
		logger:  logger,
	}
}

// Lock serialises a write to key with every transition of the same ticket.
func (m *Machine) Lock(ctx context.Context, key string) (func(), error) {
	return m.locks.Acquire(ctx, key)
}

// Tracker exposes the status tracker shared with the UI.
func (m *Machine) Tracker() *state.Tracker { return m.tracker }

// AvailableTransitions lists the transitions the server currently offers.
func (m *Machine) AvailableTransitions(ctx context.Context, key string) ([]jira.Transition, error) {
	if err := jira.ValidateKey(key); err != nil {
		return nil, err
	}
	return m.cache.Transitions(ctx, key)
}

// ApplyTransition moves key through transitionID and returns the ticket as
// the server reports it afterwards. An id the server does not offer fails
// with jira.ErrInvalidTransition before any write. A failed write restores
// the previous tracked status and leaves the cache alone.
func (m *Machine) ApplyTransition(ctx context.Context, key, transitionID string, comment jira.Document) (*jira.Ticket, error) {
	if err := jira.ValidateKey(key); err != nil {
		return nil, err
	}
	unlock, err := m.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	available, err := m.cache.Transitions(ctx, key)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(available, func(t jira.Transition) bool { return t.ID == transitionID })
	if i < 0 {
		return nil, jira.NewInvalidTransitionError(key, transitionID, available)
	}
	target := available[i]

	m.tracker.Begin(key, m.currentStatus(key), target.To)
	if err := m.api.ExecuteTransition(ctx, key, transitionID, comment); err != nil {
		m.tracker.Rollback(key)
		m.logger.Warn("transition failed",
			slog.String("key", key),
			slog.String("transition", transitionID),
			slog.Any("error", err),
		)
		return nil, err
	}

	m.cache.InvalidateTicket(key)
	m.cache.InvalidateTransitions(key)
	m.cache.InvalidateSearchesAffecting(key)

	ticket, err := m.cache.GetTicket(ctx, key)
	if err != nil {
		// The write went through; keep showing its target.
		m.tracker.Confirm(key, target.To)
		return nil, err
	}
	m.tracker.Confirm(key, ticket.Status)
	m.logger.Info("transition applied",
		slog.String("key", key),
		slog.String("transition", target.Name),
		slog.String("status", ticket.Status.Name),
	)
	return ticket, nil
}

// Status returns the tracked status of key.
func (m *Machine) Status(key string) (state.Tracked, bool) {
	return m.tracker.Status(key)
}

// Observe registers fn for tracked status changes.
func (m *Machine) Observe(fn func(state.Change)) {
	m.tracker.Observe(fn)
}

func (m *Machine) currentStatus(key string) jira.Status {
	if t, ok := m.cache.Peek(key); ok {
		return t.Status
	}
	if s, ok := m.tracker.Status(key); ok {
		return s.Status
	}
	return jira.Status{}
}
