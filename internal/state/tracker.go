// Package state tracks what the user currently sees for each ticket's
// status, including optimistic changes that are still awaiting the server.
package state

import (
	"sync"

	"github.com/ylchen07/lazyjira/internal/jira"
)

// Tracked is the status shown for a ticket. While Pending, Status is the
// optimistic target and Previous the confirmed status to restore on
// failure.
type Tracked struct {
	Status   jira.Status
	Previous jira.Status
	Pending  bool
	known    bool
}

// Change is delivered to observers whenever a tracked status moves.
type Change struct {
	Key        string
	From       jira.Status
	To         jira.Status
	Pending    bool
	RolledBack bool
}

// Tracker holds tracked statuses for the session. It is safe for
// concurrent use; observers run synchronously outside the lock.
type Tracker struct {
	mu        sync.RWMutex
	statuses  map[string]Tracked
	observers []func(Change)
	lastJQL   string
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{statuses: make(map[string]Tracked)}
}

// Observe registers fn for every subsequent change.
func (t *Tracker) Observe(fn func(Change)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Status returns the tracked status of key.
func (t *Tracker) Status(key string) (Tracked, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.statuses[key]
	return s, ok
}

// Confirm records an authoritative status for key, ending any pending
// change.
func (t *Tracker) Confirm(key string, status jira.Status) {
	t.mu.Lock()
	prev, ok := t.statuses[key]
	t.statuses[key] = Tracked{Status: status, known: true}
	observers := t.observers
	t.mu.Unlock()

	if ok && !prev.Pending && prev.Status == status {
		return
	}
	notify(observers, Change{Key: key, From: prev.Status, To: status})
}

// Begin shows to as the pending status of key until Confirm or Rollback.
func (t *Tracker) Begin(key string, from, to jira.Status) {
	t.mu.Lock()
	prev, ok := t.statuses[key]
	confirmed := from
	if ok && prev.known && !prev.Pending {
		confirmed = prev.Status
	}
	t.statuses[key] = Tracked{Status: to, Previous: confirmed, Pending: true, known: true}
	observers := t.observers
	t.mu.Unlock()

	notify(observers, Change{Key: key, From: confirmed, To: to, Pending: true})
}

// Rollback restores the status key had before Begin. It is a no-op when
// nothing is pending.
func (t *Tracker) Rollback(key string) {
	t.mu.Lock()
	cur, ok := t.statuses[key]
	if !ok || !cur.Pending {
		t.mu.Unlock()
		return
	}
	t.statuses[key] = Tracked{Status: cur.Previous, known: true}
	observers := t.observers
	t.mu.Unlock()

	notify(observers, Change{Key: key, From: cur.Status, To: cur.Previous, RolledBack: true})
}

// Forget stops tracking key.
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.statuses, key)
}

// SetLastJQL stores the last executed JQL query string.
func (t *Tracker) SetLastJQL(jql string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastJQL = jql
}

// LastJQL retrieves the previous JQL query.
func (t *Tracker) LastJQL() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastJQL
}

func notify(observers []func(Change), c Change) {
	for _, fn := range observers {
		fn(c)
	}
}
