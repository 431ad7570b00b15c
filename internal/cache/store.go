// Package cache keeps TTL-bounded copies of remote ticket data and
// deduplicates concurrent fetches of the same key.
//
// Staleness is evaluated lazily on access and expired entries are swept
// every purgeEvery inserts; nothing runs in the background except a fetch
// that callers are waiting on.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ylchen07/lazyjira/internal/clock"
)

// Entry is a cached value and the time it was fetched.
type Entry[V any] struct {
	Value     V
	FetchedAt time.Time
	TTL       time.Duration
}

// Fresh reports whether the entry may still be served at now.
func (e Entry[V]) Fresh(now time.Time) bool {
	return now.Before(e.FetchedAt.Add(e.TTL))
}

// Stats counts store activity.
type Stats struct {
	Hits    int64
	Misses  int64
	Fetches int64
	Entries int
}

// Mark identifies a point in a store's invalidation history.
type Mark uint64

// Store is a read-through TTL cache. Concurrent misses for one key share a
// single fetch; the fetch runs detached from the callers' contexts so a
// caller giving up does not abort it for the others.
//
// Invalidating a key bumps its generation while a fetch is in flight. A
// fetch that started before an invalidation returns its result to the
// callers already waiting but never stores it.
type Store[K comparable, V any] struct {
	name   string
	ttl    time.Duration
	clock  clock.Clock
	logger *slog.Logger
	group  singleflight.Group

	mu       sync.Mutex
	entries  map[K]Entry[V]
	gens     map[K]uint64
	inflight map[K]int
	seq      uint64
	inserts  uint64

	hits, misses, fetches atomic.Int64
}

// StoreOption customises a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	clock  clock.Clock
	logger *slog.Logger
}

// WithClock sets the time source used for TTL checks.
func WithClock(c clock.Clock) StoreOption {
	return func(o *storeOptions) { o.clock = c }
}

// WithLogger sets the logger used for hit and miss tracing.
func WithLogger(l *slog.Logger) StoreOption {
	return func(o *storeOptions) { o.logger = l }
}

// NewStore creates an empty store whose entries live for ttl.
func NewStore[K comparable, V any](name string, ttl time.Duration, opts ...StoreOption) *Store[K, V] {
	o := storeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Store[K, V]{
		name:     name,
		ttl:      ttl,
		clock:    clock.OrReal(o.clock),
		logger:   o.logger,
		entries:  make(map[K]Entry[V]),
		gens:     make(map[K]uint64),
		inflight: make(map[K]int),
	}
}

// TTL returns the lifetime of new entries.
func (s *Store[K, V]) TTL() time.Duration { return s.ttl }

// Get returns the fresh cached value for key, or calls fetch and caches its
// result. Errors are returned to every waiting caller and never cached. If
// ctx ends first Get returns ctx.Err() while the fetch carries on.
func (s *Store[K, V]) Get(ctx context.Context, key K, fetch func(ctx context.Context) (V, error)) (V, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	s.mu.Lock()
	if e, ok := s.entries[key]; ok && e.Fresh(s.clock.Now()) {
		s.mu.Unlock()
		s.hits.Add(1)
		s.logger.Debug("cache hit", slog.String("store", s.name), slog.Any("key", key))
		return e.Value, nil
	}
	s.mu.Unlock()

	s.misses.Add(1)
	s.logger.Debug("cache miss", slog.String("store", s.name), slog.Any("key", key))

	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flightKey(key), func() (any, error) {
		return s.load(detached, key, fetch)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

func (s *Store[K, V]) load(ctx context.Context, key K, fetch func(ctx context.Context) (V, error)) (V, error) {
	s.mu.Lock()
	// A flight that finished between the caller's miss and this one may
	// already have stored a fresh value.
	if e, ok := s.entries[key]; ok && e.Fresh(s.clock.Now()) {
		s.mu.Unlock()
		return e.Value, nil
	}
	gen := s.gens[key]
	s.inflight[key]++
	s.mu.Unlock()

	s.fetches.Add(1)
	v, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.gens[key]
	if s.inflight[key]--; s.inflight[key] <= 0 {
		delete(s.inflight, key)
		delete(s.gens, key)
	}
	if err != nil {
		return v, err
	}
	if current == gen {
		s.putLocked(key, v)
	} else {
		s.logger.Debug("cache discarded stale fetch", slog.String("store", s.name), slog.Any("key", key))
	}
	return v, nil
}

// Peek returns the cached value for key if it is still fresh. It never
// fetches.
func (s *Store[K, V]) Peek(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.Fresh(s.clock.Now()) {
		var zero V
		return zero, false
	}
	return e.Value, true
}

// Mark returns the current invalidation mark for use with PutIfUnchanged.
func (s *Store[K, V]) Mark() Mark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Mark(s.seq)
}

// PutIfUnchanged stores v unless any invalidation happened since m was
// taken. It reports whether the value was stored.
func (s *Store[K, V]) PutIfUnchanged(key K, v V, m Mark) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if Mark(s.seq) != m {
		return false
	}
	s.putLocked(key, v)
	return true
}

// purgeEvery is the number of inserts between sweeps of expired entries.
const purgeEvery = 64

func (s *Store[K, V]) putLocked(key K, v V) {
	now := s.clock.Now()
	s.entries[key] = Entry[V]{Value: v, FetchedAt: now, TTL: s.ttl}
	if s.inserts++; s.inserts%purgeEvery == 0 {
		s.purgeLocked(now)
	}
}

// Purge drops every expired entry and returns how many were removed.
// Expired entries are never served, so this only reclaims memory.
func (s *Store[K, V]) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(s.clock.Now())
}

func (s *Store[K, V]) purgeLocked(now time.Time) int {
	n := 0
	for key, e := range s.entries {
		if !e.Fresh(now) {
			delete(s.entries, key)
			n++
		}
	}
	if n > 0 {
		s.logger.Debug("cache purged expired entries", slog.String("store", s.name), slog.Int("entries", n))
	}
	return n
}

// Invalidate drops key and prevents any fetch already in flight for it from
// being stored. Invalidating an absent key has no visible effect.
func (s *Store[K, V]) Invalidate(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(key)
}

// InvalidateMatching drops every cached entry pred accepts and every fetch
// in flight, whose values cannot be inspected yet. It returns the number
// of cached entries dropped.
func (s *Store[K, V]) InvalidateMatching(pred func(key K, value V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, e := range s.entries {
		if pred(key, e.Value) {
			s.invalidateLocked(key)
			dropped++
		}
	}
	for key := range s.inflight {
		s.invalidateLocked(key)
	}
	return dropped
}

// InvalidateAll empties the store.
func (s *Store[K, V]) InvalidateAll() {
	s.InvalidateMatching(func(K, V) bool { return true })
}

func (s *Store[K, V]) invalidateLocked(key K) {
	delete(s.entries, key)
	if s.inflight[key] > 0 {
		s.gens[key]++
	}
	s.seq++
	s.group.Forget(flightKey(key))
}

// Stats returns a snapshot of the store counters.
func (s *Store[K, V]) Stats() Stats {
	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	return Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Fetches: s.fetches.Load(),
		Entries: n,
	}
}

// flightKey renders key for the single-flight group. Composite keys
// implement fmt.Stringer with an unambiguous encoding.
func flightKey[K comparable](key K) string {
	return fmt.Sprint(key)
}
