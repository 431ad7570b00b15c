package workflow

import (
	"context"
	"sync"
)

// KeyLocks serialises writes per ticket key. Distinct keys never block
// each other and unused locks are released.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// Acquire blocks until key is free or ctx ends. The returned func releases
// the lock and must be called exactly once.
func (l *KeyLocks) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return func() {
			<-kl.ch
			l.unref(key, kl)
		}, nil
	case <-ctx.Done():
		l.unref(key, kl)
		return nil, ctx.Err()
	}
}

func (l *KeyLocks) unref(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kl.refs--; kl.refs == 0 {
		delete(l.locks, key)
	}
}
