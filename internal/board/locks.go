package board

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ItemLocks is a set of per-item logical locks. Commits and status
// transitions on the same item hold the item's lock for their whole run, so
// they never interleave; different items do not contend.
type ItemLocks struct {
	mu sync.Mutex
	m  map[string]*itemLock
}

type itemLock struct {
	sem  *semaphore.Weighted
	refs int
}

// NewItemLocks creates an empty lock set.
func NewItemLocks() *ItemLocks {
	return &ItemLocks{m: make(map[string]*itemLock)}
}

// Acquire blocks until the lock for id is held or ctx is done. The returned
// func releases it and must be called exactly once.
func (l *ItemLocks) Acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	e, ok := l.m[id]
	if !ok {
		e = &itemLock{sem: semaphore.NewWeighted(1)}
		l.m[id] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.unref(id, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.unref(id, e)
		})
	}, nil
}

// Busy reports whether the lock for id is held or awaited.
func (l *ItemLocks) Busy(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.m[id]
	return ok
}

func (l *ItemLocks) unref(id string, e *itemLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.m, id)
	}
}
