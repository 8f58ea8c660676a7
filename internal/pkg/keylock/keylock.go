// Package keylock serializes work per key (for example "analysis:<user_id>").
package keylock

import (
	"context"
	"sync"
)

// Locker grants exclusive ownership of a key until the returned release func is called.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process Locker. Entries are dropped once nobody holds or waits on them.
type Local struct {
	mu   sync.Mutex
	keys map[string]*entry
}

func NewLocal() *Local {
	return &Local{keys: map[string]*entry{}}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(key, e)
		})
	}, nil
}

func (l *Local) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}

// Key builds the lock key for one stage of one user.
func Key(stage, userID string) string {
	return stage + ":" + userID
}
