// Package lock provides mutual exclusion keyed by customer id.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmehdipour/outline-admin/internal/errs"
)

// Locker serializes operations on one key. Acquire blocks for at most the
// implementation's wait time and returns errs.ErrBusy when the key stays held.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Memory is an in-process Locker, used when Redis is not configured.
type Memory struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewMemory(wait time.Duration) *Memory {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Memory{wait: wait, slots: make(map[string]*slot)}
}

var _ Locker = (*Memory)(nil)

func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	timer := time.NewTimer(m.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				m.unref(key, s)
			})
		}, nil
	case <-timer.C:
		m.unref(key, s)
		return nil, fmt.Errorf("lock %s: %w", key, errs.ErrBusy)
	case <-ctx.Done():
		m.unref(key, s)
		return nil, ctx.Err()
	}
}

func (m *Memory) unref(key string, s *slot) {
	m.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
	m.mu.Unlock()
}
