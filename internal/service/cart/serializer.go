package cart

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Serializer orders mutations per cart id across all clients in the process.
// Locks are created on demand and dropped when no holder or waiter remains.
type Serializer struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewSerializer() *Serializer {
	return &Serializer{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the key is free or ctx is done. An empty key is not locked.
func (s *Serializer) Lock(ctx context.Context, key string) (func(), error) {
	if s == nil || key == "" {
		return func() {}, nil
	}
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyedLock{sem: semaphore.NewWeighted(1)}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		s.release(key, l, false)
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { s.release(key, l, true) }) }, nil
}

func (s *Serializer) release(key string, l *keyedLock, held bool) {
	if held {
		l.sem.Release(1)
	}
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

// size reports the number of live keys.
func (s *Serializer) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
