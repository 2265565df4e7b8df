// Package memory holds in-process adapters for running without Redis.
package memory

import (
	"context"
	"sync"
	"time"
)

// SolverLock is a ports.SolverLock for a single process.
type SolverLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewSolverLock() *SolverLock {
	return &SolverLock{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

func (l *SolverLock) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

func (l *SolverLock) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
