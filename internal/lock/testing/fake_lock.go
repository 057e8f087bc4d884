// Package testing provides test doubles for the lock package.
package testing

import (
	"context"
	"sync"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/lock"
	"github.com/gea-smc/gea/internal/remote"
)

// FakeLock represents a fake acquired lock.
type FakeLock struct {
	Path     string
	Released bool
	manager  *FakeLockManager
}

// Release marks the fake lock as released.
func (l *FakeLock) Release(context.Context) error {
	l.manager.mu.Lock()
	defer l.manager.mu.Unlock()
	l.Released = true
	l.manager.ReleaseCalls = append(l.manager.ReleaseCalls, l.Path)
	delete(l.manager.active, l.Path)
	return l.manager.ReleaseError
}

// FakeLockManager simulates locking without touching the remote host.
type FakeLockManager struct {
	mu sync.Mutex

	// HeldBy makes every Acquire fail as if this holder had the lock.
	HeldBy string
	// ReleaseError is returned by every Release.
	ReleaseError error

	AcquireCalls []string
	ReleaseCalls []string

	active map[string]*FakeLock
}

var _ lock.Locker = (*FakeLockManager)(nil)

// NewFakeLockManager creates a new fake lock manager that succeeds by default.
func NewFakeLockManager() *FakeLockManager {
	return &FakeLockManager{active: make(map[string]*FakeLock)}
}

// Acquire records the call and grants the lock unless HeldBy is set or
// the path is already held through this manager.
func (m *FakeLockManager) Acquire(_ context.Context, _ remote.Executor, path string) (lock.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AcquireCalls = append(m.AcquireCalls, path)

	if m.HeldBy != "" {
		return nil, errors.New(errors.ErrLock, "Timed out waiting for lock on "+path, "Lock held by: "+m.HeldBy)
	}
	if _, held := m.active[path]; held {
		return nil, errors.New(errors.ErrLock, "Lock on "+path+" already held", "")
	}

	l := &FakeLock{Path: path, manager: m}
	m.active[path] = l
	return l, nil
}

// Held reports whether path is currently locked.
func (m *FakeLockManager) Held(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[path]
	return ok
}
