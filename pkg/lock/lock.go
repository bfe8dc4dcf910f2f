package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned when the key is already held by someone else
var ErrNotAcquired = errors.New("lock is held by another owner")

// Lock is a held lock. Release is safe to call after the TTL has lapsed.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out short-lived exclusive locks keyed by string
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// MemoryLocker is an in-process Locker for single-instance deployments and tests
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]memoryEntry),
		clock: time.Now,
	}
}

// Acquire takes the lock for key unless an unexpired holder exists
func (m *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if entry, ok := m.held[key]; ok && now.Before(entry.expiresAt) {
		return nil, ErrNotAcquired
	}

	token := uuid.NewString()
	m.held[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}
	return &memoryLock{locker: m, key: key, token: token}, nil
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (l *memoryLock) Release(_ context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if entry, ok := l.locker.held[l.key]; ok && entry.token == l.token {
		delete(l.locker.held, l.key)
	}
	return nil
}
