package ledger

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	failures  int
	expiresAt time.Time
}

// MemoryLedger is a process-local Ledger. It does not survive restarts and
// is not shared between instances, so it only suits tests and single-node
// development.
type MemoryLedger struct {
	mu       sync.Mutex
	counters map[string]counter
	locks    map[string]time.Time
	settings Settings
	now      func() time.Time
}

func NewMemoryLedger(s Settings) *MemoryLedger {
	return &MemoryLedger{
		counters: make(map[string]counter),
		locks:    make(map[string]time.Time),
		settings: s,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (l *MemoryLedger) WithClock(now func() time.Time) *MemoryLedger {
	l.now = now
	return l
}

func (l *MemoryLedger) IsLocked(ctx context.Context, ip, code string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until, ok := l.locks[lockKey(ip, code)]
	return ok && until.After(l.now()), nil
}

func (l *MemoryLedger) Failures(ctx context.Context, ip, code string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[failKey(ip, code)]
	if !ok || !c.expiresAt.After(l.now()) {
		return 0, nil
	}
	return c.failures, nil
}

func (l *MemoryLedger) RecordFailure(ctx context.Context, ip, code string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := failKey(ip, code)

	c, ok := l.counters[key]
	if !ok || !c.expiresAt.After(now) {
		c = counter{expiresAt: now.Add(l.settings.Window)}
	}
	c.failures++
	l.counters[key] = c

	return c.failures, nil
}

func (l *MemoryLedger) Lock(ctx context.Context, ip, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := lockKey(ip, code)

	if until, ok := l.locks[key]; ok && until.After(now) {
		return nil
	}
	l.locks[key] = now.Add(l.settings.Lockout)

	return nil
}

func (l *MemoryLedger) Reset(ctx context.Context, ip, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.counters, failKey(ip, code))
	return nil
}
