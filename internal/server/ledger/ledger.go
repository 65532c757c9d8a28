// Package ledger tracks failed share verifications per (client IP, share
// code) and the lockouts they trigger.
//
// Two independent values live per pair. The failure counter opens a fixed
// window at its first increment; later increments never move the window.
// The lockout marker has its own TTL and is set once when the counter
// reaches the threshold. Reads never mutate either value.
package ledger

import (
	"context"
	"time"
)

type Ledger interface {
	// IsLocked reports whether a live lockout marker exists.
	IsLocked(ctx context.Context, ip, code string) (bool, error)

	// Failures returns the failure count of the current window, 0 if none.
	Failures(ctx context.Context, ip, code string) (int, error)

	// RecordFailure atomically adds one failure and returns the new count.
	RecordFailure(ctx context.Context, ip, code string) (int, error)

	// Lock sets the lockout marker. Locking an already locked pair is a
	// no-op and does not extend the lockout.
	Lock(ctx context.Context, ip, code string) error

	// Reset drops the failure counter. A lockout marker is left alone.
	Reset(ctx context.Context, ip, code string) error
}

// Settings are the window lengths shared by all backends.
type Settings struct {
	Window  time.Duration
	Lockout time.Duration
}

func failKey(ip, code string) string { return "fail#" + code + "#" + ip }
func lockKey(ip, code string) string { return "lock#" + code + "#" + ip }
