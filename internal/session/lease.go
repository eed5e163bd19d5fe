package session

import (
	"context"
	"sync"
)

// Lease guards orchestration so at most one holder runs a turn for a room at
// a time. The Redis implementation in internal/lease provides cross-process
// exclusivity; LocalLease preserves the original process-local advisory
// behavior for single-process deployments.
type Lease interface {
	// Acquire attempts to take the lease. Returns false without error when
	// the lease is held elsewhere.
	Acquire(ctx context.Context, roomID string) (bool, error)
	// Release gives the lease back.
	Release(ctx context.Context, roomID string) error
}

// LocalLease is an in-process advisory lease.
type LocalLease struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLease creates an empty local lease table.
func NewLocalLease() *LocalLease {
	return &LocalLease{held: make(map[string]bool)}
}

// Acquire takes the lease unless this process already holds it.
func (l *LocalLease) Acquire(ctx context.Context, roomID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[roomID] {
		return false, nil
	}
	l.held[roomID] = true
	return true, nil
}

// Release gives the lease back.
func (l *LocalLease) Release(ctx context.Context, roomID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, roomID)
	return nil
}
