package gateway

import (
	"context"
	"sync"
)

// Lease is an acquired slot from the connection pool, owned by exactly one
// in-flight request. Release is idempotent and must be called (typically via
// defer) on completion or cancellation; a retry acquires a fresh lease.
type Lease struct {
	pool *pool
	once sync.Once
}

// Release returns the slot to the pool. Safe to call multiple times.
func (l *Lease) Release() {
	l.once.Do(func() { <-l.pool.slots })
}

// pool bounds the number of concurrently outstanding provider calls.
type pool struct {
	slots chan struct{}
	size  int
}

func newPool(size int) *pool {
	if size <= 0 {
		size = 1
	}
	return &pool{slots: make(chan struct{}, size), size: size}
}

// acquire blocks until a slot is free or the context is cancelled.
func (p *pool) acquire(ctx context.Context) (*Lease, error) {
	select {
	case p.slots <- struct{}{}:
		return &Lease{pool: p}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// active returns the number of leases currently held.
func (p *pool) active() int { return len(p.slots) }

// available returns the number of free slots.
func (p *pool) available() int { return p.size - len(p.slots) }
