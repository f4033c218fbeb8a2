package core

import (
	"sync"
	"time"
)

// RateGate enforces a maximum number of events per interval using a rolling
// window. If max == 0, all events are allowed.
type RateGate struct {
	max      int
	interval time.Duration
	stamps   []time.Time
	mu       sync.Mutex
	now      func() time.Time
}

// NewRateGate creates a gate allowing max events per interval.
func NewRateGate(max int, interval time.Duration) *RateGate {
	return &RateGate{max: max, interval: interval, now: time.Now}
}

// Allow records an event if the window has capacity and reports whether the
// event was admitted. Rejected events are not recorded.
func (g *RateGate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.max == 0 {
		return true
	}

	now := g.now()
	cutoff := now.Add(-g.interval)
	kept := g.stamps[:0]
	for _, s := range g.stamps {
		if s.After(cutoff) {
			kept = append(kept, s)
		}
	}
	g.stamps = kept

	if len(g.stamps) >= g.max {
		return false
	}
	g.stamps = append(g.stamps, now)
	return true
}

// InFlight returns the number of events currently counted in the window.
func (g *RateGate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.interval)
	n := 0
	for _, s := range g.stamps {
		if s.After(cutoff) {
			n++
		}
	}
	return n
}
