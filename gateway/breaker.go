package gateway

import (
	"sync"
	"time"
)

// CircuitState is the breaker state machine position.
type CircuitState int

const (
	// CircuitClosed admits all calls.
	CircuitClosed CircuitState = iota
	// CircuitHalfOpen admits exactly one probe call after cool-down.
	CircuitHalfOpen
	// CircuitOpen fails fast for the duration of the cool-down window.
	CircuitOpen
)

// String returns the state label.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitHalfOpen:
		return "half-open"
	case CircuitOpen:
		return "open"
	default:
		return "unknown"
	}
}

// breaker implements the gateway's circuit state machine.
//
// Transitions:
//   - CLOSED: failures accumulate in a rolling window; reaching the
//     threshold trips to OPEN.
//   - OPEN: all calls rejected until the cool-down elapses, then HALF_OPEN.
//   - HALF_OPEN: exactly one probe is admitted. Probe success returns to
//     CLOSED and resets the failure counter; probe failure returns to OPEN
//     with the cool-down doubled, capped at maxCoolDown.
//
// The breaker is owned exclusively by the Gateway and mutated under a single
// mutex; no other component may touch it.
type breaker struct {
	mu sync.Mutex

	threshold   int
	window      time.Duration
	coolDown    time.Duration
	maxCoolDown time.Duration

	state         CircuitState
	failures      []time.Time
	lastChange    time.Time
	curCoolDown   time.Duration
	probeInFlight bool

	now func() time.Time
}

func newBreaker(threshold int, window, coolDown, maxCoolDown time.Duration) *breaker {
	return &breaker{
		threshold:   threshold,
		window:      window,
		coolDown:    coolDown,
		maxCoolDown: maxCoolDown,
		state:       CircuitClosed,
		curCoolDown: coolDown,
		lastChange:  time.Now(),
		now:         time.Now,
	}
}

// allow reports whether a call may proceed and whether it is the half-open
// probe. OPEN transitions to HALF_OPEN here once the cool-down has elapsed.
func (b *breaker) allow() (admitted, probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return true, false
	case CircuitOpen:
		if b.now().Sub(b.lastChange) < b.curCoolDown {
			return false, false
		}
		b.transition(CircuitHalfOpen)
		b.probeInFlight = true
		return true, true
	case CircuitHalfOpen:
		if b.probeInFlight {
			return false, false
		}
		b.probeInFlight = true
		return true, true
	default:
		return false, false
	}
}

// onSuccess records a successful call. A successful probe closes the circuit
// and resets the failure counter to zero.
func (b *breaker) onSuccess(probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe || b.state == CircuitHalfOpen {
		b.transition(CircuitClosed)
		b.failures = nil
		b.curCoolDown = b.coolDown
		b.probeInFlight = false
	}
}

// onFailure records a failed call. In CLOSED it counts toward the rolling
// window; in HALF_OPEN it reopens the circuit with an extended cool-down.
func (b *breaker) onFailure(probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe || b.state == CircuitHalfOpen {
		b.probeInFlight = false
		b.curCoolDown *= 2
		if b.curCoolDown > b.maxCoolDown {
			b.curCoolDown = b.maxCoolDown
		}
		b.transition(CircuitOpen)
		return
	}

	if b.state != CircuitClosed {
		return
	}

	now := b.now()
	cutoff := now.Add(-b.window)
	kept := b.failures[:0]
	for _, f := range b.failures {
		if f.After(cutoff) {
			kept = append(kept, f)
		}
	}
	b.failures = append(kept, now)

	if len(b.failures) >= b.threshold {
		b.transition(CircuitOpen)
	}
}

// State returns the current breaker state.
func (b *breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// failureCount returns the rolling failure count (for Status()).
func (b *breaker) failureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := b.now().Add(-b.window)
	n := 0
	for _, f := range b.failures {
		if f.After(cutoff) {
			n++
		}
	}
	return n
}

// transition must be called with the mutex held.
func (b *breaker) transition(s CircuitState) {
	if b.state == s {
		return
	}
	b.state = s
	b.lastChange = b.now()
}
