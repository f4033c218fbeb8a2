package router

import (
	"sync"
	"time"

	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/logging"
)

// RegistryOptions configure the conversation registry.
type RegistryOptions struct {
	// IdleTimeout is how long a conversation may go untouched before the
	// sweep loop collects it.
	IdleTimeout time.Duration
	// SweepInterval is how often the collection loop runs.
	SweepInterval time.Duration
	Logger        logging.Logger
}

// Registry owns live conversations. A conversation is created on first
// lookup and garbage-collected after the idle timeout. It is safe for
// concurrent access; callers receive the live pointer for the duration of
// one turn and must not retain it beyond that.
type Registry struct {
	opts RegistryOptions

	mu            sync.RWMutex
	conversations map[string]*core.Conversation

	stop chan struct{}
	done chan struct{}
}

// NewRegistry creates a registry with defaults of a 30 minute idle timeout
// and a 1 minute sweep interval. The sweep loop starts immediately; call
// Close to stop it.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		IdleTimeout:   30 * time.Minute,
		SweepInterval: time.Minute,
		Logger:        logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{
		opts:          opts,
		conversations: map[string]*core.Conversation{},
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Get returns the conversation for the id, creating it on first use.
func (r *Registry) Get(id string) *core.Conversation {
	r.mu.RLock()
	c, ok := r.conversations[id]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conversations[id]; ok {
		return c
	}
	c = core.NewConversation(id)
	r.conversations[id] = c
	return c
}

// Len returns the number of live conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}

// Sweep removes conversations idle longer than the timeout and returns how
// many were collected. The background loop calls this on every tick; tests
// call it directly.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	collected := 0
	for id, c := range r.conversations {
		if c.IdleSince(now) > r.opts.IdleTimeout {
			delete(r.conversations, id)
			collected++
		}
	}
	if collected > 0 {
		r.opts.Logger.Info("collected idle conversations", "count", collected, "live", len(r.conversations))
	}
	return collected
}

func (r *Registry) sweepLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Close stops the sweep loop.
func (r *Registry) Close() {
	close(r.stop)
	<-r.done
}
