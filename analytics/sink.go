package analytics

import (
	"sync"
	"time"

	"github.com/replypipe/replypipe/core"
)

// Event is one observed pipeline occurrence: a stage execution, a router
// delivery, a model call or a terminal turn outcome.
type Event struct {
	Stage          string
	ConversationID string
	TaskID         string
	Outcome        string
	Duration       time.Duration
	CostCents      core.Money
	Tokens         int
	Degraded       bool
	Error          string
	Timestamp      time.Time
}

// Sink records events. Implementations must return quickly and never
// propagate failures to the caller; the pipeline treats Record as
// fire-and-forget.
type Sink interface {
	Record(ev Event)
}

// NoopSink discards all events.
type NoopSink struct{}

// Record implements Sink.
func (NoopSink) Record(Event) {}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

// Record implements Sink.
func (m MultiSink) Record(ev Event) {
	for _, s := range m {
		s.Record(ev)
	}
}

// MemorySink buffers events in memory for assertions in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Record implements Sink.
func (s *MemorySink) Record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.events = append(s.events, ev)
}

// Events returns a defensive copy of the recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByStage returns recorded events for a single stage name.
func (s *MemorySink) ByStage(stage string) []Event {
	var out []Event
	for _, ev := range s.Events() {
		if ev.Stage == stage {
			out = append(out, ev)
		}
	}
	return out
}
