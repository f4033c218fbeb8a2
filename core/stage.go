package core

import (
	"context"
	"maps"
	"time"

	"github.com/replypipe/replypipe/logging"
)

// Stage is the unit of pipeline work. Each component (critic, classifier,
// knowledge resolver, escalation engine, composer) implements Stage; shared
// cross-cutting concerns (logging, metrics, dedup) are layered on via
// middleware composition rather than embedding.
//
// Implementations must:
//   - Respect context cancellation on the TurnContext
//   - Read and write only the TurnContext fields they own
//   - Never retain a reference to the TurnContext beyond Handle returning
type Stage interface {
	Name() string
	Handle(tc *TurnContext) error
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(tc *TurnContext) error
}

// Name returns the stage name.
func (s StageFunc) Name() string { return s.StageName }

// Handle invokes the wrapped function.
func (s StageFunc) Handle(tc *TurnContext) error { return s.Fn(tc) }

// Middleware wraps a Stage with additional behavior.
type Middleware func(next Stage) Stage

// TurnOutcome is the terminal classification of one pipeline traversal.
type TurnOutcome string

const (
	// OutcomeResolved means the composed answer was delivered directly.
	OutcomeResolved TurnOutcome = "resolved"
	// OutcomeEscalated means the turn was handed to the human queue.
	OutcomeEscalated TurnOutcome = "escalated"
	// OutcomeTimeout means the end-to-end budget was exceeded.
	OutcomeTimeout TurnOutcome = "timeout"
	// OutcomeError means a non-recoverable stage failure degraded the turn.
	OutcomeError TurnOutcome = "error"
)

// KnowledgeRecord carries the authoritative facts a stage retrieved for the
// current intent: order details, policy text, catalog attributes.
type KnowledgeRecord struct {
	Kind        string            `json:"kind"` // "order", "policy", "catalog"
	OrderID     string            `json:"order_id,omitempty"`
	TotalCents  Money             `json:"total_cents,omitempty"`
	Status      string            `json:"status,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	RetrievedAt time.Time         `json:"retrieved_at"`
}

// Field returns a named fact and its existence flag.
func (k *KnowledgeRecord) Field(name string) (string, bool) {
	if k == nil {
		return "", false
	}
	v, ok := k.Fields[name]
	return v, ok
}

// TurnContext encapsulates the mutable, per-turn execution scope passed to a
// Stage's Handle method. It aggregates:
//   - The ambient cancellation Context (turn timeout lives here)
//   - Identifiers (ConversationID, TaskID) and the inbound Message
//   - The owning Conversation (reference valid for this turn only)
//   - Typed stage outputs accumulated as the turn progresses
//   - A staged ContextDelta committed to the Conversation only at turn end,
//     so a cancelled turn never leaves partially mutated context
//
// A TurnContext is owned by exactly one goroutine; stages run sequentially
// and need no locking to touch its fields.
type TurnContext struct {
	Context        context.Context
	ConversationID string
	TaskID         string
	Message        Message
	Conversation   *Conversation

	// Stage outputs, populated in pipeline order.
	PreVerdict  *ValidationVerdict
	Intent      *Intent
	Knowledge   *KnowledgeRecord
	Decision    *EscalationDecision
	Draft       string
	PostVerdict *ValidationVerdict

	// Degraded is set when any stage served from a fallback path.
	Degraded bool

	// CostCents accumulates the estimated upstream spend for this turn.
	CostCents Money

	ContextDelta map[string]any
	Started      time.Time

	*loggerAdapter
}

// NewTurnContext constructs a TurnContext with an empty staged delta.
func NewTurnContext(ctx context.Context, msg Message, conv *Conversation, logger logging.Logger) *TurnContext {
	return &TurnContext{
		Context:        ctx,
		ConversationID: msg.ConversationID,
		TaskID:         msg.TaskID,
		Message:        msg,
		Conversation:   conv,
		ContextDelta:   map[string]any{},
		Started:        time.Now(),
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the turn's context is cancelled.
func (tc *TurnContext) Done() <-chan struct{} { return tc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (tc *TurnContext) Err() error { return tc.Context.Err() }

// GetContextValue returns a staged (delta) value if present, else the
// persisted conversation value.
func (tc *TurnContext) GetContextValue(k string) (any, bool) {
	if v, ok := tc.ContextDelta[k]; ok {
		return v, true
	}
	if tc.Conversation != nil {
		return tc.Conversation.GetContext(k)
	}
	return nil, false
}

// SetContextValue stages a context mutation in the in-memory delta buffer.
func (tc *TurnContext) SetContextValue(k string, v any) { tc.ContextDelta[k] = v }

// CommitContextDelta applies the staged delta to the conversation and clears
// the buffer. Called exactly once by the pipeline at turn end; never called
// for cancelled turns.
func (tc *TurnContext) CommitContextDelta() {
	if len(tc.ContextDelta) == 0 || tc.Conversation == nil {
		return
	}
	tc.Conversation.ApplyContextDelta(tc.ContextDelta)
	tc.ContextDelta = map[string]any{}
}

// AddCost accumulates estimated upstream spend attributed to this turn.
func (tc *TurnContext) AddCost(cents Money) { tc.CostCents += cents }

// Blocked reports whether either validation verdict blocked the turn.
func (tc *TurnContext) Blocked() bool {
	return (tc.PreVerdict != nil && tc.PreVerdict.Blocked) ||
		(tc.PostVerdict != nil && tc.PostVerdict.Blocked)
}

// Elapsed returns the wall-clock time spent on this turn so far.
func (tc *TurnContext) Elapsed() time.Duration { return time.Since(tc.Started) }

// Clone returns a shallow copy with a deep-copied delta buffer. Used by
// stages that speculatively stage context before deciding to emit.
func (tc *TurnContext) Clone() *TurnContext {
	c := *tc
	c.ContextDelta = map[string]any{}
	maps.Copy(c.ContextDelta, tc.ContextDelta)
	return &c
}
