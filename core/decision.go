package core

// EscalationReason is the closed set of causes for routing a turn to a human.
type EscalationReason string

const (
	// ReasonNone is recorded on auto-resolved turns.
	ReasonNone EscalationReason = ""
	// ReasonPolicyBlock is forced by any pre- or post-validation block.
	ReasonPolicyBlock EscalationReason = "policy-block"
	// ReasonHighValue is forced by a monetary amount above the configured threshold.
	ReasonHighValue EscalationReason = "high-value"
	// ReasonNegativeSentiment covers severe sentiment or explicit human requests.
	ReasonNegativeSentiment EscalationReason = "negative-sentiment"
	// ReasonComplexity covers turns the pipeline recognizes as beyond its scope.
	ReasonComplexity EscalationReason = "complexity"
	// ReasonLowConfidence is forced when intent confidence falls below the floor.
	ReasonLowConfidence EscalationReason = "low-confidence"
	// ReasonSystemError covers upstream failures and turn timeouts.
	ReasonSystemError EscalationReason = "system-error"
)

// Priority orders the human review queue.
type Priority int

const (
	// PriorityLow for routine handoffs.
	PriorityLow Priority = iota
	// PriorityNormal for value- or confidence-triggered handoffs.
	PriorityNormal
	// PriorityHigh for policy blocks and distressed customers.
	PriorityHigh
)

// String returns the queue label for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// EscalationDecision is the output of the decision engine for one turn.
//
// Invariants:
//   - Any validation block or amount above threshold forces Escalate = true.
//   - The decision function is monotonic: relaxing a trigger never flips an
//     escalating case back to auto-resolve for otherwise identical inputs.
type EscalationDecision struct {
	Escalate bool             `json:"escalate"`
	Reason   EscalationReason `json:"reason,omitempty"`
	Priority Priority         `json:"priority"`
}

// AutoResolve returns the non-escalating decision.
func AutoResolve() EscalationDecision {
	return EscalationDecision{Escalate: false, Reason: ReasonNone, Priority: PriorityLow}
}

// Escalated constructs an escalating decision with the given reason and priority.
func Escalated(reason EscalationReason, priority Priority) EscalationDecision {
	return EscalationDecision{Escalate: true, Reason: reason, Priority: priority}
}
