// Package escalation decides whether a turn is handed to a human. Decide is
// a pure function over its inputs; the trigger precedence is fixed and every
// branch is exercised by a truth table in the tests.
package escalation

import (
	"github.com/replypipe/replypipe/core"
)

// Options hold the tunable thresholds. Zero values are replaced by defaults
// in New so a zero Options literal is safe.
type Options struct {
	// HighValueThreshold is exclusive: amounts strictly above it escalate.
	HighValueThreshold core.Money
	// ConfidenceFloor is exclusive: confidence strictly below it escalates.
	ConfidenceFloor float64
}

// Engine applies the escalation policy.
type Engine struct {
	opts Options
}

// New creates an engine with defaults of $50.00 and 0.6.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		HighValueThreshold: core.Money(5000),
		ConfidenceFloor:    0.6,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{opts: opts}
}

// Inputs are the facts Decide operates on. Amount carries the monetary value
// in play for the turn in cents; HasAmount distinguishes "no amount" from a
// genuine zero.
type Inputs struct {
	PreBlocked  bool
	PostBlocked bool
	Sensitive   bool
	Amount      core.Money
	HasAmount   bool
	Intent      core.IntentCategory
	Confidence  float64
}

// Decide evaluates the triggers in fixed precedence order:
//
//  1. any validation block (pre or post) -> policy-block, high priority
//  2. amount strictly above the threshold -> high-value, high priority
//  3. complaint intent, explicit human request, or sensitive content
//     -> negative-sentiment, normal priority
//  4. confidence strictly below the floor -> low-confidence, low priority
//  5. otherwise auto-resolve
//
// The ordering means the reported reason is always the highest-precedence
// trigger that fired, and the decision is monotonic: adding a trigger can
// only move the outcome toward escalation, never away from it.
func (e *Engine) Decide(in Inputs) core.EscalationDecision {
	if in.PreBlocked || in.PostBlocked {
		return core.Escalated(core.ReasonPolicyBlock, core.PriorityHigh)
	}
	if in.HasAmount && in.Amount > e.opts.HighValueThreshold {
		return core.Escalated(core.ReasonHighValue, core.PriorityHigh)
	}
	if in.Sensitive || in.Intent == core.IntentComplaint || in.Intent == core.IntentHumanRequest || in.Intent == core.IntentEscalationNeeded {
		return core.Escalated(core.ReasonNegativeSentiment, core.PriorityNormal)
	}
	if in.Confidence < e.opts.ConfidenceFloor {
		return core.Escalated(core.ReasonLowConfidence, core.PriorityLow)
	}
	return core.AutoResolve()
}
