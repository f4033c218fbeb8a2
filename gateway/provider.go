package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/replypipe/replypipe/core"
)

// Capability identifies one of the uniform operations a Provider exposes
// regardless of vendor.
type Capability string

const (
	// CapabilityClassify maps text onto one of a caller-supplied label set.
	CapabilityClassify Capability = "classify"
	// CapabilityGenerate produces free text from instructions plus input.
	CapabilityGenerate Capability = "generate"
	// CapabilityEmbed produces a vector representation of the input.
	CapabilityEmbed Capability = "embed"
)

// Request captures the normalized provider input produced by stages.
type Request struct {
	// Agent attributes the call (and its cost) to a pipeline component.
	Agent string `json:"agent"`
	// Input is the customer or pipeline text being operated on.
	Input string `json:"input"`
	// Instructions carry system / persona directives for generation.
	Instructions string `json:"instructions,omitempty"`
	// Labels constrain classification to a closed set.
	Labels []string `json:"labels,omitempty"`
	// MaxTokens caps generation length; zero means provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// TokenUsage captures token statistics for a provider response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized provider output.
type Response struct {
	// Text is the generated reply for generate capability.
	Text string `json:"text,omitempty"`
	// Label and Confidence are populated for classify capability.
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	// Embedding is populated for embed capability.
	Embedding []float64  `json:"embedding,omitempty"`
	Usage     TokenUsage `json:"usage"`
	// CostCents is the gateway's spend estimate for this call, filled in on
	// successful upstream responses.
	CostCents core.Money `json:"cost_cents,omitempty"`
	// Degraded marks responses served by the deterministic fallback path.
	Degraded bool `json:"degraded,omitempty"`
}

// Provider is the minimal vendor interface the gateway drives. Adapters for
// concrete SDKs live in provider/openai and provider/anthropic.
type Provider interface {
	Invoke(ctx context.Context, capability Capability, req Request) (Response, error)

	// Name returns the provider identifier used in logs and cost attribution.
	Name() string
}

// FailureKind partitions upstream failures into the retry taxonomy.
type FailureKind int

const (
	// FailureTimeout is a deadline exceeded talking to the provider.
	FailureTimeout FailureKind = iota
	// FailureRateLimited is an upstream 429.
	FailureRateLimited
	// FailureServer is an upstream 5xx.
	FailureServer
	// FailureInvalidRequest is a non-retryable 4xx (other than 429).
	FailureInvalidRequest
)

// String returns the taxonomy label.
func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureRateLimited:
		return "rate_limited"
	case FailureServer:
		return "server_error"
	case FailureInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// CallError wraps an upstream failure with its taxonomy kind so the retry
// loop and the circuit breaker can decide without string matching.
type CallError struct {
	Kind   FailureKind
	Status int
	Err    error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("upstream %s (status %d)", e.Kind, e.Status)
}

// Unwrap returns the wrapped cause.
func (e *CallError) Unwrap() error { return e.Err }

// Transient reports whether the failure should be retried.
func (e *CallError) Transient() bool {
	switch e.Kind {
	case FailureTimeout, FailureRateLimited, FailureServer:
		return true
	default:
		return false
	}
}

// NewCallError constructs a CallError.
func NewCallError(kind FailureKind, status int, err error) *CallError {
	return &CallError{Kind: kind, Status: status, Err: err}
}

// AsCallError extracts a *CallError from an error chain.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ErrCircuitOpen is returned internally when the breaker rejects a call
// before it reaches the provider; callers observe the fallback response
// instead unless fallback is disabled.
var ErrCircuitOpen = errors.New("gateway: circuit open")
