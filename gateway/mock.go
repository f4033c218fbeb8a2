package gateway

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a lightweight in-memory Provider useful for tests, local
// development and running the pipeline without upstream credentials.
type MockProvider struct {
	mu        sync.Mutex
	name      string
	responses map[string]Response
	failures  []error
	calls     int
}

// NewMockProvider constructs a MockProvider.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name, responses: map[string]Response{}}
}

// AddResponse registers a canned response for an input.
func (m *MockProvider) AddResponse(input string, resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[input] = resp
}

// FailNext queues errors returned (in order) before any canned responses.
func (m *MockProvider) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Calls returns the number of Invoke calls observed.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Name implements Provider.
func (m *MockProvider) Name() string { return m.name }

// Invoke implements Provider; replays queued failures then canned responses.
func (m *MockProvider) Invoke(ctx context.Context, capability Capability, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return Response{}, err
	}

	if resp, ok := m.responses[req.Input]; ok {
		return resp, nil
	}

	switch capability {
	case CapabilityClassify:
		return Response{Label: "GENERAL_INQUIRY", Confidence: 0.7, Usage: TokenUsage{PromptTokens: 20, TotalTokens: 20}}, nil
	case CapabilityGenerate:
		return Response{
			Text:  fmt.Sprintf("Mock reply to: %s", req.Input),
			Usage: TokenUsage{PromptTokens: 20, CompletionTokens: 30, TotalTokens: 50},
		}, nil
	case CapabilityEmbed:
		return Response{Embedding: hashEmbedding(req.Input, 16), Usage: TokenUsage{PromptTokens: 10, TotalTokens: 10}}, nil
	default:
		return Response{}, NewCallError(FailureInvalidRequest, 400, fmt.Errorf("unknown capability %q", capability))
	}
}
