package gateway

import (
	"hash/fnv"
	"strings"
)

// Fallback produces a deterministic response when the provider is
// unavailable (circuit open or retries exhausted). The pipeline must stay
// responsive through provider outages, so fallback never returns an error.
type Fallback interface {
	Invoke(capability Capability, req Request) Response
}

// keywordRule maps a keyword set onto a classification label for the
// degraded path.
type keywordRule struct {
	keywords []string
	label    string
}

// DefaultFallback is the built-in deterministic degradation path: keyword
// classification, templated acknowledgment text and a stable hash embedding.
type DefaultFallback struct {
	rules []keywordRule
}

// NewDefaultFallback constructs the standard fallback table.
func NewDefaultFallback() *DefaultFallback {
	return &DefaultFallback{
		rules: []keywordRule{
			{keywords: []string{"return", "send back", "send it back"}, label: "RETURN_REQUEST"},
			{keywords: []string{"refund", "money back", "charge back"}, label: "REFUND_REQUEST"},
			{keywords: []string{"where is my order", "order status", "track", "tracking"}, label: "ORDER_STATUS"},
			{keywords: []string{"shipping", "deliver", "delivery"}, label: "SHIPPING_QUESTION"},
			{keywords: []string{"human", "manager", "real person", "representative"}, label: "HUMAN_REQUEST"},
			{keywords: []string{"terrible", "awful", "worst", "angry", "unacceptable"}, label: "COMPLAINT"},
		},
	}
}

// Invoke implements Fallback.
func (f *DefaultFallback) Invoke(capability Capability, req Request) Response {
	switch capability {
	case CapabilityClassify:
		return f.classify(req)
	case CapabilityGenerate:
		return Response{
			Text:     "Thanks for reaching out. We've received your message and a member of our support team will follow up shortly.",
			Degraded: true,
		}
	case CapabilityEmbed:
		return Response{Embedding: hashEmbedding(req.Input, 16), Degraded: true}
	default:
		return Response{Degraded: true}
	}
}

func (f *DefaultFallback) classify(req Request) Response {
	text := strings.ToLower(req.Input)
	for _, rule := range f.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				if !allowedLabel(rule.label, req.Labels) {
					continue
				}
				return Response{Label: rule.label, Confidence: 0.5, Degraded: true}
			}
		}
	}
	return Response{Label: "UNKNOWN", Confidence: 0.0, Degraded: true}
}

func allowedLabel(label string, labels []string) bool {
	if len(labels) == 0 {
		return true
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// hashEmbedding derives a stable pseudo-embedding so downstream similarity
// code keeps functioning (poorly but deterministically) during outages.
func hashEmbedding(text string, dims int) []float64 {
	out := make([]float64, dims)
	for i, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		out[(int(h.Sum32())+i)%dims] += 1.0
	}
	return out
}
