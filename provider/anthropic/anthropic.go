// Package anthropic provides a gateway.Provider implementation backed by the
// Anthropic Messages API. The embed capability is not offered by Anthropic
// and surfaces as a non-retryable invalid request so the gateway degrades to
// its deterministic embedding fallback.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/replypipe/replypipe/gateway"
)

// Options configure the Anthropic provider adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Provider wraps the Anthropic client behind the gateway.Provider interface.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// New creates a provider; APIKey falls back to ambient credentials.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// NewFromClient creates a provider from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Name implements gateway.Provider.
func (p *Provider) Name() string { return "anthropic" }

// Invoke implements gateway.Provider.
func (p *Provider) Invoke(ctx context.Context, capability gateway.Capability, req gateway.Request) (gateway.Response, error) {
	switch capability {
	case gateway.CapabilityClassify:
		instructions := fmt.Sprintf(
			"Classify the customer message into exactly one of these categories: %s. Reply with only the category name.",
			strings.Join(req.Labels, ", "),
		)
		resp, err := p.message(ctx, instructions, req.Input, 16)
		if err != nil {
			return gateway.Response{}, err
		}
		label, confidence := matchLabel(resp.Text, req.Labels)
		resp.Label = label
		resp.Confidence = confidence
		resp.Text = ""
		return resp, nil
	case gateway.CapabilityGenerate:
		maxTokens := p.opts.MaxTokens
		if req.MaxTokens > 0 {
			maxTokens = int64(req.MaxTokens)
		}
		return p.message(ctx, req.Instructions, req.Input, maxTokens)
	case gateway.CapabilityEmbed:
		return gateway.Response{}, gateway.NewCallError(gateway.FailureInvalidRequest, 400, fmt.Errorf("anthropic does not provide an embeddings endpoint"))
	default:
		return gateway.Response{}, gateway.NewCallError(gateway.FailureInvalidRequest, 400, fmt.Errorf("unknown capability %q", capability))
	}
}

func (p *Provider) message(ctx context.Context, instructions, input string, maxTokens int64) (gateway.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       p.opts.Model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(p.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(input)),
		},
	}
	if instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: instructions}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return gateway.Response{}, translateError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	return gateway.Response{
		Text: text.String(),
		Usage: gateway.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func matchLabel(text string, labels []string) (string, float64) {
	cleaned := strings.ToUpper(strings.TrimSpace(text))
	for _, l := range labels {
		if cleaned == strings.ToUpper(l) {
			return l, 0.85
		}
	}
	for _, l := range labels {
		if strings.Contains(cleaned, strings.ToUpper(l)) {
			return l, 0.7
		}
	}
	return "UNKNOWN", 0.0
}

// translateError maps SDK errors onto the gateway failure taxonomy.
func translateError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return gateway.NewCallError(gateway.FailureTimeout, 0, err)
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return gateway.NewCallError(gateway.FailureRateLimited, apierr.StatusCode, err)
		case apierr.StatusCode >= 500:
			return gateway.NewCallError(gateway.FailureServer, apierr.StatusCode, err)
		default:
			return gateway.NewCallError(gateway.FailureInvalidRequest, apierr.StatusCode, err)
		}
	}
	return gateway.NewCallError(gateway.FailureServer, 0, err)
}
