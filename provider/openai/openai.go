// Package openai provides a gateway.Provider implementation backed by the
// OpenAI API. Classification and generation use Chat Completions; embeddings
// use the Embeddings API. Upstream failures are translated into the
// gateway's CallError taxonomy so retry and circuit decisions stay uniform
// across vendors.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/replypipe/replypipe/gateway"
)

// Options configure the OpenAI provider adapter.
type Options struct {
	Model          string
	EmbeddingModel openai.EmbeddingModel
	Temperature    float64
	MaxTokens      int64
}

// Provider wraps the OpenAI client behind the gateway.Provider interface.
type Provider struct {
	client *openai.Client
	opts   Options
}

// New creates a provider using ambient credentials (OPENAI_API_KEY).
func New(optFns ...func(o *Options)) *Provider {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a provider from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:          openai.ChatModelGPT4oMini,
		EmbeddingModel: openai.EmbeddingModelTextEmbedding3Small,
		Temperature:    0.2,
		MaxTokens:      1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Name implements gateway.Provider.
func (p *Provider) Name() string { return "openai" }

// Invoke implements gateway.Provider.
func (p *Provider) Invoke(ctx context.Context, capability gateway.Capability, req gateway.Request) (gateway.Response, error) {
	switch capability {
	case gateway.CapabilityClassify:
		return p.classify(ctx, req)
	case gateway.CapabilityGenerate:
		return p.generate(ctx, req)
	case gateway.CapabilityEmbed:
		return p.embed(ctx, req)
	default:
		return gateway.Response{}, gateway.NewCallError(gateway.FailureInvalidRequest, 400, fmt.Errorf("unknown capability %q", capability))
	}
}

func (p *Provider) classify(ctx context.Context, req gateway.Request) (gateway.Response, error) {
	instructions := fmt.Sprintf(
		"Classify the customer message into exactly one of these categories: %s. Reply with only the category name.",
		strings.Join(req.Labels, ", "),
	)

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(req.Input),
		},
		Temperature:         openai.Float(0),
		MaxCompletionTokens: openai.Int(16),
	})
	if err != nil {
		return gateway.Response{}, translateError(err)
	}
	if len(completion.Choices) == 0 {
		return gateway.Response{}, gateway.NewCallError(gateway.FailureServer, 502, fmt.Errorf("no choices returned"))
	}

	label, confidence := matchLabel(completion.Choices[0].Message.Content, req.Labels)
	return gateway.Response{
		Label:      label,
		Confidence: confidence,
		Usage:      usageOf(completion.Usage),
	}, nil
}

func (p *Provider) generate(ctx context.Context, req gateway.Request) (gateway.Response, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	messages = append(messages, openai.UserMessage(req.Input))

	maxTokens := p.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               p.opts.Model,
		Messages:            messages,
		Temperature:         openai.Float(p.opts.Temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return gateway.Response{}, translateError(err)
	}
	if len(completion.Choices) == 0 {
		return gateway.Response{}, gateway.NewCallError(gateway.FailureServer, 502, fmt.Errorf("no choices returned"))
	}

	return gateway.Response{
		Text:  completion.Choices[0].Message.Content,
		Usage: usageOf(completion.Usage),
	}, nil
}

func (p *Provider) embed(ctx context.Context, req gateway.Request) (gateway.Response, error) {
	res, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: p.opts.EmbeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(req.Input)},
	})
	if err != nil {
		return gateway.Response{}, translateError(err)
	}
	if len(res.Data) == 0 {
		return gateway.Response{}, gateway.NewCallError(gateway.FailureServer, 502, fmt.Errorf("no embedding returned"))
	}

	return gateway.Response{
		Embedding: res.Data[0].Embedding,
		Usage: gateway.TokenUsage{
			PromptTokens: int(res.Usage.PromptTokens),
			TotalTokens:  int(res.Usage.TotalTokens),
		},
	}, nil
}

func usageOf(u openai.CompletionUsage) gateway.TokenUsage {
	return gateway.TokenUsage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
	}
}

// matchLabel maps the raw completion text onto the closed label set. Unmatched
// output degrades to UNKNOWN at zero confidence rather than inventing labels.
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
	var apierr *openai.Error
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
	// Connection-level failures are treated as transient server errors.
	return gateway.NewCallError(gateway.FailureServer, 0, err)
}
