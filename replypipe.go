// Package replypipe provides a high-level façade over the support pipeline:
// the router, the conversation registry, the model gateway and the six-stage
// turn processor. Most applications interact with this package by:
//  1. Creating a ReplyPipe via New() (optionally overriding the provider,
//     resolver, thresholds or observability hooks)
//  2. Subscribing to outbound replies (OnReply) or using the synchronous
//     helper (HandleSync)
//  3. Feeding inbound envelopes through Handle
//
// All defaults are safe for local development: a deterministic mock provider,
// an in-memory knowledge store and JSON logging to stdout.
package replypipe

import (
	"context"
	"time"

	"github.com/replypipe/replypipe/analytics"
	"github.com/replypipe/replypipe/composer"
	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/escalation"
	"github.com/replypipe/replypipe/gateway"
	"github.com/replypipe/replypipe/intent"
	"github.com/replypipe/replypipe/knowledge"
	"github.com/replypipe/replypipe/logging"
	"github.com/replypipe/replypipe/pipeline"
	"github.com/replypipe/replypipe/router"
)

// Topic names used on the internal router.
const (
	// TopicInbound receives customer envelopes.
	TopicInbound = "inbound"
	// TopicOutbound receives composed replies.
	TopicOutbound = "outbound"
	// TopicEscalations receives the handoff copies of escalated turns.
	TopicEscalations = "escalations"
)

// Options configures a ReplyPipe instance.
type Options struct {
	// Provider backs the model gateway. Defaults to the deterministic mock.
	Provider gateway.Provider
	// Resolver backs knowledge lookups. Defaults to the in-memory fixture
	// store wrapped in the TTL cache.
	Resolver knowledge.Resolver
	// HighValueThreshold and ConfidenceFloor tune the escalation engine.
	HighValueThreshold core.Money
	ConfidenceFloor    float64
	// TurnTimeout is the end-to-end budget per turn.
	TurnTimeout time.Duration
	// Router throttles and bounds.
	GlobalRate  int
	TopicRate   int
	MaxDepth    int
	IdleTimeout time.Duration
	// Gateway tuning, applied on top of gateway defaults.
	GatewayOptions []func(o *gateway.Options)

	Logger  *logging.PipelineLogger
	Sink    analytics.Sink
	Tracer  *analytics.Tracer
	Metrics *analytics.Metrics
}

// ReplyHandler consumes outbound envelopes.
type ReplyHandler func(env core.Envelope)

// ReplyPipe aggregates the pipeline components behind a small surface.
type ReplyPipe struct {
	opts      Options
	gateway   *gateway.Gateway
	processor *pipeline.Processor
	router    *router.Router
	registry  *router.Registry
	logger    *logging.PipelineLogger

	onReply      ReplyHandler
	onEscalation ReplyHandler
}

// New creates a ReplyPipe with optional overrides.
func New(optFns ...func(o *Options)) *ReplyPipe {
	opts := Options{
		Provider:           gateway.NewMockProvider("mock"),
		HighValueThreshold: core.Money(5000),
		ConfidenceFloor:    0.6,
		TurnTimeout:        5 * time.Second,
		GlobalRate:         100,
		TopicRate:          20,
		MaxDepth:           1000,
		IdleTimeout:        30 * time.Minute,
		Logger:             logging.NewSlogLogger(logging.LogLevelInfo, "json", false),
		Sink:               analytics.NoopSink{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Resolver == nil {
		opts.Resolver = knowledge.NewCached(knowledge.NewFixtureStore())
	}

	gwFns := append([]func(o *gateway.Options){func(o *gateway.Options) {
		o.Logger = opts.Logger.WithComponent("gateway")
		o.Sink = opts.Sink
		o.Metrics = opts.Metrics
	}}, opts.GatewayOptions...)
	gw := gateway.New(opts.Provider, gwFns...)

	classifier := intent.New(gw, func(o *intent.Options) {
		o.Logger = opts.Logger.WithComponent("classifier")
	})
	engine := escalation.New(func(o *escalation.Options) {
		o.HighValueThreshold = opts.HighValueThreshold
		o.ConfidenceFloor = opts.ConfidenceFloor
	})
	comp := composer.New(gw)

	processor := pipeline.New(classifier, opts.Resolver, engine, comp, func(o *pipeline.Options) {
		o.Timeout = opts.TurnTimeout
		o.Logger = opts.Logger
		o.Sink = opts.Sink
		o.Tracer = opts.Tracer
		o.Metrics = opts.Metrics
	})

	rt := router.New(func(o *router.Options) {
		o.GlobalRate = opts.GlobalRate
		o.TopicRate = opts.TopicRate
		o.MaxDepth = opts.MaxDepth
		o.Logger = opts.Logger.WithComponent("router")
		o.Tracer = opts.Tracer
		o.Metrics = opts.Metrics
	})
	registry := router.NewRegistry(func(o *router.RegistryOptions) {
		o.IdleTimeout = opts.IdleTimeout
		o.Logger = opts.Logger.WithComponent("registry")
	})

	p := &ReplyPipe{
		opts:      opts,
		gateway:   gw,
		processor: processor,
		router:    rt,
		registry:  registry,
		logger:    opts.Logger.WithComponent("replypipe"),
	}

	rt.Subscribe(TopicInbound, p.processTurn)
	rt.Subscribe(TopicOutbound, func(ctx context.Context, msg *core.Message) error { return nil })
	rt.Subscribe(TopicEscalations, func(ctx context.Context, msg *core.Message) error { return nil })

	return p
}

// OnReply registers the handler invoked with every outbound envelope.
func (p *ReplyPipe) OnReply(h ReplyHandler) { p.onReply = h }

// OnEscalation registers the handler invoked with the handoff copy of every
// escalated turn.
func (p *ReplyPipe) OnEscalation(h ReplyHandler) { p.onEscalation = h }

// Handle accepts an inbound envelope and enqueues it for processing. It
// returns router.ErrBackpressure when throttled; the caller owns retry.
func (p *ReplyPipe) Handle(ctx context.Context, env core.Envelope) error {
	msg := env.ToMessage()
	return p.router.Send(ctx, TopicInbound, &msg)
}

// HandleSync processes one envelope to completion on the caller's goroutine,
// bypassing the router queue. Intended for request/response boundaries and
// tests.
func (p *ReplyPipe) HandleSync(ctx context.Context, env core.Envelope) core.Envelope {
	msg := env.ToMessage()
	conv := p.registry.Get(msg.ConversationID)
	out := p.processor.Process(ctx, msg, conv)
	p.dispatchReply(out)
	return out
}

// processTurn is the inbound topic subscriber.
func (p *ReplyPipe) processTurn(ctx context.Context, msg *core.Message) error {
	conv := p.registry.Get(msg.ConversationID)
	out := p.processor.Process(ctx, *msg, conv)

	reply := core.NewMessage(out.ConversationID, out.TaskID, core.RoleAgent, out.Content)
	if err := p.router.Send(ctx, TopicOutbound, &reply); err != nil {
		p.logger.Warn("outbound delivery rejected", "error", err.Error())
	}
	if out.Metadata != nil && out.Metadata.Escalated {
		handoff := core.NewMessage(out.ConversationID, out.TaskID, core.RoleSystem, out.Content)
		if err := p.router.Send(ctx, TopicEscalations, &handoff); err != nil {
			p.logger.Warn("escalation delivery rejected", "error", err.Error())
		}
	}

	p.dispatchReply(out)
	return nil
}

func (p *ReplyPipe) dispatchReply(out core.Envelope) {
	if p.onReply != nil {
		p.onReply(out)
	}
	if p.onEscalation != nil && out.Metadata != nil && out.Metadata.Escalated {
		p.onEscalation(out)
	}
}

// Status reports gateway health for operational tooling.
func (p *ReplyPipe) Status() gateway.StatusReport { return p.gateway.Status() }

// Gateway exposes the underlying gateway for advanced wiring.
func (p *ReplyPipe) Gateway() *gateway.Gateway { return p.gateway }

// Conversations exposes the conversation registry.
func (p *ReplyPipe) Conversations() *router.Registry { return p.registry }

// Close drains the router and stops the registry sweep loop.
func (p *ReplyPipe) Close() {
	p.router.Close()
	p.registry.Close()
}
