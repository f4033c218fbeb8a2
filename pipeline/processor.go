// Package pipeline orchestrates one conversation turn through the stage
// sequence: pre-validation, classification, knowledge lookup, escalation
// decision, composition, post-validation. Cross-cutting concerns (logging,
// analytics, tracing, cancellation) are layered onto every stage as
// middleware. The processor enforces the end-to-end turn budget, deduplicates
// redelivered tasks, and commits staged conversation context only when a turn
// completes.
package pipeline

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/replypipe/replypipe/analytics"
	"github.com/replypipe/replypipe/composer"
	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/escalation"
	"github.com/replypipe/replypipe/intent"
	"github.com/replypipe/replypipe/knowledge"
	"github.com/replypipe/replypipe/logging"
)

// Safe canned replies for turns that must not expose pipeline internals.
const (
	blockedReply     = "I'm not able to help with that request directly. A member of our support team will review it and follow up with you."
	systemErrorReply = "Something went wrong on our side while handling your request. A member of our support team will follow up with you shortly."
)

// Options configure the processor.
type Options struct {
	// Timeout is the end-to-end budget for one turn.
	Timeout time.Duration
	// DedupSize bounds the redelivery cache.
	DedupSize int
	Logger    *logging.PipelineLogger
	Sink      analytics.Sink
	Tracer    *analytics.Tracer
	Metrics   *analytics.Metrics
	// Middlewares are appended after the built-in ones.
	Middlewares []core.Middleware
}

// Processor runs turns. Safe for concurrent use across conversations; the
// router guarantees one turn at a time per conversation.
type Processor struct {
	opts   Options
	logger *logging.PipelineLogger

	pre      core.Stage
	classify core.Stage
	know     core.Stage
	escalate core.Stage
	compose  core.Stage
	post     core.Stage

	// seen caches the terminal envelope per task id so a redelivered task
	// returns the original reply without re-running stages (no double cost,
	// no double escalation).
	seen *lru.Cache[string, core.Envelope]
}

// New wires the six stages with the standard middleware stack.
func New(
	classifier *intent.Classifier,
	resolver knowledge.Resolver,
	engine *escalation.Engine,
	comp *composer.Composer,
	optFns ...func(o *Options),
) *Processor {
	opts := Options{
		Timeout:   5 * time.Second,
		DedupSize: 4096,
		Logger:    logging.NewSlogLogger(logging.LogLevelInfo, "json", false),
		Sink:      analytics.NoopSink{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	mws := []core.Middleware{withCancellation()}
	if opts.Tracer != nil {
		mws = append(mws, withTracing(opts.Tracer))
	}
	mws = append(mws, withLogging(opts.Logger.WithComponent("pipeline")), withAnalytics(opts.Sink))
	mws = append(mws, opts.Middlewares...)

	seen, _ := lru.New[string, core.Envelope](opts.DedupSize)

	return &Processor{
		opts:     opts,
		seen:     seen,
		logger:   opts.Logger.WithComponent("pipeline"),
		pre:      chain(preCriticStage{}, mws...),
		classify: chain(classifyStage{classifier: classifier}, mws...),
		know:     chain(knowledgeStage{resolver: resolver}, mws...),
		escalate: chain(escalateStage{engine: engine}, mws...),
		compose:  chain(composeStage{composer: comp}, mws...),
		post:     chain(postCriticStage{}, mws...),
	}
}

// Process runs one turn to a terminal outcome. The customer always receives
// either a substantive answer or an escalation acknowledgment; stage failures
// degrade the turn, they never surface as raw errors.
func (p *Processor) Process(ctx context.Context, msg core.Message, conv *core.Conversation) core.Envelope {
	if env, ok := p.seen.Get(msg.TaskID); ok {
		p.logger.WithTurn(msg.ConversationID, msg.TaskID).Info("duplicate task, serving cached reply")
		return env
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	tlog := p.logger.WithTurn(msg.ConversationID, msg.TaskID)
	tc := core.NewTurnContext(ctx, msg, conv, tlog)
	conv.AddMessage(msg)

	failed := false
	run := func(s core.Stage) {
		if failed || tc.Err() != nil {
			return
		}
		if err := s.Handle(tc); err != nil && tc.Err() == nil {
			failed = true
			tlog.ErrorWithStack(err, "stage failure degraded turn")
		}
	}

	run(p.pre)
	preBlocked := tc.PreVerdict != nil && tc.PreVerdict.Blocked

	if !preBlocked {
		run(p.classify)
		run(p.know)
	}
	run(p.escalate)

	if !preBlocked && !failed && tc.Err() == nil {
		run(p.compose)
		run(p.post)
		if tc.PostVerdict != nil && tc.PostVerdict.Blocked {
			// The draft is discarded; the decision is re-taken with the
			// post verdict in scope so the reason becomes policy-block.
			run(p.escalate)
			tc.Draft = blockedReply
		}
	} else if preBlocked {
		tc.Draft = blockedReply
	}

	outcome := p.finishTurn(tc, failed)
	env := p.outboundEnvelope(tc, outcome)
	p.recordTurn(tc, outcome)
	p.seen.Add(msg.TaskID, env)
	return env
}

// finishTurn resolves the terminal outcome and applies the failure and
// timeout overrides: both force a system-error escalation with a safe reply,
// and a cancelled turn never commits its staged context.
func (p *Processor) finishTurn(tc *core.TurnContext, failed bool) core.TurnOutcome {
	switch {
	case tc.Err() != nil:
		d := core.Escalated(core.ReasonSystemError, core.PriorityHigh)
		tc.Decision = &d
		tc.Draft = systemErrorReply
		tc.LogWarn("turn exceeded budget", "elapsed", tc.Elapsed().String())
		return core.OutcomeTimeout
	case failed:
		d := core.Escalated(core.ReasonSystemError, core.PriorityHigh)
		tc.Decision = &d
		tc.Draft = systemErrorReply
		tc.CommitContextDelta()
		return core.OutcomeError
	case tc.Decision != nil && tc.Decision.Escalate:
		tc.CommitContextDelta()
		p.appendReply(tc)
		return core.OutcomeEscalated
	default:
		tc.CommitContextDelta()
		p.appendReply(tc)
		return core.OutcomeResolved
	}
}

func (p *Processor) appendReply(tc *core.TurnContext) {
	reply := core.NewMessage(tc.ConversationID, tc.TaskID, core.RoleAgent, core.Content{Text: tc.Draft})
	reply.ReplyTo = tc.Message.ID
	tc.Conversation.AddMessage(reply)
}

func (p *Processor) outboundEnvelope(tc *core.TurnContext, outcome core.TurnOutcome) core.Envelope {
	meta := &core.ReplyMetadata{
		Escalated:        tc.Decision != nil && tc.Decision.Escalate,
		Degraded:         tc.Degraded,
		LatencyMs:        tc.Elapsed().Milliseconds(),
		EstimatedCostUsd: tc.CostCents.Dollars(),
	}
	if tc.Intent != nil {
		meta.Intent = string(tc.Intent.Category)
		meta.Confidence = tc.Intent.Confidence
	}
	if tc.Decision != nil && tc.Decision.Escalate {
		meta.EscalationReason = string(tc.Decision.Reason)
	}

	return core.Envelope{
		ConversationID: tc.ConversationID,
		TaskID:         tc.TaskID,
		Role:           core.RoleAgent,
		Content:        core.Content{Text: tc.Draft},
		Timestamp:      time.Now().UTC(),
		Metadata:       meta,
	}
}

func (p *Processor) recordTurn(tc *core.TurnContext, outcome core.TurnOutcome) {
	if p.opts.Sink != nil {
		p.opts.Sink.Record(analytics.Event{
			Stage:          "turn",
			ConversationID: tc.ConversationID,
			TaskID:         tc.TaskID,
			Outcome:        string(outcome),
			Duration:       tc.Elapsed(),
			CostCents:      tc.CostCents,
			Degraded:       tc.Degraded,
			Timestamp:      tc.Started,
		})
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.TurnOutcomes.WithLabelValues(string(outcome)).Inc()
	}
}
