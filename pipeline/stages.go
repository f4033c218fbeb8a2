package pipeline

import (
	"errors"
	"fmt"

	"github.com/replypipe/replypipe/composer"
	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/critic"
	"github.com/replypipe/replypipe/escalation"
	"github.com/replypipe/replypipe/intent"
	"github.com/replypipe/replypipe/knowledge"
)

// preCriticStage validates inbound text before anything else runs.
type preCriticStage struct{}

func (preCriticStage) Name() string { return "critic.pre" }

func (preCriticStage) Handle(tc *core.TurnContext) error {
	v := critic.ValidatePre(tc.Message.Content.Text)
	tc.PreVerdict = &v
	if v.Blocked {
		tc.LogWarn("inbound text blocked", "category", string(v.Category), "pattern", v.Pattern)
	}
	return nil
}

// classifyStage resolves the customer intent and stages the result into the
// conversation context delta.
type classifyStage struct {
	classifier *intent.Classifier
}

func (classifyStage) Name() string { return "classifier" }

func (s classifyStage) Handle(tc *core.TurnContext) error {
	in, err := s.classifier.Classify(tc.Context, tc.Message.Content.Text)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	tc.Intent = &in
	tc.Degraded = tc.Degraded || in.Degraded
	tc.AddCost(in.CostCents)

	tc.SetContextValue("last_intent", string(in.Category))
	for k, v := range in.Entities {
		tc.SetContextValue("entity."+k, v)
	}
	return nil
}

// knowledgeStage looks up the facts backing the intent. A missing record is
// not an error; the composer asks for clarification instead.
type knowledgeStage struct {
	resolver knowledge.Resolver
}

func (knowledgeStage) Name() string { return "knowledge" }

func (s knowledgeStage) Handle(tc *core.TurnContext) error {
	if s.resolver == nil || tc.Intent == nil {
		return nil
	}
	rec, err := s.resolver.Lookup(tc.Context, *tc.Intent)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("knowledge lookup: %w", err)
	}
	tc.Knowledge = &rec
	return nil
}

// escalateStage applies the policy decision over everything known so far.
type escalateStage struct {
	engine *escalation.Engine
}

func (escalateStage) Name() string { return "escalation" }

func (s escalateStage) Handle(tc *core.TurnContext) error {
	in := escalation.Inputs{
		PreBlocked:  tc.PreVerdict != nil && tc.PreVerdict.Blocked,
		PostBlocked: tc.PostVerdict != nil && tc.PostVerdict.Blocked,
		Sensitive:   tc.PreVerdict != nil && tc.PreVerdict.Sensitive,
	}
	if tc.Intent != nil {
		in.Intent = tc.Intent.Category
		in.Confidence = tc.Intent.Confidence
	}
	if amount, ok := turnAmount(tc); ok {
		in.Amount = amount
		in.HasAmount = true
	}

	d := s.engine.Decide(in)
	tc.Decision = &d
	if d.Escalate {
		tc.LogInfo("turn escalated", "reason", string(d.Reason), "priority", int(d.Priority))
	}
	return nil
}

// turnAmount resolves the monetary value in play: the authoritative order
// total when knowledge resolved one, otherwise an amount entity parsed from
// the customer text. Comparison stays in exact cents either way.
func turnAmount(tc *core.TurnContext) (core.Money, bool) {
	if tc.Knowledge != nil && tc.Knowledge.Kind == "order" {
		return tc.Knowledge.TotalCents, true
	}
	if tc.Intent != nil {
		if raw, ok := tc.Intent.Entity(core.EntityAmount); ok {
			if m, err := core.ParseMoney(raw); err == nil {
				return m, true
			}
		}
	}
	return 0, false
}

// composeStage renders the reply draft. The processor guarantees it never
// runs for pre-blocked turns.
type composeStage struct {
	composer *composer.Composer
}

func (composeStage) Name() string { return "composer" }

func (s composeStage) Handle(tc *core.TurnContext) error {
	in := composer.Inputs{
		Knowledge: tc.Knowledge,
		TaskID:    tc.TaskID,
		Text:      tc.Message.Content.Text,
	}
	if tc.Intent != nil {
		in.Intent = *tc.Intent
	}
	if tc.Decision != nil {
		in.Decision = *tc.Decision
	}

	draft, err := s.composer.Compose(tc.Context, in)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	tc.Draft = draft.Text
	tc.Degraded = tc.Degraded || draft.Degraded
	tc.AddCost(draft.CostCents)
	return nil
}

// postCriticStage validates the generated draft before delivery.
type postCriticStage struct{}

func (postCriticStage) Name() string { return "critic.post" }

func (postCriticStage) Handle(tc *core.TurnContext) error {
	if tc.Draft == "" {
		return nil
	}
	v := critic.ValidatePost(tc.Draft)
	tc.PostVerdict = &v
	if v.Blocked {
		tc.LogWarn("outbound draft blocked", "category", string(v.Category), "pattern", v.Pattern)
	}
	return nil
}
