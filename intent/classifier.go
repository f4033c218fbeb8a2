package intent

import (
	"context"

	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/gateway"
	"github.com/replypipe/replypipe/logging"
)

// ModelInvoker is the slice of the gateway the classifier depends on.
type ModelInvoker interface {
	Invoke(ctx context.Context, capability gateway.Capability, req gateway.Request) (gateway.Response, error)
}

// Labels is the closed set of categories offered to the model-assist path.
var Labels = []string{
	string(core.IntentOrderStatus),
	string(core.IntentReturnRequest),
	string(core.IntentRefundRequest),
	string(core.IntentShippingQuestion),
	string(core.IntentProductQuestion),
	string(core.IntentComplaint),
	string(core.IntentHumanRequest),
	string(core.IntentGeneralInquiry),
}

// Options configure the classifier.
type Options struct {
	Rules  []Rule
	Logger logging.Logger
}

// Classifier resolves customer text to an Intent, rules first, model second.
type Classifier struct {
	rules  []Rule
	model  ModelInvoker
	logger logging.Logger
}

// New creates a classifier. The model invoker may be nil, in which case
// unmatched text classifies as GENERAL_INQUIRY at zero confidence.
func New(model ModelInvoker, optFns ...func(o *Options)) *Classifier {
	opts := Options{
		Rules:  DefaultRules(),
		Logger: logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Classifier{rules: opts.Rules, model: model, logger: opts.Logger}
}

// Classify resolves text into an Intent. The deterministic rule table is
// consulted first; the gateway is invoked only when no rule matches, so the
// common shapes of customer traffic never spend tokens. Entities are
// extracted on both paths.
func (c *Classifier) Classify(ctx context.Context, text string) (core.Intent, error) {
	entities := ExtractEntities(text)

	if rule, ok := evaluate(c.rules, text); ok {
		c.logger.Debug("intent matched by rule", "rule", rule.Name, "intent", rule.Intent)
		return core.Intent{
			Category:    rule.Intent,
			Confidence:  rule.Confidence,
			Entities:    entities,
			RuleMatched: rule.Name,
		}, nil
	}

	if c.model == nil {
		return core.Intent{
			Category:   core.IntentGeneralInquiry,
			Confidence: 0.0,
			Entities:   entities,
			Degraded:   true,
		}, nil
	}

	resp, err := c.model.Invoke(ctx, gateway.CapabilityClassify, gateway.Request{
		Agent:  "classifier",
		Input:  text,
		Labels: Labels,
	})
	if err != nil {
		return core.Intent{}, err
	}

	category := core.IntentCategory(resp.Label)
	if resp.Label == "" || resp.Label == "UNKNOWN" {
		category = core.IntentUnknown
	}

	return core.Intent{
		Category:   category,
		Confidence: resp.Confidence,
		Entities:   entities,
		Degraded:   resp.Degraded,
		CostCents:  resp.CostCents,
	}, nil
}
