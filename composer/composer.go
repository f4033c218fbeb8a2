// Package composer turns a classified, validated turn into customer-facing
// reply text. Each intent category maps to either a template rendered from
// retrieved knowledge or a model-generation path through the gateway;
// escalated turns always get a handoff acknowledgment instead of a
// substantive answer. Templates render only fields present in the knowledge
// payload, never invented facts.
package composer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/gateway"
)

// ModelInvoker is the slice of the gateway the composer depends on.
type ModelInvoker interface {
	Invoke(ctx context.Context, capability gateway.Capability, req gateway.Request) (gateway.Response, error)
}

// Options configure the composer.
type Options struct {
	// Persona is prepended to model-generation instructions.
	Persona string
	// MaxTokens caps model-generated replies.
	MaxTokens int
}

// Inputs carry everything compose needs for one turn.
type Inputs struct {
	Intent    core.Intent
	Knowledge *core.KnowledgeRecord
	Decision  core.EscalationDecision
	TaskID    string
	Text      string
}

// Draft is the composed reply plus how it was produced.
type Draft struct {
	Text      string
	Source    string // "template", "model", "handoff", "clarification"
	Degraded  bool
	CostCents core.Money
}

// Composer renders reply drafts.
type Composer struct {
	opts      Options
	model     ModelInvoker
	templates map[core.IntentCategory]*template.Template
}

// New creates a composer. The model invoker may be nil; turns that would
// need generation then fall back to a clarification request.
func New(model ModelInvoker, optFns ...func(o *Options)) *Composer {
	opts := Options{
		Persona:   "You are a concise, friendly customer support agent for an online retailer.",
		MaxTokens: 400,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Composer{
		opts:      opts,
		model:     model,
		templates: buildTemplates(),
	}
}

type templateData struct {
	OrderID string
	Total   string
	Status  string
	Fields  map[string]string
	RMA     string
}

func buildTemplates() map[core.IntentCategory]*template.Template {
	parse := func(name, text string) *template.Template {
		return template.Must(template.New(name).Parse(text))
	}
	return map[core.IntentCategory]*template.Template{
		core.IntentOrderStatus: parse("order-status",
			`Your order #{{.OrderID}} is currently {{.Status}}.{{if .Fields.carrier}} It shipped via {{.Fields.carrier}} (tracking {{.Fields.tracking}}).{{end}} The order total is ${{.Total}}. Anything else I can help with?`),
		core.IntentReturnRequest: parse("return-approved",
			`Your return for order #{{.OrderID}} (${{.Total}}) has been approved. Your reference number is {{.RMA}}. Please use it on the prepaid label we are emailing you, and drop the package at any carrier location within 30 days.`),
		core.IntentRefundRequest: parse("refund-confirmed",
			`Your refund of ${{.Total}} for order #{{.OrderID}} has been initiated. Refunds are issued to the original payment method within 5-7 business days.`),
		core.IntentShippingQuestion: parse("shipping-policy",
			`{{.Fields.text}}`),
		core.IntentProductQuestion: parse("product-info",
			`{{.Fields.description}}`),
	}
}

// Compose renders the reply for a turn. Escalated turns get a handoff
// acknowledgment; template intents render from knowledge; anything else goes
// through the model. Missing knowledge produces a clarification request, not
// a placeholder.
func (c *Composer) Compose(ctx context.Context, in Inputs) (Draft, error) {
	if in.Decision.Escalate {
		return Draft{Text: handoffText(in.Decision), Source: "handoff"}, nil
	}

	if tmpl, ok := c.templates[in.Intent.Category]; ok {
		if in.Knowledge == nil {
			return Draft{Text: clarificationText(in.Intent.Category), Source: "clarification"}, nil
		}
		text, err := render(tmpl, in)
		if err != nil {
			return Draft{}, fmt.Errorf("render %s: %w", in.Intent.Category, err)
		}
		return Draft{Text: text, Source: "template"}, nil
	}

	return c.generate(ctx, in)
}

func render(tmpl *template.Template, in Inputs) (string, error) {
	data := templateData{
		Fields: in.Knowledge.Fields,
	}
	if in.Knowledge.Kind == "order" {
		data.OrderID = in.Knowledge.OrderID
		data.Total = in.Knowledge.TotalCents.String()
		data.Status = in.Knowledge.Status
	}
	if in.Intent.Category == core.IntentReturnRequest {
		data.RMA = rmaReference(in.TaskID)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (c *Composer) generate(ctx context.Context, in Inputs) (Draft, error) {
	if c.model == nil {
		return Draft{Text: clarificationText(in.Intent.Category), Source: "clarification", Degraded: true}, nil
	}

	instructions := c.opts.Persona + " Answer the customer using only facts you are given. If you do not know, say so and offer to connect them with a specialist."
	input := in.Text
	if in.Knowledge != nil {
		input = fmt.Sprintf("%s\n\nKnown facts: %s", in.Text, formatFields(in.Knowledge))
	}

	resp, err := c.model.Invoke(ctx, gateway.CapabilityGenerate, gateway.Request{
		Agent:        "composer",
		Input:        input,
		Instructions: instructions,
		MaxTokens:    c.opts.MaxTokens,
	})
	if err != nil {
		return Draft{}, err
	}
	return Draft{Text: resp.Text, Source: "model", Degraded: resp.Degraded, CostCents: resp.CostCents}, nil
}

// formatFields renders knowledge facts in a stable order so the same turn
// always produces the same generation input.
func formatFields(rec *core.KnowledgeRecord) string {
	parts := []string{}
	if rec.OrderID != "" {
		parts = append(parts, "order="+rec.OrderID, "total=$"+rec.TotalCents.String(), "status="+rec.Status)
	}
	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+rec.Fields[k])
	}
	return strings.Join(parts, ", ")
}

// rmaReference derives a short, stable reference from the task id so a
// redelivered task produces the same reference.
func rmaReference(taskID string) string {
	cleaned := strings.ToUpper(strings.ReplaceAll(taskID, "-", ""))
	if len(cleaned) > 6 {
		cleaned = cleaned[:6]
	}
	if cleaned == "" {
		cleaned = strings.ToUpper(strings.ReplaceAll(core.NewID(), "-", ""))[:6]
	}
	return "RMA-" + cleaned
}

func handoffText(d core.EscalationDecision) string {
	switch d.Reason {
	case core.ReasonHighValue:
		return "Because of the amount involved, I've routed your request to a specialist who can approve it. They will follow up with you shortly."
	case core.ReasonNegativeSentiment:
		return "I'm sorry about the trouble. I've connected you with a member of our support team who will take it from here."
	case core.ReasonPolicyBlock:
		return "I'm not able to help with that request directly. A member of our support team will review it and follow up with you."
	case core.ReasonSystemError:
		return "Something went wrong on our side while handling your request. A member of our support team will follow up with you shortly."
	default:
		return "I've passed your request to a member of our support team who will follow up with you shortly."
	}
}

func clarificationText(cat core.IntentCategory) string {
	switch cat {
	case core.IntentOrderStatus, core.IntentReturnRequest, core.IntentRefundRequest:
		return "I'd be happy to help with that. Could you share your order number so I can look it up?"
	case core.IntentProductQuestion:
		return "Happy to help. Could you tell me which product you're asking about?"
	default:
		return "Could you share a bit more detail so I can help you with that?"
	}
}
