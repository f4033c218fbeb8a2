package core

// IntentCategory is the closed set of customer intents the pipeline
// understands. New categories require corresponding rule-table and composer
// template entries.
type IntentCategory string

const (
	// IntentOrderStatus asks where an order is.
	IntentOrderStatus IntentCategory = "ORDER_STATUS"
	// IntentReturnRequest asks to return a purchased item.
	IntentReturnRequest IntentCategory = "RETURN_REQUEST"
	// IntentRefundRequest asks for money back without necessarily returning goods.
	IntentRefundRequest IntentCategory = "REFUND_REQUEST"
	// IntentShippingQuestion asks about delivery options, times or costs.
	IntentShippingQuestion IntentCategory = "SHIPPING_QUESTION"
	// IntentProductQuestion asks about catalog items.
	IntentProductQuestion IntentCategory = "PRODUCT_QUESTION"
	// IntentComplaint expresses dissatisfaction without a concrete request.
	IntentComplaint IntentCategory = "COMPLAINT"
	// IntentHumanRequest explicitly asks for a human or manager.
	IntentHumanRequest IntentCategory = "HUMAN_REQUEST"
	// IntentEscalationNeeded is assigned when upstream signals force a handoff.
	IntentEscalationNeeded IntentCategory = "ESCALATION_NEEDED"
	// IntentGeneralInquiry covers everything answerable but uncategorized.
	IntentGeneralInquiry IntentCategory = "GENERAL_INQUIRY"
	// IntentUnknown is the zero-confidence default.
	IntentUnknown IntentCategory = "UNKNOWN"
)

// Intent is the typed result of classifying one customer turn. Produced once
// per turn; never mutated, only superseded by the next turn's classification.
type Intent struct {
	Category   IntentCategory    `json:"category"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities,omitempty"`
	// RuleMatched names the deterministic rule that produced the intent,
	// empty when the model-assisted path decided.
	RuleMatched string `json:"rule_matched,omitempty"`
	// Degraded marks classifications produced by the fallback path while the
	// model provider was unavailable.
	Degraded bool `json:"degraded,omitempty"`
	// CostCents is the estimated upstream spend of the classification, zero
	// on the rule path.
	CostCents Money `json:"cost_cents,omitempty"`
}

// Entity returns the extracted entity value and existence flag.
func (i Intent) Entity(name string) (string, bool) {
	v, ok := i.Entities[name]
	return v, ok
}

// Well-known entity names populated by the classifier's pattern extractors.
const (
	// EntityOrderNumber is the order reference (e.g. "10125").
	EntityOrderNumber = "order_number"
	// EntityAmount is a monetary amount in decimal string form (e.g. "29.99").
	EntityAmount = "amount"
	// EntityQuantity is a bare item count.
	EntityQuantity = "quantity"
	// EntityDeadline is a customer-stated time constraint.
	EntityDeadline = "deadline"
	// EntityEmail is a customer-provided email address.
	EntityEmail = "email"
)
