// Package intent maps raw customer text to a typed Intent plus extracted
// entities. Classification is layered: an ordered table of deterministic
// rules is evaluated first, and only unmatched text falls through to a
// model-assisted call through the gateway. Entity extraction runs alongside
// rule matching and populates the Intent regardless of which path decided
// the category.
package intent

import (
	"regexp"
	"strings"

	"github.com/replypipe/replypipe/core"
)

// Rule is one entry in the ordered, data-driven classification table.
// Lower Priority values are evaluated first. When several rules of equal
// priority match, the one with the longest matched keyword wins; this
// tie-break is deterministic and covered by tests.
type Rule struct {
	Name       string
	Keywords   []string
	Pattern    *regexp.Regexp
	Intent     core.IntentCategory
	Confidence float64
	Priority   int
}

// match reports whether the rule fires on the lowercased text and the length
// of the longest matched keyword (pattern matches count their match length).
func (r Rule) match(lower string) (bool, int) {
	best := 0
	for _, kw := range r.Keywords {
		if strings.Contains(lower, kw) && len(kw) > best {
			best = len(kw)
		}
	}
	if r.Pattern != nil {
		if m := r.Pattern.FindString(lower); m != "" && len(m) > best {
			best = len(m)
		}
	}
	return best > 0, best
}

// DefaultRules returns the standard rule table. Order inside the slice is
// irrelevant; Priority and match length decide.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "human-request",
			Keywords:   []string{"speak to a human", "talk to a human", "real person", "speak to a manager", "talk to a manager", "human agent", "representative"},
			Intent:     core.IntentHumanRequest,
			Confidence: 0.95,
			Priority:   1,
		},
		{
			Name:       "refund",
			Keywords:   []string{"refund", "money back", "charge back", "chargeback"},
			Intent:     core.IntentRefundRequest,
			Confidence: 0.9,
			Priority:   2,
		},
		{
			Name:       "return",
			Keywords:   []string{"return", "send back", "send it back", "exchange"},
			Intent:     core.IntentReturnRequest,
			Confidence: 0.9,
			Priority:   2,
		},
		{
			Name:       "order-status",
			Keywords:   []string{"where is my order", "order status", "track my order", "tracking number", "hasn't arrived", "has not arrived"},
			Intent:     core.IntentOrderStatus,
			Confidence: 0.9,
			Priority:   2,
		},
		{
			Name:       "shipping",
			Keywords:   []string{"shipping", "delivery", "deliver", "ship to", "expedited"},
			Intent:     core.IntentShippingQuestion,
			Confidence: 0.8,
			Priority:   3,
		},
		{
			Name:       "product",
			Keywords:   []string{"in stock", "size", "color", "colour", "material", "dimensions", "compatible"},
			Intent:     core.IntentProductQuestion,
			Confidence: 0.75,
			Priority:   3,
		},
		{
			Name:       "complaint",
			Keywords:   []string{"terrible", "awful", "worst", "unacceptable", "furious", "disappointed", "never shopping"},
			Intent:     core.IntentComplaint,
			Confidence: 0.8,
			Priority:   3,
		},
	}
}

// evaluate runs the table against text and returns the winning rule, if any.
// First by ascending priority; ties broken by longest matched keyword, then
// by rule name for total determinism.
func evaluate(rules []Rule, text string) (Rule, bool) {
	lower := strings.ToLower(text)

	var (
		winner   Rule
		found    bool
		bestPrio int
		bestLen  int
	)
	for _, r := range rules {
		ok, l := r.match(lower)
		if !ok {
			continue
		}
		if !found ||
			r.Priority < bestPrio ||
			(r.Priority == bestPrio && l > bestLen) ||
			(r.Priority == bestPrio && l == bestLen && r.Name < winner.Name) {
			winner, found, bestPrio, bestLen = r, true, r.Priority, l
		}
	}
	return winner, found
}
