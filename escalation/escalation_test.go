package escalation

import (
	"testing"

	"github.com/replypipe/replypipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide_TruthTable(t *testing.T) {
	e := New()

	base := Inputs{Intent: core.IntentOrderStatus, Confidence: 0.9}

	tests := []struct {
		name     string
		mutate   func(in *Inputs)
		escalate bool
		reason   core.EscalationReason
		priority core.Priority
	}{
		{
			"clean turn auto-resolves",
			func(in *Inputs) {},
			false, core.ReasonNone, core.PriorityLow,
		},
		{
			"pre-validation block",
			func(in *Inputs) { in.PreBlocked = true },
			true, core.ReasonPolicyBlock, core.PriorityHigh,
		},
		{
			"post-validation block",
			func(in *Inputs) { in.PostBlocked = true },
			true, core.ReasonPolicyBlock, core.PriorityHigh,
		},
		{
			"amount above threshold",
			func(in *Inputs) { in.HasAmount = true; in.Amount = core.Money(5001) },
			true, core.ReasonHighValue, core.PriorityHigh,
		},
		{
			"amount exactly at threshold stays automated",
			func(in *Inputs) { in.HasAmount = true; in.Amount = core.Money(5000) },
			false, core.ReasonNone, core.PriorityLow,
		},
		{
			"complaint intent",
			func(in *Inputs) { in.Intent = core.IntentComplaint },
			true, core.ReasonNegativeSentiment, core.PriorityNormal,
		},
		{
			"explicit human request",
			func(in *Inputs) { in.Intent = core.IntentHumanRequest },
			true, core.ReasonNegativeSentiment, core.PriorityNormal,
		},
		{
			"sensitive content",
			func(in *Inputs) { in.Sensitive = true },
			true, core.ReasonNegativeSentiment, core.PriorityNormal,
		},
		{
			"confidence below floor",
			func(in *Inputs) { in.Confidence = 0.59 },
			true, core.ReasonLowConfidence, core.PriorityLow,
		},
		{
			"confidence exactly at floor stays automated",
			func(in *Inputs) { in.Confidence = 0.6 },
			false, core.ReasonNone, core.PriorityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			d := e.Decide(in)
			assert.Equal(t, tt.escalate, d.Escalate)
			assert.Equal(t, tt.reason, d.Reason)
			if tt.escalate {
				assert.Equal(t, tt.priority, d.Priority)
			}
		})
	}
}

func TestDecide_Precedence(t *testing.T) {
	e := New()

	// All triggers at once: policy-block wins.
	d := e.Decide(Inputs{
		PreBlocked: true,
		HasAmount:  true,
		Amount:     core.Money(100000),
		Intent:     core.IntentComplaint,
		Confidence: 0.1,
	})
	require.True(t, d.Escalate)
	assert.Equal(t, core.ReasonPolicyBlock, d.Reason)

	// Without the block, high value wins over sentiment and confidence.
	d = e.Decide(Inputs{
		HasAmount:  true,
		Amount:     core.Money(100000),
		Intent:     core.IntentComplaint,
		Confidence: 0.1,
	})
	assert.Equal(t, core.ReasonHighValue, d.Reason)

	// Without the amount, sentiment wins over confidence.
	d = e.Decide(Inputs{
		Intent:     core.IntentComplaint,
		Confidence: 0.1,
	})
	assert.Equal(t, core.ReasonNegativeSentiment, d.Reason)
}

func TestDecide_Monotonic(t *testing.T) {
	e := New()

	// Start from an escalating input and relax unrelated conditions; the
	// decision must never flip back to auto-resolve.
	in := Inputs{
		PreBlocked: true,
		Intent:     core.IntentOrderStatus,
		Confidence: 0.1,
	}
	require.True(t, e.Decide(in).Escalate)

	in.Confidence = 0.99
	assert.True(t, e.Decide(in).Escalate)

	in.Intent = core.IntentGeneralInquiry
	assert.True(t, e.Decide(in).Escalate)
}

func TestDecide_ExactDecimalBoundary(t *testing.T) {
	e := New()

	fifty, err := core.ParseMoney("$50.00")
	require.NoError(t, err)
	justOver, err := core.ParseMoney("$50.01")
	require.NoError(t, err)

	d := e.Decide(Inputs{HasAmount: true, Amount: fifty, Intent: core.IntentRefundRequest, Confidence: 0.9})
	assert.False(t, d.Escalate, "50.00 is not strictly above the threshold")

	d = e.Decide(Inputs{HasAmount: true, Amount: justOver, Intent: core.IntentRefundRequest, Confidence: 0.9})
	assert.True(t, d.Escalate)
	assert.Equal(t, core.ReasonHighValue, d.Reason)
}

func TestDecide_CustomThreshold(t *testing.T) {
	e := New(func(o *Options) {
		o.HighValueThreshold = core.Money(10000)
		o.ConfidenceFloor = 0.8
	})

	d := e.Decide(Inputs{HasAmount: true, Amount: core.Money(9000), Intent: core.IntentOrderStatus, Confidence: 0.85})
	assert.False(t, d.Escalate)

	d = e.Decide(Inputs{Intent: core.IntentOrderStatus, Confidence: 0.75})
	assert.True(t, d.Escalate)
	assert.Equal(t, core.ReasonLowConfidence, d.Reason)
}
