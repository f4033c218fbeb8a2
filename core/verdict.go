package core

// VerdictCategory classifies what a content scan found.
type VerdictCategory string

const (
	// VerdictNone means the text passed all checks.
	VerdictNone VerdictCategory = "none"
	// VerdictInjection covers prompt-injection and instruction-override attempts.
	VerdictInjection VerdictCategory = "injection"
	// VerdictPII covers leaked personally identifiable information.
	VerdictPII VerdictCategory = "pii"
	// VerdictProfanity covers disallowed language.
	VerdictProfanity VerdictCategory = "profanity"
	// VerdictDisclosure covers system-internal information disclosure.
	VerdictDisclosure VerdictCategory = "disclosure"
)

// ValidationVerdict is the result of one content scan. Two independent
// verdicts exist per turn: pre-validation on the inbound text and
// post-validation on the generated reply.
//
// Invariant: a blocked pre-validation verdict prevents the pipeline from
// invoking the Response Composer.
type ValidationVerdict struct {
	Blocked    bool            `json:"blocked"`
	Category   VerdictCategory `json:"category"`
	Confidence float64         `json:"confidence"`
	// Sensitive flags emotionally charged or distressing content that must
	// escalate to a human without blocking the turn.
	Sensitive bool `json:"sensitive,omitempty"`
	// Suggestion optionally carries a redacted or rewritten form of the text.
	Suggestion string `json:"suggestion,omitempty"`
	// Pattern names the matcher that fired, for analytics and tuning.
	Pattern string `json:"pattern,omitempty"`
}

// CleanVerdict returns a passing verdict.
func CleanVerdict() ValidationVerdict {
	return ValidationVerdict{Blocked: false, Category: VerdictNone, Confidence: 1.0}
}
