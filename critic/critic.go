// Package critic validates text entering and leaving the pipeline. Pre
// validation inspects customer input for prompt-injection attempts and flags
// sensitive or emotionally charged content for escalation. Post validation
// inspects generated output for PII leakage, profanity, and internal
// disclosure before it is allowed out. Both checks are pure functions over
// their input text.
package critic

import (
	"regexp"
	"strings"

	"github.com/replypipe/replypipe/core"
)

// injection patterns cover the three observed attack families: explicit
// instruction override, role reassignment, and logic manipulation that
// weaponizes the agent's helpfulness.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(?:all\s+|your\s+)?(?:previous|prior|above|earlier)\s+(?:instructions|prompts|rules|directions)`),
	regexp.MustCompile(`(?i)disregard\s+(?:all\s+|your\s+)?(?:previous|prior|above|earlier)\s+(?:instructions|prompts|rules)`),
	regexp.MustCompile(`(?i)forget\s+(?:everything|all)\s+(?:you\s+(?:were\s+told|know)|above)`),
	regexp.MustCompile(`(?i)you\s+are\s+(?:now|no\s+longer)\s+(?:a|an|the)?\s*\w+`),
	regexp.MustCompile(`(?i)(?:act|pretend|behave)\s+as\s+(?:if\s+you\s+(?:are|were)|a|an|though)`),
	regexp.MustCompile(`(?i)new\s+(?:system\s+)?(?:instructions|persona|role)\s*:`),
	regexp.MustCompile(`(?i)(?:reveal|print|show|repeat)\s+(?:your\s+)?(?:system\s+prompt|instructions|initial\s+prompt)`),
	regexp.MustCompile(`(?i)a\s+(?:truly\s+)?helpful\s+(?:assistant|agent)\s+would\s+(?:not\s+refuse|comply|do\s+(?:anything|whatever))`),
	regexp.MustCompile(`(?i)if\s+you\s+(?:really\s+)?(?:want(?:ed)?\s+to\s+help|were\s+helpful)\s*,?\s+you\s+would`),
}

// sensitive phrases flag content that needs a human rather than a block:
// distress, legal exposure, safety.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:lawyer|attorney|legal\s+action|sue|lawsuit|court)\b`),
	regexp.MustCompile(`(?i)\b(?:injured|injury|hurt\s+(?:me|myself|someone)|hospital|allergic\s+reaction)\b`),
	regexp.MustCompile(`(?i)\b(?:fraud|stolen|identity\s+theft|unauthorized\s+charge)\b`),
	regexp.MustCompile(`(?i)\b(?:grieving|passed\s+away|funeral|bereavement)\b`),
}

var (
	emailLeakRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneLeakRe = regexp.MustCompile(`\b(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`)
	ssnLeakRe   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	cardLeakRe  = regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`)
)

var profanity = []string{
	"damn", "hell no", "shit", "fuck", "bastard", "asshole",
}

// internal disclosure markers that must never appear in outbound text.
var disclosureMarkers = []string{
	"system prompt", "internal policy id", "api key", "connection string",
	"stack trace", "debug mode", "internal only", "do not share with customer",
}

// ValidatePre inspects customer input. Injection attempts block the turn;
// sensitive content is flagged for mandatory escalation but not blocked.
func ValidatePre(text string) core.ValidationVerdict {
	for _, p := range injectionPatterns {
		if m := p.FindString(text); m != "" {
			return core.ValidationVerdict{
				Blocked:    true,
				Category:   core.VerdictInjection,
				Confidence: 0.95,
				Pattern:    m,
			}
		}
	}

	for _, p := range sensitivePatterns {
		if m := p.FindString(text); m != "" {
			v := core.CleanVerdict()
			v.Sensitive = true
			v.Confidence = 0.8
			v.Pattern = m
			return v
		}
	}

	return core.CleanVerdict()
}

// ValidatePost inspects generated output before delivery. Any hit blocks and
// carries a redaction suggestion where one can be produced mechanically.
func ValidatePost(text string) core.ValidationVerdict {
	if m := ssnLeakRe.FindString(text); m != "" {
		return piiVerdict(text, m, "[redacted-ssn]")
	}
	if m := cardLeakRe.FindString(text); m != "" {
		return piiVerdict(text, m, "[redacted-card]")
	}
	if m := emailLeakRe.FindString(text); m != "" {
		return piiVerdict(text, m, "[redacted-email]")
	}
	if m := phoneLeakRe.FindString(text); m != "" {
		return piiVerdict(text, m, "[redacted-phone]")
	}

	lower := strings.ToLower(text)
	for _, w := range profanity {
		if strings.Contains(lower, w) {
			return core.ValidationVerdict{
				Blocked:    true,
				Category:   core.VerdictProfanity,
				Confidence: 0.9,
				Pattern:    w,
			}
		}
	}
	for _, marker := range disclosureMarkers {
		if strings.Contains(lower, marker) {
			return core.ValidationVerdict{
				Blocked:    true,
				Category:   core.VerdictDisclosure,
				Confidence: 0.9,
				Pattern:    marker,
			}
		}
	}

	return core.CleanVerdict()
}

func piiVerdict(text, match, placeholder string) core.ValidationVerdict {
	return core.ValidationVerdict{
		Blocked:    true,
		Category:   core.VerdictPII,
		Confidence: 0.95,
		Pattern:    match,
		Suggestion: strings.ReplaceAll(text, match, placeholder),
	}
}
