package intent

import (
	"regexp"
	"strings"

	"github.com/replypipe/replypipe/core"
)

var (
	orderNumberRe = regexp.MustCompile(`(?i)\border\s*(?:number|no\.?|#)?\s*#?(\d{4,})`)
	amountRe      = regexp.MustCompile(`\$\s*(\d+(?:\.\d{1,2})?)`)
	quantityRe    = regexp.MustCompile(`(?i)\b(\d+)\s*(?:x\b|items?|units?|pieces?|pcs)\b`)
	deadlineRe    = regexp.MustCompile(`(?i)\bby\s+((?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|tomorrow|today|next week|end of (?:the )?(?:day|week|month))|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?)`)
	emailRe       = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// ExtractEntities pulls well-known structured values out of free text. Only
// the first occurrence of each entity kind is kept.
func ExtractEntities(text string) map[string]string {
	entities := map[string]string{}

	if m := orderNumberRe.FindStringSubmatch(text); m != nil {
		entities[core.EntityOrderNumber] = m[1]
	}
	if m := amountRe.FindStringSubmatch(text); m != nil {
		entities[core.EntityAmount] = m[1]
	}
	if m := quantityRe.FindStringSubmatch(text); m != nil {
		entities[core.EntityQuantity] = m[1]
	}
	if m := deadlineRe.FindStringSubmatch(text); m != nil {
		entities[core.EntityDeadline] = strings.TrimSpace(m[1])
	}
	if m := emailRe.FindString(text); m != "" {
		entities[core.EntityEmail] = m
	}

	return entities
}
