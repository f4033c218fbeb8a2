package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is an exact monetary amount in integer cents (USD). Threshold
// comparisons on refund and return totals must never pass through floating
// point, so all arithmetic stays in int64.
type Money int64

// ParseMoney parses a decimal string like "29.99", "$86.37" or "50" into
// cents. At most two fraction digits are accepted; a lone fraction digit is
// treated as tenths ("4.5" -> 450).
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two fraction digits", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return Money(cents), nil
}

// Cents returns the raw cent count.
func (m Money) Cents() int64 { return int64(m) }

// Dollars returns a float64 representation for display and metadata only.
// Never use the result in comparisons.
func (m Money) Dollars() float64 { return float64(m) / 100 }

// String formats the amount as a plain decimal, e.g. "29.99".
func (m Money) String() string {
	c := int64(m)
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
