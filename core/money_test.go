package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  Money
		isErr bool
	}{
		{name: "plain decimal", in: "29.99", want: 2999},
		{name: "dollar sign", in: "$86.37", want: 8637},
		{name: "whole dollars", in: "50", want: 5000},
		{name: "trailing dot", in: "12.", want: 1200},
		{name: "single fraction digit", in: "4.5", want: 450},
		{name: "boundary value", in: "50.00", want: 5000},
		{name: "one cent over", in: "50.01", want: 5001},
		{name: "negative", in: "-3.25", want: -325},
		{name: "whitespace", in: "  $7.00 ", want: 700},
		{name: "too many fraction digits", in: "1.999", isErr: true},
		{name: "empty", in: "", isErr: true},
		{name: "garbage", in: "abc", isErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.isErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "29.99", Money(2999).String())
	assert.Equal(t, "50.00", Money(5000).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "-3.25", Money(-325).String())
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, s := range []string{"0.00", "0.01", "49.99", "50.00", "50.01", "86.37", "12345.67"} {
		m, err := ParseMoney(s)
		require.NoError(t, err)
		assert.Equal(t, s, m.String())
	}
}
