package format

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCurrency(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"25", "VES", "Bs. 25.00"},
		{"1234.5", "ves", "Bs. 1,234.50"},
		{"2.5", "USD", "$2.50"},
		{"1234567.891", "USD", "$1,234,567.89"},
		{"-12.3", "USD", "-$12.30"},
		{"0", "EUR", "€0.00"},
		{"10", "COP", "COP 10.00"},
	}
	for _, tc := range cases {
		got := Currency(decimal.RequireFromString(tc.amount), tc.currency)
		assert.Equal(t, tc.want, got, "%s %s", tc.amount, tc.currency)
	}
}

func TestAmountGrouping(t *testing.T) {
	assert.Equal(t, "999.00", Amount(decimal.NewFromInt(999)))
	assert.Equal(t, "1,000.00", Amount(decimal.NewFromInt(1000)))
	assert.Equal(t, "100,000.10", Amount(decimal.RequireFromString("100000.1")))
}

func TestRateAndWeights(t *testing.T) {
	assert.Equal(t, "36.50", Rate(decimal.RequireFromString("36.5")))
	assert.Equal(t, "3", Whole(decimal.NewFromInt(3)))
	assert.Equal(t, "500g", Weight(500))
	assert.Equal(t, "12.5g", Weight(12.5))
	assert.Equal(t, "999g", TotalWeight(999))
	assert.Equal(t, "1.25 kg", TotalWeight(1250))
	assert.Equal(t, "2 kg", TotalWeight(2000))
}
