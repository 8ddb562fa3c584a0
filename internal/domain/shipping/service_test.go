package shipping

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
)

func newCalculator() *Calculator {
	return NewCalculator(config.ShippingConfig{
		Rates: map[string]decimal.Decimal{
			"1":  decimal.NewFromInt(1500),
			"14": decimal.NewFromInt(1200),
			"5":  decimal.NewFromInt(3500),
		},
		DefaultRate: decimal.NewFromInt(3000),
	})
}

func TestQuote(t *testing.T) {
	calc := newCalculator()

	tests := []struct {
		postalCode string
		want       int64
	}{
		{postalCode: "1000", want: 1500},
		{postalCode: "1406", want: 1200},
		{postalCode: "5000", want: 3500},
		{postalCode: "9410", want: 3000},
		{postalCode: " 1406 ", want: 1200},
	}

	for _, tt := range tests {
		t.Run(tt.postalCode, func(t *testing.T) {
			got, err := calc.Quote(tt.postalCode)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s", got)
		})
	}
}

func TestQuote_InvalidPostalCode(t *testing.T) {
	calc := newCalculator()

	for _, code := range []string{"", "123", "12345", "ab12", "12 4"} {
		_, err := calc.Quote(code)
		assert.ErrorIs(t, err, ErrInvalidPostalCode, code)
	}
}
