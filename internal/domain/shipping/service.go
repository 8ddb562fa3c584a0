// internal/domain/shipping/service.go
package shipping

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-backend/internal/config"
)

var ErrInvalidPostalCode = errors.New("postal code must be exactly 4 digits")

var postalCodePattern = regexp.MustCompile(`^\d{4}$`)

// Calculator quotes shipping from a static table keyed by postal code prefix
type Calculator struct {
	rates       map[string]decimal.Decimal
	defaultRate decimal.Decimal
}

// NewCalculator creates a calculator from the shipping configuration
func NewCalculator(cfg config.ShippingConfig) *Calculator {
	rates := make(map[string]decimal.Decimal, len(cfg.Rates))
	for prefix, rate := range cfg.Rates {
		rates[prefix] = rate
	}
	return &Calculator{
		rates:       rates,
		defaultRate: cfg.DefaultRate,
	}
}

// ValidatePostalCode checks the 4 digit format
func ValidatePostalCode(postalCode string) error {
	if !postalCodePattern.MatchString(postalCode) {
		return ErrInvalidPostalCode
	}
	return nil
}

// Quote returns the rate of the longest matching prefix, or the default rate
func (c *Calculator) Quote(postalCode string) (decimal.Decimal, error) {
	postalCode = strings.TrimSpace(postalCode)
	if err := ValidatePostalCode(postalCode); err != nil {
		return decimal.Zero, err
	}

	for n := len(postalCode); n > 0; n-- {
		if rate, ok := c.rates[postalCode[:n]]; ok {
			return rate, nil
		}
	}
	return c.defaultRate, nil
}
