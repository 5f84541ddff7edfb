package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of minor-unit digits amounts are kept at.
const AmountScale = 2

// ParseAmount converts a wire amount into a decimal. Missing, malformed,
// zero, and negative values, as well as values finer than the minor-unit
// scale, are all reported as ErrInvalidAmount.
func ParseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := validateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.Exponent() < -AmountScale {
		return ErrInvalidAmount
	}
	return nil
}
