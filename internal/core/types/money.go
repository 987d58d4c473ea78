// Package types provides the numeric value types used by stock counts and lot costs.
package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Lot unit costs and row totals are Money.
type Money = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// ParseCost parses operator cost input. Empty, non-numeric and negative
// values are rejected.
func ParseCost(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero(), fmt.Errorf("empty cost")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero(), fmt.Errorf("parse cost %q: %w", s, err)
	}
	if d.IsNegative() {
		return Zero(), fmt.Errorf("negative cost %s", d.String())
	}
	return d, nil
}

// LineTotal returns qty × unit rounded to two places.
func LineTotal(qty Quantity, unit Money) Money {
	return qty.Decimal().Mul(unit).Round(2)
}
