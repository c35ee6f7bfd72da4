// Package types provides quantity and money primitives shared by the ledger.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Quantity is a stock quantity with exact decimal arithmetic.
// Stored as NUMERIC in Postgres.
type Quantity = decimal.Decimal

// Money represents a unit price with full precision.
type Money = decimal.Decimal

// QuantityEpsilon is the tolerance below which a shortfall counts as satisfied.
var QuantityEpsilon = decimal.New(1, -9)

// Zero returns a zero quantity.
func Zero() Quantity {
	return decimal.Zero
}

// NewQuantity creates a quantity from an integer amount.
func NewQuantity(v int64) Quantity {
	return decimal.NewFromInt(v)
}

// NewQuantityFromFloat creates a quantity from a float.
// WARNING: Use ParseQuantity for values coming from users.
func NewQuantityFromFloat(f float64) Quantity {
	return decimal.NewFromFloat(f)
}

// ParseQuantity parses a decimal string.
func ParseQuantity(s string) (Quantity, error) {
	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return q, nil
}

// MustQuantity parses a decimal string, panics on error.
// Use only for constants and tests.
func MustQuantity(s string) Quantity {
	return decimal.RequireFromString(s)
}

// IsNegligible reports whether q is within QuantityEpsilon of zero.
func IsNegligible(q Quantity) bool {
	return q.Abs().LessThanOrEqual(QuantityEpsilon)
}

// Min returns the smaller of two quantities.
func Min(a, b Quantity) Quantity {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Sum adds quantities.
func Sum(qs ...Quantity) Quantity {
	total := decimal.Zero
	for _, q := range qs {
		total = total.Add(q)
	}
	return total
}
