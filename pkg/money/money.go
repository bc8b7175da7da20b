// Package money provides decimal arithmetic for currency amounts with an
// explicit rounding mode on every operation.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyScale is the number of fractional digits kept for currency amounts.
const CurrencyScale int32 = 2

// DefaultCurrency is used whenever a user or record carries no currency.
const DefaultCurrency = "PHP"

// ErrDivideByZero is returned by Divide when the divisor is zero.
var ErrDivideByZero = errors.New("division by zero")

// RoundingMode selects how a result is reduced to the requested scale.
type RoundingMode string

const (
	RoundUp       RoundingMode = "UP"        // away from zero
	RoundDown     RoundingMode = "DOWN"      // toward zero
	RoundCeiling  RoundingMode = "CEILING"   // toward +inf
	RoundFloor    RoundingMode = "FLOOR"     // toward -inf
	RoundHalfUp   RoundingMode = "HALF_UP"   // nearest, ties away from zero
	RoundHalfDown RoundingMode = "HALF_DOWN" // nearest, ties toward zero
	RoundHalfEven RoundingMode = "HALF_EVEN" // nearest, ties to even
)

// ParseRoundingMode converts a case-insensitive name into a RoundingMode.
// An empty name yields RoundUp.
func ParseRoundingMode(name string) (RoundingMode, error) {
	if name == "" {
		return RoundUp, nil
	}
	mode := RoundingMode(strings.ToUpper(strings.TrimSpace(name)))
	switch mode {
	case RoundUp, RoundDown, RoundCeiling, RoundFloor, RoundHalfUp, RoundHalfDown, RoundHalfEven:
		return mode, nil
	}
	return "", fmt.Errorf("unknown rounding mode: %q", name)
}

// Round reduces d to places fractional digits using mode.
func Round(d decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	switch mode {
	case RoundDown:
		return d.RoundDown(places)
	case RoundCeiling:
		return d.RoundCeil(places)
	case RoundFloor:
		return d.RoundFloor(places)
	case RoundHalfUp:
		return d.Round(places)
	case RoundHalfDown:
		return roundHalfDown(d, places)
	case RoundHalfEven:
		return d.RoundBank(places)
	default:
		return d.RoundUp(places)
	}
}

func roundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	truncated := d.Truncate(places)
	remainder := d.Sub(truncated).Abs()
	half := decimal.New(5, -(places + 1))
	if remainder.Equal(half) {
		return truncated
	}
	return d.Round(places)
}

// Add returns a+b rounded to places.
func Add(a, b decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	return Round(a.Add(b), places, mode)
}

// Subtract returns a-b rounded to places.
func Subtract(a, b decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	return Round(a.Sub(b), places, mode)
}

// Multiply returns a*b rounded to places.
func Multiply(a, b decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	return Round(a.Mul(b), places, mode)
}

// Divide returns a/b rounded to places.
func Divide(a, b decimal.Decimal, places int32, mode RoundingMode) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, ErrDivideByZero
	}
	// keep enough guard digits for the final rounding step
	q := a.DivRound(b, places+8)
	return Round(q, places, mode), nil
}

// Sum adds all values at full precision and rounds once.
func Sum(values []decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round(total, places, mode)
}

// Debit returns -|d|.
func Debit(d decimal.Decimal) decimal.Decimal {
	return d.Abs().Neg()
}

// Credit returns |d|.
func Credit(d decimal.Decimal) decimal.Decimal {
	return d.Abs()
}

// Parse reads a decimal string such as "1000.50".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// Format renders d with exactly CurrencyScale fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(CurrencyScale)
}

// CurrencyOrDefault returns currency upper-cased, or DefaultCurrency when empty.
func CurrencyOrDefault(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return DefaultCurrency
	}
	return c
}
