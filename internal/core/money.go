// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals in the domain and integer minor units
// (cents) at the storage boundary.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a positive amount with either a dot (12.34) or a comma
// (12,34) as decimal separator and rounds half-up to two places.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FromCents converts stored minor units to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents converts a decimal amount to minor units, rounding half-up.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FormatAmount renders an amount with two decimals for notifications.
func FormatAmount(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Availability is what remains of a category budget for a month. Unlimited
// is a distinct state used when no budget is defined; Remaining is
// meaningless in that case and may be negative otherwise.
type Availability struct {
	Unlimited bool
	Remaining decimal.Decimal
}

func UnlimitedAvailability() Availability {
	return Availability{Unlimited: true}
}

func LimitedAvailability(remaining decimal.Decimal) Availability {
	return Availability{Remaining: remaining}
}

// Covers reports whether amount fits in what is available.
func (a Availability) Covers(amount decimal.Decimal) bool {
	if a.Unlimited {
		return true
	}
	return a.Remaining.GreaterThanOrEqual(amount)
}

func (a Availability) String() string {
	if a.Unlimited {
		return "unlimited"
	}
	return FormatAmount(a.Remaining)
}
