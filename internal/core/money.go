// Package core holds the fee ledger's domain types and invariants.
//
// This file contains the Money type and its parsing/formatting helpers.
// Amounts are kept as integer cents internally so that sums are exact;
// conversion to and from decimal strings happens only at the boundary.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a monetary amount with cent precision. The zero value is zero
// money. Money is never represented as a binary float anywhere: parsing,
// formatting and JSON encoding all go through decimal strings.
type Money struct {
	Cents int64
}

// FromCents builds a Money from an integer number of cents.
func FromCents(cents int64) Money {
	return Money{Cents: cents}
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// performs half-up rounding on anything beyond two decimal places. Returns
// ErrInvalidAmount for empty, signed, malformed, zero or negative input.
//
// Examples:
//
//	ParseMoney("500000")    -> 50000000 cents
//	ParseMoney("12,34")     -> 1234 cents
//	ParseMoney("12.346")    -> 1235 cents (rounds up)
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	// Half-up rounding on the third decimal place, then shift to cents.
	shifted := d.Round(2).Shift(2)
	cents := shifted.IntPart()
	// IntPart wraps silently outside the int64 range; the round trip check
	// rejects amounts too large to hold in cents.
	if cents <= 0 || !decimal.NewFromInt(cents).Equal(shifted) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// Decimal returns the amount as a decimal value (e.g. 1234 cents -> 12.34).
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount as a plain decimal string with two places.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m - o. The result may be negative; callers enforce floors.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Cents > 0
}

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool {
	return m.Cents < 0
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// GreaterThan reports m > o.
func (m Money) GreaterThan(o Money) bool {
	return m.Cents > o.Cents
}

// Validate rejects non-positive amounts.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON encodes the amount as a decimal string, e.g. "12.34".
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a decimal string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Tolerate bare numbers in request bodies; they go through the
		// same decimal parsing path as strings.
		s = string(data)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
