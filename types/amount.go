// Package types provides common types used across Paystream.
package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// ErrOverflow is returned when an Amount computation leaves the int64 range.
var ErrOverflow = errors.New("types: arithmetic overflow")

// TokenDecimals is the number of decimal places of the streamed token.
// One whole token is 10^8 smallest units, so an Amount holds up to about
// 92 billion tokens.
const TokenDecimals = 8

// OneToken is one whole token in smallest units.
const OneToken Amount = 100_000_000

// ErrInvalidAmount is returned by ParseAmount for malformed input.
var ErrInvalidAmount = errors.New("types: invalid amount")

// AccountID identifies a ledger participant. The ledger never interprets it.
type AccountID string

// String implements fmt.Stringer.
func (a AccountID) String() string { return string(a) }

// IsZero reports whether the account id is empty.
func (a AccountID) IsZero() bool { return a == "" }

// Amount is a signed quantity of the streamed token in its smallest unit.
// All arithmetic is integer-only and overflow-checked.
type Amount int64

// Rate is an amount streamed per second. Rates are never negative.
type Rate int64

// Add returns a+b or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a-b or ErrOverflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// MulBps returns a*bps/10_000, rounding toward zero.
func (a Amount) MulBps(bps int64) (Amount, error) {
	p, err := mul(int64(a), bps)
	if err != nil {
		return 0, err
	}
	return Amount(p / 10_000), nil
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// IsNegative returns true if the amount is less than zero.
func (a Amount) IsNegative() bool { return a < 0 }

// String returns the amount in smallest units.
func (a Amount) String() string {
	return strconv.FormatInt(int64(a), 10)
}

// Format renders the amount in whole-token units with the given number of
// decimal places, e.g. Amount(1500).Format(3) == "1.500".
func (a Amount) Format(decimals int32) string {
	return decimal.New(int64(a), -decimals).StringFixed(decimals)
}

// Tokens renders the amount in whole tokens at full token precision,
// e.g. Amount(150_000_000).Tokens() == "1.50000000".
func (a Amount) Tokens() string { return a.Format(TokenDecimals) }

// Decimal returns the amount as a decimal in whole-token units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -TokenDecimals)
}

// ParseAmount parses a whole-token quantity such as "2.5" into smallest
// units. More than TokenDecimals fractional digits is rejected, as is any
// value outside the Amount range.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	units := d.Shift(TokenDecimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, TokenDecimals)
	}
	if units.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || units.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, ErrOverflow
	}
	return Amount(units.IntPart()), nil
}

// ParseRate parses a whole-token-per-second rate such as "0.5".
func ParseRate(s string) (Rate, error) {
	a, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}
	if a < 0 {
		return 0, fmt.Errorf("%w: negative rate %q", ErrInvalidAmount, s)
	}
	return Rate(a), nil
}

// Over returns the amount streamed at rate r during seconds, or
// ErrOverflow. Non-positive durations stream nothing.
func (r Rate) Over(seconds int64) (Amount, error) {
	if seconds <= 0 || r == 0 {
		return 0, nil
	}
	p, err := mul(int64(r), seconds)
	if err != nil {
		return 0, err
	}
	return Amount(p), nil
}

// Add returns r+o or ErrOverflow.
func (r Rate) Add(o Rate) (Rate, error) {
	sum, err := Amount(r).Add(Amount(o))
	return Rate(sum), err
}

// Sum adds the given amounts, failing on overflow.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func mul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, ErrOverflow
	}
	return p, nil
}
