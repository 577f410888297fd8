package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrTooPrecise     = errors.New("amount has more than two decimal places")
	ErrTooLarge       = fmt.Errorf("%w: out of range", ErrInvalidAmount)
)

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// toMinor shifts a two-place decimal into minor units, refusing values an
// int64 cannot hold.
func toMinor(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Round(2)) {
		return 0, ErrTooPrecise
	}
	m := d.Shift(2)
	if m.GreaterThan(maxMinor) || m.LessThan(minMinor) {
		return 0, ErrTooLarge
	}
	return m.IntPart(), nil
}

// ParseMinor turns a decimal string such as "25.5" into minor units (2550).
func ParseMinor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	return toMinor(d)
}

// Amount is a minor-unit value rendered as a JSON number with two decimals.
type Amount int64

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts the number written by MarshalJSON, so cached
// payloads round-trip.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	m, err := toMinor(d)
	if err != nil {
		return err
	}
	*a = Amount(m)
	return nil
}

var symbols = map[string]string{
	"GHS": "₵",
	"NGN": "₦",
	"USD": "$",
	"ZAR": "R",
	"KES": "KSh",
}

// Format renders minor units for display, e.g. Format(2550, "GHS") = "₵25.50".
func Format(minor int64, currency string) string {
	amt := Amount(minor).String()
	if sym, ok := symbols[strings.ToUpper(currency)]; ok {
		return sym + amt
	}
	return strings.ToUpper(currency) + " " + amt
}
