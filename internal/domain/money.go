package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is a base-10 fixed-point amount with exactly two fractional digits,
// stored internally as minor units (cents). It is never represented as a
// float anywhere in the pipeline.
type Money struct {
	cents int64
}

// Zero is the additive identity.
var Zero = Money{}

// NewMoneyFromCents builds a Money directly from minor units.
func NewMoneyFromCents(cents int64) Money {
	return Money{cents: cents}
}

// ParseMoney parses a decimal string ("1000.00", "5", "5.5") into Money.
// It rejects more than two fractional digits so callers never silently
// truncate precision.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("money: empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac {
		if len(frac) > 2 {
			return Money{}, fmt.Errorf("money: more than two fractional digits in %q", s)
		}
		for len(frac) < 2 {
			frac += "0"
		}
	} else {
		frac = "00"
	}

	if whole == "" {
		whole = "0"
	}

	wholeVal, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	fracVal, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}

	cents := wholeVal*100 + fracVal
	if neg {
		cents = -cents
	}
	return Money{cents: cents}, nil
}

// Cents returns the underlying minor-unit integer (used for the
// integer-cents shadow counters the limits service keeps in the cache).
func (m Money) Cents() int64 { return m.cents }

func (m Money) String() string {
	neg := m.cents < 0
	c := m.cents
	if neg {
		c = -c
	}
	s := fmt.Sprintf("%d.%02d", c/100, c%100)
	if neg {
		return "-" + s
	}
	return s
}

func (m Money) Add(other Money) Money { return Money{cents: m.cents + other.cents} }
func (m Money) Sub(other Money) Money { return Money{cents: m.cents - other.cents} }

// MulFrac scales m by numerator/denominator, rounding down (floor), used to
// compute percentage thresholds such as 0.9×max or 0.95×max without floats.
func (m Money) MulFrac(numerator, denominator int64) Money {
	if denominator == 0 {
		return Money{}
	}
	return Money{cents: (m.cents * numerator) / denominator}
}

func (m Money) Cmp(other Money) int {
	switch {
	case m.cents < other.cents:
		return -1
	case m.cents > other.cents:
		return 1
	default:
		return 0
	}
}

func (m Money) GTE(other Money) bool { return m.Cmp(other) >= 0 }
func (m Money) GT(other Money) bool  { return m.Cmp(other) > 0 }
func (m Money) LTE(other Money) bool { return m.Cmp(other) <= 0 }
func (m Money) LT(other Money) bool  { return m.Cmp(other) < 0 }
func (m Money) IsPositive() bool     { return m.cents > 0 }

// MarshalJSON encodes Money as a JSON string ("1000.00") so API consumers
// never parse a float.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string ("1000.00") or a bare number
// literal, rejecting anything with more than two fractional digits.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
