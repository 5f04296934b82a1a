// Package units converts between human-readable decimal currency amounts and
// the integer smallest-unit representation used on chain.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// EtherDecimals is the decimal precision of ETH and most EVM native currencies.
const EtherDecimals = 18

var (
	ErrEmpty          = errors.New("units: empty amount")
	ErrInvalidDecimal = errors.New("units: invalid decimal amount")
	ErrTooPrecise     = errors.New("units: fractional component exceeds decimals")
)

// ToSmallest parses a non-negative decimal string such as "1.5" into its
// smallest-unit integer, e.g. 1500000000000000000 for 18 decimals.
func ToSmallest(amount string, decimals int) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, ErrEmpty
	}
	if decimals < 0 {
		return nil, fmt.Errorf("units: negative decimals %d", decimals)
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if hasDot && whole == "" && frac == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecimal, amount)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecimal, amount)
	}

	frac = strings.TrimRight(frac, "0")
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d places", ErrTooPrecise, amount, decimals)
	}

	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return new(big.Int), nil
	}

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecimal, amount)
	}
	return v, nil
}

// FromSmallest renders a smallest-unit integer as a decimal string. Trailing
// zeros are trimmed but at least one fractional digit is kept ("2.0").
func FromSmallest(v *big.Int, decimals int) string {
	if v == nil {
		return "0.0"
	}

	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	s := abs.String()

	if decimals <= 0 {
		if neg {
			return "-" + s + ".0"
		}
		return s + ".0"
	}

	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole := s[:len(s)-decimals]
	frac := strings.TrimRight(s[len(s)-decimals:], "0")
	if frac == "" {
		frac = "0"
	}

	out := whole + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// FormatFixed renders v with exactly places fractional digits, rounding half
// up, e.g. a balance shown as "1.2346".
func FormatFixed(v *big.Int, decimals, places int) string {
	if v == nil {
		v = new(big.Int)
	}
	if places > decimals {
		places = decimals
	}
	if places < 0 {
		places = 0
	}

	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)

	// Scale down to `places` digits with half-up rounding.
	drop := decimals - places
	if drop > 0 {
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(drop)), nil)
		half := new(big.Int).Rsh(div, 1)
		abs.Add(abs, half)
		abs.Quo(abs, div)
	}

	s := abs.String()
	if places > 0 {
		if len(s) <= places {
			s = strings.Repeat("0", places-len(s)+1) + s
		}
		s = s[:len(s)-places] + "." + s[len(s)-places:]
	}
	if neg && abs.Sign() != 0 {
		s = "-" + s
	}
	return s
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
