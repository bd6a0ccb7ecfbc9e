package movements

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrMalformedAmount is returned when an amount cell is not a decimal-comma number.
var ErrMalformedAmount = errors.New("malformed amount")

// ParseAmount converts a portal amount like "-1.234,56 €" to a decimal.
// Dots are thousands separators and the comma is the decimal mark.
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), r == '€', r == '.':
			return -1
		case r == ',':
			return '.'
		}
		return r
	}, s)
	if !plainNumber(clean) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	return d, nil
}

// plainNumber reports whether s is an optional sign, digits and at most one
// dot. decimal.NewFromString alone would also take exponents like "1e3".
func plainNumber(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
