package arith

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
)

// AddBasePrefix normalizes digits to carry the literal prefix for base:
// "0b" for 2, "0" for 8, "0x" for 16 and nothing for 10. Empty input yields
// "0". Input that already carries the prefix, or is a single digit, is
// returned unchanged.
func AddBasePrefix(digits string, base int) (string, error) {
	if digits == "" {
		return "0", nil
	}
	prefix, err := basePrefix(base)
	if err != nil {
		return "", err
	}
	if len(digits) <= 1 || strings.HasPrefix(digits, prefix) {
		return digits, nil
	}
	return prefix + digits, nil
}

func basePrefix(base int) (string, error) {
	switch base {
	case 2:
		return "0b", nil
	case 8:
		return "0", nil
	case 10:
		return "", nil
	case 16:
		return "0x", nil
	default:
		return "", errors.Wrapf(cml.ErrInvalidBase, "base %d", base)
	}
}

// Format renders x in base with its literal prefix, so Parse reads it back.
func Format(x *big.Int, base int) (string, error) {
	prefix, err := basePrefix(base)
	if err != nil {
		return "", err
	}
	s := x.Text(base)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if base == 8 && s == "0" {
		s = ""
	}
	s = prefix + s
	if neg {
		s = "-" + s
	}
	return s, nil
}

// Parse reads a decimal or prefixed ("0b", "0o", "0", "0x") integer.
func Parse(s string) (*big.Int, error) {
	x, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok {
		return nil, errors.Wrapf(cml.ErrInvalidBase, "cannot parse %q", s)
	}
	return x, nil
}

// MustParse is Parse for constants. It panics on malformed input.
func MustParse(s string) *big.Int {
	x, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return x
}
