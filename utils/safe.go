// Package utils provides utility functions for cml.
// This file contains bounds checks that keep caller-supplied sizes from
// turning into unbounded work or allocations.

package utils

import (
	"github.com/pkg/errors"
)

// Limits on caller-supplied sizes.
const (
	// MinWidth is the smallest bit-width a prime can have.
	MinWidth = 2

	// MaxWidth is the largest supported operand width in bits.
	MaxWidth = 1 << 14

	// MaxStringLength bounds generated salts and identifiers.
	MaxStringLength = 1 << 12

	// MaxWitnesses bounds the Miller-Rabin round count.
	MaxWitnesses = 1 << 12
)

var (
	// ErrExceedsLimit indicates a value exceeds the allowed limit.
	ErrExceedsLimit = errors.New("value exceeds allowed limit")

	// ErrInvalidLength indicates an invalid length value.
	ErrInvalidLength = errors.New("invalid length")
)

// CheckLength validates that length is within [0, maxAllowed].
func CheckLength(length, maxAllowed int) error {
	if length < 0 {
		return ErrInvalidLength
	}
	if length > maxAllowed {
		return ErrExceedsLimit
	}
	return nil
}

// CheckPositive validates that value is > 0.
func CheckPositive(value int, name string) error {
	if value <= 0 {
		return errors.New(name + " must be positive")
	}
	return nil
}

// CheckWidth validates that width is within [MinWidth, MaxWidth].
func CheckWidth(width int) error {
	if width < MinWidth {
		return errors.Wrapf(ErrInvalidLength, "width %d is below %d bits", width, MinWidth)
	}
	if width > MaxWidth {
		return errors.Wrapf(ErrExceedsLimit, "width %d is above %d bits", width, MaxWidth)
	}
	return nil
}
