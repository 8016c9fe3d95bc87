package cml

import "github.com/pkg/errors"

var (
	// ErrBaseNotGenerated is returned when a protocol runs before its security base exists.
	ErrBaseNotGenerated = errors.New("security base is not generated")

	// ErrKeyNotGenerated is returned when a key pair is used before Generate.
	ErrKeyNotGenerated = errors.New("key pair is not generated")

	// ErrInvalidBase indicates an unsupported number base.
	ErrInvalidBase = errors.New("invalid number base")

	// ErrInvalidPolicy indicates an unknown random source access policy.
	ErrInvalidPolicy = errors.New("invalid access policy")

	// ErrInvalidRange indicates max < min in a bounded draw.
	ErrInvalidRange = errors.New("invalid random range")

	// ErrInvalidWidth indicates a bit-width outside the supported bounds.
	ErrInvalidWidth = errors.New("invalid bit-width")

	// ErrMessageTooLarge indicates an RSA message not strictly less than n.
	ErrMessageTooLarge = errors.New("message must be less than modulus")

	// ErrNotCoprime indicates a value with no inverse modulo m.
	ErrNotCoprime = errors.New("values are not coprime")

	// ErrZeroPublicKey indicates a peer public value congruent to 0.
	ErrZeroPublicKey = errors.New("public key is zero modulo N")

	// ErrSearchExhausted indicates a search loop hit its attempt cap.
	ErrSearchExhausted = errors.New("search exhausted")

	// ErrAuthentication indicates mismatched SRP6 session proofs.
	ErrAuthentication = errors.New("authentication failed")
)
