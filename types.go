// Package cml is a cryptographic mathematics toolkit.
//
// WARNING: arithmetic in this module is NOT constant-time unless a hardened
// code path is requested explicitly, and RSA is textbook RSA without padding.
// DO NOT use it to protect sensitive data.
package cml

import (
	"context"
	"math/big"
)

// SecurityLevel names a parameter set.
type SecurityLevel string

const (
	// CML16 is a toy level for demonstrations.
	CML16 SecurityLevel = "CML-16"
	// CML32 is a toy level for demonstrations.
	CML32 SecurityLevel = "CML-32"
	// CML64 fits the fixed-width 64-bit arithmetic path.
	CML64 SecurityLevel = "CML-64"
	// CML512 is the smallest level backed by well-known groups.
	CML512 SecurityLevel = "CML-512"
	// CML1024 matches the smallest RFC 5054 group.
	CML1024 SecurityLevel = "CML-1024"
	// CML2048 is the recommended level.
	CML2048 SecurityLevel = "CML-2048"
)

// Params is a named parameter set for one security level.
type Params struct {
	Level SecurityLevel
	// Width is the bit-width of generated primes.
	Width Width
	// Witnesses is the Miller-Rabin round count; 0 uses the candidate bit-length.
	Witnesses int
	// MaxAttempts caps candidate draws per prime search; 0 means unbounded.
	MaxAttempts int
	// SaltLength is the SRP6 salt length in characters.
	SaltLength int
	// GroupBits selects a well-known SRP6 group; 0 generates N and g.
	GroupBits int
	// Hardened selects constant-time exponentiation for secret exponents.
	Hardened bool
}

// =============================================================================
// Numeric widening
// =============================================================================

// Width is an operand width in bits.
type Width uint

// Widen returns the accumulator width needed to hold the product of two
// operands of width w without overflow.
func (w Width) Widen() Width {
	return w * 2
}

// Words returns the number of machine words needed to hold w bits.
func (w Width) Words() int {
	const wordBits = 32 << (^uint(0) >> 63)
	return (int(w) + wordBits - 1) / wordBits
}

// WidthOf returns the bit-length of x as a Width.
func WidthOf(x *big.Int) Width {
	return Width(x.BitLen())
}

// =============================================================================
// Capabilities
// =============================================================================

// RandomSource produces uniform random integers.
//
// Implementations are not required to be safe for concurrent use. Wrap a
// shared instance with rng.WithPolicy(src, rng.Exclusive) or give every
// goroutine its own source.
type RandomSource interface {
	// Draw returns a uniform value with at most Width() bits.
	Draw() (*big.Int, error)
	// DrawRange returns a uniform value in [min, max].
	DrawRange(min, max *big.Int) (*big.Int, error)
	// Width is the bit-width of a full Draw.
	Width() Width
}

// PrimeGenerator produces probable primes.
type PrimeGenerator interface {
	Generate(ctx context.Context) (*big.Int, error)
	// Width is the exact bit-length of generated values.
	Width() Width
}

// PrimalityOracle decides whether n is (probably) prime.
type PrimalityOracle interface {
	IsPrime(n *big.Int) (bool, error)
}

// =============================================================================
// Diffie-Hellman
// =============================================================================

// SecurityBase holds the shared public parameters of a key exchange.
type SecurityBase struct {
	G *big.Int // generator, a primitive root mod P
	P *big.Int // prime modulus
}

// Ready reports whether both parameters are set and non-zero.
func (b SecurityBase) Ready() bool {
	return b.G != nil && b.P != nil && b.G.Sign() != 0 && b.P.Sign() != 0
}

// DHPublicKey is a party's published value v = g^a mod p.
type DHPublicKey struct {
	V *big.Int
}

// DHPrivateKey is a party's secret exponent.
type DHPrivateKey struct {
	A *big.Int
}

// =============================================================================
// RSA
// =============================================================================

// RSAPublicKey is the public half of an RSA keypair.
type RSAPublicKey struct {
	E *big.Int
	N *big.Int
}

// RSAPrivateKey is the private half of an RSA keypair.
type RSAPrivateKey struct {
	D *big.Int
	N *big.Int
}

// =============================================================================
// SRP6
// =============================================================================

// SRP6SecurityBase holds SRP6 domain parameters.
type SRP6SecurityBase struct {
	N *big.Int // safe prime
	G *big.Int // generator mod N
	K *big.Int // multiplier
}

// SRP6ServerData is the password verifier record kept by the server.
type SRP6ServerData struct {
	Salt string
	X    *big.Int // H(salt, password); never persisted
	V    *big.Int // g^x mod N
}

// SRP6ClientPublicKey is the first message of a session, client to server.
type SRP6ClientPublicKey struct {
	Identifier string
	A          *big.Int
}

// SRP6ServerPublicKey is the server's reply.
type SRP6ServerPublicKey struct {
	Salt string
	B    *big.Int
}

// SRP6PrivateKey is the derived session key K = H(S).
type SRP6PrivateKey struct {
	K *big.Int
}
