// Package arith implements the modular arithmetic cml is built on.
//
// Exponentiation multiplies into an accumulator sized at twice the
// modulus width before every reduction, so intermediate products never
// exceed their container. Modulus <= 0 and negative exponents are
// programming errors and panic, as division by zero does in math/big.
package arith

import (
	"math/big"
	"math/bits"

	cml "github.com/BackendStack21/cml-go"
)

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
)

// Modexp returns base^exp mod m by right-to-left square-and-multiply.
// Modexp(_, _, 1) is 0.
func Modexp(base, exp, m *big.Int) *big.Int {
	if m.Sign() <= 0 {
		panic("arith: modulus must be positive")
	}
	if exp.Sign() < 0 {
		panic("arith: negative exponent")
	}
	if m.Cmp(one) == 0 {
		return new(big.Int)
	}

	acc := newAccumulator(cml.WidthOf(m))
	b := new(big.Int).Mod(base, m)
	result := big.NewInt(1)

	n := exp.BitLen()
	for i := 0; i < n; i++ {
		if exp.Bit(i) == 1 {
			acc.Mul(result, b)
			result.Mod(acc, m)
		}
		if i+1 < n {
			acc.Mul(b, b)
			b.Mod(acc, m)
		}
	}
	return result
}

// newAccumulator returns a zero value whose backing array already holds a
// product of two w-bit operands.
func newAccumulator(w cml.Width) *big.Int {
	return new(big.Int).SetBits(make([]big.Word, 0, w.Widen().Words()))
}

// Modexp64 is Modexp over machine words. Products are formed in a 128-bit
// hi:lo pair and reduced with bits.Rem64.
func Modexp64(base, exp, m uint64) uint64 {
	if m == 0 {
		panic("arith: modulus must be positive")
	}
	if m == 1 {
		return 0
	}

	result := uint64(1)
	base %= m
	for exp > 0 {
		if exp&1 == 1 {
			result = mulmod64(result, base, m)
		}
		exp >>= 1
		if exp > 0 {
			base = mulmod64(base, base, m)
		}
	}
	return result
}

func mulmod64(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return bits.Rem64(hi, lo, m)
}
