package arith

import (
	"math/big"

	"github.com/cronokirby/saferith"
)

// ExpConstantTime returns base^exp mod m with an exponentiation whose
// timing depends only on the announced sizes of exp and m. Odd moduli go
// through saferith; even moduli fall back to Modexp.
func ExpConstantTime(base, exp, m *big.Int) *big.Int {
	if m.Sign() <= 0 {
		panic("arith: modulus must be positive")
	}
	if exp.Sign() < 0 {
		panic("arith: negative exponent")
	}
	if m.Bit(0) == 0 || m.Cmp(one) == 0 {
		return Modexp(base, exp, m)
	}
	if exp.Sign() == 0 {
		return big.NewInt(1)
	}

	mod := saferith.ModulusFromNat(new(saferith.Nat).SetBig(m, m.BitLen()))
	b := new(saferith.Nat).SetBig(new(big.Int).Mod(base, m), m.BitLen())
	e := new(saferith.Nat).SetBig(exp, exp.BitLen())
	return new(saferith.Nat).Exp(b, e, mod).Big()
}

// Exp dispatches to ExpConstantTime when hardened is set and to Modexp
// otherwise.
func Exp(base, exp, m *big.Int, hardened bool) *big.Int {
	if hardened {
		return ExpConstantTime(base, exp, m)
	}
	return Modexp(base, exp, m)
}
