// Package prime implements primality testing, prime and safe prime
// generation, factorization of group orders and primitive root search.
package prime

import (
	"math/big"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/arith"
)

var (
	one   = big.NewInt(1)
	two   = big.NewInt(2)
	three = big.NewInt(3)
)

// MillerRabin reports whether n is probably prime after k random witnesses
// drawn from src. A composite n passes with probability at most 4^-k.
func MillerRabin(n *big.Int, k int, src cml.RandomSource) (bool, error) {
	if n.Cmp(two) == 0 || n.Cmp(three) == 0 {
		return true, nil
	}
	if n.Cmp(two) < 0 || n.Bit(0) == 0 {
		return false, nil
	}

	// n-1 = 2^b * m with m odd
	nm1 := new(big.Int).Sub(n, one)
	b := nm1.TrailingZeroBits()
	m := new(big.Int).Rsh(nm1, b)
	hi := new(big.Int).Sub(n, two)

	for i := 0; i < k; i++ {
		a, err := src.DrawRange(two, hi)
		if err != nil {
			return false, err
		}

		x := arith.Modexp(a, m, n)
		if x.Cmp(one) == 0 || x.Cmp(nm1) == 0 {
			continue
		}

		passed := false
		for j := uint(1); j < b; j++ {
			x = arith.Modexp(x, two, n)
			if x.Cmp(one) == 0 {
				return false, nil
			}
			if x.Cmp(nm1) == 0 {
				passed = true
				break
			}
		}
		if !passed {
			return false, nil
		}
	}
	return true, nil
}

// Oracle is a cml.PrimalityOracle backed by MillerRabin.
type Oracle struct {
	Source cml.RandomSource
	// Witnesses is the round count; 0 uses the bit-length of the candidate.
	Witnesses int
}

var _ cml.PrimalityOracle = Oracle{}

// IsPrime implements cml.PrimalityOracle.
func (o Oracle) IsPrime(n *big.Int) (bool, error) {
	return MillerRabin(n, witnesses(o.Witnesses, n.BitLen()), o.Source)
}

func witnesses(configured, bitLen int) int {
	if configured > 0 {
		return configured
	}
	return bitLen
}

// trialDivide checks c against the small prime table. small reports that c
// is itself a table prime; divisible that a table prime divides c.
func trialDivide(c *big.Int) (small, divisible bool) {
	if c.IsUint64() {
		v := c.Uint64()
		for _, p := range smallPrimes {
			if v == p {
				return true, false
			}
			if v%p == 0 {
				return false, true
			}
		}
		return false, false
	}

	d := new(big.Int)
	r := new(big.Int)
	for _, p := range smallPrimes {
		d.SetUint64(p)
		if r.Rem(c, d).Sign() == 0 {
			return false, true
		}
	}
	return false, false
}
