package prime

import (
	"context"
	"math/big"
	"sort"

	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/arith"
)

// cofactors below this bound that survive trial division are prime.
var trialBound = new(big.Int).SetUint64(largestSmallPrime * largestSmallPrime)

// DistinctFactors returns the distinct prime factors of n in ascending
// order. Small factors are stripped by trial division; the cofactor left is
// accepted once it passes Miller-Rabin and split with Pollard's rho
// otherwise. n <= 1 has no factors.
func DistinctFactors(ctx context.Context, n *big.Int, src cml.RandomSource) ([]*big.Int, error) {
	if n.Cmp(one) <= 0 {
		return nil, nil
	}

	var factors []*big.Int
	rest := new(big.Int).Set(n)
	d := new(big.Int)
	q, r := new(big.Int), new(big.Int)

	for _, p := range smallPrimes {
		d.SetUint64(p)
		if new(big.Int).Mul(d, d).Cmp(rest) > 0 {
			break
		}
		if q.QuoRem(rest, d, r); r.Sign() != 0 {
			continue
		}
		factors = append(factors, new(big.Int).Set(d))
		for r.Sign() == 0 {
			rest.Set(q)
			q.QuoRem(rest, d, r)
		}
	}

	if rest.Cmp(one) > 0 {
		large := make(map[string]*big.Int)
		if err := splitFactor(ctx, rest, src, large); err != nil {
			return nil, err
		}
		for _, f := range large {
			factors = append(factors, f)
		}
	}

	sort.Slice(factors, func(i, j int) bool {
		return factors[i].Cmp(factors[j]) < 0
	})
	return factors, nil
}

// splitFactor adds the prime factors of n to out. n has no prime factor
// in the small prime table.
func splitFactor(ctx context.Context, n *big.Int, src cml.RandomSource, out map[string]*big.Int) error {
	if n.Cmp(one) <= 0 {
		return nil
	}
	if _, seen := out[n.String()]; seen {
		return nil
	}

	isPrime := n.Cmp(trialBound) < 0
	if !isPrime {
		var err error
		if isPrime, err = MillerRabin(n, n.BitLen(), src); err != nil {
			return err
		}
	}
	if isPrime {
		out[n.String()] = new(big.Int).Set(n)
		return nil
	}

	d, err := pollardRho(ctx, n, src)
	if err != nil {
		return err
	}
	if err := splitFactor(ctx, d, src, out); err != nil {
		return err
	}

	rest := new(big.Int).Quo(n, d)
	for new(big.Int).Rem(rest, d).Sign() == 0 {
		rest.Quo(rest, d)
	}
	return splitFactor(ctx, rest, src, out)
}

// pollardRho returns a non-trivial divisor of the odd composite n using
// Brent's cycle detection with batched gcds.
func pollardRho(ctx context.Context, n *big.Int, src cml.RandomSource) (*big.Int, error) {
	if n.Bit(0) == 0 {
		return big.NewInt(2), nil
	}

	const batch = 128
	hi := new(big.Int).Sub(n, one)
	diff := new(big.Int)
	tmp := new(big.Int)

	for {
		y, err := src.DrawRange(one, hi)
		if err != nil {
			return nil, err
		}
		c, err := src.DrawRange(one, hi)
		if err != nil {
			return nil, err
		}

		f := func(v *big.Int) {
			tmp.Mul(v, v)
			tmp.Add(tmp, c)
			v.Mod(tmp, n)
		}

		g := big.NewInt(1)
		q := big.NewInt(1)
		x := new(big.Int)
		ys := new(big.Int)

		for r := 1; g.Cmp(one) == 0; r *= 2 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "factorization cancelled")
			}
			x.Set(y)
			for i := 0; i < r; i++ {
				f(y)
			}
			for k := 0; k < r && g.Cmp(one) == 0; k += batch {
				ys.Set(y)
				for i := 0; i < batch && i < r-k; i++ {
					f(y)
					diff.Sub(x, y)
					diff.Abs(diff)
					q.Mul(q, diff)
					q.Mod(q, n)
				}
				g = arith.Gcd(q, n)
			}
		}

		if g.Cmp(n) == 0 {
			// The batch overshot; replay it one step at a time.
			for {
				f(ys)
				diff.Sub(x, ys)
				diff.Abs(diff)
				g = arith.Gcd(diff, n)
				if g.Cmp(one) > 0 {
					break
				}
			}
		}
		if g.Cmp(n) != 0 {
			return g, nil
		}
	}
}
