package prime

import (
	"context"
	"math/big"

	"github.com/apex/log"
	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/arith"
)

// PrimitiveRoot returns the smallest primitive root modulo the prime n.
// It returns 0 when n fails Miller-Rabin or no root exists, and 1 for n = 2.
//
// The search factors n-1, which is cheap for safe primes and for moduli up
// to roughly 128 bits. Larger general moduli should use a fixed generator
// from a well-known group instead.
func PrimitiveRoot(ctx context.Context, n *big.Int, src cml.RandomSource) (*big.Int, error) {
	ok, err := MillerRabin(n, n.BitLen(), src)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	if n.Cmp(two) == 0 {
		return big.NewInt(1), nil
	}

	phi := new(big.Int).Sub(n, one)
	factors, err := DistinctFactors(ctx, phi, src)
	if err != nil {
		return nil, err
	}
	exps := make([]*big.Int, len(factors))
	for i, q := range factors {
		exps[i] = new(big.Int).Quo(phi, q)
	}

	for g := big.NewInt(2); g.Cmp(n) < 0; g.Add(g, one) {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "primitive root search cancelled")
		}
		if hasFullOrder(g, n, exps) {
			log.WithFields(log.Fields{
				"bits":    n.BitLen(),
				"root":    g.String(),
				"factors": len(factors),
			}).Debug("primitive root found")
			return g, nil
		}
	}
	return new(big.Int), nil
}

// IsPrimitiveRoot reports whether g generates the multiplicative group
// modulo the prime n, given the distinct prime factors of n-1.
func IsPrimitiveRoot(g, n *big.Int, factors []*big.Int) bool {
	if g.Sign() <= 0 || g.Cmp(n) >= 0 {
		return false
	}
	phi := new(big.Int).Sub(n, one)
	exps := make([]*big.Int, len(factors))
	for i, q := range factors {
		exps[i] = new(big.Int).Quo(phi, q)
	}
	return hasFullOrder(g, n, exps)
}

func hasFullOrder(g, n *big.Int, exps []*big.Int) bool {
	for _, e := range exps {
		if arith.Modexp(g, e, n).Cmp(one) == 0 {
			return false
		}
	}
	return true
}
