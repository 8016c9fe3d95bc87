// Package srp6 implements the SRP6 password-authenticated key exchange.
//
// The server stores a salt and a verifier v = g^x mod N derived from the
// password; neither side ever sends the password. Both sides derive the
// same session key K = H(S) when the client knows the password behind v.
package srp6

import (
	"context"
	"math/big"

	"github.com/apex/log"
	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/prime"
)

// DefaultMultiplier is the SRP6 multiplier k of the plain variant.
const DefaultMultiplier = 3

// validateRounds caps the Miller-Rabin rounds Validate spends per number.
const validateRounds = 64

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// NewSecurityBase draws a safe prime N from gen, pairs it with its
// smallest primitive root g and sets k = 3.
func NewSecurityBase(ctx context.Context, gen cml.PrimeGenerator, src cml.RandomSource) (cml.SRP6SecurityBase, error) {
	n, err := gen.Generate(ctx)
	if err != nil {
		return cml.SRP6SecurityBase{}, errors.Wrap(err, "failed to generate safe prime")
	}
	g, err := prime.PrimitiveRoot(ctx, n, src)
	if err != nil {
		return cml.SRP6SecurityBase{}, errors.Wrap(err, "failed to find generator")
	}
	if g.Sign() == 0 {
		return cml.SRP6SecurityBase{}, errors.Errorf("no primitive root modulo %s", n)
	}

	log.WithFields(log.Fields{
		"bits": n.BitLen(),
		"g":    g.String(),
	}).Debug("srp6 security base generated")
	return cml.SRP6SecurityBase{N: n, G: g, K: big.NewInt(DefaultMultiplier)}, nil
}

// NewSecurityBaseA is NewSecurityBase with the hashed multiplier
// k = H(N, g).
func NewSecurityBaseA(ctx context.Context, gen cml.PrimeGenerator, src cml.RandomSource, h *Hasher) (cml.SRP6SecurityBase, error) {
	base, err := NewSecurityBase(ctx, gen, src)
	if err != nil {
		return base, err
	}
	return HashedMultiplier(base, h), nil
}

// HashedMultiplier returns base with k replaced by H(N, g).
func HashedMultiplier(base cml.SRP6SecurityBase, h *Hasher) cml.SRP6SecurityBase {
	base.K = h.Sum(base.N, base.G)
	return base
}

// Group returns the RFC 5054 group of the given size with k = 3.
// Supported sizes are 1024, 1536 and 2048 bits.
func Group(bits int) (cml.SRP6SecurityBase, error) {
	grp, ok := groups[bits]
	if !ok {
		return cml.SRP6SecurityBase{}, errors.Errorf("no well-known %d-bit group", bits)
	}
	n, ok := new(big.Int).SetString(grp.n, 16)
	if !ok {
		panic("srp6: malformed group modulus")
	}
	return cml.SRP6SecurityBase{
		N: n,
		G: big.NewInt(grp.g),
		K: big.NewInt(DefaultMultiplier),
	}, nil
}

// ready reports whether every parameter of base is set.
func ready(base cml.SRP6SecurityBase) bool {
	return base.N != nil && base.G != nil && base.K != nil &&
		base.N.Cmp(two) > 0 && base.G.Sign() > 0
}

// Validate checks that N is a safe prime, that g generates the full
// multiplicative group mod N and that k is set.
func Validate(base cml.SRP6SecurityBase, src cml.RandomSource) error {
	if !ready(base) {
		return cml.ErrBaseNotGenerated
	}
	n := base.N
	q := new(big.Int).Rsh(n, 1)

	ok, err := prime.MillerRabin(n, min(n.BitLen(), validateRounds), src)
	if err != nil {
		return err
	}
	if ok {
		ok, err = prime.MillerRabin(q, min(q.BitLen(), validateRounds), src)
		if err != nil {
			return err
		}
	}
	if !ok || n.Bit(0) == 0 {
		return errors.Errorf("modulus %s is not a safe prime", n)
	}
	if !prime.IsPrimitiveRoot(base.G, n, []*big.Int{two, q}) {
		return errors.Errorf("%s is not a primitive root modulo %s", base.G, n)
	}
	return nil
}
