// Package dh implements Diffie-Hellman key agreement over a prime modulus
// and one of its primitive roots.
package dh

import (
	"context"
	"math/big"

	"github.com/apex/log"
	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/arith"
	"github.com/BackendStack21/cml-go/prime"
	"github.com/BackendStack21/cml-go/utils"
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// NewSecurityBase draws a prime p from gen and pairs it with its smallest
// primitive root g. src supplies Miller-Rabin witnesses for the root search.
func NewSecurityBase(ctx context.Context, gen cml.PrimeGenerator, src cml.RandomSource) (cml.SecurityBase, error) {
	p, err := gen.Generate(ctx)
	if err != nil {
		return cml.SecurityBase{}, errors.Wrap(err, "failed to generate modulus")
	}
	g, err := prime.PrimitiveRoot(ctx, p, src)
	if err != nil {
		return cml.SecurityBase{}, errors.Wrap(err, "failed to find generator")
	}
	if g.Sign() == 0 {
		return cml.SecurityBase{}, errors.Errorf("no primitive root modulo %s", p)
	}

	log.WithFields(log.Fields{
		"bits": p.BitLen(),
		"g":    g.String(),
	}).Debug("diffie-hellman security base generated")
	return cml.SecurityBase{G: g, P: p}, nil
}

// Option configures a Party.
type Option func(*Party)

// WithHardened selects constant-time exponentiation for the private
// exponent.
func WithHardened(hardened bool) Option {
	return func(p *Party) {
		p.hardened = hardened
	}
}

// Party is one side of a Diffie-Hellman exchange. A Party is not safe for
// concurrent use.
type Party struct {
	Base    cml.SecurityBase
	Public  cml.DHPublicKey
	Private cml.DHPrivateKey

	src      cml.RandomSource
	hardened bool
}

// New returns a party over base drawing its exponent from src.
func New(base cml.SecurityBase, src cml.RandomSource, opts ...Option) *Party {
	p := &Party{Base: base, src: src}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate draws a private exponent a in [2, p-2] and publishes
// v = g^a mod p. It fails with cml.ErrBaseNotGenerated, leaving the party
// untouched, when the base is missing g or p.
func (p *Party) Generate() error {
	if !p.Base.Ready() {
		return cml.ErrBaseNotGenerated
	}

	hi := new(big.Int).Sub(p.Base.P, two)
	a, err := p.src.DrawRange(two, hi)
	if err != nil {
		return errors.Wrap(err, "failed to draw private exponent")
	}
	v := arith.Exp(p.Base.G, a, p.Base.P, p.hardened)

	p.Destroy()
	p.Private = cml.DHPrivateKey{A: a}
	p.Public = cml.DHPublicKey{V: v}
	return nil
}

// SharedSecret returns peer.V^a mod p. A peer value congruent to 0 is
// rejected with cml.ErrZeroPublicKey.
func (p *Party) SharedSecret(peer cml.DHPublicKey) (*big.Int, error) {
	if !p.Base.Ready() {
		return nil, cml.ErrBaseNotGenerated
	}
	if p.Private.A == nil {
		return nil, cml.ErrKeyNotGenerated
	}
	if peer.V == nil || new(big.Int).Mod(peer.V, p.Base.P).Sign() == 0 {
		return nil, cml.ErrZeroPublicKey
	}
	if peer.V.Sign() < 0 || peer.V.Cmp(p.Base.P) >= 0 {
		return nil, errors.Errorf("peer public value outside [1, %s)", p.Base.P)
	}
	return arith.Exp(peer.V, p.Private.A, p.Base.P, p.hardened), nil
}

// Destroy zeroizes the private exponent.
func (p *Party) Destroy() {
	utils.ZeroizeBig(p.Private.A)
	p.Private.A = nil
}

// Validate checks that base holds a probable prime modulus and a generator
// of the full multiplicative group.
func Validate(ctx context.Context, base cml.SecurityBase, src cml.RandomSource) error {
	if !base.Ready() {
		return cml.ErrBaseNotGenerated
	}
	ok, err := prime.MillerRabin(base.P, base.P.BitLen(), src)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("modulus %s is composite", base.P)
	}
	phi := new(big.Int).Sub(base.P, one)
	factors, err := prime.DistinctFactors(ctx, phi, src)
	if err != nil {
		return err
	}
	if !prime.IsPrimitiveRoot(base.G, base.P, factors) {
		return errors.Errorf("%s is not a primitive root modulo %s", base.G, base.P)
	}
	return nil
}
