// Package rsa implements textbook RSA over cml prime generators.
//
// WARNING: no padding scheme is applied. Each plaintext block is encrypted
// as a raw integer, which is deterministic and malleable. Do not use it to
// protect real data.
package rsa

import (
	"context"
	"math"
	"math/big"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/arith"
	"github.com/BackendStack21/cml-go/utils"
)

// PublicExponent is the fixed public exponent e.
const PublicExponent = 65537

var (
	one    = big.NewInt(1)
	e      = big.NewInt(PublicExponent)
	mask64 = new(big.Int).SetUint64(math.MaxUint64)
)

// Option configures a Protocol.
type Option func(*Protocol)

// WithParallel draws q from second while p is drawn from the primary
// generator, in parallel. The two generators must not share an
// unsynchronized random source.
func WithParallel(second cml.PrimeGenerator) Option {
	return func(p *Protocol) {
		p.second = second
	}
}

// WithMaxAttempts caps the number of (p, q) pairs Generate draws.
func WithMaxAttempts(n int) Option {
	return func(p *Protocol) {
		p.maxAttempts = n
	}
}

// Protocol holds one RSA keypair. It is not safe for concurrent use.
type Protocol struct {
	Public  cml.RSAPublicKey
	Private cml.RSAPrivateKey

	gen         cml.PrimeGenerator
	second      cml.PrimeGenerator
	maxAttempts int
}

// New returns a protocol drawing its primes from gen.
func New(gen cml.PrimeGenerator, opts ...Option) *Protocol {
	p := &Protocol{gen: gen}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate draws primes p != q with gcd(e, (p-1)(q-1)) = 1 and derives
// n = pq and d = e^-1 mod (p-1)(q-1).
func (r *Protocol) Generate(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if r.maxAttempts > 0 && attempt > r.maxAttempts {
			return errors.Wrapf(cml.ErrSearchExhausted, "no usable prime pair after %d attempts", r.maxAttempts)
		}

		p, q, err := r.drawPair(ctx)
		if err != nil {
			return err
		}
		if p.Cmp(q) == 0 {
			continue
		}

		phi := new(big.Int).Mul(new(big.Int).Sub(p, one), new(big.Int).Sub(q, one))
		if arith.Gcd(e, phi).Cmp(one) != 0 {
			continue
		}
		d, err := arith.Invmod(e, phi)
		if err != nil {
			return err
		}
		n := new(big.Int).Mul(p, q)

		utils.ZeroizeBig(p)
		utils.ZeroizeBig(q)
		utils.ZeroizeBig(phi)

		r.Destroy()
		r.Public = cml.RSAPublicKey{E: new(big.Int).Set(e), N: n}
		r.Private = cml.RSAPrivateKey{D: d, N: new(big.Int).Set(n)}

		log.WithFields(log.Fields{
			"bits":     n.BitLen(),
			"attempts": attempt,
		}).Debug("rsa keypair generated")
		return nil
	}
}

func (r *Protocol) drawPair(ctx context.Context) (p, q *big.Int, err error) {
	if r.second == nil {
		if p, err = r.gen.Generate(ctx); err != nil {
			return nil, nil, errors.Wrap(err, "failed to generate p")
		}
		if q, err = r.gen.Generate(ctx); err != nil {
			return nil, nil, errors.Wrap(err, "failed to generate q")
		}
		return p, q, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, err = r.gen.Generate(gctx)
		return errors.Wrap(err, "failed to generate p")
	})
	g.Go(func() error {
		var err error
		q, err = r.second.Generate(gctx)
		return errors.Wrap(err, "failed to generate q")
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return p, q, nil
}

// Encrypt returns m^e mod n under peer. m must lie in [0, n).
func (r *Protocol) Encrypt(m *big.Int, peer cml.RSAPublicKey) (*big.Int, error) {
	if peer.E == nil || peer.N == nil || peer.N.Sign() <= 0 {
		return nil, cml.ErrKeyNotGenerated
	}
	if m.Sign() < 0 {
		return nil, errors.New("message must not be negative")
	}
	if m.Cmp(peer.N) >= 0 {
		return nil, errors.Wrapf(cml.ErrMessageTooLarge, "%d-bit message, %d-bit modulus", m.BitLen(), peer.N.BitLen())
	}
	return arith.Modexp(m, peer.E, peer.N), nil
}

// EncryptUint64 encrypts a single machine word.
func (r *Protocol) EncryptUint64(m uint64, peer cml.RSAPublicKey) (*big.Int, error) {
	return r.Encrypt(new(big.Int).SetUint64(m), peer)
}

// EncryptVector encrypts every word of msg, preserving order.
func (r *Protocol) EncryptVector(msg []uint64, peer cml.RSAPublicKey) ([]*big.Int, error) {
	out := make([]*big.Int, len(msg))
	for i, m := range msg {
		c, err := r.EncryptUint64(m, peer)
		if err != nil {
			return nil, errors.Wrapf(err, "block %d", i)
		}
		out[i] = c
	}
	return out, nil
}

// Decrypt returns c^d mod n with the private key. The exponentiation runs
// in constant time with respect to d.
func (r *Protocol) Decrypt(c *big.Int) (*big.Int, error) {
	if r.Private.D == nil || r.Private.N == nil {
		return nil, cml.ErrKeyNotGenerated
	}
	if c.Sign() < 0 || c.Cmp(r.Private.N) >= 0 {
		return nil, errors.Wrap(cml.ErrMessageTooLarge, "ciphertext outside [0, n)")
	}
	return arith.ExpConstantTime(c, r.Private.D, r.Private.N), nil
}

// DecryptUint64 decrypts c and truncates the result to its low 64 bits.
func (r *Protocol) DecryptUint64(c *big.Int) (uint64, error) {
	m, err := r.Decrypt(c)
	if err != nil {
		return 0, err
	}
	return truncate(m), nil
}

// DecryptVector decrypts every block of cs, preserving order.
func (r *Protocol) DecryptVector(cs []*big.Int) ([]uint64, error) {
	out := make([]uint64, len(cs))
	for i, c := range cs {
		m, err := r.DecryptUint64(c)
		if err != nil {
			return nil, errors.Wrapf(err, "block %d", i)
		}
		out[i] = m
	}
	return out, nil
}

// Destroy zeroizes the private exponent.
func (r *Protocol) Destroy() {
	utils.ZeroizeBig(r.Private.D)
	r.Private = cml.RSAPrivateKey{}
}

func truncate(x *big.Int) uint64 {
	return new(big.Int).And(x, mask64).Uint64()
}
