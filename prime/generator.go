package prime

import (
	"context"
	"fmt"
	"math/big"

	"github.com/apex/log"
	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/utils"
)

// Options bounds a prime search.
type Options struct {
	// MaxAttempts caps candidate draws; 0 means unbounded.
	MaxAttempts int
	// Witnesses is the Miller-Rabin round count; 0 uses the candidate width.
	Witnesses int
}

// OptionsFromParams returns the search options a parameter set implies.
func OptionsFromParams(params cml.Params) Options {
	return Options{MaxAttempts: params.MaxAttempts, Witnesses: params.Witnesses}
}

func (o Options) exhausted(attempt int) bool {
	return o.MaxAttempts > 0 && attempt > o.MaxAttempts
}

// Generator draws random primes of an exact bit-width.
//
// Each candidate comes from one DrawRange call on the source, so a shared
// rng.Locked source is held only for the draw, never across a
// Miller-Rabin test.
type Generator struct {
	width cml.Width
	src   cml.RandomSource
	opts  Options
}

var _ cml.PrimeGenerator = (*Generator)(nil)

// NewGenerator returns a generator of width-bit primes.
func NewGenerator(width cml.Width, src cml.RandomSource, opts Options) (*Generator, error) {
	if err := utils.CheckWidth(int(width)); err != nil {
		return nil, fmt.Errorf("%w: %w", cml.ErrInvalidWidth, err)
	}
	if src == nil {
		return nil, errors.New("nil random source")
	}
	if opts.MaxAttempts < 0 || opts.Witnesses < 0 {
		return nil, errors.New("negative search option")
	}
	return &Generator{width: width, src: src, opts: opts}, nil
}

// Width implements cml.PrimeGenerator.
func (g *Generator) Width() cml.Width {
	return g.width
}

// Generate implements cml.PrimeGenerator. Candidates are drawn from
// [2, 2^W-1] with bit 0 and bit W-1 forced on, filtered by trial division
// and confirmed by Miller-Rabin.
func (g *Generator) Generate(ctx context.Context) (*big.Int, error) {
	w := int(g.width)
	hi := new(big.Int).Lsh(one, uint(w))
	hi.Sub(hi, one)
	k := witnesses(g.opts.Witnesses, w)

	for attempt := 1; ; attempt++ {
		if g.opts.exhausted(attempt) {
			return nil, errors.Wrapf(cml.ErrSearchExhausted, "no %d-bit prime after %d attempts", w, g.opts.MaxAttempts)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c, err := g.src.DrawRange(two, hi)
		if err != nil {
			return nil, errors.Wrap(err, "failed to draw candidate")
		}
		c.SetBit(c, 0, 1)
		c.SetBit(c, w-1, 1)

		small, divisible := trialDivide(c)
		if small {
			return g.found(c, attempt), nil
		}
		if divisible {
			continue
		}

		ok, err := MillerRabin(c, k, g.src)
		if err != nil {
			return nil, err
		}
		if ok {
			return g.found(c, attempt), nil
		}
	}
}

func (g *Generator) found(c *big.Int, attempts int) *big.Int {
	log.WithFields(log.Fields{
		"width":    g.width,
		"attempts": attempts,
	}).Debug("prime found")
	return c
}

// SafeGenerator produces safe primes 2p+1 from an inner prime generator.
type SafeGenerator struct {
	inner cml.PrimeGenerator
	src   cml.RandomSource
	opts  Options
}

var _ cml.PrimeGenerator = (*SafeGenerator)(nil)

// NewSafeGenerator wraps inner. src supplies Miller-Rabin witnesses for the
// 2p+1 candidates.
func NewSafeGenerator(inner cml.PrimeGenerator, src cml.RandomSource, opts Options) (*SafeGenerator, error) {
	if inner == nil || src == nil {
		return nil, errors.New("nil prime generator or random source")
	}
	if opts.MaxAttempts < 0 || opts.Witnesses < 0 {
		return nil, errors.New("negative search option")
	}
	return &SafeGenerator{inner: inner, src: src, opts: opts}, nil
}

// Width implements cml.PrimeGenerator. A safe prime is one bit wider than
// the inner prime.
func (g *SafeGenerator) Width() cml.Width {
	return g.inner.Width() + 1
}

// Generate implements cml.PrimeGenerator.
func (g *SafeGenerator) Generate(ctx context.Context) (*big.Int, error) {
	safe, _, err := g.GeneratePair(ctx)
	return safe, err
}

// GeneratePair returns the safe prime 2p+1 together with p.
func (g *SafeGenerator) GeneratePair(ctx context.Context) (safe, p *big.Int, err error) {
	for attempt := 1; ; attempt++ {
		if g.opts.exhausted(attempt) {
			return nil, nil, errors.Wrapf(cml.ErrSearchExhausted, "no safe prime after %d attempts", g.opts.MaxAttempts)
		}

		p, err = g.inner.Generate(ctx)
		if err != nil {
			return nil, nil, err
		}

		safe = new(big.Int).Lsh(p, 1)
		safe.Add(safe, one)

		var ok bool
		ok, err = MillerRabin(safe, witnesses(g.opts.Witnesses, p.BitLen()), g.src)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			log.WithFields(log.Fields{
				"width":    g.Width(),
				"attempts": attempt,
			}).Debug("safe prime found")
			return safe, p, nil
		}
	}
}
