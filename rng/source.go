// Package rng provides random sources for cml.
//
// A Source is not safe for concurrent use. Share one across goroutines
// through WithPolicy(src, Exclusive), or give every goroutine its own
// source via Fork.
package rng

import (
	"fmt"
	"io"
	"math/big"

	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/utils"
)

const (
	// DomainSeeded separates the deterministic stream from other SHAKE uses.
	DomainSeeded = "cml-rng-seeded-v1"
	// DomainFork derives child seeds from a seeded parent.
	DomainFork = "cml-rng-fork-v1"

	forkSeedSize = 32
)

// Source draws uniform integers from a byte stream.
type Source struct {
	r      io.Reader
	width  cml.Width
	seeded bool
	// system is set for the operating system CSPRNG, which may be read
	// from several goroutines.
	system bool
}

var _ cml.RandomSource = (*Source)(nil)

// New returns a source backed by the operating system CSPRNG.
func New(width cml.Width) (*Source, error) {
	s, err := NewReader(utils.RandReader, width)
	if err != nil {
		return nil, err
	}
	s.system = true
	return s, nil
}

// NewReader returns a source drawing bytes from r.
func NewReader(r io.Reader, width cml.Width) (*Source, error) {
	if err := utils.CheckWidth(int(width)); err != nil {
		return nil, fmt.Errorf("%w: %w", cml.ErrInvalidWidth, err)
	}
	if r == nil {
		return nil, errors.New("nil reader")
	}
	return &Source{r: r, width: width}, nil
}

// NewSeeded returns a deterministic source: the same seed always yields the
// same sequence of draws. The seed must pass utils.ValidateSeedEntropy.
func NewSeeded(width cml.Width, seed []byte) (*Source, error) {
	if err := utils.ValidateSeedEntropy(seed); err != nil {
		return nil, errors.Wrap(err, "invalid seed")
	}
	return newSeeded(width, DomainSeeded, seed)
}

func newSeeded(width cml.Width, domain string, seed []byte) (*Source, error) {
	s, err := NewReader(utils.ShakeStream(domain, seed), width)
	if err != nil {
		return nil, err
	}
	s.seeded = true
	return s, nil
}

// Width is the bit-width of a full Draw.
func (s *Source) Width() cml.Width {
	return s.width
}

// Draw returns a uniform value in [0, 2^Width()).
func (s *Source) Draw() (*big.Int, error) {
	return utils.RandomBits(s.r, int(s.width))
}

// DrawRange returns a uniform value in [min, max].
func (s *Source) DrawRange(min, max *big.Int) (*big.Int, error) {
	if max.Cmp(min) < 0 {
		return nil, errors.Wrapf(cml.ErrInvalidRange, "[%s, %s]", min, max)
	}
	span := new(big.Int).Sub(max, min)
	span.Add(span, big.NewInt(1))
	v, err := utils.RandomBig(s.r, span)
	if err != nil {
		return nil, err
	}
	return v.Add(v, min), nil
}

// Fork returns an independent source of the same width. A source from New
// forks into another CSPRNG source. Any other source forks into a seeded
// child keyed by bytes drawn from the parent, so the child never shares the
// parent's reader and forks of a seeded parent stay reproducible.
func (s *Source) Fork() (*Source, error) {
	if s.system {
		return New(s.width)
	}
	seed, err := utils.ReadBytes(s.r, forkSeedSize)
	if err != nil {
		return nil, err
	}
	defer utils.Zeroize(seed)
	return newSeeded(s.width, DomainFork, seed)
}

// WithWidth returns a source over the same stream with a different full-draw
// width. The two sources share state and must not be used concurrently.
func (s *Source) WithWidth(width cml.Width) (*Source, error) {
	if err := utils.CheckWidth(int(width)); err != nil {
		return nil, fmt.Errorf("%w: %w", cml.ErrInvalidWidth, err)
	}
	return &Source{r: s.r, width: width, seeded: s.seeded, system: s.system}, nil
}
