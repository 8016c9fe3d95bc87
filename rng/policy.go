package rng

import (
	"math/big"
	"strings"
	"sync"

	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
)

// Policy selects how a shared RandomSource is accessed.
type Policy int

const (
	// Unsynchronized leaves the source as is. The caller guarantees
	// single-goroutine use or owns a private instance.
	Unsynchronized Policy = iota
	// Exclusive serializes draws with a mutex.
	Exclusive
)

func (p Policy) String() string {
	switch p {
	case Unsynchronized:
		return "unsynchronized"
	case Exclusive:
		return "exclusive"
	default:
		return "invalid"
	}
}

// ParsePolicy maps a policy name to a Policy. "sync" is an alias for
// unsynchronized and "async" an alias for exclusive.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sync", "unsynchronized", "":
		return Unsynchronized, nil
	case "async", "exclusive":
		return Exclusive, nil
	default:
		return 0, errors.Wrapf(cml.ErrInvalidPolicy, "%q", s)
	}
}

// WithPolicy applies p to src.
func WithPolicy(src cml.RandomSource, p Policy) (cml.RandomSource, error) {
	switch p {
	case Unsynchronized:
		return src, nil
	case Exclusive:
		if l, ok := src.(*Locked); ok {
			return l, nil
		}
		return &Locked{src: src}, nil
	default:
		return nil, errors.Wrapf(cml.ErrInvalidPolicy, "policy %d", int(p))
	}
}

// Locked guards a RandomSource with a mutex held for one draw at a time.
type Locked struct {
	mu  sync.Mutex
	src cml.RandomSource
}

var _ cml.RandomSource = (*Locked)(nil)

// NewLocked wraps src.
func NewLocked(src cml.RandomSource) *Locked {
	return &Locked{src: src}
}

// Draw implements cml.RandomSource.
func (l *Locked) Draw() (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Draw()
}

// DrawRange implements cml.RandomSource.
func (l *Locked) DrawRange(min, max *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.DrawRange(min, max)
}

// Width implements cml.RandomSource.
func (l *Locked) Width() cml.Width {
	return l.src.Width()
}
