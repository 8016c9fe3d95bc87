package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/arith"
	"github.com/BackendStack21/cml-go/prime"
	"github.com/BackendStack21/cml-go/rng"
)

// workerSource returns the source worker should draw from. Unsynchronized
// sources are forked so no two workers share one; locked sources are shared.
func workerSource(src cml.RandomSource, worker int) (cml.RandomSource, error) {
	if s, ok := src.(*rng.Source); ok && worker > 0 {
		return s.Fork()
	}
	return src, nil
}

// primeFactory builds width-bit generators, or generators of width-bit safe
// primes when safe is set.
func (a *app) primeFactory(src cml.RandomSource, width cml.Width, safe bool) prime.Factory {
	opts := prime.OptionsFromParams(a.cfg.Params())
	return func(worker int) (cml.PrimeGenerator, error) {
		s, err := workerSource(src, worker)
		if err != nil {
			return nil, err
		}
		if !safe {
			return prime.NewGenerator(width, s, opts)
		}
		inner, err := prime.NewGenerator(width-1, s, opts)
		if err != nil {
			return nil, err
		}
		return prime.NewSafeGenerator(inner, s, opts)
	}
}

// workerGenerator spreads every Generate call over the configured number
// of workers.
type workerGenerator struct {
	factory prime.Factory
	workers int
	width   cml.Width
}

func (a *app) generator(src cml.RandomSource, safe bool) *workerGenerator {
	width := a.cfg.Params().Width
	return &workerGenerator{
		factory: a.primeFactory(src, width, safe),
		workers: a.cfg.Workers,
		width:   width,
	}
}

func (g *workerGenerator) Width() cml.Width {
	return g.width
}

func (g *workerGenerator) Generate(ctx context.Context) (*big.Int, error) {
	if g.workers <= 1 {
		gen, err := g.factory(0)
		if err != nil {
			return nil, err
		}
		return gen.Generate(ctx)
	}
	return prime.Concurrent(ctx, g.workers, g.factory)
}

func (a *app) primeCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "prime",
		Short: "Generate random primes of the configured width",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printPrimes(cmd, count, false)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of primes")
	return cmd
}

func (a *app) safePrimeCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "safeprime",
		Short: "Generate safe primes 2q+1 of the configured width",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printPrimes(cmd, count, true)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of safe primes")
	return cmd
}

func (a *app) printPrimes(cmd *cobra.Command, count int, safe bool) error {
	if count < 1 {
		return errors.Errorf("count must be positive, got %d", count)
	}
	src, err := a.cfg.Source()
	if err != nil {
		return err
	}
	width := a.cfg.Params().Width
	if safe && width < 3 {
		return errors.Wrap(cml.ErrInvalidWidth, "safe primes need at least 3 bits")
	}

	gen := a.generator(src, safe)
	start := time.Now()
	for i := 0; i < count; i++ {
		p, err := gen.Generate(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
			return err
		}
	}
	log.WithFields(log.Fields{
		"width":   width,
		"count":   count,
		"workers": a.cfg.Workers,
		"elapsed": time.Since(start).Round(time.Microsecond),
	}).Debugf("generated %s primes", humanize.Comma(int64(count)))
	return nil
}

func (a *app) primitiveRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root <n>",
		Short: "Find the smallest primitive root modulo a prime",
		Long: `Find the smallest primitive root modulo n.

n may be decimal, 0x-prefixed hex, 0b-prefixed binary or 0-prefixed octal.
The result is 0 when n is composite.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := arith.Parse(args[0])
			if err != nil {
				return err
			}
			if n.Sign() <= 0 {
				return errors.Errorf("modulus must be positive, got %s", n)
			}
			src, err := a.cfg.Source()
			if err != nil {
				return err
			}
			g, err := prime.PrimitiveRoot(cmd.Context(), n, src)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), g)
			return err
		},
	}
}
