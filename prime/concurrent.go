package prime

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/utils"
)

// Factory builds the generator for one worker. Workers must not share an
// unsynchronized random source.
type Factory func(worker int) (cml.PrimeGenerator, error)

// Concurrent runs workers generators side by side and returns the first
// prime found. The remaining searches are cancelled.
func Concurrent(ctx context.Context, workers int, factory Factory) (*big.Int, error) {
	if err := utils.CheckPositive(workers, "workers"); err != nil {
		return nil, err
	}

	gens := make([]cml.PrimeGenerator, workers)
	for w := range gens {
		gen, err := factory(w)
		if err != nil {
			return nil, errors.Wrapf(err, "worker %d", w)
		}
		gens[w] = gen
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	found := make(chan *big.Int, 1)

	for _, gen := range gens {
		gen := gen
		g.Go(func() error {
			p, err := gen.Generate(gctx)
			if err != nil {
				// Losing the race is not a failure.
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			select {
			case found <- p:
				cancel()
			default:
			}
			return nil
		})
	}

	err := g.Wait()
	select {
	case p := <-found:
		return p, nil
	default:
	}
	if err != nil {
		return nil, err
	}
	return nil, ctx.Err()
}
