package cmd

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/dh"
	"github.com/BackendStack21/cml-go/rsa"
	"github.com/BackendStack21/cml-go/srp6"
	"github.com/BackendStack21/cml-go/utils"
)

const benchPassword = "correct horse battery staple"

type benchResult struct {
	name  string
	total time.Duration
	n     int
}

func (r benchResult) print(w io.Writer) {
	avg := r.total / time.Duration(r.n)
	opsPerSec := float64(r.n) / r.total.Seconds()
	fmt.Fprintf(w, "  %-14s %12v (avg)  %s ops/s\n", r.name+":", avg.Round(time.Microsecond), humanize.CommafWithDigits(opsPerSec, 1))
}

func measure(name string, n int, fn func() error) (benchResult, error) {
	var total time.Duration
	for i := 0; i < n; i++ {
		start := time.Now()
		err := fn()
		total += time.Since(start)
		if err != nil {
			return benchResult{}, errors.Wrap(err, name)
		}
	}
	return benchResult{name: name, total: total, n: n}, nil
}

func (a *app) benchCmd() *cobra.Command {
	var iterations int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run performance benchmarks at the configured level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations < 1 {
				iterations = 1
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "CML Benchmark Results\n")
			fmt.Fprintf(w, "=====================\n")
			fmt.Fprintf(w, "Security Level: %s (%d-bit primes)\n", a.cfg.Level, a.cfg.Params().Width)
			fmt.Fprintf(w, "Workers:        %d\n", a.cfg.Workers)
			fmt.Fprintf(w, "Iterations:     %s\n\n", humanize.Comma(int64(iterations)))

			results, err := a.runBench(cmd.Context(), iterations)
			if err != nil {
				return err
			}
			for _, r := range results {
				r.print(w)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Benchmark complete!")
			return nil
		},
	}
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 10, "iterations per operation")
	return cmd
}

func (a *app) runBench(ctx context.Context, n int) ([]benchResult, error) {
	src, err := a.cfg.Source()
	if err != nil {
		return nil, err
	}
	params := a.cfg.Params()
	var results []benchResult
	add := func(r benchResult, err error) error {
		if err == nil {
			results = append(results, r)
		}
		return err
	}

	gen := a.generator(src, false)
	if err := add(measure("Prime", n, func() error {
		_, err := gen.Generate(ctx)
		return err
	})); err != nil {
		return nil, err
	}

	var dhBase cml.SecurityBase
	if err := add(measure("DH base", n, func() error {
		dhBase, err = a.dhBase(ctx, src)
		return err
	})); err != nil {
		return nil, err
	}
	if err := add(measure("DH exchange", n, func() error {
		alice := dh.New(dhBase, src, dh.WithHardened(params.Hardened))
		bob := dh.New(dhBase, src, dh.WithHardened(params.Hardened))
		defer alice.Destroy()
		defer bob.Destroy()
		if err := alice.Generate(); err != nil {
			return err
		}
		if err := bob.Generate(); err != nil {
			return err
		}
		s, err := alice.SharedSecret(bob.Public)
		utils.ZeroizeBig(s)
		return err
	})); err != nil {
		return nil, err
	}

	r := rsa.New(gen, rsa.WithMaxAttempts(params.MaxAttempts))
	defer r.Destroy()
	if err := add(measure("RSA keygen", n, func() error {
		return r.Generate(ctx)
	})); err != nil {
		return nil, err
	}
	var ct *big.Int
	if err := add(measure("RSA encrypt", n, func() error {
		ct, err = r.EncryptUint64(42, r.Public)
		return err
	})); err != nil {
		return nil, err
	}
	if err := add(measure("RSA decrypt", n, func() error {
		_, err := r.DecryptUint64(ct)
		return err
	})); err != nil {
		return nil, err
	}

	h, err := a.cfg.Hasher()
	if err != nil {
		return nil, err
	}
	srpBase, err := a.srpBase(ctx, src, h, true)
	if err != nil {
		return nil, err
	}
	opts := []srp6.Option{
		srp6.WithHasher(h),
		srp6.WithSaltLength(params.SaltLength),
		srp6.WithHardened(params.Hardened),
	}
	var data cml.SRP6ServerData
	if err := add(measure("SRP6 register", n, func() error {
		data, err = srp6.NewServerData(srpBase, benchPassword, src, opts...)
		return err
	})); err != nil {
		return nil, err
	}
	if err := add(measure("SRP6 session", n, func() error {
		return login(srpBase, data, "bench", benchPassword, src, opts...)
	})); err != nil {
		return nil, err
	}
	return results, nil
}
