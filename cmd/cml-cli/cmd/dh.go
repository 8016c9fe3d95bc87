package cmd

import (
	"context"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/dh"
	"github.com/BackendStack21/cml-go/srp6"
	"github.com/BackendStack21/cml-go/utils"
	"github.com/BackendStack21/cml-go/wire"
)

// DHBaseExport represents an exported Diffie-Hellman security base
type DHBaseExport struct {
	SecurityLevel string `json:"security_level"`
	Bits          int    `json:"bits"`
	Generator     string `json:"generator"`
	Base          string `json:"base"`
	CreatedAt     string `json:"created_at"`
}

// DHExchangeExport represents the transcript of a local exchange
type DHExchangeExport struct {
	Base         string `json:"base"`
	AlicePublic  string `json:"alice_public"`
	BobPublic    string `json:"bob_public"`
	SharedSecret string `json:"shared_secret"`
}

func (a *app) dhCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dh",
		Short: "Diffie-Hellman key agreement",
	}
	cmd.AddCommand(a.dhBaseCmd(), a.dhExchangeCmd())
	return cmd
}

// dhBase returns the well-known group of the configured level, or a fresh
// safe prime with its smallest primitive root.
func (a *app) dhBase(ctx context.Context, src cml.RandomSource) (cml.SecurityBase, error) {
	params := a.cfg.Params()
	if params.GroupBits != 0 {
		grp, err := srp6.Group(params.GroupBits)
		if err != nil {
			return cml.SecurityBase{}, err
		}
		return cml.SecurityBase{G: grp.G, P: grp.N}, nil
	}
	if params.Width < 3 {
		return cml.SecurityBase{}, errors.Wrap(cml.ErrInvalidWidth, "safe primes need at least 3 bits")
	}
	return dh.NewSecurityBase(ctx, a.generator(src, true), src)
}

func (a *app) dhBaseCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "base",
		Short: "Generate a security base (p, g)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.cfg.Source()
			if err != nil {
				return err
			}
			base, err := a.dhBase(cmd.Context(), src)
			if err != nil {
				return err
			}
			data, err := wire.MarshalSecurityBase(base)
			if err != nil {
				return err
			}
			return writeJSON(cmd, DHBaseExport{
				SecurityLevel: a.cfg.Level,
				Bits:          base.P.BitLen(),
				Generator:     base.G.String(),
				Base:          encodeBytes(data, OutputFormat(a.format)),
				CreatedAt:     timestamp(),
			}, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}

func (a *app) dhExchangeCmd() *cobra.Command {
	var (
		baseFile string
		output   string
		validate bool
	)
	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Run a local exchange between two parties",
		Long: `Run a local exchange between two parties, Alice and Bob.

Both public values travel through the wire encoding before use. The base is
read from --base when given and generated otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := a.cfg.Source()
			if err != nil {
				return err
			}

			var base cml.SecurityBase
			if baseFile != "" {
				data, err := loadField(baseFile, "base")
				if err != nil {
					return err
				}
				if base, err = wire.UnmarshalSecurityBase(data); err != nil {
					return err
				}
			} else if base, err = a.dhBase(ctx, src); err != nil {
				return err
			}
			if validate {
				if err := dh.Validate(ctx, base, src); err != nil {
					return errors.Wrap(err, "invalid security base")
				}
			}

			hardened := a.cfg.Params().Hardened
			alice := dh.New(base, src, dh.WithHardened(hardened))
			bob := dh.New(base, src, dh.WithHardened(hardened))
			defer alice.Destroy()
			defer bob.Destroy()
			if err := alice.Generate(); err != nil {
				return err
			}
			if err := bob.Generate(); err != nil {
				return err
			}

			alicePub, err := wire.MarshalDHPublicKey(alice.Public)
			if err != nil {
				return err
			}
			bobPub, err := wire.MarshalDHPublicKey(bob.Public)
			if err != nil {
				return err
			}
			fromAlice, err := wire.UnmarshalDHPublicKey(alicePub)
			if err != nil {
				return err
			}
			fromBob, err := wire.UnmarshalDHPublicKey(bobPub)
			if err != nil {
				return err
			}

			s1, err := alice.SharedSecret(fromBob)
			if err != nil {
				return err
			}
			s2, err := bob.SharedSecret(fromAlice)
			if err != nil {
				return err
			}
			defer utils.ZeroizeBig(s1)
			defer utils.ZeroizeBig(s2)

			size := (base.P.BitLen() + 7) / 8
			b1, b2 := s1.FillBytes(make([]byte, size)), s2.FillBytes(make([]byte, size))
			if !utils.ConstantTimeEqual(b1, b2) {
				return errors.New("shared secrets differ")
			}
			log.WithField("bits", base.P.BitLen()).Debug("shared secrets agree")

			encBase, err := wire.MarshalSecurityBase(base)
			if err != nil {
				return err
			}
			format := OutputFormat(a.format)
			return writeJSON(cmd, DHExchangeExport{
				Base:         encodeBytes(encBase, format),
				AlicePublic:  encodeBytes(alicePub, format),
				BobPublic:    encodeBytes(bobPub, format),
				SharedSecret: encodeBytes(b1, format),
			}, output)
		},
	}
	cmd.Flags().StringVarP(&baseFile, "base", "b", "", "security base file written by 'dh base'")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	cmd.Flags().BoolVar(&validate, "validate", false, "check the base before use")
	return cmd
}
