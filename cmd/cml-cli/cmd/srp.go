package cmd

import (
	"context"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/srp6"
	"github.com/BackendStack21/cml-go/wire"
)

// SRPVerifierExport represents a registered SRP6 account
type SRPVerifierExport struct {
	SecurityLevel    string `json:"security_level"`
	Identifier       string `json:"identifier"`
	Hash             string `json:"hash"`
	PBKDF2Iterations int    `json:"pbkdf2_iterations,omitempty"`
	Base             string `json:"base"`
	Verifier         string `json:"verifier"`
	CreatedAt        string `json:"created_at"`
}

func (a *app) srpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "srp",
		Short: "SRP6 password registration and login",
	}
	cmd.AddCommand(a.srpRegisterCmd(), a.srpLoginCmd())
	return cmd
}

// srpBase returns the well-known group of the configured level, or a fresh
// safe prime base. hashed selects k = H(N, g) over k = 3.
func (a *app) srpBase(ctx context.Context, src cml.RandomSource, h *srp6.Hasher, hashed bool) (cml.SRP6SecurityBase, error) {
	params := a.cfg.Params()
	var (
		base cml.SRP6SecurityBase
		err  error
	)
	switch {
	case params.GroupBits != 0:
		base, err = srp6.Group(params.GroupBits)
	case params.Width < 3:
		err = errors.Wrap(cml.ErrInvalidWidth, "safe primes need at least 3 bits")
	default:
		base, err = srp6.NewSecurityBase(ctx, a.generator(src, true), src)
	}
	if err != nil {
		return cml.SRP6SecurityBase{}, err
	}
	if hashed {
		base = srp6.HashedMultiplier(base, h)
	}
	return base, nil
}

func (a *app) srpRegisterCmd() *cobra.Command {
	var (
		identifier string
		password   string
		hashed     bool
		output     string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a password verifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if identifier == "" || password == "" {
				return errors.New("--identifier and --password are required")
			}
			src, err := a.cfg.Source()
			if err != nil {
				return err
			}
			h, err := a.cfg.Hasher()
			if err != nil {
				return err
			}
			base, err := a.srpBase(cmd.Context(), src, h, hashed)
			if err != nil {
				return err
			}

			params := a.cfg.Params()
			data, err := srp6.NewServerData(base, password, src,
				srp6.WithHasher(h),
				srp6.WithSaltLength(params.SaltLength),
				srp6.WithHardened(params.Hardened),
			)
			if err != nil {
				return err
			}
			encBase, err := wire.MarshalSRP6SecurityBase(base)
			if err != nil {
				return err
			}
			verifier, err := wire.MarshalSRP6Verifier(data)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"identifier": identifier,
				"bits":       base.N.BitLen(),
				"hash":       h.Hash().String(),
			}).Debug("verifier created")

			format := OutputFormat(a.format)
			return writeJSON(cmd, SRPVerifierExport{
				SecurityLevel:    a.cfg.Level,
				Identifier:       identifier,
				Hash:             h.Hash().String(),
				PBKDF2Iterations: a.cfg.PBKDF2Iterations,
				Base:             encodeBytes(encBase, format),
				Verifier:         encodeBytes(verifier, format),
				CreatedAt:        timestamp(),
			}, output)
		},
	}
	cmd.Flags().StringVarP(&identifier, "identifier", "I", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().BoolVar(&hashed, "srp6a", false, "use the hashed multiplier k = H(N, g)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}

func loadVerifier(filename string) (SRPVerifierExport, cml.SRP6SecurityBase, cml.SRP6ServerData, *srp6.Hasher, error) {
	var (
		export SRPVerifierExport
		base   cml.SRP6SecurityBase
		data   cml.SRP6ServerData
	)
	if err := loadJSON(filename, &export); err != nil {
		return export, base, data, nil, err
	}
	raw, err := decodeString(export.Base)
	if err != nil {
		return export, base, data, nil, errors.Wrap(err, "base")
	}
	if base, err = wire.UnmarshalSRP6SecurityBase(raw); err != nil {
		return export, base, data, nil, err
	}
	if raw, err = decodeString(export.Verifier); err != nil {
		return export, base, data, nil, errors.Wrap(err, "verifier")
	}
	if data, err = wire.UnmarshalSRP6Verifier(raw); err != nil {
		return export, base, data, nil, err
	}
	hash, err := srp6.ParseHash(export.Hash)
	if err != nil {
		return export, base, data, nil, err
	}
	h, err := srp6.NewHasher(srp6.WithHash(hash), srp6.WithPBKDF2(export.PBKDF2Iterations))
	return export, base, data, h, err
}

// login runs one full session: A, then B, then both proofs, each message
// passing through the wire encoding.
func login(base cml.SRP6SecurityBase, data cml.SRP6ServerData, identifier, password string, src cml.RandomSource, opts ...srp6.Option) error {
	client := srp6.NewClient(base, identifier, password, src, opts...)
	server := srp6.NewServer(base, data, src, opts...)
	defer client.Destroy()
	defer server.Destroy()

	if err := client.Generate(); err != nil {
		return err
	}
	msg, err := wire.MarshalSRP6ClientPublicKey(client.Public)
	if err != nil {
		return err
	}
	clientPub, err := wire.UnmarshalSRP6ClientPublicKey(msg)
	if err != nil {
		return err
	}

	if err := server.Generate(); err != nil {
		return err
	}
	if msg, err = wire.MarshalSRP6ServerPublicKey(server.Public); err != nil {
		return err
	}
	serverPub, err := wire.UnmarshalSRP6ServerPublicKey(msg)
	if err != nil {
		return err
	}

	if _, err := client.PrivateKey(serverPub); err != nil {
		return err
	}
	if _, err := server.PrivateKey(clientPub); err != nil {
		return err
	}
	m1, err := client.Proof()
	if err != nil {
		return err
	}
	m2, err := server.VerifyClient(m1)
	if err != nil {
		return err
	}
	return client.VerifyServer(m2)
}

func (a *app) srpLoginCmd() *cobra.Command {
	var (
		verifierFile string
		identifier   string
		password     string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate a password against a verifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verifierFile == "" {
				return errors.New("--verifier is required")
			}
			export, base, data, h, err := loadVerifier(verifierFile)
			if err != nil {
				return err
			}
			if identifier == "" {
				identifier = export.Identifier
			}
			src, err := a.cfg.Source()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if identifier != export.Identifier {
				failColor.Fprintf(w, "unknown identifier %q\n", identifier)
				return cml.ErrAuthentication
			}
			err = login(base, data, identifier, password, src,
				srp6.WithHasher(h),
				srp6.WithHardened(a.cfg.Params().Hardened),
			)
			if errors.Is(err, cml.ErrAuthentication) {
				failColor.Fprintln(w, "authentication failed")
				return err
			}
			if err != nil {
				return err
			}
			okColor.Fprintf(w, "authenticated ")
			keyColor.Fprintln(w, identifier)
			return nil
		},
	}
	cmd.Flags().StringVarP(&verifierFile, "verifier", "r", "", "verifier file written by 'srp register'")
	cmd.Flags().StringVarP(&identifier, "identifier", "I", "", "account name (default: the registered one)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password to try")
	return cmd
}
