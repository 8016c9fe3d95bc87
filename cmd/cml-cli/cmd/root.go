// Package cmd implements the cml-cli commands.
package cmd

import (
	"os"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BackendStack21/cml-go/internal/config"
)

const appName = "cml-cli"

var (
	// AppVersion stores the CLI version
	AppVersion = "1.0.0"
	// AppBuildTime stores the CLI build time
	AppBuildTime string
)

// app carries the state shared by one command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	format  string
	cfg     *config.Config
}

// NewRootCmd builds the command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Number theory and key exchange toolkit: primes, Diffie-Hellman, RSA and SRP6",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.SetHandler(clihandler.New(cmd.ErrOrStderr()))
			if a.verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.InfoLevel)
			}
			if err := config.Init(a.v, a.cfgFile); err != nil {
				return err
			}
			if a.v.ConfigFileUsed() != "" {
				log.Debugf("Using config file: %s", a.v.ConfigFileUsed())
			}
			format, err := parseFormat(a.format)
			if err != nil {
				return err
			}
			a.format = string(format)
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/cml/config.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "V", false, "verbose output")
	pf.StringVarP(&a.format, "format", "f", "hex", "encoding of binary output (hex|base64)")
	pf.StringP("level", "l", "", "security level (CML-16, CML-32, CML-64, CML-512, CML-1024, CML-2048)")
	pf.UintP("width", "w", 0, "prime bit-width (overrides the level)")
	pf.String("policy", "", "random source access policy (unsynchronized|exclusive)")
	pf.String("hash", "", "SRP6 hash (sha256|sha3-256|blake2b-256)")
	pf.Int("workers", 0, "concurrent prime searches")
	pf.Int("max-attempts", 0, "candidate cap per prime search")
	pf.Int("salt-length", 0, "SRP6 salt length")
	pf.Int("pbkdf2-iterations", 0, "PBKDF2 iterations applied to SRP6 passwords")
	pf.String("seed", "", "hex seed for reproducible output")
	for _, key := range []string{"level", "width", "policy", "hash", "workers", "max-attempts", "salt-length", "pbkdf2-iterations", "seed"} {
		a.v.BindPFlag(key, pf.Lookup(key))
	}

	rootCmd.AddCommand(
		a.primeCmd(),
		a.safePrimeCmd(),
		a.primitiveRootCmd(),
		a.dhCmd(),
		a.rsaCmd(),
		a.srpCmd(),
		a.benchCmd(),
		seedCmd(),
		versionCmd(),
	)
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	return rootCmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
