// Package config loads the cml-cli configuration from viper.
package config

import (
	"crypto"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/core"
	"github.com/BackendStack21/cml-go/rng"
	"github.com/BackendStack21/cml-go/srp6"
	"github.com/BackendStack21/cml-go/utils"
)

// EnvPrefix is the environment variable prefix, as in CML_WIDTH.
const EnvPrefix = "cml"

// DefaultLevel is used when no level is configured.
const DefaultLevel = cml.CML64

// Config is the configuration struct
type Config struct {
	Level            string `mapstructure:"level"`
	Width            uint   `mapstructure:"width"`
	Policy           string `mapstructure:"policy"`
	Hash             string `mapstructure:"hash"`
	Workers          int    `mapstructure:"workers"`
	MaxAttempts      int    `mapstructure:"max-attempts"`
	SaltLength       int    `mapstructure:"salt-length"`
	PBKDF2Iterations int    `mapstructure:"pbkdf2-iterations"`
	// Seed is a hex string; when set every random draw is reproducible.
	Seed string `mapstructure:"seed"`

	params cml.Params
	policy rng.Policy
	hash   crypto.Hash
	seed   []byte
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("level", string(DefaultLevel))
	v.SetDefault("policy", rng.Unsynchronized.String())
	v.SetDefault("hash", "sha256")
	v.SetDefault("workers", 1)
	v.SetDefault("width", 0)
	v.SetDefault("max-attempts", 0)
	v.SetDefault("salt-length", 0)
	v.SetDefault("pbkdf2-iterations", 0)
	v.SetDefault("seed", "")
}

// Init points v at the config file and the CML_ environment. An empty
// cfgFile searches $HOME/.config/cml/config.yaml. A missing file is not an
// error.
func Init(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "config: failed to get user home directory")
		}
		v.AddConfigPath(filepath.Join(home, ".config", "cml"))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return nil
		}
		return errors.Wrap(err, "config: failed to read config file")
	}
	return nil
}

func (c *Config) verify() error {
	if c.Level == "" {
		c.Level = string(DefaultLevel)
	}
	level, err := core.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	params, err := core.GetParams(level)
	if err != nil {
		return err
	}
	c.Level = string(level)

	if c.Width != 0 {
		params.Width = cml.Width(c.Width)
		if params.GroupBits != 0 && int(c.Width) != params.GroupBits {
			// an explicit width replaces the well-known group
			params.GroupBits = 0
		}
	}
	if c.MaxAttempts != 0 {
		params.MaxAttempts = c.MaxAttempts
	}
	if c.SaltLength != 0 {
		params.SaltLength = c.SaltLength
	}
	if err := core.ValidateParams(params); err != nil {
		return err
	}
	c.params = params

	if c.policy, err = rng.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if c.hash, err = srp6.ParseHash(c.Hash); err != nil {
		return err
	}

	if c.Workers == 0 {
		c.Workers = 1
	}
	if err := utils.CheckPositive(c.Workers, "workers"); err != nil {
		return err
	}
	if c.PBKDF2Iterations < 0 {
		return errors.Errorf("pbkdf2-iterations must not be negative, got %d", c.PBKDF2Iterations)
	}

	if c.Seed != "" {
		seed, err := hex.DecodeString(c.Seed)
		if err != nil {
			return errors.Wrap(err, "seed must be hex")
		}
		if err := utils.ValidateSeedEntropy(seed); err != nil {
			return errors.Wrap(err, "seed")
		}
		c.seed = seed
	}
	return nil
}

// Load unmarshals and verifies the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "config: failed to unmarshal")
	}

	if err := c.verify(); err != nil {
		return nil, errors.Wrap(err, "config: failed to verify")
	}

	return &c, nil
}

// Params returns the parameter set after overrides.
func (c *Config) Params() cml.Params {
	return c.params
}

// HashFunc returns the configured SRP6 digest.
func (c *Config) HashFunc() crypto.Hash {
	return c.hash
}

// Hasher builds the SRP6 hasher.
func (c *Config) Hasher() (*srp6.Hasher, error) {
	return srp6.NewHasher(srp6.WithHash(c.hash), srp6.WithPBKDF2(c.PBKDF2Iterations))
}

// Source returns a random source of the configured width, seeded when a
// seed is configured, wrapped with the configured access policy.
func (c *Config) Source() (cml.RandomSource, error) {
	var (
		src *rng.Source
		err error
	)
	if c.seed != nil {
		src, err = rng.NewSeeded(c.params.Width, c.seed)
	} else {
		src, err = rng.New(c.params.Width)
	}
	if err != nil {
		return nil, err
	}
	return rng.WithPolicy(src, c.policy)
}
