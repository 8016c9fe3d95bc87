package config

import (
	"crypto"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/rng"
)

const testSeed = "8f14e45fceea167a5a36dedd4bea2543c9f0f895fb98ab9159f51fd0297e236d"

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(newViper(t))
	require.NoError(t, err)

	require.Equal(t, string(cml.CML64), c.Level)
	require.Equal(t, cml.Width(64), c.Params().Width)
	require.Equal(t, 16, c.Params().SaltLength)
	require.Equal(t, crypto.SHA256, c.HashFunc())
	require.Equal(t, 1, c.Workers)

	src, err := c.Source()
	require.NoError(t, err)
	require.Equal(t, cml.Width(64), src.Width())
	_, locked := src.(*rng.Locked)
	require.False(t, locked)
}

func TestLoad_Overrides(t *testing.T) {
	v := newViper(t)
	v.Set("level", "cml-1024")
	v.Set("width", 50)
	v.Set("policy", "exclusive")
	v.Set("hash", "blake2b-256")
	v.Set("salt-length", 24)
	v.Set("pbkdf2-iterations", 1000)
	v.Set("workers", 4)

	c, err := Load(v)
	require.NoError(t, err)

	p := c.Params()
	require.Equal(t, cml.CML1024, p.Level)
	require.Equal(t, cml.Width(50), p.Width)
	require.Zero(t, p.GroupBits, "explicit width must drop the well-known group")
	require.True(t, p.Hardened)
	require.Equal(t, 24, p.SaltLength)
	require.Equal(t, crypto.BLAKE2b_256, c.HashFunc())
	require.Equal(t, 4, c.Workers)

	h, err := c.Hasher()
	require.NoError(t, err)
	require.Equal(t, crypto.BLAKE2b_256, h.Hash())

	src, err := c.Source()
	require.NoError(t, err)
	_, locked := src.(*rng.Locked)
	require.True(t, locked)
}

func TestLoad_Seed(t *testing.T) {
	v := newViper(t)
	v.Set("seed", testSeed)
	c, err := Load(v)
	require.NoError(t, err)

	s1, err := c.Source()
	require.NoError(t, err)
	s2, err := c.Source()
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		a, err := s1.Draw()
		require.NoError(t, err)
		b, err := s2.Draw()
		require.NoError(t, err)
		require.Zero(t, a.Cmp(b), "seeded sources diverged at draw %d", i)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value interface{}
	}{
		{"level", "CML-3"},
		{"width", 1},
		{"policy", "sometimes"},
		{"hash", "md5"},
		{"workers", -2},
		{"max-attempts", -1},
		{"salt-length", 4},
		{"pbkdf2-iterations", -1},
		{"seed", "not-hex"},
		{"seed", "0000"},
	}
	for _, tt := range tests {
		v := newViper(t)
		v.Set(tt.key, tt.value)
		_, err := Load(v)
		require.Error(t, err, "%s=%v", tt.key, tt.value)
	}

	v := newViper(t)
	v.Set("policy", "sometimes")
	_, err := Load(v)
	require.True(t, errors.Is(err, cml.ErrInvalidPolicy))
}

func TestInit_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("level: CML-32\nhash: sha3-256\nsalt-length: 20\n"), 0600))

	v := newViper(t)
	require.NoError(t, Init(v, path))
	c, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, string(cml.CML32), c.Level)
	require.Equal(t, crypto.SHA3_256, c.HashFunc())
	require.Equal(t, 20, c.Params().SaltLength)

	require.Error(t, Init(newViper(t), filepath.Join(dir, "missing.yaml")))
}

func TestInit_Env(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CML_LEVEL", "16")
	t.Setenv("CML_MAX_ATTEMPTS", "99")

	v := newViper(t)
	require.NoError(t, Init(v, ""))
	c, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, string(cml.CML16), c.Level)
	require.Equal(t, 99, c.Params().MaxAttempts)
}
