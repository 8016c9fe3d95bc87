package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/wire"
)

const testSeed = "8f14e45fceea167a5a36dedd4bea2543c9f0f895fb98ab9159f51fd0297e236d"

// run executes one command line in-process with an empty home directory.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "args: %v\noutput: %s", args, out)
	return out
}

func parseLines(t *testing.T, out string) []*big.Int {
	t.Helper()
	var vals []*big.Int
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		v, ok := new(big.Int).SetString(line, 10)
		require.True(t, ok, "not a decimal integer: %q", line)
		vals = append(vals, v)
	}
	return vals
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "version")
	require.Contains(t, out, "cml-cli version "+AppVersion)
	require.Contains(t, out, "cml library version "+cml.Version)
}

func TestSeed(t *testing.T) {
	out := mustRun(t, "seed")
	seed := strings.TrimSpace(out)
	require.Len(t, seed, 2*seedSize)

	again := mustRun(t, "seed")
	require.NotEqual(t, out, again)

	out = mustRun(t, "--seed", seed, "-l", "CML-16", "prime")
	require.Equal(t, 16, parseLines(t, out)[0].BitLen())
}

func TestPrime(t *testing.T) {
	out := mustRun(t, "--seed", testSeed, "-l", "CML-32", "prime", "-n", "3")
	primes := parseLines(t, out)
	require.Len(t, primes, 3)
	for _, p := range primes {
		require.Equal(t, 32, p.BitLen())
		require.True(t, p.ProbablyPrime(20), "%s is composite", p)
	}

	again := mustRun(t, "--seed", testSeed, "-l", "CML-32", "prime", "-n", "3")
	require.Equal(t, out, again, "seeded runs must repeat")

	out = mustRun(t, "-l", "CML-16", "--workers", "4", "--policy", "exclusive", "prime")
	p := parseLines(t, out)[0]
	require.Equal(t, 16, p.BitLen())
	require.True(t, p.ProbablyPrime(20))

	_, err := run(t, "prime", "-n", "0")
	require.Error(t, err)
}

func TestSafePrime(t *testing.T) {
	out := mustRun(t, "--seed", testSeed, "-l", "CML-16", "safeprime", "-n", "2")
	for _, p := range parseLines(t, out) {
		require.Equal(t, 16, p.BitLen())
		require.True(t, p.ProbablyPrime(20))
		q := new(big.Int).Rsh(p, 1)
		require.True(t, q.ProbablyPrime(20), "(%s-1)/2 is composite", p)
	}

	_, err := run(t, "-w", "2", "safeprime")
	require.Error(t, err)
}

func TestPrimitiveRoot(t *testing.T) {
	tests := []struct {
		n    string
		want string
	}{
		{"7", "3"},
		{"23", "5"},
		{"0x17", "5"},
		{"0b10111", "5"},
		{"2", "1"},
		{"21", "0"},
	}
	for _, tt := range tests {
		out := mustRun(t, "--seed", testSeed, "root", tt.n)
		require.Equal(t, tt.want, strings.TrimSpace(out), "root %s", tt.n)
	}

	_, err := run(t, "root", "0")
	require.Error(t, err)
	_, err = run(t, "root", "0xzz")
	require.Error(t, err)
	_, err = run(t, "root")
	require.Error(t, err)
}

func TestDH(t *testing.T) {
	dir := t.TempDir()
	baseFile := filepath.Join(dir, "base.json")
	mustRun(t, "--seed", testSeed, "-l", "CML-32", "dh", "base", "-o", baseFile)

	info, err := os.Stat(baseFile)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	var base DHBaseExport
	require.NoError(t, loadJSON(baseFile, &base))
	require.Equal(t, string(cml.CML32), base.SecurityLevel)
	require.Equal(t, 32, base.Bits)

	out := mustRun(t, "-l", "CML-32", "dh", "exchange", "--base", baseFile, "--validate")
	var ex DHExchangeExport
	require.NoError(t, json.Unmarshal([]byte(out), &ex))
	require.Equal(t, base.Base, ex.Base)
	require.NotEmpty(t, ex.SharedSecret)

	pub, err := decodeString(ex.AlicePublic)
	require.NoError(t, err)
	kind, err := wire.PeekKind(pub)
	require.NoError(t, err)
	require.Equal(t, wire.KindDHPublicKey, kind)

	out = mustRun(t, "-l", "CML-16", "-f", "base64", "dh", "exchange")
	require.NoError(t, json.Unmarshal([]byte(out), &ex))
	require.NotEmpty(t, ex.SharedSecret)
}

func TestDH_Group(t *testing.T) {
	out := mustRun(t, "-l", "CML-1024", "dh", "base")
	var base DHBaseExport
	require.NoError(t, json.Unmarshal([]byte(out), &base))
	require.Equal(t, 1024, base.Bits)
	require.Equal(t, "2", base.Generator)
}

func TestRSA(t *testing.T) {
	dir := t.TempDir()
	kp := filepath.Join(dir, "keypair.json")
	ct := filepath.Join(dir, "ciphertext.json")
	plain := filepath.Join(dir, "plain.txt")

	mustRun(t, "--seed", testSeed, "-l", "CML-32", "rsa", "keygen", "-o", kp)
	mustRun(t, "-l", "CML-32", "rsa", "encrypt", "--public-key", kp, "-m", "hello, cml", "-o", ct)
	out := mustRun(t, "rsa", "decrypt", "--private-key", kp, "--ciphertext", ct)
	require.Equal(t, "hello, cml\n", out)

	mustRun(t, "rsa", "decrypt", "-k", kp, "-c", ct, "-o", plain)
	got, err := os.ReadFile(plain)
	require.NoError(t, err)
	require.Equal(t, "hello, cml", string(got))

	// an empty message survives too
	mustRun(t, "rsa", "encrypt", "-k", kp, "-o", ct)
	out = mustRun(t, "rsa", "decrypt", "-k", kp, "-c", ct)
	require.Equal(t, "\n", out)
}

func TestRSA_Base64(t *testing.T) {
	dir := t.TempDir()
	kp := filepath.Join(dir, "keypair.json")
	ct := filepath.Join(dir, "ciphertext.json")
	msg := filepath.Join(dir, "msg.bin")
	require.NoError(t, os.WriteFile(msg, []byte{0, 1, 2, 0xff, 0, 0}, 0600))

	mustRun(t, "-f", "base64", "-l", "CML-16", "rsa", "keygen", "-o", kp)
	mustRun(t, "-f", "base64", "rsa", "encrypt", "-k", kp, "-i", msg, "-o", ct)

	var export RSACiphertextExport
	require.NoError(t, loadJSON(ct, &export))
	require.Equal(t, 6, export.Length)
	require.Equal(t, 3, export.BlockSize)

	out := mustRun(t, "rsa", "decrypt", "-k", kp, "-c", ct)
	require.Equal(t, string([]byte{0, 1, 2, 0xff, 0, 0})+"\n", out)
}

func TestRSA_Tampered(t *testing.T) {
	dir := t.TempDir()
	kp := filepath.Join(dir, "keypair.json")
	ct := filepath.Join(dir, "ciphertext.json")
	mustRun(t, "--seed", testSeed, "-l", "CML-32", "rsa", "keygen", "-o", kp)
	mustRun(t, "rsa", "encrypt", "-k", kp, "-m", "x", "-o", ct)

	var export RSAKeyPairExport
	require.NoError(t, loadJSON(kp, &export))
	other, err := run(t, "-l", "CML-32", "rsa", "keygen")
	require.NoError(t, err)
	var fresh RSAKeyPairExport
	require.NoError(t, json.Unmarshal([]byte(other), &fresh))
	export.PrivateKey = fresh.PrivateKey
	data, err := json.Marshal(export)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(kp, data, 0600))

	_, err = run(t, "rsa", "decrypt", "-k", kp, "-c", ct)
	require.ErrorContains(t, err, "checksum mismatch")

	_, err = run(t, "rsa", "decrypt", "-k", kp)
	require.Error(t, err)
	_, err = run(t, "rsa", "encrypt", "-m", "x")
	require.Error(t, err)
}

func TestSRP(t *testing.T) {
	dir := t.TempDir()
	verifier := filepath.Join(dir, "alice.json")
	mustRun(t, "--seed", testSeed, "-l", "CML-32", "srp", "register", "-I", "alice", "-p", "hunter2", "-o", verifier)

	var export SRPVerifierExport
	require.NoError(t, loadJSON(verifier, &export))
	require.Equal(t, "alice", export.Identifier)
	require.Equal(t, "SHA-256", export.Hash)
	require.NotContains(t, export.Verifier, "hunter2")

	out := mustRun(t, "srp", "login", "-r", verifier, "-p", "hunter2")
	require.Contains(t, out, "authenticated")
	require.Contains(t, out, "alice")

	out, err := run(t, "srp", "login", "-r", verifier, "-p", "hunter3")
	require.True(t, errors.Is(err, cml.ErrAuthentication), "got %v", err)
	require.Contains(t, out, "authentication failed")

	_, err = run(t, "srp", "login", "-r", verifier, "-I", "bob", "-p", "hunter2")
	require.True(t, errors.Is(err, cml.ErrAuthentication))

	_, err = run(t, "srp", "register", "-I", "alice")
	require.Error(t, err)
}

func TestSRP_Options(t *testing.T) {
	dir := t.TempDir()
	verifier := filepath.Join(dir, "carol.json")
	mustRun(t, "-l", "CML-16", "--hash", "sha3-256", "--pbkdf2-iterations", "8", "--salt-length", "12",
		"srp", "register", "--srp6a", "-I", "carol", "-p", "s3cret", "-o", verifier)

	var export SRPVerifierExport
	require.NoError(t, loadJSON(verifier, &export))
	require.Equal(t, "SHA3-256", export.Hash)
	require.Equal(t, 8, export.PBKDF2Iterations)

	raw, err := decodeString(export.Verifier)
	require.NoError(t, err)
	data, err := wire.UnmarshalSRP6Verifier(raw)
	require.NoError(t, err)
	require.Len(t, data.Salt, 12)

	raw, err = decodeString(export.Base)
	require.NoError(t, err)
	base, err := wire.UnmarshalSRP6SecurityBase(raw)
	require.NoError(t, err)
	require.NotEqual(t, int64(3), base.K.Int64(), "srp6a multiplier must be hashed")

	// the verifier records its own hash, so the login flags do not matter
	out := mustRun(t, "--hash", "blake2b", "srp", "login", "-r", verifier, "-p", "s3cret")
	require.Contains(t, out, "authenticated")
}

func TestBench(t *testing.T) {
	out := mustRun(t, "--seed", testSeed, "-l", "CML-16", "bench", "-n", "2")
	for _, name := range []string{"Prime:", "DH exchange:", "RSA decrypt:", "SRP6 session:", "Benchmark complete!"} {
		require.Contains(t, out, name)
	}
}

func TestInvalidFlags(t *testing.T) {
	for _, args := range [][]string{
		{"--format", "xml", "prime"},
		{"--level", "CML-3", "prime"},
		{"--seed", "00", "prime"},
		{"--hash", "md5", "prime"},
		{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "prime"},
	} {
		_, err := run(t, args...)
		require.Error(t, err, "args: %v", args)
	}
}

func TestConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("level: CML-16\nseed: "+testSeed+"\n"), 0600))

	out := mustRun(t, "--config", cfg, "prime")
	require.Equal(t, 16, parseLines(t, out)[0].BitLen())

	// flags override the file
	out = mustRun(t, "--config", cfg, "-l", "CML-32", "prime")
	require.Equal(t, 32, parseLines(t, out)[0].BitLen())
}

func TestBlocks(t *testing.T) {
	msg := []byte("The quick brown fox jumps over the lazy dog")
	for _, size := range []int{1, 3, 7, 8} {
		blocks := packBlocks(msg, size)
		require.Len(t, blocks, (len(msg)+size-1)/size)
		got, err := unpackBlocks(blocks, size, len(msg))
		require.NoError(t, err)
		require.Equal(t, msg, got)
	}

	_, err := unpackBlocks(packBlocks(msg, 8), 8, len(msg)+8)
	require.Error(t, err)
	_, err = unpackBlocks(packBlocks(msg, 8), 8, 8)
	require.Error(t, err)

	size, err := blockSize(32)
	require.NoError(t, err)
	require.Equal(t, 3, size)
	size, err = blockSize(2048)
	require.NoError(t, err)
	require.Equal(t, 8, size)
	_, err = blockSize(8)
	require.ErrorIs(t, err, cml.ErrMessageTooLarge)
}
