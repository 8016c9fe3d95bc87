package srp6

import (
	"crypto"
	_ "crypto/sha256"
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/pbkdf2"
	_ "golang.org/x/crypto/sha3"
)

// DefaultHash is the digest used when no HasherOption selects another.
const DefaultHash = crypto.SHA256

// HasherOption configures a Hasher.
type HasherOption func(*Hasher)

// WithHash selects the digest. It must be linked into the binary; SHA-256,
// SHA3-256 and BLAKE2b-256 always are.
func WithHash(h crypto.Hash) HasherOption {
	return func(hs *Hasher) {
		hs.hash = h
	}
}

// WithPBKDF2 stretches the password with PBKDF2 over the selected digest
// before it enters x = H(salt, password). 0 disables stretching.
func WithPBKDF2(iterations int) HasherOption {
	return func(hs *Hasher) {
		hs.iterations = iterations
	}
}

// Hasher is the SRP6 hash H. Each argument is serialized as text (integers
// in decimal), the texts are concatenated in call order and the digest is
// read as a big-endian unsigned integer.
type Hasher struct {
	hash       crypto.Hash
	iterations int
}

// NewHasher returns a Hasher with the given options applied.
func NewHasher(opts ...HasherOption) (*Hasher, error) {
	h := &Hasher{hash: DefaultHash}
	for _, opt := range opts {
		opt(h)
	}
	if !h.hash.Available() {
		return nil, errors.Errorf("hash function %s is not available", h.hash)
	}
	if h.iterations < 0 {
		return nil, errors.Errorf("invalid PBKDF2 iteration count %d", h.iterations)
	}
	return h, nil
}

// Hash reports the underlying digest.
func (h *Hasher) Hash() crypto.Hash {
	return h.hash
}

// Size is the digest length in bytes.
func (h *Hasher) Size() int {
	return h.hash.Size()
}

// Sum returns H(args...).
func (h *Hasher) Sum(args ...interface{}) *big.Int {
	return new(big.Int).SetBytes(h.digest(args...))
}

func (h *Hasher) digest(args ...interface{}) []byte {
	d := h.hash.New()
	for _, a := range args {
		fmt.Fprint(d, a)
	}
	return d.Sum(nil)
}

// Password returns x = H(salt, password), stretching the password first
// when PBKDF2 is enabled.
func (h *Hasher) Password(salt, password string) *big.Int {
	if h.iterations == 0 {
		return h.Sum(salt, password)
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), h.iterations, h.Size(), h.hash.New)
	return h.Sum(salt, fmt.Sprintf("%x", key))
}

// ParseHash maps a configuration name to a digest. Accepted names are
// sha256, sha3-256 and blake2b-256; the empty string selects DefaultHash.
func ParseHash(name string) (crypto.Hash, error) {
	switch strings.ToLower(name) {
	case "", "sha256", "sha-256":
		return crypto.SHA256, nil
	case "sha3-256", "sha3":
		return crypto.SHA3_256, nil
	case "blake2b-256", "blake2b":
		return crypto.BLAKE2b_256, nil
	default:
		return 0, errors.Errorf("unknown hash function %q", name)
	}
}
