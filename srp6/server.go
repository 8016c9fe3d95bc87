package srp6

import (
	"math/big"

	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/arith"
	"github.com/BackendStack21/cml-go/rng"
	"github.com/BackendStack21/cml-go/utils"
)

// DefaultSaltLength is the salt length in characters.
const DefaultSaltLength = 16

// Option configures server data, a Server or a Client.
type Option func(*options)

type options struct {
	hasher     *Hasher
	saltLength int
	hardened   bool
}

// WithHasher selects H. Both sides of a session must use the same one.
func WithHasher(h *Hasher) Option {
	return func(o *options) {
		o.hasher = h
	}
}

// WithSaltLength sets the length of generated salts.
func WithSaltLength(n int) Option {
	return func(o *options) {
		o.saltLength = n
	}
}

// WithHardened selects constant-time exponentiation for secret exponents.
func WithHardened(hardened bool) Option {
	return func(o *options) {
		o.hardened = hardened
	}
}

var defaultHasher = &Hasher{hash: DefaultHash}

func newOptions(opts []Option) options {
	o := options{hasher: defaultHasher, saltLength: DefaultSaltLength}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewServerData registers password: it draws a salt, computes
// x = H(salt, password) and the verifier v = g^x mod N. Only the salt and
// v need to be stored.
func NewServerData(base cml.SRP6SecurityBase, password string, src cml.RandomSource, opts ...Option) (cml.SRP6ServerData, error) {
	if !ready(base) {
		return cml.SRP6ServerData{}, cml.ErrBaseNotGenerated
	}
	o := newOptions(opts)
	if err := utils.CheckPositive(o.saltLength, "salt length"); err != nil {
		return cml.SRP6ServerData{}, err
	}

	salt, err := rng.String(o.saltLength, src, rng.DefaultAlphabet)
	if err != nil {
		return cml.SRP6ServerData{}, errors.Wrap(err, "failed to draw salt")
	}
	x := o.hasher.Password(salt, password)
	v := arith.Exp(base.G, x, base.N, o.hardened)
	return cml.SRP6ServerData{Salt: salt, X: x, V: v}, nil
}

// Server is the verifier side of one SRP6 session. It is not safe for
// concurrent use.
type Server struct {
	Base    cml.SRP6SecurityBase
	Data    cml.SRP6ServerData
	Public  cml.SRP6ServerPublicKey
	Private cml.SRP6PrivateKey

	b    *big.Int
	a    *big.Int // client public value, kept for the proofs
	src  cml.RandomSource
	opts options
}

// NewServer returns a server for the account described by data.
func NewServer(base cml.SRP6SecurityBase, data cml.SRP6ServerData, src cml.RandomSource, opts ...Option) *Server {
	return &Server{Base: base, Data: data, src: src, opts: newOptions(opts)}
}

// Generate draws the private exponent b in [2, N-2] and publishes
// B = k*v mod N + g^b mod N together with the salt.
func (s *Server) Generate() error {
	if !ready(s.Base) {
		return cml.ErrBaseNotGenerated
	}
	b, err := s.src.DrawRange(two, new(big.Int).Sub(s.Base.N, two))
	if err != nil {
		return errors.Wrap(err, "failed to draw private exponent")
	}
	return s.GenerateWithExponent(b)
}

// GenerateWithExponent is Generate with a caller-chosen exponent b.
func (s *Server) GenerateWithExponent(b *big.Int) error {
	if !ready(s.Base) {
		return cml.ErrBaseNotGenerated
	}
	if s.Data.V == nil {
		return errors.New("server data has no verifier")
	}
	if b == nil || b.Sign() <= 0 {
		return errors.New("private exponent must be positive")
	}

	n := s.Base.N
	kv := new(big.Int).Mul(s.Base.K, s.Data.V)
	kv.Mod(kv, n)
	B := kv.Add(kv, arith.Exp(s.Base.G, b, n, s.opts.hardened))

	s.Destroy()
	s.b = new(big.Int).Set(b)
	s.Public = cml.SRP6ServerPublicKey{Salt: s.Data.Salt, B: B}
	return nil
}

// PrivateKey derives K from the client's public key:
// u = H(A, B), S = (A * v^u mod N)^b mod N, K = H(S).
func (s *Server) PrivateKey(client cml.SRP6ClientPublicKey) (cml.SRP6PrivateKey, error) {
	if !ready(s.Base) {
		return cml.SRP6PrivateKey{}, cml.ErrBaseNotGenerated
	}
	if s.b == nil {
		return cml.SRP6PrivateKey{}, cml.ErrKeyNotGenerated
	}
	n := s.Base.N
	if client.A == nil || client.A.Sign() < 0 || new(big.Int).Mod(client.A, n).Sign() == 0 {
		return cml.SRP6PrivateKey{}, cml.ErrZeroPublicKey
	}

	h := s.opts.hasher
	u := h.Sum(client.A, s.Public.B)
	if u.Sign() == 0 {
		return cml.SRP6PrivateKey{}, errors.New("scrambling parameter is zero")
	}

	base := arith.Modexp(s.Data.V, u, n)
	base.Mul(base, client.A)
	S := arith.Exp(base, s.b, n, s.opts.hardened)

	s.a = new(big.Int).Set(client.A)
	s.Private = cml.SRP6PrivateKey{K: h.Sum(S)}
	utils.ZeroizeBig(S)
	return s.Private, nil
}

// VerifyClient checks the client proof M1 = H(A, B, K) and returns the
// server proof M2 = H(A, M1, K). A mismatch yields cml.ErrAuthentication.
func (s *Server) VerifyClient(m1 *big.Int) (*big.Int, error) {
	if s.Private.K == nil || s.a == nil {
		return nil, cml.ErrKeyNotGenerated
	}
	h := s.opts.hasher
	want := clientProof(h, s.a, s.Public.B, s.Private.K)
	if !equalProof(h, want, m1) {
		return nil, cml.ErrAuthentication
	}
	return serverProof(h, s.a, want, s.Private.K), nil
}

// Destroy zeroizes the private exponent and the session key.
func (s *Server) Destroy() {
	utils.ZeroizeBig(s.b)
	utils.ZeroizeBig(s.Private.K)
	s.b = nil
	s.a = nil
	s.Private = cml.SRP6PrivateKey{}
}
