package srp6

import (
	"math/big"

	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/arith"
	"github.com/BackendStack21/cml-go/utils"
)

// Client is the password side of one SRP6 session. It is not safe for
// concurrent use.
type Client struct {
	Base    cml.SRP6SecurityBase
	Public  cml.SRP6ClientPublicKey
	Private cml.SRP6PrivateKey

	identifier string
	password   string
	a          *big.Int
	b          *big.Int // server public value, kept for the proofs
	src        cml.RandomSource
	opts       options
}

// NewClient returns a client logging in as identifier with password.
func NewClient(base cml.SRP6SecurityBase, identifier, password string, src cml.RandomSource, opts ...Option) *Client {
	return &Client{
		Base:       base,
		identifier: identifier,
		password:   password,
		src:        src,
		opts:       newOptions(opts),
	}
}

// Generate draws the private exponent a in [2, N-2] and publishes
// A = g^a mod N together with the identifier.
func (c *Client) Generate() error {
	if !ready(c.Base) {
		return cml.ErrBaseNotGenerated
	}
	a, err := c.src.DrawRange(two, new(big.Int).Sub(c.Base.N, two))
	if err != nil {
		return errors.Wrap(err, "failed to draw private exponent")
	}
	return c.GenerateWithExponent(a)
}

// GenerateWithExponent is Generate with a caller-chosen exponent a.
func (c *Client) GenerateWithExponent(a *big.Int) error {
	if !ready(c.Base) {
		return cml.ErrBaseNotGenerated
	}
	if a == nil || a.Sign() <= 0 {
		return errors.New("private exponent must be positive")
	}
	A := arith.Exp(c.Base.G, a, c.Base.N, c.opts.hardened)

	c.Destroy()
	c.a = new(big.Int).Set(a)
	c.Public = cml.SRP6ClientPublicKey{Identifier: c.identifier, A: A}
	return nil
}

// PrivateKey derives K from the server's public key:
// x = H(salt, password), u = H(A, B),
// S = (B - k*g^x mod N)^(u*x + a) mod N, K = H(S).
func (c *Client) PrivateKey(server cml.SRP6ServerPublicKey) (cml.SRP6PrivateKey, error) {
	if !ready(c.Base) {
		return cml.SRP6PrivateKey{}, cml.ErrBaseNotGenerated
	}
	if c.a == nil {
		return cml.SRP6PrivateKey{}, cml.ErrKeyNotGenerated
	}
	n := c.Base.N
	if server.B == nil || server.B.Sign() < 0 || new(big.Int).Mod(server.B, n).Sign() == 0 {
		return cml.SRP6PrivateKey{}, cml.ErrZeroPublicKey
	}

	h := c.opts.hasher
	u := h.Sum(c.Public.A, server.B)
	if u.Sign() == 0 {
		return cml.SRP6PrivateKey{}, errors.New("scrambling parameter is zero")
	}
	x := h.Password(server.Salt, c.password)

	kgx := arith.Exp(c.Base.G, x, n, c.opts.hardened)
	kgx.Mul(kgx, c.Base.K)
	kgx.Mod(kgx, n)
	base := new(big.Int).Sub(server.B, kgx)
	base.Mod(base, n)

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, c.a)
	S := arith.Exp(base, exp, n, c.opts.hardened)

	c.b = new(big.Int).Set(server.B)
	c.Private = cml.SRP6PrivateKey{K: h.Sum(S)}
	utils.ZeroizeBig(x)
	utils.ZeroizeBig(exp)
	utils.ZeroizeBig(S)
	return c.Private, nil
}

// Proof returns the client proof M1 = H(A, B, K).
func (c *Client) Proof() (*big.Int, error) {
	if c.Private.K == nil || c.b == nil {
		return nil, cml.ErrKeyNotGenerated
	}
	return clientProof(c.opts.hasher, c.Public.A, c.b, c.Private.K), nil
}

// VerifyServer checks the server proof M2 = H(A, M1, K). A mismatch yields
// cml.ErrAuthentication.
func (c *Client) VerifyServer(m2 *big.Int) error {
	m1, err := c.Proof()
	if err != nil {
		return err
	}
	h := c.opts.hasher
	if !equalProof(h, serverProof(h, c.Public.A, m1, c.Private.K), m2) {
		return cml.ErrAuthentication
	}
	return nil
}

// Destroy zeroizes the private exponent and the session key.
func (c *Client) Destroy() {
	utils.ZeroizeBig(c.a)
	utils.ZeroizeBig(c.Private.K)
	c.a = nil
	c.b = nil
	c.Private = cml.SRP6PrivateKey{}
}
