package arith

import (
	"math/big"

	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
)

// Gcd returns the greatest common divisor of |a| and |b|.
func Gcd(a, b *big.Int) *big.Int {
	x := new(big.Int).Abs(a)
	y := new(big.Int).Abs(b)
	r := new(big.Int)
	for y.Sign() != 0 {
		r.Rem(x, y)
		x, y, r = y, r, x
	}
	return x
}

// Gcdex returns d = gcd(a, b) with Bézout coefficients x, y such that
// a*x + b*y = d. For a == 0 it returns (b, 0, 1). Inputs are expected to
// be non-negative.
func Gcdex(a, b *big.Int) (d, x, y *big.Int) {
	oldR, r := new(big.Int).Set(a), new(big.Int).Set(b)
	oldS, s := big.NewInt(1), big.NewInt(0)
	oldT, t := big.NewInt(0), big.NewInt(1)

	q := new(big.Int)
	tmp := new(big.Int)
	for r.Sign() != 0 {
		q.Quo(oldR, r)

		tmp.Mul(q, r)
		oldR, r = r, new(big.Int).Sub(oldR, tmp)

		tmp.Mul(q, s)
		oldS, s = s, new(big.Int).Sub(oldS, tmp)

		tmp.Mul(q, t)
		oldT, t = t, new(big.Int).Sub(oldT, tmp)
	}
	return oldR, oldS, oldT
}

// Invmod returns x in [0, m) with a*x ≡ 1 (mod m). It fails with
// cml.ErrNotCoprime when gcd(a, m) != 1.
func Invmod(a, m *big.Int) (*big.Int, error) {
	if m.Sign() <= 0 {
		panic("arith: modulus must be positive")
	}
	ar := new(big.Int).Mod(a, m)
	d, x, _ := Gcdex(ar, m)
	if d.Cmp(one) != 0 {
		return nil, errors.Wrapf(cml.ErrNotCoprime, "gcd(%s, %s) = %s", a, m, d)
	}
	// ((x % m) + m) % m
	x.Rem(x, m)
	x.Add(x, m)
	x.Rem(x, m)
	return x, nil
}
