package srp6

import (
	"context"
	"crypto"
	"fmt"
	"math/big"
	"testing"

	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/prime"
	"github.com/BackendStack21/cml-go/rng"
	"github.com/BackendStack21/cml-go/utils"
)

const (
	identifier = "Login"
	password   = "Password"
)

func seeded(t testing.TB, width cml.Width, label string) *rng.Source {
	t.Helper()
	src, err := rng.NewSeeded(width, utils.SHA3256([]byte(label)))
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func newBase(t testing.TB, width cml.Width, src cml.RandomSource) cml.SRP6SecurityBase {
	t.Helper()
	inner, err := prime.NewGenerator(width, src, prime.Options{})
	if err != nil {
		t.Fatal(err)
	}
	gen, err := prime.NewSafeGenerator(inner, src, prime.Options{})
	if err != nil {
		t.Fatal(err)
	}
	base, err := NewSecurityBase(context.Background(), gen, src)
	if err != nil {
		t.Fatalf("NewSecurityBase(%d) failed: %v", width, err)
	}
	return base
}

// session runs one exchange and returns both derived keys.
func session(t *testing.T, base cml.SRP6SecurityBase, src cml.RandomSource, clientPassword string, opts ...Option) (client, server *big.Int) {
	t.Helper()
	data, err := NewServerData(base, password, src, opts...)
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(base, identifier, clientPassword, src, opts...)
	s := NewServer(base, data, src, opts...)
	if err := c.Generate(); err != nil {
		t.Fatal(err)
	}
	if err := s.Generate(); err != nil {
		t.Fatal(err)
	}

	ck, err := c.PrivateKey(s.Public)
	if err != nil {
		t.Fatalf("client PrivateKey failed: %v", err)
	}
	sk, err := s.PrivateKey(c.Public)
	if err != nil {
		t.Fatalf("server PrivateKey failed: %v", err)
	}
	return ck.K, sk.K
}

func TestAgreement(t *testing.T) {
	for _, w := range []cml.Width{30, 50} {
		t.Run(fmt.Sprintf("%d-bit", w), func(t *testing.T) {
			src := seeded(t, w, fmt.Sprintf("srp6-agreement-%d", w))
			base := newBase(t, w, src)
			if err := Validate(base, src); err != nil {
				t.Fatalf("Validate rejected a generated base: %v", err)
			}
			for run := 0; run < 100; run++ {
				ck, sk := session(t, base, src, password, WithHardened(run%2 == 1))
				if ck.Cmp(sk) != 0 {
					t.Fatalf("run %d: keys differ: client %s, server %s (N=%s g=%s)", run, ck, sk, base.N, base.G)
				}
			}
		})
	}
}

func TestAgreement_HashedMultiplier(t *testing.T) {
	src := seeded(t, 50, "srp6-base-a")
	for _, hash := range []crypto.Hash{crypto.SHA256, crypto.SHA3_256, crypto.BLAKE2b_256} {
		h, err := NewHasher(WithHash(hash), WithPBKDF2(16))
		if err != nil {
			t.Fatal(err)
		}
		inner, _ := prime.NewGenerator(50, src, prime.Options{})
		gen, _ := prime.NewSafeGenerator(inner, src, prime.Options{})
		base, err := NewSecurityBaseA(context.Background(), gen, src, h)
		if err != nil {
			t.Fatal(err)
		}
		if base.K.Cmp(h.Sum(base.N, base.G)) != 0 {
			t.Errorf("%s: k is not H(N, g)", hash)
		}
		for run := 0; run < 10; run++ {
			ck, sk := session(t, base, src, password, WithHasher(h))
			if ck.Cmp(sk) != 0 {
				t.Fatalf("%s run %d: keys differ", hash, run)
			}
		}
	}
}

func TestAgreement_Group(t *testing.T) {
	base, err := Group(1024)
	if err != nil {
		t.Fatal(err)
	}
	src := seeded(t, 1024, "srp6-group")
	ck, sk := session(t, base, src, password, WithHardened(true), WithSaltLength(32))
	if ck.Cmp(sk) != 0 {
		t.Fatal("keys differ over the 1024-bit group")
	}
}

func TestGroup(t *testing.T) {
	src := seeded(t, 64, "srp6-groups")
	for _, bits := range []int{1024, 1536, 2048} {
		base, err := Group(bits)
		if err != nil {
			t.Fatalf("Group(%d) failed: %v", bits, err)
		}
		if base.N.BitLen() != bits {
			t.Errorf("Group(%d) modulus has %d bits", bits, base.N.BitLen())
		}
		if base.K.Int64() != DefaultMultiplier || base.G.Int64() != 2 {
			t.Errorf("Group(%d) = g %s, k %s", bits, base.G, base.K)
		}
		if testing.Short() && bits > 1024 {
			continue
		}
		if err := Validate(base, src); err != nil {
			t.Errorf("Validate(Group(%d)) failed: %v", bits, err)
		}
	}
	if _, err := Group(3000); err == nil {
		t.Error("Group(3000) should fail")
	}
}

func TestTamper(t *testing.T) {
	src := seeded(t, 50, "srp6-tamper")
	base := newBase(t, 50, src)

	fresh := func() (*Client, *Server) {
		data, err := NewServerData(base, password, src)
		if err != nil {
			t.Fatal(err)
		}
		c := NewClient(base, identifier, password, src)
		s := NewServer(base, data, src)
		if err := c.Generate(); err != nil {
			t.Fatal(err)
		}
		if err := s.Generate(); err != nil {
			t.Fatal(err)
		}
		return c, s
	}
	serverKey := func(c *Client, s *Server) *big.Int {
		sk, err := s.PrivateKey(c.Public)
		if err != nil {
			t.Fatal(err)
		}
		return sk.K
	}

	t.Run("password", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			ck, sk := session(t, base, src, password+"!")
			if ck.Cmp(sk) == 0 {
				t.Fatal("wrong password derived the server key")
			}
		}
	})

	t.Run("salt", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			c, s := fresh()
			pub := s.Public
			pub.Salt = "x" + pub.Salt[1:]
			if pub.Salt == s.Public.Salt {
				pub.Salt = "y" + pub.Salt[1:]
			}
			ck, err := c.PrivateKey(pub)
			if err != nil {
				t.Fatal(err)
			}
			if ck.K.Cmp(serverKey(c, s)) == 0 {
				t.Fatal("tampered salt derived the server key")
			}
		}
	})

	t.Run("client exponent", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			c, s := fresh()
			c.a.Add(c.a, one)
			ck, err := c.PrivateKey(s.Public)
			if err != nil {
				t.Fatal(err)
			}
			if ck.K.Cmp(serverKey(c, s)) == 0 {
				t.Fatal("tampered client exponent derived the server key")
			}
		}
	})

	t.Run("server exponent", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			c, s := fresh()
			ck, err := c.PrivateKey(s.Public)
			if err != nil {
				t.Fatal(err)
			}
			s.b.Add(s.b, one)
			if ck.K.Cmp(serverKey(c, s)) == 0 {
				t.Fatal("tampered server exponent derived the client key")
			}
		}
	})
}

func TestProofs(t *testing.T) {
	src := seeded(t, 50, "srp6-proofs")
	base := newBase(t, 50, src)
	data, _ := NewServerData(base, password, src)

	c := NewClient(base, identifier, password, src)
	s := NewServer(base, data, src)
	if _, err := c.Proof(); !errors.Is(err, cml.ErrKeyNotGenerated) {
		t.Errorf("Proof before PrivateKey error = %v, want ErrKeyNotGenerated", err)
	}
	_ = c.Generate()
	_ = s.Generate()
	if _, err := c.PrivateKey(s.Public); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PrivateKey(c.Public); err != nil {
		t.Fatal(err)
	}

	m1, err := c.Proof()
	if err != nil {
		t.Fatal(err)
	}
	m2, err := s.VerifyClient(m1)
	if err != nil {
		t.Fatalf("VerifyClient failed: %v", err)
	}
	if err := c.VerifyServer(m2); err != nil {
		t.Fatalf("VerifyServer failed: %v", err)
	}

	bad := new(big.Int).Add(m1, one)
	if _, err := s.VerifyClient(bad); !errors.Is(err, cml.ErrAuthentication) {
		t.Errorf("VerifyClient(bad) error = %v, want ErrAuthentication", err)
	}
	if err := c.VerifyServer(new(big.Int).Add(m2, one)); !errors.Is(err, cml.ErrAuthentication) {
		t.Errorf("VerifyServer(bad) error = %v, want ErrAuthentication", err)
	}
	if _, err := s.VerifyClient(nil); !errors.Is(err, cml.ErrAuthentication) {
		t.Errorf("VerifyClient(nil) error = %v, want ErrAuthentication", err)
	}

	// Wrong password: keys differ, so the server rejects the proof.
	w := NewClient(base, identifier, "hunter2", src)
	_ = w.Generate()
	_ = s.Generate()
	_, _ = w.PrivateKey(s.Public)
	_, _ = s.PrivateKey(w.Public)
	wm1, _ := w.Proof()
	if _, err := s.VerifyClient(wm1); !errors.Is(err, cml.ErrAuthentication) {
		t.Errorf("wrong password proof error = %v, want ErrAuthentication", err)
	}
}

func TestZeroPublicKeys(t *testing.T) {
	src := seeded(t, 30, "srp6-zero")
	base := newBase(t, 30, src)
	data, _ := NewServerData(base, password, src)
	c := NewClient(base, identifier, password, src)
	s := NewServer(base, data, src)
	_ = c.Generate()
	_ = s.Generate()

	for _, v := range []*big.Int{nil, big.NewInt(0), new(big.Int).Set(base.N), new(big.Int).Lsh(base.N, 1)} {
		if _, err := s.PrivateKey(cml.SRP6ClientPublicKey{Identifier: identifier, A: v}); !errors.Is(err, cml.ErrZeroPublicKey) {
			t.Errorf("server accepted A = %v: %v", v, err)
		}
		if _, err := c.PrivateKey(cml.SRP6ServerPublicKey{Salt: data.Salt, B: v}); !errors.Is(err, cml.ErrZeroPublicKey) {
			t.Errorf("client accepted B = %v: %v", v, err)
		}
	}
}

func TestPreconditions(t *testing.T) {
	src := seeded(t, 30, "srp6-pre")
	empty := cml.SRP6SecurityBase{}

	if _, err := NewServerData(empty, password, src); !errors.Is(err, cml.ErrBaseNotGenerated) {
		t.Errorf("NewServerData error = %v, want ErrBaseNotGenerated", err)
	}
	c := NewClient(empty, identifier, password, src)
	if err := c.Generate(); !errors.Is(err, cml.ErrBaseNotGenerated) {
		t.Errorf("client Generate error = %v, want ErrBaseNotGenerated", err)
	}
	if c.Public.A != nil {
		t.Error("failed Generate mutated the client")
	}
	s := NewServer(empty, cml.SRP6ServerData{}, src)
	if err := s.Generate(); !errors.Is(err, cml.ErrBaseNotGenerated) {
		t.Errorf("server Generate error = %v, want ErrBaseNotGenerated", err)
	}
	if err := Validate(empty, src); !errors.Is(err, cml.ErrBaseNotGenerated) {
		t.Errorf("Validate error = %v, want ErrBaseNotGenerated", err)
	}

	base := newBase(t, 30, src)
	if _, err := NewClient(base, identifier, password, src).PrivateKey(cml.SRP6ServerPublicKey{B: big.NewInt(5)}); !errors.Is(err, cml.ErrKeyNotGenerated) {
		t.Errorf("client PrivateKey error = %v, want ErrKeyNotGenerated", err)
	}
	if _, err := NewServerData(base, password, src, WithSaltLength(0)); err == nil {
		t.Error("zero salt length should fail")
	}

	// 4 is a quadratic residue, so it cannot generate the group.
	bad := base
	bad.G = big.NewInt(4)
	if err := Validate(bad, src); err == nil {
		t.Error("Validate accepted a non-generator")
	}
	bad = base
	bad.N = new(big.Int).Add(base.N, two)
	if err := Validate(bad, src); err == nil {
		t.Error("Validate accepted a modulus that is not a safe prime")
	}
}

func TestServerData(t *testing.T) {
	src := seeded(t, 30, "srp6-data")
	base := newBase(t, 30, src)

	data, err := NewServerData(base, password, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Salt) != DefaultSaltLength {
		t.Errorf("salt length = %d, want %d", len(data.Salt), DefaultSaltLength)
	}
	if data.X.Cmp(defaultHasher.Sum(data.Salt, password)) != 0 {
		t.Error("x != H(salt, password)")
	}
	if want := new(big.Int).Exp(base.G, data.X, base.N); data.V.Cmp(want) != 0 {
		t.Errorf("v = %s, want %s", data.V, want)
	}

	other, _ := NewServerData(base, password, src)
	if other.Salt == data.Salt {
		t.Error("two registrations drew the same salt")
	}
}

func TestHasher(t *testing.T) {
	h, err := NewHasher()
	if err != nil {
		t.Fatal(err)
	}
	if h.Hash() != crypto.SHA256 || h.Size() != 32 {
		t.Errorf("default hasher = %s/%d", h.Hash(), h.Size())
	}

	// Integers hash as their decimal text, concatenated in call order.
	if h.Sum(big.NewInt(12), "3").Cmp(h.Sum("123")) != 0 {
		t.Error("H(12, \"3\") != H(\"123\")")
	}
	if h.Sum("a", "b").Cmp(h.Sum("b", "a")) == 0 {
		t.Error("argument order does not matter")
	}
	// SHA-256("abc")
	want, _ := new(big.Int).SetString("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", 16)
	if h.Sum("abc").Cmp(want) != 0 {
		t.Errorf("H(\"abc\") = %x", h.Sum("abc"))
	}

	stretched, _ := NewHasher(WithPBKDF2(100))
	if stretched.Password("salt", password).Cmp(h.Password("salt", password)) == 0 {
		t.Error("PBKDF2 did not change x")
	}
	if _, err := NewHasher(WithPBKDF2(-1)); err == nil {
		t.Error("negative iteration count should fail")
	}
	if _, err := NewHasher(WithHash(crypto.Hash(0))); err == nil {
		t.Error("unavailable hash should fail")
	}

	for name, want := range map[string]crypto.Hash{
		"":            crypto.SHA256,
		"SHA256":      crypto.SHA256,
		"sha3-256":    crypto.SHA3_256,
		"blake2b-256": crypto.BLAKE2b_256,
	} {
		got, err := ParseHash(name)
		if err != nil || got != want {
			t.Errorf("ParseHash(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseHash("md5"); err == nil {
		t.Error("ParseHash(md5) should fail")
	}
}

func BenchmarkSession1024(b *testing.B) {
	base, _ := Group(1024)
	src := seeded(b, 1024, "srp6-bench")
	data, _ := NewServerData(base, password, src)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := NewClient(base, identifier, password, src, WithHardened(true))
		s := NewServer(base, data, src, WithHardened(true))
		_ = c.Generate()
		_ = s.Generate()
		if _, err := c.PrivateKey(s.Public); err != nil {
			b.Fatal(err)
		}
		if _, err := s.PrivateKey(c.Public); err != nil {
			b.Fatal(err)
		}
	}
}
