// Package wire encodes cml key material as CBOR.
//
// Every record is a map with small integer keys. Key 0 carries the record
// kind so a blob of one type is never decoded as another. Integers are
// CBOR bignums. The SRP6 verifier record holds the salt and v only; x never
// leaves the process that registered the password.
package wire

import (
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
)

// Kind identifies a record type.
type Kind uint8

const (
	KindSecurityBase Kind = iota + 1
	KindDHPublicKey
	KindRSAPublicKey
	KindRSAPrivateKey
	KindRSACiphertext
	KindSRP6SecurityBase
	KindSRP6Verifier
	KindSRP6ClientPublicKey
	KindSRP6ServerPublicKey
)

var kindNames = map[Kind]string{
	KindSecurityBase:        "security-base",
	KindDHPublicKey:         "dh-public-key",
	KindRSAPublicKey:        "rsa-public-key",
	KindRSAPrivateKey:       "rsa-private-key",
	KindRSACiphertext:       "rsa-ciphertext",
	KindSRP6SecurityBase:    "srp6-security-base",
	KindSRP6Verifier:        "srp6-verifier",
	KindSRP6ClientPublicKey: "srp6-client-public-key",
	KindSRP6ServerPublicKey: "srp6-server-public-key",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ErrKindMismatch is returned when a record decodes to a different kind
// than requested.
var ErrKindMismatch = errors.New("record kind mismatch")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 16,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

type record struct {
	Kind       Kind       `cbor:"0,keyasint"`
	G          *big.Int   `cbor:"1,keyasint,omitempty"`
	N          *big.Int   `cbor:"2,keyasint,omitempty"`
	K          *big.Int   `cbor:"3,keyasint,omitempty"`
	V          *big.Int   `cbor:"4,keyasint,omitempty"`
	E          *big.Int   `cbor:"5,keyasint,omitempty"`
	D          *big.Int   `cbor:"6,keyasint,omitempty"`
	A          *big.Int   `cbor:"7,keyasint,omitempty"`
	B          *big.Int   `cbor:"8,keyasint,omitempty"`
	Salt       string     `cbor:"9,keyasint,omitempty"`
	Identifier string     `cbor:"10,keyasint,omitempty"`
	Blocks     []*big.Int `cbor:"11,keyasint,omitempty"`
}

func marshal(r record) ([]byte, error) {
	data, err := encMode.Marshal(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", r.Kind)
	}
	return data, nil
}

func unmarshal(data []byte, kind Kind) (record, error) {
	var r record
	if err := decMode.Unmarshal(data, &r); err != nil {
		return record{}, errors.Wrapf(err, "failed to decode %s", kind)
	}
	if r.Kind != kind {
		return record{}, errors.Wrapf(ErrKindMismatch, "got %s, want %s", r.Kind, kind)
	}
	return r, nil
}

type field struct {
	name string
	v    *big.Int
}

// requireFields checks, in order, that every named field of a decoded
// record is present.
func requireFields(kind Kind, fields ...field) error {
	for _, f := range fields {
		if f.v == nil {
			return errors.Errorf("%s: missing %s", kind, f.name)
		}
	}
	return nil
}

// PeekKind returns the kind of an encoded record without decoding the rest.
func PeekKind(data []byte) (Kind, error) {
	var r struct {
		Kind Kind `cbor:"0,keyasint"`
	}
	if err := cbor.Unmarshal(data, &r); err != nil {
		return 0, errors.Wrap(err, "failed to decode record kind")
	}
	return r.Kind, nil
}

// MarshalSecurityBase encodes a Diffie-Hellman base.
func MarshalSecurityBase(b cml.SecurityBase) ([]byte, error) {
	return marshal(record{Kind: KindSecurityBase, G: b.G, N: b.P})
}

// UnmarshalSecurityBase decodes a Diffie-Hellman base.
func UnmarshalSecurityBase(data []byte) (cml.SecurityBase, error) {
	r, err := unmarshal(data, KindSecurityBase)
	if err != nil {
		return cml.SecurityBase{}, err
	}
	if err := requireFields(r.Kind, field{"g", r.G}, field{"p", r.N}); err != nil {
		return cml.SecurityBase{}, err
	}
	return cml.SecurityBase{G: r.G, P: r.N}, nil
}

// MarshalDHPublicKey encodes a Diffie-Hellman public value.
func MarshalDHPublicKey(k cml.DHPublicKey) ([]byte, error) {
	return marshal(record{Kind: KindDHPublicKey, V: k.V})
}

// UnmarshalDHPublicKey decodes a Diffie-Hellman public value.
func UnmarshalDHPublicKey(data []byte) (cml.DHPublicKey, error) {
	r, err := unmarshal(data, KindDHPublicKey)
	if err != nil {
		return cml.DHPublicKey{}, err
	}
	if err := requireFields(r.Kind, field{"v", r.V}); err != nil {
		return cml.DHPublicKey{}, err
	}
	return cml.DHPublicKey{V: r.V}, nil
}

// MarshalRSAPublicKey encodes an RSA public key.
func MarshalRSAPublicKey(k cml.RSAPublicKey) ([]byte, error) {
	return marshal(record{Kind: KindRSAPublicKey, E: k.E, N: k.N})
}

// UnmarshalRSAPublicKey decodes an RSA public key.
func UnmarshalRSAPublicKey(data []byte) (cml.RSAPublicKey, error) {
	r, err := unmarshal(data, KindRSAPublicKey)
	if err != nil {
		return cml.RSAPublicKey{}, err
	}
	if err := requireFields(r.Kind, field{"e", r.E}, field{"n", r.N}); err != nil {
		return cml.RSAPublicKey{}, err
	}
	return cml.RSAPublicKey{E: r.E, N: r.N}, nil
}

// MarshalRSAPrivateKey encodes an RSA private key.
func MarshalRSAPrivateKey(k cml.RSAPrivateKey) ([]byte, error) {
	return marshal(record{Kind: KindRSAPrivateKey, D: k.D, N: k.N})
}

// UnmarshalRSAPrivateKey decodes an RSA private key.
func UnmarshalRSAPrivateKey(data []byte) (cml.RSAPrivateKey, error) {
	r, err := unmarshal(data, KindRSAPrivateKey)
	if err != nil {
		return cml.RSAPrivateKey{}, err
	}
	if err := requireFields(r.Kind, field{"d", r.D}, field{"n", r.N}); err != nil {
		return cml.RSAPrivateKey{}, err
	}
	return cml.RSAPrivateKey{D: r.D, N: r.N}, nil
}

// MarshalCiphertext encodes a vector of RSA ciphertext blocks.
func MarshalCiphertext(blocks []*big.Int) ([]byte, error) {
	for i, c := range blocks {
		if c == nil {
			return nil, errors.Errorf("ciphertext block %d is nil", i)
		}
	}
	return marshal(record{Kind: KindRSACiphertext, Blocks: blocks})
}

// UnmarshalCiphertext decodes a vector of RSA ciphertext blocks.
func UnmarshalCiphertext(data []byte) ([]*big.Int, error) {
	r, err := unmarshal(data, KindRSACiphertext)
	if err != nil {
		return nil, err
	}
	for i, c := range r.Blocks {
		if c == nil {
			return nil, errors.Errorf("ciphertext block %d is missing", i)
		}
	}
	return r.Blocks, nil
}

// MarshalSRP6SecurityBase encodes SRP6 domain parameters.
func MarshalSRP6SecurityBase(b cml.SRP6SecurityBase) ([]byte, error) {
	return marshal(record{Kind: KindSRP6SecurityBase, G: b.G, N: b.N, K: b.K})
}

// UnmarshalSRP6SecurityBase decodes SRP6 domain parameters.
func UnmarshalSRP6SecurityBase(data []byte) (cml.SRP6SecurityBase, error) {
	r, err := unmarshal(data, KindSRP6SecurityBase)
	if err != nil {
		return cml.SRP6SecurityBase{}, err
	}
	if err := requireFields(r.Kind, field{"g", r.G}, field{"N", r.N}, field{"k", r.K}); err != nil {
		return cml.SRP6SecurityBase{}, err
	}
	return cml.SRP6SecurityBase{N: r.N, G: r.G, K: r.K}, nil
}

// MarshalSRP6Verifier encodes the stored part of server data: the salt
// and v. X is dropped.
func MarshalSRP6Verifier(d cml.SRP6ServerData) ([]byte, error) {
	return marshal(record{Kind: KindSRP6Verifier, Salt: d.Salt, V: d.V})
}

// UnmarshalSRP6Verifier decodes a verifier record. X of the result is nil.
func UnmarshalSRP6Verifier(data []byte) (cml.SRP6ServerData, error) {
	r, err := unmarshal(data, KindSRP6Verifier)
	if err != nil {
		return cml.SRP6ServerData{}, err
	}
	if err := requireFields(r.Kind, field{"v", r.V}); err != nil {
		return cml.SRP6ServerData{}, err
	}
	if r.Salt == "" {
		return cml.SRP6ServerData{}, errors.Errorf("%s: missing salt", r.Kind)
	}
	return cml.SRP6ServerData{Salt: r.Salt, V: r.V}, nil
}

// MarshalSRP6ClientPublicKey encodes the client's first message.
func MarshalSRP6ClientPublicKey(k cml.SRP6ClientPublicKey) ([]byte, error) {
	return marshal(record{Kind: KindSRP6ClientPublicKey, Identifier: k.Identifier, A: k.A})
}

// UnmarshalSRP6ClientPublicKey decodes the client's first message.
func UnmarshalSRP6ClientPublicKey(data []byte) (cml.SRP6ClientPublicKey, error) {
	r, err := unmarshal(data, KindSRP6ClientPublicKey)
	if err != nil {
		return cml.SRP6ClientPublicKey{}, err
	}
	if err := requireFields(r.Kind, field{"A", r.A}); err != nil {
		return cml.SRP6ClientPublicKey{}, err
	}
	return cml.SRP6ClientPublicKey{Identifier: r.Identifier, A: r.A}, nil
}

// MarshalSRP6ServerPublicKey encodes the server's reply.
func MarshalSRP6ServerPublicKey(k cml.SRP6ServerPublicKey) ([]byte, error) {
	return marshal(record{Kind: KindSRP6ServerPublicKey, Salt: k.Salt, B: k.B})
}

// UnmarshalSRP6ServerPublicKey decodes the server's reply.
func UnmarshalSRP6ServerPublicKey(data []byte) (cml.SRP6ServerPublicKey, error) {
	r, err := unmarshal(data, KindSRP6ServerPublicKey)
	if err != nil {
		return cml.SRP6ServerPublicKey{}, err
	}
	if err := requireFields(r.Kind, field{"B", r.B}); err != nil {
		return cml.SRP6ServerPublicKey{}, err
	}
	return cml.SRP6ServerPublicKey{Salt: r.Salt, B: r.B}, nil
}
