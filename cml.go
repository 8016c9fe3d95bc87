// Package cml is a cryptographic mathematics toolkit: modular arithmetic,
// Miller-Rabin primality testing, prime and safe prime generation, and the
// Diffie-Hellman, RSA and SRP6 protocols built on them.
// This package holds the shared types and capability interfaces; the
// algorithms live in the sub-packages.
package cml

// Version of the cml Go implementation.
const Version = "1.0.0"

// API summary:
//
// Number theory:
//   - arith.Modexp(base, exp, m) - square-and-multiply exponentiation
//   - arith.Gcd(a, b), arith.Gcdex(a, b), arith.Invmod(a, m)
//   - prime.MillerRabin(n, k, src) - probabilistic primality test
//   - prime.NewGenerator(width, src, opts) - random prime of an exact width
//   - prime.NewSafeGenerator(inner, src, opts) - safe prime 2q+1 from an inner generator
//   - prime.PrimitiveRoot(ctx, n, src) - smallest generator of Z_n*
//   - prime.Concurrent(ctx, workers, factory) - first prime of several searches
//
// Protocols:
//   - dh.NewSecurityBase(ctx, gen, src) / dh.New(base, src)
//   - rsa.New(gen).Generate(ctx) / Encrypt / Decrypt
//   - srp6.NewSecurityBase(ctx, gen, src) / srp6.Group(bits) / srp6.NewServerData
//   - srp6.NewClient / srp6.NewServer
//
// Serialization:
//   - wire.MarshalXxx / wire.UnmarshalXxx - CBOR encoding of key material
