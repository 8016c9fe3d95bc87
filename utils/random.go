package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"io"
	"math/big"
	"runtime"

	"github.com/pkg/errors"
)

var RandReader io.Reader = rand.Reader

// SecureRandomBytes generates n cryptographically secure random bytes.
// It uses crypto/rand, which relies on the operating system's CSPRNG.
func SecureRandomBytes(n int) ([]byte, error) {
	return ReadBytes(RandReader, n)
}

// ReadBytes reads exactly n bytes from r.
func ReadBytes(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "failed to read random bytes")
	}
	return buf, nil
}

// RandomBig returns a uniform integer in [0, max) read from r.
// Candidates are masked to the bit-length of max-1 and rejected when too
// large, so at most half of the draws are discarded on average.
func RandomBig(r io.Reader, max *big.Int) (*big.Int, error) {
	if max.Sign() <= 0 {
		return nil, errors.New("max must be positive")
	}
	if max.Cmp(big.NewInt(1)) == 0 {
		return new(big.Int), nil
	}

	bitsNeeded := new(big.Int).Sub(max, big.NewInt(1)).BitLen()
	return rejectionSample(r, bitsNeeded, func(v *big.Int) bool {
		return v.Cmp(max) < 0
	})
}

// RandomBits returns a uniform integer with at most bits significant bits.
func RandomBits(r io.Reader, bits int) (*big.Int, error) {
	if bits <= 0 {
		return new(big.Int), nil
	}
	return rejectionSample(r, bits, func(*big.Int) bool { return true })
}

func rejectionSample(r io.Reader, bits int, accept func(*big.Int) bool) (*big.Int, error) {
	bytesNeeded := (bits + 7) / 8
	topMask := byte(0xFF >> uint(bytesNeeded*8-bits))

	v := new(big.Int)
	for {
		buf, err := ReadBytes(r, bytesNeeded)
		if err != nil {
			return nil, err
		}
		buf[0] &= topMask
		v.SetBytes(buf)
		Zeroize(buf)

		if accept(v) {
			return v, nil
		}
	}
}

// ValidateSeedEntropy checks if a seed has sufficient entropy.
// It performs basic statistical tests to reject obviously weak seeds (e.g., all zeros, sequential).
// This is a sanity check, not a rigorous randomness test.
func ValidateSeedEntropy(seed []byte) error {
	if len(seed) < 32 {
		return errors.New("seed must be at least 32 bytes")
	}

	first := seed[0]
	allSame := true
	for i := 1; i < len(seed); i++ {
		if seed[i] != first {
			allSame = false
			break
		}
	}
	if allSame {
		return errors.New("seed has low entropy: all bytes are identical")
	}

	isAscending := true
	isDescending := true
	for i := 1; i < len(seed); i++ {
		if seed[i] != byte((int(seed[i-1])+1)%256) {
			isAscending = false
		}
		if seed[i] != byte((int(seed[i-1])-1+256)%256) {
			isDescending = false
		}
		if !isAscending && !isDescending {
			break
		}
	}
	if isAscending || isDescending {
		return errors.New("seed has low entropy: sequential pattern detected")
	}

	unique := make(map[byte]struct{})
	for _, b := range seed {
		unique[b] = struct{}{}
		if len(unique) >= 8 {
			break
		}
	}
	if len(unique) < 8 {
		return errors.New("seed has low entropy: insufficient byte diversity")
	}

	return nil
}

// ConstantTimeEqual compares two byte slices in constant time.
// It returns true if the slices are equal, false otherwise.
// This function leaks only the length of the slices.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize overwrites a byte slice with zeros.
// Uses runtime.KeepAlive to prevent compiler optimization from eliminating the stores.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// ZeroizeBig overwrites the magnitude of x with zeros and sets it to 0.
func ZeroizeBig(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	runtime.KeepAlive(words)
	x.SetInt64(0)
}
