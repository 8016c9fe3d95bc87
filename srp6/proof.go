package srp6

import (
	"math/big"

	"github.com/BackendStack21/cml-go/utils"
)

func clientProof(h *Hasher, A, B, K *big.Int) *big.Int {
	return h.Sum(A, B, K)
}

func serverProof(h *Hasher, A, m1, K *big.Int) *big.Int {
	return h.Sum(A, m1, K)
}

// equalProof compares two digests in constant time.
func equalProof(h *Hasher, want, got *big.Int) bool {
	if got == nil || got.Sign() < 0 || got.BitLen() > h.Size()*8 {
		return false
	}
	a := want.FillBytes(make([]byte, h.Size()))
	b := got.FillBytes(make([]byte, h.Size()))
	return utils.ConstantTimeEqual(a, b)
}
