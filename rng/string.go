package rng

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/utils"
)

// DefaultAlphabet is the 62-symbol alphanumeric set.
const DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// String returns length symbols drawn uniformly from alphabet. It returns
// an empty string when length is 0 or alphabet is empty.
func String(length int, src cml.RandomSource, alphabet string) (string, error) {
	if err := utils.CheckLength(length, utils.MaxStringLength); err != nil {
		return "", errors.Wrap(err, "string length")
	}
	symbols := []rune(alphabet)
	if length == 0 || len(symbols) == 0 {
		return "", nil
	}

	zero := new(big.Int)
	last := big.NewInt(int64(len(symbols) - 1))

	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		idx, err := src.DrawRange(zero, last)
		if err != nil {
			return "", err
		}
		sb.WriteRune(symbols[idx.Int64()])
	}
	return sb.String(), nil
}
