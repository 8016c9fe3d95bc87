// Package core provides parameter sets and validation for cml.
package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/utils"
)

// CML16Params is a toy parameter set for demonstrations.
var CML16Params = cml.Params{
	Level:       cml.CML16,
	Width:       16,
	MaxAttempts: 1 << 12,
	SaltLength:  16,
}

// CML32Params is a toy parameter set for demonstrations.
var CML32Params = cml.Params{
	Level:       cml.CML32,
	Width:       32,
	MaxAttempts: 1 << 12,
	SaltLength:  16,
}

// CML64Params fits the 64-bit fixed-width path.
var CML64Params = cml.Params{
	Level:       cml.CML64,
	Width:       64,
	MaxAttempts: 1 << 14,
	SaltLength:  16,
}

// CML512Params generates its own 512-bit moduli.
var CML512Params = cml.Params{
	Level:       cml.CML512,
	Width:       512,
	Witnesses:   64,
	MaxAttempts: 1 << 16,
	SaltLength:  16,
	Hardened:    true,
}

// CML1024Params uses the RFC 5054 1024-bit SRP6 group.
var CML1024Params = cml.Params{
	Level:       cml.CML1024,
	Width:       1024,
	Witnesses:   64,
	MaxAttempts: 1 << 16,
	SaltLength:  32,
	GroupBits:   1024,
	Hardened:    true,
}

// CML2048Params uses the RFC 5054 2048-bit SRP6 group.
var CML2048Params = cml.Params{
	Level:       cml.CML2048,
	Width:       2048,
	Witnesses:   64,
	MaxAttempts: 1 << 17,
	SaltLength:  32,
	GroupBits:   2048,
	Hardened:    true,
}

// Levels lists every known security level, smallest first.
var Levels = []cml.SecurityLevel{
	cml.CML16, cml.CML32, cml.CML64, cml.CML512, cml.CML1024, cml.CML2048,
}

// GetParams returns the parameter set for the given security level.
func GetParams(level cml.SecurityLevel) (cml.Params, error) {
	switch level {
	case cml.CML16:
		return CML16Params, nil
	case cml.CML32:
		return CML32Params, nil
	case cml.CML64:
		return CML64Params, nil
	case cml.CML512:
		return CML512Params, nil
	case cml.CML1024:
		return CML1024Params, nil
	case cml.CML2048:
		return CML2048Params, nil
	default:
		return cml.Params{}, fmt.Errorf("unknown security level: %s", level)
	}
}

// ParseLevel maps a level name such as "CML-64", "cml64" or "64" to a
// SecurityLevel.
func ParseLevel(name string) (cml.SecurityLevel, error) {
	norm := strings.ToUpper(strings.TrimSpace(name))
	norm = strings.TrimPrefix(strings.TrimPrefix(norm, "CML"), "-")
	norm = strings.TrimPrefix(norm, "_")
	for _, level := range Levels {
		if strings.TrimPrefix(string(level), "CML-") == norm {
			return level, nil
		}
	}
	return "", errors.Errorf("unknown security level %q", name)
}

// ValidateParams validates the parameter set for consistency.
func ValidateParams(params cml.Params) error {
	if err := utils.CheckWidth(int(params.Width)); err != nil {
		return fmt.Errorf("%w: %w", cml.ErrInvalidWidth, err)
	}
	if params.Witnesses < 0 || params.Witnesses > utils.MaxWitnesses {
		return errors.Errorf("witness count %d out of range", params.Witnesses)
	}
	if params.MaxAttempts < 0 {
		return errors.New("max attempts must not be negative")
	}
	if err := utils.CheckLength(params.SaltLength, utils.MaxStringLength); err != nil {
		return errors.Wrap(err, "salt length")
	}
	if params.SaltLength < 8 {
		return errors.New("salt length should be at least 8")
	}
	switch params.GroupBits {
	case 0:
	case 1024, 1536, 2048:
		if int(params.Width) != params.GroupBits {
			return errors.Errorf("width %d does not match group size %d", params.Width, params.GroupBits)
		}
	default:
		return errors.Errorf("no well-known group of %d bits", params.GroupBits)
	}
	return nil
}
