// Package interfaces defines the core interfaces and types for the organization provisioning system.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NullAddress fills manifest slots of components that were not provisioned.
var NullAddress = common.Address{}

// NullHash is the parameter hash of schemes that carry no governance parameters.
var NullHash = ParameterHash{}

// ParseAddress parses a 40-char hex address with or without the 0x prefix.
func ParseAddress(addr string) (common.Address, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(addr), "0x")
	if len(clean) != 40 {
		return common.Address{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return common.BytesToAddress(addrBytes), nil
}

// ParseAddresses parses every entry with ParseAddress, reporting the index of the first bad one.
func ParseAddresses(addrs []string) ([]common.Address, error) {
	out := make([]common.Address, len(addrs))
	for i, a := range addrs {
		parsed, err := ParseAddress(a)
		if err != nil {
			return nil, fmt.Errorf("address[%d]: %w", i, err)
		}
		out[i] = parsed
	}
	return out, nil
}

// ParameterHash is the 32-byte key of a stored governance parameter record.
type ParameterHash [32]byte

func NewParameterHashFromHex(source string) (ParameterHash, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return ParameterHash{}, errors.New("invalid parameter hash length: hex string must be 64 characters")
	}

	hashBytes, err := hex.DecodeString(clean)
	if err != nil {
		return ParameterHash{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var hash ParameterHash
	copy(hash[:], hashBytes)
	return hash, nil
}

// Hex returns the 0x-prefixed hex representation.
func (h ParameterHash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h ParameterHash) String() string {
	return h.Hex()
}

// IsNull reports whether the hash is the all-zero hash.
func (h ParameterHash) IsNull() bool {
	return h == NullHash
}

// PermissionMask is the fixed-width set of capability bits granted to a scheme.
type PermissionMask uint32

const (
	// PermissionRegistered marks the scheme as registered with the controller.
	PermissionRegistered PermissionMask = 1 << iota
	// PermissionRegisterSchemes allows registering and unregistering other schemes.
	PermissionRegisterSchemes
	// PermissionGlobalConstraints allows adding and removing global constraints.
	PermissionGlobalConstraints
	// PermissionUpgradeController allows upgrading the controller.
	PermissionUpgradeController
	// PermissionGenericCall allows calling arbitrary contracts through the avatar.
	PermissionGenericCall

	// FullPermissions is every permission bit above, 0x0000001F.
	FullPermissions = PermissionRegistered | PermissionRegisterSchemes | PermissionGlobalConstraints |
		PermissionUpgradeController | PermissionGenericCall
)

// Bytes4 encodes the mask the way the controller expects it (bytes4, big endian).
func (p PermissionMask) Bytes4() [4]byte {
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], uint32(p))
	return out
}

// Has reports whether every bit of other is set in p.
func (p PermissionMask) Has(other PermissionMask) bool {
	return p&other == other
}

func (p PermissionMask) String() string {
	return fmt.Sprintf("0x%08X", uint32(p))
}

// SchemeRegistration binds one scheme to its parameters and permissions.
type SchemeRegistration struct {
	Scheme      common.Address
	ParamsHash  ParameterHash
	Permissions PermissionMask
}

// SplitSchemeRegistrations produces the three index-aligned arrays taken by setSchemes.
func SplitSchemeRegistrations(regs []SchemeRegistration) ([]common.Address, []ParameterHash, []PermissionMask) {
	schemes := make([]common.Address, len(regs))
	params := make([]ParameterHash, len(regs))
	permissions := make([]PermissionMask, len(regs))
	for i, r := range regs {
		schemes[i] = r.Scheme
		params[i] = r.ParamsHash
		permissions[i] = r.Permissions
	}
	return schemes, params, permissions
}
