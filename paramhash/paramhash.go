// Package paramhash computes governance parameter hashes locally, byte for byte
// as the voting machine and schemes compute them on chain: keccak256 over the
// tightly packed (abi.encodePacked) ordered tuple.
package paramhash

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// VotePrecedence is the percentage of reputation an absolute vote needs to pass.
const VotePrecedence = 50

var ErrInvalidPrecedence = errors.New("vote precedence must be in (0, 100]")

// Packer accumulates abi.encodePacked fields.
type Packer struct {
	buf []byte
}

func (p *Packer) Uint256(v *big.Int) *Packer {
	p.buf = append(p.buf, math.U256Bytes(new(big.Int).Set(v))...)
	return p
}

func (p *Packer) Address(a common.Address) *Packer {
	p.buf = append(p.buf, a.Bytes()...)
	return p
}

func (p *Packer) Bytes32(h interfaces.ParameterHash) *Packer {
	p.buf = append(p.buf, h[:]...)
	return p
}

func (p *Packer) Bytes() []byte {
	return p.buf
}

func (p *Packer) Hash() interfaces.ParameterHash {
	return interfaces.ParameterHash(crypto.Keccak256Hash(p.buf))
}

// VoteParams is the voting machine parameter hash of (precReq, voteOnBehalf).
func VoteParams(precedence *big.Int, voteOnBehalf common.Address) (interfaces.ParameterHash, error) {
	if precedence == nil || precedence.Sign() <= 0 || precedence.Cmp(big.NewInt(100)) > 0 {
		return interfaces.NullHash, fmt.Errorf("%w: %v", ErrInvalidPrecedence, precedence)
	}
	return new(Packer).Uint256(precedence).Address(voteOnBehalf).Hash(), nil
}

// UpgradeParams is the upgrade scheme parameter hash of (voteParams, votingMachine).
func UpgradeParams(voteParams interfaces.ParameterHash, votingMachine common.Address) interfaces.ParameterHash {
	return new(Packer).Bytes32(voteParams).Address(votingMachine).Hash()
}

// RegistrarParams is the scheme registrar parameter hash of (voteRegister, voteRemove, votingMachine).
func RegistrarParams(voteRegister, voteRemove interfaces.ParameterHash, votingMachine common.Address) interfaces.ParameterHash {
	return new(Packer).Bytes32(voteRegister).Bytes32(voteRemove).Address(votingMachine).Hash()
}
