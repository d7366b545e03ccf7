package interfaces

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EnvironmentClass decides which conditional provisioning steps run.
type EnvironmentClass int

const (
	ClassStaging EnvironmentClass = iota
	ClassTest
	ClassProduction
)

func (c EnvironmentClass) String() string {
	switch c {
	case ClassProduction:
		return "production"
	case ClassTest:
		return "test"
	case ClassStaging:
		return "staging"
	default:
		return fmt.Sprintf("EnvironmentClass(%d)", int(c))
	}
}

// DeploymentContext carries everything about where and by whom a run deploys.
type DeploymentContext struct {
	Network  string
	Class    EnvironmentClass
	ChainID  *big.Int
	Deployer common.Address
	// ReleaseTrack is set for networks whose token minting must be renounced after provisioning.
	ReleaseTrack bool
	// MainnetGas enables the fixed gas limits for the heavy creator calls.
	MainnetGas bool
}

// EffectiveConfig is the merged, unit-converted settings of one network.
// Amounts are in the token's smallest unit except ToppingAmount which is in wei.
type EffectiveConfig struct {
	TokenName          string
	TokenSymbol        string
	TokenDecimals      uint8
	Cap                *big.Int
	InitialReputation  []*big.Int
	InitialTokenAmount *big.Int
	FeePercentage      *big.Int
	ToppingAmount      *big.Int
	ToppingUnit        string
	ToppingTimes       *big.Int
	IdentityAuthPeriod *big.Int
}

var errConfig = errors.New("invalid effective config")

// Validate checks fields that every run depends on.
func (c *EffectiveConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil", errConfig)
	}
	if c.TokenName == "" || c.TokenSymbol == "" {
		return fmt.Errorf("%w: token name and symbol are required", errConfig)
	}
	for name, v := range map[string]*big.Int{
		"cap":                c.Cap,
		"initialTokenAmount": c.InitialTokenAmount,
		"feePercentage":      c.FeePercentage,
		"toppingAmount":      c.ToppingAmount,
		"toppingTimes":       c.ToppingTimes,
		"identityAuthPeriod": c.IdentityAuthPeriod,
	} {
		if v == nil {
			return fmt.Errorf("%w: %s is not set", errConfig, name)
		}
		if v.Sign() < 0 {
			return fmt.Errorf("%w: %s is negative", errConfig, name)
		}
	}
	for i, r := range c.InitialReputation {
		if r == nil || r.Sign() < 0 {
			return fmt.Errorf("%w: initialReputation[%d] must be a non-negative amount", errConfig, i)
		}
	}
	return nil
}
