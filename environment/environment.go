package environment

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

const (
	DefaultTokenName   = "GoodDollar"
	DefaultTokenSymbol = "G$"
)

var testNetworks = []string{"test", "develop", "coverage", "soliditycoverage"}

// Classify resolves the environment class of a network name.
func Classify(network string) interfaces.EnvironmentClass {
	switch {
	case strings.Contains(network, "mainnet"), strings.Contains(network, "production"):
		return interfaces.ClassProduction
	case slices.Contains(testNetworks, network):
		return interfaces.ClassTest
	default:
		return interfaces.ClassStaging
	}
}

// NewDeploymentContext builds the context of one run against network.
func NewDeploymentContext(network string, chainID *big.Int, deployer common.Address) interfaces.DeploymentContext {
	class := Classify(network)
	return interfaces.DeploymentContext{
		Network:      network,
		Class:        class,
		ChainID:      chainID,
		Deployer:     deployer,
		ReleaseTrack: class == interfaces.ClassProduction,
		MainnetGas:   strings.Contains(network, "mainnet"),
	}
}

// Resolve merges the settings of network and converts them to an EffectiveConfig.
// founderCount sizes the per-founder reputation list when a single reputation
// amount is configured.
func Resolve(settings Settings, network string, founderCount int) (*interfaces.EffectiveConfig, error) {
	ns := settings.For(network)

	cfg := &interfaces.EffectiveConfig{
		TokenName:     valueOr(ns.TokenName, DefaultTokenName),
		TokenSymbol:   valueOr(ns.TokenSymbol, DefaultTokenSymbol),
		TokenDecimals: TokenDecimals,
		ToppingUnit:   valueOr(ns.WalletToppingUnits, "ether"),
	}

	var err error
	if cfg.Cap, err = required("cap", ns.Cap, ToGD); err != nil {
		return nil, err
	}
	if cfg.InitialTokenAmount, err = optional("avatarTokens", ns.AvatarTokens, ToGD); err != nil {
		return nil, err
	}
	if cfg.FeePercentage, err = required("txFeePercentage", ns.TxFeePercentage, ParseFeePercentage); err != nil {
		return nil, err
	}
	if cfg.ToppingTimes, err = optional("walletToppingTimes", ns.WalletToppingTimes, ParseInteger); err != nil {
		return nil, err
	}
	if cfg.IdentityAuthPeriod, err = required("identityAuthenticationPeriod", ns.IdentityAuthenticationPeriod, ParseInteger); err != nil {
		return nil, err
	}
	cfg.ToppingAmount, err = optional("walletToppingAmount", ns.WalletToppingAmount, func(s string) (*big.Int, error) {
		return ToWei(s, cfg.ToppingUnit)
	})
	if err != nil {
		return nil, err
	}

	switch {
	case ns.FounderReputation != nil:
		for i, r := range ns.FounderReputation {
			v, err := ParseInteger(r)
			if err != nil {
				return nil, fmt.Errorf("%w: founderReputation[%d]: %v", ErrInvalidSettings, i, err)
			}
			cfg.InitialReputation = append(cfg.InitialReputation, v)
		}
	default:
		rep, err := optional("reputation", ns.Reputation, ParseInteger)
		if err != nil {
			return nil, err
		}
		cfg.InitialReputation = make([]*big.Int, founderCount)
		for i := range cfg.InitialReputation {
			cfg.InitialReputation[i] = new(big.Int).Set(rep)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return cfg, nil
}

func valueOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func required(name string, v *string, conv func(string) (*big.Int, error)) (*big.Int, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidSettings, name)
	}
	out, err := conv(*v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSettings, name, err)
	}
	return out, nil
}

func optional(name string, v *string, conv func(string) (*big.Int, error)) (*big.Int, error) {
	if v == nil {
		return new(big.Int), nil
	}
	return required(name, v, conv)
}
