package environment

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultBlock is the settings block every network inherits from.
const DefaultBlock = "default"

var ErrInvalidSettings = errors.New("invalid deploy settings")

// NetworkSettings is one block of the deploy settings file. Unset fields inherit
// from the default block. Amounts are decimal strings so that YAML numbers and
// JSON strings both decode.
type NetworkSettings struct {
	TokenName                    *string  `yaml:"tokenName,omitempty"`
	TokenSymbol                  *string  `yaml:"tokenSymbol,omitempty"`
	Cap                          *string  `yaml:"cap,omitempty"`
	Reputation                   *string  `yaml:"reputation,omitempty"`
	FounderReputation            []string `yaml:"founderReputation,omitempty"`
	AvatarTokens                 *string  `yaml:"avatarTokens,omitempty"`
	TxFeePercentage              *string  `yaml:"txFeePercentage,omitempty"`
	WalletToppingAmount          *string  `yaml:"walletToppingAmount,omitempty"`
	WalletToppingUnits           *string  `yaml:"walletToppingUnits,omitempty"`
	WalletToppingTimes           *string  `yaml:"walletToppingTimes,omitempty"`
	IdentityAuthenticationPeriod *string  `yaml:"identityAuthenticationPeriod,omitempty"`
	Founders                     []string `yaml:"founders,omitempty"`
	FoundersCount                *int     `yaml:"foundersCount,omitempty"`
}

// Settings maps a network environment (or DefaultBlock) to its settings.
type Settings map[string]NetworkSettings

// LoadSettings reads a YAML or JSON settings file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	settings, err := ParseSettings(data)
	if err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	return settings, nil
}

// ParseSettings decodes settings. JSON documents are valid YAML and parse the same way.
func ParseSettings(data []byte) (Settings, error) {
	var parsed Settings
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if parsed == nil {
		parsed = Settings{}
	}
	return parsed, nil
}

var mainnetSuffix = regexp.MustCompile(`-?mainnet`)

// NetworkEnv strips the first "mainnet" marker (and its leading dash) from a
// network name, so "production-mainnet" reads the "production" block.
func NetworkEnv(network string) string {
	loc := mainnetSuffix.FindStringIndex(network)
	if loc == nil {
		return network
	}
	return network[:loc[0]] + network[loc[1]:]
}

// For returns the default block overridden field by field with the block of the
// network's environment.
func (s Settings) For(network string) NetworkSettings {
	return merge(s[DefaultBlock], s[NetworkEnv(network)])
}

func merge(base, override NetworkSettings) NetworkSettings {
	out := base
	pick(&out.TokenName, override.TokenName)
	pick(&out.TokenSymbol, override.TokenSymbol)
	pick(&out.Cap, override.Cap)
	pick(&out.Reputation, override.Reputation)
	pick(&out.AvatarTokens, override.AvatarTokens)
	pick(&out.TxFeePercentage, override.TxFeePercentage)
	pick(&out.WalletToppingAmount, override.WalletToppingAmount)
	pick(&out.WalletToppingUnits, override.WalletToppingUnits)
	pick(&out.WalletToppingTimes, override.WalletToppingTimes)
	pick(&out.IdentityAuthenticationPeriod, override.IdentityAuthenticationPeriod)
	pick(&out.FoundersCount, override.FoundersCount)
	if override.FounderReputation != nil {
		out.FounderReputation = override.FounderReputation
	}
	if override.Founders != nil {
		out.Founders = override.Founders
	}
	return out
}

func pick[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}
