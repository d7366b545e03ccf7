package environment

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// TokenDecimals is the number of decimals of the organization token.
const TokenDecimals = 2

var ErrInvalidAmount = errors.New("invalid amount")

// ToGD converts whole tokens (decimal string) to the token's smallest unit.
func ToGD(amount string) (*big.Int, error) {
	return parseScaled(amount, TokenDecimals)
}

// unit name -> wei multiplier, as accepted by web3 toWei.
var weiUnits = map[string]*big.Int{
	"wei":        big.NewInt(params.Wei),
	"kwei":       big.NewInt(1e3),
	"babbage":    big.NewInt(1e3),
	"femtoether": big.NewInt(1e3),
	"mwei":       big.NewInt(1e6),
	"lovelace":   big.NewInt(1e6),
	"picoether":  big.NewInt(1e6),
	"gwei":       big.NewInt(params.GWei),
	"shannon":    big.NewInt(params.GWei),
	"nanoether":  big.NewInt(params.GWei),
	"nano":       big.NewInt(params.GWei),
	"szabo":      big.NewInt(1e12),
	"microether": big.NewInt(1e12),
	"micro":      big.NewInt(1e12),
	"finney":     big.NewInt(1e15),
	"milliether": big.NewInt(1e15),
	"milli":      big.NewInt(1e15),
	"ether":      big.NewInt(params.Ether),
	"kether":     new(big.Int).Mul(big.NewInt(params.Ether), big.NewInt(1e3)),
	"grand":      new(big.Int).Mul(big.NewInt(params.Ether), big.NewInt(1e3)),
	"mether":     new(big.Int).Mul(big.NewInt(params.Ether), big.NewInt(1e6)),
	"gether":     new(big.Int).Mul(big.NewInt(params.Ether), big.NewInt(1e9)),
	"tether":     new(big.Int).Mul(big.NewInt(params.Ether), big.NewInt(1e12)),
}

// ToWei converts an amount expressed in unit to wei. An empty unit means ether.
func ToWei(amount, unit string) (*big.Int, error) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" {
		unit = "ether"
	}
	mul, ok := weiUnits[unit]
	if !ok {
		return nil, fmt.Errorf("%w: unknown unit %q", ErrInvalidAmount, unit)
	}
	decimals := len(mul.String()) - 1
	return parseScaled(amount, decimals)
}

// parseScaled parses a non-negative decimal string and multiplies it by 10^decimals.
// Fractions finer than the scale are rejected rather than truncated.
func parseScaled(amount string, decimals int) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, amount, decimals)
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok || v.Sign() < 0 || strings.ContainsAny(digits, "+-") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return v, nil
}

// ParseInteger parses a non-negative base-10 integer.
func ParseInteger(amount string) (*big.Int, error) {
	return parseScaled(amount, 0)
}

// ParseFeePercentage reads txFeePercentage as the whole percent the fee formula
// takes. Values below 1 are ratios (0.01 is 1%), other values are percents
// ("3" is 3%). A value that does not land on a whole percent is rejected.
func ParseFeePercentage(amount string) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	whole, _, hasFrac := strings.Cut(s, ".")
	if hasFrac && strings.Trim(whole, "0") == "" {
		return parseScaled(s, 2)
	}
	return ParseInteger(s)
}
