package interfaces

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Manifest is the released address book of one provisioned network.
// Components that were not provisioned hold NullAddress.
type Manifest struct {
	GoodDollar      common.Address `json:"GoodDollar"`
	Reputation      common.Address `json:"Reputation"`
	Identity        common.Address `json:"Identity"`
	FeeFormula      common.Address `json:"FeeFormula"`
	Avatar          common.Address `json:"Avatar"`
	Controller      common.Address `json:"Controller"`
	AbsoluteVote    common.Address `json:"AbsoluteVote"`
	SchemeRegistrar common.Address `json:"SchemeRegistrar"`
	UpgradeScheme   common.Address `json:"UpgradeScheme"`
	AdminWallet     common.Address `json:"AdminWallet"`
	UBI             common.Address `json:"UBI"`
	SignupBonus     common.Address `json:"SignupBonus"`
	OneTimePayments common.Address `json:"OneTimePayments"`
	HomeBridge      common.Address `json:"HomeBridge"`
	ForeignBridge   common.Address `json:"ForeignBridge"`
	Network         string         `json:"network"`
	NetworkID       uint64         `json:"networkId"`
}

// Addresses returns the manifest slots by name.
func (m *Manifest) Addresses() map[string]common.Address {
	return map[string]common.Address{
		"GoodDollar":      m.GoodDollar,
		"Reputation":      m.Reputation,
		"Identity":        m.Identity,
		"FeeFormula":      m.FeeFormula,
		"Avatar":          m.Avatar,
		"Controller":      m.Controller,
		"AbsoluteVote":    m.AbsoluteVote,
		"SchemeRegistrar": m.SchemeRegistrar,
		"UpgradeScheme":   m.UpgradeScheme,
		"AdminWallet":     m.AdminWallet,
		"UBI":             m.UBI,
		"SignupBonus":     m.SignupBonus,
		"OneTimePayments": m.OneTimePayments,
		"HomeBridge":      m.HomeBridge,
		"ForeignBridge":   m.ForeignBridge,
	}
}

// Validate checks the manifest can be stored under its network.
func (m *Manifest) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil manifest", ErrInvalidManifest)
	}
	if m.Network == "" {
		return fmt.Errorf("%w: network is empty", ErrInvalidManifest)
	}
	return nil
}
