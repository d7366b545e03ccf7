// Package ethledger deploys and drives the organization contracts on an
// Ethereum-compatible chain. It implements interfaces.ComponentFactory over a
// go-ethereum backend, using compiled artifacts for deployments and static
// method signatures for calls.
package ethledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// ErrBadArgs is returned when Deploy receives arguments of the wrong shape.
var ErrBadArgs = errors.New("bad constructor arguments")

// Factory implements interfaces.ComponentFactory.
type Factory struct {
	log       *slog.Logger
	tx        *Transactor
	artifacts Artifacts
}

// NewFactory creates a factory sending through client. Transact options must be
// set with SetTransactOpts before deploying.
func NewFactory(log *slog.Logger, client bind.ContractBackend, backend bind.DeployBackend, artifacts Artifacts) *Factory {
	if log == nil {
		log = slog.Default()
	}
	return &Factory{
		log:       log,
		tx:        NewTransactor(log, client, backend),
		artifacts: artifacts,
	}
}

// SetTransactOpts sets the deployer account.
func (f *Factory) SetTransactOpts(auth *bind.TransactOpts) {
	f.tx.SetTransactOpts(auth)
}

// Transactor exposes the underlying sender.
func (f *Factory) Transactor() *Transactor {
	return f.tx
}

// Deploy creates a contract of kind from its artifact. A gas hint set with
// interfaces.WithGasLimit overrides estimation.
func (f *Factory) Deploy(ctx context.Context, kind interfaces.ComponentKind, args ...any) (interfaces.Component, error) {
	if err := checkArgs(kind, args); err != nil {
		return nil, err
	}
	artifact, err := f.artifacts.get(kind)
	if err != nil {
		return nil, err
	}

	addr, err := f.tx.Deploy(ctx, artifact, args...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", kind, err)
	}

	f.log.Info("deployed contract", slog.String("kind", kind.String()), slog.String("address", addr.Hex()))
	return f.handle(kind, addr), nil
}

// At attaches to a deployed contract. Only the presence of code is checked;
// the caller vouches for the kind.
func (f *Factory) At(ctx context.Context, kind interfaces.ComponentKind, address common.Address) (interfaces.Component, error) {
	ok, err := f.tx.HasCode(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("code at %s: %w", address.Hex(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoContract, address.Hex())
	}
	return f.handle(kind, address), nil
}

func (f *Factory) handle(kind interfaces.ComponentKind, addr common.Address) interfaces.Component {
	c := contract{tx: f.tx, kind: kind, addr: addr}
	switch kind {
	case interfaces.KindIdentity:
		return &identity{c}
	case interfaces.KindFeeFormula:
		return &feeFormula{c}
	case interfaces.KindOrganizationCreator:
		return &creator{c}
	case interfaces.KindAvatar:
		return &avatar{c}
	case interfaces.KindToken:
		return &token{c}
	case interfaces.KindVotingMachine:
		return &votingMachine{c}
	case interfaces.KindUpgradeScheme:
		return &upgradeScheme{c}
	case interfaces.KindSchemeRegistrar:
		return &schemeRegistrar{c}
	default:
		return &c
	}
}

// checkArgs validates constructor arguments before anything is sent.
func checkArgs(kind interfaces.ComponentKind, args []any) error {
	var want []func(any) bool
	switch kind {
	case interfaces.KindIdentity, interfaces.KindControllerCreator,
		interfaces.KindVotingMachine, interfaces.KindUpgradeScheme, interfaces.KindSchemeRegistrar:
	case interfaces.KindFeeFormula:
		want = []func(any) bool{isBig}
	case interfaces.KindFounderSeeder, interfaces.KindOrganizationCreator:
		want = []func(any) bool{isAddress}
	case interfaces.KindAdminWallet:
		want = []func(any) bool{isAddresses, isBig, isBig, isAddress}
	default:
		return fmt.Errorf("%w: %s is created by forgeOrg", interfaces.ErrUnknownKind, kind)
	}

	if len(args) != len(want) {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrBadArgs, kind, len(want), len(args))
	}
	for i, ok := range want {
		if !ok(args[i]) {
			return fmt.Errorf("%w: %s argument %d has type %T", ErrBadArgs, kind, i, args[i])
		}
	}
	return nil
}

func isBig(v any) bool {
	b, ok := v.(*big.Int)
	return ok && b != nil
}

func isAddress(v any) bool {
	_, ok := v.(common.Address)
	return ok
}

func isAddresses(v any) bool {
	_, ok := v.([]common.Address)
	return ok
}
