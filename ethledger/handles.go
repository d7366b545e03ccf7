package ethledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// contract is the base handle: a tagged address bound to the transactor.
type contract struct {
	tx   *Transactor
	kind interfaces.ComponentKind
	addr common.Address
}

func (c *contract) Kind() interfaces.ComponentKind { return c.kind }
func (c *contract) Address() common.Address        { return c.addr }

func (c *contract) transact(ctx context.Context, fn *w3.Func, args ...any) error {
	calldata, err := fn.EncodeArgs(args...)
	if err != nil {
		return fmt.Errorf("encode %s: %w", fn.Signature, err)
	}
	if _, err := c.tx.Transact(ctx, c.addr, calldata); err != nil {
		return fmt.Errorf("%s.%s: %w", c.kind, fn.Signature, err)
	}
	return nil
}

func (c *contract) call(ctx context.Context, fn *w3.Func, returns []any, args ...any) error {
	calldata, err := fn.EncodeArgs(args...)
	if err != nil {
		return fmt.Errorf("encode %s: %w", fn.Signature, err)
	}
	out, err := c.tx.Call(ctx, c.addr, calldata)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", c.kind, fn.Signature, err)
	}
	if err := fn.DecodeReturns(out, returns...); err != nil {
		return fmt.Errorf("decode %s.%s: %w", c.kind, fn.Signature, err)
	}
	return nil
}

func (c *contract) callAddress(ctx context.Context, fn *w3.Func) (common.Address, error) {
	var out common.Address
	err := c.call(ctx, fn, []any{&out})
	return out, err
}

func (c *contract) callHash(ctx context.Context, fn *w3.Func, args ...any) (interfaces.ParameterHash, error) {
	var out [32]byte
	if err := c.call(ctx, fn, []any{&out}, args...); err != nil {
		return interfaces.ParameterHash{}, err
	}
	return interfaces.ParameterHash(out), nil
}

type identity struct{ contract }

func (i *identity) SetAuthenticationPeriod(ctx context.Context, period *big.Int) error {
	return i.transact(ctx, funcSetAuthenticationPeriod, period)
}

func (i *identity) SetAvatar(ctx context.Context, avatar common.Address) error {
	return i.transact(ctx, funcSetAvatar, avatar)
}

func (i *identity) AddIdentityAdmin(ctx context.Context, account common.Address) error {
	return i.transact(ctx, funcAddIdentityAdmin, account)
}

func (i *identity) AddPauser(ctx context.Context, account common.Address) error {
	return i.transact(ctx, funcAddPauser, account)
}

func (i *identity) IsWhitelisted(ctx context.Context, account common.Address) (bool, error) {
	var ok bool
	err := i.call(ctx, funcIsWhitelisted, []any{&ok}, account)
	return ok, err
}

func (i *identity) AddWhitelisted(ctx context.Context, account common.Address) error {
	return i.transact(ctx, funcAddWhitelisted, account)
}

func (i *identity) AddContract(ctx context.Context, address common.Address) error {
	return i.transact(ctx, funcAddContract, address)
}

func (i *identity) TransferOwnership(ctx context.Context, newOwner common.Address) error {
	return i.transact(ctx, funcTransferOwnership, newOwner)
}

type feeFormula struct{ contract }

func (f *feeFormula) SetAvatar(ctx context.Context, avatar common.Address) error {
	return f.transact(ctx, funcSetAvatar, avatar)
}

func (f *feeFormula) TransferOwnership(ctx context.Context, newOwner common.Address) error {
	return f.transact(ctx, funcTransferOwnership, newOwner)
}

type creator struct{ contract }

func (c *creator) ForgeOrg(ctx context.Context, spec interfaces.OrgSpec) error {
	founders := spec.Founders
	if founders == nil {
		founders = []common.Address{}
	}
	reputation := spec.ReputationAmounts
	if reputation == nil {
		reputation = []*big.Int{}
	}
	return c.transact(ctx, funcForgeOrg,
		spec.TokenName,
		spec.TokenSymbol,
		spec.Cap,
		spec.FeeFormula,
		spec.Identity,
		founders,
		spec.FoundersTokenAmount,
		reputation,
	)
}

func (c *creator) SetSchemes(ctx context.Context, avatar common.Address, schemes []interfaces.SchemeRegistration, metadata string) error {
	addrs, params, permissions := interfaces.SplitSchemeRegistrations(schemes)
	hashes := make([][32]byte, len(params))
	for i, p := range params {
		hashes[i] = [32]byte(p)
	}
	masks := make([][4]byte, len(permissions))
	for i, p := range permissions {
		masks[i] = p.Bytes4()
	}
	return c.transact(ctx, funcSetSchemes, avatar, addrs, hashes, masks, metadata)
}

func (c *creator) Avatar(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, funcCreatorAvatar)
}

type avatar struct{ contract }

func (a *avatar) Owner(ctx context.Context) (common.Address, error) {
	return a.callAddress(ctx, funcOwner)
}

func (a *avatar) NativeToken(ctx context.Context) (common.Address, error) {
	return a.callAddress(ctx, funcNativeToken)
}

func (a *avatar) NativeReputation(ctx context.Context) (common.Address, error) {
	return a.callAddress(ctx, funcNativeReputation)
}

type token struct{ contract }

func (t *token) Mint(ctx context.Context, to common.Address, amount *big.Int) error {
	return t.transact(ctx, funcMint, to, amount)
}

func (t *token) RenounceMinter(ctx context.Context) error {
	return t.transact(ctx, funcRenounceMinter)
}

func (t *token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := t.call(ctx, funcBalanceOf, []any{&balance}, account); err != nil {
		return nil, err
	}
	if balance == nil {
		balance = new(big.Int)
	}
	return balance, nil
}

type votingMachine struct{ contract }

func (v *votingMachine) GetParametersHash(ctx context.Context, precedence *big.Int, voteOnBehalf common.Address) (interfaces.ParameterHash, error) {
	return v.callHash(ctx, funcVoteParametersHash, precedence, voteOnBehalf)
}

func (v *votingMachine) SetParameters(ctx context.Context, precedence *big.Int, voteOnBehalf common.Address) error {
	return v.transact(ctx, funcSetVoteParameters, precedence, voteOnBehalf)
}

type upgradeScheme struct{ contract }

func (u *upgradeScheme) GetParametersHash(ctx context.Context, voteParams interfaces.ParameterHash, votingMachine common.Address) (interfaces.ParameterHash, error) {
	return u.callHash(ctx, funcUpgradeParametersHash, [32]byte(voteParams), votingMachine)
}

func (u *upgradeScheme) SetParameters(ctx context.Context, voteParams interfaces.ParameterHash, votingMachine common.Address) error {
	return u.transact(ctx, funcSetUpgradeParameters, [32]byte(voteParams), votingMachine)
}

type schemeRegistrar struct{ contract }

func (s *schemeRegistrar) GetParametersHash(ctx context.Context, voteRegister, voteRemove interfaces.ParameterHash, votingMachine common.Address) (interfaces.ParameterHash, error) {
	return s.callHash(ctx, funcRegistrarParametersHash, [32]byte(voteRegister), [32]byte(voteRemove), votingMachine)
}

func (s *schemeRegistrar) SetParameters(ctx context.Context, voteRegister, voteRemove interfaces.ParameterHash, votingMachine common.Address) error {
	return s.transact(ctx, funcSetRegistrarParameters, [32]byte(voteRegister), [32]byte(voteRemove), votingMachine)
}
