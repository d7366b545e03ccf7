package memledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
	"github.com/ruteri/dao-provisioning-backend/paramhash"
)

type handle struct {
	f    *Factory
	kind interfaces.ComponentKind
	addr common.Address
}

func (h *handle) Kind() interfaces.ComponentKind { return h.kind }
func (h *handle) Address() common.Address        { return h.addr }

func (h *handle) method(name string) string {
	return h.kind.String() + "." + name
}

// txOn runs fn against the handle's state as a transaction from the factory's sender.
func txOn[T any](ctx context.Context, h *handle, name string, fn func(s T) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.f.ledger.tx(h.f.from, h.method(name), func() error {
		s, err := stateOf[T](h.f.ledger, h.addr)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

func viewOn[T any](ctx context.Context, h *handle, name string, fn func(s T) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.f.ledger.view(h.method(name), func() error {
		s, err := stateOf[T](h.f.ledger, h.addr)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

type identityHandle struct{ handle }

func (h *identityHandle) onlyOwner(s *identityState) error {
	if s.owner != h.f.from {
		return revert("Ownable: caller is not the owner")
	}
	return nil
}

func (h *identityHandle) onlyAdmin(s *identityState) error {
	if !s.admins.has(h.f.from) {
		return revert("not IdentityAdmin")
	}
	return nil
}

func (h *identityHandle) SetAuthenticationPeriod(ctx context.Context, period *big.Int) error {
	return txOn(ctx, &h.handle, "setAuthenticationPeriod", func(s *identityState) error {
		if err := h.onlyOwner(s); err != nil {
			return err
		}
		s.authPeriod = new(big.Int).Set(period)
		return nil
	})
}

func (h *identityHandle) SetAvatar(ctx context.Context, avatar common.Address) error {
	return txOn(ctx, &h.handle, "setAvatar", func(s *identityState) error {
		if err := h.onlyOwner(s); err != nil {
			return err
		}
		s.avatar = avatar
		return nil
	})
}

func (h *identityHandle) AddIdentityAdmin(ctx context.Context, account common.Address) error {
	return txOn(ctx, &h.handle, "addIdentityAdmin", func(s *identityState) error {
		if err := h.onlyOwner(s); err != nil {
			return err
		}
		if s.admins.has(account) {
			return revert("Roles: account already has role")
		}
		s.admins.add(account)
		return nil
	})
}

func (h *identityHandle) AddPauser(ctx context.Context, account common.Address) error {
	return txOn(ctx, &h.handle, "addPauser", func(s *identityState) error {
		if !s.pausers.has(h.f.from) {
			return revert("PauserRole: caller does not have the Pauser role")
		}
		if s.pausers.has(account) {
			return revert("Roles: account already has role")
		}
		s.pausers.add(account)
		return nil
	})
}

func (h *identityHandle) IsWhitelisted(ctx context.Context, account common.Address) (bool, error) {
	var out bool
	err := viewOn(ctx, &h.handle, "isWhitelisted", func(s *identityState) error {
		out = s.whitelist.has(account)
		return nil
	})
	return out, err
}

func (h *identityHandle) AddWhitelisted(ctx context.Context, account common.Address) error {
	return txOn(ctx, &h.handle, "addWhitelisted", func(s *identityState) error {
		if err := h.onlyAdmin(s); err != nil {
			return err
		}
		if s.whitelist.has(account) {
			return revert("Roles: account already has role")
		}
		s.whitelist.add(account)
		return nil
	})
}

func (h *identityHandle) AddContract(ctx context.Context, account common.Address) error {
	return txOn(ctx, &h.handle, "addContract", func(s *identityState) error {
		if err := h.onlyAdmin(s); err != nil {
			return err
		}
		if _, ok := h.f.ledger.contracts[account]; !ok {
			return revert("Given address is not a contract")
		}
		s.contracts.add(account)
		return nil
	})
}

func (h *identityHandle) TransferOwnership(ctx context.Context, newOwner common.Address) error {
	return txOn(ctx, &h.handle, "transferOwnership", func(s *identityState) error {
		if err := h.onlyOwner(s); err != nil {
			return err
		}
		if newOwner == interfaces.NullAddress {
			return revert("Ownable: new owner is the zero address")
		}
		s.owner = newOwner
		return nil
	})
}

type feeFormulaHandle struct{ handle }

func (h *feeFormulaHandle) SetAvatar(ctx context.Context, avatar common.Address) error {
	return txOn(ctx, &h.handle, "setAvatar", func(s *feeState) error {
		if s.owner != h.f.from {
			return revert("Ownable: caller is not the owner")
		}
		s.avatar = avatar
		return nil
	})
}

func (h *feeFormulaHandle) TransferOwnership(ctx context.Context, newOwner common.Address) error {
	return txOn(ctx, &h.handle, "transferOwnership", func(s *feeState) error {
		if s.owner != h.f.from {
			return revert("Ownable: caller is not the owner")
		}
		if newOwner == interfaces.NullAddress {
			return revert("Ownable: new owner is the zero address")
		}
		s.owner = newOwner
		return nil
	})
}

type creatorHandle struct{ handle }

// ForgeOrg creates the token, reputation, avatar and controller. Founders and
// the sender become token minters; the founders' token amount goes to the avatar.
func (h *creatorHandle) ForgeOrg(ctx context.Context, spec interfaces.OrgSpec) error {
	return txOn(ctx, &h.handle, "forgeOrg", func(s *creatorState) error {
		l := h.f.ledger
		if s.avatar != interfaces.NullAddress {
			return revert("organization already forged")
		}
		if len(spec.Founders) != len(spec.ReputationAmounts) {
			return revert("founders and reputation amounts differ in length")
		}
		if _, err := stateOf[*feeState](l, spec.FeeFormula); err != nil {
			return revert("fee formula: %v", err)
		}
		if _, err := stateOf[*identityState](l, spec.Identity); err != nil {
			return revert("identity: %v", err)
		}
		for _, f := range spec.Founders {
			if f == interfaces.NullAddress {
				return revert("founder is the zero address")
			}
		}
		if spec.Cap == nil {
			return revert("cap is not set")
		}
		if spec.FoundersTokenAmount != nil && spec.Cap.Sign() > 0 && spec.FoundersTokenAmount.Cmp(spec.Cap) > 0 {
			return revert("ERC20Capped: cap exceeded")
		}

		token := &tokenState{
			name:        spec.TokenName,
			symbol:      spec.TokenSymbol,
			cap:         new(big.Int).Set(spec.Cap),
			feeFormula:  spec.FeeFormula,
			identity:    spec.Identity,
			minters:     addressSet{},
			balances:    make(map[common.Address]*big.Int),
			totalSupply: new(big.Int),
		}
		rep := &reputationState{balances: make(map[common.Address]*big.Int), totalSupply: new(big.Int)}
		tokenAddr := l.spawn(h.addr, interfaces.KindToken, token)
		repAddr := l.spawn(h.addr, interfaces.KindReputation, rep)

		for i, f := range spec.Founders {
			if spec.ReputationAmounts[i].Sign() > 0 {
				rep.mint(f, spec.ReputationAmounts[i])
			}
		}

		avatar := &avatarState{token: tokenAddr, reputation: repAddr}
		avatarAddr := l.spawn(h.addr, interfaces.KindAvatar, avatar)
		if spec.FoundersTokenAmount != nil && spec.FoundersTokenAmount.Sign() > 0 {
			if err := token.mint(avatarAddr, spec.FoundersTokenAmount); err != nil {
				return err
			}
		}

		controller := &controllerState{avatar: avatarAddr, schemes: make(map[common.Address]interfaces.SchemeRegistration)}
		controllerAddr := l.spawn(h.addr, interfaces.KindController, controller)
		// The creator is the bootstrap scheme until setSchemes replaces it.
		controller.schemes[h.addr] = interfaces.SchemeRegistration{Scheme: h.addr, Permissions: interfaces.FullPermissions}
		avatar.owner = controllerAddr

		token.minters.add(controllerAddr)
		token.minters.add(h.f.from)
		for _, f := range spec.Founders {
			token.minters.add(f)
		}

		s.avatar = avatarAddr
		s.forger = h.f.from
		return nil
	})
}

func (h *creatorHandle) SetSchemes(ctx context.Context, avatar common.Address, schemes []interfaces.SchemeRegistration, metadata string) error {
	return txOn(ctx, &h.handle, "setSchemes", func(s *creatorState) error {
		l := h.f.ledger
		if s.avatar == interfaces.NullAddress || s.avatar != avatar {
			return revert("unknown avatar")
		}
		if s.forger != h.f.from {
			return revert("only the organization forger can set schemes")
		}
		if s.schemesSet {
			return revert("schemes already set")
		}
		av, err := stateOf[*avatarState](l, avatar)
		if err != nil {
			return err
		}
		ctrl, err := stateOf[*controllerState](l, av.owner)
		if err != nil {
			return err
		}
		for _, reg := range schemes {
			if reg.Scheme == interfaces.NullAddress {
				return revert("scheme is the zero address")
			}
			ctrl.schemes[reg.Scheme] = reg
		}
		delete(ctrl.schemes, h.addr)
		s.schemesSet = true
		return nil
	})
}

func (h *creatorHandle) Avatar(ctx context.Context) (common.Address, error) {
	var out common.Address
	err := viewOn(ctx, &h.handle, "avatar", func(s *creatorState) error {
		out = s.avatar
		return nil
	})
	return out, err
}

type avatarHandle struct{ handle }

func (h *avatarHandle) Owner(ctx context.Context) (common.Address, error) {
	var out common.Address
	err := viewOn(ctx, &h.handle, "owner", func(s *avatarState) error {
		out = s.owner
		return nil
	})
	return out, err
}

func (h *avatarHandle) NativeToken(ctx context.Context) (common.Address, error) {
	var out common.Address
	err := viewOn(ctx, &h.handle, "nativeToken", func(s *avatarState) error {
		out = s.token
		return nil
	})
	return out, err
}

func (h *avatarHandle) NativeReputation(ctx context.Context) (common.Address, error) {
	var out common.Address
	err := viewOn(ctx, &h.handle, "nativeReputation", func(s *avatarState) error {
		out = s.reputation
		return nil
	})
	return out, err
}

type tokenHandle struct{ handle }

func (h *tokenHandle) Mint(ctx context.Context, to common.Address, amount *big.Int) error {
	return txOn(ctx, &h.handle, "mint", func(s *tokenState) error {
		if !s.minters.has(h.f.from) {
			return revert("MinterRole: caller does not have the Minter role")
		}
		if to == interfaces.NullAddress {
			return revert("ERC20: mint to the zero address")
		}
		return s.mint(to, amount)
	})
}

func (h *tokenHandle) RenounceMinter(ctx context.Context) error {
	return txOn(ctx, &h.handle, "renounceMinter", func(s *tokenState) error {
		if !s.minters.has(h.f.from) {
			return revert("Roles: account does not have role")
		}
		delete(s.minters, h.f.from)
		return nil
	})
}

func (h *tokenHandle) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var out *big.Int
	err := viewOn(ctx, &h.handle, "balanceOf", func(s *tokenState) error {
		out = new(big.Int).Set(balance(s.balances, account))
		return nil
	})
	return out, err
}

type votingMachineHandle struct{ handle }

func (h *votingMachineHandle) GetParametersHash(ctx context.Context, precedence *big.Int, voteOnBehalf common.Address) (interfaces.ParameterHash, error) {
	if err := ctx.Err(); err != nil {
		return interfaces.NullHash, err
	}
	if precedence == nil {
		return interfaces.NullHash, revert("precedence is not set")
	}
	var out interfaces.ParameterHash
	err := h.f.ledger.view(h.method("getParametersHash"), func() error {
		out = new(paramhash.Packer).Uint256(precedence).Address(voteOnBehalf).Hash()
		return nil
	})
	return out, err
}

func (h *votingMachineHandle) SetParameters(ctx context.Context, precedence *big.Int, voteOnBehalf common.Address) error {
	return txOn(ctx, &h.handle, "setParameters", func(s *voteState) error {
		key, err := paramhash.VoteParams(precedence, voteOnBehalf)
		if err != nil {
			return revert("%v", err)
		}
		s.params[key] = voteParams{precedence: new(big.Int).Set(precedence), voteOnBehalf: voteOnBehalf}
		return nil
	})
}

type upgradeSchemeHandle struct{ handle }

func (h *upgradeSchemeHandle) GetParametersHash(ctx context.Context, voteParams interfaces.ParameterHash, votingMachine common.Address) (interfaces.ParameterHash, error) {
	if err := ctx.Err(); err != nil {
		return interfaces.NullHash, err
	}
	var out interfaces.ParameterHash
	err := h.f.ledger.view(h.method("getParametersHash"), func() error {
		out = paramhash.UpgradeParams(voteParams, votingMachine)
		return nil
	})
	return out, err
}

func (h *upgradeSchemeHandle) SetParameters(ctx context.Context, voteParams interfaces.ParameterHash, votingMachine common.Address) error {
	return txOn(ctx, &h.handle, "setParameters", func(s *upgradeState) error {
		s.params[paramhash.UpgradeParams(voteParams, votingMachine)] = upgradeParams{voteParams: voteParams, votingMachine: votingMachine}
		return nil
	})
}

type registrarHandle struct{ handle }

func (h *registrarHandle) GetParametersHash(ctx context.Context, voteRegister, voteRemove interfaces.ParameterHash, votingMachine common.Address) (interfaces.ParameterHash, error) {
	if err := ctx.Err(); err != nil {
		return interfaces.NullHash, err
	}
	var out interfaces.ParameterHash
	err := h.f.ledger.view(h.method("getParametersHash"), func() error {
		out = paramhash.RegistrarParams(voteRegister, voteRemove, votingMachine)
		return nil
	})
	return out, err
}

func (h *registrarHandle) SetParameters(ctx context.Context, voteRegister, voteRemove interfaces.ParameterHash, votingMachine common.Address) error {
	return txOn(ctx, &h.handle, "setParameters", func(s *registrarState) error {
		key := paramhash.RegistrarParams(voteRegister, voteRemove, votingMachine)
		s.params[key] = registrarParams{voteRegister: voteRegister, voteRemove: voteRemove, votingMachine: votingMachine}
		return nil
	})
}
