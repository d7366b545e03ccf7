package memledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

type addressSet map[common.Address]struct{}

func (s addressSet) has(a common.Address) bool {
	_, ok := s[a]
	return ok
}

func (s addressSet) add(a common.Address) { s[a] = struct{}{} }

type identityState struct {
	owner      common.Address
	admins     addressSet
	pausers    addressSet
	whitelist  addressSet
	contracts  addressSet
	avatar     common.Address
	authPeriod *big.Int
}

func newIdentityState(owner common.Address) *identityState {
	s := &identityState{
		owner:      owner,
		admins:     addressSet{},
		pausers:    addressSet{},
		whitelist:  addressSet{},
		contracts:  addressSet{},
		authPeriod: new(big.Int),
	}
	s.admins.add(owner)
	s.pausers.add(owner)
	return s
}

type feeState struct {
	owner      common.Address
	percentage *big.Int
	avatar     common.Address
}

type controllerCreatorState struct{}

type founderSeederState struct {
	controllerCreator common.Address
}

type creatorState struct {
	founderSeeder common.Address
	forger        common.Address
	avatar        common.Address
	schemesSet    bool
}

type avatarState struct {
	owner      common.Address
	token      common.Address
	reputation common.Address
}

type controllerState struct {
	avatar  common.Address
	schemes map[common.Address]interfaces.SchemeRegistration
}

type tokenState struct {
	name        string
	symbol      string
	cap         *big.Int
	feeFormula  common.Address
	identity    common.Address
	minters     addressSet
	balances    map[common.Address]*big.Int
	totalSupply *big.Int
}

func (t *tokenState) mint(to common.Address, amount *big.Int) error {
	supply := new(big.Int).Add(t.totalSupply, amount)
	if t.cap.Sign() > 0 && supply.Cmp(t.cap) > 0 {
		return revert("ERC20Capped: cap exceeded")
	}
	t.totalSupply = supply
	t.balances[to] = new(big.Int).Add(balance(t.balances, to), amount)
	return nil
}

type reputationState struct {
	balances    map[common.Address]*big.Int
	totalSupply *big.Int
}

func (r *reputationState) mint(to common.Address, amount *big.Int) {
	r.totalSupply = new(big.Int).Add(r.totalSupply, amount)
	r.balances[to] = new(big.Int).Add(balance(r.balances, to), amount)
}

func balance(m map[common.Address]*big.Int, a common.Address) *big.Int {
	if b, ok := m[a]; ok {
		return b
	}
	return new(big.Int)
}

type voteParams struct {
	precedence   *big.Int
	voteOnBehalf common.Address
}

type voteState struct {
	params map[interfaces.ParameterHash]voteParams
}

type upgradeParams struct {
	voteParams    interfaces.ParameterHash
	votingMachine common.Address
}

type upgradeState struct {
	params map[interfaces.ParameterHash]upgradeParams
}

type registrarParams struct {
	voteRegister  interfaces.ParameterHash
	voteRemove    interfaces.ParameterHash
	votingMachine common.Address
}

type registrarState struct {
	params map[interfaces.ParameterHash]registrarParams
}

type adminWalletState struct {
	owner         common.Address
	admins        []common.Address
	toppingAmount *big.Int
	toppingTimes  *big.Int
	identity      common.Address
}
