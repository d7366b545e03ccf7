package memledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// Read-only accessors for state the capability interfaces do not expose.
// Unknown addresses read as zero values.

func (l *Ledger) Owner(addr common.Address) common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.contracts[addr]
	if !ok {
		return interfaces.NullAddress
	}
	switch s := c.state.(type) {
	case *identityState:
		return s.owner
	case *feeState:
		return s.owner
	case *avatarState:
		return s.owner
	case *adminWalletState:
		return s.owner
	}
	return interfaces.NullAddress
}

func (l *Ledger) IsKnownContract(identity, account common.Address) bool {
	return withState(l, identity, func(s *identityState) bool { return s.contracts.has(account) })
}

func (l *Ledger) IsIdentityAdmin(identity, account common.Address) bool {
	return withState(l, identity, func(s *identityState) bool { return s.admins.has(account) })
}

func (l *Ledger) IsPauser(identity, account common.Address) bool {
	return withState(l, identity, func(s *identityState) bool { return s.pausers.has(account) })
}

// WhitelistSize is the number of whitelisted accounts.
func (l *Ledger) WhitelistSize(identity common.Address) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := stateOf[*identityState](l, identity)
	if err != nil {
		return 0
	}
	return len(s.whitelist)
}

func (l *Ledger) AvatarOf(addr common.Address) common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, err := stateOf[*identityState](l, addr); err == nil {
		return s.avatar
	}
	if s, err := stateOf[*feeState](l, addr); err == nil {
		return s.avatar
	}
	return interfaces.NullAddress
}

func (l *Ledger) IsMinter(token, account common.Address) bool {
	return withState(l, token, func(s *tokenState) bool { return s.minters.has(account) })
}

// Scheme returns the registration of scheme in controller.
func (l *Ledger) Scheme(controller, scheme common.Address) (interfaces.SchemeRegistration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := stateOf[*controllerState](l, controller)
	if err != nil {
		return interfaces.SchemeRegistration{}, false
	}
	reg, ok := s.schemes[scheme]
	return reg, ok
}

// HasParameters reports whether a voting machine or scheme stores a record under hash.
func (l *Ledger) HasParameters(addr common.Address, hash interfaces.ParameterHash) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.contracts[addr]
	if !ok {
		return false
	}
	switch s := c.state.(type) {
	case *voteState:
		_, ok = s.params[hash]
	case *upgradeState:
		_, ok = s.params[hash]
	case *registrarState:
		_, ok = s.params[hash]
	default:
		ok = false
	}
	return ok
}

func withState[T any](l *Ledger, addr common.Address, fn func(T) bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := stateOf[T](l, addr)
	if err != nil {
		return false
	}
	return fn(s)
}
