// Package memledger is an in-memory ComponentFactory. It keeps the contract
// state the provisioner relies on (ownership, roles, whitelist, minting and cap,
// parameter records, scheme registry) and reverts where the contracts revert, so
// provisioning can be rehearsed without a chain.
package memledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

var (
	// ErrReverted is returned for calls the contract would reject.
	ErrReverted = errors.New("execution reverted")

	// ErrNoContract is returned by At for addresses without a contract.
	ErrNoContract = errors.New("no contract at address")

	// ErrBadArgs is returned when Deploy receives arguments of the wrong shape.
	ErrBadArgs = errors.New("bad constructor arguments")
)

func revert(reason string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrReverted, fmt.Sprintf(reason, args...))
}

// Ledger holds the state of every contract deployed through its factories.
type Ledger struct {
	mu        sync.Mutex
	log       *slog.Logger
	nonces    map[common.Address]uint64
	contracts map[common.Address]*contract
	deploys   map[interfaces.ComponentKind]int
	calls     []string
	faults    map[string]error
}

type contract struct {
	kind  interfaces.ComponentKind
	state any
}

// NewLedger creates an empty ledger.
func NewLedger(log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		log:       log,
		nonces:    make(map[common.Address]uint64),
		contracts: make(map[common.Address]*contract),
		deploys:   make(map[interfaces.ComponentKind]int),
		faults:    make(map[string]error),
	}
}

// Factory returns a ComponentFactory whose transactions are sent by from.
func (l *Ledger) Factory(from common.Address) *Factory {
	return &Factory{ledger: l, from: from}
}

// FailOn makes every later call of method (e.g. "Identity.addWhitelisted",
// "deploy AdminWallet") fail with err.
func (l *Ledger) FailOn(method string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults[method] = err
}

// Calls returns the transactions executed so far, in order.
func (l *Ledger) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// DeployCount returns how many contracts of kind were deployed.
func (l *Ledger) DeployCount(kind interfaces.ComponentKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deploys[kind]
}

// TotalDeploys returns how many contracts were deployed.
func (l *Ledger) TotalDeploys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, n := range l.deploys {
		total += n
	}
	return total
}

// tx runs fn under the ledger lock as a transaction sent by from. Failed
// transactions still consume the sender's nonce, as on chain.
func (l *Ledger) tx(from common.Address, method string, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nonces[from]++
	if err, ok := l.faults[method]; ok {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	l.calls = append(l.calls, method)
	return nil
}

// view runs fn under the ledger lock without recording a transaction.
func (l *Ledger) view(method string, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.faults[method]; ok {
		return err
	}
	return fn()
}

// create places a new contract at the address derived from the sender's
// current transaction. Callers hold the lock inside tx.
func (l *Ledger) create(sender common.Address, kind interfaces.ComponentKind, state any) common.Address {
	addr := crypto.CreateAddress(sender, l.nonces[sender]-1)
	l.contracts[addr] = &contract{kind: kind, state: state}
	return addr
}

// spawn places a contract created by another contract. Contract nonces start at 1.
// Callers hold the lock.
func (l *Ledger) spawn(parent common.Address, kind interfaces.ComponentKind, state any) common.Address {
	l.nonces[parent]++
	addr := crypto.CreateAddress(parent, l.nonces[parent])
	l.contracts[addr] = &contract{kind: kind, state: state}
	return addr
}

func stateOf[T any](l *Ledger, addr common.Address) (T, error) {
	var zero T
	c, ok := l.contracts[addr]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNoContract, addr.Hex())
	}
	s, ok := c.state.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is a %s", interfaces.ErrKindMismatch, addr.Hex(), c.kind)
	}
	return s, nil
}

// Factory deploys and attaches to contracts on a Ledger on behalf of one sender.
type Factory struct {
	ledger *Ledger
	from   common.Address
}

// Sender returns the account the factory transacts as.
func (f *Factory) Sender() common.Address {
	return f.from
}

// Deploy creates a contract of kind. Gas hints in ctx are ignored.
func (f *Factory) Deploy(ctx context.Context, kind interfaces.ComponentKind, args ...any) (interfaces.Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var addr common.Address
	err := f.ledger.tx(f.from, "deploy "+kind.String(), func() error {
		state, err := f.construct(kind, args)
		if err != nil {
			return err
		}
		addr = f.ledger.create(f.from, kind, state)
		f.ledger.deploys[kind]++
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.ledger.log.Debug("deployed contract", slog.String("kind", kind.String()), slog.String("address", addr.Hex()))
	return f.handle(kind, addr), nil
}

// construct validates constructor arguments and returns the initial state.
// Callers hold the lock.
func (f *Factory) construct(kind interfaces.ComponentKind, args []any) (any, error) {
	switch kind {
	case interfaces.KindIdentity:
		if err := wantArgs(kind, args, 0); err != nil {
			return nil, err
		}
		return newIdentityState(f.from), nil
	case interfaces.KindFeeFormula:
		if err := wantArgs(kind, args, 1); err != nil {
			return nil, err
		}
		pct, err := arg[*big.Int](kind, args, 0)
		if err != nil {
			return nil, err
		}
		return &feeState{owner: f.from, percentage: new(big.Int).Set(pct)}, nil
	case interfaces.KindControllerCreator:
		if err := wantArgs(kind, args, 0); err != nil {
			return nil, err
		}
		return &controllerCreatorState{}, nil
	case interfaces.KindFounderSeeder:
		if err := wantArgs(kind, args, 1); err != nil {
			return nil, err
		}
		cc, err := arg[common.Address](kind, args, 0)
		if err != nil {
			return nil, err
		}
		if _, err := stateOf[*controllerCreatorState](f.ledger, cc); err != nil {
			return nil, revert("controller creator: %v", err)
		}
		return &founderSeederState{controllerCreator: cc}, nil
	case interfaces.KindOrganizationCreator:
		if err := wantArgs(kind, args, 1); err != nil {
			return nil, err
		}
		seeder, err := arg[common.Address](kind, args, 0)
		if err != nil {
			return nil, err
		}
		if _, err := stateOf[*founderSeederState](f.ledger, seeder); err != nil {
			return nil, revert("founder seeder: %v", err)
		}
		return &creatorState{founderSeeder: seeder}, nil
	case interfaces.KindVotingMachine:
		if err := wantArgs(kind, args, 0); err != nil {
			return nil, err
		}
		return &voteState{params: make(map[interfaces.ParameterHash]voteParams)}, nil
	case interfaces.KindUpgradeScheme:
		if err := wantArgs(kind, args, 0); err != nil {
			return nil, err
		}
		return &upgradeState{params: make(map[interfaces.ParameterHash]upgradeParams)}, nil
	case interfaces.KindSchemeRegistrar:
		if err := wantArgs(kind, args, 0); err != nil {
			return nil, err
		}
		return &registrarState{params: make(map[interfaces.ParameterHash]registrarParams)}, nil
	case interfaces.KindAdminWallet:
		if err := wantArgs(kind, args, 4); err != nil {
			return nil, err
		}
		admins, err := arg[[]common.Address](kind, args, 0)
		if err != nil {
			return nil, err
		}
		amount, err := arg[*big.Int](kind, args, 1)
		if err != nil {
			return nil, err
		}
		times, err := arg[*big.Int](kind, args, 2)
		if err != nil {
			return nil, err
		}
		identity, err := arg[common.Address](kind, args, 3)
		if err != nil {
			return nil, err
		}
		if _, err := stateOf[*identityState](f.ledger, identity); err != nil {
			return nil, revert("identity: %v", err)
		}
		return &adminWalletState{
			owner:         f.from,
			admins:        append([]common.Address(nil), admins...),
			toppingAmount: new(big.Int).Set(amount),
			toppingTimes:  new(big.Int).Set(times),
			identity:      identity,
		}, nil
	case interfaces.KindAvatar, interfaces.KindController, interfaces.KindToken, interfaces.KindReputation:
		return nil, fmt.Errorf("%w: %s is created by forgeOrg", interfaces.ErrUnknownKind, kind)
	default:
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUnknownKind, kind)
	}
}

func wantArgs(kind interfaces.ComponentKind, args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrBadArgs, kind, n, len(args))
	}
	return nil
}

func arg[T any](kind interfaces.ComponentKind, args []any, i int) (T, error) {
	v, ok := args[i].(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s argument %d is %T, want %T", ErrBadArgs, kind, i, args[i], zero)
	}
	return v, nil
}

// At attaches to the contract at address, which must be of kind.
func (f *Factory) At(ctx context.Context, kind interfaces.ComponentKind, address common.Address) (interfaces.Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.ledger.mu.Lock()
	c, ok := f.ledger.contracts[address]
	f.ledger.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoContract, address.Hex())
	}
	if c.kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", interfaces.ErrKindMismatch, address.Hex(), c.kind, kind)
	}
	return f.handle(kind, address), nil
}

func (f *Factory) handle(kind interfaces.ComponentKind, addr common.Address) interfaces.Component {
	h := handle{f: f, kind: kind, addr: addr}
	switch kind {
	case interfaces.KindIdentity:
		return &identityHandle{h}
	case interfaces.KindFeeFormula:
		return &feeFormulaHandle{h}
	case interfaces.KindOrganizationCreator:
		return &creatorHandle{h}
	case interfaces.KindAvatar:
		return &avatarHandle{h}
	case interfaces.KindToken:
		return &tokenHandle{h}
	case interfaces.KindVotingMachine:
		return &votingMachineHandle{h}
	case interfaces.KindUpgradeScheme:
		return &upgradeSchemeHandle{h}
	case interfaces.KindSchemeRegistrar:
		return &registrarHandle{h}
	default:
		return &h
	}
}
