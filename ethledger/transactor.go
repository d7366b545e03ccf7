package ethledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

var (
	// ErrNoTransactOpts is returned when a transaction is attempted without first setting transaction options.
	ErrNoTransactOpts = errors.New("no authorized transactor available")

	// ErrReverted is returned when a transaction or call is rejected by the contract.
	ErrReverted = errors.New("execution reverted")

	// ErrNoContract is returned by At for addresses without code.
	ErrNoContract = errors.New("no contract at address")
)

// Transactor sends transactions from a single account. Sends are serialized so
// that concurrent call groups get consecutive nonces; mining is awaited without
// holding the lock.
type Transactor struct {
	client  bind.ContractBackend
	backend bind.DeployBackend
	log     *slog.Logger

	mu    sync.Mutex
	auth  *bind.TransactOpts
	nonce uint64
	// synced is false until the pending nonce was read, and again after a failed send.
	synced bool
}

// NewTransactor requires a ContractBackend for calls and sends and a DeployBackend
// for waiting on receipts.
func NewTransactor(log *slog.Logger, client bind.ContractBackend, backend bind.DeployBackend) *Transactor {
	if log == nil {
		log = slog.Default()
	}
	return &Transactor{client: client, backend: backend, log: log}
}

// SetTransactOpts sets the transaction options required for functions that modify state.
// This must be called before any deployment or state-changing call.
func (t *Transactor) SetTransactOpts(auth *bind.TransactOpts) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.auth = auth
	t.synced = false
}

// From returns the sending account, or the zero address without transact options.
func (t *Transactor) From() common.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.auth == nil {
		return common.Address{}
	}
	return t.auth.From
}

// send signs and submits one transaction built by submit. The opts passed to
// submit carry ctx, the next nonce and the gas hint of ctx.
func (t *Transactor) send(ctx context.Context, submit func(opts *bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.auth == nil {
		return nil, ErrNoTransactOpts
	}
	if !t.synced {
		nonce, err := t.client.PendingNonceAt(ctx, t.auth.From)
		if err != nil {
			return nil, fmt.Errorf("get nonce: %w", err)
		}
		t.nonce = nonce
		t.synced = true
	}

	opts := *t.auth
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(t.nonce)
	if gas, ok := interfaces.GasLimitFromContext(ctx); ok {
		opts.GasLimit = gas
	}

	tx, err := submit(&opts)
	if err != nil {
		t.synced = false
		return nil, classify(err)
	}
	t.nonce++
	return tx, nil
}

// wait blocks until tx is mined and checks its status.
func (t *Transactor) wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, t.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for receipt %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: transaction %s failed", ErrReverted, tx.Hash().Hex())
	}
	return receipt, nil
}

// Transact sends calldata to a contract and waits for it to be mined.
func (t *Transactor) Transact(ctx context.Context, to common.Address, calldata []byte) (*types.Receipt, error) {
	tx, err := t.send(ctx, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		bound := bind.NewBoundContract(to, abi.ABI{}, t.client, t.client, t.client)
		return bound.RawTransact(opts, calldata)
	})
	if err != nil {
		return nil, err
	}
	t.log.Debug("sent transaction", slog.String("to", to.Hex()), slog.String("tx", tx.Hash().Hex()))
	return t.wait(ctx, tx)
}

// Deploy creates a contract from artifact with constructor params and waits for it.
func (t *Transactor) Deploy(ctx context.Context, artifact *ContractArtifact, params ...any) (common.Address, error) {
	parsed, code, err := artifact.parsed()
	if err != nil {
		return common.Address{}, err
	}

	var addr common.Address
	tx, err := t.send(ctx, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		a, tx, _, err := bind.DeployContract(opts, parsed, code, t.client, params...)
		addr = a
		return tx, err
	})
	if err != nil {
		return common.Address{}, err
	}
	t.log.Debug("sent deployment", slog.String("contract", artifact.ContractName),
		slog.String("address", addr.Hex()), slog.String("tx", tx.Hash().Hex()))

	receipt, err := t.wait(ctx, tx)
	if err != nil {
		return common.Address{}, err
	}
	if receipt.ContractAddress != (common.Address{}) {
		addr = receipt.ContractAddress
	}
	return addr, nil
}

// Call executes a read-only call against the latest state.
func (t *Transactor) Call(ctx context.Context, to common.Address, calldata []byte) ([]byte, error) {
	out, err := t.client.CallContract(ctx, ethereum.CallMsg{From: t.From(), To: &to, Data: calldata}, nil)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// HasCode reports whether address holds contract code.
func (t *Transactor) HasCode(ctx context.Context, address common.Address) (bool, error) {
	code, err := t.backend.CodeAt(ctx, address, nil)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// classify maps node revert errors onto ErrReverted.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrReverted) {
		return err
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return fmt.Errorf("%w: %v", ErrReverted, err)
	}
	return err
}
