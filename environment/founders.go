package environment

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// AccountLister lists the accounts a node can sign for.
type AccountLister interface {
	Accounts(ctx context.Context) ([]common.Address, error)
}

// RPCAccounts lists node accounts with eth_accounts.
type RPCAccounts struct {
	client *rpc.Client
}

func NewRPCAccounts(client *rpc.Client) *RPCAccounts {
	return &RPCAccounts{client: client}
}

func (r *RPCAccounts) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := r.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}
	return accounts, nil
}

// ResolveFounders returns the founders configured for network or, when none are
// configured, the accounts of the node. foundersCount limits either list.
// An empty result is valid.
func ResolveFounders(ctx context.Context, settings Settings, network string, node AccountLister) ([]common.Address, error) {
	ns := settings.For(network)

	var founders []common.Address
	if ns.Founders != nil {
		parsed, err := interfaces.ParseAddresses(ns.Founders)
		if err != nil {
			return nil, fmt.Errorf("%w: founders: %v", ErrInvalidSettings, err)
		}
		founders = parsed
	} else if node != nil {
		accounts, err := node.Accounts(ctx)
		if err != nil {
			return nil, err
		}
		founders = accounts
	}

	if ns.FoundersCount != nil {
		n := *ns.FoundersCount
		if n < 0 {
			return nil, fmt.Errorf("%w: foundersCount is negative", ErrInvalidSettings)
		}
		if n < len(founders) {
			founders = founders[:n]
		}
	}
	return founders, nil
}
