package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/dao-provisioning-backend/environment"
	"github.com/ruteri/dao-provisioning-backend/ethledger"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
	"github.com/ruteri/dao-provisioning-backend/memledger"
	"github.com/ruteri/dao-provisioning-backend/provisioner"
)

var errNoPrivateKey = errors.New("a deployer private key is required, use --private-key or PRIVATE_KEY")

// dryRunChainID is reported for previews against the in-memory ledger.
var dryRunChainID = big.NewInt(4447)

// dryRunDeployer signs previews when no key is supplied.
var dryRunDeployer = common.HexToAddress("0x00000000000000000000000000000000000000d0")

// pipeline ties the settings, a component factory and the manifest store
// into a runnable provisioning of one network.
type pipeline struct {
	log      *slog.Logger
	settings environment.Settings
	writer   interfaces.ManifestWriter

	// live runs
	client  *ethclient.Client
	factory *ethledger.Factory
	chainID *big.Int

	// dry runs
	dryRun    bool
	deployer  common.Address
	newLedger func(*slog.Logger) *memledger.Ledger
}

func parsePrivateKey(key string) (*ecdsa.PrivateKey, error) {
	if key == "" {
		return nil, errNoPrivateKey
	}
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return pk, nil
}

// newLivePipeline connects to the ledger node and prepares the ethereum factory.
func newLivePipeline(ctx context.Context, log *slog.Logger, settings environment.Settings, writer interfaces.ManifestWriter, rpcAddr, artifactsDir, privateKey string) (*pipeline, error) {
	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	artifacts, err := ethledger.LoadArtifacts(artifactsDir)
	if err != nil {
		return nil, err
	}

	log.Info("Connecting to Ethereum RPC", "address", rpcAddr)
	client, err := ethclient.DialContext(ctx, rpcAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		client.Close()
		return nil, err
	}

	factory := ethledger.NewFactory(log, client, client, artifacts)
	factory.SetTransactOpts(auth)

	log.Info("Ethereum factory ready",
		slog.String("deployer", auth.From.Hex()),
		slog.String("chainID", chainID.String()))

	return &pipeline{
		log:      log,
		settings: settings,
		writer:   writer,
		client:   client,
		factory:  factory,
		chainID:  chainID,
		deployer: auth.From,
	}, nil
}

// newDryRunPipeline provisions against a fresh in-memory ledger on every run.
// The manifest is logged instead of stored.
func newDryRunPipeline(log *slog.Logger, settings environment.Settings, privateKey string) (*pipeline, error) {
	deployer := dryRunDeployer
	if privateKey != "" {
		key, err := parsePrivateKey(privateKey)
		if err != nil {
			return nil, err
		}
		deployer = crypto.PubkeyToAddress(key.PublicKey)
	}

	writer := interfaces.ManifestWriterFunc(func(ctx context.Context, m *interfaces.Manifest) error {
		log.Info("Dry run, manifest not stored", slog.String("network", m.Network))
		return nil
	})

	return &pipeline{
		log:       log,
		settings:  settings,
		writer:    writer,
		chainID:   dryRunChainID,
		dryRun:    true,
		deployer:  deployer,
		newLedger: memledger.NewLedger,
	}, nil
}

func (p *pipeline) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

// Run resolves the network's settings and founders and provisions it.
func (p *pipeline) Run(ctx context.Context, network string, onStep provisioner.ProgressCallback) (*interfaces.Manifest, error) {
	log := p.log.With(slog.String("network", network))

	var node environment.AccountLister
	if p.client != nil {
		node = environment.NewRPCAccounts(p.client.Client())
	}

	founders, err := environment.ResolveFounders(ctx, p.settings, network, node)
	if err != nil {
		return nil, err
	}

	cfg, err := environment.Resolve(p.settings, network, len(founders))
	if err != nil {
		return nil, err
	}

	var factory interfaces.ComponentFactory = p.factory
	if p.dryRun {
		factory = p.newLedger(log).Factory(p.deployer)
	}

	dctx := environment.NewDeploymentContext(network, p.chainID, p.deployer)
	log.Info("Provisioning organization",
		slog.String("class", dctx.Class.String()),
		slog.Int("founders", len(founders)),
		slog.Bool("dryRun", p.dryRun))

	prov := provisioner.NewProvisioner(log, factory, p.writer)
	if onStep != nil {
		prov.OnStep(onStep)
	}
	return prov.Provision(ctx, dctx, cfg, founders)
}
