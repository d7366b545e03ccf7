package main

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/dao-provisioning-backend/environment"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
	"github.com/ruteri/dao-provisioning-backend/memledger"
	"github.com/ruteri/dao-provisioning-backend/provisioner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingsYAML = `
default:
  cap: "22000000000"
  reputation: "1"
  avatarTokens: "100"
  txFeePercentage: "1"
  walletToppingAmount: "1"
  walletToppingUnits: milliether
  walletToppingTimes: 3
  identityAuthenticationPeriod: 14
develop:
  founders:
    - "0x1111111111111111111111111111111111111111"
    - "0x2222222222222222222222222222222222222222"
`

func TestDryRunPipeline(t *testing.T) {
	settings, err := environment.ParseSettings([]byte(settingsYAML))
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := newDryRunPipeline(log, settings, "")
	require.NoError(t, err)
	defer p.Close()

	var mu sync.Mutex
	var steps []provisioner.Step
	manifest, err := p.Run(context.Background(), "develop", func(step provisioner.Step, status provisioner.StepStatus) {
		mu.Lock()
		defer mu.Unlock()
		if status == provisioner.StatusCompleted {
			steps = append(steps, step)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, "develop", manifest.Network)
	assert.Equal(t, dryRunChainID.Uint64(), manifest.NetworkID)
	assert.NotEqual(t, interfaces.NullAddress, manifest.GoodDollar)
	assert.NotEqual(t, interfaces.NullAddress, manifest.Identity)
	assert.NotEqual(t, interfaces.NullAddress, manifest.Avatar)
	assert.Contains(t, steps, provisioner.StepWriteManifest)

	// Each run starts from an empty ledger, so a second run is not blocked by the first.
	again, err := p.Run(context.Background(), "develop", nil)
	require.NoError(t, err)
	assert.Equal(t, "develop", again.Network)
}

func TestDryRunDeployerFromKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := "0x" + hex.EncodeToString(crypto.FromECDSA(key))

	p, err := newDryRunPipeline(slog.New(slog.NewTextHandler(io.Discard, nil)), environment.Settings{}, hexKey)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), p.deployer)

	_, err = newDryRunPipeline(slog.New(slog.NewTextHandler(io.Discard, nil)), environment.Settings{}, "0xnothex")
	require.Error(t, err)
}

func TestParsePrivateKey(t *testing.T) {
	_, err := parsePrivateKey("")
	require.ErrorIs(t, err, errNoPrivateKey)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	raw := hex.EncodeToString(crypto.FromECDSA(key))

	for _, s := range []string{raw, "0x" + raw} {
		parsed, err := parsePrivateKey(s)
		require.NoError(t, err)
		assert.Equal(t, key.D, parsed.D)
	}
}

const fractionalFeeYAML = `
default:
  cap: "1000"
  reputation: "100"
  avatarTokens: "100"
  txFeePercentage: 0.01
  identityAuthenticationPeriod: "14"
  founders:
    - "0x00000000000000000000000000000000000000f1"
    - "0x00000000000000000000000000000000000000f2"
`

func TestDryRunFromSettings(t *testing.T) {
	settings, err := environment.ParseSettings([]byte(fractionalFeeYAML))
	require.NoError(t, err)

	founders := []common.Address{
		common.HexToAddress("0x00000000000000000000000000000000000000f1"),
		common.HexToAddress("0x00000000000000000000000000000000000000f2"),
	}

	for _, network := range []string{"test", "mainnet"} {
		t.Run(network, func(t *testing.T) {
			ctx := context.Background()
			log := slog.New(slog.NewTextHandler(io.Discard, nil))
			p, err := newDryRunPipeline(log, settings, "")
			require.NoError(t, err)

			var ledger *memledger.Ledger
			p.newLedger = func(log *slog.Logger) *memledger.Ledger {
				ledger = memledger.NewLedger(log)
				return ledger
			}

			m, err := p.Run(ctx, network, nil)
			require.NoError(t, err)
			require.NotNil(t, ledger)
			assert.Equal(t, network, m.Network)

			for name, addr := range map[string]common.Address{
				"GoodDollar":      m.GoodDollar,
				"Identity":        m.Identity,
				"FeeFormula":      m.FeeFormula,
				"Avatar":          m.Avatar,
				"Controller":      m.Controller,
				"AbsoluteVote":    m.AbsoluteVote,
				"SchemeRegistrar": m.SchemeRegistrar,
				"UpgradeScheme":   m.UpgradeScheme,
			} {
				assert.NotEqual(t, interfaces.NullAddress, addr, name)
			}
			for name, addr := range map[string]common.Address{
				"UBI":             m.UBI,
				"SignupBonus":     m.SignupBonus,
				"OneTimePayments": m.OneTimePayments,
				"HomeBridge":      m.HomeBridge,
				"ForeignBridge":   m.ForeignBridge,
			} {
				assert.Equal(t, interfaces.NullAddress, addr, name)
			}

			c, err := ledger.Factory(p.deployer).At(ctx, interfaces.KindToken, m.GoodDollar)
			require.NoError(t, err)
			tok, err := interfaces.AsToken(c)
			require.NoError(t, err)

			c, err = ledger.Factory(p.deployer).At(ctx, interfaces.KindIdentity, m.Identity)
			require.NoError(t, err)
			identity, err := interfaces.AsIdentity(c)
			require.NoError(t, err)

			for _, f := range founders {
				ok, err := identity.IsWhitelisted(ctx, f)
				require.NoError(t, err)
				assert.True(t, ok, f.Hex())
			}
			assert.Equal(t, len(founders), ledger.WhitelistSize(m.Identity))

			if network == "mainnet" {
				assert.Equal(t, interfaces.NullAddress, m.AdminWallet)
				assert.False(t, ledger.IsMinter(m.GoodDollar, p.deployer))
				assert.ErrorIs(t, tok.Mint(ctx, p.deployer, big.NewInt(1)), memledger.ErrReverted)
				return
			}

			// avatarTokens of 100 at two decimals
			for _, f := range founders {
				bal, err := tok.BalanceOf(ctx, f)
				require.NoError(t, err)
				assert.Equal(t, int64(100*100), bal.Int64(), f.Hex())
			}
			assert.NotEqual(t, interfaces.NullAddress, m.AdminWallet)
			for _, addr := range []common.Address{m.Avatar, m.Controller, m.Identity, m.AdminWallet} {
				assert.True(t, ledger.IsKnownContract(m.Identity, addr), addr.Hex())
			}
		})
	}
}
