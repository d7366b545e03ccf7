package provisioner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/dao-provisioning-backend/environment"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
	"github.com/ruteri/dao-provisioning-backend/memledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deployer = common.HexToAddress("0xd000000000000000000000000000000000000001")
	founder2 = common.HexToAddress("0xf000000000000000000000000000000000000002")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig mirrors cap=1000, reputation=100, avatarTokens=100, fee=1 in token units.
func testConfig(founders int) *interfaces.EffectiveConfig {
	rep := make([]*big.Int, founders)
	for i := range rep {
		rep[i] = big.NewInt(100)
	}
	return &interfaces.EffectiveConfig{
		TokenName:          "GoodDollar",
		TokenSymbol:        "G$",
		TokenDecimals:      2,
		Cap:                big.NewInt(1000 * 100),
		InitialReputation:  rep,
		InitialTokenAmount: big.NewInt(100 * 100),
		FeePercentage:      big.NewInt(1),
		ToppingAmount:      big.NewInt(1e15),
		ToppingUnit:        "milliether",
		ToppingTimes:       big.NewInt(3),
		IdentityAuthPeriod: big.NewInt(14),
	}
}

type recordingWriter struct {
	mu        sync.Mutex
	manifests []*interfaces.Manifest
	err       error
}

func (w *recordingWriter) WriteManifest(_ context.Context, m *interfaces.Manifest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.manifests = append(w.manifests, m)
	return nil
}

type fixture struct {
	ledger  *memledger.Ledger
	factory *memledger.Factory
	writer  *recordingWriter
	prov    *Provisioner
}

func newFixture() *fixture {
	l := memledger.NewLedger(testLogger())
	f := l.Factory(deployer)
	w := &recordingWriter{}
	return &fixture{ledger: l, factory: f, writer: w, prov: NewProvisioner(testLogger(), f, w)}
}

func (fx *fixture) token(t *testing.T, m *interfaces.Manifest) interfaces.Token {
	t.Helper()
	c, err := fx.factory.At(context.Background(), interfaces.KindToken, m.GoodDollar)
	require.NoError(t, err)
	tok, err := interfaces.AsToken(c)
	require.NoError(t, err)
	return tok
}

func TestProvisionTestNetwork(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	founders := []common.Address{deployer, founder2}
	dctx := environment.NewDeploymentContext("test", big.NewInt(1337), deployer)

	m, err := fx.prov.Provision(ctx, dctx, testConfig(2), founders)
	require.NoError(t, err)
	require.Len(t, fx.writer.manifests, 1)
	assert.Same(t, m, fx.writer.manifests[0])

	for name, addr := range map[string]common.Address{
		"Identity":        m.Identity,
		"FeeFormula":      m.FeeFormula,
		"Avatar":          m.Avatar,
		"Controller":      m.Controller,
		"GoodDollar":      m.GoodDollar,
		"Reputation":      m.Reputation,
		"AdminWallet":     m.AdminWallet,
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
	assert.Equal(t, "test", m.Network)
	assert.Equal(t, uint64(1337), m.NetworkID)

	tok := fx.token(t, m)
	c, err := fx.factory.At(ctx, interfaces.KindIdentity, m.Identity)
	require.NoError(t, err)
	identity, err := interfaces.AsIdentity(c)
	require.NoError(t, err)

	for _, f := range founders {
		bal, err := tok.BalanceOf(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, int64(100*100), bal.Int64(), f.Hex())

		ok, err := identity.IsWhitelisted(ctx, f)
		require.NoError(t, err)
		assert.True(t, ok, f.Hex())
	}
	for _, addr := range []common.Address{m.Avatar, m.Controller, m.Identity, m.AdminWallet} {
		assert.True(t, fx.ledger.IsKnownContract(m.Identity, addr), addr.Hex())
	}

	assert.Equal(t, m.Avatar, fx.ledger.Owner(m.Identity))
	assert.Equal(t, m.Avatar, fx.ledger.Owner(m.FeeFormula))
	assert.Equal(t, m.Avatar, fx.ledger.AvatarOf(m.Identity))
	assert.Equal(t, m.Avatar, fx.ledger.AvatarOf(m.FeeFormula))
	assert.True(t, fx.ledger.IsIdentityAdmin(m.Identity, m.Avatar))
	assert.True(t, fx.ledger.IsIdentityAdmin(m.Identity, m.AdminWallet))
	assert.True(t, fx.ledger.IsPauser(m.Identity, m.Avatar))
	assert.True(t, fx.ledger.IsMinter(m.GoodDollar, deployer), "minter is kept outside release networks")

	for _, scheme := range []common.Address{m.SchemeRegistrar, m.UpgradeScheme, m.Identity, m.FeeFormula} {
		reg, ok := fx.ledger.Scheme(m.Controller, scheme)
		require.True(t, ok, scheme.Hex())
		assert.Equal(t, interfaces.FullPermissions, reg.Permissions)
	}
	reg, _ := fx.ledger.Scheme(m.Controller, m.Identity)
	assert.True(t, reg.ParamsHash.IsNull())
	reg, _ = fx.ledger.Scheme(m.Controller, m.SchemeRegistrar)
	assert.True(t, fx.ledger.HasParameters(m.SchemeRegistrar, reg.ParamsHash))
	reg, _ = fx.ledger.Scheme(m.Controller, m.UpgradeScheme)
	assert.True(t, fx.ledger.HasParameters(m.UpgradeScheme, reg.ParamsHash))
}

func TestProvisionProduction(t *testing.T) {
	for _, network := range []string{"production-mainnet", "mainnet", "production"} {
		t.Run(network, func(t *testing.T) {
			fx := newFixture()
			ctx := context.Background()
			founders := []common.Address{deployer, founder2}
			dctx := environment.NewDeploymentContext(network, big.NewInt(1), deployer)

			m, err := fx.prov.Provision(ctx, dctx, testConfig(2), founders)
			require.NoError(t, err)

			assert.Equal(t, interfaces.NullAddress, m.AdminWallet)
			assert.Equal(t, 0, fx.ledger.DeployCount(interfaces.KindAdminWallet))

			tok := fx.token(t, m)
			for _, f := range founders {
				bal, err := tok.BalanceOf(ctx, f)
				require.NoError(t, err)
				assert.Zero(t, bal.Sign(), "founders are not minted to on production")
			}

			assert.False(t, fx.ledger.IsMinter(m.GoodDollar, deployer))
			assert.ErrorIs(t, tok.Mint(ctx, deployer, big.NewInt(1)), memledger.ErrReverted)

			// Known incompleteness: founders other than the deployer keep minting rights.
			assert.True(t, fx.ledger.IsMinter(m.GoodDollar, founder2))
		})
	}
}

func TestProvisionStaging(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	dctx := environment.NewDeploymentContext("staging", big.NewInt(42), deployer)

	m, err := fx.prov.Provision(ctx, dctx, testConfig(1), []common.Address{founder2})
	require.NoError(t, err)

	assert.NotEqual(t, interfaces.NullAddress, m.AdminWallet)
	bal, err := fx.token(t, m).BalanceOf(ctx, founder2)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
	assert.True(t, fx.ledger.IsMinter(m.GoodDollar, deployer))
}

func TestProvisionZeroTokenAmountSkipsMint(t *testing.T) {
	fx := newFixture()
	cfg := testConfig(1)
	cfg.InitialTokenAmount = new(big.Int)

	var statuses []StepStatus
	fx.prov.OnStep(func(step Step, status StepStatus) {
		if step == StepMintFounders {
			statuses = append(statuses, status)
		}
	})

	m, err := fx.prov.Provision(context.Background(), environment.NewDeploymentContext("test", big.NewInt(1337), deployer), cfg, []common.Address{founder2})
	require.NoError(t, err)
	assert.Equal(t, []StepStatus{StatusSkipped}, statuses)
	bal, err := fx.token(t, m).BalanceOf(context.Background(), founder2)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
}

func TestProvisionEmptyFounders(t *testing.T) {
	fx := newFixture()
	m, err := fx.prov.Provision(context.Background(), environment.NewDeploymentContext("develop", big.NewInt(1337), deployer), testConfig(0), nil)
	require.NoError(t, err)
	assert.NotEqual(t, interfaces.NullAddress, m.Avatar)
	assert.Equal(t, 0, fx.ledger.WhitelistSize(m.Identity))
}

func TestProvisionPreconditions(t *testing.T) {
	dctx := environment.NewDeploymentContext("test", big.NewInt(1337), deployer)
	tests := []struct {
		name     string
		dctx     interfaces.DeploymentContext
		cfg      *interfaces.EffectiveConfig
		founders []common.Address
	}{
		{"reputation length mismatch", dctx, testConfig(1), []common.Address{deployer, founder2}},
		{"duplicate founder", dctx, testConfig(2), []common.Address{founder2, founder2}},
		{"null founder", dctx, testConfig(1), []common.Address{{}}},
		{"nil config", dctx, nil, nil},
		{"missing cap", dctx, func() *interfaces.EffectiveConfig { c := testConfig(0); c.Cap = nil; return c }(), nil},
		{"empty network", interfaces.DeploymentContext{}, testConfig(0), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			_, err := fx.prov.Provision(context.Background(), tt.dctx, tt.cfg, tt.founders)
			assert.ErrorIs(t, err, ErrPrecondition)
			assert.Equal(t, 0, fx.ledger.TotalDeploys())
			assert.Empty(t, fx.ledger.Calls())
			assert.Empty(t, fx.writer.manifests)
		})
	}
}

func TestProvisionFailureWritesNoManifest(t *testing.T) {
	boom := errors.New("boom")
	for _, method := range []string{
		"deploy FeeFormula",
		"DaoCreatorGoodDollar.forgeOrg",
		"deploy AdminWallet",
		"GoodDollar.mint",
		"Identity.addWhitelisted",
		"DaoCreatorGoodDollar.setSchemes",
	} {
		t.Run(method, func(t *testing.T) {
			fx := newFixture()
			fx.ledger.FailOn(method, boom)

			_, err := fx.prov.Provision(context.Background(),
				environment.NewDeploymentContext("test", big.NewInt(1337), deployer),
				testConfig(2), []common.Address{deployer, founder2})
			assert.ErrorIs(t, err, boom)
			assert.Empty(t, fx.writer.manifests)
		})
	}
}

func TestProvisionWriterError(t *testing.T) {
	fx := newFixture()
	fx.writer.err = errors.New("disk full")
	_, err := fx.prov.Provision(context.Background(),
		environment.NewDeploymentContext("test", big.NewInt(1337), deployer), testConfig(0), nil)
	assert.ErrorContains(t, err, "step write-manifest")
	assert.ErrorContains(t, err, "disk full")
}

func TestWhitelistIsIdempotent(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	founders := []common.Address{deployer, founder2}
	dctx := environment.NewDeploymentContext("test", big.NewInt(1337), deployer)

	m, err := fx.prov.Provision(ctx, dctx, testConfig(2), founders)
	require.NoError(t, err)
	before := len(fx.ledger.Calls())

	c, err := fx.factory.At(ctx, interfaces.KindIdentity, m.Identity)
	require.NoError(t, err)
	identity, err := interfaces.AsIdentity(c)
	require.NoError(t, err)
	avatar, err := fx.factory.At(ctx, interfaces.KindAvatar, m.Avatar)
	require.NoError(t, err)
	controller, err := fx.factory.At(ctx, interfaces.KindController, m.Controller)
	require.NoError(t, err)

	r := &run{
		p:          fx.prov,
		log:        testLogger(),
		dctx:       dctx,
		founders:   founders,
		identity:   identity,
		avatar:     avatar.(interfaces.Avatar),
		controller: controller,
	}
	require.NoError(t, r.whitelist(ctx))
	assert.Equal(t, 2, fx.ledger.WhitelistSize(m.Identity))

	// Only the contract registrations were sent again.
	for _, call := range fx.ledger.Calls()[before:] {
		assert.Equal(t, "Identity.addContract", call)
	}
}

// tamperedFactory reports a wrong voting parameter hash.
type tamperedFactory struct {
	*memledger.Factory
}

type tamperedVotingMachine struct {
	interfaces.VotingMachine
}

func (tamperedVotingMachine) GetParametersHash(context.Context, *big.Int, common.Address) (interfaces.ParameterHash, error) {
	return interfaces.ParameterHash{0xde, 0xad}, nil
}

func (f tamperedFactory) Deploy(ctx context.Context, kind interfaces.ComponentKind, args ...any) (interfaces.Component, error) {
	c, err := f.Factory.Deploy(ctx, kind, args...)
	if err != nil || kind != interfaces.KindVotingMachine {
		return c, err
	}
	return tamperedVotingMachine{c.(interfaces.VotingMachine)}, nil
}

func TestProvisionParameterHashMismatch(t *testing.T) {
	l := memledger.NewLedger(testLogger())
	w := &recordingWriter{}
	p := NewProvisioner(testLogger(), tamperedFactory{l.Factory(deployer)}, w)

	_, err := p.Provision(context.Background(),
		environment.NewDeploymentContext("test", big.NewInt(1337), deployer), testConfig(0), nil)
	assert.ErrorIs(t, err, ErrParameterHashMismatch)
	assert.Empty(t, w.manifests)
	assert.NotContains(t, l.Calls(), "AbsoluteVote.setParameters")
}

// gasRecorder records gas hints seen by Deploy.
type gasRecorder struct {
	*memledger.Factory
	mu  sync.Mutex
	gas map[interfaces.ComponentKind]uint64
}

func (g *gasRecorder) Deploy(ctx context.Context, kind interfaces.ComponentKind, args ...any) (interfaces.Component, error) {
	if gas, ok := interfaces.GasLimitFromContext(ctx); ok {
		g.mu.Lock()
		g.gas[kind] = gas
		g.mu.Unlock()
	}
	return g.Factory.Deploy(ctx, kind, args...)
}

func TestProvisionMainnetGasHints(t *testing.T) {
	tests := []struct {
		network string
		want    map[interfaces.ComponentKind]uint64
	}{
		{"production-mainnet", map[interfaces.ComponentKind]uint64{
			interfaces.KindControllerCreator:   ControllerCreatorGas,
			interfaces.KindOrganizationCreator: CreatorGas,
		}},
		{"test", map[interfaces.ComponentKind]uint64{}},
	}
	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			l := memledger.NewLedger(testLogger())
			rec := &gasRecorder{Factory: l.Factory(deployer), gas: map[interfaces.ComponentKind]uint64{}}
			p := NewProvisioner(testLogger(), rec, &recordingWriter{})

			_, err := p.Provision(context.Background(),
				environment.NewDeploymentContext(tt.network, big.NewInt(1), deployer), testConfig(1), []common.Address{deployer})
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.gas)
		})
	}
}

func TestProgressCallback(t *testing.T) {
	fx := newFixture()
	seen := map[Step][]StepStatus{}
	fx.prov.OnStep(func(step Step, status StepStatus) {
		seen[step] = append(seen[step], status)
	})

	_, err := fx.prov.Provision(context.Background(),
		environment.NewDeploymentContext("production-mainnet", big.NewInt(1), deployer), testConfig(1), []common.Address{deployer})
	require.NoError(t, err)

	assert.Equal(t, []StepStatus{StatusSkipped}, seen[StepDeployAdminWallet])
	assert.Equal(t, []StepStatus{StatusSkipped}, seen[StepMintFounders])
	assert.Equal(t, []StepStatus{StatusStarted, StatusCompleted}, seen[StepRenounceMinter])
	assert.Equal(t, []StepStatus{StatusStarted, StatusCompleted}, seen[StepForgeOrg])
	assert.Equal(t, []StepStatus{StatusStarted, StatusCompleted}, seen[StepWriteManifest])
}

// nullAvatarCreator forges the organization but reads its avatar back as null.
type nullAvatarCreator struct {
	interfaces.OrganizationCreator
}

func (c nullAvatarCreator) Avatar(context.Context) (common.Address, error) {
	return interfaces.NullAddress, nil
}

type nullAvatarFactory struct {
	*memledger.Factory
}

func (f nullAvatarFactory) Deploy(ctx context.Context, kind interfaces.ComponentKind, args ...any) (interfaces.Component, error) {
	c, err := f.Factory.Deploy(ctx, kind, args...)
	if err != nil || kind != interfaces.KindOrganizationCreator {
		return c, err
	}
	creator, err := interfaces.AsOrganizationCreator(c)
	if err != nil {
		return nil, err
	}
	return nullAvatarCreator{creator}, nil
}

func TestProvisionUnresolvedAvatar(t *testing.T) {
	fx := newFixture()
	var steps []Step
	prov := NewProvisioner(testLogger(), nullAvatarFactory{fx.factory}, fx.writer).
		OnStep(func(step Step, status StepStatus) {
			if status == StatusStarted {
				steps = append(steps, step)
			}
		})

	m, err := prov.Provision(context.Background(),
		environment.NewDeploymentContext("test", big.NewInt(1337), deployer),
		testConfig(2), []common.Address{deployer, founder2})
	require.ErrorIs(t, err, ErrUnresolvedAddress)
	assert.Contains(t, err.Error(), string(StepResolveOrganization))
	assert.Nil(t, m)
	assert.Empty(t, fx.writer.manifests)

	// Nothing past the join point ran.
	assert.NotContains(t, steps, StepSetAvatar)
	assert.NotContains(t, steps, StepWhitelist)
	assert.Zero(t, fx.ledger.DeployCount(interfaces.KindVotingMachine))
}

func TestProvisionCallOrder(t *testing.T) {
	for _, network := range []string{"test", "staging", "mainnet"} {
		t.Run(network, func(t *testing.T) {
			fx := newFixture()
			_, err := fx.prov.Provision(context.Background(),
				environment.NewDeploymentContext(network, big.NewInt(1337), deployer),
				testConfig(2), []common.Address{deployer, founder2})
			require.NoError(t, err)

			calls := fx.ledger.Calls()
			indexOf := func(method string) int {
				for i, c := range calls {
					if c == method {
						return i
					}
				}
				return -1
			}

			setSchemes := indexOf("DaoCreatorGoodDollar.setSchemes")
			forge := indexOf("DaoCreatorGoodDollar.forgeOrg")
			require.NotEqual(t, -1, setSchemes)
			require.NotEqual(t, -1, forge)
			assert.Less(t, forge, setSchemes)

			var params, registrations int
			for i, c := range calls {
				switch {
				case strings.HasSuffix(c, ".setParameters"):
					params++
					assert.Less(t, i, setSchemes, "%s after setSchemes", c)
				case c == "Identity.addWhitelisted", c == "Identity.addContract":
					registrations++
					assert.Greater(t, i, setSchemes, "%s before setSchemes", c)
				case c == "Identity.setAvatar", c == "FeeFormula.setAvatar":
					assert.Greater(t, i, forge, "%s before forgeOrg", c)
				}
			}
			assert.Equal(t, 3, params)
			assert.NotZero(t, registrations)
		})
	}
}
