package environment

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSettingsYAML = `
default:
  cap: "22000000000"
  reputation: "1"
  avatarTokens: "100"
  txFeePercentage: "1"
  walletToppingAmount: "1"
  walletToppingUnits: milliether
  walletToppingTimes: 3
  identityAuthenticationPeriod: 14
production:
  avatarTokens: "0"
  walletToppingUnits: gwei
  founders:
    - "0x1111111111111111111111111111111111111111"
    - "0x2222222222222222222222222222222222222222"
    - "0x3333333333333333333333333333333333333333"
  foundersCount: 2
`

const testSettingsJSON = `{
  "default": {"cap": "1000", "txFeePercentage": "2", "identityAuthenticationPeriod": "7"},
  "staging": {"cap": "5.5", "founderReputation": ["3", "4"]}
}`

func TestClassify(t *testing.T) {
	tests := []struct {
		network  string
		expected interfaces.EnvironmentClass
	}{
		{"test", interfaces.ClassTest},
		{"develop", interfaces.ClassTest},
		{"coverage", interfaces.ClassTest},
		{"soliditycoverage", interfaces.ClassTest},
		{"production-mainnet", interfaces.ClassProduction},
		{"production", interfaces.ClassProduction},
		{"staging-mainnet", interfaces.ClassProduction},
		{"staging", interfaces.ClassStaging},
		{"kovan", interfaces.ClassStaging},
		{"test-kovan", interfaces.ClassStaging},
	}
	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.network))
		})
	}
}

func TestDeploymentContextFlags(t *testing.T) {
	dctx := NewDeploymentContext("production-mainnet", big.NewInt(1), common.Address{})
	assert.True(t, dctx.ReleaseTrack)
	assert.True(t, dctx.MainnetGas)

	dctx = NewDeploymentContext("mainnet", big.NewInt(1), common.Address{})
	assert.Equal(t, interfaces.ClassProduction, dctx.Class)
	assert.True(t, dctx.ReleaseTrack)

	dctx = NewDeploymentContext("production", big.NewInt(1), common.Address{})
	assert.True(t, dctx.ReleaseTrack)
	assert.False(t, dctx.MainnetGas)

	dctx = NewDeploymentContext("test", big.NewInt(1337), common.Address{})
	assert.False(t, dctx.ReleaseTrack)
	assert.False(t, dctx.MainnetGas)
}

func TestNetworkEnv(t *testing.T) {
	assert.Equal(t, "production", NetworkEnv("production-mainnet"))
	assert.Equal(t, "", NetworkEnv("mainnet"))
	assert.Equal(t, "staging", NetworkEnv("staging"))
}

func TestResolveMergesDefault(t *testing.T) {
	settings, err := ParseSettings([]byte(testSettingsYAML))
	require.NoError(t, err)

	cfg, err := Resolve(settings, "test", 2)
	require.NoError(t, err)
	assert.Equal(t, "GoodDollar", cfg.TokenName)
	assert.Equal(t, "G$", cfg.TokenSymbol)
	assert.Equal(t, "2200000000000", cfg.Cap.String())
	assert.Equal(t, "10000", cfg.InitialTokenAmount.String())
	assert.Equal(t, int64(1), cfg.FeePercentage.Int64())
	assert.Equal(t, "1000000000000000", cfg.ToppingAmount.String())
	assert.Equal(t, int64(3), cfg.ToppingTimes.Int64())
	assert.Equal(t, int64(14), cfg.IdentityAuthPeriod.Int64())
	require.Len(t, cfg.InitialReputation, 2)
	assert.Equal(t, int64(1), cfg.InitialReputation[1].Int64())

	cfg, err = Resolve(settings, "production-mainnet", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.InitialTokenAmount.Int64())
	assert.Equal(t, "1000000000", cfg.ToppingAmount.String())
	assert.Equal(t, "2200000000000", cfg.Cap.String())
}

func TestResolveJSONSettings(t *testing.T) {
	settings, err := ParseSettings([]byte(testSettingsJSON))
	require.NoError(t, err)

	cfg, err := Resolve(settings, "staging", 5)
	require.NoError(t, err)
	assert.Equal(t, "550", cfg.Cap.String())
	// Explicit per-founder reputation is kept as configured; length is checked by the provisioner.
	require.Len(t, cfg.InitialReputation, 2)
	assert.Equal(t, int64(4), cfg.InitialReputation[1].Int64())
	assert.Equal(t, int64(0), cfg.ToppingAmount.Int64())
}

func TestResolveRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings string
	}{
		{"missing cap", `default: {txFeePercentage: "1", identityAuthenticationPeriod: "1"}`},
		{"bad unit", `default: {cap: "1", txFeePercentage: "1", identityAuthenticationPeriod: "1", walletToppingAmount: "1", walletToppingUnits: "parsec"}`},
		{"fractional percent", `default: {cap: "1", txFeePercentage: "1.5", identityAuthenticationPeriod: "1"}`},
		{"sub-percent ratio", `default: {cap: "1", txFeePercentage: "0.005", identityAuthenticationPeriod: "1"}`},
		{"negative cap", `default: {cap: "-1", txFeePercentage: "1", identityAuthenticationPeriod: "1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings, err := ParseSettings([]byte(tt.settings))
			require.NoError(t, err)
			_, err = Resolve(settings, "test", 1)
			assert.True(t, errors.Is(err, ErrInvalidSettings), "got %v", err)
		})
	}
}

func TestParseFeePercentage(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0.01", 1},
		{"0.5", 50},
		{".03", 3},
		{"1", 1},
		{"3", 3},
		{"2.0", 2},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseFeePercentage(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Int64())
		})
	}

	for _, bad := range []string{"1.5", "0.001", "-1", "", "abc"} {
		_, err := ParseFeePercentage(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestResolveFractionalFee(t *testing.T) {
	settings, err := ParseSettings([]byte(`default: {cap: "1000", reputation: "100", avatarTokens: "100", txFeePercentage: 0.01, identityAuthenticationPeriod: "14"}`))
	require.NoError(t, err)

	cfg, err := Resolve(settings, "test", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.FeePercentage.Int64())
	assert.Equal(t, "100000", cfg.Cap.String())
	assert.Equal(t, "10000", cfg.InitialTokenAmount.String())
}

func TestUnits(t *testing.T) {
	v, err := ToGD("1.5")
	require.NoError(t, err)
	assert.Equal(t, int64(150), v.Int64())

	_, err = ToGD("1.555")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	v, err = ToWei("2", "gwei")
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000_000), v.Int64())

	v, err = ToWei("0.1", "")
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", v.String())

	v, err = ToWei("7", "wei")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int64())
}

type staticAccounts []common.Address

func (s staticAccounts) Accounts(context.Context) ([]common.Address, error) { return s, nil }

func TestResolveFounders(t *testing.T) {
	settings, err := ParseSettings([]byte(testSettingsYAML))
	require.NoError(t, err)
	node := staticAccounts{common.HexToAddress("0xaa"), common.HexToAddress("0xbb")}

	founders, err := ResolveFounders(context.Background(), settings, "production-mainnet", node)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}, founders)

	founders, err = ResolveFounders(context.Background(), settings, "test", node)
	require.NoError(t, err)
	assert.Equal(t, []common.Address(node), founders)

	founders, err = ResolveFounders(context.Background(), settings, "test", nil)
	require.NoError(t, err)
	assert.Empty(t, founders)
}

type ethService struct{ accounts []common.Address }

func (s *ethService) Accounts() []common.Address { return s.accounts }

func TestRPCAccounts(t *testing.T) {
	server := rpc.NewServer()
	defer server.Stop()
	want := []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")}
	require.NoError(t, server.RegisterName("eth", &ethService{accounts: want}))

	client := rpc.DialInProc(server)
	defer client.Close()

	got, err := NewRPCAccounts(client).Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
