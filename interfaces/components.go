package interfaces

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrKindMismatch is returned when a handle is used as a kind it is not.
	ErrKindMismatch = errors.New("component kind mismatch")

	// ErrNilComponent is returned when a nil handle is converted to a capability.
	ErrNilComponent = errors.New("nil component handle")

	// ErrUnknownKind is returned by factories asked for a kind they cannot build.
	ErrUnknownKind = errors.New("unknown component kind")
)

// ComponentKind tags every handle returned by a ComponentFactory.
type ComponentKind int

const (
	KindIdentity ComponentKind = iota + 1
	KindFeeFormula
	KindControllerCreator
	KindFounderSeeder
	KindOrganizationCreator
	KindAvatar
	KindController
	KindToken
	KindReputation
	KindVotingMachine
	KindUpgradeScheme
	KindSchemeRegistrar
	KindAdminWallet
)

// AllKinds lists every kind in deployment order.
var AllKinds = []ComponentKind{
	KindIdentity,
	KindFeeFormula,
	KindControllerCreator,
	KindFounderSeeder,
	KindOrganizationCreator,
	KindAvatar,
	KindController,
	KindToken,
	KindReputation,
	KindVotingMachine,
	KindUpgradeScheme,
	KindSchemeRegistrar,
	KindAdminWallet,
}

// String returns the contract name of the kind, which is also its artifact name.
func (k ComponentKind) String() string {
	switch k {
	case KindIdentity:
		return "Identity"
	case KindFeeFormula:
		return "FeeFormula"
	case KindControllerCreator:
		return "ControllerCreatorGoodDollar"
	case KindFounderSeeder:
		return "AddFoundersGoodDollar"
	case KindOrganizationCreator:
		return "DaoCreatorGoodDollar"
	case KindAvatar:
		return "Avatar"
	case KindController:
		return "Controller"
	case KindToken:
		return "GoodDollar"
	case KindReputation:
		return "Reputation"
	case KindVotingMachine:
		return "AbsoluteVote"
	case KindUpgradeScheme:
		return "UpgradeScheme"
	case KindSchemeRegistrar:
		return "SchemeRegistrar"
	case KindAdminWallet:
		return "AdminWallet"
	default:
		return fmt.Sprintf("ComponentKind(%d)", int(k))
	}
}

// Component is an opaque handle to a deployed contract.
type Component interface {
	Kind() ComponentKind
	Address() common.Address
}

// Identity is the identity registry: whitelist, admins, pausers and known contracts.
type Identity interface {
	Component
	SetAuthenticationPeriod(ctx context.Context, period *big.Int) error
	SetAvatar(ctx context.Context, avatar common.Address) error
	AddIdentityAdmin(ctx context.Context, account common.Address) error
	AddPauser(ctx context.Context, account common.Address) error
	IsWhitelisted(ctx context.Context, account common.Address) (bool, error)
	AddWhitelisted(ctx context.Context, account common.Address) error
	AddContract(ctx context.Context, contract common.Address) error
	TransferOwnership(ctx context.Context, newOwner common.Address) error
}

// FeeFormula is the transaction fee policy of the token.
type FeeFormula interface {
	Component
	SetAvatar(ctx context.Context, avatar common.Address) error
	TransferOwnership(ctx context.Context, newOwner common.Address) error
}

// ControllerCreator deploys controllers for newly forged organizations.
type ControllerCreator interface {
	Component
}

// FounderSeeder distributes initial tokens and reputation to founders.
type FounderSeeder interface {
	Component
}

// OrgSpec holds the forgeOrg arguments. Founders and ReputationAmounts are index aligned;
// FoundersTokenAmount is a single amount the organization mints at creation.
type OrgSpec struct {
	TokenName           string
	TokenSymbol         string
	Cap                 *big.Int
	FeeFormula          common.Address
	Identity            common.Address
	Founders            []common.Address
	FoundersTokenAmount *big.Int
	ReputationAmounts   []*big.Int
}

// OrganizationCreator forges the organization root and registers its schemes.
type OrganizationCreator interface {
	Component
	ForgeOrg(ctx context.Context, spec OrgSpec) error
	SetSchemes(ctx context.Context, avatar common.Address, schemes []SchemeRegistration, metadata string) error
	// Avatar returns the organization root forged by this creator.
	Avatar(ctx context.Context) (common.Address, error)
}

// Avatar is the organization root.
type Avatar interface {
	Component
	Owner(ctx context.Context) (common.Address, error)
	NativeToken(ctx context.Context) (common.Address, error)
	NativeReputation(ctx context.Context) (common.Address, error)
}

// Controller owns the avatar; the provisioner only records its address.
type Controller interface {
	Component
}

// Token is the organization's governed token.
type Token interface {
	Component
	Mint(ctx context.Context, to common.Address, amount *big.Int) error
	RenounceMinter(ctx context.Context) error
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}

// Reputation is the organization's native reputation; recorded only.
type Reputation interface {
	Component
}

// VotingMachine is the absolute vote machine.
type VotingMachine interface {
	Component
	GetParametersHash(ctx context.Context, precedence *big.Int, voteOnBehalf common.Address) (ParameterHash, error)
	SetParameters(ctx context.Context, precedence *big.Int, voteOnBehalf common.Address) error
}

// UpgradeScheme proposes controller upgrades through the voting machine.
type UpgradeScheme interface {
	Component
	GetParametersHash(ctx context.Context, voteParams ParameterHash, votingMachine common.Address) (ParameterHash, error)
	SetParameters(ctx context.Context, voteParams ParameterHash, votingMachine common.Address) error
}

// SchemeRegistrar proposes scheme registration and removal through the voting machine.
type SchemeRegistrar interface {
	Component
	GetParametersHash(ctx context.Context, voteRegister, voteRemove ParameterHash, votingMachine common.Address) (ParameterHash, error)
	SetParameters(ctx context.Context, voteRegister, voteRemove ParameterHash, votingMachine common.Address) error
}

// AdminWallet tops up whitelisted users; recorded and granted identity admin.
type AdminWallet interface {
	Component
}

// ComponentFactory deploys components and attaches to deployed ones.
//
// Constructor arguments per kind:
//   - KindFeeFormula: feePercentage *big.Int
//   - KindFounderSeeder: controllerCreator common.Address
//   - KindOrganizationCreator: founderSeeder common.Address
//   - KindAdminWallet: admins []common.Address, toppingAmount *big.Int, toppingTimes *big.Int, identity common.Address
//   - every other deployable kind takes no arguments
type ComponentFactory interface {
	Deploy(ctx context.Context, kind ComponentKind, args ...any) (Component, error)
	At(ctx context.Context, kind ComponentKind, address common.Address) (Component, error)
}

func as[T Component](c Component, kind ComponentKind) (T, error) {
	var zero T
	if c == nil {
		return zero, ErrNilComponent
	}
	if c.Kind() != kind {
		return zero, fmt.Errorf("%w: want %s, got %s", ErrKindMismatch, kind, c.Kind())
	}
	typed, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T does not implement %s", ErrKindMismatch, c, kind)
	}
	return typed, nil
}

func AsIdentity(c Component) (Identity, error)     { return as[Identity](c, KindIdentity) }
func AsFeeFormula(c Component) (FeeFormula, error) { return as[FeeFormula](c, KindFeeFormula) }
func AsControllerCreator(c Component) (ControllerCreator, error) {
	return as[ControllerCreator](c, KindControllerCreator)
}
func AsFounderSeeder(c Component) (FounderSeeder, error) {
	return as[FounderSeeder](c, KindFounderSeeder)
}
func AsOrganizationCreator(c Component) (OrganizationCreator, error) {
	return as[OrganizationCreator](c, KindOrganizationCreator)
}
func AsAvatar(c Component) (Avatar, error)         { return as[Avatar](c, KindAvatar) }
func AsController(c Component) (Controller, error) { return as[Controller](c, KindController) }
func AsToken(c Component) (Token, error)           { return as[Token](c, KindToken) }
func AsReputation(c Component) (Reputation, error) { return as[Reputation](c, KindReputation) }
func AsVotingMachine(c Component) (VotingMachine, error) {
	return as[VotingMachine](c, KindVotingMachine)
}
func AsUpgradeScheme(c Component) (UpgradeScheme, error) {
	return as[UpgradeScheme](c, KindUpgradeScheme)
}
func AsSchemeRegistrar(c Component) (SchemeRegistrar, error) {
	return as[SchemeRegistrar](c, KindSchemeRegistrar)
}
func AsAdminWallet(c Component) (AdminWallet, error) { return as[AdminWallet](c, KindAdminWallet) }

type gasLimitKey struct{}

// WithGasLimit attaches a gas limit hint for the transactions issued with ctx.
// Factories that do not pay for gas ignore it.
func WithGasLimit(ctx context.Context, gas uint64) context.Context {
	return context.WithValue(ctx, gasLimitKey{}, gas)
}

// GasLimitFromContext returns the hint set by WithGasLimit.
func GasLimitFromContext(ctx context.Context) (uint64, bool) {
	gas, ok := ctx.Value(gasLimitKey{}).(uint64)
	return gas, ok && gas > 0
}
