// Package provisioner deploys and wires an organization through a
// ComponentFactory and records the result in a manifest.
//
// A run deploys the identity registry, fee formula and creator chain
// concurrently, forges the organization once all of them are in place, wires
// roles and ownership according to the environment class, sets up the voting
// machine and schemes and finally whitelists founders and known contracts.
// Independent calls of a stage run as one group that succeeds only if every
// member succeeds. Any error aborts the run and no manifest is written.
package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
	"github.com/ruteri/dao-provisioning-backend/paramhash"
)

// Provisioner runs organization provisioning against a factory.
type Provisioner struct {
	factory  interfaces.ComponentFactory
	writer   interfaces.ManifestWriter
	log      *slog.Logger
	progress ProgressCallback
}

func NewProvisioner(log *slog.Logger, factory interfaces.ComponentFactory, writer interfaces.ManifestWriter) *Provisioner {
	if log == nil {
		log = slog.Default()
	}
	return &Provisioner{
		factory: factory,
		writer:  writer,
		log:     log,
	}
}

// OnStep registers a progress callback.
func (p *Provisioner) OnStep(cb ProgressCallback) *Provisioner {
	p.progress = cb
	return p
}

// run carries the handles resolved so far.
type run struct {
	p        *Provisioner
	log      *slog.Logger
	dctx     interfaces.DeploymentContext
	cfg      *interfaces.EffectiveConfig
	founders []common.Address

	progressMu sync.Mutex

	identity          interfaces.Identity
	feeFormula        interfaces.FeeFormula
	controllerCreator interfaces.ControllerCreator
	founderSeeder     interfaces.FounderSeeder
	creator           interfaces.OrganizationCreator
	avatar            interfaces.Avatar
	controller        interfaces.Controller
	token             interfaces.Token
	reputation        interfaces.Reputation
	adminWallet       interfaces.AdminWallet

	votingMachine   interfaces.VotingMachine
	upgradeScheme   interfaces.UpgradeScheme
	schemeRegistrar interfaces.SchemeRegistrar

	voteHash      interfaces.ParameterHash
	upgradeHash   interfaces.ParameterHash
	registrarHash interfaces.ParameterHash
}

// Provision deploys and wires a complete organization and writes its manifest.
// founders may be empty.
func (p *Provisioner) Provision(ctx context.Context, dctx interfaces.DeploymentContext, cfg *interfaces.EffectiveConfig, founders []common.Address) (*interfaces.Manifest, error) {
	r := &run{
		p:        p,
		dctx:     dctx,
		cfg:      cfg,
		founders: founders,
		log: p.log.With(
			slog.String("run", uuid.NewString()),
			slog.String("network", dctx.Network),
			slog.String("class", dctx.Class.String()),
		),
	}

	start := time.Now()
	if err := r.checkPreconditions(); err != nil {
		r.report(StepPreconditions, StatusFailed)
		return nil, err
	}
	r.log.Info("provisioning organization", slog.Int("founders", len(founders)))

	stages := []func(context.Context) error{
		r.deployBase,
		r.forgeOrg,
		r.resolveOrganization,
		r.setAvatar,
		r.mintFounders,
		r.grantIdentityRoles,
		r.transferOwnership,
		r.renounceMinter,
		r.deployGovernance,
		r.voteParameters,
		r.setParameters,
		r.schemeParameters,
		r.setSchemes,
		r.whitelist,
	}
	for _, stage := range stages {
		if err := stage(ctx); err != nil {
			r.log.Error("provisioning failed", "err", err)
			return nil, err
		}
	}

	manifest := r.manifest()
	if err := r.step(StepWriteManifest, func() error {
		return p.writer.WriteManifest(ctx, manifest)
	}); err != nil {
		r.log.Error("provisioning failed", "err", err)
		return nil, err
	}

	r.log.Info("organization provisioned",
		slog.String("avatar", manifest.Avatar.Hex()),
		slog.Duration("duration", time.Since(start)))
	return manifest, nil
}

func (r *run) checkPreconditions() error {
	if r.p.factory == nil || r.p.writer == nil {
		return fmt.Errorf("%w: factory and manifest writer are required", ErrPrecondition)
	}
	if r.dctx.Network == "" {
		return fmt.Errorf("%w: network is empty", ErrPrecondition)
	}
	if err := r.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	if len(r.cfg.InitialReputation) != len(r.founders) {
		return fmt.Errorf("%w: %d founders but %d initial reputation amounts",
			ErrPrecondition, len(r.founders), len(r.cfg.InitialReputation))
	}
	seen := make(map[common.Address]struct{}, len(r.founders))
	for i, f := range r.founders {
		if f == interfaces.NullAddress {
			return fmt.Errorf("%w: founder %d is the null address", ErrPrecondition, i)
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("%w: founder %s listed twice", ErrPrecondition, f.Hex())
		}
		seen[f] = struct{}{}
	}
	return nil
}

func (r *run) report(step Step, status StepStatus) {
	if r.p.progress == nil {
		return
	}
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.p.progress(step, status)
}

// step runs fn as a named step, wrapping its error with the step name.
func (r *run) step(name Step, fn func() error) error {
	r.report(name, StatusStarted)
	r.log.Info("step", slog.String("step", string(name)))
	if err := fn(); err != nil {
		r.report(name, StatusFailed)
		return fmt.Errorf("step %s: %w", name, err)
	}
	r.report(name, StatusCompleted)
	return nil
}

// stepGroup runs fn, which fills g, and joins g.
func (r *run) stepGroup(name Step, fn func(g *group)) error {
	r.report(name, StatusStarted)
	r.log.Info("step", slog.String("step", string(name)))
	g := newGroup(name)
	fn(g)
	if err := g.Wait(); err != nil {
		r.report(name, StatusFailed)
		return err
	}
	r.report(name, StatusCompleted)
	return nil
}

func (r *run) skip(name Step, reason string) {
	r.log.Info("skipping step", slog.String("step", string(name)), slog.String("reason", reason))
	r.report(name, StatusSkipped)
}

func (r *run) gas(ctx context.Context, limit uint64) context.Context {
	if !r.dctx.MainnetGas {
		return ctx
	}
	return interfaces.WithGasLimit(ctx, limit)
}

func deployAs[T any](ctx context.Context, f interfaces.ComponentFactory, kind interfaces.ComponentKind, as func(interfaces.Component) (T, error), args ...any) (T, error) {
	var zero T
	c, err := f.Deploy(ctx, kind, args...)
	if err != nil {
		return zero, err
	}
	return as(c)
}

func attachAs[T any](ctx context.Context, f interfaces.ComponentFactory, kind interfaces.ComponentKind, addr common.Address, as func(interfaces.Component) (T, error)) (T, error) {
	var zero T
	if addr == interfaces.NullAddress {
		return zero, fmt.Errorf("%w: %s", ErrUnresolvedAddress, kind)
	}
	c, err := f.At(ctx, kind, addr)
	if err != nil {
		return zero, err
	}
	return as(c)
}

// deployBase deploys the identity registry, fee formula and creator chain.
// The three branches are independent and joined before the organization is forged.
func (r *run) deployBase(ctx context.Context) error {
	f := r.p.factory
	g := newGroup("")

	g.Go("identity", func() error {
		err := r.step(StepDeployIdentity, func() (err error) {
			r.identity, err = deployAs(ctx, f, interfaces.KindIdentity, interfaces.AsIdentity)
			return err
		})
		if err != nil {
			return err
		}
		return r.step(StepAuthenticationPeriod, func() error {
			return r.identity.SetAuthenticationPeriod(ctx, r.cfg.IdentityAuthPeriod)
		})
	})

	g.Go("fee formula", func() error {
		return r.step(StepDeployFeeFormula, func() (err error) {
			r.feeFormula, err = deployAs(ctx, f, interfaces.KindFeeFormula, interfaces.AsFeeFormula, r.cfg.FeePercentage)
			return err
		})
	})

	g.Go("creator", func() error {
		err := r.step(StepDeployControllerCreator, func() (err error) {
			r.controllerCreator, err = deployAs(r.gas(ctx, ControllerCreatorGas), f, interfaces.KindControllerCreator, interfaces.AsControllerCreator)
			return err
		})
		if err != nil {
			return err
		}
		err = r.step(StepDeployFounderSeeder, func() (err error) {
			r.founderSeeder, err = deployAs(ctx, f, interfaces.KindFounderSeeder, interfaces.AsFounderSeeder, r.controllerCreator.Address())
			return err
		})
		if err != nil {
			return err
		}
		return r.step(StepDeployCreator, func() (err error) {
			r.creator, err = deployAs(r.gas(ctx, CreatorGas), f, interfaces.KindOrganizationCreator, interfaces.AsOrganizationCreator, r.founderSeeder.Address())
			return err
		})
	})

	return g.Wait()
}

func (r *run) forgeOrg(ctx context.Context) error {
	return r.step(StepForgeOrg, func() error {
		for kind, addr := range map[interfaces.ComponentKind]common.Address{
			interfaces.KindIdentity:            r.identity.Address(),
			interfaces.KindFeeFormula:          r.feeFormula.Address(),
			interfaces.KindOrganizationCreator: r.creator.Address(),
		} {
			if addr == interfaces.NullAddress {
				return fmt.Errorf("%w: %s", ErrUnresolvedAddress, kind)
			}
		}
		return r.creator.ForgeOrg(r.gas(ctx, ForgeOrgGas), interfaces.OrgSpec{
			TokenName:           r.cfg.TokenName,
			TokenSymbol:         r.cfg.TokenSymbol,
			Cap:                 r.cfg.Cap,
			FeeFormula:          r.feeFormula.Address(),
			Identity:            r.identity.Address(),
			Founders:            r.founders,
			FoundersTokenAmount: r.cfg.InitialTokenAmount,
			ReputationAmounts:   r.cfg.InitialReputation,
		})
	})
}

// resolveOrganization discovers the components forgeOrg created.
func (r *run) resolveOrganization(ctx context.Context) error {
	f := r.p.factory
	return r.step(StepResolveOrganization, func() error {
		avatarAddr, err := r.creator.Avatar(ctx)
		if err != nil {
			return err
		}
		if r.avatar, err = attachAs(ctx, f, interfaces.KindAvatar, avatarAddr, interfaces.AsAvatar); err != nil {
			return err
		}

		controllerAddr, err := r.avatar.Owner(ctx)
		if err != nil {
			return err
		}
		if r.controller, err = attachAs(ctx, f, interfaces.KindController, controllerAddr, interfaces.AsController); err != nil {
			return err
		}

		tokenAddr, err := r.avatar.NativeToken(ctx)
		if err != nil {
			return err
		}
		if r.token, err = attachAs(ctx, f, interfaces.KindToken, tokenAddr, interfaces.AsToken); err != nil {
			return err
		}

		reputationAddr, err := r.avatar.NativeReputation(ctx)
		if err != nil {
			return err
		}
		r.reputation, err = attachAs(ctx, f, interfaces.KindReputation, reputationAddr, interfaces.AsReputation)
		return err
	})
}

// setAvatar deploys the admin wallet outside production and points the
// identity registry and fee formula at the avatar.
func (r *run) setAvatar(ctx context.Context) error {
	avatar := r.avatar.Address()
	if r.dctx.Class == interfaces.ClassProduction {
		r.skip(StepDeployAdminWallet, "production network")
	}
	return r.stepGroup(StepSetAvatar, func(g *group) {
		if r.dctx.Class != interfaces.ClassProduction {
			g.Go("admin wallet", func() error {
				return r.step(StepDeployAdminWallet, func() (err error) {
					r.adminWallet, err = deployAs(ctx, r.p.factory, interfaces.KindAdminWallet, interfaces.AsAdminWallet,
						[]common.Address{}, r.cfg.ToppingAmount, r.cfg.ToppingTimes, r.identity.Address())
					return err
				})
			})
		}
		g.Go("identity", func() error { return r.identity.SetAvatar(ctx, avatar) })
		g.Go("fee formula", func() error { return r.feeFormula.SetAvatar(ctx, avatar) })
	})
}

// mintFounders gives test-network founders their initial token balance.
func (r *run) mintFounders(ctx context.Context) error {
	switch {
	case r.dctx.Class != interfaces.ClassTest:
		r.skip(StepMintFounders, "not a test network")
		return nil
	case r.cfg.InitialTokenAmount.Sign() == 0:
		r.skip(StepMintFounders, "initial token amount is zero")
		return nil
	}
	return r.stepGroup(StepMintFounders, func(g *group) {
		for _, founder := range r.founders {
			g.Go(founder.Hex(), func() error {
				return r.token.Mint(ctx, founder, r.cfg.InitialTokenAmount)
			})
		}
	})
}

func (r *run) grantIdentityRoles(ctx context.Context) error {
	avatar := r.avatar.Address()
	return r.stepGroup(StepIdentityRoles, func(g *group) {
		g.Go("admin avatar", func() error { return r.identity.AddIdentityAdmin(ctx, avatar) })
		g.Go("pauser avatar", func() error { return r.identity.AddPauser(ctx, avatar) })
		if r.adminWallet != nil {
			wallet := r.adminWallet.Address()
			g.Go("admin wallet", func() error { return r.identity.AddIdentityAdmin(ctx, wallet) })
		}
	})
}

func (r *run) transferOwnership(ctx context.Context) error {
	avatar := r.avatar.Address()
	return r.stepGroup(StepTransferOwnership, func(g *group) {
		g.Go("identity", func() error { return r.identity.TransferOwnership(ctx, avatar) })
		g.Go("fee formula", func() error { return r.feeFormula.TransferOwnership(ctx, avatar) })
	})
}

// renounceMinter drops the deployer's minting right on release networks.
// Founders keep theirs.
func (r *run) renounceMinter(ctx context.Context) error {
	if !r.dctx.ReleaseTrack {
		r.skip(StepRenounceMinter, "not a release network")
		return nil
	}
	return r.step(StepRenounceMinter, func() error {
		return r.token.RenounceMinter(ctx)
	})
}

func (r *run) deployGovernance(ctx context.Context) error {
	f := r.p.factory
	return r.stepGroup(StepDeployGovernance, func(g *group) {
		g.Go("voting machine", func() (err error) {
			r.votingMachine, err = deployAs(ctx, f, interfaces.KindVotingMachine, interfaces.AsVotingMachine)
			return err
		})
		g.Go("upgrade scheme", func() (err error) {
			r.upgradeScheme, err = deployAs(ctx, f, interfaces.KindUpgradeScheme, interfaces.AsUpgradeScheme)
			return err
		})
		g.Go("scheme registrar", func() (err error) {
			r.schemeRegistrar, err = deployAs(ctx, f, interfaces.KindSchemeRegistrar, interfaces.AsSchemeRegistrar)
			return err
		})
	})
}

func (r *run) voteParameters(ctx context.Context) error {
	precedence := big.NewInt(paramhash.VotePrecedence)
	return r.step(StepVoteParameters, func() error {
		local, err := paramhash.VoteParams(precedence, interfaces.NullAddress)
		if err != nil {
			return err
		}
		reported, err := r.votingMachine.GetParametersHash(ctx, precedence, interfaces.NullAddress)
		if err != nil {
			return err
		}
		if err := checkHash("voting machine", local, reported); err != nil {
			return err
		}
		r.voteHash = reported
		return nil
	})
}

func (r *run) setParameters(ctx context.Context) error {
	vm := r.votingMachine.Address()
	return r.stepGroup(StepSetParameters, func(g *group) {
		g.Go("scheme registrar", func() error {
			return r.schemeRegistrar.SetParameters(ctx, r.voteHash, r.voteHash, vm)
		})
		g.Go("voting machine", func() error {
			return r.votingMachine.SetParameters(ctx, big.NewInt(paramhash.VotePrecedence), interfaces.NullAddress)
		})
		g.Go("upgrade scheme", func() error {
			return r.upgradeScheme.SetParameters(ctx, r.voteHash, vm)
		})
	})
}

func (r *run) schemeParameters(ctx context.Context) error {
	vm := r.votingMachine.Address()
	return r.stepGroup(StepSchemeParameters, func(g *group) {
		g.Go("upgrade scheme", func() error {
			reported, err := r.upgradeScheme.GetParametersHash(ctx, r.voteHash, vm)
			if err != nil {
				return err
			}
			if err := checkHash("upgrade scheme", paramhash.UpgradeParams(r.voteHash, vm), reported); err != nil {
				return err
			}
			r.upgradeHash = reported
			return nil
		})
		g.Go("scheme registrar", func() error {
			reported, err := r.schemeRegistrar.GetParametersHash(ctx, r.voteHash, r.voteHash, vm)
			if err != nil {
				return err
			}
			if err := checkHash("scheme registrar", paramhash.RegistrarParams(r.voteHash, r.voteHash, vm), reported); err != nil {
				return err
			}
			r.registrarHash = reported
			return nil
		})
	})
}

func checkHash(component string, local, reported interfaces.ParameterHash) error {
	if local != reported {
		return fmt.Errorf("%w: %s reported %s, computed %s", ErrParameterHashMismatch, component, reported, local)
	}
	return nil
}

func (r *run) setSchemes(ctx context.Context) error {
	return r.step(StepSetSchemes, func() error {
		return r.creator.SetSchemes(ctx, r.avatar.Address(), r.schemeRegistrations(), SchemesMetadata)
	})
}

func (r *run) schemeRegistrations() []interfaces.SchemeRegistration {
	return []interfaces.SchemeRegistration{
		{Scheme: r.schemeRegistrar.Address(), ParamsHash: r.registrarHash, Permissions: interfaces.FullPermissions},
		{Scheme: r.upgradeScheme.Address(), ParamsHash: r.upgradeHash, Permissions: interfaces.FullPermissions},
		{Scheme: r.identity.Address(), ParamsHash: interfaces.NullHash, Permissions: interfaces.FullPermissions},
		{Scheme: r.feeFormula.Address(), ParamsHash: interfaces.NullHash, Permissions: interfaces.FullPermissions},
	}
}

// whitelist registers founders and the organization's contracts with the
// identity registry. Founders already whitelisted are left alone.
func (r *run) whitelist(ctx context.Context) error {
	return r.stepGroup(StepWhitelist, func(g *group) {
		for _, founder := range r.founders {
			g.Go("whitelist "+founder.Hex(), func() error {
				ok, err := r.identity.IsWhitelisted(ctx, founder)
				if err != nil || ok {
					return err
				}
				return r.identity.AddWhitelisted(ctx, founder)
			})
		}
		contracts := []interfaces.Component{r.avatar, r.controller, r.identity}
		if r.adminWallet != nil {
			contracts = append(contracts, r.adminWallet)
		}
		for _, c := range contracts {
			addr := c.Address()
			g.Go("contract "+c.Kind().String(), func() error {
				return r.identity.AddContract(ctx, addr)
			})
		}
	})
}

func (r *run) manifest() *interfaces.Manifest {
	m := &interfaces.Manifest{
		GoodDollar:      r.token.Address(),
		Reputation:      r.reputation.Address(),
		Identity:        r.identity.Address(),
		FeeFormula:      r.feeFormula.Address(),
		Avatar:          r.avatar.Address(),
		Controller:      r.controller.Address(),
		AbsoluteVote:    r.votingMachine.Address(),
		SchemeRegistrar: r.schemeRegistrar.Address(),
		UpgradeScheme:   r.upgradeScheme.Address(),
		AdminWallet:     interfaces.NullAddress,
		UBI:             interfaces.NullAddress,
		SignupBonus:     interfaces.NullAddress,
		OneTimePayments: interfaces.NullAddress,
		HomeBridge:      interfaces.NullAddress,
		ForeignBridge:   interfaces.NullAddress,
		Network:         r.dctx.Network,
	}
	if r.adminWallet != nil {
		m.AdminWallet = r.adminWallet.Address()
	}
	if r.dctx.ChainID != nil {
		m.NetworkID = r.dctx.ChainID.Uint64()
	}
	return m
}
