package provisioner

// Step names one stage of a provisioning run.
type Step string

const (
	StepPreconditions           Step = "preconditions"
	StepDeployIdentity          Step = "deploy-identity"
	StepAuthenticationPeriod    Step = "set-authentication-period"
	StepDeployFeeFormula        Step = "deploy-fee-formula"
	StepDeployControllerCreator Step = "deploy-controller-creator"
	StepDeployFounderSeeder     Step = "deploy-founder-seeder"
	StepDeployCreator           Step = "deploy-organization-creator"
	StepForgeOrg                Step = "forge-organization"
	StepResolveOrganization     Step = "resolve-organization"
	StepDeployAdminWallet       Step = "deploy-admin-wallet"
	StepSetAvatar               Step = "set-avatar"
	StepMintFounders            Step = "mint-founders"
	StepIdentityRoles           Step = "grant-identity-roles"
	StepTransferOwnership       Step = "transfer-ownership"
	StepRenounceMinter          Step = "renounce-minter"
	StepDeployGovernance        Step = "deploy-governance"
	StepVoteParameters          Step = "vote-parameters"
	StepSetParameters           Step = "set-parameters"
	StepSchemeParameters        Step = "scheme-parameters"
	StepSetSchemes              Step = "set-schemes"
	StepWhitelist               Step = "whitelist"
	StepWriteManifest           Step = "write-manifest"
)

// StepStatus is reported to the progress callback.
type StepStatus string

const (
	StatusStarted   StepStatus = "started"
	StatusCompleted StepStatus = "completed"
	StatusSkipped   StepStatus = "skipped"
	StatusFailed    StepStatus = "failed"
)

// ProgressCallback is called as steps start, finish, are skipped or fail.
// Calls are serialized.
type ProgressCallback func(step Step, status StepStatus)

// Gas limits used on mainnet networks for the calls that exceed default estimates.
const (
	ControllerCreatorGas uint64 = 4_000_000
	CreatorGas           uint64 = 8_000_000
	ForgeOrgGas          uint64 = 8_000_000
)

// SchemesMetadata is the metadata string registered with the schemes.
const SchemesMetadata = "metaData"
