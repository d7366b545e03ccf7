// Package interfaces defines the core types and interfaces of the organization
// provisioning system, separating the contracts between components from their
// implementations.
//
// # Components
//
// ComponentFactory deploys and attaches to the contracts that make up an
// organization. Every handle it returns is a Component tagged with its
// ComponentKind; the As* helpers turn a handle into its capability interface
// (Identity, Token, VotingMachine, ...) and fail with ErrKindMismatch instead of
// panicking when the tag does not match.
//
// # Environment
//
// DeploymentContext names the network, its EnvironmentClass, chain id and the
// deployer. EffectiveConfig is the merged, unit-converted settings of one network.
//
// # Manifests
//
// Manifest is the released address book of one network. ManifestWriter receives
// it once per successful run; ManifestStore adds reads and is created from a
// StoreLocation URI by a ManifestStoreFactory (file, s3, ipfs, vault, postgres,
// github).
//
// # Governance values
//
// ParameterHash keys governance parameter records, PermissionMask is the 4-byte
// set of capabilities granted to a scheme and SchemeRegistration binds the two to
// a scheme address.
package interfaces
