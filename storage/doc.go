// Package storage persists provisioning manifests, the address book released
// for each network, in one or more pluggable stores.
//
// Every store is keyed by network name:
//
//   - File: one JSON document mapping network to manifest (deployment.json).
//     Writing a network replaces only that network's entry.
//   - S3, IPFS: one <network>.json object under a prefix or MFS directory.
//   - Vault: one KV v2 secret per network holding the manifest JSON.
//   - Postgres: one row per network in dao_manifests.
//   - GitHub: read-only; reads a committed deployment document.
//
// # Store URI Format
//
// Stores are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/dao/releases/deployment.json
//   - s3://bucket-name/releases/?region=us-west-2
//   - ipfs://localhost:5001/releases?timeout=30s
//   - vault://vault.example.com:8200/secret/dao/releases
//   - postgres://user:password@db:5432/dao?sslmode=disable
//   - github://owner/repo/releases/deployment.json?ref=master
//
// Vault reads VAULT_TOKEN from the environment unless token= is given.
//
// # Multi-Store Example
//
//	factory := storage.NewStoreFactory(logger)
//	store, err := factory.CreateMultiStore([]interfaces.StoreLocation{
//	    "file:///var/lib/dao/releases/",
//	    "s3://releases/dao/?region=eu-west-1",
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create manifest store: %v", err)
//	}
//
// A multi-store writes to every available writable store and succeeds if
// any of them accepted the manifest. Reads return the first store's copy.
package storage
