// Package main (cmd/provisioner) provisions the organization and publishes
// its deployment manifest.
//
// Commands:
//
//   - provision: run the full provisioning sequence against one network and
//     store the manifest in every configured store. With --dry-run the run
//     goes against an in-memory ledger and nothing is stored.
//   - show: print the stored manifest of a network.
//   - serve: expose provisioning over HTTP, one run at a time.
//
// Example usage:
//
//	dao-provisioner provision --network=develop \
//	    --settings=deploy-settings.yaml \
//	    --rpc-addr=http://localhost:8545 \
//	    --artifacts=build/contracts \
//	    --store=file://./releases --store=s3://releases/dao/?region=eu-west-1
//
//	PRIVATE_KEY=0x... dao-provisioner serve --listen-addr=0.0.0.0:8080 \
//	    --operator=0x5B38Da6a701c568545dCfcB03FcB875f56beddC4
package main
