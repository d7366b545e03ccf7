package provisioner

import "errors"

var (
	// ErrPrecondition is returned before any ledger call when the inputs cannot produce a valid organization.
	ErrPrecondition = errors.New("provisioning precondition failed")

	// ErrUnresolvedAddress is returned when an address a later step depends on reads back as null.
	ErrUnresolvedAddress = errors.New("unresolved component address")

	// ErrParameterHashMismatch is returned when a ledger-reported parameter hash differs from the local one.
	ErrParameterHashMismatch = errors.New("parameter hash mismatch")
)
