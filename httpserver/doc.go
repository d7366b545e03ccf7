/*
Package httpserver exposes DAO provisioning over HTTP.

A single provisioning run may be in flight at a time. Runs are started
asynchronously and their progress is reported through the status endpoint:

	POST /api/v1/provision/{network}   start a run, 202 with run_id or 409 when busy
	GET  /api/v1/status                current or last run with its step and manifest
	GET  /api/v1/manifests/{network}   stored manifest, 404 when none exists

The provision endpoint is refused with 503 while the server is draining. When
operator accounts are configured it also requires X-Operator-Timestamp (unix
seconds) and X-Operator-Signature headers: a secp256k1 signature over
keccak256(path || timestamp || body) recoverable to one of the operators. The
timestamp must be within SignatureValidity of the server clock and a signed
request is admitted only once. SignRequest produces both header values.

Health and lifecycle endpoints follow the usual layout: /livez, /readyz,
/drain, /undrain and, when enabled, /debug/pprof.
*/
package httpserver
