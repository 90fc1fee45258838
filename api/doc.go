/*
Package api defines the wire types of the attestation registry HTTP API.

Mutating operations are POST requests with a JSON body signed by the caller.
The signature travels in the X-Flashbots-Signature header as
"<address>:<signature>", where the signature is an EIP-191 personal signature
over the hex-encoded Keccak-256 of the body. The recovered address is the
caller passed to the state machine.

# Operations

	POST /api/v1/init                      InitRequest
	POST /api/v1/register                  RegisterRequest
	POST /api/v1/attestations/save         SaveAttestationRequest
	POST /api/v1/attestations/confirm      ConfirmAttestationRequest
	POST /api/v1/admin/attestators/add     AttestatorRequest
	POST /api/v1/admin/attestators/remove  AttestatorRequest
	POST /api/v1/admin/cost                SetRegisterCostRequest
	POST /api/v1/admin/max-nonce-diff      SetMaxNonceDiffRequest
	POST /api/v1/admin/claim               (empty object)

# Views

	GET /api/v1/users/{key}             UserRecordResponse
	GET /api/v1/users/{key}/state       StateResponse
	GET /api/v1/users/{key}/public-key  PublicKeyResponse
	GET /api/v1/registration-cost       RegistrationCostResponse
	GET /api/v1/max-nonce-diff          MaxNonceDiffResponse
	GET /api/v1/attestators             AttestatorsResponse
	GET /api/v1/owner                   OwnerResponse
	GET /api/v1/version                 VersionResponse

Failures return an ErrorResponse. Validation failures map to 400, authorization
failures to 403, missing records or an uninitialized registry to 404, invariant
violations to 409 and everything else to 500.

The clients subpackage implements a Go client for every operation.
*/
package api
