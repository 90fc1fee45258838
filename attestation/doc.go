// Package attestation implements the identity-attestation registration
// state machine.
//
// A user claims a slot keyed by an ObfuscatedKey and is assigned an
// attestator. The attestator stores a commitment (hash of private data)
// and the user completes the registration by revealing data that hashes
// to the commitment:
//
//	None -> Requested -> Pending -> Approved
//
// Records inside the MaxNonceDiff height window are protected from reclaim
// by other users; commitments and reveals are only accepted inside it.
// Approved is terminal.
//
// The Engine is invoked once per operation by a host that supplies the
// caller identity, the payment attached to Register, and serializes calls.
// State is persisted through Store on any interfaces.StorageBackend, one
// key per operation.
package attestation
