// Package interfaces defines the contracts between the attestation engine and
// the environment hosting it.
//
// The engine itself is pure state-transition logic. Everything it needs from
// the outside world is expressed here as a narrow interface so that it can be
// exercised against in-memory implementations in tests and against real
// infrastructure in production.
//
// # Host Interfaces
//
//   - Clock: current block height, monotonically non-decreasing
//   - Hasher: deterministic fixed-output hash of the revealed secret
//   - Treasury: booking of registration payments and outgoing transfers
//   - EventSink: fire-and-forget structured notifications
//
// # Storage Interfaces
//
//   - StorageBackend: key-addressed blob storage with whole-value replace
//   - StorageBackendFactory: creates backends from location URIs
//
// # Types
//
//   - ObfuscatedKey: 32-byte opaque registration slot identifier
//   - Amount: value and denomination pair, defaulting to NativeDenom
//   - Event: notification emitted on register, commitment and approval
//
// # Error Types
//
//   - ErrKeyNotFound: nothing is stored under the key
//   - ErrBackendUnavailable: storage backend is not accessible
//   - ErrInvalidLocationURI: storage location URI is malformed
//   - ErrInsufficientFunds: treasury cannot cover a transfer
package interfaces
