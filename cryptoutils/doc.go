// Package cryptoutils holds the cryptographic helpers shared by the host and
// the client tooling.
//
// # Hashers
//
// The registration protocol binds a secret to a commitment through a one-way
// function. HasherByName resolves the configured function:
//
//	keccak256    Keccak-256 (default, matches the address scheme)
//	sha3-256     FIPS-202 SHA3-256
//	blake2b-256  BLAKE2b with a 32-byte digest
//
// Host and clients must agree on the hasher, otherwise every confirmation
// fails with a hash mismatch.
//
// # Keys
//
// Callers are identified by secp256k1 keys. LoadOrCreateKey persists a key
// as hex in a file, and NewSigner wraps it for request signing.
//
// # Secrets
//
// DeriveSecret turns a passphrase into registration secret material with
// Argon2id, salted with the obfuscated key, so a user can regenerate the
// secret without storing it.
package cryptoutils
