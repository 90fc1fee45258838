package cryptoutils

import (
	"errors"

	"golang.org/x/crypto/argon2"
)

// SecretSize is the length of derived secrets.
const SecretSize = 32

var errEmptyPassphrase = errors.New("empty passphrase")

// DeriveSecret derives registration secret material from a passphrase with
// Argon2id. The salt should be the obfuscated key of the registration so one
// passphrase yields different secrets for different slots.
func DeriveSecret(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errEmptyPassphrase
	}
	full := append([]byte("ATTESTATION-SECRET-"), salt...)

	// time=1, memory=64MiB, threads=4
	return argon2.IDKey(passphrase, full, 1, 64*1024, 4, SecretSize), nil
}
