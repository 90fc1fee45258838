package cryptoutils

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/attestation-registry/interfaces"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const (
	HashKeccak256  = "keccak256"
	HashSHA3_256   = "sha3-256"
	HashBlake2b256 = "blake2b-256"
)

var hashers = map[string]interfaces.Hasher{
	HashKeccak256: func(data []byte) common.Hash {
		return crypto.Keccak256Hash(data)
	},
	HashSHA3_256: func(data []byte) common.Hash {
		return common.Hash(sha3.Sum256(data))
	},
	HashBlake2b256: func(data []byte) common.Hash {
		return common.Hash(blake2b.Sum256(data))
	},
}

// HasherByName returns the named hasher. An empty name selects Keccak-256.
func HasherByName(name string) (interfaces.Hasher, error) {
	if name == "" {
		name = HashKeccak256
	}
	hasher, ok := hashers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown hash function %q, expected one of %s", name, strings.Join(HasherNames(), ", "))
	}
	return hasher, nil
}

// HasherNames lists the supported hasher names in sorted order.
func HasherNames() []string {
	names := make([]string, 0, len(hashers))
	for name := range hashers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
