package attestation

import (
	"math/big"

	"github.com/ruteri/attestation-registry/interfaces"
)

// ObfuscatedKey identifies a registration slot.
type ObfuscatedKey = interfaces.ObfuscatedKey

// Amount is a value and denomination pair.
type Amount = interfaces.Amount

// NativeDenom is the denomination assumed when none is given.
const NativeDenom = interfaces.NativeDenom

// NewAmount creates an amount, defaulting the denomination to NativeDenom.
func NewAmount(value *big.Int, denom string) Amount {
	return interfaces.NewAmount(value, denom)
}
