// Package interfaces defines the core interfaces and types for the attestation registry.
// It provides the contract between the engine and its host without implementation details.
package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ObfuscatedKey is the caller-chosen opaque 32-byte identifier of a registration slot.
type ObfuscatedKey [32]byte

// NewObfuscatedKeyFromBytes creates a key from a 32-byte slice.
func NewObfuscatedKeyFromBytes(source []byte) (ObfuscatedKey, error) {
	if len(source) != 32 {
		return ObfuscatedKey{}, errors.New("invalid obfuscated key conversion from bytes: incorrect length")
	}

	var key ObfuscatedKey
	copy(key[:], source)
	return key, nil
}

// NewObfuscatedKeyFromHex parses a 64-character hex string, with or without 0x prefix.
func NewObfuscatedKeyFromHex(source string) (ObfuscatedKey, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return ObfuscatedKey{}, errors.New("invalid obfuscated key length: hex string must be 64 characters")
	}

	keyBytes, err := hex.DecodeString(clean)
	if err != nil {
		return ObfuscatedKey{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewObfuscatedKeyFromBytes(keyBytes)
}

// String returns the 0x-prefixed hex representation.
func (k ObfuscatedKey) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

// Bytes returns the raw 32 bytes.
func (k ObfuscatedKey) Bytes() []byte {
	return k[:]
}

// MarshalText implements encoding.TextMarshaler.
func (k ObfuscatedKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ObfuscatedKey) UnmarshalText(text []byte) error {
	parsed, err := NewObfuscatedKeyFromHex(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// NativeDenom identifies the single asset of hosts that only know one currency.
const NativeDenom = "native"

// Amount is a quantity of a named asset. A nil Value is treated as zero.
type Amount struct {
	Value *big.Int `json:"value"`
	Denom string   `json:"denom"`
}

// NewAmount creates an amount, defaulting the denomination to NativeDenom.
func NewAmount(value *big.Int, denom string) Amount {
	if denom == "" {
		denom = NativeDenom
	}
	if value == nil {
		value = new(big.Int)
	}
	return Amount{Value: new(big.Int).Set(value), Denom: denom}
}

// NativeAmount is a shorthand for an amount of the native asset.
func NativeAmount(value int64) Amount {
	return NewAmount(big.NewInt(value), NativeDenom)
}

// ParseAmount parses "<value>" or "<value><denom>" strings such as "100" or "100uatt".
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Amount{}, fmt.Errorf("invalid amount %q: missing value", s)
	}
	value, ok := new(big.Int).SetString(s[:i], 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return NewAmount(value, strings.TrimSpace(s[i:])), nil
}

// Int returns the value, never nil.
func (a Amount) Int() *big.Int {
	if a.Value == nil {
		return new(big.Int)
	}
	return a.Value
}

// DenomOrNative returns the denomination, defaulting to NativeDenom.
func (a Amount) DenomOrNative() string {
	if a.Denom == "" {
		return NativeDenom
	}
	return a.Denom
}

// Equal reports whether both value and denomination match.
func (a Amount) Equal(other Amount) bool {
	return a.DenomOrNative() == other.DenomOrNative() && a.Int().Cmp(other.Int()) == 0
}

// IsZero reports whether the value is zero.
func (a Amount) IsZero() bool {
	return a.Int().Sign() == 0
}

// String returns value followed by denomination, e.g. "100native".
func (a Amount) String() string {
	return a.Int().String() + a.DenomOrNative()
}

// EventType names a notification emitted by the engine.
type EventType string

const (
	// EventRegister is emitted when a slot is claimed or re-claimed.
	EventRegister EventType = "register"
	// EventSaveAttestation is emitted when an attestator stores a commitment.
	EventSaveAttestation EventType = "save_attestation"
	// EventApproved is emitted when a reveal matches its commitment.
	EventApproved EventType = "attestation_approved"
)

// Event is a structured notification consumed by off-system observers.
type Event struct {
	Type       EventType      `json:"type"`
	Key        ObfuscatedKey  `json:"key"`
	User       common.Address `json:"user"`
	Attestator common.Address `json:"attestator"`
	Commitment common.Hash    `json:"commitment"`
	Height     uint64         `json:"height"`
}
