package attestation

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// AttestatorRegistry is the ordered set of addresses allowed to store
// commitments. Once created it is never empty.
type AttestatorRegistry struct {
	attestators []common.Address
}

// NewAttestatorRegistry creates a registry from seed addresses, dropping
// duplicates while keeping first-seen order.
func NewAttestatorRegistry(seed ...common.Address) (*AttestatorRegistry, error) {
	r := &AttestatorRegistry{}
	for _, addr := range seed {
		if addr == (common.Address{}) {
			return nil, ErrZeroAddress
		}
		if r.Contains(addr) {
			continue
		}
		r.attestators = append(r.attestators, addr)
	}
	if len(r.attestators) == 0 {
		return nil, ErrNoAttestators
	}
	return r, nil
}

// Len returns the number of attestators.
func (r *AttestatorRegistry) Len() int {
	return len(r.attestators)
}

// Contains reports whether addr is an approved attestator.
func (r *AttestatorRegistry) Contains(addr common.Address) bool {
	return slices.Contains(r.attestators, addr)
}

// State returns Approved for members and None otherwise.
func (r *AttestatorRegistry) State(addr common.Address) ValueState {
	if r.Contains(addr) {
		return Approved
	}
	return None
}

// Add appends addr to the registry.
func (r *AttestatorRegistry) Add(addr common.Address) error {
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}
	if r.Contains(addr) {
		return ErrAlreadyAttestator
	}
	r.attestators = append(r.attestators, addr)
	return nil
}

// Remove deletes addr, preserving the order of the remaining entries.
// The registry is left unchanged on error.
func (r *AttestatorRegistry) Remove(addr common.Address) error {
	idx := slices.Index(r.attestators, addr)
	if idx < 0 {
		return ErrNotAttestator
	}
	if len(r.attestators) == 1 {
		return ErrLastAttestator
	}
	r.attestators = slices.Delete(r.attestators, idx, idx+1)
	return nil
}

// Select picks the attestator for a new registration.
// TODO: replace with a load-balanced choice once attestators report capacity.
func (r *AttestatorRegistry) Select() common.Address {
	return r.attestators[len(r.attestators)-1]
}

// Addresses returns a copy of the attestators in insertion order.
func (r *AttestatorRegistry) Addresses() []common.Address {
	return slices.Clone(r.attestators)
}

// MarshalBinary encodes the registry as an RLP list of addresses.
func (r *AttestatorRegistry) MarshalBinary() ([]byte, error) {
	return rlp.EncodeToBytes(r.attestators)
}

// UnmarshalBinary decodes the registry, rejecting data that violates its invariants.
func (r *AttestatorRegistry) UnmarshalBinary(data []byte) error {
	var addrs []common.Address
	if err := rlp.DecodeBytes(data, &addrs); err != nil {
		return decodeError("attestator registry", err)
	}
	decoded, err := NewAttestatorRegistry(addrs...)
	if err != nil {
		return fmt.Errorf("decode attestator registry: %w: %v", ErrMalformedData, err)
	}
	if decoded.Len() != len(addrs) {
		return fmt.Errorf("decode attestator registry: %w: duplicate entries", ErrMalformedData)
	}
	*r = *decoded
	return nil
}
