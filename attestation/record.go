package attestation

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// AttestationRecord is the persisted state of one registration slot.
// The field order is the wire order.
type AttestationRecord struct {
	State            ValueState
	Commitment       common.Hash
	Secret           []byte
	Owner            common.Address
	Verifier         common.Address
	LastUpdateHeight uint64
}

// newRecord returns the default record synthesized for an unused key.
func newRecord(height uint64) *AttestationRecord {
	return &AttestationRecord{State: None, LastUpdateHeight: height}
}

// Clone returns a deep copy of the record.
func (r *AttestationRecord) Clone() *AttestationRecord {
	c := *r
	if r.Secret != nil {
		c.Secret = append([]byte(nil), r.Secret...)
	}
	return &c
}

// HasOwner reports whether the slot has been claimed.
func (r *AttestationRecord) HasOwner() bool {
	return r.Owner != (common.Address{})
}

// HasVerifier reports whether an attestator has been assigned.
func (r *AttestationRecord) HasVerifier() bool {
	return r.Verifier != (common.Address{})
}

// MarshalBinary encodes the record as an RLP list.
func (r *AttestationRecord) MarshalBinary() ([]byte, error) {
	if !r.State.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidValue, uint8(r.State))
	}
	return rlp.EncodeToBytes(r)
}

// UnmarshalBinary decodes an RLP-encoded record.
func (r *AttestationRecord) UnmarshalBinary(data []byte) error {
	var decoded AttestationRecord
	if err := rlp.DecodeBytes(data, &decoded); err != nil {
		return decodeError("attestation record", err)
	}
	if len(decoded.Secret) == 0 {
		decoded.Secret = nil
	}
	*r = decoded
	return nil
}

// DecodeRecord decodes a persisted record.
func DecodeRecord(data []byte) (*AttestationRecord, error) {
	r := new(AttestationRecord)
	if err := r.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeError(what string, err error) error {
	if errors.Is(err, ErrInvalidValue) {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return fmt.Errorf("decode %s: %w: %v", what, ErrMalformedData, err)
}
