package attestation

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// ValueState is the lifecycle phase of a registration record and the
// membership flag of an attestator.
type ValueState uint8

const (
	// None means no record exists.
	None ValueState = iota
	// Requested means the slot is claimed and no commitment is stored yet.
	Requested
	// Pending means a commitment is stored and awaits the reveal.
	Pending
	// Approved is terminal: the reveal matched the commitment.
	Approved
)

// ValueStateFromByte decodes the single-byte discriminant.
func ValueStateFromByte(b byte) (ValueState, error) {
	if b > byte(Approved) {
		return None, fmt.Errorf("%w: %d", ErrInvalidValue, b)
	}
	return ValueState(b), nil
}

// Exists is true for every variant except None.
func (v ValueState) Exists() bool {
	return v != None
}

// Valid reports whether v is one of the four defined variants.
func (v ValueState) Valid() bool {
	return v <= Approved
}

// String returns the variant name.
func (v ValueState) String() string {
	switch v {
	case None:
		return "None"
	case Requested:
		return "Requested"
	case Pending:
		return "Pending"
	case Approved:
		return "Approved"
	default:
		return fmt.Sprintf("ValueState(%d)", uint8(v))
	}
}

// MarshalBinary encodes the state as a single byte.
func (v ValueState) MarshalBinary() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidValue, uint8(v))
	}
	return []byte{byte(v)}, nil
}

// UnmarshalBinary decodes a single-byte state.
func (v *ValueState) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return fmt.Errorf("%w: expected 1 byte, got %d", ErrMalformedData, len(data))
	}
	state, err := ValueStateFromByte(data[0])
	if err != nil {
		return err
	}
	*v = state
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (v ValueState) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidValue, uint8(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *ValueState) UnmarshalText(text []byte) error {
	for s := None; s <= Approved; s++ {
		if s.String() == string(text) {
			*v = s
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidValue, text)
}

// DecodeRLP rejects discriminants outside the defined range.
func (v *ValueState) DecodeRLP(s *rlp.Stream) error {
	raw, err := s.Uint64()
	if err != nil {
		return err
	}
	if raw > uint64(Approved) {
		return fmt.Errorf("%w: %d", ErrInvalidValue, raw)
	}
	*v = ValueState(raw)
	return nil
}
