package attestation

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Config holds the engine parameters fixed at Init and changed only by the owner.
type Config struct {
	Owner            common.Address
	RegistrationCost Amount
	// MaxNonceDiff is the height window inside which a record is protected
	// from reclaim and inside which commitments and reveals are accepted.
	MaxNonceDiff uint64
}

// MarshalBinary encodes the config as an RLP list.
func (c *Config) MarshalBinary() ([]byte, error) {
	enc := *c
	enc.RegistrationCost = NewAmount(c.RegistrationCost.Value, c.RegistrationCost.Denom)
	return rlp.EncodeToBytes(&enc)
}

// UnmarshalBinary decodes an RLP-encoded config.
func (c *Config) UnmarshalBinary(data []byte) error {
	var decoded Config
	if err := rlp.DecodeBytes(data, &decoded); err != nil {
		return decodeError("config", err)
	}
	decoded.RegistrationCost = NewAmount(decoded.RegistrationCost.Value, decoded.RegistrationCost.Denom)
	*c = decoded
	return nil
}
