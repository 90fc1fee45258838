package attestation

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueState_FromByte(t *testing.T) {
	for b := byte(0); b <= 3; b++ {
		state, err := ValueStateFromByte(b)
		require.NoError(t, err)
		assert.Equal(t, ValueState(b), state)

		data, err := state.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, []byte{b}, data)
	}

	for _, b := range []byte{4, 5, 0x7f, 0xff} {
		_, err := ValueStateFromByte(b)
		assert.ErrorIs(t, err, ErrInvalidValue, "byte %d", b)
	}
}

func TestValueState_Exists(t *testing.T) {
	assert.False(t, None.Exists())
	assert.True(t, Requested.Exists())
	assert.True(t, Pending.Exists())
	assert.True(t, Approved.Exists())
}

func TestValueState_Unmarshal(t *testing.T) {
	var v ValueState
	require.NoError(t, v.UnmarshalBinary([]byte{2}))
	assert.Equal(t, Pending, v)

	assert.ErrorIs(t, v.UnmarshalBinary([]byte{9}), ErrInvalidValue)
	assert.ErrorIs(t, v.UnmarshalBinary(nil), ErrMalformedData)
	assert.ErrorIs(t, v.UnmarshalBinary([]byte{1, 2}), ErrMalformedData)

	_, err := ValueState(4).MarshalBinary()
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValueState_Text(t *testing.T) {
	text, err := Approved.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Approved", string(text))

	var v ValueState
	require.NoError(t, v.UnmarshalText([]byte("Requested")))
	assert.Equal(t, Requested, v)
	assert.ErrorIs(t, v.UnmarshalText([]byte("Rejected")), ErrInvalidValue)
}

func TestAttestationRecord_RoundTrip(t *testing.T) {
	secret := []byte("passport:AB123456")
	records := []*AttestationRecord{
		{},
		{State: Requested, Owner: common.HexToAddress("0x01"), Verifier: common.HexToAddress("0x02"), LastUpdateHeight: 5},
		{State: Pending, Commitment: crypto.Keccak256Hash(secret), Owner: common.HexToAddress("0x01"), Verifier: common.HexToAddress("0x02"), LastUpdateHeight: 8},
		{State: Approved, Commitment: crypto.Keccak256Hash(secret), Secret: secret, Owner: common.HexToAddress("0x01"), Verifier: common.HexToAddress("0x02"), LastUpdateHeight: ^uint64(0)},
	}

	for _, record := range records {
		t.Run(record.State.String(), func(t *testing.T) {
			data, err := record.MarshalBinary()
			require.NoError(t, err)

			decoded, err := DecodeRecord(data)
			require.NoError(t, err)
			assert.Equal(t, record, decoded)
		})
	}
}

func TestAttestationRecord_EmptySecretNormalized(t *testing.T) {
	data, err := (&AttestationRecord{State: Approved, Secret: []byte{}}).MarshalBinary()
	require.NoError(t, err)

	decoded, err := DecodeRecord(data)
	require.NoError(t, err)
	assert.Nil(t, decoded.Secret)
}

func TestAttestationRecord_DecodeInvalid(t *testing.T) {
	bad, err := rlp.EncodeToBytes([]interface{}{
		uint8(4), common.Hash{}, []byte{}, common.Address{}, common.Address{}, uint64(0),
	})
	require.NoError(t, err)

	_, err = DecodeRecord(bad)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, KindDecode, KindOf(err))

	_, err = DecodeRecord([]byte{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrMalformedData)

	good, err := (&AttestationRecord{State: Requested}).MarshalBinary()
	require.NoError(t, err)
	_, err = DecodeRecord(append(good, 0x80))
	assert.ErrorIs(t, err, ErrMalformedData)

	_, err = (&AttestationRecord{State: ValueState(7)}).MarshalBinary()
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestConfig_RoundTrip(t *testing.T) {
	cfg := &Config{
		Owner:            common.HexToAddress("0xaa"),
		RegistrationCost: NewAmount(nil, ""),
		MaxNonceDiff:     10,
	}
	data, err := cfg.MarshalBinary()
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, cfg.Owner, decoded.Owner)
	assert.Equal(t, uint64(10), decoded.MaxNonceDiff)
	assert.True(t, decoded.RegistrationCost.Equal(cfg.RegistrationCost))
	assert.Equal(t, NativeDenom, decoded.RegistrationCost.Denom)
}

func TestErrors_Classification(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(ErrWrongPayment))
	assert.Equal(t, KindNotFound, KindOf(ErrNoSuchRecord))
	assert.Equal(t, KindInvariant, KindOf(ErrLastAttestator))
	assert.Equal(t, "HashMismatch", CodeOf(ErrHashMismatch))
	assert.Equal(t, Kind(0), KindOf(assert.AnError))
	assert.Equal(t, "", CodeOf(assert.AnError))
	assert.Equal(t, "RecordBusy: data already in processing for other user", ErrRecordBusy.Error())
}
