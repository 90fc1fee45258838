package clients

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/attestation-registry/api"
	"github.com/ruteri/attestation-registry/attestation"
	"github.com/ruteri/attestation-registry/chain"
	"github.com/ruteri/attestation-registry/httpserver"
	"github.com/ruteri/attestation-registry/interfaces"
	"github.com/ruteri/attestation-registry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func startRegistry(t *testing.T) (string, *chain.ManualClock) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := chain.NewManualClock(1000)

	engine, err := attestation.NewEngine(attestation.EngineOpts{
		Store:    attestation.NewStore(storage.NewMemoryBackend()),
		Clock:    clock,
		Treasury: chain.NewMemoryTreasury(""),
		Log:      logger,
	})
	require.NoError(t, err)

	srv, err := httpserver.New(&api.HTTPServerConfig{Log: logger}, httpserver.NewHandler(engine, logger))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, clock
}

func TestAttestationClient_Scenario(t *testing.T) {
	ctx := context.Background()
	url, clock := startRegistry(t)

	owner := NewAttestationClient(url, newKey(t))
	attestator := NewAttestationClient(url, newKey(t))
	alice := NewAttestationClient(url, newKey(t))
	bob := NewAttestationClient(url, newKey(t))
	viewer := NewAttestationClient(url, nil)

	require.NoError(t, owner.Init(ctx, interfaces.NativeAmount(100), 10, attestator.Address()))

	cost, err := viewer.RegistrationCost(ctx)
	require.NoError(t, err)

	key := interfaces.ObfuscatedKey{0xaa}
	secret := []byte("national-id:42")

	require.NoError(t, alice.Register(ctx, key, cost))

	// Bob cannot take over while Alice's window is open.
	err = bob.Register(ctx, key, cost)
	assert.ErrorIs(t, err, attestation.ErrRecordBusy)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	require.NoError(t, attestator.SaveAttestation(ctx, key, crypto.Keccak256Hash(secret)))

	// Only the owner of the slot may reveal.
	assert.ErrorIs(t, bob.ConfirmAttestation(ctx, key, secret), attestation.ErrUnauthorized)
	assert.ErrorIs(t, alice.ConfirmAttestation(ctx, key, []byte("wrong")), attestation.ErrHashMismatch)

	clock.Advance(10)
	require.NoError(t, alice.ConfirmAttestation(ctx, key, secret))

	state, err := viewer.State(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, attestation.Approved, state)

	record, err := viewer.UserState(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, alice.Address(), record.Owner)
	assert.Equal(t, attestator.Address(), record.Verifier)
	assert.Equal(t, secret, []byte(record.Secret))

	pk, err := viewer.PublicKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, alice.Address(), pk)

	assert.ErrorIs(t, bob.Register(ctx, key, cost), attestation.ErrAlreadyApproved)

	claimed, err := owner.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100native", claimed.String())
}

func TestAttestationClient_Reclaim(t *testing.T) {
	ctx := context.Background()
	url, clock := startRegistry(t)

	owner := NewAttestationClient(url, newKey(t))
	attestator := NewAttestationClient(url, newKey(t))
	alice := NewAttestationClient(url, newKey(t))
	bob := NewAttestationClient(url, newKey(t))

	require.NoError(t, owner.Init(ctx, interfaces.NativeAmount(5), 10, attestator.Address()))
	key := interfaces.ObfuscatedKey{0xbb}

	require.NoError(t, alice.Register(ctx, key, interfaces.NativeAmount(5)))
	clock.Advance(10)
	require.NoError(t, bob.Register(ctx, key, interfaces.NativeAmount(5)))

	record, err := bob.UserState(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, bob.Address(), record.Owner)
	assert.Equal(t, attestation.Requested, record.State)
	assert.Equal(t, uint64(1010), record.LastUpdateHeight)
}

func TestAttestationClient_Admin(t *testing.T) {
	ctx := context.Background()
	url, _ := startRegistry(t)

	ownerKey := newKey(t)
	owner := NewAttestationClient(url, ownerKey)
	first, second := newKey(t), newKey(t)
	firstAddr, secondAddr := crypto.PubkeyToAddress(first.PublicKey), crypto.PubkeyToAddress(second.PublicKey)

	_, err := owner.Owner(ctx)
	assert.ErrorIs(t, err, attestation.ErrNotInitialized)

	require.NoError(t, owner.Init(ctx, interfaces.NativeAmount(1), 3, firstAddr))
	require.NoError(t, owner.AddAttestator(ctx, secondAddr))
	assert.ErrorIs(t, owner.AddAttestator(ctx, secondAddr), attestation.ErrAlreadyAttestator)
	require.NoError(t, owner.RemoveAttestator(ctx, firstAddr))
	assert.ErrorIs(t, owner.RemoveAttestator(ctx, secondAddr), attestation.ErrLastAttestator)

	attestators, err := owner.Attestators(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{secondAddr}, attestators)

	require.NoError(t, owner.SetRegisterCost(ctx, interfaces.NativeAmount(7)))
	require.NoError(t, owner.SetMaxNonceDiff(ctx, 99))

	diff, err := owner.MaxNonceDiff(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), diff)

	addr, err := owner.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(ownerKey.PublicKey), addr)

	stranger := NewAttestationClient(url, newKey(t))
	assert.ErrorIs(t, stranger.SetMaxNonceDiff(ctx, 1), attestation.ErrNotOwner)

	version, err := stranger.Version(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}

func TestAttestationClient_ReadOnly(t *testing.T) {
	client := NewAttestationClient("http://127.0.0.1:1", nil)
	assert.Equal(t, common.Address{}, client.Address())
	assert.Error(t, client.Register(context.Background(), interfaces.ObfuscatedKey{}, interfaces.NativeAmount(1)))
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 404, Code: "NoSuchRecord", Message: "no data for key"}
	assert.ErrorIs(t, err, attestation.ErrNoSuchRecord)
	assert.NotErrorIs(t, err, attestation.ErrNotInitialized)
	assert.Contains(t, err.Error(), "NoSuchRecord")

	plain := &APIError{StatusCode: 502, Message: "bad gateway"}
	assert.NotErrorIs(t, plain, attestation.ErrNoSuchRecord)
}
