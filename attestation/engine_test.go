package attestation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/attestation-registry/chain"
	"github.com/ruteri/attestation-registry/events"
	"github.com/ruteri/attestation-registry/interfaces"
	"github.com/ruteri/attestation-registry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ownerAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	attA      = common.HexToAddress("0x000000000000000000000000000000000000000a")
	attB      = common.HexToAddress("0x000000000000000000000000000000000000000b")
	userU     = common.HexToAddress("0x0000000000000000000000000000000000000101")
	userV     = common.HexToAddress("0x0000000000000000000000000000000000000102")

	keyK = ObfuscatedKey{0x4b}

	testSecret     = []byte("passport:AB123456")
	testCommitment = crypto.Keccak256Hash(testSecret)
	testCost       = interfaces.NativeAmount(100)
)

const testWindow = 10

type fixture struct {
	engine   *Engine
	store    *Store
	clock    *chain.ManualClock
	treasury *chain.MemoryTreasury
	sink     *events.MemorySink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    NewStore(storage.NewMemoryBackend()),
		clock:    chain.NewManualClock(0),
		treasury: chain.NewMemoryTreasury(NativeDenom),
		sink:     events.NewMemorySink(),
	}
	engine, err := NewEngine(EngineOpts{
		Store:    f.store,
		Clock:    f.clock,
		Treasury: f.treasury,
		Events:   f.sink,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

func newInitializedFixture(t *testing.T, attestators ...common.Address) *fixture {
	t.Helper()
	f := newFixture(t)
	require.NoError(t, f.engine.Init(context.Background(), ownerAddr, testCost, testWindow, attestators...))
	return f
}

func (f *fixture) record(t *testing.T, key ObfuscatedKey) *AttestationRecord {
	t.Helper()
	record, err := f.engine.UserState(context.Background(), key)
	require.NoError(t, err)
	return record
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(EngineOpts{Clock: chain.NewManualClock(0)})
	assert.Error(t, err)

	_, err = NewEngine(EngineOpts{Store: NewStore(storage.NewMemoryBackend())})
	assert.Error(t, err)

	engine, err := NewEngine(EngineOpts{Store: NewStore(storage.NewMemoryBackend()), Clock: chain.NewManualClock(0)})
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256Hash([]byte("x")), engine.Hash([]byte("x")))
}

// User registers, attestator commits, user reveals.
func TestEngine_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newInitializedFixture(t, attA)

	f.clock.Set(5)
	require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))

	record := f.record(t, keyK)
	assert.Equal(t, Requested, record.State)
	assert.Equal(t, userU, record.Owner)
	assert.Equal(t, attA, record.Verifier)
	assert.Equal(t, uint64(5), record.LastUpdateHeight)

	f.clock.Set(8)
	require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment))

	record = f.record(t, keyK)
	assert.Equal(t, Pending, record.State)
	assert.Equal(t, testCommitment, record.Commitment)
	assert.Equal(t, uint64(8), record.LastUpdateHeight)

	f.clock.Set(12)
	require.NoError(t, f.engine.ConfirmAttestation(ctx, userU, keyK, testSecret))

	record = f.record(t, keyK)
	assert.Equal(t, Approved, record.State)
	assert.Equal(t, testSecret, record.Secret)
	assert.Equal(t, uint64(12), record.LastUpdateHeight)

	pub, err := f.engine.PublicKey(ctx, keyK)
	require.NoError(t, err)
	assert.Equal(t, userU, pub)

	state, err := f.engine.State(ctx, keyK)
	require.NoError(t, err)
	assert.Equal(t, Approved, state)

	emitted := f.sink.Events()
	require.Len(t, emitted, 3)
	assert.Equal(t, interfaces.EventRegister, emitted[0].Type)
	assert.Equal(t, attA, emitted[0].Attestator)
	assert.Equal(t, interfaces.EventSaveAttestation, emitted[1].Type)
	assert.Equal(t, userU, emitted[1].User)
	assert.Equal(t, testCommitment, emitted[1].Commitment)
	assert.Equal(t, interfaces.EventApproved, emitted[2].Type)
	assert.Equal(t, uint64(12), emitted[2].Height)

	balance, err := f.treasury.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(testCost))

	err = f.engine.Register(ctx, userV, keyK, testCost)
	assert.ErrorIs(t, err, ErrAlreadyApproved)
	err = f.engine.SaveAttestation(ctx, attA, keyK, testCommitment)
	assert.ErrorIs(t, err, ErrAlreadyApproved)
}

// A second user cannot take over a slot before the window lapses.
func TestEngine_ReclaimAfterWindow(t *testing.T) {
	ctx := context.Background()
	f := newInitializedFixture(t, attA)

	require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))

	f.clock.Set(5)
	err := f.engine.Register(ctx, userV, keyK, testCost)
	assert.ErrorIs(t, err, ErrRecordBusy)
	assert.Equal(t, userU, f.record(t, keyK).Owner)

	f.clock.Set(9)
	assert.ErrorIs(t, f.engine.Register(ctx, userV, keyK, testCost), ErrRecordBusy)

	f.clock.Set(10)
	require.NoError(t, f.engine.Register(ctx, userV, keyK, testCost))

	record := f.record(t, keyK)
	assert.Equal(t, userV, record.Owner)
	assert.Equal(t, Requested, record.State)
	assert.Equal(t, uint64(10), record.LastUpdateHeight)

	balance, err := f.treasury.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance.Int().Int64())
}

func TestEngine_RegisterWrongPayment(t *testing.T) {
	ctx := context.Background()
	f := newInitializedFixture(t, attA)

	for _, payment := range []Amount{
		interfaces.NativeAmount(99),
		interfaces.NativeAmount(101),
		interfaces.NativeAmount(0),
		NewAmount(testCost.Value, "uatom"),
	} {
		err := f.engine.Register(ctx, userU, keyK, payment)
		assert.ErrorIs(t, err, ErrWrongPayment, "payment %s", payment)
	}

	state, err := f.engine.State(ctx, keyK)
	require.NoError(t, err)
	assert.Equal(t, None, state)
	assert.Empty(t, f.sink.Events())
}

func TestEngine_SameOwnerReregister(t *testing.T) {
	ctx := context.Background()
	f := newInitializedFixture(t, attA)

	require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
	require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment))

	f.clock.Set(50)
	require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))

	record := f.record(t, keyK)
	assert.Equal(t, Pending, record.State)
	assert.Equal(t, testCommitment, record.Commitment)
	assert.Equal(t, uint64(50), record.LastUpdateHeight)

	// The refreshed height re-opens the reveal window.
	f.clock.Set(55)
	require.NoError(t, f.engine.ConfirmAttestation(ctx, userU, keyK, testSecret))
}

// Phases only move forward, except that a lapsed record taken over by
// another user returns to Requested.
func TestEngine_MonotonicPhase(t *testing.T) {
	ctx := context.Background()
	f := newInitializedFixture(t, attA)

	var seen []ValueState
	observe := func() {
		state, err := f.engine.State(ctx, keyK)
		require.NoError(t, err)
		seen = append(seen, state)
	}

	observe()
	require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
	observe()
	require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment))
	observe()

	assert.ErrorIs(t, f.engine.ConfirmAttestation(ctx, userU, keyK, []byte("wrong")), ErrHashMismatch)
	observe()

	f.clock.Set(100)
	require.NoError(t, f.engine.Register(ctx, userV, keyK, testCost))
	observe()

	record := f.record(t, keyK)
	assert.Equal(t, common.Hash{}, record.Commitment)
	assert.Equal(t, attA, record.Verifier)

	otherSecret := []byte("passport:ZZ000001")
	require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, crypto.Keccak256Hash(otherSecret)))
	observe()
	require.NoError(t, f.engine.ConfirmAttestation(ctx, userV, keyK, otherSecret))
	observe()

	assert.Equal(t, []ValueState{None, Requested, Pending, Pending, Requested, Pending, Approved}, seen)
}

func TestEngine_SaveAttestation(t *testing.T) {
	ctx := context.Background()

	t.Run("not an attestator", func(t *testing.T) {
		f := newInitializedFixture(t, attA)
		require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
		assert.ErrorIs(t, f.engine.SaveAttestation(ctx, userU, keyK, testCommitment), ErrNotAttestator)
	})

	t.Run("no such record", func(t *testing.T) {
		f := newInitializedFixture(t, attA)
		err := f.engine.SaveAttestation(ctx, attA, keyK, testCommitment)
		assert.ErrorIs(t, err, ErrNoSuchRecord)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("wrong verifier", func(t *testing.T) {
		f := newInitializedFixture(t, attA, attB)
		require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
		assert.Equal(t, attB, f.record(t, keyK).Verifier)
		assert.ErrorIs(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment), ErrWrongVerifier)
	})

	t.Run("unbound verifier binds caller", func(t *testing.T) {
		f := newInitializedFixture(t, attA)
		require.NoError(t, f.store.SetRecord(ctx, keyK, &AttestationRecord{State: Requested, Owner: userU}))
		require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment))
		assert.Equal(t, attA, f.record(t, keyK).Verifier)
	})

	t.Run("removed attestator", func(t *testing.T) {
		f := newInitializedFixture(t, attA, attB)
		require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
		require.NoError(t, f.engine.RemoveAttestator(ctx, ownerAddr, attB))
		assert.ErrorIs(t, f.engine.SaveAttestation(ctx, attB, keyK, testCommitment), ErrNotAttestator)
		assert.Equal(t, attB, f.record(t, keyK).Verifier)

		// Registering again rebinds the key to a current attestator.
		require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
		assert.Equal(t, attA, f.record(t, keyK).Verifier)
		require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment))
	})

	t.Run("reclaim drops removed attestator", func(t *testing.T) {
		f := newInitializedFixture(t, attA, attB)
		require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
		require.NoError(t, f.engine.RemoveAttestator(ctx, ownerAddr, attB))

		f.clock.Set(testWindow)
		require.NoError(t, f.engine.Register(ctx, userV, keyK, testCost))
		record := f.record(t, keyK)
		assert.Equal(t, userV, record.Owner)
		assert.Equal(t, attA, record.Verifier)
		require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment))
	})
}

func TestEngine_WindowBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("save at window edge", func(t *testing.T) {
		f := newInitializedFixture(t, attA)
		f.clock.Set(3)
		require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
		f.clock.Set(3 + testWindow)
		require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment))
	})

	t.Run("save past window", func(t *testing.T) {
		f := newInitializedFixture(t, attA)
		f.clock.Set(3)
		require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
		f.clock.Set(3 + testWindow + 1)
		assert.ErrorIs(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment), ErrExpiredWindow)
		assert.Equal(t, Requested, f.record(t, keyK).State)
	})

	t.Run("confirm at window edge", func(t *testing.T) {
		f := newInitializedFixture(t, attA)
		require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
		f.clock.Set(4)
		require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment))
		f.clock.Set(4 + testWindow)
		require.NoError(t, f.engine.ConfirmAttestation(ctx, userU, keyK, testSecret))
	})

	t.Run("confirm past window", func(t *testing.T) {
		f := newInitializedFixture(t, attA)
		require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
		f.clock.Set(4)
		require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment))
		f.clock.Set(4 + testWindow + 1)
		assert.ErrorIs(t, f.engine.ConfirmAttestation(ctx, userU, keyK, testSecret), ErrExpiredWindow)
		assert.Equal(t, Pending, f.record(t, keyK).State)
	})

	t.Run("clock behind record", func(t *testing.T) {
		f := newInitializedFixture(t, attA)
		f.clock.Set(20)
		require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
		require.NoError(t, f.store.SetRecord(ctx, keyK, &AttestationRecord{
			State: Requested, Owner: userU, Verifier: attA, LastUpdateHeight: 50,
		}))
		require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment))
	})
}

func TestEngine_ConfirmAttestation(t *testing.T) {
	ctx := context.Background()
	f := newInitializedFixture(t, attA)

	assert.ErrorIs(t, f.engine.ConfirmAttestation(ctx, userU, keyK, testSecret), ErrNoSuchRecord)

	require.NoError(t, f.engine.Register(ctx, userU, keyK, testCost))
	assert.ErrorIs(t, f.engine.ConfirmAttestation(ctx, userU, keyK, testSecret), ErrNotPending)

	require.NoError(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment))
	assert.ErrorIs(t, f.engine.ConfirmAttestation(ctx, userV, keyK, testSecret), ErrUnauthorized)

	flipped := append([]byte(nil), testSecret...)
	flipped[0] ^= 0x01
	assert.ErrorIs(t, f.engine.ConfirmAttestation(ctx, userU, keyK, flipped), ErrHashMismatch)
	assert.ErrorIs(t, f.engine.ConfirmAttestation(ctx, userU, keyK, nil), ErrHashMismatch)

	record := f.record(t, keyK)
	assert.Equal(t, Pending, record.State)
	assert.Nil(t, record.Secret)

	_, err := f.engine.PublicKey(ctx, keyK)
	assert.ErrorIs(t, err, ErrNotApproved)

	require.NoError(t, f.engine.ConfirmAttestation(ctx, userU, keyK, testSecret))
	assert.ErrorIs(t, f.engine.ConfirmAttestation(ctx, userU, keyK, testSecret), ErrNotPending)
}

type failingSink struct{}

func (failingSink) Emit(context.Context, interfaces.Event) error {
	return errors.New("sink down")
}

func TestEngine_SinkFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(EngineOpts{
		Store:  NewStore(storage.NewMemoryBackend()),
		Clock:  chain.NewManualClock(0),
		Events: failingSink{},
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	require.NoError(t, engine.Init(ctx, ownerAddr, testCost, testWindow, attA))
	require.NoError(t, engine.Register(ctx, userU, keyK, testCost))

	state, err := engine.State(ctx, keyK)
	require.NoError(t, err)
	assert.Equal(t, Requested, state)
}

func TestEngine_NotInitialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.engine.Register(ctx, userU, keyK, testCost), ErrNotInitialized)
	assert.ErrorIs(t, f.engine.SaveAttestation(ctx, attA, keyK, testCommitment), ErrNotInitialized)
	assert.ErrorIs(t, f.engine.ConfirmAttestation(ctx, userU, keyK, testSecret), ErrNotInitialized)
	assert.ErrorIs(t, f.engine.AddAttestator(ctx, ownerAddr, attB), ErrNotInitialized)

	_, err := f.engine.RegistrationCost(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = f.engine.Attestators(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestEngine_ClockFailure(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(EngineOpts{
		Store: NewStore(storage.NewMemoryBackend()),
		Clock: clockFunc(func(context.Context) (uint64, error) { return 0, errors.New("rpc down") }),
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, engine.Init(ctx, ownerAddr, testCost, testWindow, attA))

	err = engine.Register(ctx, userU, keyK, testCost)
	require.Error(t, err)
	assert.Equal(t, Kind(0), KindOf(err))

	has, err := engine.store.HasRecord(ctx, keyK)
	require.NoError(t, err)
	assert.False(t, has)
}

type clockFunc func(context.Context) (uint64, error)

func (f clockFunc) CurrentHeight(ctx context.Context) (uint64, error) { return f(ctx) }

// failingBackend is a memory backend whose writes can be made to fail.
type failingBackend struct {
	*storage.MemoryBackend
	storeErr error
}

func (b *failingBackend) Store(ctx context.Context, key string, data []byte) error {
	if b.storeErr != nil {
		return b.storeErr
	}
	return b.MemoryBackend.Store(ctx, key, data)
}

func newEngineWith(t *testing.T, backend interfaces.StorageBackend, clock interfaces.Clock, treasury interfaces.Treasury) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineOpts{
		Store:    NewStore(backend),
		Clock:    clock,
		Treasury: treasury,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return engine
}

func TestEngine_RegisterStoreFailureBooksNothing(t *testing.T) {
	ctx := context.Background()
	diskFull := errors.New("disk full")
	backend := &failingBackend{MemoryBackend: storage.NewMemoryBackend()}
	treasury := chain.NewMemoryTreasury(NativeDenom)
	engine := newEngineWith(t, backend, chain.NewManualClock(0), treasury)
	require.NoError(t, engine.Init(ctx, ownerAddr, testCost, testWindow, attA))

	backend.storeErr = diskFull
	err := engine.Register(ctx, userU, keyK, testCost)
	assert.ErrorIs(t, err, diskFull)

	_, err = engine.UserState(ctx, keyK)
	assert.ErrorIs(t, err, ErrNoSuchRecord)

	balance, err := treasury.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "balance %s", balance)
}

func TestEngine_RegisterRefusedPaymentRestoresRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("new record is removed", func(t *testing.T) {
		// A treasury in another denomination refuses native payments.
		engine := newEngineWith(t, storage.NewMemoryBackend(), chain.NewManualClock(0), chain.NewMemoryTreasury("uatom"))
		require.NoError(t, engine.Init(ctx, ownerAddr, testCost, testWindow, attA))

		err := engine.Register(ctx, userU, keyK, testCost)
		require.Error(t, err)

		state, err := engine.State(ctx, keyK)
		require.NoError(t, err)
		assert.Equal(t, None, state)
	})

	t.Run("reclaimed record is put back", func(t *testing.T) {
		backend := storage.NewMemoryBackend()
		clock := chain.NewManualClock(0)
		engine := newEngineWith(t, backend, clock, chain.NewMemoryTreasury(NativeDenom))
		require.NoError(t, engine.Init(ctx, ownerAddr, testCost, testWindow, attA))
		require.NoError(t, engine.Register(ctx, userU, keyK, testCost))
		require.NoError(t, engine.SaveAttestation(ctx, attA, keyK, testCommitment))
		before, err := engine.UserState(ctx, keyK)
		require.NoError(t, err)

		refusing := newEngineWith(t, backend, clock, chain.NewMemoryTreasury("uatom"))
		clock.Set(testWindow)
		require.Error(t, refusing.Register(ctx, userV, keyK, testCost))

		after, err := refusing.UserState(ctx, keyK)
		require.NoError(t, err)
		assert.Equal(t, before, after)
		assert.Equal(t, Pending, after.State)
		assert.Equal(t, userU, after.Owner)
	})
}
