package attestation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/attestation-registry/interfaces"
)

// ClaimMemo is attached to the transfer made by Claim.
const ClaimMemo = "attestation claim"

var errNoTreasury = errors.New("no treasury configured")

// Engine drives the registration state machine. It does no locking: the
// host must not run two operations concurrently.
type Engine struct {
	store    *Store
	clock    interfaces.Clock
	hash     interfaces.Hasher
	treasury interfaces.Treasury
	events   interfaces.EventSink
	log      *slog.Logger
}

// EngineOpts holds the engine collaborators. Store and Clock are required.
type EngineOpts struct {
	Store    *Store
	Clock    interfaces.Clock
	Hasher   interfaces.Hasher
	Treasury interfaces.Treasury
	Events   interfaces.EventSink
	Log      *slog.Logger
}

// NewEngine creates an engine. The hasher defaults to Keccak-256.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine requires a store")
	}
	if opts.Clock == nil {
		return nil, errors.New("engine requires a clock")
	}

	hash := opts.Hasher
	if hash == nil {
		hash = func(data []byte) common.Hash { return crypto.Keccak256Hash(data) }
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		store:    opts.Store,
		clock:    opts.Clock,
		hash:     hash,
		treasury: opts.Treasury,
		events:   opts.Events,
		log:      log,
	}, nil
}

// Register claims the slot at key for caller, or re-claims it once the
// previous claimant's window has lapsed.
func (e *Engine) Register(ctx context.Context, caller common.Address, key ObfuscatedKey, payment Amount) error {
	cfg, err := e.store.Config(ctx)
	if err != nil {
		return err
	}
	if !payment.Equal(cfg.RegistrationCost) {
		return ErrWrongPayment
	}

	now, err := e.now(ctx)
	if err != nil {
		return err
	}

	record, err := e.store.Record(ctx, key)
	existed := err == nil
	if errors.Is(err, ErrNoSuchRecord) {
		record = newRecord(now)
	} else if err != nil {
		return err
	}

	if record.State == Approved {
		return ErrAlreadyApproved
	}
	previous := *record

	switch {
	case !record.HasOwner():
		record.Owner = caller
	case record.Owner != caller:
		if elapsed(now, record.LastUpdateHeight) < cfg.MaxNonceDiff {
			return ErrRecordBusy
		}
		e.log.Debug("reclaiming lapsed registration",
			slog.String("key", key.String()),
			slog.String("previousOwner", record.Owner.Hex()),
			slog.String("owner", caller.Hex()))
		record.Owner = caller
		record.Commitment = common.Hash{}
		record.State = Requested
	}

	reg, err := e.store.Registry(ctx)
	if err != nil {
		return err
	}
	// A removed attestator can no longer save a commitment for the key.
	if !record.HasVerifier() || reg.State(record.Verifier) != Approved {
		record.Verifier = reg.Select()
	}

	record.LastUpdateHeight = now
	if record.State != Pending {
		record.State = Requested
	}

	if err := e.store.SetRecord(ctx, key, record); err != nil {
		return err
	}

	// A payment the treasury refuses undoes the registration.
	if e.treasury != nil {
		if err := e.treasury.Receive(ctx, caller, payment); err != nil {
			e.log.Error("failed to book registration payment",
				slog.String("key", key.String()),
				slog.String("amount", payment.String()),
				slog.Any("err", err))
			if rerr := e.restore(ctx, key, &previous, existed); rerr != nil {
				return errors.Join(fmt.Errorf("book payment: %w", err), rerr)
			}
			return fmt.Errorf("book payment: %w", err)
		}
	}

	e.log.Debug("registration stored",
		slog.String("key", key.String()),
		slog.String("owner", caller.Hex()),
		slog.String("verifier", record.Verifier.Hex()),
		slog.String("state", record.State.String()),
		slog.Uint64("height", now))

	e.emit(ctx, interfaces.Event{
		Type:       interfaces.EventRegister,
		Key:        key,
		User:       caller,
		Attestator: record.Verifier,
		Height:     now,
	})
	return nil
}

// SaveAttestation stores the commitment produced by the assigned attestator.
func (e *Engine) SaveAttestation(ctx context.Context, caller common.Address, key ObfuscatedKey, commitment common.Hash) error {
	cfg, err := e.store.Config(ctx)
	if err != nil {
		return err
	}
	reg, err := e.store.Registry(ctx)
	if err != nil {
		return err
	}
	if reg.State(caller) != Approved {
		return ErrNotAttestator
	}

	record, err := e.store.Record(ctx, key)
	if err != nil {
		return err
	}
	if record.State == Approved {
		return ErrAlreadyApproved
	}

	if !record.HasVerifier() {
		record.Verifier = caller
	} else if record.Verifier != caller {
		return ErrWrongVerifier
	}

	now, err := e.now(ctx)
	if err != nil {
		return err
	}
	if elapsed(now, record.LastUpdateHeight) > cfg.MaxNonceDiff {
		return ErrExpiredWindow
	}

	record.Commitment = commitment
	record.LastUpdateHeight = now
	record.State = Pending

	if err := e.store.SetRecord(ctx, key, record); err != nil {
		return err
	}

	e.log.Debug("commitment stored",
		slog.String("key", key.String()),
		slog.String("attestator", caller.Hex()),
		slog.Uint64("height", now))

	e.emit(ctx, interfaces.Event{
		Type:       interfaces.EventSaveAttestation,
		Key:        key,
		User:       record.Owner,
		Attestator: caller,
		Commitment: commitment,
		Height:     now,
	})
	return nil
}

// ConfirmAttestation reveals the secret behind a pending commitment. The
// record is approved when the secret hashes to the stored commitment.
func (e *Engine) ConfirmAttestation(ctx context.Context, caller common.Address, key ObfuscatedKey, secret []byte) error {
	cfg, err := e.store.Config(ctx)
	if err != nil {
		return err
	}

	record, err := e.store.Record(ctx, key)
	if err != nil {
		return err
	}
	if record.State != Pending {
		return ErrNotPending
	}
	if record.Owner != caller {
		return ErrUnauthorized
	}
	if e.hash(secret) != record.Commitment {
		return ErrHashMismatch
	}

	now, err := e.now(ctx)
	if err != nil {
		return err
	}
	if elapsed(now, record.LastUpdateHeight) > cfg.MaxNonceDiff {
		return ErrExpiredWindow
	}

	if len(secret) > 0 {
		record.Secret = append([]byte(nil), secret...)
	} else {
		record.Secret = nil
	}
	record.State = Approved
	record.LastUpdateHeight = now

	if err := e.store.SetRecord(ctx, key, record); err != nil {
		return err
	}

	e.log.Debug("registration approved",
		slog.String("key", key.String()),
		slog.String("owner", caller.Hex()),
		slog.Uint64("height", now))

	e.emit(ctx, interfaces.Event{
		Type:       interfaces.EventApproved,
		Key:        key,
		User:       caller,
		Attestator: record.Verifier,
		Commitment: record.Commitment,
		Height:     now,
	})
	return nil
}

// Hash applies the configured hasher.
func (e *Engine) Hash(data []byte) common.Hash {
	return e.hash(data)
}

// restore puts back the record held under key before a failed operation.
func (e *Engine) restore(ctx context.Context, key ObfuscatedKey, previous *AttestationRecord, existed bool) error {
	var err error
	if existed {
		err = e.store.SetRecord(ctx, key, previous)
	} else {
		err = e.store.ClearRecord(ctx, key)
	}
	if err != nil {
		e.log.Error("failed to restore record after refused payment",
			slog.String("key", key.String()),
			slog.Any("err", err))
		return fmt.Errorf("restore record: %w", err)
	}
	return nil
}

func (e *Engine) now(ctx context.Context) (uint64, error) {
	height, err := e.clock.CurrentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("read current height: %w", err)
	}
	return height, nil
}

func (e *Engine) emit(ctx context.Context, event interfaces.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Emit(ctx, event); err != nil {
		e.log.Warn("failed to emit event",
			slog.String("type", string(event.Type)),
			slog.String("key", event.Key.String()),
			slog.Any("err", err))
	}
}

// elapsed is now minus then, clamped at zero.
func elapsed(now, then uint64) uint64 {
	if now < then {
		return 0
	}
	return now - then
}
