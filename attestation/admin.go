package attestation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
)

// Init sets up an empty engine. The caller becomes the owner.
func (e *Engine) Init(ctx context.Context, caller common.Address, cost Amount, maxNonceDiff uint64, attestators ...common.Address) error {
	_, err := e.store.Config(ctx)
	if err == nil {
		return ErrAlreadyInitialized
	}
	if !errors.Is(err, ErrNotInitialized) {
		return err
	}

	reg, err := NewAttestatorRegistry(attestators...)
	if err != nil {
		return err
	}

	// The config key marks the engine as initialized, so it is written last.
	if err := e.store.SetRegistry(ctx, reg); err != nil {
		return err
	}
	cfg := &Config{
		Owner:            caller,
		RegistrationCost: NewAmount(cost.Value, cost.Denom),
		MaxNonceDiff:     maxNonceDiff,
	}
	if err := e.store.SetConfig(ctx, cfg); err != nil {
		return err
	}

	e.log.Info("attestation engine initialized",
		slog.String("owner", caller.Hex()),
		slog.String("cost", cfg.RegistrationCost.String()),
		slog.Uint64("maxNonceDiff", maxNonceDiff),
		slog.Int("attestators", reg.Len()))
	return nil
}

// AddAttestator appends an attestator to the registry.
func (e *Engine) AddAttestator(ctx context.Context, caller, address common.Address) error {
	if _, err := e.requireOwner(ctx, caller); err != nil {
		return err
	}
	reg, err := e.store.Registry(ctx)
	if err != nil {
		return err
	}
	if err := reg.Add(address); err != nil {
		return err
	}
	if err := e.store.SetRegistry(ctx, reg); err != nil {
		return err
	}
	e.log.Info("attestator added", slog.String("attestator", address.Hex()), slog.Int("attestators", reg.Len()))
	return nil
}

// RemoveAttestator removes an attestator. The last attestator cannot be removed.
// Records already bound to the removed address keep it as their verifier.
func (e *Engine) RemoveAttestator(ctx context.Context, caller, address common.Address) error {
	if _, err := e.requireOwner(ctx, caller); err != nil {
		return err
	}
	reg, err := e.store.Registry(ctx)
	if err != nil {
		return err
	}
	if err := reg.Remove(address); err != nil {
		return err
	}
	if err := e.store.SetRegistry(ctx, reg); err != nil {
		return err
	}
	e.log.Info("attestator removed", slog.String("attestator", address.Hex()), slog.Int("attestators", reg.Len()))
	return nil
}

// SetRegisterCost replaces the exact payment required by Register.
func (e *Engine) SetRegisterCost(ctx context.Context, caller common.Address, cost Amount) error {
	cfg, err := e.requireOwner(ctx, caller)
	if err != nil {
		return err
	}
	cfg.RegistrationCost = NewAmount(cost.Value, cost.Denom)
	if err := e.store.SetConfig(ctx, cfg); err != nil {
		return err
	}
	e.log.Info("registration cost updated", slog.String("cost", cfg.RegistrationCost.String()))
	return nil
}

// SetMaxNonceDiff replaces the height window.
func (e *Engine) SetMaxNonceDiff(ctx context.Context, caller common.Address, maxNonceDiff uint64) error {
	cfg, err := e.requireOwner(ctx, caller)
	if err != nil {
		return err
	}
	cfg.MaxNonceDiff = maxNonceDiff
	if err := e.store.SetConfig(ctx, cfg); err != nil {
		return err
	}
	e.log.Info("max nonce diff updated", slog.Uint64("maxNonceDiff", maxNonceDiff))
	return nil
}

// Claim transfers the whole treasury balance to the owner and returns the
// transferred amount. A zero balance is not transferred.
func (e *Engine) Claim(ctx context.Context, caller common.Address) (Amount, error) {
	cfg, err := e.requireOwner(ctx, caller)
	if err != nil {
		return Amount{}, err
	}
	if e.treasury == nil {
		return Amount{}, errNoTreasury
	}

	balance, err := e.treasury.Balance(ctx)
	if err != nil {
		return Amount{}, fmt.Errorf("read treasury balance: %w", err)
	}
	if balance.IsZero() {
		return balance, nil
	}
	if err := e.treasury.Transfer(ctx, cfg.Owner, balance, []byte(ClaimMemo)); err != nil {
		return Amount{}, fmt.Errorf("transfer treasury balance: %w", err)
	}

	e.log.Info("treasury claimed", slog.String("owner", cfg.Owner.Hex()), slog.String("amount", balance.String()))
	return balance, nil
}

func (e *Engine) requireOwner(ctx context.Context, caller common.Address) (*Config, error) {
	cfg, err := e.store.Config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Owner != caller {
		return nil, ErrNotOwner
	}
	return cfg, nil
}

// UserState returns the record stored under key.
func (e *Engine) UserState(ctx context.Context, key ObfuscatedKey) (*AttestationRecord, error) {
	return e.store.Record(ctx, key)
}

// State returns the phase of the record under key, None if absent.
func (e *Engine) State(ctx context.Context, key ObfuscatedKey) (ValueState, error) {
	record, err := e.store.Record(ctx, key)
	if errors.Is(err, ErrNoSuchRecord) {
		return None, nil
	}
	if err != nil {
		return None, err
	}
	return record.State, nil
}

// PublicKey returns the owner of an approved record.
func (e *Engine) PublicKey(ctx context.Context, key ObfuscatedKey) (common.Address, error) {
	record, err := e.store.Record(ctx, key)
	if err != nil {
		return common.Address{}, err
	}
	if record.State != Approved {
		return common.Address{}, ErrNotApproved
	}
	return record.Owner, nil
}

// RegistrationCost returns the exact payment required by Register.
func (e *Engine) RegistrationCost(ctx context.Context) (Amount, error) {
	cfg, err := e.store.Config(ctx)
	if err != nil {
		return Amount{}, err
	}
	return cfg.RegistrationCost, nil
}

// MaxNonceDiff returns the height window.
func (e *Engine) MaxNonceDiff(ctx context.Context) (uint64, error) {
	cfg, err := e.store.Config(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.MaxNonceDiff, nil
}

// Owner returns the privileged address.
func (e *Engine) Owner(ctx context.Context) (common.Address, error) {
	cfg, err := e.store.Config(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return cfg.Owner, nil
}

// Attestators returns the registry in insertion order.
func (e *Engine) Attestators(ctx context.Context) ([]common.Address, error) {
	reg, err := e.store.Registry(ctx)
	if err != nil {
		return nil, err
	}
	return reg.Addresses(), nil
}
