package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/attestation-registry/interfaces"
)

// Transfer is an outgoing payment made by a treasury.
type Transfer struct {
	To     common.Address
	Amount interfaces.Amount
	Memo   []byte
}

// MemoryTreasury holds a single-denomination balance in memory.
type MemoryTreasury struct {
	mu        sync.Mutex
	denom     string
	balance   *big.Int
	transfers []Transfer
}

// NewMemoryTreasury creates an empty treasury for denom.
func NewMemoryTreasury(denom string) *MemoryTreasury {
	if denom == "" {
		denom = interfaces.NativeDenom
	}
	return &MemoryTreasury{denom: denom, balance: new(big.Int)}
}

// Receive adds amount to the balance. Foreign denominations are refused.
func (t *MemoryTreasury) Receive(_ context.Context, _ common.Address, amount interfaces.Amount) error {
	if amount.DenomOrNative() != t.denom {
		return fmt.Errorf("treasury holds %s, refusing %s", t.denom, amount.DenomOrNative())
	}
	if amount.Int().Sign() < 0 {
		return fmt.Errorf("negative payment %s", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.balance.Add(t.balance, amount.Int())
	return nil
}

// Balance returns the current balance.
func (t *MemoryTreasury) Balance(context.Context) (interfaces.Amount, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return interfaces.NewAmount(t.balance, t.denom), nil
}

// Transfer deducts amount and records the transfer.
func (t *MemoryTreasury) Transfer(_ context.Context, to common.Address, amount interfaces.Amount, memo []byte) error {
	if amount.DenomOrNative() != t.denom {
		return fmt.Errorf("treasury holds %s, cannot send %s", t.denom, amount.DenomOrNative())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.balance.Cmp(amount.Int()) < 0 {
		return fmt.Errorf("%w: have %s, need %s", interfaces.ErrInsufficientFunds, t.balance, amount.Int())
	}
	t.balance.Sub(t.balance, amount.Int())
	t.transfers = append(t.transfers, Transfer{
		To:     to,
		Amount: interfaces.NewAmount(amount.Int(), t.denom),
		Memo:   append([]byte(nil), memo...),
	})
	return nil
}

// Transfers returns the transfers made so far.
func (t *MemoryTreasury) Transfers() []Transfer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Transfer(nil), t.transfers...)
}
