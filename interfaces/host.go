package interfaces

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientFunds is returned by a Treasury that cannot cover a transfer.
var ErrInsufficientFunds = errors.New("insufficient treasury funds")

// Clock reports the block height of the hosting environment.
// Heights must be monotonically non-decreasing across calls.
type Clock interface {
	CurrentHeight(ctx context.Context) (uint64, error)
}

// Hasher is a deterministic, fixed-output one-way function.
type Hasher func(data []byte) common.Hash

// Treasury holds the balance accumulated from registration payments.
type Treasury interface {
	// Receive books a payment accepted by a successful operation.
	Receive(ctx context.Context, from common.Address, amount Amount) error

	// Balance returns the amount that can currently be transferred out.
	Balance(ctx context.Context) (Amount, error)

	// Transfer moves funds to an address, attaching memo to the transfer.
	Transfer(ctx context.Context, to common.Address, amount Amount, memo []byte) error
}

// EventSink receives fire-and-forget notifications. Errors are reported
// to the caller for logging only and never roll back an operation.
type EventSink interface {
	Emit(ctx context.Context, event Event) error
}
