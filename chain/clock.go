package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// BlockNumberReader is implemented by *ethclient.Client and the simulated backend client.
type BlockNumberReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// EthClock reports the head block number of an Ethereum node. Heights never
// go backwards, even when the node briefly reports an older head.
type EthClock struct {
	client BlockNumberReader
	last   atomic.Uint64
}

// NewEthClock creates a clock backed by client.
func NewEthClock(client BlockNumberReader) *EthClock {
	return &EthClock{client: client}
}

// CurrentHeight returns the highest block number seen so far.
func (c *EthClock) CurrentHeight(ctx context.Context) (uint64, error) {
	height, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch block number: %w", err)
	}
	for {
		last := c.last.Load()
		if height <= last {
			return last, nil
		}
		if c.last.CompareAndSwap(last, height) {
			return height, nil
		}
	}
}

// ManualClock is advanced explicitly.
type ManualClock struct {
	height atomic.Uint64
}

// NewManualClock creates a clock at the given height.
func NewManualClock(height uint64) *ManualClock {
	c := &ManualClock{}
	c.height.Store(height)
	return c
}

// CurrentHeight returns the current height.
func (c *ManualClock) CurrentHeight(context.Context) (uint64, error) {
	return c.height.Load(), nil
}

// Set moves the clock to height. Moving it backwards is allowed so tests
// can exercise clock skew.
func (c *ManualClock) Set(height uint64) {
	c.height.Store(height)
}

// Advance moves the clock forward by n blocks and returns the new height.
func (c *ManualClock) Advance(n uint64) uint64 {
	return c.height.Add(n)
}

// TimeClock derives heights from elapsed time since genesis.
type TimeClock struct {
	genesis  time.Time
	interval time.Duration
	now      func() time.Time
}

// NewTimeClock creates a clock producing one block per interval since genesis.
func NewTimeClock(genesis time.Time, interval time.Duration) (*TimeClock, error) {
	if interval <= 0 {
		return nil, errors.New("block interval must be positive")
	}
	return &TimeClock{genesis: genesis, interval: interval, now: time.Now}, nil
}

// CurrentHeight returns the number of whole intervals since genesis, zero before it.
func (c *TimeClock) CurrentHeight(context.Context) (uint64, error) {
	elapsed := c.now().Sub(c.genesis)
	if elapsed < 0 {
		return 0, nil
	}
	return uint64(elapsed / c.interval), nil
}
