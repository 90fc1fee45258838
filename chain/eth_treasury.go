package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ruteri/attestation-registry/interfaces"
)

// DefaultTransferGas covers a plain value transfer with a short memo.
const DefaultTransferGas = 50_000

// EthBackend is the subset of ethclient used by EthTreasury.
type EthBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// EthTreasury keeps registration payments in an Ethereum account controlled
// by the host. Payments are expected to arrive on-chain, so Receive only
// checks the denomination; Balance and Transfer act on the account.
type EthTreasury struct {
	client  EthBackend
	key     *ecdsa.PrivateKey
	address common.Address
	denom   string
	gas     uint64
	log     *slog.Logger
}

// NewEthTreasury creates a treasury for the account of key.
func NewEthTreasury(client EthBackend, key *ecdsa.PrivateKey, denom string, log *slog.Logger) *EthTreasury {
	if denom == "" {
		denom = interfaces.NativeDenom
	}
	if log == nil {
		log = slog.Default()
	}
	return &EthTreasury{
		client:  client,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		denom:   denom,
		gas:     DefaultTransferGas,
		log:     log,
	}
}

// Address returns the treasury account.
func (t *EthTreasury) Address() common.Address {
	return t.address
}

// Receive accepts payments in the treasury denomination.
func (t *EthTreasury) Receive(_ context.Context, from common.Address, amount interfaces.Amount) error {
	if amount.DenomOrNative() != t.denom {
		return fmt.Errorf("treasury holds %s, refusing %s", t.denom, amount.DenomOrNative())
	}
	t.log.Debug("payment booked", slog.String("from", from.Hex()), slog.String("amount", amount.String()))
	return nil
}

// Balance returns the account balance minus the fee reserved for one transfer.
func (t *EthTreasury) Balance(ctx context.Context) (interfaces.Amount, error) {
	balance, err := t.client.BalanceAt(ctx, t.address, nil)
	if err != nil {
		return interfaces.Amount{}, fmt.Errorf("fetch balance: %w", err)
	}
	_, feeCap, err := t.fees(ctx)
	if err != nil {
		return interfaces.Amount{}, err
	}

	available := new(big.Int).Sub(balance, new(big.Int).Mul(feeCap, new(big.Int).SetUint64(t.gas)))
	if available.Sign() < 0 {
		available.SetInt64(0)
	}
	return interfaces.NewAmount(available, t.denom), nil
}

// Transfer sends amount to the recipient with memo as transaction data.
func (t *EthTreasury) Transfer(ctx context.Context, to common.Address, amount interfaces.Amount, memo []byte) error {
	if amount.DenomOrNative() != t.denom {
		return fmt.Errorf("treasury holds %s, cannot send %s", t.denom, amount.DenomOrNative())
	}

	chainID, err := t.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("fetch chain id: %w", err)
	}
	nonce, err := t.client.PendingNonceAt(ctx, t.address)
	if err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}
	tip, feeCap, err := t.fees(ctx)
	if err != nil {
		return err
	}

	gas := t.gas
	if intrinsic := params.TxGas + uint64(len(memo))*params.TxDataNonZeroGasEIP2028; intrinsic > gas {
		gas = intrinsic
	}

	balance, err := t.client.BalanceAt(ctx, t.address, nil)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	cost := new(big.Int).Add(amount.Int(), new(big.Int).Mul(feeCap, new(big.Int).SetUint64(gas)))
	if balance.Cmp(cost) < 0 {
		return fmt.Errorf("%w: have %s, need %s", interfaces.ErrInsufficientFunds, balance, cost)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     new(big.Int).Set(amount.Int()),
		Data:      memo,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), t.key)
	if err != nil {
		return fmt.Errorf("sign transfer: %w", err)
	}
	if err := t.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send transfer: %w", err)
	}

	t.log.Info("treasury transfer sent",
		slog.String("to", to.Hex()),
		slog.String("amount", amount.String()),
		slog.String("tx", signed.Hash().Hex()))
	return nil
}

// fees returns the tip and a fee cap of twice the current base fee plus tip.
func (t *EthTreasury) fees(ctx context.Context) (*big.Int, *big.Int, error) {
	tip, err := t.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := t.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch head: %w", err)
	}
	if head.BaseFee == nil {
		return nil, nil, errors.New("chain does not support EIP-1559 fees")
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	return tip, feeCap, nil
}
