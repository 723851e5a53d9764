package mocks

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MockBackend is an in-memory chain RPC backend.
type MockBackend struct {
	mu sync.Mutex

	chainID     *big.Int
	balances    map[common.Address]*big.Int
	nonces      map[common.Address]uint64
	receipts    map[common.Hash]*types.Receipt
	sent        []*types.Transaction
	calls       []ethereum.CallMsg
	estimates   []ethereum.CallMsg
	balanceHits int

	BaseFee     *big.Int
	GasTipCap   *big.Int
	GasPrice    *big.Int
	GasEstimate uint64

	BalanceErr  error
	EstimateErr error
	SendErr     error
	CallErr     error

	// CallFn answers eth_call; nil returns empty output
	CallFn func(msg ethereum.CallMsg) ([]byte, error)

	// BalanceHook runs before BalanceAt returns, outside the lock
	BalanceHook func(ctx context.Context)
}

// NewMockBackend creates a backend for chainID with EIP-1559 fees.
func NewMockBackend(chainID int64) *MockBackend {
	return &MockBackend{
		chainID:     big.NewInt(chainID),
		balances:    make(map[common.Address]*big.Int),
		nonces:      make(map[common.Address]uint64),
		receipts:    make(map[common.Hash]*types.Receipt),
		BaseFee:     big.NewInt(10_000_000_000),
		GasTipCap:   big.NewInt(1_000_000_000),
		GasPrice:    big.NewInt(20_000_000_000),
		GasEstimate: 100_000,
	}
}

// SetBalance sets the balance for addr.
func (b *MockBackend) SetBalance(addr common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = new(big.Int).Set(wei)
}

// SetReceipt makes hash mined with the given receipt.
func (b *MockBackend) SetReceipt(hash common.Hash, r *types.Receipt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[hash] = r
}

// Sent returns the transactions broadcast so far.
func (b *MockBackend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// Calls returns the eth_call messages seen so far.
func (b *MockBackend) Calls() []ethereum.CallMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ethereum.CallMsg(nil), b.calls...)
}

// BalanceCalls returns how many times BalanceAt was called.
func (b *MockBackend) BalanceCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balanceHits
}

// ChainID returns the configured chain ID.
func (b *MockBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.chainID), nil
}

// BalanceAt returns the stored balance, zero if unset.
func (b *MockBackend) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	if b.BalanceHook != nil {
		b.BalanceHook(ctx)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.balanceHits++
	if b.BalanceErr != nil {
		return nil, b.BalanceErr
	}
	if v, ok := b.balances[account]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

// PendingNonceAt returns the next nonce for account.
func (b *MockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

// SuggestGasPrice returns GasPrice.
func (b *MockBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.GasPrice), nil
}

// SuggestGasTipCap returns GasTipCap.
func (b *MockBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.GasTipCap), nil
}

// HeaderByNumber returns a header carrying BaseFee.
func (b *MockBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	h := &types.Header{Number: big.NewInt(100)}
	if b.BaseFee != nil {
		h.BaseFee = new(big.Int).Set(b.BaseFee)
	}
	return h, nil
}

// EstimateGas returns GasEstimate.
func (b *MockBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.estimates = append(b.estimates, msg)
	if b.EstimateErr != nil {
		return 0, b.EstimateErr
	}
	return b.GasEstimate, nil
}

// CallContract dispatches to CallFn.
func (b *MockBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	b.calls = append(b.calls, msg)
	fn, callErr := b.CallFn, b.CallErr
	b.mu.Unlock()

	if callErr != nil {
		return nil, callErr
	}
	if fn == nil {
		return nil, nil
	}
	return fn(msg)
}

// SendTransaction records tx and bumps the sender nonce.
func (b *MockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.SendErr != nil {
		return b.SendErr
	}
	sender, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	b.nonces[sender]++
	b.sent = append(b.sent, tx)
	return nil
}

// TransactionReceipt returns a receipt set with SetReceipt, or ethereum.NotFound.
func (b *MockBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}
