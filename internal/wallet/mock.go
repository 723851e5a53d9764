package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tixly/tixly/pkg/types"
)

// MockAddress is the fixed, non-secret development address
var MockAddress = common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")

// MockStrategy returns a fixed address with no signer. It never fails.
type MockStrategy struct{}

// Kind returns StrategyMock
func (MockStrategy) Kind() types.StrategyKind {
	return types.StrategyMock
}

// Acquire returns the mock address immediately
func (MockStrategy) Acquire(context.Context) (*Acquisition, error) {
	return &Acquisition{
		Address: MockAddress,
		Balance: new(big.Int),
	}, nil
}

var _ Strategy = MockStrategy{}
