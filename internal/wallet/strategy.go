// Package wallet acquires signing capability for a session. Each Strategy
// yields an address, an optional Signer and the current balance.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/tixly/tixly/pkg/errors"
	"github.com/tixly/tixly/pkg/types"
)

// Strategy obtains a signer. A failed Acquire leaves nothing persisted.
type Strategy interface {
	Kind() types.StrategyKind
	Acquire(ctx context.Context) (*Acquisition, error)
}

// Acquisition is the result of a successful Acquire. Signer is nil for
// read-only sessions.
type Acquisition struct {
	Address common.Address
	Signer  Signer
	Balance *big.Int
}

// BalanceReader fetches native balances; *eth.Client satisfies it
type BalanceReader interface {
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
}

// ErrorKind classifies acquisition failures. Values match the app error codes.
type ErrorKind string

const (
	KindNotInstalled ErrorKind = apperrors.ErrCodeNotInstalled
	KindCancelled    ErrorKind = apperrors.ErrCodeUserCancelled
	KindTimeout      ErrorKind = apperrors.ErrCodeTimeout
	KindNetwork      ErrorKind = apperrors.ErrCodeNetworkError
	KindInvalidInput ErrorKind = apperrors.ErrCodeInvalidInput
	KindStorage      ErrorKind = apperrors.ErrCodeStorageError
)

// AcquisitionError is the typed failure returned by strategies
type AcquisitionError struct {
	Kind      ErrorKind
	StoreLink string
	Err       error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// AppError maps the failure onto the closed user-facing reason set.
// Storage failures surface as network errors.
func (e *AcquisitionError) AppError() *apperrors.AppError {
	detail := ""
	if e.Err != nil {
		detail = e.Err.Error()
	}
	switch e.Kind {
	case KindNotInstalled:
		return apperrors.NotInstalled(e.StoreLink)
	case KindCancelled:
		return apperrors.UserCancelled()
	case KindTimeout:
		return apperrors.Timeout(detail)
	case KindInvalidInput:
		return apperrors.InvalidInput(detail)
	default:
		return apperrors.NetworkError(detail)
	}
}

func acqErr(kind ErrorKind, format string, args ...any) *AcquisitionError {
	return &AcquisitionError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// AsAcquisitionError unwraps err into an AcquisitionError, classifying
// anything else as a network error.
func AsAcquisitionError(err error) *AcquisitionError {
	var ae *AcquisitionError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.Canceled) {
		return &AcquisitionError{Kind: KindCancelled, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &AcquisitionError{Kind: KindTimeout, Err: err}
	}
	return &AcquisitionError{Kind: KindNetwork, Err: err}
}

// ErrNoChain is returned by strategies that need an RPC endpoint when none is configured
var ErrNoChain = errors.New("no chain RPC endpoint configured")

func fetchBalance(ctx context.Context, chain BalanceReader, address common.Address) (*big.Int, error) {
	if chain == nil {
		return nil, &AcquisitionError{Kind: KindNetwork, Err: ErrNoChain}
	}
	balance, err := chain.GetBalance(ctx, address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, AsAcquisitionError(ctx.Err())
		}
		return nil, &AcquisitionError{Kind: KindNetwork, Err: err}
	}
	return balance, nil
}
