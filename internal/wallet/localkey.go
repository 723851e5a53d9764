package wallet

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/tixly/tixly/internal/crypto"
	"github.com/tixly/tixly/internal/validation"
	"github.com/tixly/tixly/pkg/types"
)

// RecordStore persists the wallet record; *storage.WalletStore satisfies it
type RecordStore interface {
	Save(ctx context.Context, rec *types.WalletRecord) error
	Load(ctx context.Context) (*types.WalletRecord, error)
	Clear(ctx context.Context) error
}

// LocalKeyStrategy holds a private key in process, persisted in a RecordStore
type LocalKeyStrategy struct {
	store  RecordStore
	chain  BalanceReader
	devKey string
}

// NewLocalKeyStrategy creates the strategy. A non-empty devKey makes Acquire
// import that key instead of generating a new one.
func NewLocalKeyStrategy(store RecordStore, chain BalanceReader, devKey string) *LocalKeyStrategy {
	return &LocalKeyStrategy{store: store, chain: chain, devKey: strings.TrimSpace(devKey)}
}

// Kind returns StrategyLocalKey
func (s *LocalKeyStrategy) Kind() types.StrategyKind {
	return types.StrategyLocalKey
}

// Acquire imports the configured dev key, or creates a fresh wallet
func (s *LocalKeyStrategy) Acquire(ctx context.Context) (*Acquisition, error) {
	if s.devKey != "" {
		return s.ImportPrivateKey(ctx, s.devKey)
	}
	return s.Create(ctx)
}

// Restore rebuilds the session from the stored record. It returns (nil, nil)
// when no record exists.
func (s *LocalKeyStrategy) Restore(ctx context.Context) (*Acquisition, error) {
	rec, err := s.store.Load(ctx)
	if err != nil {
		return nil, &AcquisitionError{Kind: KindStorage, Err: err}
	}
	if rec == nil {
		return nil, nil
	}

	key, err := crypto.HexToPrivateKey(rec.PrivateKey)
	if err != nil {
		return nil, &AcquisitionError{Kind: KindStorage, Err: err}
	}

	signer := NewKeySigner(key)
	balance, err := fetchBalance(ctx, s.chain, signer.Address())
	if err != nil {
		signer.Wipe()
		return nil, err
	}

	return &Acquisition{Address: signer.Address(), Signer: signer, Balance: balance}, nil
}

// Create generates a BIP-39 mnemonic, derives the first account, and stores
// it. The balance is fetched before anything is written.
func (s *LocalKeyStrategy) Create(ctx context.Context) (*Acquisition, error) {
	mnemonic, err := crypto.NewMnemonic()
	if err != nil {
		return nil, acqErr(KindStorage, "generate mnemonic: %w", err)
	}
	key, err := crypto.KeyFromMnemonic(mnemonic)
	if err != nil {
		return nil, acqErr(KindStorage, "derive key: %w", err)
	}
	return s.persist(ctx, key, &mnemonic)
}

// ImportPrivateKey adopts a hex private key, with or without 0x
func (s *LocalKeyStrategy) ImportPrivateKey(ctx context.Context, hexKey string) (*Acquisition, error) {
	if err := validation.ValidatePrivateKeyFormat(hexKey); err != nil {
		return nil, &AcquisitionError{Kind: KindInvalidInput, Err: err}
	}
	key, err := crypto.HexToPrivateKey(hexKey)
	if err != nil {
		return nil, &AcquisitionError{Kind: KindInvalidInput, Err: err}
	}
	return s.persist(ctx, key, nil)
}

// ImportMnemonic adopts a BIP-39 phrase, deriving m/44'/60'/0'/0/0
func (s *LocalKeyStrategy) ImportMnemonic(ctx context.Context, phrase string) (*Acquisition, error) {
	phrase = crypto.NormalizeMnemonic(phrase)
	if !crypto.IsValidMnemonic(phrase) {
		return nil, &AcquisitionError{Kind: KindInvalidInput, Err: crypto.ErrInvalidMnemonic}
	}
	key, err := crypto.KeyFromMnemonic(phrase)
	if err != nil {
		return nil, &AcquisitionError{Kind: KindInvalidInput, Err: err}
	}
	return s.persist(ctx, key, &phrase)
}

func (s *LocalKeyStrategy) persist(ctx context.Context, key *ecdsa.PrivateKey, mnemonic *string) (*Acquisition, error) {
	signer := NewKeySigner(key)

	balance, err := fetchBalance(ctx, s.chain, signer.Address())
	if err != nil {
		signer.Wipe()
		return nil, err
	}

	rec := &types.WalletRecord{
		Address:    signer.Address().Hex(),
		PrivateKey: crypto.PrivateKeyToHex(key),
		Mnemonic:   mnemonic,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		signer.Wipe()
		return nil, &AcquisitionError{Kind: KindStorage, Err: err}
	}

	return &Acquisition{Address: signer.Address(), Signer: signer, Balance: balance}, nil
}

var _ Strategy = (*LocalKeyStrategy)(nil)
