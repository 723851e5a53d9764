package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tixly/tixly/internal/crypto"
	"github.com/tixly/tixly/internal/seal"
	"github.com/tixly/tixly/pkg/types"
)

// WalletStore persists the single local-key wallet record
type WalletStore struct {
	kv       KV
	provider seal.Provider
}

// NewWalletStore wraps kv. A nil provider stores the record as plaintext JSON.
func NewWalletStore(kv KV, provider seal.Provider) *WalletStore {
	if provider == nil {
		provider = seal.NoneProvider{}
	}
	return &WalletStore{kv: kv, provider: provider}
}

// Save writes the record after checking that its address and mnemonic agree
// with the private key. Saving identical content twice is harmless.
func (s *WalletStore) Save(ctx context.Context, rec *types.WalletRecord) error {
	if rec == nil {
		return fmt.Errorf("wallet record is nil")
	}
	if err := verifyRecord(rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet record: %w", err)
	}
	defer clear(data)

	if s.provider.Name() != string(seal.ProviderNone) {
		data, err = seal.Seal(ctx, s.provider, data)
		if err != nil {
			return err
		}
	}

	if err := s.kv.Put(ctx, WalletKey, data); err != nil {
		return fmt.Errorf("failed to save wallet record: %w", err)
	}
	return nil
}

// Load returns the stored record, or nil when none exists. A record whose
// address does not derive from its key yields ErrRecordMismatch.
func (s *WalletStore) Load(ctx context.Context) (*types.WalletRecord, error) {
	data, err := s.kv.Get(ctx, WalletKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet record: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var probe struct {
		Provider string `json:"provider"`
		Address  string `json:"address"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("corrupt wallet record: %w", err)
	}

	// Records written before sealing was enabled are plain JSON.
	if probe.Provider != "" && probe.Address == "" {
		data, err = seal.Open(ctx, s.provider, data)
		if err != nil {
			return nil, err
		}
		defer clear(data)
	}

	var rec types.WalletRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt wallet record: %w", err)
	}

	derived, err := crypto.AddressFromHexKey(rec.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("corrupt wallet record: %w", err)
	}
	if !strings.EqualFold(derived.Hex(), rec.Address) {
		return nil, ErrRecordMismatch
	}

	return &rec, nil
}

// Clear removes the record. Clearing an empty store succeeds.
func (s *WalletStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, WalletKey); err != nil {
		return fmt.Errorf("failed to clear wallet record: %w", err)
	}
	return nil
}

func verifyRecord(rec *types.WalletRecord) error {
	derived, err := crypto.AddressFromHexKey(rec.PrivateKey)
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	if !strings.EqualFold(derived.Hex(), rec.Address) {
		return ErrRecordMismatch
	}

	if rec.Mnemonic != nil {
		key, err := crypto.KeyFromMnemonic(*rec.Mnemonic)
		if err != nil {
			return fmt.Errorf("invalid mnemonic: %w", err)
		}
		defer crypto.ZeroKey(key)
		if crypto.GetEthereumAddress(key) != derived {
			return fmt.Errorf("mnemonic does not derive the stored private key")
		}
	}
	return nil
}
