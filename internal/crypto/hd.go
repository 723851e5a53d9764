package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

const hardenedOffset = hdkeychain.HardenedKeyStart

// DefaultDerivationPath is m/44'/60'/0'/0/0, the first account of the
// standard Ethereum BIP-44 tree.
var DefaultDerivationPath = []uint32{
	44 + hardenedOffset,
	60 + hardenedOffset,
	0 + hardenedOffset,
	0,
	0,
}

// ErrInvalidMnemonic is returned for phrases that fail the BIP-39 checksum
var ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")

// NewMnemonic returns a fresh 12-word phrase backed by 128 bits of crypto/rand entropy
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to build mnemonic: %w", err)
	}
	return mnemonic, nil
}

// NormalizeMnemonic collapses whitespace and lower-cases the phrase
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// IsValidMnemonic reports whether the phrase passes the BIP-39 checksum
func IsValidMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic))
}

// KeyFromMnemonic derives the key at DefaultDerivationPath
func KeyFromMnemonic(mnemonic string) (*ecdsa.PrivateKey, error) {
	return DeriveKey(mnemonic, DefaultDerivationPath)
}

// DeriveKey derives the private key for path from a BIP-39 phrase (no passphrase)
func DeriveKey(mnemonic string, path []uint32) (*ecdsa.PrivateKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(NormalizeMnemonic(mnemonic), "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return deriveFromSeed(seed, path)
}

// deriveFromSeed walks the BIP-32 private derivation chain.
func deriveFromSeed(seed []byte, path []uint32) (*ecdsa.PrivateKey, error) {
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("invalid master key: %w", err)
	}

	for _, index := range path {
		key, err = key.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("invalid child key at index %d: %w", index, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to extract private key: %w", err)
	}
	defer priv.Zero()

	return crypto.ToECDSA(priv.Serialize())
}
