// Package seal protects the persisted wallet record at rest. A Provider
// encrypts and decrypts opaque bytes; Envelope records which provider sealed
// a payload.
package seal

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Provider is an interface for at-rest encryption backends
type Provider interface {
	// Encrypt encrypts data
	Encrypt(ctx context.Context, data []byte) ([]byte, error)

	// Decrypt decrypts data produced by Encrypt
	Decrypt(ctx context.Context, encryptedData []byte) ([]byte, error)

	// Name returns the provider name (e.g., "local", "aws-kms", "vault")
	Name() string
}

// ProviderType represents supported providers
type ProviderType string

const (
	// ProviderNone stores the record as plaintext
	ProviderNone ProviderType = "none"

	// ProviderLocal uses a local 32-byte master key with AES-GCM
	ProviderLocal ProviderType = "local"

	// ProviderPassphrase derives an AES-GCM key from a passphrase with scrypt
	ProviderPassphrase ProviderType = "passphrase"

	// ProviderAWSKMS uses AWS KMS
	ProviderAWSKMS ProviderType = "aws-kms"

	// ProviderVault uses the HashiCorp Vault Transit engine
	ProviderVault ProviderType = "vault"
)

// Config contains configuration for seal providers
type Config struct {
	Provider string

	LocalMasterKeyHex string
	Passphrase        string

	AWSKMSKeyID  string
	AWSKMSRegion string

	VaultAddress    string
	VaultToken      string
	VaultTransitKey string
}

// NoneProvider passes data through unchanged
type NoneProvider struct{}

// Encrypt returns a copy of data
func (NoneProvider) Encrypt(_ context.Context, data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// Decrypt returns a copy of data
func (NoneProvider) Decrypt(_ context.Context, data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// Name returns the provider name
func (NoneProvider) Name() string {
	return string(ProviderNone)
}

// LocalProvider implements Provider using a local master key with AES-GCM
type LocalProvider struct {
	masterKey []byte
}

// NewLocalProvider creates a provider from a hex-encoded 32-byte key
func NewLocalProvider(masterKeyHex string) (*LocalProvider, error) {
	if masterKeyHex == "" {
		return nil, fmt.Errorf("master key is required for local seal provider")
	}

	masterKey, err := hex.DecodeString(strings.TrimPrefix(masterKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("master key must be hex encoded: %w", err)
	}
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(masterKey))
	}

	return &LocalProvider{masterKey: masterKey}, nil
}

// Encrypt encrypts data using AES-GCM with the local master key
func (p *LocalProvider) Encrypt(_ context.Context, data []byte) ([]byte, error) {
	return gcmSeal(p.masterKey, data)
}

// Decrypt decrypts data using AES-GCM with the local master key
func (p *LocalProvider) Decrypt(_ context.Context, encryptedData []byte) ([]byte, error) {
	return gcmOpen(p.masterKey, encryptedData)
}

// Name returns the provider name
func (p *LocalProvider) Name() string {
	return string(ProviderLocal)
}

// scrypt parameters. N=2^15 keeps unlock under a second on small machines.
var (
	scryptN = 1 << 15
)

const (
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 32
)

// PassphraseProvider derives a fresh key per encryption from a passphrase.
// Output layout: salt || nonce || ciphertext.
type PassphraseProvider struct {
	passphrase []byte
}

// NewPassphraseProvider creates a passphrase-based provider
func NewPassphraseProvider(passphrase string) (*PassphraseProvider, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase is required for passphrase seal provider")
	}
	return &PassphraseProvider{passphrase: []byte(passphrase)}, nil
}

// Encrypt encrypts data under a key derived from the passphrase and a random salt
func (p *PassphraseProvider) Encrypt(_ context.Context, data []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := scrypt.Key(p.passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	sealed, err := gcmSeal(key, data)
	if err != nil {
		return nil, err
	}
	return append(salt, sealed...), nil
}

// Decrypt reverses Encrypt. A wrong passphrase surfaces as a decrypt failure.
func (p *PassphraseProvider) Decrypt(_ context.Context, encryptedData []byte) ([]byte, error) {
	if len(encryptedData) < saltLen {
		return nil, fmt.Errorf("ciphertext too short")
	}
	salt, rest := encryptedData[:saltLen], encryptedData[saltLen:]

	key, err := scrypt.Key(p.passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	plaintext, err := gcmOpen(key, rest)
	if err != nil {
		return nil, fmt.Errorf("invalid passphrase: %w", err)
	}
	return plaintext, nil
}

// Name returns the provider name
func (p *PassphraseProvider) Name() string {
	return string(ProviderPassphrase)
}

func gcmSeal(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

func gcmOpen(key, encryptedData []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(encryptedData) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := encryptedData[:nonceSize], encryptedData[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// NewProvider creates a Provider based on the configuration
func NewProvider(cfg *Config) (Provider, error) {
	provider := ProviderType(cfg.Provider)

	switch provider {
	case ProviderNone, "":
		return NoneProvider{}, nil

	case ProviderLocal:
		return NewLocalProvider(cfg.LocalMasterKeyHex)

	case ProviderPassphrase:
		return NewPassphraseProvider(cfg.Passphrase)

	case ProviderAWSKMS:
		return NewAWSKMSProvider(cfg.AWSKMSKeyID, cfg.AWSKMSRegion)

	case ProviderVault:
		return NewVaultProvider(cfg.VaultAddress, cfg.VaultToken, cfg.VaultTransitKey)

	default:
		return nil, fmt.Errorf("unsupported seal provider: %s (supported: %s, %s, %s, %s, %s)",
			provider, ProviderNone, ProviderLocal, ProviderPassphrase, ProviderAWSKMS, ProviderVault)
	}
}

var (
	_ Provider = NoneProvider{}
	_ Provider = (*LocalProvider)(nil)
	_ Provider = (*PassphraseProvider)(nil)
	_ Provider = (*AWSKMSProvider)(nil)
	_ Provider = (*VaultProvider)(nil)
)
