package seal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	vault "github.com/hashicorp/vault/api"
)

// KMSAPI is the subset of *kms.Client that seals wallet records
type KMSAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// AWSKMSProvider seals the wallet record with a KMS symmetric key. The record
// is small enough to go through KMS directly, so no data key is involved.
type AWSKMSProvider struct {
	keyID  string
	client KMSAPI
}

// NewAWSKMSProvider resolves credentials through the default AWS chain
func NewAWSKMSProvider(keyID, region string) (*AWSKMSProvider, error) {
	if keyID == "" || region == "" {
		return nil, errors.New("aws-kms seal needs both a key ID and a region")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("aws-kms seal: load credentials: %w", err)
	}
	return NewAWSKMSProviderWithClient(keyID, kms.NewFromConfig(cfg)), nil
}

// NewAWSKMSProviderWithClient uses client as is
func NewAWSKMSProviderWithClient(keyID string, client KMSAPI) *AWSKMSProvider {
	return &AWSKMSProvider{keyID: keyID, client: client}
}

// Encrypt seals a serialized wallet record
func (p *AWSKMSProvider) Encrypt(ctx context.Context, record []byte) ([]byte, error) {
	out, err := p.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(p.keyID),
		Plaintext: record,
	})
	if err != nil {
		return nil, fmt.Errorf("aws-kms could not seal wallet record with %s: %w", p.keyID, err)
	}
	return out.CiphertextBlob, nil
}

// Decrypt opens a wallet record sealed under the same key
func (p *AWSKMSProvider) Decrypt(ctx context.Context, sealed []byte) ([]byte, error) {
	out, err := p.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          aws.String(p.keyID),
		CiphertextBlob: sealed,
	})
	if err != nil {
		return nil, fmt.Errorf("aws-kms could not open wallet record with %s: %w", p.keyID, err)
	}
	return out.Plaintext, nil
}

func (p *AWSKMSProvider) Name() string {
	return string(ProviderAWSKMS)
}

// VaultProvider seals the wallet record with a Vault transit key. The stored
// ciphertext is Vault's own "vault:vN:..." string.
type VaultProvider struct {
	key    string
	client *vault.Client
}

// NewVaultProvider authenticates to address with a static token
func NewVaultProvider(address, token, transitKey string) (*VaultProvider, error) {
	switch {
	case address == "":
		return nil, errors.New("vault seal needs an address")
	case token == "":
		return nil, errors.New("vault seal needs a token")
	case transitKey == "":
		return nil, errors.New("vault seal needs a transit key name")
	}

	cfg := vault.DefaultConfig()
	cfg.Address = address
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault seal: create client: %w", err)
	}
	client.SetToken(token)

	return &VaultProvider{key: transitKey, client: client}, nil
}

// Encrypt seals a serialized wallet record
func (p *VaultProvider) Encrypt(ctx context.Context, record []byte) ([]byte, error) {
	ciphertext, err := p.transit(ctx, "encrypt", "plaintext", base64.StdEncoding.EncodeToString(record), "ciphertext")
	if err != nil {
		return nil, err
	}
	return []byte(ciphertext), nil
}

// Decrypt opens a wallet record sealed under the same transit key
func (p *VaultProvider) Decrypt(ctx context.Context, sealed []byte) ([]byte, error) {
	encoded, err := p.transit(ctx, "decrypt", "ciphertext", string(sealed), "plaintext")
	if err != nil {
		return nil, err
	}
	record, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("vault returned a malformed wallet record: %w", err)
	}
	return record, nil
}

func (p *VaultProvider) Name() string {
	return string(ProviderVault)
}

// transit calls transit/<op>/<key> with one input field and returns one
// string field of the response.
func (p *VaultProvider) transit(ctx context.Context, op, in, value, out string) (string, error) {
	path := fmt.Sprintf("transit/%s/%s", op, p.key)
	secret, err := p.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{in: value})
	if err != nil {
		return "", fmt.Errorf("vault transit %s of wallet record failed: %w", op, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault transit %s of wallet record: empty response", op)
	}
	result, ok := secret.Data[out].(string)
	if !ok {
		return "", fmt.Errorf("vault transit %s of wallet record: response has no %s", op, out)
	}
	return result, nil
}
