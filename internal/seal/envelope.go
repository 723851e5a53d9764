package seal

import (
	"context"
	"encoding/json"
	"fmt"
)

// Envelope is the stored form of a sealed payload
type Envelope struct {
	Provider   string `json:"provider"`
	Ciphertext []byte `json:"ciphertext"`
}

// Seal encrypts plaintext with p and marshals the envelope
func Seal(ctx context.Context, p Provider, plaintext []byte) ([]byte, error) {
	ct, err := p.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("seal with %s: %w", p.Name(), err)
	}
	return json.Marshal(Envelope{Provider: p.Name(), Ciphertext: ct})
}

// Open unmarshals an envelope and decrypts it with p. The envelope must have
// been sealed by a provider of the same name.
func Open(ctx context.Context, p Provider, data []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid sealed envelope: %w", err)
	}
	if env.Provider == "" {
		return nil, fmt.Errorf("invalid sealed envelope: missing provider")
	}
	if env.Provider != p.Name() {
		return nil, fmt.Errorf("record sealed with %q, configured provider is %q", env.Provider, p.Name())
	}

	plaintext, err := p.Decrypt(ctx, env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("open with %s: %w", p.Name(), err)
	}
	return plaintext, nil
}
