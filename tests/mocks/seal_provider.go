// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
)

// MockSealProvider is a seal provider backed by a random in-memory key.
type MockSealProvider struct {
	mu           sync.RWMutex
	masterKey    []byte
	encryptCalls int
	decryptCalls int
	shouldFail   bool
}

// NewMockSealProvider creates a new mock seal provider.
func NewMockSealProvider() *MockSealProvider {
	key := make([]byte, 32)
	rand.Read(key)
	return &MockSealProvider{masterKey: key}
}

// Encrypt encrypts data using AES-GCM (real encryption for realistic testing).
func (m *MockSealProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.encryptCalls++
	if m.shouldFail {
		return nil, fmt.Errorf("mock seal encrypt failure")
	}

	gcm, err := m.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts data using AES-GCM.
func (m *MockSealProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decryptCalls++
	if m.shouldFail {
		return nil, fmt.Errorf("mock seal decrypt failure")
	}

	gcm, err := m.gcm()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func (m *MockSealProvider) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(m.masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Name returns the provider name.
func (m *MockSealProvider) Name() string {
	return "mock"
}

// SetShouldFail configures the mock to fail on all calls.
func (m *MockSealProvider) SetShouldFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
}

// GetEncryptCalls returns the number of encrypt calls.
func (m *MockSealProvider) GetEncryptCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.encryptCalls
}

// GetDecryptCalls returns the number of decrypt calls.
func (m *MockSealProvider) GetDecryptCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.decryptCalls
}
