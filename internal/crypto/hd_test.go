package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFromMnemonic_KnownVector(t *testing.T) {
	key, err := KeyFromMnemonic(devMnemonic)
	require.NoError(t, err)

	assert.Equal(t, devPrivateKey, PrivateKeyToHex(key))
	assert.Equal(t, devAddress, GetEthereumAddress(key).Hex())
}

func TestKeyFromMnemonic_Normalizes(t *testing.T) {
	messy := "  TEST test\ttest test test test test test test test test   JUNK "
	key, err := KeyFromMnemonic(messy)
	require.NoError(t, err)
	assert.Equal(t, devAddress, GetEthereumAddress(key).Hex())
}

func TestKeyFromMnemonic_Invalid(t *testing.T) {
	_, err := KeyFromMnemonic("test test test test test test test test test test test test")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMnemonic)

	_, err = KeyFromMnemonic("not a mnemonic")
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestNewMnemonic(t *testing.T) {
	m1, err := NewMnemonic()
	require.NoError(t, err)
	m2, err := NewMnemonic()
	require.NoError(t, err)

	assert.Len(t, strings.Fields(m1), 12)
	assert.True(t, IsValidMnemonic(m1))
	assert.NotEqual(t, m1, m2)

	k1, err := KeyFromMnemonic(m1)
	require.NoError(t, err)
	k1again, err := KeyFromMnemonic(m1)
	require.NoError(t, err)
	assert.Equal(t, GetEthereumAddress(k1), GetEthereumAddress(k1again))
}

func TestDeriveKey_PathsDiffer(t *testing.T) {
	second := append([]uint32(nil), DefaultDerivationPath...)
	second[len(second)-1] = 1

	k0, err := DeriveKey(devMnemonic, DefaultDerivationPath)
	require.NoError(t, err)
	k1, err := DeriveKey(devMnemonic, second)
	require.NoError(t, err)

	assert.NotEqual(t, GetEthereumAddress(k0), GetEthereumAddress(k1))
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", GetEthereumAddress(k1).Hex())
}

func TestDeriveFromSeed_BIP32Vector(t *testing.T) {
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)

	tests := []struct {
		path []uint32
		want string
	}{
		{path: nil, want: "e8f32e723decf4051aefac8e2c93c9c5b214313817cdb01a1494b917c8436b35"},
		{path: []uint32{hardenedOffset}, want: "edb2e14f9ee77d26dd93b4ecede8d16ed408ce149b6cd80b0715a2d911a0afea"},
		{path: []uint32{hardenedOffset, 1}, want: "3c6cb8d0f6a264c91ea8b5030fadaa8e538b020f0a387421a12de9319dc93368"},
	}
	for _, tt := range tests {
		key, err := deriveFromSeed(seed, tt.path)
		require.NoError(t, err)
		assert.Equal(t, "0x"+tt.want, PrivateKeyToHex(key), "path %v", tt.path)
	}
}
