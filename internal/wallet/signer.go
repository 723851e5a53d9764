package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/tixly/tixly/internal/crypto"
)

// Signer authorizes transactions for a single address
type Signer interface {
	// Address returns the account the signer acts for
	Address() common.Address

	// SignTransaction signs tx for chainID
	SignTransaction(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)

	// SignMessage produces an EIP-191 personal signature
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// KeySigner signs with a private key held in process memory
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner binds a signer to key
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, address: crypto.GetEthereumAddress(key)}
}

// Address returns the signer's address
func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignTransaction signs tx with the latest signer for chainID
func (s *KeySigner) SignTransaction(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// SignMessage signs the EIP-191 hash of message
func (s *KeySigner) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	sig, err := ethcrypto.Sign(accountsTextHash(message), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// Wipe zeroes the key. The signer is unusable afterwards.
func (s *KeySigner) Wipe() {
	crypto.ZeroKey(s.key)
}

func accountsTextHash(message []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return ethcrypto.Keccak256([]byte(prefix), message)
}

// RemoteSigner asks an external wallet's JSON-RPC endpoint to sign
type RemoteSigner struct {
	client  *rpc.Client
	address common.Address
}

// NewRemoteSigner binds address to the wallet behind client
func NewRemoteSigner(client *rpc.Client, address common.Address) *RemoteSigner {
	return &RemoteSigner{client: client, address: address}
}

// Address returns the authorized account
func (s *RemoteSigner) Address() common.Address {
	return s.address
}

type signTxArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Data                 hexutil.Bytes   `json:"data"`
	ChainID              *hexutil.Big    `json:"chainId"`
}

type signTxResult struct {
	Raw hexutil.Bytes `json:"raw"`
}

// SignTransaction calls eth_signTransaction and decodes the raw result
func (s *RemoteSigner) SignTransaction(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	args := signTxArgs{
		From:    s.address,
		To:      tx.To(),
		Gas:     hexutil.Uint64(tx.Gas()),
		Value:   (*hexutil.Big)(tx.Value()),
		Nonce:   hexutil.Uint64(tx.Nonce()),
		Data:    tx.Data(),
		ChainID: (*hexutil.Big)(chainID),
	}
	if tx.Type() == types.DynamicFeeTxType {
		args.MaxFeePerGas = (*hexutil.Big)(tx.GasFeeCap())
		args.MaxPriorityFeePerGas = (*hexutil.Big)(tx.GasTipCap())
	} else {
		args.GasPrice = (*hexutil.Big)(tx.GasPrice())
	}

	var res signTxResult
	if err := s.client.CallContext(ctx, &res, "eth_signTransaction", args); err != nil {
		return nil, fmt.Errorf("wallet refused to sign: %w", err)
	}

	signed := new(types.Transaction)
	if err := signed.UnmarshalBinary(res.Raw); err != nil {
		return nil, fmt.Errorf("wallet returned an invalid transaction: %w", err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		return nil, fmt.Errorf("wallet returned an unsigned transaction: %w", err)
	}
	if sender != s.address {
		return nil, fmt.Errorf("wallet signed as %s, expected %s", sender.Hex(), s.address.Hex())
	}
	return signed, nil
}

// SignMessage calls personal_sign
func (s *RemoteSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	var sig hexutil.Bytes
	if err := s.client.CallContext(ctx, &sig, "personal_sign", hexutil.Bytes(message), s.address); err != nil {
		return nil, fmt.Errorf("wallet refused to sign: %w", err)
	}
	return sig, nil
}

var (
	_ Signer = (*KeySigner)(nil)
	_ Signer = (*RemoteSigner)(nil)
)
