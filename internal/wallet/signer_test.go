package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tixly/tixly/internal/crypto"
)

const devKeyHex = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var devAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func testTx() *types.Transaction {
	to := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(11155111),
		Nonce:     3,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(42),
	})
}

func TestKeySigner(t *testing.T) {
	key, err := crypto.HexToPrivateKey(devKeyHex)
	require.NoError(t, err)
	s := NewKeySigner(key)
	assert.Equal(t, devAddress, s.Address())

	chainID := big.NewInt(11155111)
	signed, err := s.SignTransaction(context.Background(), testTx(), chainID)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, devAddress, sender)

	t.Run("personal message", func(t *testing.T) {
		msg := []byte("hello tixly")
		sig, err := s.SignMessage(context.Background(), msg)
		require.NoError(t, err)
		require.Len(t, sig, 65)

		sig[64] -= 27
		pub, err := ethcrypto.SigToPub(accountsTextHash(msg), sig)
		require.NoError(t, err)
		assert.Equal(t, devAddress, ethcrypto.PubkeyToAddress(*pub))
	})
}

// walletServer simulates an external wallet that signs with key.
func walletServer(t *testing.T, keyHex string) *httptest.Server {
	t.Helper()
	key, err := crypto.HexToPrivateKey(keyHex)
	require.NoError(t, err)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		reply := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "eth_accounts":
			reply["result"] = []string{crypto.GetEthereumAddress(key).Hex()}
		case "eth_signTransaction":
			var args signTxArgs
			if err := json.Unmarshal(req.Params[0], &args); err != nil {
				reply["error"] = map[string]interface{}{"code": -32602, "message": err.Error()}
				break
			}
			tx := types.NewTx(&types.DynamicFeeTx{
				ChainID:   args.ChainID.ToInt(),
				Nonce:     uint64(args.Nonce),
				GasTipCap: args.MaxPriorityFeePerGas.ToInt(),
				GasFeeCap: args.MaxFeePerGas.ToInt(),
				Gas:       uint64(args.Gas),
				To:        args.To,
				Value:     args.Value.ToInt(),
				Data:      args.Data,
			})
			signed, err := types.SignTx(tx, types.LatestSignerForChainID(args.ChainID.ToInt()), key)
			if err != nil {
				reply["error"] = map[string]interface{}{"code": -32000, "message": err.Error()}
				break
			}
			raw, _ := signed.MarshalBinary()
			reply["result"] = map[string]interface{}{"raw": hexutil.Bytes(raw)}
		default:
			reply["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	}))
}

func TestRemoteSigner(t *testing.T) {
	server := walletServer(t, devKeyHex)
	defer server.Close()

	client, err := rpc.Dial(server.URL)
	require.NoError(t, err)
	defer client.Close()

	chainID := big.NewInt(11155111)

	t.Run("signs through the wallet", func(t *testing.T) {
		s := NewRemoteSigner(client, devAddress)
		tx := testTx()

		signed, err := s.SignTransaction(context.Background(), tx, chainID)
		require.NoError(t, err)
		assert.Equal(t, tx.Nonce(), signed.Nonce())
		assert.Equal(t, tx.Value(), signed.Value())
	})

	t.Run("rejects a signature from another account", func(t *testing.T) {
		other := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
		s := NewRemoteSigner(client, other)

		_, err := s.SignTransaction(context.Background(), testTx(), chainID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wallet signed as")
	})
}

func TestRPCProvider_Accounts(t *testing.T) {
	server := walletServer(t, devKeyHex)
	defer server.Close()

	p, err := DialProvider(context.Background(), server.URL)
	require.NoError(t, err)
	defer p.Close()

	accounts, err := p.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, devAddress, accounts[0])
	assert.Equal(t, devAddress, p.Signer(accounts[0]).Address())
}
