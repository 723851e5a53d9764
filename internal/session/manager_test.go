package session_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tixly/tixly/internal/crypto"
	"github.com/tixly/tixly/internal/eth"
	"github.com/tixly/tixly/internal/metrics"
	"github.com/tixly/tixly/internal/session"
	"github.com/tixly/tixly/internal/wallet"
	apperrors "github.com/tixly/tixly/pkg/errors"
	"github.com/tixly/tixly/pkg/types"
	"github.com/tixly/tixly/tests/mocks"
	"github.com/tixly/tixly/tests/testutil"
)

const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var devAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type harness struct {
	manager  *session.Manager
	store    *mocks.MockRecordStore
	backend  *mocks.MockBackend
	opener   *mocks.MockOpener
	provider *mocks.MockWalletProvider

	mu       sync.Mutex
	statuses []types.SessionStatus
}

type harnessOpts struct {
	reachable   bool
	readyAfter  int
	timeout     time.Duration
	mockEnabled bool
}

func newHarness(t *testing.T, o harnessOpts) *harness {
	t.Helper()
	if o.timeout == 0 {
		o.timeout = 5 * time.Second
	}

	h := &harness{
		store:    mocks.NewMockRecordStore(),
		backend:  mocks.NewMockBackend(11155111),
		opener:   mocks.NewMockOpener(),
		provider: mocks.NewMockWalletProvider(devAddress, o.readyAfter),
	}
	chain := eth.NewClient(h.backend, big.NewInt(11155111))
	key, err := crypto.HexToPrivateKey(devKey)
	require.NoError(t, err)
	h.provider.WithSigner(wallet.NewKeySigner(key))

	external := wallet.NewExternalWalletStrategy(wallet.ExternalConfig{
		Scheme:       "metamask://",
		DappURL:      "https://tixly.app",
		PollInterval: 5 * time.Millisecond,
		Timeout:      o.timeout,
	}, mocks.NewMockProbe(o.reachable), h.opener, h.provider, chain)

	h.manager, err = session.New(session.Options{
		LocalKey:    wallet.NewLocalKeyStrategy(h.store, chain, ""),
		External:    external,
		Store:       h.store,
		Chain:       chain,
		MockEnabled: o.mockEnabled,
		Metrics:     metrics.New(),
	})
	require.NoError(t, err)

	h.manager.Subscribe(func(s types.Session) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.statuses = append(h.statuses, s.Status)
	})
	return h
}

func (h *harness) seen() []types.SessionStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.SessionStatus(nil), h.statuses...)
}

func (h *harness) waitConnecting(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.manager.Snapshot().Status == types.StatusConnecting && h.provider.Polls() > 0
	}, 2*time.Second, time.Millisecond)
}

func TestNew_Validation(t *testing.T) {
	_, err := session.New(session.Options{Store: mocks.NewMockRecordStore()})
	assert.Error(t, err)

	_, err = session.New(session.Options{LocalKey: &wallet.LocalKeyStrategy{}})
	assert.Error(t, err)
}

func TestManager_FreshInstall(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOpts{})

	assert.Equal(t, types.StatusDisconnected, h.manager.Snapshot().Status)

	s := h.manager.Initialize(ctx)
	assert.Equal(t, types.StatusDisconnected, s.Status)
	assert.Empty(t, s.Reason)
	assert.Equal(t, []types.SessionStatus{types.StatusConnecting, types.StatusDisconnected}, h.seen())

	s, err := h.manager.Connect(ctx, types.StrategyLocalKey)
	require.NoError(t, err)
	assert.Equal(t, types.StatusConnected, s.Status)
	assert.Equal(t, types.StrategyLocalKey, s.Strategy)
	assert.False(t, s.ReadOnly)
	assert.Equal(t, "0", s.Balance)
	require.NotNil(t, s.ConnectedAt)

	rec := h.store.Record()
	require.NotNil(t, rec)
	assert.Equal(t, s.Address, rec.Address)

	signer, ok := h.manager.Signer()
	require.True(t, ok)
	assert.Equal(t, s.Address, signer.Address().Hex())

	s = h.manager.Disconnect(ctx)
	assert.Equal(t, types.StatusDisconnected, s.Status)
	assert.Empty(t, s.Address)
	assert.Nil(t, h.store.Record())

	_, ok = h.manager.Signer()
	assert.False(t, ok)

	s = h.manager.Initialize(ctx)
	assert.Equal(t, types.StatusDisconnected, s.Status)
}

func TestManager_InitializeRestores(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOpts{})
	h.store.Put(&types.WalletRecord{Address: devAddress.Hex(), PrivateKey: devKey})
	h.backend.SetBalance(devAddress, testutil.Ether("2.5"))

	s := h.manager.Initialize(ctx)
	assert.Equal(t, types.StatusConnected, s.Status)
	assert.Equal(t, devAddress.Hex(), s.Address)
	assert.Equal(t, "2.5", s.Balance)
	assert.Equal(t, types.StrategyLocalKey, s.Strategy)
}

func TestManager_InitializeStoreFailure(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.store.FailLoad = true

	s := h.manager.Initialize(context.Background())
	assert.Equal(t, types.StatusDisconnected, s.Status)
	assert.Empty(t, s.Reason)
}

func TestManager_ConnectWhileConnectedIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOpts{})

	first, err := h.manager.Connect(ctx, types.StrategyLocalKey)
	require.NoError(t, err)

	second, err := h.manager.Connect(ctx, types.StrategyLocalKey)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Address, second.Address)
	assert.Equal(t, 1, h.store.SaveCalls())
}

func TestManager_ConcurrentConnect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOpts{reachable: true})

	type result struct {
		s   types.Session
		err error
	}
	firstDone := make(chan result, 1)
	go func() {
		s, err := h.manager.Connect(ctx, types.StrategyExternalWallet)
		firstDone <- result{s, err}
	}()
	h.waitConnecting(t)

	t.Run("second call returns current state", func(t *testing.T) {
		s, err := h.manager.Connect(ctx, types.StrategyExternalWallet)
		require.NoError(t, err)
		assert.Equal(t, types.StatusConnecting, s.Status)

		s, err = h.manager.Connect(ctx, types.StrategyLocalKey)
		require.NoError(t, err)
		assert.Equal(t, types.StatusConnecting, s.Status)
		assert.Equal(t, 0, h.store.SaveCalls())
	})

	t.Run("import reports busy", func(t *testing.T) {
		_, err := h.manager.Import(ctx, session.ImportRequest{PrivateKey: devKey})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBusy))
	})

	assert.Len(t, h.opener.Opened(), 1)

	require.True(t, h.manager.CancelConnect())
	res := <-firstDone
	assert.True(t, apperrors.HasCode(res.err, apperrors.ErrCodeUserCancelled))
	assert.Equal(t, types.StatusDisconnected, res.s.Status)
	assert.Equal(t, apperrors.ErrCodeUserCancelled, res.s.Reason)
	assert.False(t, h.manager.CancelConnect())
}

func TestManager_ExternalSuccess(t *testing.T) {
	h := newHarness(t, harnessOpts{reachable: true, readyAfter: 3})
	h.backend.SetBalance(devAddress, testutil.Ether("0.25"))

	s, err := h.manager.Connect(context.Background(), types.StrategyExternalWallet)
	require.NoError(t, err)
	assert.Equal(t, types.StatusConnected, s.Status)
	assert.Equal(t, devAddress.Hex(), s.Address)
	assert.Equal(t, "0.25", s.Balance)
	assert.Equal(t, types.StrategyExternalWallet, s.Strategy)
	assert.Nil(t, h.store.Record())
}

func TestManager_ConnectFailures(t *testing.T) {
	tests := []struct {
		name   string
		opts   harnessOpts
		kind   types.StrategyKind
		reason string
	}{
		{"wallet not installed", harnessOpts{}, types.StrategyExternalWallet, apperrors.ErrCodeNotInstalled},
		{"handshake timeout", harnessOpts{reachable: true, timeout: 30 * time.Millisecond}, types.StrategyExternalWallet, apperrors.ErrCodeTimeout},
		{"mock disabled", harnessOpts{}, types.StrategyMock, apperrors.ErrCodeInvalidInput},
		{"unknown strategy", harnessOpts{}, types.StrategyKind("ledger"), apperrors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts)

			s, err := h.manager.Connect(context.Background(), tt.kind)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.reason), "got %v", err)
			assert.Equal(t, types.StatusDisconnected, s.Status)
			assert.True(t, apperrors.IsConnectReason(tt.reason))
		})
	}
}

func TestManager_NotInstalledCarriesStoreLink(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	s, err := h.manager.Connect(context.Background(), types.StrategyExternalWallet)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.NotEmpty(t, appErr.Link)
	assert.Equal(t, apperrors.ErrCodeNotInstalled, s.Reason)
	assert.Empty(t, h.opener.Opened())
	assert.Equal(t, []types.SessionStatus{
		types.StatusConnecting, types.StatusError, types.StatusDisconnected,
	}, h.seen())
}

func TestManager_StorageFailureSurfacesAsNetworkError(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.store.FailSave = true

	s, err := h.manager.Connect(context.Background(), types.StrategyLocalKey)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNetworkError))
	assert.Equal(t, types.StatusDisconnected, s.Status)
	assert.Nil(t, h.store.Record())
}

func TestManager_Mock(t *testing.T) {
	h := newHarness(t, harnessOpts{mockEnabled: true})

	s, err := h.manager.Connect(context.Background(), types.StrategyMock)
	require.NoError(t, err)
	assert.Equal(t, wallet.MockAddress.Hex(), s.Address)
	assert.True(t, s.ReadOnly)
	assert.Nil(t, h.store.Record())

	_, ok := h.manager.Signer()
	assert.False(t, ok)

	balance, err := h.manager.RefreshBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0", balance)
	assert.Equal(t, 0, h.backend.BalanceCalls())
}

func TestManager_Import(t *testing.T) {
	ctx := context.Background()

	t.Run("private key", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		s, err := h.manager.Import(ctx, session.ImportRequest{PrivateKey: devKey})
		require.NoError(t, err)
		assert.Equal(t, devAddress.Hex(), s.Address)
		require.NotNil(t, h.store.Record())
		assert.Equal(t, devAddress.Hex(), h.store.Record().Address)

		_, err = h.manager.Import(ctx, session.ImportRequest{PrivateKey: devKey})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBusy))
	})

	t.Run("mnemonic", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		s, err := h.manager.Import(ctx, session.ImportRequest{
			Mnemonic: "test test test test test test test test test test test junk",
		})
		require.NoError(t, err)
		assert.Equal(t, devAddress.Hex(), s.Address)
	})

	t.Run("invalid input", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		for _, req := range []session.ImportRequest{
			{},
			{PrivateKey: devKey, Mnemonic: "a b c"},
			{PrivateKey: "0x1234"},
			{Mnemonic: "not a valid phrase"},
		} {
			_, err := h.manager.Import(ctx, req)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput), "req %+v: %v", req, err)
		}
		assert.Equal(t, types.StatusDisconnected, h.manager.Snapshot().Status)
		assert.Nil(t, h.store.Record())
	})
}

func TestManager_DisconnectDuringConnect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOpts{reachable: true})

	errCh := make(chan error, 1)
	go func() {
		_, err := h.manager.Connect(ctx, types.StrategyExternalWallet)
		errCh <- err
	}()
	h.waitConnecting(t)

	s := h.manager.Disconnect(ctx)
	assert.Equal(t, types.StatusDisconnected, s.Status)

	select {
	case err := <-errCh:
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUserCancelled))
	case <-time.After(time.Second):
		t.Fatal("connect did not return after disconnect")
	}

	polls := h.provider.Polls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, polls, h.provider.Polls(), "polling continued after disconnect")

	assert.Equal(t, types.StatusDisconnected, h.manager.Snapshot().Status)
	assert.Equal(t, types.StatusDisconnected, h.manager.Initialize(ctx).Status)
}

func TestManager_DisconnectIgnoresStoreErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOpts{})
	_, err := h.manager.Connect(ctx, types.StrategyLocalKey)
	require.NoError(t, err)

	h.store.FailClear = true
	s := h.manager.Disconnect(ctx)
	assert.Equal(t, types.StatusDisconnected, s.Status)
	assert.Equal(t, 1, h.store.ClearCalls())
}

func TestManager_DisconnectTimeoutDuringSave(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOpts{})

	saving := make(chan struct{})
	release := make(chan struct{})
	h.store.SaveHook = func(context.Context) {
		close(saving)
		<-release
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := h.manager.Connect(ctx, types.StrategyLocalKey)
		errCh <- err
	}()
	<-saving

	disconnectCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	s := h.manager.Disconnect(disconnectCtx)
	assert.Equal(t, types.StatusDisconnected, s.Status)
	assert.Equal(t, 1, h.store.ClearCalls())

	close(release)
	select {
	case err := <-errCh:
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUserCancelled), "got %v", err)
	case <-time.After(time.Second):
		t.Fatal("connect did not return after save was released")
	}

	assert.Nil(t, h.store.Record(), "disconnected session left a stored wallet")
	assert.Equal(t, 2, h.store.ClearCalls())
	assert.Equal(t, types.StatusDisconnected, h.manager.Snapshot().Status)
	assert.Equal(t, types.StatusDisconnected, h.manager.Initialize(ctx).Status)
}

func TestManager_DisconnectClearsWithExpiredContext(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	_, err := h.manager.Connect(context.Background(), types.StrategyLocalKey)
	require.NoError(t, err)
	require.NotNil(t, h.store.Record())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := h.manager.Disconnect(ctx)
	assert.Equal(t, types.StatusDisconnected, s.Status)
	assert.Nil(t, h.store.Record())
}

func TestManager_RefreshBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a session", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		_, err := h.manager.RefreshBalance(ctx)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotConnected))
	})

	t.Run("updates balance", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		s, err := h.manager.Import(ctx, session.ImportRequest{PrivateKey: devKey})
		require.NoError(t, err)
		assert.Equal(t, "0", s.Balance)

		h.backend.SetBalance(devAddress, testutil.Ether("1.75"))
		balance, err := h.manager.RefreshBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, "1.75", balance)
		assert.Equal(t, "1.75", h.manager.Snapshot().Balance)
	})

	t.Run("failure keeps cached balance", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		h.backend.SetBalance(devAddress, testutil.Ether("3"))
		_, err := h.manager.Import(ctx, session.ImportRequest{PrivateKey: devKey})
		require.NoError(t, err)

		h.backend.BalanceErr = errors.New("rpc unavailable")
		_, err = h.manager.RefreshBalance(ctx)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNetworkError))
		assert.Equal(t, "3", h.manager.Snapshot().Balance)
		assert.Equal(t, types.StatusConnected, h.manager.Snapshot().Status)
	})

	t.Run("stale result is discarded", func(t *testing.T) {
		h := newHarness(t, harnessOpts{})
		_, err := h.manager.Import(ctx, session.ImportRequest{PrivateKey: devKey})
		require.NoError(t, err)

		started := make(chan struct{})
		release := make(chan struct{})
		h.backend.SetBalance(devAddress, testutil.Ether("9"))
		h.backend.BalanceHook = func(context.Context) {
			close(started)
			<-release
		}

		errCh := make(chan error, 1)
		go func() {
			_, err := h.manager.RefreshBalance(ctx)
			errCh <- err
		}()

		<-started
		h.manager.Disconnect(ctx)
		close(release)

		err = <-errCh
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotConnected))
		s := h.manager.Snapshot()
		assert.Equal(t, types.StatusDisconnected, s.Status)
		assert.Empty(t, s.Balance)
	})
}

func TestManager_SubscribeUnsubscribe(t *testing.T) {
	h := newHarness(t, harnessOpts{mockEnabled: true})

	var count int
	unsubscribe := h.manager.Subscribe(func(types.Session) { count++ })
	_, err := h.manager.Connect(context.Background(), types.StrategyMock)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	unsubscribe()
	h.manager.Disconnect(context.Background())
	assert.Equal(t, 2, count)
}

func TestManager_ListenerMayReadSnapshot(t *testing.T) {
	h := newHarness(t, harnessOpts{mockEnabled: true})

	var observed []types.SessionStatus
	h.manager.Subscribe(func(s types.Session) {
		current := h.manager.Snapshot()
		assert.Equal(t, s.Status, current.Status)
		observed = append(observed, current.Status)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		_, err := h.manager.Connect(ctx, types.StrategyMock)
		assert.NoError(t, err)
		h.manager.Disconnect(ctx)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener calling Snapshot deadlocked the manager")
	}
	assert.Equal(t, []types.SessionStatus{
		types.StatusConnecting,
		types.StatusConnected,
		types.StatusDisconnected,
	}, observed)
}
