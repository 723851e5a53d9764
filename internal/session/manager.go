// Package session owns the process-wide wallet session: which strategy
// produced it, its signer, cached balance, and the connect/disconnect
// lifecycle.
package session

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/tixly/tixly/internal/logger"
	"github.com/tixly/tixly/internal/metrics"
	"github.com/tixly/tixly/internal/units"
	"github.com/tixly/tixly/internal/wallet"
	apperrors "github.com/tixly/tixly/pkg/errors"
	"github.com/tixly/tixly/pkg/types"
)

// Options wires the manager's collaborators. LocalKey and Store are
// required; External and Chain may be nil.
type Options struct {
	LocalKey *wallet.LocalKeyStrategy
	External wallet.Strategy
	Store    wallet.RecordStore
	Chain    wallet.BalanceReader

	// MockEnabled allows the mock strategy; it is meant for setups without
	// a chain endpoint.
	MockEnabled bool

	Metrics *metrics.Metrics
	Now     func() time.Time
}

// ImportRequest carries exactly one of PrivateKey or Mnemonic
type ImportRequest struct {
	PrivateKey string `json:"private_key,omitempty"`
	Mnemonic   string `json:"mnemonic,omitempty"`
}

// Listener observes state changes. Listeners run after the manager's lock is
// released, one snapshot at a time in publication order, and may call back
// into the Manager.
type Listener func(types.Session)

// Manager is the single mutator of session state. At most one initialize,
// connect or import runs at a time.
type Manager struct {
	mu sync.Mutex

	local       *wallet.LocalKeyStrategy
	strategies  map[types.StrategyKind]wallet.Strategy
	store       wallet.RecordStore
	chain       wallet.BalanceReader
	mockEnabled bool
	metrics     *metrics.Metrics
	now         func() time.Time

	session types.Session
	balance *big.Int
	signer  wallet.Signer

	inFlight bool
	cancel   context.CancelFunc
	done     chan struct{}

	listeners    map[int]Listener
	nextListener int
	pending      []types.Session
	delivering   bool
}

// New creates a Disconnected manager. Call Initialize once at startup.
func New(opts Options) (*Manager, error) {
	if opts.LocalKey == nil {
		return nil, fmt.Errorf("local key strategy is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	strategies := map[types.StrategyKind]wallet.Strategy{
		types.StrategyMock:     wallet.MockStrategy{},
		types.StrategyLocalKey: opts.LocalKey,
	}
	if opts.External != nil {
		strategies[types.StrategyExternalWallet] = opts.External
	}

	m := &Manager{
		local:       opts.LocalKey,
		strategies:  strategies,
		store:       opts.Store,
		chain:       opts.Chain,
		mockEnabled: opts.MockEnabled,
		metrics:     opts.Metrics,
		now:         opts.Now,
		session:     types.Session{Status: types.StatusDisconnected},
		listeners:   make(map[int]Listener),
	}
	m.metrics.SetSessionState(types.StatusDisconnected)
	return m, nil
}

// Subscribe registers l and returns a function that removes it
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextListener
	m.nextListener++
	m.listeners[id] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Snapshot returns the current session
func (m *Manager) Snapshot() types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Signer returns the active signer. ok is false when disconnected or when the
// session is read-only.
func (m *Manager) Signer() (wallet.Signer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Status != types.StatusConnected || m.signer == nil {
		return nil, false
	}
	return m.signer, true
}

// Active returns the session together with its signer, read atomically.
// The signer is nil for read-only sessions.
func (m *Manager) Active() (types.Session, wallet.Signer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Status != types.StatusConnected {
		return m.snapshotLocked(), nil
	}
	return m.snapshotLocked(), m.signer
}

// Initialize attempts a silent restore of the stored local-key wallet. It
// never fails: absence and errors both settle to Disconnected.
func (m *Manager) Initialize(ctx context.Context) types.Session {
	attemptCtx, ok := m.begin(ctx, types.StrategyLocalKey)
	if !ok {
		return m.Snapshot()
	}

	m.mu.Lock()
	id := m.session.ID
	m.mu.Unlock()

	acq, err := m.local.Restore(attemptCtx)

	m.mu.Lock()
	defer m.unlock()
	defer m.finishLocked()

	switch {
	case m.session.ID != id:
		wipe(acq)
	case err != nil:
		logger.Warn(ctx, "session restore failed", "error", err)
		m.metrics.ConnectAttempt(types.StrategyLocalKey, "restore_failed")
		m.resetLocked("")
	case acq == nil:
		logger.Info(ctx, "no stored wallet, starting disconnected")
		m.metrics.ConnectAttempt(types.StrategyLocalKey, "absent")
		m.resetLocked("")
	default:
		m.metrics.ConnectAttempt(types.StrategyLocalKey, "restored")
		m.connectedLocked(types.StrategyLocalKey, acq)
		logger.Info(ctx, "session restored", "address", acq.Address.Hex())
	}
	return m.snapshotLocked()
}

// Connect acquires a signer with the named strategy. While another attempt
// is in flight or a session is connected, it does nothing and returns the
// current session. Failures carry a reason from the closed connect set.
func (m *Manager) Connect(ctx context.Context, kind types.StrategyKind) (types.Session, error) {
	strategy, err := m.strategyFor(kind)
	if err != nil {
		return m.Snapshot(), err
	}
	return m.run(ctx, kind, strategy.Acquire, false)
}

// Import adopts a private key or mnemonic as the local-key wallet. Unlike
// Connect, it reports Busy when a session is active or connecting.
func (m *Manager) Import(ctx context.Context, req ImportRequest) (types.Session, error) {
	var acquire func(context.Context) (*wallet.Acquisition, error)
	switch {
	case req.PrivateKey != "" && req.Mnemonic != "":
		return m.Snapshot(), apperrors.InvalidInput("provide either a private key or a mnemonic, not both")
	case req.PrivateKey != "":
		acquire = func(ctx context.Context) (*wallet.Acquisition, error) {
			return m.local.ImportPrivateKey(ctx, req.PrivateKey)
		}
	case req.Mnemonic != "":
		acquire = func(ctx context.Context) (*wallet.Acquisition, error) {
			return m.local.ImportMnemonic(ctx, req.Mnemonic)
		}
	default:
		return m.Snapshot(), apperrors.InvalidInput("a private key or a mnemonic is required")
	}
	return m.run(ctx, types.StrategyLocalKey, acquire, true)
}

// CancelConnect aborts the in-flight attempt, which then fails with
// user_cancelled. It reports whether there was anything to cancel.
func (m *Manager) CancelConnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inFlight || m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Disconnect cancels any in-flight attempt, waits for it to stop, clears the
// stored wallet and resets the session. Store errors are logged only.
func (m *Manager) Disconnect(ctx context.Context) types.Session {
	m.mu.Lock()
	for m.inFlight {
		m.cancel()
		done := m.done
		m.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			// The attempt is cancelled and will finish on its own. It sees
			// the new session ID and clears anything it persisted.
		}

		m.mu.Lock()
		if ctx.Err() != nil {
			break
		}
	}
	defer m.unlock()

	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		logger.Error(ctx, "failed to clear stored wallet", "error", err)
	}

	m.resetLocked("")
	logger.Info(ctx, "session disconnected")
	return m.snapshotLocked()
}

// RefreshBalance re-reads the balance. On failure the cached balance is left
// as is. A result that arrives after the session changed is discarded.
func (m *Manager) RefreshBalance(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.session.Status != types.StatusConnected {
		m.mu.Unlock()
		return "", apperrors.ErrNotConnected
	}
	id := m.session.ID
	strategy := m.session.Strategy
	address := m.signerAddressLocked()
	cached := m.session.Balance
	m.mu.Unlock()

	if strategy == types.StrategyMock {
		m.metrics.BalanceRefresh("cached")
		return cached, nil
	}
	if m.chain == nil {
		m.metrics.BalanceRefresh("error")
		return "", apperrors.NetworkError(wallet.ErrNoChain.Error())
	}

	balance, err := m.chain.GetBalance(ctx, address)

	m.mu.Lock()
	defer m.unlock()

	if err != nil {
		m.metrics.BalanceRefresh("error")
		logger.Warn(ctx, "balance refresh failed", "error", err)
		return "", apperrors.NetworkError(err.Error())
	}
	if m.session.ID != id || m.session.Status != types.StatusConnected {
		m.metrics.BalanceRefresh("stale")
		return "", apperrors.ErrNotConnected
	}

	m.balance = balance
	m.session.Balance = units.FormatEther(balance)
	m.metrics.BalanceRefresh("success")
	m.publishLocked()
	return m.session.Balance, nil
}

func (m *Manager) strategyFor(kind types.StrategyKind) (wallet.Strategy, error) {
	if kind == types.StrategyMock && !m.mockEnabled {
		return nil, apperrors.InvalidInput("mock strategy is only available without a chain endpoint")
	}
	s, ok := m.strategies[kind]
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported strategy %q", kind))
	}
	return s, nil
}

// run executes one guarded acquisition. busyErr selects whether a rejected
// call reports Busy or silently returns the snapshot.
func (m *Manager) run(ctx context.Context, kind types.StrategyKind, acquire func(context.Context) (*wallet.Acquisition, error), busyErr bool) (types.Session, error) {
	attemptCtx, ok := m.begin(ctx, kind)
	if !ok {
		if busyErr {
			return m.Snapshot(), apperrors.Busy()
		}
		return m.Snapshot(), nil
	}

	m.mu.Lock()
	id := m.session.ID
	m.mu.Unlock()

	acq, err := acquire(attemptCtx)

	m.mu.Lock()
	defer m.unlock()
	defer m.finishLocked()

	if m.session.ID != id {
		// Superseded by a disconnect that gave up waiting. A local-key
		// acquisition has already saved its record, which the disconnect
		// must not leave behind.
		if acq != nil && kind == types.StrategyLocalKey {
			if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
				logger.Error(ctx, "failed to clear superseded wallet", "error", err)
			}
		}
		wipe(acq)
		return m.snapshotLocked(), apperrors.UserCancelled()
	}

	if err != nil {
		ae := wallet.AsAcquisitionError(err)
		appErr := ae.AppError()
		logger.Warn(ctx, "connect failed", "strategy", kind, "reason", appErr.Code, "error", err)
		m.metrics.ConnectAttempt(kind, appErr.Code)

		m.session.Status = types.StatusError
		m.session.Reason = appErr.Code
		m.metrics.SetSessionState(types.StatusError)
		m.publishLocked()

		m.resetLocked(appErr.Code)
		return m.snapshotLocked(), appErr
	}

	m.metrics.ConnectAttempt(kind, "success")
	m.connectedLocked(kind, acq)
	logger.Info(ctx, "session connected", "strategy", kind, "address", acq.Address.Hex())
	return m.snapshotLocked(), nil
}

// begin claims the in-flight slot and publishes Connecting
func (m *Manager) begin(ctx context.Context, kind types.StrategyKind) (context.Context, bool) {
	m.mu.Lock()
	defer m.unlock()

	if m.inFlight || m.session.Status == types.StatusConnected {
		return nil, false
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	m.inFlight = true
	m.cancel = cancel
	m.done = make(chan struct{})

	m.session = types.Session{
		ID:       uuid.New(),
		Status:   types.StatusConnecting,
		Strategy: kind,
	}
	m.metrics.SetSessionState(types.StatusConnecting)
	m.publishLocked()
	return logger.WithSessionID(attemptCtx, m.session.ID.String()), true
}

// finishLocked releases the in-flight slot
func (m *Manager) finishLocked() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		close(m.done)
	}
	m.inFlight = false
	m.cancel = nil
	m.done = nil
}

func (m *Manager) connectedLocked(kind types.StrategyKind, acq *wallet.Acquisition) {
	now := m.now()
	m.signer = acq.Signer
	m.balance = acq.Balance
	m.session = types.Session{
		ID:          m.session.ID,
		Status:      types.StatusConnected,
		Address:     acq.Address.Hex(),
		Balance:     units.FormatEther(acq.Balance),
		Strategy:    kind,
		ReadOnly:    acq.Signer == nil,
		ConnectedAt: &now,
	}
	m.metrics.SetSessionState(types.StatusConnected)
	m.publishLocked()
}

// resetLocked drops the signer and publishes Disconnected with reason
func (m *Manager) resetLocked(reason string) {
	if ks, ok := m.signer.(*wallet.KeySigner); ok {
		ks.Wipe()
	}
	m.signer = nil
	m.balance = nil
	m.session = types.Session{
		ID:     uuid.New(),
		Status: types.StatusDisconnected,
		Reason: reason,
	}
	m.metrics.SetSessionState(types.StatusDisconnected)
	m.publishLocked()
}

func (m *Manager) signerAddressLocked() common.Address {
	if m.signer != nil {
		return m.signer.Address()
	}
	return common.HexToAddress(m.session.Address)
}

func (m *Manager) snapshotLocked() types.Session {
	s := m.session
	if s.ConnectedAt != nil {
		t := *s.ConnectedAt
		s.ConnectedAt = &t
	}
	return s
}

// publishLocked queues the current snapshot for delivery by unlock
func (m *Manager) publishLocked() {
	m.pending = append(m.pending, m.snapshotLocked())
}

// unlock releases mu after delivering queued snapshots. Only one goroutine
// delivers at a time; others leave their snapshots to it, which keeps
// listeners seeing the order in which states were published.
func (m *Manager) unlock() {
	if m.delivering {
		m.mu.Unlock()
		return
	}

	m.delivering = true
	for len(m.pending) > 0 {
		batch := m.pending
		m.pending = nil
		listeners := make([]Listener, 0, len(m.listeners))
		for _, l := range m.listeners {
			listeners = append(listeners, l)
		}
		m.mu.Unlock()

		for _, snap := range batch {
			for _, l := range listeners {
				l(snap)
			}
		}

		m.mu.Lock()
	}
	m.delivering = false
	m.mu.Unlock()
}

func wipe(acq *wallet.Acquisition) {
	if acq == nil {
		return
	}
	if ks, ok := acq.Signer.(*wallet.KeySigner); ok {
		ks.Wipe()
	}
}
