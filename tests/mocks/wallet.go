package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tixly/tixly/internal/wallet"
)

// MockProbe reports a fixed reachability.
type MockProbe struct {
	mu        sync.Mutex
	reachable bool
	calls     int
}

// NewMockProbe creates a probe answering reachable.
func NewMockProbe(reachable bool) *MockProbe {
	return &MockProbe{reachable: reachable}
}

// Reachable returns the configured answer.
func (p *MockProbe) Reachable(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.reachable
}

// Calls returns the number of probes.
func (p *MockProbe) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// MockOpener records opened links.
type MockOpener struct {
	mu     sync.Mutex
	opened []string
	Err    error
}

// NewMockOpener creates an opener that always succeeds.
func NewMockOpener() *MockOpener {
	return &MockOpener{}
}

// Open records uri.
func (o *MockOpener) Open(ctx context.Context, uri string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.opened = append(o.opened, uri)
	return nil
}

// Opened returns the links opened so far.
func (o *MockOpener) Opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

// MockWalletProvider authorizes an account after a number of polls.
type MockWalletProvider struct {
	mu         sync.Mutex
	account    common.Address
	readyAfter int
	failFirst  int
	polls      int
	signer     wallet.Signer
}

// NewMockWalletProvider returns account from the readyAfter-th poll on.
// readyAfter <= 0 means never.
func NewMockWalletProvider(account common.Address, readyAfter int) *MockWalletProvider {
	return &MockWalletProvider{account: account, readyAfter: readyAfter}
}

// FailFirst makes the first n polls return an error.
func (p *MockWalletProvider) FailFirst(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failFirst = n
}

// WithSigner sets the signer returned by Signer.
func (p *MockWalletProvider) WithSigner(s wallet.Signer) *MockWalletProvider {
	p.signer = s
	return p
}

// Accounts simulates eth_accounts.
func (p *MockWalletProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.polls++
	if p.polls <= p.failFirst {
		return nil, fmt.Errorf("provider not ready")
	}
	if p.readyAfter > 0 && p.polls >= p.readyAfter {
		return []common.Address{p.account}, nil
	}
	return nil, nil
}

// Signer returns the configured signer.
func (p *MockWalletProvider) Signer(address common.Address) wallet.Signer {
	return p.signer
}

// Polls returns the number of Accounts calls.
func (p *MockWalletProvider) Polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}
