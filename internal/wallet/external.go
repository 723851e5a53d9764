package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/tixly/tixly/internal/deeplink"
	"github.com/tixly/tixly/internal/retry"
	"github.com/tixly/tixly/pkg/types"
)

// Provider is the external wallet's account surface
type Provider interface {
	// Accounts lists the accounts the wallet has authorized for this app
	Accounts(ctx context.Context) ([]common.Address, error)

	// Signer returns a signer that routes through the wallet
	Signer(address common.Address) Signer
}

// RPCProvider talks to the wallet over JSON-RPC
type RPCProvider struct {
	client *rpc.Client
}

// DialProvider connects to the wallet's provider endpoint. The dial is lazy
// for HTTP endpoints; failures show up on the first call.
func DialProvider(ctx context.Context, url string) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet provider: %w", err)
	}
	return &RPCProvider{client: client}, nil
}

// Accounts calls eth_accounts
func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Signer returns a RemoteSigner for address
func (p *RPCProvider) Signer(address common.Address) Signer {
	return NewRemoteSigner(p.client, address)
}

// Close closes the RPC client
func (p *RPCProvider) Close() {
	p.client.Close()
}

// ExternalConfig drives the handshake
type ExternalConfig struct {
	Scheme       string
	DappURL      string
	StoreLink    string
	PollInterval time.Duration
	Timeout      time.Duration
}

// ExternalWalletStrategy obtains a signer from another wallet app through a
// deep-link handshake: probe, open the link, then poll for an account.
type ExternalWalletStrategy struct {
	cfg      ExternalConfig
	probe    deeplink.Probe
	opener   deeplink.Opener
	provider Provider
	chain    BalanceReader

	// OnPolls, if set, receives the number of account polls per attempt
	OnPolls func(n int)
}

// NewExternalWalletStrategy wires the handshake collaborators
func NewExternalWalletStrategy(cfg ExternalConfig, probe deeplink.Probe, opener deeplink.Opener, provider Provider, chain BalanceReader) *ExternalWalletStrategy {
	if cfg.StoreLink == "" {
		cfg.StoreLink = deeplink.StoreLinkDefault
	}
	return &ExternalWalletStrategy{
		cfg:      cfg,
		probe:    probe,
		opener:   opener,
		provider: provider,
		chain:    chain,
	}
}

// Kind returns StrategyExternalWallet
func (s *ExternalWalletStrategy) Kind() types.StrategyKind {
	return types.StrategyExternalWallet
}

// Acquire runs the handshake. An unreachable wallet yields KindNotInstalled
// with the store link and no link is opened. Polling stops before Acquire
// returns on every path.
func (s *ExternalWalletStrategy) Acquire(ctx context.Context) (*Acquisition, error) {
	if s.probe == nil || !s.probe.Reachable(ctx) {
		return nil, &AcquisitionError{
			Kind:      KindNotInstalled,
			StoreLink: s.cfg.StoreLink,
			Err:       errors.New("external wallet is not reachable"),
		}
	}

	link, err := deeplink.Build(s.cfg.Scheme, s.cfg.DappURL)
	if err != nil {
		return nil, &AcquisitionError{Kind: KindInvalidInput, Err: err}
	}
	if err := s.opener.Open(ctx, link); err != nil {
		return nil, &AcquisitionError{Kind: KindNetwork, Err: err}
	}

	var account common.Address
	attempts, err := retry.Poll(ctx, retry.Policy{
		Interval: s.cfg.PollInterval,
		Timeout:  s.cfg.Timeout,
	}, func(ctx context.Context) (bool, error) {
		accounts, err := s.provider.Accounts(ctx)
		if err != nil {
			return false, err
		}
		if len(accounts) == 0 {
			return false, nil
		}
		account = accounts[0]
		return true, nil
	})
	if s.OnPolls != nil {
		s.OnPolls(attempts)
	}
	if err != nil {
		switch {
		case retry.IsTimeout(err):
			return nil, &AcquisitionError{Kind: KindTimeout, Err: err}
		case errors.Is(err, context.Canceled):
			return nil, &AcquisitionError{Kind: KindCancelled, Err: err}
		default:
			return nil, &AcquisitionError{Kind: KindNetwork, Err: err}
		}
	}

	balance, err := fetchBalance(ctx, s.chain, account)
	if err != nil {
		return nil, err
	}

	return &Acquisition{
		Address: account,
		Signer:  s.provider.Signer(account),
		Balance: balance,
	}, nil
}

var (
	_ Strategy = (*ExternalWalletStrategy)(nil)
	_ Provider = (*RPCProvider)(nil)
)
