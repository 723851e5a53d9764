// Package app builds the core object graph shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tixly/tixly/internal/api"
	"github.com/tixly/tixly/internal/config"
	"github.com/tixly/tixly/internal/contracts"
	"github.com/tixly/tixly/internal/deeplink"
	"github.com/tixly/tixly/internal/eth"
	"github.com/tixly/tixly/internal/logger"
	"github.com/tixly/tixly/internal/metrics"
	"github.com/tixly/tixly/internal/profile"
	"github.com/tixly/tixly/internal/retry"
	"github.com/tixly/tixly/internal/seal"
	"github.com/tixly/tixly/internal/session"
	"github.com/tixly/tixly/internal/storage"
	"github.com/tixly/tixly/internal/wallet"
)

// Options tweaks how the core talks to the outside world
type Options struct {
	// Out receives deep-link QR codes. Defaults to os.Stderr.
	Out io.Writer
}

// App is the process-wide core. Build it once with New and pass it down.
type App struct {
	Config    *config.Config
	Sessions  *session.Manager
	Profiles  *profile.Service
	Contracts *contracts.Service
	Metrics   *metrics.Metrics

	closers []func()
}

// New wires storage, sealing, the chain client, the strategies and the
// services on top of them. It does not call Sessions.Initialize.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Out == nil {
		opts.Out = os.Stderr
	}

	a := &App{Config: cfg, Metrics: metrics.New()}
	if err := a.build(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg := a.Config

	kv, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		PostgresDSN: cfg.Storage.PostgresDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.onClose(func() { _ = kv.Close() })

	sealer, err := seal.NewProvider(&seal.Config{
		Provider:          cfg.Seal.Provider,
		LocalMasterKeyHex: cfg.Seal.LocalMasterKeyHex,
		Passphrase:        cfg.Seal.Passphrase,
		AWSKMSKeyID:       cfg.Seal.AWSKMSKeyID,
		AWSKMSRegion:      cfg.Seal.AWSKMSRegion,
		VaultAddress:      cfg.Seal.VaultAddress,
		VaultToken:        cfg.Seal.VaultToken,
		VaultTransitKey:   cfg.Seal.VaultTransitKey,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize seal provider: %w", err)
	}
	logger.Info(ctx, "storage ready", "driver", cfg.Storage.Driver, "seal", sealer.Name())

	wallets := storage.NewWalletStore(kv, sealer)

	// Interfaces stay nil when offline; a typed nil *eth.Client would not.
	var (
		balances  wallet.BalanceReader
		chain     contracts.Chain
		ethClient *eth.Client
	)
	if cfg.ChainConfigured() {
		ethClient, err = eth.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID)
		if err != nil {
			return err
		}
		a.onClose(ethClient.Close)
		balances, chain = ethClient, ethClient
		logger.Info(ctx, "connected to chain", "chain_id", ethClient.ChainID())
	} else {
		logger.Warn(ctx, "no chain endpoint configured; only the mock strategy is available")
	}

	var external wallet.Strategy
	if cfg.ExternalConfigured() && ethClient != nil {
		provider, err := wallet.DialProvider(ctx, cfg.External.ProviderURL)
		if err != nil {
			return err
		}
		a.onClose(provider.Close)

		ext := wallet.NewExternalWalletStrategy(wallet.ExternalConfig{
			Scheme:       cfg.External.DeepLinkScheme,
			DappURL:      cfg.External.DappURL,
			StoreLink:    cfg.External.StoreLink,
			PollInterval: cfg.External.PollInterval,
			Timeout:      cfg.External.Timeout,
		}, deeplink.RPCProbe{URL: cfg.External.ProviderURL}, deeplink.NewQROpener(opts.Out), provider, ethClient)
		ext.OnPolls = a.Metrics.HandshakePolls
		external = ext
	} else if cfg.ExternalConfigured() {
		logger.Warn(ctx, "external wallet provider configured without a chain endpoint; strategy disabled")
	}

	a.Sessions, err = session.New(session.Options{
		LocalKey:    wallet.NewLocalKeyStrategy(wallets, balances, cfg.LocalKey.PrivateKey),
		External:    external,
		Store:       wallets,
		Chain:       balances,
		MockEnabled: !cfg.ChainConfigured(),
		Metrics:     a.Metrics,
	})
	if err != nil {
		return err
	}

	a.Profiles = profile.NewService(storage.NewProfileStore(kv), a.Sessions)
	a.Contracts = contracts.NewService(chain, contracts.Addresses{
		EventFactory:   common.HexToAddress(cfg.Chain.EventFactory),
		UserTicketHub:  common.HexToAddress(cfg.Chain.UserTicketHub),
		EventDiscovery: common.HexToAddress(cfg.Chain.EventDiscovery),
	}, contracts.Options{
		Confirm: retry.Policy{Interval: cfg.Confirm.PollInterval, Timeout: cfg.Confirm.Timeout},
		Metrics: a.Metrics,
	})

	return nil
}

// APIDeps exposes the services to the HTTP layer
func (a *App) APIDeps() api.Deps {
	return api.Deps{
		Sessions:  a.Sessions,
		Profiles:  a.Profiles,
		Contracts: a.Contracts,
		Metrics:   a.Metrics.Handler(),
	}
}

// WriteTimeout covers the slowest blocking API call plus headroom
func (a *App) WriteTimeout() time.Duration {
	longest := a.Config.External.Timeout
	if a.Config.Confirm.Timeout > longest {
		longest = a.Config.Confirm.Timeout
	}
	return longest + 15*time.Second
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}
