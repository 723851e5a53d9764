package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/tixly/tixly/internal/validation"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "TIXLY"

// Config holds the process configuration. Values are layered:
// defaults, then an optional YAML file, then TIXLY_* environment variables.
type Config struct {
	Log      LogConfig      `yaml:"log" envconfig:"LOG"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Chain    ChainConfig    `yaml:"chain" envconfig:"CHAIN"`
	Storage  StorageConfig  `yaml:"storage" envconfig:"STORAGE"`
	Seal     SealConfig     `yaml:"seal" envconfig:"SEAL"`
	LocalKey LocalKeyConfig `yaml:"local_key" envconfig:"LOCAL_KEY"`
	External ExternalConfig `yaml:"external" envconfig:"EXTERNAL"`
	Confirm  ConfirmConfig  `yaml:"confirm" envconfig:"CONFIRM"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Format string `yaml:"format" envconfig:"FORMAT"`
	Level  string `yaml:"level" envconfig:"LEVEL"`
}

// ServerConfig configures the local HTTP API
type ServerConfig struct {
	Host           string `yaml:"host" envconfig:"HOST"`
	Port           int    `yaml:"port" envconfig:"PORT"`
	RateLimitRPS   int    `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst int    `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
	RateLimit      bool   `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// ChainConfig points at the chain and the ticketing contracts.
// An empty RPCURL means no chain connectivity: only the mock strategy works.
type ChainConfig struct {
	RPCURL         string `yaml:"rpc_url" envconfig:"RPC_URL"`
	ChainID        int64  `yaml:"chain_id" envconfig:"CHAIN_ID"`
	UserTicketHub  string `yaml:"user_ticket_hub" envconfig:"USER_TICKET_HUB"`
	EventFactory   string `yaml:"event_factory" envconfig:"EVENT_FACTORY"`
	EventDiscovery string `yaml:"event_discovery" envconfig:"EVENT_DISCOVERY"`
}

// StorageConfig selects the persistent session store
type StorageConfig struct {
	Driver      string `yaml:"driver" envconfig:"DRIVER"`
	Path        string `yaml:"path" envconfig:"PATH"`
	PostgresDSN string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
}

// SealConfig selects how the wallet record is protected at rest
type SealConfig struct {
	Provider          string `yaml:"provider" envconfig:"PROVIDER"`
	LocalMasterKeyHex string `yaml:"local_master_key" envconfig:"LOCAL_MASTER_KEY"`
	Passphrase        string `yaml:"-" envconfig:"PASSPHRASE"`
	AWSKMSKeyID       string `yaml:"aws_kms_key_id" envconfig:"AWS_KMS_KEY_ID"`
	AWSKMSRegion      string `yaml:"aws_kms_region" envconfig:"AWS_KMS_REGION"`
	VaultAddress      string `yaml:"vault_address" envconfig:"VAULT_ADDRESS"`
	VaultToken        string `yaml:"-" envconfig:"VAULT_TOKEN"`
	VaultTransitKey   string `yaml:"vault_transit_key" envconfig:"VAULT_TRANSIT_KEY"`
}

// LocalKeyConfig lets development setups import a fixed key instead of
// generating one on connect.
type LocalKeyConfig struct {
	PrivateKey string `yaml:"-" envconfig:"PRIVATE_KEY"`
}

// ExternalConfig drives the external wallet deep-link handshake
type ExternalConfig struct {
	DeepLinkScheme string        `yaml:"deep_link_scheme" envconfig:"DEEP_LINK_SCHEME"`
	DappURL        string        `yaml:"dapp_url" envconfig:"DAPP_URL"`
	ProviderURL    string        `yaml:"provider_url" envconfig:"PROVIDER_URL"`
	StoreLink      string        `yaml:"store_link" envconfig:"STORE_LINK"`
	PollInterval   time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// ConfirmConfig bounds how long a write waits for its receipt
type ConfirmConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// Default returns a configuration that runs offline with the mock strategy
// and a file-backed store.
func Default() *Config {
	return &Config{
		Log: LogConfig{Format: "json", Level: "INFO"},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
			RateLimit:      true,
		},
		Storage: StorageConfig{
			Driver: "file",
			Path:   ".tixly",
		},
		Seal: SealConfig{Provider: "none"},
		External: ExternalConfig{
			DeepLinkScheme: "metamask://",
			DappURL:        "http://localhost:19000",
			StoreLink:      "https://metamask.io/download/",
			PollInterval:   time.Second,
			Timeout:        2 * time.Minute,
		},
		Confirm: ConfirmConfig{
			PollInterval: 2 * time.Second,
			Timeout:      3 * time.Minute,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty), and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// ChainConfigured reports whether an RPC endpoint is available
func (c *Config) ChainConfigured() bool {
	return c.Chain.RPCURL != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.RateLimit && (c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0) {
		return errors.New("rate limit rps and burst must be positive when rate limiting is enabled")
	}

	if c.Chain.RPCURL != "" {
		if err := validateURL("chain rpc_url", c.Chain.RPCURL); err != nil {
			return err
		}
		for name, addr := range map[string]string{
			"user_ticket_hub": c.Chain.UserTicketHub,
			"event_factory":   c.Chain.EventFactory,
			"event_discovery": c.Chain.EventDiscovery,
		} {
			if addr == "" {
				continue
			}
			if err := validation.ValidateEthereumAddress(addr); err != nil {
				return fmt.Errorf("chain %s: %w", name, err)
			}
		}
	}
	// Zero means the chain ID is taken from the node
	if c.Chain.ChainID != 0 {
		if err := validation.ValidateChainID(c.Chain.ChainID); err != nil {
			return fmt.Errorf("chain chain_id: %w", err)
		}
	}

	switch c.Storage.Driver {
	case "memory":
	case "file", "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for driver '%s'", c.Storage.Driver)
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage postgres_dsn is required for driver 'postgres'")
		}
	default:
		return fmt.Errorf("storage driver must be 'memory', 'file', 'sqlite' or 'postgres', got: %s", c.Storage.Driver)
	}

	switch c.Seal.Provider {
	case "none", "":
	case "local":
		if c.Seal.LocalMasterKeyHex == "" {
			return errors.New("seal local_master_key is required when provider is 'local'")
		}
	case "passphrase":
	case "aws-kms":
		if c.Seal.AWSKMSKeyID == "" || c.Seal.AWSKMSRegion == "" {
			return errors.New("seal aws_kms_key_id and aws_kms_region are required when provider is 'aws-kms'")
		}
	case "vault":
		if c.Seal.VaultAddress == "" || c.Seal.VaultToken == "" || c.Seal.VaultTransitKey == "" {
			return errors.New("seal vault_address, vault_token and vault_transit_key are required when provider is 'vault'")
		}
	default:
		return fmt.Errorf("seal provider must be one of none, local, passphrase, aws-kms, vault, got: %s", c.Seal.Provider)
	}

	if c.ExternalConfigured() {
		if err := validateURL("external provider_url", c.External.ProviderURL); err != nil {
			return err
		}
		if !strings.HasSuffix(c.External.DeepLinkScheme, "://") {
			return fmt.Errorf("external deep_link_scheme must end with '://', got: %s", c.External.DeepLinkScheme)
		}
		if c.External.StoreLink == "" {
			return errors.New("external store_link is required")
		}
	}
	if c.External.PollInterval <= 0 || c.External.Timeout <= 0 {
		return errors.New("external poll_interval and timeout must be positive")
	}
	if c.External.PollInterval > c.External.Timeout {
		return errors.New("external poll_interval must not exceed timeout")
	}
	if c.Confirm.PollInterval <= 0 || c.Confirm.Timeout <= 0 {
		return errors.New("confirm poll_interval and timeout must be positive")
	}

	return nil
}

// ExternalConfigured reports whether the external wallet strategy can run
func (c *Config) ExternalConfigured() bool {
	return c.External.ProviderURL != ""
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got: %s", name, raw)
	}
	return nil
}
