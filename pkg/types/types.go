package types

import (
	"fmt"
	"strings"
)

// ChainType constants
const (
	ChainTypeEthereum = "ethereum"
)

// StrategyKind identifies how a session's signer was acquired
type StrategyKind string

const (
	StrategyMock           StrategyKind = "mock"
	StrategyLocalKey       StrategyKind = "local_key"
	StrategyExternalWallet StrategyKind = "external_wallet"
)

// AllStrategyKinds returns every supported acquisition strategy
func AllStrategyKinds() []StrategyKind {
	return []StrategyKind{StrategyMock, StrategyLocalKey, StrategyExternalWallet}
}

// ParseStrategyKind accepts the canonical names plus the short CLI aliases
// "local" and "external".
func ParseStrategyKind(s string) (StrategyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mock":
		return StrategyMock, nil
	case "local_key", "local", "localkey":
		return StrategyLocalKey, nil
	case "external_wallet", "external", "metamask":
		return StrategyExternalWallet, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (supported: mock, local_key, external_wallet)", s)
	}
}
