package validation

import (
	"fmt"
	"math/big"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EthereumAddressPattern is the regex pattern for Ethereum addresses
var EthereumAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// privateKeyPattern matches 32 bytes of hex with an optional 0x prefix
var privateKeyPattern = regexp.MustCompile(`^(0x|0X)?[0-9a-fA-F]{64}$`)

// MaxEventNameLength bounds event names accepted by the factory
const MaxEventNameLength = 200

// ValidateEthereumAddress validates an Ethereum address format
func ValidateEthereumAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if !EthereumAddressPattern.MatchString(address) {
		return fmt.Errorf("invalid Ethereum address format: must be 0x followed by 40 hex characters")
	}

	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid Ethereum address")
	}

	if common.HexToAddress(address) == (common.Address{}) {
		return fmt.Errorf("cannot use the zero address")
	}

	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return fmt.Errorf("chain ID must be positive")
	}
	return nil
}

// ValidatePrivateKeyFormat checks the textual shape of a hex private key
func ValidatePrivateKeyFormat(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("private key cannot be empty")
	}
	if !privateKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid private key format: must be 64 hex characters with optional 0x prefix")
	}
	return nil
}

// ValidateQuantity checks a ticket quantity against the remaining inventory
func ValidateQuantity(quantity, remaining uint64) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be a positive integer")
	}
	if remaining == 0 {
		return fmt.Errorf("event is sold out")
	}
	if quantity > remaining {
		return fmt.Errorf("quantity %d exceeds remaining tickets (%d)", quantity, remaining)
	}
	return nil
}

// ValidateTransferQuantity checks a transfer quantity against what the sender holds
func ValidateTransferQuantity(quantity, held uint64) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be a positive integer")
	}
	if quantity > held {
		return fmt.Errorf("quantity %d exceeds tickets held (%d)", quantity, held)
	}
	return nil
}

// ValidateTransactionValue validates a transaction value
func ValidateTransactionValue(value *big.Int, maxValue *big.Int) error {
	if value == nil {
		return fmt.Errorf("value cannot be nil")
	}

	if value.Sign() < 0 {
		return fmt.Errorf("value cannot be negative")
	}

	if maxValue != nil && value.Cmp(maxValue) > 0 {
		return fmt.Errorf("value exceeds maximum allowed: %s > %s", value.String(), maxValue.String())
	}

	return nil
}

// ValidateEventInput validates the fields of a createEvent request
func ValidateEventInput(name string, date time.Time, priceBaseUnits *big.Int, ticketCount uint64, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("event name cannot be empty")
	}
	if len(name) > MaxEventNameLength {
		return fmt.Errorf("event name too long: %d characters > %d max", len(name), MaxEventNameLength)
	}
	if !date.After(now) {
		return fmt.Errorf("event date must be in the future")
	}
	if err := ValidateTransactionValue(priceBaseUnits, nil); err != nil {
		return fmt.Errorf("invalid price: %w", err)
	}
	if ticketCount == 0 {
		return fmt.Errorf("ticket count must be positive")
	}
	return nil
}

// ValidateEmail validates a profile email address
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
