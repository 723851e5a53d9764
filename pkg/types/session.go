package types

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of the process-wide session
type SessionStatus string

const (
	StatusDisconnected SessionStatus = "disconnected"
	StatusConnecting   SessionStatus = "connecting"
	StatusConnected    SessionStatus = "connected"
	StatusError        SessionStatus = "error"
)

// AllSessionStatuses returns every session status
func AllSessionStatuses() []SessionStatus {
	return []SessionStatus{StatusDisconnected, StatusConnecting, StatusConnected, StatusError}
}

// Session is a read-only snapshot of the current wallet session.
// The signer itself is owned by the session manager and never appears here.
type Session struct {
	ID          uuid.UUID     `json:"id"`
	Status      SessionStatus `json:"status"`
	Address     string        `json:"address,omitempty"`
	Balance     string        `json:"balance,omitempty"`
	Strategy    StrategyKind  `json:"strategy,omitempty"`
	ReadOnly    bool          `json:"read_only,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	ConnectedAt *time.Time    `json:"connected_at,omitempty"`
}

// IsConnected reports whether the snapshot holds a live address
func (s Session) IsConnected() bool {
	return s.Status == StatusConnected && s.Address != ""
}

// WalletRecord is the persisted credential material for the local-key strategy
type WalletRecord struct {
	Address    string  `json:"address"`
	PrivateKey string  `json:"privateKey"`
	Mnemonic   *string `json:"mnemonic"`
}

// UserProfile is app-level identity layered on top of a session
type UserProfile struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
