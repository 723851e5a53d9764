package api

import (
	"context"

	"github.com/tixly/tixly/internal/profile"
	"github.com/tixly/tixly/internal/session"
	"github.com/tixly/tixly/internal/wallet"
	"github.com/tixly/tixly/pkg/types"
)

// SessionManager is the subset of session.Manager used by the API layer
type SessionManager interface {
	Snapshot() types.Session
	Active() (types.Session, wallet.Signer)
	Connect(ctx context.Context, kind types.StrategyKind) (types.Session, error)
	CancelConnect() bool
	Import(ctx context.Context, req session.ImportRequest) (types.Session, error)
	Disconnect(ctx context.Context) types.Session
	RefreshBalance(ctx context.Context) (string, error)
}

// ProfileService is the subset of profile.Service used by the API layer
type ProfileService interface {
	Register(ctx context.Context, req profile.RegisterRequest) (*types.UserProfile, error)
	Get(ctx context.Context) (*types.UserProfile, error)
	Update(ctx context.Context, req profile.UpdateRequest) (*types.UserProfile, error)
	Logout(ctx context.Context) error
	Status(ctx context.Context) profile.Status
}

var (
	_ SessionManager = (*session.Manager)(nil)
	_ ProfileService = (*profile.Service)(nil)
)
