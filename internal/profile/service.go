// Package profile manages the app-level user profile that sits on top of a
// wallet session.
package profile

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tixly/tixly/internal/logger"
	"github.com/tixly/tixly/internal/validation"
	apperrors "github.com/tixly/tixly/pkg/errors"
	"github.com/tixly/tixly/pkg/types"
)

// MaxNameLength bounds the display name
const MaxNameLength = 100

// Store persists the profile; *storage.ProfileStore satisfies it
type Store interface {
	Save(ctx context.Context, p *types.UserProfile) error
	Load(ctx context.Context) (*types.UserProfile, error)
	Clear(ctx context.Context) error
}

// SessionView exposes the current session; *session.Manager satisfies it
type SessionView interface {
	Snapshot() types.Session
}

// RegisterRequest is the registration form
type RegisterRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// UpdateRequest changes the non-nil fields
type UpdateRequest struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// Status is the registration state shown to the UI
type Status struct {
	Registered bool               `json:"registered"`
	Connected  bool               `json:"connected"`
	Profile    *types.UserProfile `json:"profile,omitempty"`
}

// Service handles registration, edits and logout
type Service struct {
	store    Store
	sessions SessionView
	now      func() time.Time
}

// NewService creates a profile service
func NewService(store Store, sessions SessionView) *Service {
	return &Service{store: store, sessions: sessions, now: time.Now}
}

// Register creates or replaces the profile. It requires a connected session.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*types.UserProfile, error) {
	if !s.sessions.Snapshot().IsConnected() {
		return nil, apperrors.ErrNotConnected
	}

	p := &types.UserProfile{
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		AvatarURL: strings.TrimSpace(req.AvatarURL),
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.store.Save(ctx, p); err != nil {
		logger.Error(ctx, "failed to save profile", "error", err)
		return nil, storageError(err)
	}

	logger.Info(ctx, "profile registered")
	return p, nil
}

// Get returns the stored profile
func (s *Service) Get(ctx context.Context) (*types.UserProfile, error) {
	p, err := s.store.Load(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	if p == nil {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

// Update applies req to the stored profile
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*types.UserProfile, error) {
	p, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		p.Email = strings.TrimSpace(*req.Email)
	}
	if req.AvatarURL != nil {
		p.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	p.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, p); err != nil {
		return nil, storageError(err)
	}
	return p, nil
}

// Logout removes the profile. The wallet session is left alone.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return storageError(err)
	}
	logger.Info(ctx, "profile removed")
	return nil
}

// Status reports registration: a stored profile and a connected session.
// Load failures read as unregistered.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{Connected: s.sessions.Snapshot().IsConnected()}

	p, err := s.store.Load(ctx)
	if err != nil {
		logger.Warn(ctx, "failed to load profile", "error", err)
		return st
	}
	st.Profile = p
	st.Registered = p != nil && st.Connected
	return st
}

func validate(p *types.UserProfile) error {
	if p.Name == "" {
		return apperrors.InvalidInput("name cannot be empty")
	}
	if len(p.Name) > MaxNameLength {
		return apperrors.InvalidInput("name too long")
	}
	if err := validation.ValidateEmail(p.Email); err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	if p.AvatarURL != "" && !strings.HasPrefix(p.AvatarURL, "https://") && !strings.HasPrefix(p.AvatarURL, "http://") {
		return apperrors.InvalidInput("avatar url must be http(s)")
	}
	return nil
}

func storageError(err error) *apperrors.AppError {
	return apperrors.NewWithDetail(apperrors.ErrCodeStorageError, "Profile storage failed", err.Error(), http.StatusInternalServerError)
}
