package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tixly/tixly/pkg/types"
)

// ProfileStore persists the user profile
type ProfileStore struct {
	kv KV
}

// NewProfileStore wraps kv
func NewProfileStore(kv KV) *ProfileStore {
	return &ProfileStore{kv: kv}
}

// Save writes the profile
func (s *ProfileStore) Save(ctx context.Context, p *types.UserProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := s.kv.Put(ctx, ProfileKey, data); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Load returns the profile, or nil when none exists
func (s *ProfileStore) Load(ctx context.Context) (*types.UserProfile, error) {
	data, err := s.kv.Get(ctx, ProfileKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var p types.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("corrupt profile: %w", err)
	}
	return &p, nil
}

// Clear removes the profile
func (s *ProfileStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, ProfileKey); err != nil {
		return fmt.Errorf("failed to clear profile: %w", err)
	}
	return nil
}
