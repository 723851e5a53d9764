package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/tixly/tixly/pkg/types"
)

// MockRecordStore keeps a wallet record in memory with injectable failures.
type MockRecordStore struct {
	mu         sync.Mutex
	record     *types.WalletRecord
	saveCalls  int
	clearCalls int

	FailLoad  bool
	FailSave  bool
	FailClear bool

	// SaveHook runs at the start of Save, before the record is stored.
	SaveHook func(ctx context.Context)
}

// NewMockRecordStore creates an empty store.
func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{}
}

// Save stores a copy of rec.
func (s *MockRecordStore) Save(ctx context.Context, rec *types.WalletRecord) error {
	if s.SaveHook != nil {
		s.SaveHook(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveCalls++
	if s.FailSave {
		return fmt.Errorf("mock store: disk full")
	}
	cp := *rec
	s.record = &cp
	return nil
}

// Load returns a copy of the stored record, or nil.
func (s *MockRecordStore) Load(ctx context.Context) (*types.WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailLoad {
		return nil, fmt.Errorf("mock store: read failed")
	}
	if s.record == nil {
		return nil, nil
	}
	cp := *s.record
	return &cp, nil
}

// Clear removes the record. Like the SQL stores, it fails on a done context.
func (s *MockRecordStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailClear {
		return fmt.Errorf("mock store: delete failed")
	}
	s.record = nil
	return nil
}

// Put seeds the store directly.
func (s *MockRecordStore) Put(rec *types.WalletRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = rec
}

// Record returns the stored record without failure injection.
func (s *MockRecordStore) Record() *types.WalletRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// SaveCalls returns the number of Save calls.
func (s *MockRecordStore) SaveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCalls
}

// ClearCalls returns the number of Clear calls.
func (s *MockRecordStore) ClearCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearCalls
}
