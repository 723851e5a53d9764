// Package storage persists the session's wallet record and profile behind a
// small key/value interface with memory, file, sqlite and postgres drivers.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Fixed keys
const (
	WalletKey  = "walletInfo"
	ProfileKey = "userProfile"
)

// ErrRecordMismatch is returned when a stored wallet record's address does
// not match the address derived from its key material.
var ErrRecordMismatch = errors.New("stored wallet address does not match its private key")

// KV is a durable key/value store. Get returns (nil, nil) for a missing key
// and Delete on a missing key succeeds.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Driver names
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a KV driver
type Options struct {
	Driver      string
	Path        string
	PostgresDSN string
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}

// Open creates the KV driver named in opts
func Open(ctx context.Context, opts Options) (KV, error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFile, "":
		return NewFileKV(opts.Path)
	case DriverSQLite:
		return NewSQLiteKV(opts.Path)
	case DriverPostgres:
		return NewPostgresKV(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", opts.Driver)
	}
}
