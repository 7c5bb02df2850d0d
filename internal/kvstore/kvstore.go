// Package kvstore is the persistence boundary: a small key/value blob store
// with an optional byte quota, backed by SQLite, plain files or memory.
package kvstore

import (
	"context"
	"fmt"

	"github.com/starford/jstcode/internal/apperr"
)

// Store holds opaque values by key. Set fails with apperr.ErrQuotaExceeded
// when the new value would push the total size over the quota.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Drivers.
const (
	DriverSQLite = "sqlite"
	DriverFS     = "fs"
	DriverMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Driver string
	// Path is the database file for sqlite and the directory for fs.
	Path string
	// QuotaBytes caps the total size of stored values; 0 disables it.
	QuotaBytes int64
}

// Open creates the configured store.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return OpenSQLite(cfg.Path, cfg.QuotaBytes)
	case DriverFS:
		return NewFS(cfg.Path, cfg.QuotaBytes)
	case DriverMemory, "":
		return NewMemory(cfg.QuotaBytes), nil
	default:
		return nil, fmt.Errorf("kvstore: unknown driver %q", cfg.Driver)
	}
}

// checkQuota reports whether replacing a value of size old with one of
// size next keeps usage within quota.
func checkQuota(quota, usage, old, next int64) error {
	if quota <= 0 {
		return nil
	}
	if usage-old+next > quota {
		return fmt.Errorf("kvstore: %d bytes over quota of %d: %w", usage-old+next-quota, quota, apperr.ErrQuotaExceeded)
	}
	return nil
}
