package repository

import (
	"context"
	"errors"
	"fmt"
	"papertrader/types"
	"strings"
)

// Global error declarations.
var (
	ErrDriverNotSupported = errors.New("store driver not supported")
	ErrCorruptState       = errors.New("stored state is corrupt")
)

// Store persists the full state of one trading account.
type Store interface {
	// Load returns the most recently saved state, or nil when nothing has
	// been saved yet.
	Load(ctx context.Context) (*types.State, error)
	// Save replaces the stored state with state.
	Save(ctx context.Context, state types.State) error
	Close() error
}

// Open returns the store for driver: "sqlite" (dsn is a file path),
// "postgres" (dsn is a connection URL) or "memory".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return NewSQLite(ctx, dsn)
	case "postgres", "postgresql":
		return NewDatabase(ctx, dsn)
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrDriverNotSupported, driver)
}
