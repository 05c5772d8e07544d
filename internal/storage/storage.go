// Package storage persists the last-seen identifiers of every source.
package storage

import (
	"context"
	"fmt"

	"streamwatch/internal/model"
)

// Store is the interface for last-seen state persistence.
//
// Load returns an empty set when no state was saved for the source.
// Save replaces the persisted set of the source. Implementations serialise
// all calls, so loops of different sources may share one Store.
type Store interface {
	Load(ctx context.Context, source string) (model.IDSet, error)
	Save(ctx context.Context, source string, ids model.IDSet) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config selects and configures a Store backend.
type Config struct {
	Driver       string
	DataDir      string
	DatabasePath string
}

// Open creates the Store selected by cfg.Driver.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFile:
		return NewFile(cfg.DataDir)
	case DriverSQLite:
		return NewSQLite(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
