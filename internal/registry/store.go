// Package registry implements the canonical symbol registry: a
// write-through cache over a persistent broker-id mapping table.
package registry

import "context"

// Record is the persisted row for one canonical symbol's known broker-side
// identifiers.
type Record struct {
	Canonical     string
	AssetClass    string
	SocketConID   int64  // 0 means unset
	SocketDesc    string
	HTTPTicker    string
	HTTPDesc      string
}

// Store persists SymbolRegistry records. A single *SQLiteStore is the only
// implementation; tests use it too, over temporary database files.
type Store interface {
	Get(ctx context.Context, canonical string) (Record, bool, error)
	GetBySocketConID(ctx context.Context, conID int64) (Record, bool, error)
	GetByHTTPTicker(ctx context.Context, ticker string) (Record, bool, error)
	Upsert(ctx context.Context, rec Record) error
	All(ctx context.Context) ([]Record, error)
	Close() error
}
