package registry

import (
	"context"
	"fmt"
	"sync"

	"janus/internal/errs"
	"janus/internal/logs"

	"github.com/rs/zerolog"
)

// SymbolRegistry is the authoritative canonical-symbol ↔ broker-id mapping.
// It is a write-through cache: every mutation is persisted to Store before
// the in-memory maps are updated, and every lookup is served from memory.
//
// Conflict policy is first-wins: once a broker id is recorded against a
// canonical symbol, a later Ensure call reporting a *different* id for the
// same symbol is ignored and the existing record is returned unchanged. A
// later call carrying a different description for an id that is already
// recorded also leaves the stored description untouched.
type SymbolRegistry struct {
	mu       sync.RWMutex
	store    Store
	log      zerolog.Logger
	byCanon  map[string]Record
	bySocket map[int64]string
	byHTTP   map[string]string // upper ticker -> canonical
}

// NewSymbolRegistry loads every persisted record from store into memory.
func NewSymbolRegistry(ctx context.Context, store Store, log zerolog.Logger) (*SymbolRegistry, error) {
	r := &SymbolRegistry{
		store:    store,
		log:      log,
		byCanon:  make(map[string]Record),
		bySocket: make(map[int64]string),
		byHTTP:   make(map[string]string),
	}

	records, err := store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading symbol registry: %w", err)
	}
	for _, rec := range records {
		r.index(rec)
	}
	return r, nil
}

// index inserts rec into the in-memory maps, overwriting any prior entry
// for the same canonical symbol.
func (r *SymbolRegistry) index(rec Record) {
	r.byCanon[rec.Canonical] = rec
	if rec.SocketConID != 0 {
		r.bySocket[rec.SocketConID] = rec.Canonical
	}
	if rec.HTTPTicker != "" {
		r.byHTTP[normalize(rec.HTTPTicker)] = rec.Canonical
	}
}

// GetByCanonical returns the record for an exact canonical symbol.
func (r *SymbolRegistry) GetByCanonical(canonical string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byCanon[normalize(canonical)]
	return rec, ok
}

// GetBySocketConID returns the record mapped to a Broker-B contract id.
func (r *SymbolRegistry) GetBySocketConID(conID int64) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canon, ok := r.bySocket[conID]
	if !ok {
		return Record{}, false
	}
	rec, ok := r.byCanon[canon]
	return rec, ok
}

// GetByHTTPTicker returns the record mapped to a Broker-A ticker,
// case-insensitive.
func (r *SymbolRegistry) GetByHTTPTicker(ticker string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canon, ok := r.byHTTP[normalize(ticker)]
	if !ok {
		return Record{}, false
	}
	rec, ok := r.byCanon[canon]
	return rec, ok
}

// EnsureSocketSymbol records that canonical resolves to the Broker-B
// contract id conID, returning the (possibly pre-existing) record.
func (r *SymbolRegistry) EnsureSocketSymbol(ctx context.Context, canonical string, conID int64, desc, assetClass string) (Record, error) {
	canonical = normalize(canonical)

	r.mu.Lock()
	defer r.mu.Unlock()

	if conID != 0 {
		if boundCanon, ok := r.bySocket[conID]; ok && boundCanon != canonical {
			// conID is already bound to a different symbol: return that
			// record unchanged rather than creating a second row for it.
			return r.byCanon[boundCanon], nil
		}
	}

	rec, exists := r.byCanon[canonical]
	if !exists {
		rec = Record{Canonical: canonical, AssetClass: assetClass, SocketConID: conID, SocketDesc: desc}
		if err := r.store.Upsert(ctx, rec); err != nil {
			return Record{}, errStore("ensure_socket_symbol", err)
		}
		r.index(rec)
		return rec, nil
	}

	if rec.SocketConID == 0 {
		rec.SocketConID = conID
		rec.SocketDesc = desc
		if rec.AssetClass == "" {
			rec.AssetClass = assetClass
		}
		if err := r.store.Upsert(ctx, rec); err != nil {
			return Record{}, errStore("ensure_socket_symbol", err)
		}
		r.index(rec)
		return rec, nil
	}

	if rec.SocketConID != conID {
		symLog := logs.WithSymbol(r.log, canonical)
		symLog.Warn().
			Int64("existing_conid", rec.SocketConID).
			Int64("reported_conid", conID).
			Msg("socket contract id conflict, keeping existing mapping")
	}
	return rec, nil
}

// EnsureHTTPSymbol records that canonical resolves to the Broker-A ticker,
// returning the (possibly pre-existing) record.
func (r *SymbolRegistry) EnsureHTTPSymbol(ctx context.Context, canonical, ticker, desc, assetClass string) (Record, error) {
	canonical = normalize(canonical)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ticker != "" {
		if boundCanon, ok := r.byHTTP[normalize(ticker)]; ok && boundCanon != canonical {
			// ticker is already bound to a different symbol: return that
			// record unchanged rather than creating a second row for it.
			return r.byCanon[boundCanon], nil
		}
	}

	rec, exists := r.byCanon[canonical]
	if !exists {
		rec = Record{Canonical: canonical, AssetClass: assetClass, HTTPTicker: ticker, HTTPDesc: desc}
		if err := r.store.Upsert(ctx, rec); err != nil {
			return Record{}, errStore("ensure_http_symbol", err)
		}
		r.index(rec)
		return rec, nil
	}

	if rec.HTTPTicker == "" {
		rec.HTTPTicker = ticker
		rec.HTTPDesc = desc
		if rec.AssetClass == "" {
			rec.AssetClass = assetClass
		}
		if err := r.store.Upsert(ctx, rec); err != nil {
			return Record{}, errStore("ensure_http_symbol", err)
		}
		r.index(rec)
		return rec, nil
	}

	// Ticker already recorded: keep the first description even if a later
	// call reports a different one.
	return rec, nil
}

// All returns a snapshot of every record currently held in memory.
func (r *SymbolRegistry) All() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.byCanon))
	for _, rec := range r.byCanon {
		out = append(out, rec)
	}
	return out
}

// Close releases the underlying store.
func (r *SymbolRegistry) Close() error {
	return r.store.Close()
}

func errStore(op string, err error) error {
	return errs.NewRegistryStoreError(op, err)
}
