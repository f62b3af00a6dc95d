package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite. Canonical symbols are matched
// exactly; Broker-A tickers are matched case-insensitively.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if absent) the registry database at
// dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening registry database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing registry schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS symbols (
		canonical      TEXT PRIMARY KEY,
		asset_class    TEXT NOT NULL DEFAULT '',
		socket_conid   INTEGER NOT NULL DEFAULT 0,
		socket_desc    TEXT NOT NULL DEFAULT '',
		http_ticker    TEXT NOT NULL DEFAULT '',
		http_desc      TEXT NOT NULL DEFAULT '',
		updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_symbols_socket_conid ON symbols(socket_conid) WHERE socket_conid != 0;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_symbols_http_ticker ON symbols(UPPER(http_ticker)) WHERE http_ticker != '';
	`
	_, err := s.db.Exec(schema)
	return err
}

func scanRecord(row interface{ Scan(...interface{}) error }) (Record, error) {
	var rec Record
	err := row.Scan(&rec.Canonical, &rec.AssetClass, &rec.SocketConID, &rec.SocketDesc, &rec.HTTPTicker, &rec.HTTPDesc)
	return rec, err
}

// Get looks up a record by exact canonical symbol.
func (s *SQLiteStore) Get(ctx context.Context, canonical string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT canonical, asset_class, socket_conid, socket_desc, http_ticker, http_desc
		 FROM symbols WHERE canonical = ?`, canonical)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("querying symbol %q: %w", canonical, err)
	}
	return rec, true, nil
}

// GetBySocketConID looks up a record by its Broker-B contract id.
func (s *SQLiteStore) GetBySocketConID(ctx context.Context, conID int64) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT canonical, asset_class, socket_conid, socket_desc, http_ticker, http_desc
		 FROM symbols WHERE socket_conid = ?`, conID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("querying socket conid %d: %w", conID, err)
	}
	return rec, true, nil
}

// GetByHTTPTicker looks up a record by its Broker-A ticker, case-insensitive.
func (s *SQLiteStore) GetByHTTPTicker(ctx context.Context, ticker string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT canonical, asset_class, socket_conid, socket_desc, http_ticker, http_desc
		 FROM symbols WHERE UPPER(http_ticker) = UPPER(?)`, ticker)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("querying http ticker %q: %w", ticker, err)
	}
	return rec, true, nil
}

// Upsert writes rec, overwriting any existing row for the same canonical
// symbol.
func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO symbols (canonical, asset_class, socket_conid, socket_desc, http_ticker, http_desc, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(canonical) DO UPDATE SET
			asset_class = excluded.asset_class,
			socket_conid = excluded.socket_conid,
			socket_desc = excluded.socket_desc,
			http_ticker = excluded.http_ticker,
			http_desc = excluded.http_desc,
			updated_at = CURRENT_TIMESTAMP`,
		rec.Canonical, rec.AssetClass, rec.SocketConID, rec.SocketDesc, rec.HTTPTicker, rec.HTTPDesc)
	if err != nil {
		return fmt.Errorf("upserting symbol %q: %w", rec.Canonical, err)
	}
	return nil
}

// All returns every stored record, ordered by canonical symbol.
func (s *SQLiteStore) All(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT canonical, asset_class, socket_conid, socket_desc, http_ticker, http_desc
		 FROM symbols ORDER BY canonical`)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning symbol row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
