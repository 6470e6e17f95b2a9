/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists charging program records and balance books. The same schema
  works on PostgreSQL with minor dialect changes.

KEY TABLES:
  records:  One row per derived address (charger, account, escrow, session).
            The address is the primary key, so "one record per address" is
            enforced by the database as well as by Insert.
  balances: (asset, address) -> amount. Amounts are stored as decimal TEXT
            because SQLite INTEGER is signed 64-bit and balances are uint64.

NO DELETE:
  Records are created once and updated in place. Nothing is ever deleted.

CONCURRENCY:
  Uses sync.RWMutex plus a single pooled connection. WithTx holds the write
  lock for the whole callback, which gives the program serializable
  operations without retries.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better crash recovery.

USAGE:
  store, err := sqlite.New("./data/charge-ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/warp/charge-ledger/ledger"
)

// timeLayout is fixed-width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ ledger.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// ":memory:" databases are per-connection; one connection keeps a single view.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Records keyed by derived address
	CREATE TABLE IF NOT EXISTS records (
		address TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		size INTEGER NOT NULL,
		data BLOB NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_kind_created
		ON records(kind, created_at);

	-- Balance books (native currency, reward credits)
	CREATE TABLE IF NOT EXISTS balances (
		asset TEXT NOT NULL,
		address TEXT NOT NULL,
		amount TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (asset, address)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// RECORD STORE (ledger.Store interface)
// =============================================================================

func (s *Store) Get(ctx context.Context, addr ledger.Address) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRecord(ctx, s.db, addr)
}

func (s *Store) Insert(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRecord(ctx, s.db, e)
}

func (s *Store) Update(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRecord(ctx, s.db, e)
}

func (s *Store) List(ctx context.Context, kind ledger.Kind) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRecords(ctx, s.db, kind)
}

func (s *Store) Balance(ctx context.Context, asset ledger.Asset, addr ledger.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBalance(ctx, s.db, asset, addr)
}

func (s *Store) SetBalance(ctx context.Context, asset ledger.Asset, addr ledger.Address, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setBalance(ctx, s.db, asset, addr, amount)
}

func getRecord(ctx context.Context, q queryer, addr ledger.Address) (ledger.Entry, error) {
	var (
		e         ledger.Entry
		kind      string
		createdAt string
		updatedAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT kind, size, data, created_at, updated_at
		FROM records
		WHERE address = ?
	`, addr.String()).Scan(&kind, &e.Size, &e.Data, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrRecordNotFound
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("failed to get record: %w", err)
	}

	e.Address = addr
	e.Kind = ledger.Kind(kind)
	if err := parseTimes(&e, createdAt, updatedAt); err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

func parseTimes(e *ledger.Entry, createdAt, updatedAt string) error {
	var err error
	if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return fmt.Errorf("corrupt created_at for %s: %w", e.Address, err)
	}
	if e.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return fmt.Errorf("corrupt updated_at for %s: %w", e.Address, err)
	}
	return nil
}

func insertRecord(ctx context.Context, q queryer, e ledger.Entry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO records (address, kind, size, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		e.Address.String(),
		string(e.Kind),
		e.Size,
		e.Data,
		e.CreatedAt.UTC().Format(timeLayout),
		e.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrKeyAlreadyExists
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func updateRecord(ctx context.Context, q queryer, e ledger.Entry) error {
	res, err := q.ExecContext(ctx, `
		UPDATE records SET data = ?, updated_at = ?
		WHERE address = ?
	`, e.Data, e.UpdatedAt.UTC().Format(timeLayout), e.Address.String())
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if n == 0 {
		return ledger.ErrRecordNotFound
	}
	return nil
}

func listRecords(ctx context.Context, q queryer, kind ledger.Kind) ([]ledger.Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT address, size, data, created_at, updated_at
		FROM records
		WHERE kind = ?
		ORDER BY created_at ASC, address ASC
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e         ledger.Entry
			address   string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&address, &e.Size, &e.Data, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		e.Address, err = ledger.ParseAddress(address)
		if err != nil {
			return nil, err
		}
		e.Kind = kind
		if err := parseTimes(&e, createdAt, updatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func getBalance(ctx context.Context, q queryer, asset ledger.Asset, addr ledger.Address) (uint64, error) {
	var amount string
	err := q.QueryRowContext(ctx,
		"SELECT amount FROM balances WHERE asset = ? AND address = ?",
		string(asset), addr.String(),
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	v, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt balance %q: %w", amount, err)
	}
	return v, nil
}

func setBalance(ctx context.Context, q queryer, asset ledger.Asset, addr ledger.Address, amount uint64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO balances (asset, address, amount, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(asset, address) DO UPDATE SET
			amount = excluded.amount,
			updated_at = excluded.updated_at
	`,
		string(asset),
		addr.String(),
		strconv.FormatUint(amount, 10),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Get(ctx context.Context, addr ledger.Address) (ledger.Entry, error) {
	return getRecord(ctx, ts.tx, addr)
}

func (ts *txStore) Insert(ctx context.Context, e ledger.Entry) error {
	return insertRecord(ctx, ts.tx, e)
}

func (ts *txStore) Update(ctx context.Context, e ledger.Entry) error {
	return updateRecord(ctx, ts.tx, e)
}

func (ts *txStore) List(ctx context.Context, kind ledger.Kind) ([]ledger.Entry, error) {
	return listRecords(ctx, ts.tx, kind)
}

func (ts *txStore) Balance(ctx context.Context, asset ledger.Asset, addr ledger.Address) (uint64, error) {
	return getBalance(ctx, ts.tx, asset, addr)
}

func (ts *txStore) SetBalance(ctx context.Context, asset ledger.Asset, addr ledger.Address, amount uint64) error {
	return setBalance(ctx, ts.tx, asset, addr, amount)
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all records and balances. Dev only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"records", "balances"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
