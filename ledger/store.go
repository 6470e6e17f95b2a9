/*
store.go - Persistence interface for records and balances

PURPOSE:
  Defines the interface between the charging program and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:   Record and balance primitives
  TxStore: Store plus atomic multi-write transactions

ONE RECORD PER ADDRESS:
  Insert() is the only way to create a record and it is an atomic
  check-and-insert. If the address is occupied it fails with
  ErrKeyAlreadyExists and writes nothing. There is no Delete.

ATOMIC OPERATIONS:
  Every program operation runs inside WithTx(). Either every record write
  and balance change made by fn commits, or none do. A funding operation
  that fails at the last step leaves no escrow behind and moves no money.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory arena (tests, dev)
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - record.go: Typed record helpers built on Store
  - bank.go, credits.go: Balance books built on Store
*/
package ledger

import "context"

// =============================================================================
// STORE - Records keyed by derived address, plus balance books
// =============================================================================

// Store handles persistence of records and balances.
type Store interface {
	// Get returns the record at addr, or ErrRecordNotFound.
	Get(ctx context.Context, addr Address) (Entry, error)

	// Insert creates a record. Fails with ErrKeyAlreadyExists if addr is taken.
	Insert(ctx context.Context, e Entry) error

	// Update overwrites the payload of an existing record.
	// Fails with ErrRecordNotFound if nothing lives at e.Address.
	Update(ctx context.Context, e Entry) error

	// List returns every record of the given kind, oldest first.
	List(ctx context.Context, kind Kind) ([]Entry, error)

	// Balance returns the balance of addr in the asset's book (0 if never set).
	Balance(ctx context.Context, asset Asset, addr Address) (uint64, error)

	// SetBalance overwrites a balance. Arithmetic lives in Bank / CreditLedger.
	SetBalance(ctx context.Context, asset Asset, addr Address, amount uint64) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
