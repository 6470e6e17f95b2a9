/*
Package ledger provides the record store contract the charging program runs on.

PURPOSE:
  The charging program never talks to a database directly. It sees a
  key-value ledger of typed records addressed by deterministic keys,
  plus two fungible balance books:
  - Native currency (minor units) held by wallets and by records
  - Redeemable reward credits held by identities

KEY CONCEPTS IN THIS FILE (types.go):
  - Identity: 32-byte principal that signs operations
  - Address:  32-byte record address, derived from seeds (see keys.go)
  - Kind:     record discriminator (charger, account, escrow, session)
  - Entry:    one stored record (kind + encoded payload + footprint)
  - Asset:    which balance book a balance lives in

DESIGN PRINCIPLES:
  1. One record per address: Insert is an atomic check-and-insert
  2. Fixed footprint: a record's size is allocated at creation and never grows
  3. Reserve: every record's backing balance keeps a minimum (see bank.go)
  4. Atomicity: every program operation runs inside TxStore.WithTx

SEE ALSO:
  - store.go: Store / TxStore interfaces
  - keys.go: Address derivation
  - bank.go, credits.go: Balance books
*/
package ledger

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// =============================================================================
// IDENTITY
// =============================================================================

// Identity is a verifiable principal. Callers are trusted to have authenticated
// it before handing it to the program.
type Identity [32]byte

// IdentityFromSeed derives a stable identity from a human-readable seed.
// Used for dev wallets, tests and the configured mint authority.
func IdentityFromSeed(seed string) Identity {
	return Identity(blake2b.Sum256([]byte("identity:" + seed)))
}

// ParseIdentity decodes a hex-encoded identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	if err := decodeHex32(s, id[:]); err != nil {
		return Identity{}, fmt.Errorf("parse identity: %w", err)
	}
	return id, nil
}

func (id Identity) String() string { return hex.EncodeToString(id[:]) }
func (id Identity) IsZero() bool   { return id == Identity{} }

// Wallet returns the address holding this identity's native balance.
func (id Identity) Wallet() Address { return Address(id) }

func (id Identity) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *Identity) UnmarshalText(b []byte) error {
	parsed, err := ParseIdentity(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// =============================================================================
// ADDRESS
// =============================================================================

// Address locates a record (or a wallet) in the store.
type Address [32]byte

// ParseAddress decodes a hex-encoded address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := decodeHex32(s, a[:]); err != nil {
		return Address{}, fmt.Errorf("parse address: %w", err)
	}
	return a, nil
}

func (a Address) String() string { return hex.EncodeToString(a[:]) }
func (a Address) IsZero() bool   { return a == Address{} }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func decodeHex32(s string, dst []byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != 32 {
		return fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(dst, raw)
	return nil
}

// =============================================================================
// RECORDS
// =============================================================================

// Kind discriminates record payloads. Domain packages declare their own kinds.
type Kind string

// Entry is one stored record.
type Entry struct {
	Address   Address
	Kind      Kind
	Size      int    // allocated footprint in bytes, fixed at creation
	Data      []byte // encoded payload
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy that shares no memory with e.
func (e Entry) Clone() Entry {
	out := e
	out.Data = append([]byte(nil), e.Data...)
	return out
}

// =============================================================================
// BALANCE BOOKS
// =============================================================================

// Asset names a balance book.
type Asset string

const (
	AssetNative Asset = "native" // currency, minor units
	AssetCredit Asset = "credit" // redeemable reward credits
)
