/*
bank.go - Native currency book and the minimum reserve rule

PURPOSE:
  Bank moves indivisible currency units between addresses. Wallets and
  records share one book: an escrow record's backing balance is simply the
  native balance at the escrow's address.

RESERVE:
  Every record must keep a minimum balance proportional to its allocated
  footprint, or it cannot exist. CreateRecord funds the reserve from the
  payer; release logic must leave it in place.

    reserve = (Overhead + size) * PerByte

  The defaults mirror a two-year rent-exempt minimum: 128 bytes of
  per-record overhead at 6960 units per byte.
*/
package ledger

import (
	"context"
	"math"
)

// =============================================================================
// RENT - Minimum reserve rule
// =============================================================================

// Rent computes the minimum balance a record must retain.
type Rent struct {
	Overhead uint64 `yaml:"overhead"`
	PerByte  uint64 `yaml:"per_byte"`
}

// DefaultRent is the reserve schedule used when none is configured.
var DefaultRent = Rent{Overhead: 128, PerByte: 6960}

// MinimumBalance returns the reserve for a record of the given size.
// Saturates at MaxUint64 so an absurd schedule can never be satisfied.
func (r Rent) MinimumBalance(size int) uint64 {
	total, err := CheckedAdd(r.Overhead, uint64(size))
	if err != nil {
		return math.MaxUint64
	}
	reserve, err := CheckedMul(total, r.PerByte)
	if err != nil {
		return math.MaxUint64
	}
	return reserve
}

// =============================================================================
// BANK - Atomic value transfer
// =============================================================================

// Bank moves native currency within a Store. Use it on the Store handed to
// WithTx so transfers commit or roll back with the surrounding operation.
type Bank struct {
	store Store
}

func NewBank(store Store) *Bank {
	return &Bank{store: store}
}

// Balance returns the native balance held at addr.
func (b *Bank) Balance(ctx context.Context, addr Address) (uint64, error) {
	return b.store.Balance(ctx, AssetNative, addr)
}

// Deposit credits new currency to addr. Used for dev funding only.
func (b *Bank) Deposit(ctx context.Context, to Address, amount uint64) error {
	bal, err := b.store.Balance(ctx, AssetNative, to)
	if err != nil {
		return err
	}
	next, err := CheckedAdd(bal, amount)
	if err != nil {
		return err
	}
	return b.store.SetBalance(ctx, AssetNative, to, next)
}

// Transfer moves amount from one address to another, or fails without effect.
func (b *Bank) Transfer(ctx context.Context, from, to Address, amount uint64) error {
	return transfer(ctx, b.store, AssetNative, from, to, amount, func(available uint64) error {
		return &InsufficientFundsError{Address: from, Available: available, Required: amount}
	})
}

func transfer(ctx context.Context, s Store, asset Asset, from, to Address, amount uint64, short func(uint64) error) error {
	fromBal, err := s.Balance(ctx, asset, from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return short(fromBal)
	}
	if from == to || amount == 0 {
		return nil
	}
	toBal, err := s.Balance(ctx, asset, to)
	if err != nil {
		return err
	}
	nextTo, err := CheckedAdd(toBal, amount)
	if err != nil {
		return err
	}
	if err := s.SetBalance(ctx, asset, from, fromBal-amount); err != nil {
		return err
	}
	return s.SetBalance(ctx, asset, to, nextTo)
}
