package ledger

import (
	"context"
	"fmt"
)

// CreditLedger is the redeemable-credit book. Balances belong to identities;
// only the configured mint authority can create new credits.
type CreditLedger struct {
	store     Store
	authority Identity
}

// NewCreditLedger binds the credit book in store to its mint authority.
func NewCreditLedger(store Store, authority Identity) *CreditLedger {
	return &CreditLedger{store: store, authority: authority}
}

// BalanceOf returns owner's redeemable credits.
func (c *CreditLedger) BalanceOf(ctx context.Context, owner Identity) (uint64, error) {
	return c.store.Balance(ctx, AssetCredit, owner.Wallet())
}

// Transfer moves n credits between identities.
func (c *CreditLedger) Transfer(ctx context.Context, from, to Identity, n uint64) error {
	return transfer(ctx, c.store, AssetCredit, from.Wallet(), to.Wallet(), n, func(available uint64) error {
		return &NotEnoughCreditsError{Owner: from, Available: available, Requested: n}
	})
}

// Mint creates n credits for to. The presented authority must match the
// ledger's mint authority; a user signature is never enough.
func (c *CreditLedger) Mint(ctx context.Context, authority Identity, to Identity, n uint64) error {
	if authority != c.authority {
		return fmt.Errorf("mint credits: %w", ErrUnauthorized)
	}
	bal, err := c.store.Balance(ctx, AssetCredit, to.Wallet())
	if err != nil {
		return err
	}
	next, err := CheckedAdd(bal, n)
	if err != nil {
		return fmt.Errorf("mint credits: %w", err)
	}
	return c.store.SetBalance(ctx, AssetCredit, to.Wallet(), next)
}
