package charging

import (
	"context"
	"fmt"

	"github.com/warp/charge-ledger/ledger"
	"go.uber.org/zap"
)

// InitializeAccount creates the zeroed Account for signer. A second call for
// the same identity fails with ledger.ErrKeyAlreadyExists. There is no setter:
// only funding and session recording mutate an account.
func (p *Program) InitializeAccount(ctx context.Context, signer ledger.Identity) (*Account, error) {
	addr := p.AccountAddress(signer)
	account := Account{Authority: signer}

	err := p.store.WithTx(ctx, func(tx ledger.Store) error {
		return ledger.CreateRecord(ctx, tx, p.rent, signer.Wallet(), addr, KindAccount, AccountSize, &account)
	})
	if err != nil {
		return nil, fmt.Errorf("initialize account %s: %w", signer, err)
	}

	account.Address = addr
	p.logger.Info("account initialized", zap.Stringer("authority", signer), zap.Stringer("account", addr))
	return &account, nil
}

// Account loads the account registered for authority.
func (p *Program) Account(ctx context.Context, authority ledger.Identity) (*Account, error) {
	return loadAccount(ctx, p.store, p.AccountAddress(authority))
}

func loadAccount(ctx context.Context, s ledger.Store, addr ledger.Address) (*Account, error) {
	var a Account
	if err := ledger.LoadRecord(ctx, s, addr, KindAccount, &a); err != nil {
		return nil, err
	}
	a.Address = addr
	return &a, nil
}

// loadOwnAccount loads signer's account and checks it is the authority.
func (p *Program) loadOwnAccount(ctx context.Context, s ledger.Store, signer ledger.Identity) (*Account, error) {
	a, err := loadAccount(ctx, s, p.AccountAddress(signer))
	if err != nil {
		return nil, fmt.Errorf("account for %s: %w", signer, err)
	}
	if a.Authority != signer {
		return nil, ledger.ErrUnauthorized
	}
	return a, nil
}
