/*
escrow.go - Escrow funding and release

FUNDING (OpenAndFund):
  1. discount = credits * credit_value           (checked multiply)
     discount > payment                          -> ErrInvalidDiscount
  2. net = payment - discount                    (checked subtract)
  3. credits > 0: consumer's credit balance must cover them; credits move
     consumer -> charger owner
  4. reward accrual on the pre-increment charge count (see rewards/)
  5. escrow record created at EscrowAddress(user, charger, session id) and
     net moved consumer -> escrow
  6. charge_count++

  Steps run in one transaction. Minting happens before the currency moves,
  and a failure anywhere rolls back the credits, the mint, the record and
  the transfer together.

RELEASE:
  available = escrow backing balance (net + reserve, plus anything sent
  to the address directly)
  R         = reserve for the escrow footprint

  available < requested + R                      -> ErrInsufficientFunds
  payout    = min(requested, available - R)

  The signer must be the escrow owner or the authority of the consumer's
  account. Payment always goes to the owner: either the owner signed, or
  the nominated payee must equal the owner. is_released flips once.

IDEMPOTENCY:
  The session id is part of the escrow key. Resubmitting the same funding
  fails with ErrKeyAlreadyExists instead of charging twice.
*/
package charging

import (
	"context"
	"fmt"

	"github.com/warp/charge-ledger/ledger"
	"go.uber.org/zap"
)

// =============================================================================
// FUNDING
// =============================================================================

// FundRequest opens and funds the escrow of one charging session.
type FundRequest struct {
	Signer          ledger.Identity
	Charger         ledger.Address
	SessionID       string
	PaymentAmount   uint64
	CreditsToRedeem uint64
	CreditValue     uint64 // currency units per redeemed credit
}

// Split is the payment breakdown of a funding request.
type Split struct {
	Discount uint64
	Net      uint64
}

// ComputeSplit returns the discount and net currency of a payment.
func ComputeSplit(payment, credits, creditValue uint64) (Split, error) {
	discount, err := ledger.CheckedMul(credits, creditValue)
	if err != nil {
		return Split{}, fmt.Errorf("discount: %w", err)
	}
	if discount > payment {
		return Split{}, fmt.Errorf("%w: discount %d, payment %d", ledger.ErrInvalidDiscount, discount, payment)
	}
	net, err := ledger.CheckedSub(payment, discount)
	if err != nil {
		return Split{}, fmt.Errorf("net amount: %w", err)
	}
	return Split{Discount: discount, Net: net}, nil
}

// FundResult reports what a funding operation did.
type FundResult struct {
	Escrow        *Escrow
	Split         Split
	CreditsMinted uint64
	Account       *Account
}

// OpenAndFund creates the session escrow and moves the net payment into it.
func (p *Program) OpenAndFund(ctx context.Context, req FundRequest) (*FundResult, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("fund escrow: %w: session_id", ledger.ErrMissingField)
	}
	if len(req.SessionID) > MaxSessionIDLen {
		return nil, fmt.Errorf("fund escrow: %w",
			&ledger.FieldTooLongError{Field: "session_id", Max: MaxSessionIDLen, Got: len(req.SessionID)})
	}

	split, err := ComputeSplit(req.PaymentAmount, req.CreditsToRedeem, req.CreditValue)
	if err != nil {
		return nil, fmt.Errorf("fund escrow: %w", err)
	}

	addr := p.EscrowAddress(req.Signer, req.Charger, req.SessionID)
	redeemed := req.CreditsToRedeem > 0

	var (
		escrow  Escrow
		account *Account
		minted  uint64
	)
	err = p.store.WithTx(ctx, func(tx ledger.Store) error {
		var charger Charger
		if err := ledger.LoadRecord(ctx, tx, req.Charger, KindCharger, &charger); err != nil {
			return fmt.Errorf("charger %s: %w", req.Charger, err)
		}

		var err error
		account, err = p.loadOwnAccount(ctx, tx, req.Signer)
		if err != nil {
			return err
		}

		credits := p.credits(tx)
		if redeemed {
			balance, err := credits.BalanceOf(ctx, req.Signer)
			if err != nil {
				return err
			}
			if balance < req.CreditsToRedeem {
				return &ledger.NotEnoughCreditsError{Owner: req.Signer, Available: balance, Requested: req.CreditsToRedeem}
			}
			if err := credits.Transfer(ctx, req.Signer, charger.Owner, req.CreditsToRedeem); err != nil {
				return fmt.Errorf("redeem credits: %w", err)
			}
		}

		preCount := account.ChargeCount
		minted, err = p.minter.Accrue(ctx, credits, req.Signer, preCount, redeemed)
		if err != nil {
			return err
		}
		if account.RewardBalance, err = ledger.CheckedAdd(account.RewardBalance, minted); err != nil {
			return fmt.Errorf("reward balance: %w", err)
		}

		escrow = Escrow{
			User:       req.Signer,
			Owner:      charger.Owner,
			Charger:    req.Charger,
			SessionID:  req.SessionID,
			Amount:     split.Net,
			IsReleased: false,
		}
		if err := ledger.CreateRecord(ctx, tx, p.rent, req.Signer.Wallet(), addr, KindEscrow, EscrowSize, &escrow); err != nil {
			return err
		}
		if split.Net > 0 {
			if err := ledger.NewBank(tx).Transfer(ctx, req.Signer.Wallet(), addr, split.Net); err != nil {
				return fmt.Errorf("deposit escrow: %w", err)
			}
		}

		if account.ChargeCount, err = ledger.CheckedAdd(preCount, 1); err != nil {
			return fmt.Errorf("charge count: %w", err)
		}
		return ledger.SaveRecord(ctx, tx, account.Address, KindAccount, account)
	})
	if err != nil {
		return nil, fmt.Errorf("fund escrow: %w", err)
	}

	escrow.Address = addr
	p.logger.Info("escrow funded",
		zap.Stringer("escrow", addr),
		zap.Stringer("user", req.Signer),
		zap.Stringer("charger", req.Charger),
		zap.String("session_id", req.SessionID),
		zap.Uint64("payment", req.PaymentAmount),
		zap.Uint64("discount", split.Discount),
		zap.Uint64("net", split.Net),
		zap.Uint64("credits_redeemed", req.CreditsToRedeem),
		zap.Uint64("credits_minted", minted),
		zap.Uint32("charge_count", account.ChargeCount),
	)
	return &FundResult{Escrow: &escrow, Split: split, CreditsMinted: minted, Account: account}, nil
}

// =============================================================================
// RELEASE
// =============================================================================

// ReleaseRequest settles an escrow to its owner.
type ReleaseRequest struct {
	Signer ledger.Identity
	Escrow ledger.Address
	Amount uint64
	// Payee receives the payout when the signer is not the owner.
	// It must equal the escrow owner.
	Payee ledger.Identity
}

// Settlement reports a completed release.
type Settlement struct {
	Escrow *Escrow
	Payee  ledger.Identity
	Payout uint64
}

// Release pays the escrow out to its owner and marks it released. A second
// call fails with ledger.ErrAlreadyReleased.
func (p *Program) Release(ctx context.Context, req ReleaseRequest) (*Settlement, error) {
	var (
		escrow Escrow
		payee  ledger.Identity
		payout uint64
	)
	err := p.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := ledger.LoadRecord(ctx, tx, req.Escrow, KindEscrow, &escrow); err != nil {
			return err
		}
		if escrow.IsReleased {
			return ledger.ErrAlreadyReleased
		}

		bank := ledger.NewBank(tx)
		available, err := bank.Balance(ctx, req.Escrow)
		if err != nil {
			return err
		}
		reserve := p.rent.MinimumBalance(EscrowSize)
		required, err := ledger.CheckedAdd(req.Amount, reserve)
		if err != nil {
			return fmt.Errorf("required balance: %w", err)
		}
		if available < required {
			return &ledger.InsufficientFundsError{Address: req.Escrow, Available: available, Required: required}
		}
		payout = min(req.Amount, available-reserve)

		payee, err = p.resolvePayee(ctx, tx, &escrow, req)
		if err != nil {
			return err
		}

		if err := bank.Transfer(ctx, req.Escrow, payee.Wallet(), payout); err != nil {
			return fmt.Errorf("pay out escrow: %w", err)
		}
		escrow.IsReleased = true
		return ledger.SaveRecord(ctx, tx, req.Escrow, KindEscrow, &escrow)
	})
	if err != nil {
		return nil, fmt.Errorf("release escrow %s: %w", req.Escrow, err)
	}

	escrow.Address = req.Escrow
	p.logger.Info("escrow released",
		zap.Stringer("escrow", req.Escrow),
		zap.Stringer("signer", req.Signer),
		zap.Stringer("payee", payee),
		zap.Uint64("requested", req.Amount),
		zap.Uint64("payout", payout),
	)
	return &Settlement{Escrow: &escrow, Payee: payee, Payout: payout}, nil
}

// resolvePayee authorizes the signer and returns who gets paid.
func (p *Program) resolvePayee(ctx context.Context, s ledger.Store, escrow *Escrow, req ReleaseRequest) (ledger.Identity, error) {
	if req.Signer == escrow.Owner {
		return req.Signer, nil
	}

	account, err := loadAccount(ctx, s, p.AccountAddress(escrow.User))
	if err != nil {
		if ledger.IsNotFound(err) {
			return ledger.Identity{}, ledger.ErrUnauthorized
		}
		return ledger.Identity{}, err
	}
	if account.Authority != req.Signer {
		return ledger.Identity{}, ledger.ErrUnauthorized
	}
	if req.Payee != escrow.Owner {
		return ledger.Identity{}, fmt.Errorf("%w: payee is not the escrow owner", ledger.ErrUnauthorized)
	}
	return req.Payee, nil
}

// Escrow loads the escrow at addr.
func (p *Program) Escrow(ctx context.Context, addr ledger.Address) (*Escrow, error) {
	var e Escrow
	if err := ledger.LoadRecord(ctx, p.store, addr, KindEscrow, &e); err != nil {
		return nil, err
	}
	e.Address = addr
	return &e, nil
}
