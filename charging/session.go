package charging

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/charge-ledger/ledger"
	"go.uber.org/zap"
)

// RecordSessionRequest describes a completed session.
type RecordSessionRequest struct {
	Signer      ledger.Identity
	Charger     ledger.Address
	ChargerName string
	Power       uint64
	PricePaid   uint64
	Minutes     uint64
	Timestamp   int64
}

// RecordSession appends an immutable ChargingSession keyed by
// (signer, timestamp) and adds it to the signer's account aggregates.
// Reusing a timestamp fails with ledger.ErrKeyAlreadyExists.
func (p *Program) RecordSession(ctx context.Context, req RecordSessionRequest) (*ChargingSession, error) {
	if len(req.ChargerName) > MaxNameLen {
		return nil, fmt.Errorf("record session: %w",
			&ledger.FieldTooLongError{Field: "charger_name", Max: MaxNameLen, Got: len(req.ChargerName)})
	}

	addr := p.SessionAddress(req.Signer, req.Timestamp)
	session := ChargingSession{
		User:        req.Signer,
		Charger:     req.Charger,
		ChargerName: req.ChargerName,
		Power:       req.Power,
		PricePaid:   req.PricePaid,
		Minutes:     req.Minutes,
		Timestamp:   req.Timestamp,
	}

	var account *Account
	err := p.store.WithTx(ctx, func(tx ledger.Store) error {
		var charger Charger
		if err := ledger.LoadRecord(ctx, tx, req.Charger, KindCharger, &charger); err != nil {
			return fmt.Errorf("charger %s: %w", req.Charger, err)
		}

		var err error
		account, err = p.loadOwnAccount(ctx, tx, req.Signer)
		if err != nil {
			return err
		}

		if err := ledger.CreateRecord(ctx, tx, p.rent, req.Signer.Wallet(), addr, KindSession, SessionSize, &session); err != nil {
			return err
		}

		if account.TotalPowerConsumed, err = ledger.CheckedAdd(account.TotalPowerConsumed, req.Power); err != nil {
			return fmt.Errorf("total power consumed: %w", err)
		}
		if account.TotalPricePaid, err = ledger.CheckedAdd(account.TotalPricePaid, req.PricePaid); err != nil {
			return fmt.Errorf("total price paid: %w", err)
		}
		if account.TotalSessions, err = ledger.CheckedAdd(account.TotalSessions, 1); err != nil {
			return fmt.Errorf("total sessions: %w", err)
		}
		return ledger.SaveRecord(ctx, tx, account.Address, KindAccount, account)
	})
	if err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	session.Address = addr
	p.logger.Info("session recorded",
		zap.Stringer("session", addr),
		zap.Stringer("user", req.Signer),
		zap.Stringer("charger", req.Charger),
		zap.Uint64("power", req.Power),
		zap.Uint64("price_paid", req.PricePaid),
		zap.Uint64("total_sessions", account.TotalSessions),
	)
	return &session, nil
}

// Session loads the session record at addr.
func (p *Program) Session(ctx context.Context, addr ledger.Address) (*ChargingSession, error) {
	var s ChargingSession
	if err := ledger.LoadRecord(ctx, p.store, addr, KindSession, &s); err != nil {
		return nil, err
	}
	s.Address = addr
	return &s, nil
}

// Sessions returns user's session history ordered by timestamp.
func (p *Program) Sessions(ctx context.Context, user ledger.Identity) ([]ChargingSession, error) {
	entries, err := p.store.List(ctx, KindSession)
	if err != nil {
		return nil, err
	}
	var out []ChargingSession
	for _, e := range entries {
		var s ChargingSession
		if err := ledger.DecodeEntry(e, KindSession, &s); err != nil {
			return nil, err
		}
		if s.User != user {
			continue
		}
		s.Address = e.Address
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}
