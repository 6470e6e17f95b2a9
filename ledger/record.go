package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CreateRecord encodes v and inserts it at addr with a fixed footprint, then
// funds the record's reserve from payer. Run inside WithTx: a failed reserve
// transfer must roll back the insert.
func CreateRecord(ctx context.Context, s Store, rent Rent, payer, addr Address, kind Kind, size int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	now := time.Now().UTC()
	if err := s.Insert(ctx, Entry{
		Address:   addr,
		Kind:      kind,
		Size:      size,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}
	if reserve := rent.MinimumBalance(size); reserve > 0 {
		if err := NewBank(s).Transfer(ctx, payer, addr, reserve); err != nil {
			return fmt.Errorf("fund %s reserve: %w", kind, err)
		}
	}
	return nil
}

// LoadRecord decodes the record at addr into v, checking its kind.
func LoadRecord(ctx context.Context, s Store, addr Address, kind Kind, v any) error {
	e, err := s.Get(ctx, addr)
	if err != nil {
		return err
	}
	return DecodeEntry(e, kind, v)
}

// DecodeEntry decodes an entry's payload into v, checking its kind.
func DecodeEntry(e Entry, kind Kind, v any) error {
	if e.Kind != kind {
		return fmt.Errorf("%w: %s holds %s, want %s", ErrWrongKind, e.Address, e.Kind, kind)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

// SaveRecord overwrites the payload of an existing record of the given kind.
func SaveRecord(ctx context.Context, s Store, addr Address, kind Kind, v any) error {
	e, err := s.Get(ctx, addr)
	if err != nil {
		return err
	}
	if e.Kind != kind {
		return fmt.Errorf("%w: %s holds %s, want %s", ErrWrongKind, addr, e.Kind, kind)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	e.Data = data
	e.UpdatedAt = time.Now().UTC()
	return s.Update(ctx, e)
}
