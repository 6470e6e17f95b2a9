package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/charge-ledger/ledger"
	"github.com/warp/charge-ledger/ledger/store"
)

func entry(seed string, kind ledger.Kind, created time.Time) ledger.Entry {
	return ledger.Entry{
		Address:   ledger.DeriveAddress(ledger.IdentityFromSeed("test"), []byte(seed)),
		Kind:      kind,
		Size:      16,
		Data:      []byte(`{}`),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemory_InsertCollision(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	e := entry("a", "charger", time.Now())

	require.NoError(t, m.Insert(ctx, e))
	assert.ErrorIs(t, m.Insert(ctx, e), ledger.ErrKeyAlreadyExists)
}

func TestMemory_UpdateMissing(t *testing.T) {
	m := store.NewMemory()
	err := m.Update(context.Background(), entry("a", "charger", time.Now()))
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	e := entry("a", "charger", time.Now())
	require.NoError(t, m.Insert(ctx, e))

	got, err := m.Get(ctx, e.Address)
	require.NoError(t, err)
	got.Data[0] = 'x'

	again, err := m.Get(ctx, e.Address)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), again.Data)
}

func TestMemory_ListOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Insert(ctx, entry("second", "charger", base.Add(time.Minute))))
	require.NoError(t, m.Insert(ctx, entry("first", "charger", base)))
	require.NoError(t, m.Insert(ctx, entry("other", "account", base)))

	list, err := m.List(ctx, "charger")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.Before(list[1].CreatedAt))
}

func TestMemory_WithTx_RollbackOnError(t *testing.T) {
	// GIVEN: A transaction that inserts a record and moves a balance
	// WHEN: The callback fails
	// THEN: Neither effect is visible afterwards

	ctx := context.Background()
	m := store.NewMemory()
	e := entry("a", "escrow", time.Now())
	wallet := ledger.IdentityFromSeed("user").Wallet()
	require.NoError(t, m.SetBalance(ctx, ledger.AssetNative, wallet, 50))

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx ledger.Store) error {
		require.NoError(t, tx.Insert(ctx, e))
		require.NoError(t, tx.SetBalance(ctx, ledger.AssetNative, wallet, 0))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = m.Get(ctx, e.Address)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
	bal, _ := m.Balance(ctx, ledger.AssetNative, wallet)
	assert.Equal(t, uint64(50), bal)
}

func TestMemory_WithTx_Commit(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	e := entry("a", "escrow", time.Now())

	err := m.WithTx(ctx, func(tx ledger.Store) error {
		return tx.Insert(ctx, e)
	})
	require.NoError(t, err)

	_, err = m.Get(ctx, e.Address)
	assert.NoError(t, err)
}
