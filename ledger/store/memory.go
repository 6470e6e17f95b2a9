// Package store provides Store implementations.
package store

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/warp/charge-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory arena keyed by derived address (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	records  map[ledger.Address]ledger.Entry
	balances map[balanceKey]uint64
}

type balanceKey struct {
	Asset   ledger.Asset
	Address ledger.Address
}

func NewMemory() *Memory {
	return &Memory{
		records:  make(map[ledger.Address]ledger.Entry),
		balances: make(map[balanceKey]uint64),
	}
}

var _ ledger.TxStore = (*Memory)(nil)

// Get returns a copy of the record at addr.
func (m *Memory) Get(_ context.Context, addr ledger.Address) (ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(addr)
}

// Insert creates a record. Check and insert happen under one lock.
func (m *Memory) Insert(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(e)
}

func (m *Memory) Update(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(e)
}

func (m *Memory) List(_ context.Context, kind ledger.Kind) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(kind), nil
}

func (m *Memory) Balance(_ context.Context, asset ledger.Asset, addr ledger.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[balanceKey{Asset: asset, Address: addr}], nil
}

func (m *Memory) SetBalance(_ context.Context, asset ledger.Asset, addr ledger.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setBalanceLocked(asset, addr, amount)
	return nil
}

func (m *Memory) getLocked(addr ledger.Address) (ledger.Entry, error) {
	e, ok := m.records[addr]
	if !ok {
		return ledger.Entry{}, ledger.ErrRecordNotFound
	}
	return e.Clone(), nil
}

func (m *Memory) insertLocked(e ledger.Entry) error {
	if _, exists := m.records[e.Address]; exists {
		return ledger.ErrKeyAlreadyExists
	}
	m.records[e.Address] = e.Clone()
	return nil
}

func (m *Memory) updateLocked(e ledger.Entry) error {
	if _, exists := m.records[e.Address]; !exists {
		return ledger.ErrRecordNotFound
	}
	m.records[e.Address] = e.Clone()
	return nil
}

func (m *Memory) listLocked(kind ledger.Kind) []ledger.Entry {
	var result []ledger.Entry
	for _, e := range m.records {
		if e.Kind == kind {
			result = append(result, e.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return bytes.Compare(result[i].Address[:], result[j].Address[:]) < 0
	})
	return result
}

func (m *Memory) setBalanceLocked(asset ledger.Asset, addr ledger.Address, amount uint64) {
	k := balanceKey{Asset: asset, Address: addr}
	if amount == 0 {
		delete(m.balances, k)
		return
	}
	m.balances[k] = amount
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so operations are serialized.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}

	// Commit (already done via direct writes)
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	recordsCopy := make(map[ledger.Address]ledger.Entry, len(m.records))
	for k, v := range m.records {
		recordsCopy[k] = v
	}
	balancesCopy := make(map[balanceKey]uint64, len(m.balances))
	for k, v := range m.balances {
		balancesCopy[k] = v
	}
	return memorySnapshot{records: recordsCopy, balances: balancesCopy}
}

func (m *Memory) restore(s memorySnapshot) {
	m.records = s.records
	m.balances = s.balances
}

type memorySnapshot struct {
	records  map[ledger.Address]ledger.Entry
	balances map[balanceKey]uint64
}

// txMemoryView is the Store handed to WithTx callbacks. The parent lock is
// already held, so it calls the *Locked helpers directly.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) Get(_ context.Context, addr ledger.Address) (ledger.Entry, error) {
	return tv.parent.getLocked(addr)
}

func (tv *txMemoryView) Insert(_ context.Context, e ledger.Entry) error {
	return tv.parent.insertLocked(e)
}

func (tv *txMemoryView) Update(_ context.Context, e ledger.Entry) error {
	return tv.parent.updateLocked(e)
}

func (tv *txMemoryView) List(_ context.Context, kind ledger.Kind) ([]ledger.Entry, error) {
	return tv.parent.listLocked(kind), nil
}

func (tv *txMemoryView) Balance(_ context.Context, asset ledger.Asset, addr ledger.Address) (uint64, error) {
	return tv.parent.balances[balanceKey{Asset: asset, Address: addr}], nil
}

func (tv *txMemoryView) SetBalance(_ context.Context, asset ledger.Asset, addr ledger.Address, amount uint64) error {
	tv.parent.setBalanceLocked(asset, addr, amount)
	return nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all records and balances. Dev only.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[ledger.Address]ledger.Entry)
	m.balances = make(map[balanceKey]uint64)
	return nil
}
