// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state implements the C6 state manager of spec §4.5: account
// and storage CRUD, a state root computed as an address-ordered SHA-256
// fold (documented simplification of a true Merkle-Patricia trie, with
// an explicit upgrade path noted in spec §4.5's Non-goals), history via
// snapshots and change-record replay, and pruning.
//
// Grounded on original_source/crates/core/src/state/history.rs and
// pruning.rs for the algorithms, and on the teacher's core/state package
// for the Go idiom of a manager type wrapping a KV store with an
// in-memory dirty-set.
package state

import (
	"bytes"
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/norn-chain/norn/core/types"
	"github.com/norn-chain/norn/crypto"
	"github.com/norn-chain/norn/storage"
)

// ErrInsufficientBalance is returned by SubBalance when amount exceeds
// addr's current balance; spec §4.5 defines balance as an unbounded
// non-negative integer, so debits never produce a negative result.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

// Account is the persisted account record of spec §4.5.
type Account struct {
	Balance *big.Int
	Nonce   uint64
	Code    []byte
}

func (a *Account) clone() *Account {
	if a == nil {
		return &Account{Balance: new(big.Int)}
	}
	return &Account{Balance: new(big.Int).Set(a.Balance), Nonce: a.Nonce, Code: append([]byte(nil), a.Code...)}
}

// Manager owns account and storage state for the chain's current head.
type Manager struct {
	mu sync.RWMutex

	kv  storage.KV
	wal *storage.Writer
	txID uint64

	accounts map[types.Address]*Account
	storageS map[types.Address]map[types.Hash]types.Hash

	// hist, if attached via AttachHistory, receives a ChangeRecord for
	// every account mutation at the manager's current height, per spec
	// §4.5's C6 history/time-travel feature.
	hist   *History
	height uint64
}

// New constructs a Manager backed by kv, with no write-ahead log: Persist
// writes straight to kv, relying on pebble's own internal WAL+fsync
// (storage.PebbleKV always opens with pebble.Sync) for crash durability
// of each batch.
func New(kv storage.KV) *Manager {
	return &Manager{
		kv:       kv,
		accounts: make(map[types.Address]*Account),
		storageS: make(map[types.Address]map[types.Hash]types.Hash),
	}
}

// NewWithWAL constructs a Manager that additionally records every
// Persist call as a bracketed transaction in the application-level WAL
// of spec §6 (TxBegin/UpdateAccount/WriteStorage/TxCommit), independent
// of whatever durability the backing KV store itself provides. This is
// the layout recovered by storage.Recover on startup.
func NewWithWAL(kv storage.KV, wal *storage.Writer) *Manager {
	m := New(kv)
	m.wal = wal
	return m
}

// AttachHistory wires h into the manager so every subsequent account
// mutation is recorded, enabling History.GetAccountAtHeight to actually
// reflect applied blocks rather than an always-empty log.
func (m *Manager) AttachHistory(h *History) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hist = h
}

// SetHeight records the height at which subsequent mutations occur, so
// they are attributed to the right block in the attached History.
func (m *Manager) SetHeight(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = height
}

// Clone returns an independent Manager seeded with a deep copy of m's
// current account and storage tables, with no WAL and no history
// attached. Used for speculative execution (e.g. fast sync's checkpoint
// verification) that must not mutate or record against the live chain.
func (m *Manager) Clone() *Manager {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := &Manager{
		kv:       m.kv,
		accounts: make(map[types.Address]*Account, len(m.accounts)),
		storageS: make(map[types.Address]map[types.Hash]types.Hash, len(m.storageS)),
		height:   m.height,
	}
	for addr, acc := range m.accounts {
		c.accounts[addr] = acc.clone()
	}
	for addr, slots := range m.storageS {
		inner := make(map[types.Hash]types.Hash, len(slots))
		for k, v := range slots {
			inner[k] = v
		}
		c.storageS[addr] = inner
	}
	return c
}

// recordDiffLocked compares prev against the account now stored for addr
// and records one ChangeRecord per field that differs. Caller holds
// m.mu and m.hist is known non-nil.
func (m *Manager) recordDiffLocked(addr types.Address, prev *Account) {
	cur, ok := m.accounts[addr]
	if !ok {
		return
	}
	if prev == nil {
		prev = &Account{Balance: new(big.Int)}
	}
	if prev.Balance.Cmp(cur.Balance) != 0 {
		m.hist.RecordChange(m.height, addr, ChangeBalance, prev)
	}
	if prev.Nonce != cur.Nonce {
		m.hist.RecordChange(m.height, addr, ChangeNonce, prev)
	}
	if !bytes.Equal(prev.Code, cur.Code) {
		m.hist.RecordChange(m.height, addr, ChangeCode, prev)
	}
}

// GetAccount returns a copy of addr's account, or a zero account if
// absent.
func (m *Manager) GetAccount(addr types.Address) *Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[addr]; ok {
		return a.clone()
	}
	return &Account{Balance: new(big.Int)}
}

// SetAccount overwrites addr's account, recording the prior values in
// the attached History (if any) before doing so.
func (m *Manager) SetAccount(addr types.Address, acc *Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prev *Account
	if m.hist != nil {
		prev = m.accounts[addr].clone()
	}
	m.accounts[addr] = acc.clone()
	if m.hist != nil {
		m.recordDiffLocked(addr, prev)
	}
}

// AddBalance credits addr's balance by amount.
func (m *Manager) AddBalance(addr types.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prev *Account
	if m.hist != nil {
		prev = m.accountLocked(addr).clone()
	}
	acc := m.accountLocked(addr)
	acc.Balance.Add(acc.Balance, amount)
	if m.hist != nil {
		m.recordDiffLocked(addr, prev)
	}
}

// SubBalance debits addr's balance by amount, failing with
// ErrInsufficientBalance rather than producing a negative balance.
func (m *Manager) SubBalance(addr types.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := m.accountLocked(addr)
	if acc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	var prev *Account
	if m.hist != nil {
		prev = acc.clone()
	}
	acc.Balance.Sub(acc.Balance, amount)
	if m.hist != nil {
		m.recordDiffLocked(addr, prev)
	}
	return nil
}

// IncrementNonce bumps addr's nonce by one and returns the new value.
func (m *Manager) IncrementNonce(addr types.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prev *Account
	if m.hist != nil {
		prev = m.accountLocked(addr).clone()
	}
	acc := m.accountLocked(addr)
	acc.Nonce++
	if m.hist != nil {
		m.recordDiffLocked(addr, prev)
	}
	return acc.Nonce
}

func (m *Manager) accountLocked(addr types.Address) *Account {
	acc, ok := m.accounts[addr]
	if !ok {
		acc = &Account{Balance: new(big.Int)}
		m.accounts[addr] = acc
	}
	return acc
}

// GetStorage returns addr's value at key, or the zero hash if unset.
func (m *Manager) GetStorage(addr types.Address, key types.Hash) types.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if slots, ok := m.storageS[addr]; ok {
		return slots[key]
	}
	return types.Hash{}
}

// SetStorage sets addr's value at key.
func (m *Manager) SetStorage(addr types.Address, key, value types.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots, ok := m.storageS[addr]
	if !ok {
		slots = make(map[types.Hash]types.Hash)
		m.storageS[addr] = slots
	}
	slots[key] = value
}

// DeleteStorage removes addr's value at key.
func (m *Manager) DeleteStorage(addr types.Address, key types.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slots, ok := m.storageS[addr]; ok {
		delete(slots, key)
	}
}

// StateRoot computes the state root of spec §4.5: accounts are ordered
// by address, and each account's encoding (address || balance || nonce
// || code hash) is folded into a running SHA-256 accumulator. This is an
// explicit simplification of a Merkle-Patricia trie; spec §4.5 documents
// it as an intentional first-cut with an upgrade path, not an oversight.
func (m *Manager) StateRoot() types.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()

	addrs := make([]types.Address, 0, len(m.accounts))
	for a := range m.accounts {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return lessAddress(addrs[i], addrs[j])
	})

	acc := types.Hash{}
	for _, addr := range addrs {
		account := m.accounts[addr]
		codeHash := crypto.Sha256(account.Code)
		acc = crypto.Sha256(acc[:], addr[:], account.Balance.Bytes(), encodeUint64(account.Nonce), codeHash[:])
	}
	return acc
}

func lessAddress(a, b types.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func encodeUint64(v uint64) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[7-i] = byte(v >> (8 * i))
	}
	return out
}

// Persist flushes in-memory accounts and storage to the backing KV
// store, per spec §6's record stream. If a WAL writer is attached (see
// NewWithWAL), the flush is first bracketed by a TxBegin/TxCommit pair
// of WAL records so a crash mid-batch is recoverable via storage.Recover;
// a committed pebble batch failing mid-way already leaves the KV in its
// pre-batch state (spec §9's scoped-acquisition guarantee), so the WAL
// here exists to replay the *intended* writes, not to protect pebble's
// own batch atomicity.
func (m *Manager) Persist() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kvs := make(map[string][]byte)
	if m.wal != nil {
		m.txID++
		txID := m.txID
		if err := m.wal.Append(storage.Record{Kind: storage.RecordTxBegin, TxID: txID}); err != nil {
			return err
		}
		for addr, acc := range m.accounts {
			if err := m.wal.Append(storage.Record{
				Kind:    storage.RecordUpdateAccount,
				Address: addr,
				Balance: acc.Balance,
				Nonce:   acc.Nonce,
			}); err != nil {
				return err
			}
		}
		for addr, slots := range m.storageS {
			for key, val := range slots {
				if err := m.wal.Append(storage.Record{
					Kind:    storage.RecordWriteStorage,
					Address: addr,
					Key:     key,
					Value:   val,
				}); err != nil {
					return err
				}
			}
		}
		if err := m.wal.Append(storage.Record{Kind: storage.RecordTxCommit, TxID: txID}); err != nil {
			return err
		}
		if err := m.wal.Sync(); err != nil {
			return err
		}
	}

	for addr, acc := range m.accounts {
		kvs[string(storage.AccountKey(addr[:]))] = encodeAccount(acc)
	}
	for addr, slots := range m.storageS {
		for key, val := range slots {
			kvs[string(storage.StorageSlotKey(addr[:], key[:]))] = val[:]
		}
	}
	if err := m.kv.BatchInsert(kvs); err != nil {
		return err
	}
	if m.wal != nil {
		return m.wal.Truncate()
	}
	return nil
}

// RecoverFromWAL replays path's WAL records into m's backing KV store
// directly (bypassing the in-memory maps, since recovery runs before any
// account is loaded), per spec §6's recovery contract.
func RecoverFromWAL(path string, kv storage.KV) (storage.RecoveryStatus, error) {
	return storage.Recover(path, func(rec storage.Record) error {
		switch rec.Kind {
		case storage.RecordUpdateAccount, storage.RecordCreateAccount:
			acc := &Account{Balance: rec.Balance, Nonce: rec.Nonce}
			if acc.Balance == nil {
				acc.Balance = new(big.Int)
			}
			return kv.Put(storage.AccountKey(rec.Address[:]), encodeAccount(acc))
		case storage.RecordDeleteAccount:
			return kv.Delete(storage.AccountKey(rec.Address[:]))
		case storage.RecordWriteStorage:
			return kv.Put(storage.StorageSlotKey(rec.Address[:], rec.Key[:]), rec.Value[:])
		case storage.RecordDeleteStorage:
			return kv.Delete(storage.StorageSlotKey(rec.Address[:], rec.Key[:]))
		case storage.RecordCheckpoint:
			return kv.Put(storage.MetaKey("wal_checkpoint"), rec.Hash[:])
		}
		return nil
	})
}

func encodeAccount(a *Account) []byte {
	balBytes := a.Balance.Bytes()
	out := make([]byte, 0, 8+2+len(balBytes)+len(a.Code))
	out = append(out, encodeUint64(a.Nonce)...)
	out = append(out, byte(len(balBytes)>>8), byte(len(balBytes)))
	out = append(out, balBytes...)
	out = append(out, a.Code...)
	return out
}
