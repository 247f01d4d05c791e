// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"math/big"
	"sort"
	"sync"

	"github.com/norn-chain/norn/core/types"
)

// ChangeKind discriminates the account field a ChangeRecord touched,
// grounded on original_source/crates/core/src/state/history.rs.
type ChangeKind uint8

const (
	ChangeBalance ChangeKind = iota
	ChangeNonce
	ChangeCode
)

// ChangeRecord captures an account field's value immediately before a
// mutation applied at Height, enabling time-travel queries to "undo"
// changes by replaying records backward from the live state, per
// original_source/crates/core/src/state/history.rs.
type ChangeRecord struct {
	Height  uint64
	Address types.Address
	Kind    ChangeKind

	PrevBalance *big.Int
	PrevNonce   uint64
	PrevCode    []byte
}

// Snapshot is a full account-table copy taken at a block height, used
// as a fallback when the record needed to reconstruct an older height
// has already been pruned.
type Snapshot struct {
	Height   uint64
	Accounts map[types.Address]*Account
}

// History is the time-travel index layered over a Manager.
type History struct {
	mu sync.RWMutex

	snapshotInterval uint64
	snapshots        []Snapshot
	records          []ChangeRecord
}

// NewHistory constructs a History that snapshots every snapshotInterval
// blocks.
func NewHistory(snapshotInterval uint64) *History {
	if snapshotInterval == 0 {
		snapshotInterval = 100
	}
	return &History{snapshotInterval: snapshotInterval}
}

// RecordChange appends a change record for a mutation about to be
// applied at height, capturing the account's pre-mutation values.
func (h *History) RecordChange(height uint64, addr types.Address, kind ChangeKind, prev *Account) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec := ChangeRecord{Height: height, Address: addr, Kind: kind}
	if prev != nil {
		rec.PrevBalance = new(big.Int).Set(prev.Balance)
		rec.PrevNonce = prev.Nonce
		rec.PrevCode = append([]byte(nil), prev.Code...)
	} else {
		rec.PrevBalance = new(big.Int)
	}
	h.records = append(h.records, rec)
}

// MaybeSnapshot takes a full snapshot of m's account table at height if
// height falls on the snapshot interval.
func (h *History) MaybeSnapshot(height uint64, m *Manager) {
	if height%h.snapshotInterval != 0 {
		return
	}
	m.mu.RLock()
	accounts := make(map[types.Address]*Account, len(m.accounts))
	for a, acc := range m.accounts {
		accounts[a] = acc.clone()
	}
	m.mu.RUnlock()

	h.mu.Lock()
	h.snapshots = append(h.snapshots, Snapshot{Height: height, Accounts: accounts})
	h.mu.Unlock()
}

// GetAccountAtHeight reconstructs addr's account as of height by
// replaying addr's change records backward from the live state: for
// every record with Height > height, ordered most-recent-first, the
// touched field is reset to the record's pre-change value. If the
// oldest retained record for addr is itself newer than height (the
// older records have been pruned), the nearest snapshot at or before
// height is used instead; storage slots are not reconstructable, per
// original_source/crates/core/src/state/history.rs.
func (h *History) GetAccountAtHeight(addr types.Address, height uint64, current *Manager) *Account {
	h.mu.RLock()
	defer h.mu.RUnlock()

	relevant := make([]ChangeRecord, 0)
	for _, rec := range h.records {
		if rec.Address == addr && rec.Height > height {
			relevant = append(relevant, rec)
		}
	}
	sort.Slice(relevant, func(i, j int) bool { return relevant[i].Height > relevant[j].Height })

	oldestRetained := h.oldestRecordHeightLocked(addr)
	if oldestRetained > 0 && oldestRetained > height+1 {
		if snap := h.nearestSnapshotLocked(height); snap != nil {
			if a, ok := snap.Accounts[addr]; ok {
				return a.clone()
			}
			return &Account{Balance: new(big.Int)}
		}
	}

	acc := current.GetAccount(addr)
	for _, rec := range relevant {
		switch rec.Kind {
		case ChangeBalance:
			acc.Balance = new(big.Int).Set(rec.PrevBalance)
		case ChangeNonce:
			acc.Nonce = rec.PrevNonce
		case ChangeCode:
			acc.Code = append([]byte(nil), rec.PrevCode...)
		}
	}
	return acc
}

func (h *History) oldestRecordHeightLocked(addr types.Address) uint64 {
	oldest := uint64(0)
	for _, rec := range h.records {
		if rec.Address != addr {
			continue
		}
		if oldest == 0 || rec.Height < oldest {
			oldest = rec.Height
		}
	}
	return oldest
}

func (h *History) nearestSnapshotLocked(height uint64) *Snapshot {
	var best *Snapshot
	for i := range h.snapshots {
		if h.snapshots[i].Height <= height {
			if best == nil || h.snapshots[i].Height > best.Height {
				best = &h.snapshots[i]
			}
		}
	}
	return best
}

// PruneBefore discards change records and snapshots strictly older than
// cutoff, per the pruning cutoff computed by the state package's
// pruning policy.
func (h *History) PruneBefore(cutoff uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	keptRecords := h.records[:0]
	for _, rec := range h.records {
		if rec.Height >= cutoff {
			keptRecords = append(keptRecords, rec)
		}
	}
	h.records = keptRecords

	keptSnaps := h.snapshots[:0]
	for _, s := range h.snapshots {
		if s.Height >= cutoff {
			keptSnaps = append(keptSnaps, s)
		}
	}
	h.snapshots = keptSnaps
}
