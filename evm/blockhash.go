// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"sync"

	nortypes "github.com/norn-chain/norn/core/types"
)

// blockHashWindow is the depth of the BLOCKHASH history, per spec §4.6.3.
const blockHashWindow = 256

// BlockHashHistory is a circular buffer of the last 256 (number, hash)
// pairs backing the EVM's BLOCKHASH opcode, per spec §4.6.3.
type BlockHashHistory struct {
	mu      sync.RWMutex
	hashes  [blockHashWindow]nortypes.Hash
	numbers [blockHashWindow]uint64
	filled  [blockHashWindow]bool
	current uint64
}

// NewBlockHashHistory constructs an empty history.
func NewBlockHashHistory() *BlockHashHistory {
	return &BlockHashHistory{}
}

// Record appends the (number, hash) pair of a newly applied block and
// advances the "current" pointer used by Get's range check.
func (b *BlockHashHistory) Record(number uint64, hash nortypes.Hash) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := number % blockHashWindow
	b.hashes[idx] = hash
	b.numbers[idx] = number
	b.filled[idx] = true
	if number+1 > b.current {
		b.current = number + 1
	}
}

// Get implements spec §4.6.3's BLOCKHASH(n): zero if n >= current, zero
// if current-n > 256, otherwise the stored hash.
func (b *BlockHashHistory) Get(n uint64) nortypes.Hash {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n >= b.current {
		return nortypes.Hash{}
	}
	if b.current-n > blockHashWindow {
		return nortypes.Hash{}
	}
	idx := n % blockHashWindow
	if !b.filled[idx] || b.numbers[idx] != n {
		return nortypes.Hash{}
	}
	return b.hashes[idx]
}
