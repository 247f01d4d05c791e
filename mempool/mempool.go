// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mempool implements the C5 priority mempool of spec §4.2:
// a hash map of pending transactions, a priority index by effective
// gas price (FIFO tie-break), and a per-sender nonce-ordered index for
// EIP-1559-aware replace-by-fee.
//
// Grounded on original_source/crates/core/src/txpool.rs for the overall
// shape (map + package() that excludes already-chained txs) and on the
// teacher's core/txpool/txpool.go for the idiomatic Go structuring:
// a priority queue from go-ethereum's common/prque, RWMutex-guarded
// maps, and a capability interface for the chain it reads account
// nonces and already-mined transactions from.
package mempool

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common/prque"

	"github.com/norn-chain/norn/core/types"
	"github.com/norn-chain/norn/eventbus"
)

var (
	ErrAlreadyKnown       = errors.New("mempool: transaction already known")
	ErrReplaceUnderpriced = errors.New("mempool: replacement transaction underpriced")
	ErrGasLimitExceeded   = errors.New("mempool: transaction gas limit exceeds block gas limit")
	ErrPoolFull           = errors.New("mempool: pool is full")
)

// replacementBumpNumerator/Denominator implement the at-least-10%-higher
// effective-gas-price replacement rule of spec §4.2.
const (
	replacementBumpNumerator   = 110
	replacementBumpDenominator = 100
)

type senderQueue struct {
	byNonce map[uint64]*types.Transaction
}

// Pool is the priority mempool. The prque index orders by int64
// priority; ties are broken FIFO using a monotonic insertion sequence
// recorded per hash (spec §4.2).
type Pool struct {
	mu sync.RWMutex

	byHash   map[types.Hash]*types.Transaction
	bySender map[types.Address]*senderQueue
	seqByTx  map[types.Hash]int64
	priced   *prque.Prque[int64, types.Hash]

	maxSize int
	seq     int64

	bus *eventbus.Bus
}

// New constructs an empty pool bounded to maxSize transactions.
func New(maxSize int) *Pool {
	return &Pool{
		byHash:   make(map[types.Hash]*types.Transaction),
		bySender: make(map[types.Address]*senderQueue),
		seqByTx:  make(map[types.Hash]int64),
		priced:   prque.New[int64, types.Hash](nil),
		maxSize:  maxSize,
	}
}

// SetEventBus attaches the process-wide event bus so a successful Add
// posts a NewTxEvent, per spec §2 C14.
func (p *Pool) SetEventBus(bus *eventbus.Bus) { p.bus = bus }

// Add inserts tx into the pool, enforcing spec §4.2's admission and
// replacement rules. Fee fields are checked only for shape by
// CheckInvariants (no base fee is consulted); priority is ordered purely
// by effective gas price.
func (p *Pool) Add(tx *types.Transaction) error {
	if err := tx.CheckInvariants(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addLocked(tx)
}

// addLocked implements spec §4.2's admission and replacement rules.
// Caller holds p.mu.
func (p *Pool) addLocked(tx *types.Transaction) error {
	if _, ok := p.byHash[tx.Hash]; ok {
		return ErrAlreadyKnown
	}

	sq, ok := p.bySender[tx.Sender]
	if !ok {
		sq = &senderQueue{byNonce: make(map[uint64]*types.Transaction)}
		p.bySender[tx.Sender] = sq
	}

	if existing, ok := sq.byNonce[tx.Nonce]; ok {
		if !isReplacementValid(existing, tx) {
			return ErrReplaceUnderpriced
		}
		p.removeLocked(existing)
	}

	if p.maxSize > 0 && len(p.byHash) >= p.maxSize {
		return ErrPoolFull
	}

	p.seq++
	p.seqByTx[tx.Hash] = p.seq
	priority := priorityFor(tx, p.seq)

	p.byHash[tx.Hash] = tx
	sq.byNonce[tx.Nonce] = tx
	p.priced.Push(tx.Hash, priority)
	if p.bus != nil {
		p.bus.PostNewTx(eventbus.NewTxEvent{TxHash: tx.Hash})
	}
	return nil
}

// AddPreVerified admits tx without running CheckInvariants' hash/fee
// shape recheck or assuming a Norn-native P-256 signature - used for
// transactions whose sender was authenticated by another means (the
// wiretx package's Ethereum-style secp256k1 recovery). All of the
// ordinary admission and replacement rules still apply.
func (p *Pool) AddPreVerified(tx *types.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addLocked(tx)
}

// priorityFor packs the effective gas price into the high bits and a
// monotonically decreasing sequence number into the low bits so that,
// among equal prices, the earliest-inserted transaction sorts highest
// (FIFO tie-break per spec §4.2).
func priorityFor(tx *types.Transaction, seq int64) int64 {
	price := capToInt56(tx.EffectiveGasPrice())
	return (price << 16) | (0xffff - (seq & 0xffff))
}

// capToInt56 clamps v into the high 47 bits of the int64 priority word,
// leaving room for the 16-bit sequence number packed into the low bits.
func capToInt56(v *big.Int) int64 {
	max := big.NewInt(1<<47 - 1)
	if v.Cmp(max) > 0 {
		return max.Int64()
	}
	return v.Int64()
}

// isReplacementValid implements spec §4.2's replace-by-fee rule: the new
// tx's effective gas price (max fee per gas if set, else gas price) must
// be at least 10% above the existing tx's.
func isReplacementValid(existing, next *types.Transaction) bool {
	bump := new(big.Int).Mul(existing.EffectiveGasPrice(), big.NewInt(replacementBumpNumerator))
	bump.Div(bump, big.NewInt(replacementBumpDenominator))
	return next.EffectiveGasPrice().Cmp(bump) >= 0
}

// removeLocked drops tx from every index except priced: prque.Prque has
// no arbitrary-removal operation, so a removed hash is left in place
// there and discarded lazily the next time Package pops it and finds it
// no longer in byHash - the same lazy-deletion idiom go-ethereum's own
// pricedlist uses over the same structure.
func (p *Pool) removeLocked(tx *types.Transaction) {
	delete(p.byHash, tx.Hash)
	delete(p.seqByTx, tx.Hash)
	if sq, ok := p.bySender[tx.Sender]; ok {
		delete(sq.byNonce, tx.Nonce)
		if len(sq.byNonce) == 0 {
			delete(p.bySender, tx.Sender)
		}
	}
}

// Remove drops tx by hash (used after inclusion in a block).
func (p *Pool) Remove(hash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tx, ok := p.byHash[hash]; ok {
		p.removeLocked(tx)
	}
}

// Contains reports whether hash is tracked by the pool.
func (p *Pool) Contains(hash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byHash[hash]
	return ok
}

// Get returns the pooled transaction with the given hash, if present.
func (p *Pool) Get(hash types.Hash) (*types.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tx, ok := p.byHash[hash]
	return tx, ok
}

// ChainReader is the capability interface spec §9 names for the mempool's
// view of the canonical chain: the next expected nonce for a sender (its
// current on-chain account nonce) and whether a transaction hash has
// already been mined.
type ChainReader interface {
	NonceAt(addr types.Address) uint64
	HasTransaction(hash types.Hash) bool
}

// Package selects transactions for a new block, per spec §4.2: highest
// effective-gas-price first, respecting per-sender nonce order (seeded
// from reader's on-chain nonce, then advanced by each already-selected
// tx in this package) and the block gas limit, excluding transactions
// reader reports as already chained. Stops at maxN transactions or when
// candidates are exhausted. Selected transactions are removed from the
// pool in the same operation, per spec §4.2 ("mined ≡ no longer
// pending").
func (p *Pool) Package(reader ChainReader, maxN int, gasLimit uint64) []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	nextNonce := make(map[types.Address]uint64)
	var out []*types.Transaction
	var used uint64
	var requeue []*types.Transaction

	for !p.priced.Empty() {
		if maxN > 0 && len(out) >= maxN {
			break
		}

		hash, _ := p.priced.Pop()
		tx, ok := p.byHash[hash]
		if !ok {
			// Stale: already mined, replaced, evicted, or previously
			// packaged. Lazily dropped rather than ever removed from
			// priced directly.
			continue
		}
		if reader != nil && reader.HasTransaction(hash) {
			p.removeLocked(tx)
			continue
		}

		want, seen := nextNonce[tx.Sender]
		if !seen {
			if reader != nil {
				want = reader.NonceAt(tx.Sender)
			} else {
				want = tx.Nonce
			}
		}
		if tx.Nonce != want || used+tx.GasLimit > gasLimit {
			requeue = append(requeue, tx)
			continue
		}

		out = append(out, tx)
		used += tx.GasLimit
		nextNonce[tx.Sender] = tx.Nonce + 1
		p.removeLocked(tx)
	}

	for _, tx := range requeue {
		p.priced.Push(tx.Hash, priorityFor(tx, p.seqByTx[tx.Hash]))
	}
	return out
}

// EvictExpired removes transactions whose TTL (spec §4.2) has elapsed.
func (p *Pool) EvictExpired(now uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []*types.Transaction
	for _, tx := range p.byHash {
		if tx.IsExpired(now) {
			expired = append(expired, tx)
		}
	}
	for _, tx := range expired {
		p.removeLocked(tx)
	}
	return len(expired)
}

// Len reports the number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}
