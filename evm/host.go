// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// This file adapts the state.Manager of this repository to
// go-ethereum's vm.StateDB interface, following the adapter pattern the
// teacher itself uses in core/precompile_overrider.go ("stateDBAdapter
// adapts vm.StateDB to contract.StateDB") and core/evm.go's CanTransfer
// / Transfer helpers. Much love to the original go-ethereum authors for
// the EVM interpreter this wraps.

// Package evm implements the C7 execution component of spec §4.6: a
// host database adapter wrapping go-ethereum's real core/vm.EVM
// interpreter, so Norn gets EVM bytecode semantics, gas accounting and
// the Istanbul precompile table without reimplementing them.
package evm

import (
	"math/big"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	gethparams "github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	nornstate "github.com/norn-chain/norn/state"
)

// codeCacheBytes bounds the process-wide code-by-hash cache shared by
// every hostDB the Executor creates, per spec §4.6.1's adapter note that
// reads "miss -> populate from state": a contract's bytecode never
// changes once deployed, so caching it by content hash across
// transactions (rather than only within one hostDB's lifetime) avoids a
// state.Manager round trip on every CALL to an already-seen contract.
const codeCacheBytes = 32 * 1024 * 1024

// codeCache wraps a fastcache.Cache keyed by code hash.
type codeCache struct{ c *fastcache.Cache }

func newCodeCache() *codeCache {
	return &codeCache{c: fastcache.New(codeCacheBytes)}
}

func (cc *codeCache) get(hash common.Hash) ([]byte, bool) {
	if cc == nil {
		return nil, false
	}
	return cc.c.HasGet(nil, hash[:])
}

func (cc *codeCache) set(hash common.Hash, code []byte) {
	if cc == nil || len(code) == 0 {
		return
	}
	cc.c.Set(hash[:], code)
}

// hostDB is a write-behind vm.StateDB over the async state.Manager:
// reads fall through to the manager, writes are buffered in per-call
// dirty maps and committed on Commit, so a reverted call leaves the
// manager untouched.
type hostDB struct {
	mgr    *nornstate.Manager
	ccache *codeCache

	balances map[common.Address]*uint256.Int
	nonces   map[common.Address]uint64
	codes    map[common.Address][]byte

	storage map[common.Address]map[common.Hash]common.Hash

	refund uint64

	selfDestructed map[common.Address]bool

	accessedAddresses map[common.Address]bool
	accessedSlots     map[common.Address]map[common.Hash]bool

	logs []*types.Log

	snapshots []hostSnapshot
}

// hostSnapshot is a deep copy of every buffered write made so far,
// taken on Snapshot and restored wholesale on RevertToSnapshot. This is
// a simpler (if less memory-efficient) alternative to go-ethereum's own
// per-entry journal, appropriate since Norn's hostDB only buffers one
// transaction's worth of writes at a time.
type hostSnapshot struct {
	refund   uint64
	balances map[common.Address]*uint256.Int
	nonces   map[common.Address]uint64
	codes    map[common.Address][]byte
	storage  map[common.Address]map[common.Hash]common.Hash
	selfDestructed map[common.Address]bool
	logCount int
}

// newHostDB constructs a fresh per-block/per-tx host database over mgr,
// sharing cache's code-by-hash entries across every call this Executor
// ever makes. cache may be nil, in which case code is always fetched
// from mgr.
func newHostDB(mgr *nornstate.Manager, cache *codeCache) *hostDB {
	return &hostDB{
		mgr:               mgr,
		ccache:            cache,
		balances:          make(map[common.Address]*uint256.Int),
		nonces:            make(map[common.Address]uint64),
		codes:             make(map[common.Address][]byte),
		storage:           make(map[common.Address]map[common.Hash]common.Hash),
		selfDestructed:    make(map[common.Address]bool),
		accessedAddresses: make(map[common.Address]bool),
		accessedSlots:     make(map[common.Address]map[common.Hash]bool),
	}
}

func (h *hostDB) CreateAccount(addr common.Address) {
	if _, ok := h.balances[addr]; !ok {
		h.balances[addr] = h.balanceOf(addr)
	}
}

func (h *hostDB) CreateContract(addr common.Address) {
	h.CreateAccount(addr)
}

func (h *hostDB) balanceOf(addr common.Address) *uint256.Int {
	if b, ok := h.balances[addr]; ok {
		return b
	}
	acc := h.mgr.GetAccount(nornAddr(addr))
	v, _ := uint256.FromBig(acc.Balance)
	return v
}

func (h *hostDB) GetBalance(addr common.Address) *uint256.Int {
	return h.balanceOf(addr)
}

func (h *hostDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) {
	b := new(uint256.Int).Add(h.balanceOf(addr), amount)
	h.balances[addr] = b
}

func (h *hostDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) {
	b := new(uint256.Int).Sub(h.balanceOf(addr), amount)
	h.balances[addr] = b
}

func (h *hostDB) GetNonce(addr common.Address) uint64 {
	if n, ok := h.nonces[addr]; ok {
		return n
	}
	return h.mgr.GetAccount(nornAddr(addr)).Nonce
}

func (h *hostDB) SetNonce(addr common.Address, nonce uint64) {
	h.nonces[addr] = nonce
}

// codeOf resolves addr's contract bytecode: the per-call dirty map first,
// then the shared content-addressed cache keyed by the account's
// committed code hash, falling back to the state manager on a cache miss
// and populating the cache for the next call to any address sharing that
// code.
func (h *hostDB) codeOf(addr common.Address) []byte {
	if c, ok := h.codes[addr]; ok {
		return c
	}
	acc := h.mgr.GetAccount(nornAddr(addr))
	if len(acc.Code) == 0 {
		return nil
	}
	hash := common.BytesToHash(sha256Sum(acc.Code))
	if cached, ok := h.ccache.get(hash); ok {
		return cached
	}
	h.ccache.set(hash, acc.Code)
	return acc.Code
}

func (h *hostDB) GetCodeHash(addr common.Address) common.Hash {
	code := h.codeOf(addr)
	if len(code) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(sha256Sum(code))
}

func (h *hostDB) GetCode(addr common.Address) []byte {
	return h.codeOf(addr)
}

func (h *hostDB) SetCode(addr common.Address, code []byte) {
	h.codes[addr] = code
}

func (h *hostDB) GetCodeSize(addr common.Address) int {
	return len(h.codeOf(addr))
}

func (h *hostDB) AddRefund(amount uint64)      { h.refund += amount }
func (h *hostDB) SubRefund(amount uint64) {
	if amount > h.refund {
		h.refund = 0
		return
	}
	h.refund -= amount
}
func (h *hostDB) GetRefund() uint64 { return h.refund }

func (h *hostDB) slotMap(addr common.Address) map[common.Hash]common.Hash {
	m, ok := h.storage[addr]
	if !ok {
		m = make(map[common.Hash]common.Hash)
		h.storage[addr] = m
	}
	return m
}

func (h *hostDB) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	return common.Hash(h.mgr.GetStorage(nornAddr(addr), nornHash(key)))
}

func (h *hostDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if v, ok := h.slotMap(addr)[key]; ok {
		return v
	}
	return h.GetCommittedState(addr, key)
}

func (h *hostDB) SetState(addr common.Address, key, value common.Hash) {
	h.slotMap(addr)[key] = value
}

func (h *hostDB) GetStorageRoot(addr common.Address) common.Hash {
	return common.Hash{}
}

func (h *hostDB) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	return common.Hash{}
}

func (h *hostDB) SetTransientState(addr common.Address, key, value common.Hash) {}

func (h *hostDB) SelfDestruct(addr common.Address) {
	h.selfDestructed[addr] = true
	h.balances[addr] = new(uint256.Int)
}

func (h *hostDB) Selfdestruct6780(addr common.Address) {
	h.SelfDestruct(addr)
}

func (h *hostDB) HasSelfDestructed(addr common.Address) bool {
	return h.selfDestructed[addr]
}

func (h *hostDB) Exist(addr common.Address) bool {
	if _, ok := h.balances[addr]; ok {
		return true
	}
	acc := h.mgr.GetAccount(nornAddr(addr))
	return acc.Balance.Sign() != 0 || acc.Nonce != 0 || len(acc.Code) != 0
}

func (h *hostDB) Empty(addr common.Address) bool {
	return !h.Exist(addr)
}

func (h *hostDB) AddressInAccessList(addr common.Address) bool {
	return h.accessedAddresses[addr]
}

func (h *hostDB) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	addrOK := h.accessedAddresses[addr]
	slotOK := false
	if m, ok := h.accessedSlots[addr]; ok {
		slotOK = m[slot]
	}
	return addrOK, slotOK
}

func (h *hostDB) AddAddressToAccessList(addr common.Address) {
	h.accessedAddresses[addr] = true
}

func (h *hostDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	h.accessedAddresses[addr] = true
	m, ok := h.accessedSlots[addr]
	if !ok {
		m = make(map[common.Hash]bool)
		h.accessedSlots[addr] = m
	}
	m[slot] = true
}

// Prepare implements EIP-2929/2930 warm/cold access-list priming per
// spec §4.6: the sender, coinbase, destination and precompiles start
// warm, and the provided access list is pre-warmed.
func (h *hostDB) Prepare(rules gethparams.Rules, sender, coinbase common.Address, dst *common.Address, precompiles []common.Address, list types.AccessList) {
	h.accessedAddresses[sender] = true
	h.accessedAddresses[coinbase] = true
	if dst != nil {
		h.accessedAddresses[*dst] = true
	}
	for _, p := range precompiles {
		h.accessedAddresses[p] = true
	}
	for _, entry := range list {
		h.AddAddressToAccessList(entry.Address)
		for _, key := range entry.StorageKeys {
			h.AddSlotToAccessList(entry.Address, key)
		}
	}
}

func (h *hostDB) RevertToSnapshot(id int) {
	if id < 0 || id >= len(h.snapshots) {
		return
	}
	snap := h.snapshots[id]
	h.refund = snap.refund
	h.balances = snap.balances
	h.nonces = snap.nonces
	h.codes = snap.codes
	h.storage = snap.storage
	h.selfDestructed = snap.selfDestructed
	h.logs = h.logs[:snap.logCount]
	h.snapshots = h.snapshots[:id]
}

func (h *hostDB) Snapshot() int {
	h.snapshots = append(h.snapshots, hostSnapshot{
		refund:         h.refund,
		balances:       cloneBalances(h.balances),
		nonces:         cloneNonces(h.nonces),
		codes:          cloneCodes(h.codes),
		storage:        cloneStorage(h.storage),
		selfDestructed: cloneBools(h.selfDestructed),
		logCount:       len(h.logs),
	})
	return len(h.snapshots) - 1
}

func cloneBalances(m map[common.Address]*uint256.Int) map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(m))
	for k, v := range m {
		out[k] = new(uint256.Int).Set(v)
	}
	return out
}

func cloneNonces(m map[common.Address]uint64) map[common.Address]uint64 {
	out := make(map[common.Address]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneCodes(m map[common.Address][]byte) map[common.Address][]byte {
	out := make(map[common.Address][]byte, len(m))
	for k, v := range m {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func cloneStorage(m map[common.Address]map[common.Hash]common.Hash) map[common.Address]map[common.Hash]common.Hash {
	out := make(map[common.Address]map[common.Hash]common.Hash, len(m))
	for addr, slots := range m {
		inner := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			inner[k] = v
		}
		out[addr] = inner
	}
	return out
}

func cloneBools(m map[common.Address]bool) map[common.Address]bool {
	out := make(map[common.Address]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (h *hostDB) AddLog(log *types.Log) {
	h.logs = append(h.logs, log)
}

func (h *hostDB) AddPreimage(hash common.Hash, preimage []byte) {}

// Commit flushes every buffered write into the backing state.Manager,
// per spec §4.6's transaction-application boundary: a successful
// execution commits, a reverted one is simply discarded by dropping the
// hostDB without calling Commit.
func (h *hostDB) Commit() {
	for addr, bal := range h.balances {
		acc := h.mgr.GetAccount(nornAddr(addr))
		acc.Balance = bal.ToBig()
		h.mgr.SetAccount(nornAddr(addr), acc)
	}
	for addr, n := range h.nonces {
		acc := h.mgr.GetAccount(nornAddr(addr))
		acc.Nonce = n
		h.mgr.SetAccount(nornAddr(addr), acc)
	}
	for addr, code := range h.codes {
		acc := h.mgr.GetAccount(nornAddr(addr))
		acc.Code = code
		h.mgr.SetAccount(nornAddr(addr), acc)
	}
	for addr, slots := range h.storage {
		for key, val := range slots {
			h.mgr.SetStorage(nornAddr(addr), nornHash(key), nornstateHash(val))
		}
	}
	for addr := range h.selfDestructed {
		h.mgr.SetAccount(nornAddr(addr), &nornstate.Account{Balance: big.NewInt(0)})
	}
}

// Logs returns the logs accumulated by the current execution.
func (h *hostDB) Logs() []*types.Log { return h.logs }

// RemapAddress moves every buffered write recorded against from onto to,
// and deletes from's entries. Used after a CREATE/CREATE2 so the
// interpreter's internal (Keccak-derived) contract address can be
// relocated to the SHA-256-derived address spec §4.6 step 5 mandates;
// the interpreter itself is not spec-address-aware.
func (h *hostDB) RemapAddress(from, to common.Address) {
	if from == to {
		return
	}
	if b, ok := h.balances[from]; ok {
		h.balances[to] = b
		delete(h.balances, from)
	}
	if n, ok := h.nonces[from]; ok {
		h.nonces[to] = n
		delete(h.nonces, from)
	}
	if c, ok := h.codes[from]; ok {
		h.codes[to] = c
		delete(h.codes, from)
	}
	if s, ok := h.storage[from]; ok {
		h.storage[to] = s
		delete(h.storage, from)
	}
	if h.selfDestructed[from] {
		h.selfDestructed[to] = true
		delete(h.selfDestructed, from)
	}
	fromAddr, toAddr := nornAddr(from), nornAddr(to)
	for _, lg := range h.logs {
		if lg.Address == fromAddr {
			lg.Address = toAddr
		}
	}
}
