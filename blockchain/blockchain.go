// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blockchain implements the C9 component of the Norn node: the
// canonical chain. It receives finalized blocks from the block buffer
// (§4.1), applies their transactions through the EVM executor (§4.6),
// and persists blocks/transactions/receipts through the KV layout of
// spec §6. It also implements the mempool.ChainReader capability so the
// mempool can read on-chain nonces and already-mined transaction hashes
// without a reverse dependency.
package blockchain

import (
	"encoding/json"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/norn-chain/norn/appdata"
	"github.com/norn-chain/norn/core/types"
	"github.com/norn-chain/norn/crypto"
	"github.com/norn-chain/norn/evm"
	"github.com/norn-chain/norn/params"
	"github.com/norn-chain/norn/state"
	"github.com/norn-chain/norn/storage"
)

var (
	ErrBlockNotFound = errors.New("blockchain: block not found")
	ErrGenesisMismatch = errors.New("blockchain: persisted tip does not descend from the expected genesis")
)

// Chain owns the canonical, persisted sequence of blocks.
type Chain struct {
	kv       storage.KV
	mgr      *state.Manager
	executor *evm.Executor
	fees     params.FeeConfig
	appdata  *appdata.Processor

	history *state.History

	mu     sync.RWMutex
	latest *types.Block
}

// SetAppDataProcessor attaches the application-data mutation worker (spec
// §3's opt/state fields). Transactions with no Opt descriptor are simply
// not submitted. May be left nil, in which case opt/state fields are
// persisted with the transaction but never applied.
func (c *Chain) SetAppDataProcessor(p *appdata.Processor) { c.appdata = p }

// Open loads the chain's persisted tip, applying genesis if the KV store
// is empty. A non-empty store whose persisted height-0 block is not the
// expected genesis is a fatal error per spec §7 ("genesis mismatch
// against persisted tip"). The hash links between the tip and that
// height-0 block are not walked.
func Open(kv storage.KV, mgr *state.Manager, executor *evm.Executor, fees params.FeeConfig) (*Chain, error) {
	history := state.NewHistory(0)
	mgr.AttachHistory(history)
	c := &Chain{kv: kv, mgr: mgr, executor: executor, fees: fees, history: history}

	tipHashBytes, err := kv.Get(storage.MetaKey("latest"))
	if errors.Is(err, storage.ErrNotFound) {
		genesis, err := params.GenesisBlock()
		if err != nil {
			return nil, err
		}
		if err := c.persistBlock(genesis, nil); err != nil {
			return nil, err
		}
		c.latest = genesis
		return c, nil
	}
	if err != nil {
		return nil, err
	}

	tipHash := types.BytesToHash(tipHashBytes)
	tip, err := c.blockByHash(tipHash)
	if err != nil {
		return nil, err
	}
	genesis := tip
	if tip.Header.Height != 0 {
		if genesis, err = c.GetBlockByHeight(0); err != nil {
			return nil, err
		}
	}
	if !params.IsValidGenesis(genesis) {
		return nil, ErrGenesisMismatch
	}
	c.latest = tip
	return c, nil
}

// Latest returns the current chain tip.
func (c *Chain) Latest() *types.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// NextBaseFee computes the base fee the next block (built on top of the
// current tip) must carry, per spec §4.7.
func (c *Chain) NextBaseFee() *big.Int {
	c.mu.RLock()
	tip := c.latest
	c.mu.RUnlock()
	return c.fees.CalculateNextBaseFee(tip.Header.BaseFee, tip.GasLimitUsed())
}

// ApplyBlock runs every transaction in block through the EVM executor in
// order, writes the resulting receipts, persists the block, and advances
// the tip. It does not itself validate the block — callers run
// validation.ValidateBlock first.
func (c *Chain) ApplyBlock(block *types.Block) error {
	c.mgr.SetHeight(block.Header.Height)

	ctx := evm.Context{
		BlockNumber:   block.Header.Height,
		Timestamp:     block.Header.Timestamp,
		BlockGasLimit: block.Header.GasLimit,
		BaseFee:       block.Header.BaseFee,
	}
	if block.Header.ProposerPublicKey != (types.PublicKey{}) {
		ctx.Coinbase = crypto.AddressFromPublicKey(block.Header.ProposerPublicKey)
	}

	receipts := make([]*types.Receipt, 0, len(block.Transactions))
	var cumulative uint64
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		receipt, err := c.executor.ApplyTransaction(ctx, tx, uint32(i), cumulative)
		if err != nil {
			log.Error("blockchain: transaction application failed", "hash", tx.Hash.Hex(), "err", err)
			return err
		}
		receipt.BlockHash = block.Header.BlockHash
		cumulative = receipt.CumulativeGasUsed
		receipts = append(receipts, receipt)

		if c.appdata != nil && receipt.Status == 1 {
			if task, ok, err := appdata.TaskFromTransaction(tx, block.Header.Height); ok {
				c.appdata.Submit(task)
			} else if err != nil {
				log.Warn("blockchain: malformed app-data descriptor", "hash", tx.Hash.Hex(), "err", err)
			}
		}
	}

	if err := c.persistBlock(block, receipts); err != nil {
		return err
	}
	c.history.MaybeSnapshot(block.Header.Height, c.mgr)

	c.mu.Lock()
	c.latest = block
	c.mu.Unlock()
	return nil
}

// AccountAtHeight reconstructs addr's account as of height, per spec
// §4.5's get_account_at_block time-travel query.
func (c *Chain) AccountAtHeight(addr types.Address, height uint64) *state.Account {
	return c.history.GetAccountAtHeight(addr, height, c.mgr)
}

// PruneHistory discards change records and snapshots strictly older
// than cutoff, per the pruning policy's computed cutoff height.
func (c *Chain) PruneHistory(cutoff uint64) {
	c.history.PruneBefore(cutoff)
}

// CloneExecutor returns a scratch EVM executor and its backing state
// manager, seeded from a deep copy of the chain's current account
// state, for speculative execution that must not mutate the live chain
// (e.g. fast sync's checkpoint verification).
func (c *Chain) CloneExecutor() (*evm.Executor, *state.Manager) {
	clone := c.mgr.Clone()
	return evm.NewExecutor(clone, c.fees, evm.NewBlockHashHistory()), clone
}

func (c *Chain) persistBlock(block *types.Block, receipts []*types.Receipt) error {
	blockBytes, err := json.Marshal(block)
	if err != nil {
		return err
	}

	kvs := map[string][]byte{
		string(storage.BlockByHashKey(block.Header.BlockHash[:])):   blockBytes,
		string(storage.BlockByHeightKey(block.Header.Height)):       block.Header.BlockHash[:],
		string(storage.MetaKey("latest")):                           block.Header.BlockHash[:],
	}
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		txBytes, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		kvs[string(storage.TxKey(tx.Hash[:]))] = txBytes
	}
	for _, r := range receipts {
		rBytes, err := json.Marshal(r)
		if err != nil {
			return err
		}
		kvs[string(storage.ReceiptKey(r.TxHash[:]))] = rBytes
	}
	return c.kv.BatchInsert(kvs)
}

func (c *Chain) blockByHash(hash types.Hash) (*types.Block, error) {
	raw, err := c.kv.Get(storage.BlockByHashKey(hash[:]))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	var block types.Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetBlockByHash returns the block with the given hash, if persisted.
func (c *Chain) GetBlockByHash(hash types.Hash) (*types.Block, error) {
	return c.blockByHash(hash)
}

// GetBlockByHeight returns the block at the given height, if persisted.
func (c *Chain) GetBlockByHeight(height uint64) (*types.Block, error) {
	hashBytes, err := c.kv.Get(storage.BlockByHeightKey(height))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return c.blockByHash(types.BytesToHash(hashBytes))
}

// GetTransactionByHash returns the transaction with the given hash, if
// it has been mined.
func (c *Chain) GetTransactionByHash(hash types.Hash) (*types.Transaction, error) {
	raw, err := c.kv.Get(storage.TxKey(hash[:]))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	var tx types.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetReceipt returns the receipt for the given transaction hash.
func (c *Chain) GetReceipt(hash types.Hash) (*types.Receipt, error) {
	raw, err := c.kv.Get(storage.ReceiptKey(hash[:]))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	var r types.Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// StateRoot returns the current state manager's root. The producer uses
// this as the declarative state_root of a freshly sealed header; spec
// §4.9's fast-path validation never recomputes state_root (only the
// Merkle root and block hash are checked), so a header's state_root
// necessarily reflects state as of sealing time, not the eventual
// post-execution state once the block is actually finalized and applied.
func (c *Chain) StateRoot() types.Hash {
	return c.mgr.StateRoot()
}

// NonceAt implements mempool.ChainReader: the current on-chain nonce for
// addr.
func (c *Chain) NonceAt(addr types.Address) uint64 {
	return c.mgr.GetAccount(addr).Nonce
}

// HasTransaction implements mempool.ChainReader.
func (c *Chain) HasTransaction(hash types.Hash) bool {
	_, err := c.kv.Get(storage.TxKey(hash[:]))
	return err == nil
}
