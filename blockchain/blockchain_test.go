// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package blockchain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/norn-chain/norn/core/types"
	"github.com/norn-chain/norn/evm"
	"github.com/norn-chain/norn/params"
	"github.com/norn-chain/norn/state"
	"github.com/norn-chain/norn/storage"
)

func newTestChain(t *testing.T) (*Chain, *state.Manager) {
	t.Helper()
	kv, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	mgr := state.New(kv)
	executor := evm.NewExecutor(mgr, params.DefaultFeeConfig(), evm.NewBlockHashHistory())

	chain, err := Open(kv, mgr, executor, params.DefaultFeeConfig())
	require.NoError(t, err)
	return chain, mgr
}

func TestOpenAppliesGenesisOnEmptyStore(t *testing.T) {
	chain, _ := newTestChain(t)

	latest := chain.Latest()
	require.Equal(t, uint64(0), latest.Header.Height)
	require.True(t, params.IsValidGenesis(latest))
}

func TestOpenReloadsPersistedTip(t *testing.T) {
	dir := t.TempDir()
	kv, err := storage.Open(dir)
	require.NoError(t, err)

	mgr := state.New(kv)
	executor := evm.NewExecutor(mgr, params.DefaultFeeConfig(), evm.NewBlockHashHistory())
	chain, err := Open(kv, mgr, executor, params.DefaultFeeConfig())
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	// Reopen against the same directory; the tip must be genesis again,
	// recovered from persisted state rather than recomputed.
	kv2, err := storage.Open(dir)
	require.NoError(t, err)
	defer kv2.Close()
	mgr2 := state.New(kv2)
	executor2 := evm.NewExecutor(mgr2, params.DefaultFeeConfig(), evm.NewBlockHashHistory())
	chain2, err := Open(kv2, mgr2, executor2, params.DefaultFeeConfig())
	require.NoError(t, err)

	require.Equal(t, chain.Latest().Header.BlockHash, chain2.Latest().Header.BlockHash)
}

func TestApplyBlockTransfersValueAndPersistsReceipt(t *testing.T) {
	chain, mgr := newTestChain(t)

	var sender, receiver types.Address
	sender[19] = 0x01
	receiver[19] = 0x02
	mgr.AddBalance(sender, big.NewInt(1_000_000_000_000))

	gasPrice := big.NewInt(1)
	tx := types.Transaction{
		Sender:   sender,
		Receiver: &receiver,
		Nonce:    0,
		GasLimit: 21000,
		GasPrice: gasPrice,
		Value:    big.NewInt(1000),
		Type:     types.LegacyTxType,
	}
	h, err := tx.ComputeHash()
	require.NoError(t, err)
	tx.Hash = h

	genesis := chain.Latest()
	block := &types.Block{
		Header: types.Header{
			Height:        genesis.Header.Height + 1,
			PrevBlockHash: genesis.Header.BlockHash,
			GasLimit:      1_000_000,
			BaseFee:       new(big.Int),
		},
		Transactions: []types.Transaction{tx},
	}
	block.Header.BlockHash[0] = 0x01

	require.NoError(t, chain.ApplyBlock(block))

	require.Equal(t, block.Header.BlockHash, chain.Latest().Header.BlockHash)
	require.True(t, chain.HasTransaction(tx.Hash))
	require.Equal(t, uint64(1), chain.NonceAt(sender))

	stored, err := chain.GetTransactionByHash(tx.Hash)
	require.NoError(t, err)
	require.Equal(t, tx.Hash, stored.Hash)

	receipt, err := chain.GetReceipt(tx.Hash)
	require.NoError(t, err)
	require.Equal(t, uint64(1), receipt.Status)
	require.Equal(t, block.Header.BlockHash, receipt.BlockHash)

	got, err := chain.GetBlockByHeight(block.Header.Height)
	require.NoError(t, err)
	require.Equal(t, block.Header.BlockHash, got.Header.BlockHash)

	require.Equal(t, big.NewInt(1000), mgr.GetAccount(receiver).Balance)
}

func TestApplyBlockFailsOnInsufficientBalance(t *testing.T) {
	chain, _ := newTestChain(t)

	var sender, receiver types.Address
	sender[19] = 0x09
	receiver[19] = 0x0a

	tx := types.Transaction{
		Sender:   sender,
		Receiver: &receiver,
		Nonce:    0,
		GasLimit: 21000,
		GasPrice: big.NewInt(1),
		Value:    big.NewInt(1),
		Type:     types.LegacyTxType,
	}
	h, err := tx.ComputeHash()
	require.NoError(t, err)
	tx.Hash = h

	genesis := chain.Latest()
	block := &types.Block{
		Header: types.Header{
			Height:        genesis.Header.Height + 1,
			PrevBlockHash: genesis.Header.BlockHash,
			GasLimit:      1_000_000,
			BaseFee:       new(big.Int),
		},
		Transactions: []types.Transaction{tx},
	}

	err = chain.ApplyBlock(block)
	require.Error(t, err)
	// The tip must not have advanced past genesis.
	require.Equal(t, genesis.Header.BlockHash, chain.Latest().Header.BlockHash)
}

func TestGetBlockByHashUnknownReturnsErrBlockNotFound(t *testing.T) {
	chain, _ := newTestChain(t)
	_, err := chain.GetBlockByHash(types.Hash{0xff})
	require.ErrorIs(t, err, ErrBlockNotFound)
}

func TestNextBaseFeeDerivesFromTip(t *testing.T) {
	chain, _ := newTestChain(t)
	fee := chain.NextBaseFee()
	require.NotNil(t, fee)
}
