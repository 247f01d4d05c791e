// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/norn-chain/norn/core/types"
)

func TestRecoverOnMissingFileIsClean(t *testing.T) {
	status, err := Recover(filepath.Join(t.TempDir(), "missing.wal"), func(Record) error { return nil })
	require.NoError(t, err)
	require.True(t, status.Clean)
}

func TestWriterRecoverAppliesCommittedTransactionOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.wal")
	w, err := OpenWriter(path)
	require.NoError(t, err)

	var addr types.Address
	addr[0] = 0x01

	require.NoError(t, w.Append(Record{Kind: RecordTxBegin, TxID: 1}))
	require.NoError(t, w.Append(Record{Kind: RecordUpdateAccount, Address: addr, Balance: big.NewInt(100), Nonce: 1}))
	require.NoError(t, w.Append(Record{Kind: RecordTxCommit, TxID: 1}))
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	var applied []Record
	status, err := Recover(path, func(rec Record) error {
		applied = append(applied, rec)
		return nil
	})
	require.NoError(t, err)
	require.True(t, status.Recovered)
	require.Len(t, applied, 1)
	require.Equal(t, addr, applied[0].Address)
	require.Equal(t, uint64(1), applied[0].Nonce)
	require.Equal(t, 0, big.NewInt(100).Cmp(applied[0].Balance))
}

func TestWriterRecoverDiscardsUncommittedTransaction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.wal")
	w, err := OpenWriter(path)
	require.NoError(t, err)

	var addr types.Address
	addr[0] = 0x02

	require.NoError(t, w.Append(Record{Kind: RecordTxBegin, TxID: 1}))
	require.NoError(t, w.Append(Record{Kind: RecordUpdateAccount, Address: addr, Balance: big.NewInt(5), Nonce: 1}))
	// No TxCommit: simulates a crash mid-transaction.
	require.NoError(t, w.Close())

	var applied []Record
	status, err := Recover(path, func(rec Record) error {
		applied = append(applied, rec)
		return nil
	})
	require.NoError(t, err)
	require.True(t, status.Recovered)
	require.Empty(t, applied)
}

func TestWriterRecoverDiscardsRolledBackTransaction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.wal")
	w, err := OpenWriter(path)
	require.NoError(t, err)

	var addr types.Address
	addr[0] = 0x03

	require.NoError(t, w.Append(Record{Kind: RecordTxBegin, TxID: 7}))
	require.NoError(t, w.Append(Record{Kind: RecordDeleteAccount, Address: addr}))
	require.NoError(t, w.Append(Record{Kind: RecordTxRollback, TxID: 7}))
	require.NoError(t, w.Close())

	var applied []Record
	_, err = Recover(path, func(rec Record) error {
		applied = append(applied, rec)
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, applied)
}

func TestWriterTruncateResetsLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.wal")
	w, err := OpenWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(Record{Kind: RecordCheckpoint, Block: 1}))
	require.NoError(t, w.Sync())
	require.NoError(t, w.Truncate())
	require.NoError(t, w.Close())

	status, err := Recover(path, func(Record) error { return nil })
	require.NoError(t, err)
	require.True(t, status.Clean)
}

func TestRecoverAppliesCheckpointDirectly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.wal")
	w, err := OpenWriter(path)
	require.NoError(t, err)

	var h types.Hash
	h[0] = 0xaa
	require.NoError(t, w.Append(Record{Kind: RecordCheckpoint, Block: 99, Hash: h}))
	require.NoError(t, w.Close())

	var applied []Record
	status, err := Recover(path, func(rec Record) error {
		applied = append(applied, rec)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(99), status.Checkpoint)
	require.Len(t, applied, 1)
	require.Equal(t, h, applied[0].Hash)
}
