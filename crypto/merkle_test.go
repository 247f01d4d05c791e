// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/norn-chain/norn/core/types"
)

func leafHash(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func TestBuildMerkleRootEmpty(t *testing.T) {
	require.Equal(t, types.Hash{}, BuildMerkleRoot(nil))
	require.Equal(t, types.Hash{}, BuildMerkleRoot([]types.Hash{}))
}

func TestBuildMerkleRootSingleLeaf(t *testing.T) {
	leaf := leafHash(0x01)
	root := BuildMerkleRoot([]types.Hash{leaf})

	want := sha256.Sum256(leaf[:])
	require.Equal(t, types.Hash(want), root)
}

func TestBuildMerkleRootPair(t *testing.T) {
	a, b := leafHash(0x01), leafHash(0x02)
	root := BuildMerkleRoot([]types.Hash{a, b})

	h := sha256.New()
	h.Write(a[:])
	h.Write(b[:])
	var want types.Hash
	copy(want[:], h.Sum(nil))
	require.Equal(t, want, root)
}

// TestBuildMerkleRootOddLevelNotDuplicated pins down the spec's explicit
// "hash the unpaired node with an empty string, don't duplicate it"
// rule: three leaves must NOT produce the same root as four leaves with
// the third duplicated.
func TestBuildMerkleRootOddLevelNotDuplicated(t *testing.T) {
	a, b, c := leafHash(0x01), leafHash(0x02), leafHash(0x03)

	odd := BuildMerkleRoot([]types.Hash{a, b, c})
	duplicated := BuildMerkleRoot([]types.Hash{a, b, c, c})

	require.NotEqual(t, duplicated, odd)

	// Recompute the odd-level root by hand: level1 = [H(a,b), H(c,"")],
	// root = H(level1[0], level1[1]).
	h1 := sha256.New()
	h1.Write(a[:])
	h1.Write(b[:])
	left := h1.Sum(nil)

	h2 := sha256.New()
	h2.Write(c[:])
	right := h2.Sum(nil)

	h3 := sha256.New()
	h3.Write(left)
	h3.Write(right)
	var want types.Hash
	copy(want[:], h3.Sum(nil))

	require.Equal(t, want, odd)
}

func TestBuildMerkleRootDeterministic(t *testing.T) {
	leaves := []types.Hash{leafHash(1), leafHash(2), leafHash(3), leafHash(4), leafHash(5)}
	require.Equal(t, BuildMerkleRoot(leaves), BuildMerkleRoot(leaves))
}

func TestBuildMerkleRootFromTransactions(t *testing.T) {
	txs := []types.Transaction{
		{Hash: leafHash(0xaa)},
		{Hash: leafHash(0xbb)},
	}
	got := BuildMerkleRootFromTransactions(txs)
	want := BuildMerkleRoot([]types.Hash{txs[0].Hash, txs[1].Hash})
	require.Equal(t, want, got)
}
