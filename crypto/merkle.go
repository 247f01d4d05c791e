// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"crypto/sha256"

	"github.com/norn-chain/norn/core/types"
)

// BuildMerkleRoot computes the Merkle root over the given leaf hashes,
// per spec §4.3, grounded on original_source/crates/core/src/merkle.rs:
// hash pairs level by level; an unpaired last node at a level is hashed
// with an empty byte string, not duplicated. An empty input returns the
// zero hash.
func BuildMerkleRoot(leaves []types.Hash) types.Hash {
	if len(leaves) == 0 {
		return types.Hash{}
	}

	level := make([][]byte, len(leaves))
	for i, h := range leaves {
		level[i] = append([]byte(nil), h[:]...)
	}

	for len(level) > 1 {
		nextLen := len(level) / 2
		if len(level)%2 != 0 {
			nextLen++
		}
		next := make([][]byte, 0, nextLen)

		for i := 0; i < len(level); i += 2 {
			left := level[i]
			var right []byte
			if i+1 < len(level) {
				right = level[i+1]
			}
			h := sha256.New()
			h.Write(left)
			h.Write(right)
			next = append(next, h.Sum(nil))
		}
		level = next
	}

	var root types.Hash
	copy(root[:], level[0])
	return root
}

// BuildMerkleRootFromTransactions is a convenience wrapper building the
// root over a block body's transaction hashes.
func BuildMerkleRootFromTransactions(txs []types.Transaction) types.Hash {
	leaves := make([]types.Hash, len(txs))
	for i := range txs {
		leaves[i] = txs[i].Hash
	}
	return BuildMerkleRoot(leaves)
}
