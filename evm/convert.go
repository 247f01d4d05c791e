// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/common"

	nortypes "github.com/norn-chain/norn/core/types"
)

// nornAddr converts a go-ethereum-style 20-byte common.Address into the
// Norn codec's Address, used at the hostDB/state.Manager boundary.
func nornAddr(a common.Address) nortypes.Address {
	return nortypes.BytesToAddress(a[:])
}

// nornHash converts a go-ethereum-style 32-byte common.Hash into the Norn
// codec's Hash.
func nornHash(h common.Hash) nortypes.Hash {
	return nortypes.BytesToHash(h[:])
}

// nornstateHash converts a go-ethereum common.Hash storage value into the
// Norn codec's Hash, for writes into state.Manager storage slots. Kept as
// a distinct name from nornHash at call sites in host.go for readability
// (address-keyed vs. value-keyed conversions read differently).
func nornstateHash(h common.Hash) nortypes.Hash {
	return nornHash(h)
}

// sha256Sum hashes data with SHA-256, used by GetCodeHash since Norn's
// code is content-addressed by SHA-256 (spec §3), not Keccak-256.
func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
