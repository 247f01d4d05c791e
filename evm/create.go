// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/rlp"

	nortypes "github.com/norn-chain/norn/core/types"
)

// CreateAddress computes a legacy CREATE contract address, per spec
// §4.6 step 5: last20(SHA-256(RLP([sender, nonce]))). Unlike Ethereum
// mainnet (which hashes with Keccak-256), Norn uses SHA-256 throughout
// its codec (spec §3), so contract addresses follow suit.
func CreateAddress(sender nortypes.Address, nonce uint64) (nortypes.Address, error) {
	b, err := rlp.EncodeToBytes([]interface{}{sender[:], nonce})
	if err != nil {
		return nortypes.Address{}, err
	}
	sum := sha256.Sum256(b)
	return nortypes.BytesToAddress(sum[len(sum)-nortypes.AddressLength:]), nil
}

// CreateAddress2 computes a CREATE2 contract address, per spec §4.6
// step 5: last20(SHA-256(0xff || sender || salt || SHA-256(init_code))).
func CreateAddress2(sender nortypes.Address, salt nortypes.Hash, initCode []byte) nortypes.Address {
	codeHash := sha256.Sum256(initCode)

	buf := make([]byte, 0, 1+nortypes.AddressLength+nortypes.HashLength+nortypes.HashLength)
	buf = append(buf, 0xff)
	buf = append(buf, sender[:]...)
	buf = append(buf, salt[:]...)
	buf = append(buf, codeHash[:]...)

	sum := sha256.Sum256(buf)
	return nortypes.BytesToAddress(sum[len(sum)-nortypes.AddressLength:])
}
