// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/norn-chain/norn/core/types"
)

// Keccak256 hashes data with Keccak-256, needed for EVM semantics (hashing
// opcode, CREATE/CREATE2 address derivation, RLP Ethereum-style tx
// recovery) per spec §4.6. Delegates to go-ethereum's crypto package,
// which itself wraps golang.org/x/crypto/sha3.
func Keccak256(data ...[]byte) types.Hash {
	return types.Hash(gethcrypto.Keccak256Hash(data...))
}

// EcrecoverAddress recovers the signer address of an Ethereum-style
// (secp256k1) signature over a message hash, used by the RLP-encoded
// legacy/typed transaction path of spec §6 and the ECRECOVER precompile.
func EcrecoverAddress(hash types.Hash, sig []byte) (types.Address, error) {
	pub, err := gethcrypto.SigToPub(hash[:], sig)
	if err != nil {
		return types.Address{}, err
	}
	return types.Address(gethcrypto.PubkeyToAddress(*pub)), nil
}
