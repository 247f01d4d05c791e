// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package vdf

import "math/big"

// EncodeArtifacts serializes a (seed, proof) pair into the opaque
// header.Params bytes of spec §3: a 4-byte big-endian length prefix for
// seed followed by seed's bytes, then proof's bytes to the end of the
// buffer. The producer (§4.8) writes this when sealing a block; the
// block buffer (§4.1 step 4) and validation (§4.2) read it back.
func EncodeArtifacts(seed, proof *big.Int) []byte {
	seedBytes := seed.Bytes()
	proofBytes := proof.Bytes()

	out := make([]byte, 4+len(seedBytes)+len(proofBytes))
	out[0] = byte(len(seedBytes) >> 24)
	out[1] = byte(len(seedBytes) >> 16)
	out[2] = byte(len(seedBytes) >> 8)
	out[3] = byte(len(seedBytes))
	copy(out[4:], seedBytes)
	copy(out[4+len(seedBytes):], proofBytes)
	return out
}

// DecodeArtifacts is the inverse of EncodeArtifacts. ok is false if data
// is too short or its length prefix is inconsistent.
func DecodeArtifacts(data []byte) (seed, proof *big.Int, ok bool) {
	if len(data) < 4 {
		return nil, nil, false
	}
	seedLen := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	if seedLen < 0 || 4+seedLen > len(data) {
		return nil, nil, false
	}
	seed = new(big.Int).SetBytes(data[4 : 4+seedLen])
	proof = new(big.Int).SetBytes(data[4+seedLen:])
	return seed, proof, true
}
