// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"

	"github.com/norn-chain/norn/core/types"
)

// VRFProof is the sign-then-hash VRF construction of spec §2 C3,
// grounded on original_source/crates/crypto/src/vrf/mod.rs: proof is an
// ECDSA signature over SHA-256(message || verification_key), and output
// is SHA-256(message || proof || verification_key).
type VRFProof struct {
	Proof            []byte
	Output           types.Hash
	VerificationKey  types.PublicKey
}

// VRFEvaluate computes a VRF proof and output for message under priv.
func VRFEvaluate(priv *ecdsa.PrivateKey, message []byte) (VRFProof, error) {
	vk := CompressPublicKey(&priv.PublicKey)

	mh := sha256.New()
	mh.Write(message)
	mh.Write(vk[:])
	messageHash := mh.Sum(nil)

	sig, err := SignHash(priv, messageHash)
	if err != nil {
		return VRFProof{}, err
	}

	oh := sha256.New()
	oh.Write(message)
	oh.Write(sig)
	oh.Write(vk[:])
	var output types.Hash
	copy(output[:], oh.Sum(nil))

	return VRFProof{Proof: sig, Output: output, VerificationKey: vk}, nil
}

// VRFVerify verifies that proof is a valid VRF evaluation of message under
// the public key encoded in proof.VerificationKey, and that pub matches
// that verification key.
func VRFVerify(pub types.PublicKey, message []byte, proof VRFProof) (bool, error) {
	if pub != proof.VerificationKey {
		return false, nil
	}
	verifyingKey, err := DecompressPublicKey(proof.VerificationKey)
	if err != nil {
		return false, err
	}

	mh := sha256.New()
	mh.Write(message)
	mh.Write(proof.VerificationKey[:])
	messageHash := mh.Sum(nil)

	if !VerifyHash(verifyingKey, messageHash, proof.Proof) {
		return false, nil
	}

	oh := sha256.New()
	oh.Write(message)
	oh.Write(proof.Proof)
	oh.Write(proof.VerificationKey[:])
	var expected types.Hash
	copy(expected[:], oh.Sum(nil))

	return expected == proof.Output, nil
}

// VRFSeedMessage builds the VRF input message of spec §4.8:
// seed || height_le || self_address.
func VRFSeedMessage(seed types.Hash, height uint64, self types.Address) []byte {
	buf := make([]byte, 0, len(seed)+8+len(self))
	buf = append(buf, seed[:]...)
	var heightLE [8]byte
	binary.LittleEndian.PutUint64(heightLE[:], height)
	buf = append(buf, heightLE[:]...)
	buf = append(buf, self[:]...)
	return buf
}

// VRFBelowThreshold reports whether output's first byte is <= threshold,
// per spec §4.8's eligibility predicate.
func VRFBelowThreshold(output types.Hash, threshold byte) bool {
	return output[0] <= threshold
}
