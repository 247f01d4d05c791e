// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"crypto/sha256"

	nortypes "github.com/norn-chain/norn/core/types"
)

// BuildBloom implements spec §4.6 step 9: a 2048-bit filter with three
// hash-derived bit positions per log entry (the log's address plus each
// topic).
func BuildBloom(logs []nortypes.Log) nortypes.Bloom {
	var bloom nortypes.Bloom
	for _, l := range logs {
		setBloomBits(&bloom, l.Address[:])
		for _, t := range l.Topics {
			setBloomBits(&bloom, t[:])
		}
	}
	return bloom
}

// setBloomBits sets the three bit positions spec §4.6 step 9 derives
// from data's SHA-256 digest: each pair of digest bytes, taken modulo
// 2048, selects one bit.
func setBloomBits(bloom *nortypes.Bloom, data []byte) {
	sum := sha256.Sum256(data)
	for i := 0; i < 3; i++ {
		pos := (uint16(sum[2*i])<<8 | uint16(sum[2*i+1])) % 2048
		byteIdx := pos / 8
		bitIdx := pos % 8
		bloom[byteIdx] |= 1 << bitIdx
	}
}

// BloomContains reports whether data's bits are all set in bloom (a
// probabilistic membership test — false positives are possible, false
// negatives are not).
func BloomContains(bloom nortypes.Bloom, data []byte) bool {
	sum := sha256.Sum256(data)
	for i := 0; i < 3; i++ {
		pos := (uint16(sum[2*i])<<8 | uint16(sum[2*i+1])) % 2048
		byteIdx := pos / 8
		bitIdx := pos % 8
		if bloom[byteIdx]&(1<<bitIdx) == 0 {
			return false
		}
	}
	return true
}
