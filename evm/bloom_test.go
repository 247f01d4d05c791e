// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"testing"

	"github.com/stretchr/testify/require"

	nortypes "github.com/norn-chain/norn/core/types"
)

func TestBuildBloomContainsLoggedAddressAndTopics(t *testing.T) {
	var addr nortypes.Address
	addr[0] = 0xaa
	var topic nortypes.Hash
	topic[0] = 0xbb

	logs := []nortypes.Log{{Address: addr, Topics: []nortypes.Hash{topic}}}
	bloom := BuildBloom(logs)

	require.True(t, BloomContains(bloom, addr[:]))
	require.True(t, BloomContains(bloom, topic[:]))
}

func TestBuildBloomEmptyLogsYieldsEmptyBloom(t *testing.T) {
	bloom := BuildBloom(nil)
	require.Equal(t, nortypes.Bloom{}, bloom)
}

func TestBloomContainsRejectsUnrelatedData(t *testing.T) {
	var addr nortypes.Address
	addr[0] = 0xaa
	bloom := BuildBloom([]nortypes.Log{{Address: addr}})

	var other nortypes.Address
	other[0] = 0xff
	other[1] = 0x11
	require.False(t, BloomContains(bloom, other[:]))
}

func TestMergeBloomUnionsReceiptBlooms(t *testing.T) {
	var a1, a2 nortypes.Address
	a1[0], a2[0] = 0x01, 0x02

	r1 := &nortypes.Receipt{Bloom: BuildBloom([]nortypes.Log{{Address: a1}})}
	r2 := &nortypes.Receipt{Bloom: BuildBloom([]nortypes.Log{{Address: a2}})}

	merged := nortypes.MergeBloom([]*nortypes.Receipt{r1, r2})
	require.True(t, BloomContains(merged, a1[:]))
	require.True(t, BloomContains(merged, a2[:]))
}
