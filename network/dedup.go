// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import (
	"encoding/binary"
	"hash"
	"sync"

	bloomfilter "github.com/holiman/bloomfilter/v2"
)

// dedupM/dedupK size the gossip dedup filter for roughly one million
// tracked hashes at a sub-percent false-positive rate - generous
// headroom over any plausible per-epoch block+tx gossip volume. Unlike
// evm.BuildBloom (the protocol-mandated, hand-rolled 2048-bit receipt
// log filter of spec §4.6's Build receipt step), this filter is a
// purely local, ungrounded-in-spec optimization: a false positive here
// only costs a redundant rebroadcast, never a consensus-visible value,
// so a general-purpose probabilistic set from the ecosystem is the
// right tool rather than the protocol's fixed-shape bloom.
const (
	dedupM = 1 << 24
	dedupK = 7
)

// hash64 adapts a uint64 to hash.Hash64 so it can key a bloomfilter.Filter
// without the filter needing to know anything about our hash types.
type hash64 uint64

func (h hash64) Write(p []byte) (int, error) { return len(p), nil }
func (h hash64) Sum(b []byte) []byte         { return b }
func (h hash64) Reset()                      {}
func (h hash64) Size() int                   { return 8 }
func (h hash64) BlockSize() int              { return 8 }
func (h hash64) Sum64() uint64               { return uint64(h) }

var _ hash.Hash64 = hash64(0)

// dedupFilter is a concurrency-safe wrapper over a bloomfilter.Filter used
// to suppress re-broadcasting gossip (blocks/transactions) the peer
// manager has already relayed once.
type dedupFilter struct {
	mu     sync.Mutex
	filter *bloomfilter.Filter
}

func newDedupFilter() (*dedupFilter, error) {
	f, err := bloomfilter.New(dedupM, dedupK)
	if err != nil {
		return nil, err
	}
	return &dedupFilter{filter: f}, nil
}

// seen reports whether key has already been recorded and records it if
// not, per the standard "test-and-set" bloom dedup idiom.
func (d *dedupFilter) seen(key [32]byte) bool {
	k := hash64(binary.LittleEndian.Uint64(key[:8]))
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.filter.Contains(k) {
		return true
	}
	d.filter.Add(k)
	return false
}
