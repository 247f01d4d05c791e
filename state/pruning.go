// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package state

// PruningMode selects the pruning policy of spec §4.5, grounded on
// original_source/crates/core/src/state/pruning.rs's PruningConfig enum.
type PruningMode uint8

const (
	// PruningArchive retains all history; should_prune always false.
	PruningArchive PruningMode = iota
	// PruningBounded retains history from Cutoff (max(current-maxKeep,
	// current-minKeep)) up to the head, pruning whatever falls before it.
	PruningBounded
)

// PruningConfig controls when and how far history.PruneBefore runs.
type PruningConfig struct {
	Mode     PruningMode
	MinKeep  uint64 // newest cutoff bound: never prune within this distance of head
	MaxKeep  uint64 // oldest cutoff bound: never retain beyond this distance of head
	Interval uint64 // run pruning only every Interval blocks

	// LastPruneBlock is the height pruning last actually ran at. Zero
	// means pruning has never run.
	LastPruneBlock uint64
}

// DefaultPruningConfig mirrors the original's default bounded window.
func DefaultPruningConfig() PruningConfig {
	return PruningConfig{Mode: PruningBounded, MinKeep: 128, MaxKeep: 100_000, Interval: 1000}
}

// ShouldPrune reports whether pruning should run at currentHeight, per
// original_source/crates/core/src/state/pruning.rs's should_prune:
// current - last_prune_block >= interval. This fires exactly Interval
// blocks after the last actual prune, rather than at fixed multiples of
// Interval, so a missed or delayed run doesn't push the next one out to
// the next round-number height.
func (c *PruningConfig) ShouldPrune(currentHeight uint64) bool {
	if c.Mode == PruningArchive {
		return false
	}
	if c.Interval == 0 {
		return true
	}
	if currentHeight < c.LastPruneBlock {
		return false
	}
	return currentHeight-c.LastPruneBlock >= c.Interval
}

// MarkPruned records that pruning ran at height, per
// original_source/crates/core/src/state/pruning.rs's last_prune_block
// bookkeeping.
func (c *PruningConfig) MarkPruned(height uint64) {
	c.LastPruneBlock = height
}

// Cutoff computes the height below which history may be discarded, per
// original_source/crates/core/src/state/pruning.rs's
// prune_old_states cutoff formula: c = max(current-maxKeep, current-minKeep)
// clamped to zero. Because maxKeep >= minKeep, current-maxKeep <=
// current-minKeep, so this reduces to current-minKeep once both are
// non-negative; the max() guards against either term underflowing past
// zero on a young chain.
func (c *PruningConfig) Cutoff(currentHeight uint64) uint64 {
	if c.Mode == PruningArchive {
		return 0
	}
	a := subOrZero(currentHeight, c.MaxKeep)
	b := subOrZero(currentHeight, c.MinKeep)
	if a > b {
		return a
	}
	return b
}

func subOrZero(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
