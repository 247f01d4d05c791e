// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArchiveModeNeverPrunes(t *testing.T) {
	cfg := PruningConfig{Mode: PruningArchive, MinKeep: 10, MaxKeep: 100, Interval: 1}
	require.False(t, cfg.ShouldPrune(1000))
	require.Equal(t, uint64(0), cfg.Cutoff(1000))
}

func TestBoundedModeShouldPruneRespectsLastPruneBlock(t *testing.T) {
	cfg := PruningConfig{Mode: PruningBounded, Interval: 1000}
	require.True(t, cfg.ShouldPrune(1000))
	cfg.MarkPruned(1000)
	require.False(t, cfg.ShouldPrune(1500))
	require.True(t, cfg.ShouldPrune(2000))
	cfg.MarkPruned(2000)
	require.False(t, cfg.ShouldPrune(2500))
}

func TestBoundedModeShouldPruneFiresOnceIntervalElapsedEvenOffMultiple(t *testing.T) {
	cfg := PruningConfig{Mode: PruningBounded, Interval: 1000}
	cfg.MarkPruned(700)
	require.False(t, cfg.ShouldPrune(1600))
	require.True(t, cfg.ShouldPrune(1700))
}

func TestBoundedModeShouldPruneAlwaysWhenIntervalZero(t *testing.T) {
	cfg := PruningConfig{Mode: PruningBounded, Interval: 0}
	require.True(t, cfg.ShouldPrune(1))
	require.True(t, cfg.ShouldPrune(123456))
}

func TestCutoffClampsToZeroOnYoungChain(t *testing.T) {
	cfg := DefaultPruningConfig()
	require.Equal(t, uint64(0), cfg.Cutoff(10))
}

func TestCutoffUsesMinKeepWindowOnceMature(t *testing.T) {
	cfg := DefaultPruningConfig()
	height := uint64(200_000)
	require.Equal(t, height-cfg.MinKeep, cfg.Cutoff(height))
}

func TestCutoffNeverNegativeRegardlessOfBoundOrdering(t *testing.T) {
	// Even with an (unusual) config where MinKeep > MaxKeep, Cutoff must
	// still return the larger, non-underflowed candidate.
	cfg := PruningConfig{Mode: PruningBounded, MinKeep: 50, MaxKeep: 10}
	require.Equal(t, uint64(40), cfg.Cutoff(50))
}
