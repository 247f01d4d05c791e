// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package vdf

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func smallTestParams() Params {
	return Params{
		Order:      big.NewInt(1_000_003),
		ProofParam: big.NewInt(97),
		TimeParam:  50,
	}
}

func TestComputeSyncRoundTripsWithVerify(t *testing.T) {
	params := smallTestParams()
	seed := big.NewInt(12345)

	output, proof := ComputeSync(params, seed)
	require.True(t, Verify(params, seed, proof, output))
}

func TestVerifyRejectsTamperedOutput(t *testing.T) {
	params := smallTestParams()
	seed := big.NewInt(12345)

	output, proof := ComputeSync(params, seed)
	tampered := new(big.Int).Add(output, big.NewInt(1))
	require.False(t, Verify(params, seed, proof, tampered))
}

func TestVerifyRejectsWrongSeed(t *testing.T) {
	params := smallTestParams()
	output, proof := ComputeSync(params, big.NewInt(12345))
	require.False(t, Verify(params, big.NewInt(54321), proof, output))
}

func TestVerifyRejectsZeroOrder(t *testing.T) {
	params := Params{Order: big.NewInt(0), ProofParam: big.NewInt(97), TimeParam: 10}
	require.False(t, Verify(params, big.NewInt(1), big.NewInt(1), big.NewInt(1)))
}

func TestInitAndTeardownLifecycle(t *testing.T) {
	require.Nil(t, Get())

	c := Init(smallTestParams())
	require.Same(t, c, Get())

	seed, proof := c.CurrentSeedParams()
	require.Equal(t, big.NewInt(0), seed)
	require.Equal(t, big.NewInt(0), proof)

	c.Teardown()
	require.Nil(t, Get())
}

func TestVerifyBlockVDFAcceptsCurrentAndPreviousSeed(t *testing.T) {
	params := smallTestParams()
	c := Init(params)
	defer c.Teardown()

	// Zero-valued chain: VerifyBlockVDF should accept the zero seed as
	// "matches current" without needing a real Verify call.
	require.True(t, c.VerifyBlockVDF(big.NewInt(0), big.NewInt(0)))
}

func TestAppendNewSeedRejectsUnverifiableSeed(t *testing.T) {
	params := smallTestParams()
	c := Init(params)
	defer c.Teardown()

	// Seed the chain with a known first value (accepted because the
	// chain's current seed starts at zero).
	require.NoError(t, c.AppendNewSeed(big.NewInt(111), big.NewInt(222)))

	// A second seed with a bogus proof must fail verification against
	// the now-nonzero current seed.
	err := c.AppendNewSeed(big.NewInt(333), big.NewInt(444))
	require.ErrorIs(t, err, ErrSeedRejected)
}

func TestAppendNewSeedIsIdempotent(t *testing.T) {
	params := smallTestParams()
	c := Init(params)
	defer c.Teardown()

	require.NoError(t, c.AppendNewSeed(big.NewInt(111), big.NewInt(222)))
	// Re-appending the same seed is a no-op, not a rejection.
	require.NoError(t, c.AppendNewSeed(big.NewInt(111), big.NewInt(999)))
}
