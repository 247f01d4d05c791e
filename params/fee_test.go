// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateNextBaseFeeUnchangedAtTarget(t *testing.T) {
	cfg := DefaultFeeConfig()
	parent := big.NewInt(2_000_000_000)
	next := cfg.CalculateNextBaseFee(parent, cfg.GasTarget)
	require.Equal(t, 0, parent.Cmp(next))
}

func TestCalculateNextBaseFeeIncreasesAboveTarget(t *testing.T) {
	cfg := DefaultFeeConfig()
	parent := big.NewInt(2_000_000_000)
	next := cfg.CalculateNextBaseFee(parent, cfg.MaxGasLimit)
	require.Equal(t, 1, next.Cmp(parent))
}

func TestCalculateNextBaseFeeDecreasesBelowTarget(t *testing.T) {
	cfg := DefaultFeeConfig()
	parent := big.NewInt(2_000_000_000)
	next := cfg.CalculateNextBaseFee(parent, 0)
	require.Equal(t, -1, next.Cmp(parent))
}

func TestCalculateNextBaseFeeFloorsAtMinimum(t *testing.T) {
	cfg := DefaultFeeConfig()
	parent := new(big.Int).Set(cfg.MinBaseFee)
	next := cfg.CalculateNextBaseFee(parent, 0)
	require.Equal(t, 0, next.Cmp(cfg.MinBaseFee))
}

func TestCalculateNextBaseFeeNeverNegative(t *testing.T) {
	cfg := DefaultFeeConfig()
	cfg.MinBaseFee = big.NewInt(0)
	parent := big.NewInt(1)
	next := cfg.CalculateNextBaseFee(parent, 0)
	require.True(t, next.Sign() >= 0)
}

func TestEffectiveGasPriceEIP1559CapsAtMaxFee(t *testing.T) {
	baseFee := big.NewInt(100)
	maxFee := big.NewInt(120)
	maxPriority := big.NewInt(50)
	got := EffectiveGasPrice(baseFee, maxFee, maxPriority, nil)
	require.Equal(t, big.NewInt(120), got)
}

func TestEffectiveGasPriceEIP1559UsesTipWhenRoom(t *testing.T) {
	baseFee := big.NewInt(100)
	maxFee := big.NewInt(200)
	maxPriority := big.NewInt(10)
	got := EffectiveGasPrice(baseFee, maxFee, maxPriority, nil)
	require.Equal(t, big.NewInt(110), got)
}

func TestEffectiveGasPriceLegacy(t *testing.T) {
	baseFee := big.NewInt(100)
	got := EffectiveGasPrice(baseFee, nil, nil, big.NewInt(150))
	require.Equal(t, big.NewInt(150), got)
}

func TestValidateFeeParamsRejectsLowMaxFee(t *testing.T) {
	err := ValidateFeeParams(big.NewInt(100), big.NewInt(50), big.NewInt(10), nil)
	require.Error(t, err)
}

func TestValidateFeeParamsRejectsPriorityAboveMax(t *testing.T) {
	err := ValidateFeeParams(big.NewInt(100), big.NewInt(200), big.NewInt(250), nil)
	require.Error(t, err)
}

func TestValidateFeeParamsAcceptsValidEIP1559(t *testing.T) {
	err := ValidateFeeParams(big.NewInt(100), big.NewInt(200), big.NewInt(50), nil)
	require.NoError(t, err)
}

func TestValidateFeeParamsRejectsLowLegacyGasPrice(t *testing.T) {
	err := ValidateFeeParams(big.NewInt(100), nil, nil, big.NewInt(50))
	require.Error(t, err)
}
