// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import "math/big"

// FeeConfig carries the EIP-1559 fee-market parameters of spec §4.7,
// grounded on original_source/crates/core/src/evm/eip1559.rs.
type FeeConfig struct {
	GasTarget                uint64
	MaxGasLimit              uint64
	BaseFeeChangeDenominator uint64
	MinBaseFee               *big.Int
}

// DefaultFeeConfig mirrors the teacher's scaled-down mainnet-like
// defaults.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		GasTarget:                15_000_000,
		MaxGasLimit:              30_000_000,
		BaseFeeChangeDenominator: 8,
		MinBaseFee:               big.NewInt(1_000_000_000),
	}
}

// CalculateNextBaseFee implements spec §4.7: given the parent
// {base_fee, gas_used} and a gas_target, returns the next block's base
// fee. This is the single source of truth exercised by both block
// sealing (producer) and block validation.
func (c FeeConfig) CalculateNextBaseFee(parentBaseFee *big.Int, gasUsed uint64) *big.Int {
	target := c.GasTarget
	if gasUsed == target {
		return new(big.Int).Set(parentBaseFee)
	}

	var delta uint64
	increase := gasUsed > target
	if increase {
		delta = gasUsed - target
	} else {
		delta = target - gasUsed
	}

	change := new(big.Int).Mul(parentBaseFee, new(big.Int).SetUint64(delta))
	denom := new(big.Int).SetUint64(target * c.BaseFeeChangeDenominator)
	change.Div(change, denom)
	if change.Sign() == 0 {
		change.SetInt64(1)
	}

	next := new(big.Int)
	if increase {
		next.Add(parentBaseFee, change)
	} else {
		next.Sub(parentBaseFee, change)
		if next.Sign() < 0 {
			next.SetInt64(0)
		}
	}
	if next.Cmp(c.MinBaseFee) < 0 {
		return new(big.Int).Set(c.MinBaseFee)
	}
	return next
}

// EffectiveGasPrice implements spec §4.6 step 1 / §4.7: for an EIP-1559
// transaction, base_fee + min(max_priority_fee, max_fee - base_fee); for
// a legacy transaction, gas_price.
func EffectiveGasPrice(baseFee, maxFee, maxPriorityFee, gasPrice *big.Int) *big.Int {
	if maxFee != nil && maxPriorityFee != nil {
		if baseFee.Cmp(maxFee) > 0 {
			return new(big.Int).Set(maxFee)
		}
		available := new(big.Int).Sub(maxFee, baseFee)
		tip := maxPriorityFee
		if available.Cmp(tip) < 0 {
			tip = available
		}
		return new(big.Int).Add(baseFee, tip)
	}
	if gasPrice != nil {
		return new(big.Int).Set(gasPrice)
	}
	return new(big.Int).Set(baseFee)
}

// ValidateFeeParams implements spec §4.6 step 1: reject if max_fee <
// base_fee or max_priority > max_fee (already checked at tx admission,
// re-checked against the current block's base fee at execution time).
func ValidateFeeParams(baseFee, maxFee, maxPriorityFee, gasPrice *big.Int) error {
	if maxFee != nil && maxPriorityFee != nil {
		if maxFee.Cmp(baseFee) < 0 {
			return errFeeTooLow
		}
		if maxPriorityFee.Cmp(maxFee) > 0 {
			return errPriorityTooHigh
		}
		return nil
	}
	if gasPrice != nil && gasPrice.Cmp(baseFee) < 0 {
		return errFeeTooLow
	}
	return nil
}
