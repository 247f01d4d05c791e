// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"errors"

	nortypes "github.com/norn-chain/norn/core/types"
)

// Gas cost constants of spec §4.6 step 2.
const (
	TxGas                  uint64 = 21_000
	TxGasContractCreation  uint64 = 53_000
	TxDataZeroGas          uint64 = 4
	TxDataNonZeroGas       uint64 = 16
	TxAccessListAddressGas uint64 = 2_400
	TxAccessListSlotGas    uint64 = 1_900

	// MaxCodeSize is the EIP-170 deployed-code size limit.
	MaxCodeSize = 24_576
)

var ErrIntrinsicGas = errors.New("evm: gas_limit below intrinsic gas requirement")

// IntrinsicGas implements spec §4.6 step 2: the base call/creation cost
// plus per-byte calldata cost plus EIP-2930 access-list cost. Grounded
// on original_source/crates/core/src/evm/gas.rs; the constants match
// go-ethereum's own core.IntrinsicGas table.
func IntrinsicGas(data []byte, accessList nortypes.AccessList, isCreation bool) uint64 {
	gas := TxGas
	if isCreation {
		gas = TxGasContractCreation
	}

	for _, b := range data {
		if b == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGas
		}
	}

	gas += uint64(len(accessList)) * TxAccessListAddressGas
	for _, entry := range accessList {
		gas += uint64(len(entry.StorageKeys)) * TxAccessListSlotGas
	}
	return gas
}

// CheckIntrinsicGas rejects a transaction whose gas_limit is below its
// intrinsic cost, per spec §4.6 step 2.
func CheckIntrinsicGas(tx *nortypes.Transaction) error {
	intrinsic := IntrinsicGas(tx.Data, tx.AccessList, tx.IsContractCreation())
	if tx.GasLimit < intrinsic {
		return ErrIntrinsicGas
	}
	return nil
}

// CapRefund implements EIP-3529 (spec §4.6 step 7): the effective refund
// is capped at gasUsed/2.
func CapRefund(accumulatedRefund, gasUsed uint64) uint64 {
	cap := gasUsed / 2
	if accumulatedRefund > cap {
		return cap
	}
	return accumulatedRefund
}

// Warm/cold access costs of spec §4.6.2 (EIP-2929).
const (
	ColdAccountAccessCostGas uint64 = 2_600
	WarmStorageReadCostGas   uint64 = 100
	ColdSloadCostGas         uint64 = 2_100
)
