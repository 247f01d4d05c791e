// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "math/big"

// Log is one EVM log entry, per spec §3.
type Log struct {
	Address Address  `json:"address"`
	Topics  []Hash   `json:"topics"`
	Data    []byte   `json:"data"`
}

// Bloom is a 2048-bit (256-byte) filter over log addresses/topics.
type Bloom [256]byte

// Receipt is the per-transaction execution outcome of spec §3.
type Receipt struct {
	TxHash            Hash     `json:"tx_hash"`
	BlockHash         Hash     `json:"block_hash"`
	BlockNumber       uint64   `json:"block_number"`
	TxIndex           uint32   `json:"tx_index"`
	From              Address  `json:"from"`
	To                *Address `json:"to,omitempty"`
	ContractAddress   *Address `json:"contract_address,omitempty"`
	GasUsed           uint64   `json:"gas_used"`
	CumulativeGasUsed uint64   `json:"cumulative_gas_used"`
	Status            uint64   `json:"status"`
	Logs              []Log    `json:"logs"`
	Bloom             Bloom    `json:"bloom"`
	EffectiveGasPrice *big.Int `json:"effective_gas_price"`
}

const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// MergeBloom ORs the blooms of the given receipts into a single bloom,
// used for the block-level log bloom.
func MergeBloom(receipts []*Receipt) Bloom {
	var bloom Bloom
	for _, r := range receipts {
		for i := range bloom {
			bloom[i] |= r.Bloom[i]
		}
	}
	return bloom
}
