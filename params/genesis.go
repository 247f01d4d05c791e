// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package params holds the fixed, deterministic protocol constants of
// Norn: the genesis block, the EIP-1559 fee-market configuration, and the
// genesis VDF time parameter used across the node. Unlike the teacher's
// hard-fork activation schedule (go-ethereum's block-numbered upgrades),
// Norn has a single fixed protocol version, so this package carries flat
// constants rather than a fork schedule.
package params

import (
	"encoding/json"
	"math/big"

	"github.com/norn-chain/norn/core/types"
)

// Genesis timestamp and economic constants, per spec §6.
const (
	GenesisTimestamp    = uint64(1700000000)
	GenesisGasLimit     = uint64(10_000_000)
	GenesisVDFTimeParam = uint64(10_000_000)
)

// GenesisBaseFee is the fixed base fee of the genesis block.
func GenesisBaseFee() *big.Int { return big.NewInt(1_000_000_000) }

// GenesisVDFParams is the fixed seed-chain anchor serialized into the
// genesis header's Params field, per spec §6.
type GenesisVDFParams struct {
	Order        [128]byte `json:"order"`
	TimeParam    uint64    `json:"time_param"`
	Seed         [32]byte  `json:"seed"`
	VerifyParam  [32]byte  `json:"verify_param"`
}

func genesisVDFParams() GenesisVDFParams {
	var p GenesisVDFParams
	p.TimeParam = GenesisVDFTimeParam
	for i := range p.Seed {
		p.Seed[i] = 0x42
	}
	for i := range p.VerifyParam {
		p.VerifyParam[i] = 0x43
	}
	return p
}

// GenesisBlockHash is the fixed hash of the genesis block: 31 zero bytes
// followed by a single 0x01, per spec §6 ("block_hash=0x0..01").
func GenesisBlockHash() types.Hash {
	var h types.Hash
	h[len(h)-1] = 0x01
	return h
}

// GenesisBlock constructs the fixed genesis block of spec §6.
func GenesisBlock() (*types.Block, error) {
	paramBytes, err := json.Marshal(genesisVDFParams())
	if err != nil {
		return nil, err
	}
	header := types.Header{
		Timestamp:     GenesisTimestamp,
		PrevBlockHash: types.Hash{},
		BlockHash:     GenesisBlockHash(),
		MerkleRoot:    types.Hash{},
		StateRoot:     types.Hash{},
		Height:        0,
		Params:        paramBytes,
		GasLimit:      GenesisGasLimit,
		BaseFee:       GenesisBaseFee(),
	}
	return &types.Block{Header: header, Transactions: nil}, nil
}

// IsValidGenesis reports whether b matches the fixed genesis block, per
// spec §6: is_valid_genesis(b) ≡ height==0 ∧ prev==0 ∧ hash==GENESIS_HASH
// ∧ transactions==∅.
func IsValidGenesis(b *types.Block) bool {
	if b == nil {
		return false
	}
	return b.Header.Height == 0 &&
		b.Header.PrevBlockHash.IsZero() &&
		b.Header.BlockHash == GenesisBlockHash() &&
		len(b.Transactions) == 0
}
