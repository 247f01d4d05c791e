// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validation implements the C10 component of the Norn node:
// header, transaction-set, Merkle-root and block-hash checks of spec
// §4.9, applied to a gossiped or fast-synced block before it is admitted
// to the block buffer (§4.1) or fed to EVM execution (§4.6).
package validation

import (
	"encoding/json"
	"errors"
	"math/big"

	"github.com/norn-chain/norn/core/types"
	"github.com/norn-chain/norn/crypto"
	"github.com/norn-chain/norn/params"
	"github.com/norn-chain/norn/vdf"
)

var (
	ErrNegativeHeight     = errors.New("validation: height must be >= 0")
	ErrHeightMismatch     = errors.New("validation: height != parent.height + 1")
	ErrPrevHashMismatch   = errors.New("validation: prev_block_hash != parent.block_hash")
	ErrTimestampFuture    = errors.New("validation: timestamp too far in the future")
	ErrTimestampTooSoon   = errors.New("validation: timestamp < parent.timestamp + min_interval")
	ErrGasLimitExceedsMax = errors.New("validation: gas_limit exceeds max")
	ErrTooManyTxs         = errors.New("validation: transaction count exceeds cap")
	ErrTxHeightMismatch   = errors.New("validation: tx.height != block.height")
	ErrTxIndexMismatch    = errors.New("validation: tx.index != position in block")
	ErrTxBlockHashMismatch = errors.New("validation: tx.block_hash != block.block_hash")
	ErrTxGasZero          = errors.New("validation: tx.gas_limit must be > 0")
	ErrTxExpired          = errors.New("validation: transaction expired at block timestamp")
	ErrGasOverLimit       = errors.New("validation: sum of tx gas exceeds block gas_limit")
	ErrMerkleMismatch     = errors.New("validation: merkle_root does not match transaction set")
	ErrBlockTooLarge      = errors.New("validation: serialized block exceeds max_block_bytes")
	ErrVDFInvalid         = errors.New("validation: vdf proof does not verify")
)

// Config carries the tunable limits of spec §4.9.
type Config struct {
	MaxClockDrift    uint64 // seconds, e.g. 300
	MinBlockInterval uint64 // seconds, e.g. 1
	MaxGasLimit      uint64
	MaxTxCount       int
	MaxBlockBytes    int // e.g. 10 MiB
}

// DefaultConfig mirrors the figures named in spec §4.9.
func DefaultConfig() Config {
	return Config{
		MaxClockDrift:    300,
		MinBlockInterval: 1,
		MaxGasLimit:      30_000_000,
		MaxTxCount:       10_000,
		MaxBlockBytes:    10 * 1024 * 1024,
	}
}

// ValidateHeader implements spec §4.9's header checks. parent is nil for
// genesis (callers must check IsValidGenesis separately; ValidateHeader
// assumes a non-genesis block when parent == nil it only checks
// height >= 0 and the drift/gas_limit bounds).
func ValidateHeader(cfg Config, h *types.Header, parent *types.Header, now uint64) error {
	if parent != nil {
		if h.Height != parent.Height+1 {
			return ErrHeightMismatch
		}
		if h.PrevBlockHash != parent.BlockHash {
			return ErrPrevHashMismatch
		}
		if h.Timestamp < parent.Timestamp+cfg.MinBlockInterval {
			return ErrTimestampTooSoon
		}
	}
	if now > 0 && h.Timestamp > now+cfg.MaxClockDrift {
		return ErrTimestampFuture
	}
	if h.GasLimit > cfg.MaxGasLimit {
		return ErrGasLimitExceedsMax
	}
	return nil
}

// ValidateTransactionSet implements spec §4.9's per-tx checks across the
// block body: count cap, signature, positive gas, expiry, inclusion
// metadata (height/index/block_hash), and the aggregate gas cap.
func ValidateTransactionSet(cfg Config, block *types.Block) error {
	if len(block.Transactions) > cfg.MaxTxCount {
		return ErrTooManyTxs
	}

	var totalGas uint64
	for i := range block.Transactions {
		tx := &block.Transactions[i]

		if tx.GasLimit == 0 {
			return ErrTxGasZero
		}
		if err := crypto.VerifyTransactionSignature(tx); err != nil {
			return err
		}
		if tx.IsExpired(block.Header.Timestamp) {
			return ErrTxExpired
		}
		if tx.Height != block.Header.Height {
			return ErrTxHeightMismatch
		}
		if int(tx.Index) != i {
			return ErrTxIndexMismatch
		}
		if tx.BlockHash != block.Header.BlockHash {
			return ErrTxBlockHashMismatch
		}
		totalGas += tx.GasLimit
	}
	if totalGas > block.Header.GasLimit {
		return ErrGasOverLimit
	}
	return nil
}

// ValidateMerkleRoot recomputes the transaction Merkle root (spec §4.3)
// and compares it against the header.
func ValidateMerkleRoot(block *types.Block) error {
	got := crypto.BuildMerkleRootFromTransactions(block.Transactions)
	if got != block.Header.MerkleRoot {
		return ErrMerkleMismatch
	}
	return nil
}

// ValidateBlockHash recomputes header.ComputeHash and compares it to the
// stored block_hash field.
func ValidateBlockHash(block *types.Block) error {
	return block.Header.VerifyHash()
}

// previousSeedFromHeader extracts the VDF seed a header contributes as
// the chain input for its successor. The genesis header encodes a
// GenesisVDFParams JSON blob rather than an EncodeArtifacts-format
// (seed, proof) pair, so it is decoded separately.
func previousSeedFromHeader(h *types.Header) (*big.Int, bool) {
	if h.Height == 0 {
		var g params.GenesisVDFParams
		if err := json.Unmarshal(h.Params, &g); err != nil {
			return nil, false
		}
		return new(big.Int).SetBytes(g.Seed[:]), true
	}
	seed, _, ok := vdf.DecodeArtifacts(h.Params)
	return seed, ok
}

// ValidateVDF verifies that header's VDF proof genuinely chains from
// parent's declared seed, per spec §4.4/§4.9's optional off-fast-path
// check: header.Params encodes (new_seed, proof), where proof attests
// that new_seed is the result of running the VDF forward from parent's
// seed.
func ValidateVDF(vdfParams vdf.Params, header *types.Header, parent *types.Header) error {
	newSeed, proof, ok := vdf.DecodeArtifacts(header.Params)
	if !ok {
		return ErrVDFInvalid
	}
	prevSeed, ok := previousSeedFromHeader(parent)
	if !ok {
		return ErrVDFInvalid
	}
	if !vdf.Verify(vdfParams, prevSeed, proof, newSeed) {
		return ErrVDFInvalid
	}
	return nil
}

// ValidateSize enforces spec §4.9's max_block_bytes cap given the
// block's already-serialized length.
func ValidateSize(cfg Config, serializedLen int) error {
	if serializedLen > cfg.MaxBlockBytes {
		return ErrBlockTooLarge
	}
	return nil
}

// ValidateBlock runs the full fast-path pipeline of spec §4.9: header,
// tx set, Merkle root, block hash, then size against the caller-supplied
// serialized length. VDF/VRF checks are intentionally excluded here
// (they run off the propagation fast path, e.g. in the block buffer at
// admission or during fast-sync checkpoints).
func ValidateBlock(cfg Config, block *types.Block, parent *types.Header, now uint64, serializedLen int) error {
	if err := ValidateHeader(cfg, &block.Header, parent, now); err != nil {
		return err
	}
	if err := ValidateTransactionSet(cfg, block); err != nil {
		return err
	}
	if err := ValidateMerkleRoot(block); err != nil {
		return err
	}
	if err := ValidateBlockHash(block); err != nil {
		return err
	}
	return ValidateSize(cfg, serializedLen)
}
