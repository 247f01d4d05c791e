// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// Header is the Norn block header of spec §3.
type Header struct {
	Timestamp         uint64    `json:"timestamp"`
	PrevBlockHash     Hash      `json:"prev_block_hash"`
	BlockHash         Hash      `json:"block_hash"`
	MerkleRoot        Hash      `json:"merkle_root"`
	StateRoot         Hash      `json:"state_root"`
	Height            uint64    `json:"height"`
	ProposerPublicKey PublicKey `json:"proposer_public_key"`
	Params            []byte    `json:"params"`
	GasLimit          uint64    `json:"gas_limit"`
	BaseFee           *big.Int  `json:"base_fee"`
}

// Block is a Norn block: header plus an ordered transaction list.
type Block struct {
	Header       Header        `json:"header"`
	Transactions []Transaction `json:"transactions"`
}

type canonicalHeader struct {
	Timestamp         uint64
	PrevBlockHash     Hash
	MerkleRoot        Hash
	StateRoot         Hash
	Height            uint64
	ProposerPublicKey PublicKey
	Params            []byte
	GasLimit          uint64
	BaseFee           *big.Int
}

// HeaderWithoutHashBytes returns the canonical encoding of the header
// excluding the block_hash field, per spec §3.
func (h *Header) HeaderWithoutHashBytes() ([]byte, error) {
	c := canonicalHeader{
		Timestamp:         h.Timestamp,
		PrevBlockHash:     h.PrevBlockHash,
		MerkleRoot:        h.MerkleRoot,
		StateRoot:         h.StateRoot,
		Height:            h.Height,
		ProposerPublicKey: h.ProposerPublicKey,
		Params:            h.Params,
		GasLimit:          h.GasLimit,
		BaseFee:           nonNilBig(h.BaseFee),
	}
	return rlp.EncodeToBytes(&c)
}

// ComputeHash returns SHA-256(header_without_block_hash), per spec §3.
func (h *Header) ComputeHash() (Hash, error) {
	b, err := h.HeaderWithoutHashBytes()
	if err != nil {
		return Hash{}, err
	}
	return sha256.Sum256(b), nil
}

var (
	ErrBlockHashMismatch  = errors.New("types: block_hash does not match recomputed header hash")
	ErrHeightMismatch     = errors.New("types: height != parent.height + 1")
	ErrPrevHashMismatch   = errors.New("types: prev_block_hash != parent.block_hash")
	ErrNonMonotonicHeight = errors.New("types: height must be >= 0")
)

// VerifyHash checks that Header.BlockHash matches the recomputed hash.
func (h *Header) VerifyHash() error {
	want, err := h.ComputeHash()
	if err != nil {
		return err
	}
	if want != h.BlockHash {
		return ErrBlockHashMismatch
	}
	return nil
}

// TxHashes returns the ordered list of transaction hashes in the block.
func (b *Block) TxHashes() []Hash {
	hashes := make([]Hash, len(b.Transactions))
	for i := range b.Transactions {
		hashes[i] = b.Transactions[i].Hash
	}
	return hashes
}

// GasLimitUsed returns the sum of tx.gas_limit across the block body.
func (b *Block) GasLimitUsed() uint64 {
	var sum uint64
	for i := range b.Transactions {
		sum += b.Transactions[i].GasLimit
	}
	return sum
}
