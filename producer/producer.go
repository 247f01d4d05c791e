// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package producer implements the C11 component of the Norn node: VRF
// leader-election eligibility and block sealing, per spec §4.8.
// Grounded on original_source/crates/crypto/src/vrf/mod.rs for the VRF
// construction (via the crypto package) and on the teacher's producer
// loop shape of a fixed-interval ticker gating a single proposal
// attempt, generalized with golang.org/x/time/rate for the block
// interval rate limit the spec names explicitly.
package producer

import (
	"crypto/ecdsa"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/norn-chain/norn/blockbuffer"
	"github.com/norn-chain/norn/blockchain"
	"github.com/norn-chain/norn/core/types"
	"github.com/norn-chain/norn/crypto"
	"github.com/norn-chain/norn/mempool"
	"github.com/norn-chain/norn/params"
	"github.com/norn-chain/norn/vdf"
)

var (
	ErrNotEligible  = errors.New("producer: not eligible to propose at this height")
	ErrRateLimited  = errors.New("producer: block interval rate limit exceeded")
)

// Config carries the tunables of spec §4.8.
type Config struct {
	// Threshold is the VRF eligibility threshold (first output byte must
	// be <= Threshold).
	Threshold byte
	// BlockInterval bounds how often this node may propose, in seconds.
	BlockInterval time.Duration
	MaxTxPerBlock int
}

// DefaultConfig mirrors the figures spec §4.8 names (e.g. "block_interval
// seconds").
func DefaultConfig() Config {
	return Config{Threshold: 0x0c, BlockInterval: time.Second, MaxTxPerBlock: 2000}
}

// Producer seals blocks from the mempool when this node's VRF output is
// eligible for a given height.
type Producer struct {
	key     *ecdsa.PrivateKey
	self    types.Address
	pool    *mempool.Pool
	chain   *blockchain.Chain
	buffer  *blockbuffer.Buffer
	calc    *vdf.Calculator
	fees    params.FeeConfig
	cfg     Config
	limiter *rate.Limiter
}

// New constructs a Producer signing with key, proposing as self.
func New(key *ecdsa.PrivateKey, self types.Address, pool *mempool.Pool, chain *blockchain.Chain, buffer *blockbuffer.Buffer, calc *vdf.Calculator, fees params.FeeConfig, cfg Config) *Producer {
	interval := cfg.BlockInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Producer{
		key:     key,
		self:    self,
		pool:    pool,
		chain:   chain,
		buffer:  buffer,
		calc:    calc,
		fees:    fees,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Eligible implements spec §4.8's selection predicate: VRF(sk, seed ||
// height_le || self_address) has first byte <= threshold.
func (p *Producer) Eligible(seed types.Hash, height uint64) (crypto.VRFProof, bool, error) {
	msg := crypto.VRFSeedMessage(seed, height, p.self)
	proof, err := crypto.VRFEvaluate(p.key, msg)
	if err != nil {
		return crypto.VRFProof{}, false, err
	}
	return proof, crypto.VRFBelowThreshold(proof.Output, p.cfg.Threshold), nil
}

// TryPropose attempts to seal and submit a new block at the current tip
// + 1, if this node is rate-limit-eligible and VRF-eligible at that
// height. It returns ErrRateLimited or ErrNotEligible (both expected,
// non-fatal outcomes of a regular tick) rather than wrapping them.
func (p *Producer) TryPropose(seed types.Hash) (*types.Block, error) {
	if !p.limiter.Allow() {
		return nil, ErrRateLimited
	}

	tip := p.chain.Latest()
	height := tip.Header.Height + 1

	proof, eligible, err := p.Eligible(seed, height)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrNotEligible
	}

	block, err := p.seal(tip, height, proof)
	if err != nil {
		return nil, err
	}

	p.buffer.Submit(block)
	return block, nil
}

// seal implements spec §4.8's Seal step: assemble transactions from the
// mempool, compute the Merkle root, build the header, and compute the
// block hash.
func (p *Producer) seal(parent *types.Block, height uint64, proof crypto.VRFProof) (*types.Block, error) {
	txs := p.pool.Package(p.chain, p.cfg.MaxTxPerBlock, parent.Header.GasLimit)

	bodyTxs := make([]types.Transaction, len(txs))
	for i, tx := range txs {
		tx.Height = height
		tx.Index = uint32(i)
		bodyTxs[i] = *tx
	}

	merkleRoot := crypto.BuildMerkleRootFromTransactions(bodyTxs)

	var vdfParams []byte
	if p.calc != nil {
		seed, vdfProof := p.calc.CurrentSeedParams()
		vdfParams = vdf.EncodeArtifacts(seed, vdfProof)
	}

	baseFee := p.fees.CalculateNextBaseFee(parent.Header.BaseFee, parent.GasLimitUsed())

	header := types.Header{
		Timestamp:         uint64(time.Now().Unix()),
		PrevBlockHash:     parent.Header.BlockHash,
		MerkleRoot:        merkleRoot,
		StateRoot:         p.chain.StateRoot(),
		Height:            height,
		ProposerPublicKey: proof.VerificationKey,
		Params:            vdfParams,
		GasLimit:          parent.Header.GasLimit,
		BaseFee:           baseFee,
	}

	blockHash, err := header.ComputeHash()
	if err != nil {
		return nil, err
	}
	header.BlockHash = blockHash

	for i := range bodyTxs {
		bodyTxs[i].BlockHash = blockHash
	}

	return &types.Block{Header: header, Transactions: bodyTxs}, nil
}
