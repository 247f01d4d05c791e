// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vdf implements the C4 component of the Norn node: a
// sequential-squaring Verifiable Delay Function over an RSA-like group,
// with a Wesolowski-style fast verifier and a seed chain, per spec §4.4.
//
// Grounded on original_source/crates/crypto/src/calculator/mod.rs for the
// seed-chain state machine (prev_seed/seed/proof/changed, a single
// background worker fed by an unbounded channel of new seeds) and on the
// spec's verification formula.
package vdf

import (
	"errors"
	"math/big"
	"sync"
)

// Params are the public parameters of the VDF group, per spec §4.4:
// Order is the RSA-like modulus N, ProofParam is the (small) modulus used
// in the Wesolowski-style proof, and TimeParam is the iteration count T.
type Params struct {
	Order      *big.Int
	ProofParam *big.Int
	TimeParam  uint64
}

var (
	ErrNotInitialized = errors.New("vdf: calculator not initialized")
	ErrSeedRejected   = errors.New("vdf: new seed failed verification against the current chain")
)

// seedChain holds the serialized seed-rotation state of spec §4.4.
type seedChain struct {
	prevSeed *big.Int
	seed     *big.Int
	proof    *big.Int
	changed  bool
}

// Calculator is the process-wide VDF engine. Spec §9 calls it out as the
// one deliberate singleton in the system ("process-wide as a
// once-initialized singleton with an explicit teardown hook in tests").
type Calculator struct {
	params Params

	mu    sync.RWMutex
	chain seedChain

	jobs    chan *big.Int
	done    chan struct{}
	wg      sync.WaitGroup
	results chan Result
}

// Result is one completed (seed, output, proof) computation emitted by
// the background worker.
type Result struct {
	Seed   *big.Int
	Output *big.Int
	Proof  *big.Int
}

const jobQueueCapacity = 32

var (
	singletonMu sync.Mutex
	singleton   *Calculator
)

// Init constructs and starts the process-wide Calculator. Calling Init
// again after Teardown is legal (tests rely on this).
func Init(params Params) *Calculator {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	c := &Calculator{
		params:  params,
		jobs:    make(chan *big.Int, jobQueueCapacity),
		done:    make(chan struct{}),
		results: make(chan Result, jobQueueCapacity),
	}
	c.chain.prevSeed = big.NewInt(0)
	c.chain.seed = big.NewInt(0)
	c.chain.proof = big.NewInt(0)

	c.wg.Add(1)
	go c.runLoop()

	singleton = c
	return c
}

// Get returns the process-wide Calculator, or nil if Init has not been
// called (or Teardown has run since).
func Get() *Calculator {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	return singleton
}

// Teardown stops the background worker and clears the singleton. Tests
// must call this between cases that each call Init.
func (c *Calculator) Teardown() {
	close(c.done)
	c.wg.Wait()

	singletonMu.Lock()
	if singleton == c {
		singleton = nil
	}
	singletonMu.Unlock()
}

func (c *Calculator) runLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case seed := <-c.jobs:
			c.mu.Lock()
			c.chain.changed = false
			c.mu.Unlock()

			output, proof, restarted := c.computeWithRestart(seed)
			if restarted {
				continue
			}

			select {
			case c.results <- Result{Seed: seed, Output: output, Proof: proof}:
			default:
			}
		}
	}
}

// computeWithRestart runs the sequential-squaring loop, checking the
// changed flag periodically so a newer seed can preempt a stale
// computation (spec §4.4: "a concurrent calculator-update in-flight
// marks changed_flag and causes the worker to restart").
func (c *Calculator) computeWithRestart(seed *big.Int) (output, proof *big.Int, restarted bool) {
	const restartCheckInterval = 4096

	n := c.params.Order
	ell := c.params.ProofParam

	x := new(big.Int).Mod(seed, n)
	g := new(big.Int).Set(x)
	pi := big.NewInt(1)
	r := big.NewInt(1)
	r.Mod(r, ell)

	two := big.NewInt(2)
	tmp := new(big.Int)

	for i := uint64(0); i < c.params.TimeParam; i++ {
		if i%restartCheckInterval == 0 {
			c.mu.RLock()
			changed := c.chain.changed
			c.mu.RUnlock()
			if changed {
				return nil, nil, true
			}
		}

		tmp.Mul(r, two)
		q := new(big.Int)
		q.DivMod(tmp, ell, r) // r = 2*r mod ell (prev r), q in {0,1}

		pi.Mul(pi, pi)
		if q.Sign() != 0 {
			pi.Mul(pi, g)
		}
		pi.Mod(pi, n)

		x.Mul(x, x)
		x.Mod(x, n)
	}

	return x, pi, false
}

// AppendNewSeed accepts a new seed/proof pair into the chain iff it is
// idempotent ({prev_seed, seed}) or verifies against the current seed,
// then rotates the chain and enqueues the next computation job, per
// spec §4.4.
func (c *Calculator) AppendNewSeed(seed, proof *big.Int) error {
	c.mu.Lock()
	if c.chain.seed.Cmp(seed) == 0 || c.chain.prevSeed.Cmp(seed) == 0 {
		c.mu.Unlock()
		return nil
	}
	current := new(big.Int).Set(c.chain.seed)
	c.mu.Unlock()

	if current.Sign() != 0 && !c.Verify(current, proof, seed) {
		return ErrSeedRejected
	}

	c.mu.Lock()
	c.chain.changed = true
	c.chain.prevSeed = c.chain.seed
	c.chain.seed = seed
	c.chain.proof = proof
	c.mu.Unlock()

	select {
	case c.jobs <- seed:
	default:
		// Queue full: the worker is behind. The next seed that lands
		// will still be served since changed=true preempts the
		// in-flight computation.
	}
	return nil
}

// CurrentSeedParams returns the current (seed, proof) pair.
func (c *Calculator) CurrentSeedParams() (*big.Int, *big.Int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return new(big.Int).Set(c.chain.seed), new(big.Int).Set(c.chain.proof)
}

// VerifyBlockVDF implements spec §4.4's calculator-scoped convenience
// check used by the block buffer at admission time (§4.1 step 4): accept
// seed if it matches the chain's prev/current seed, or if it verifies
// against the current seed.
func (c *Calculator) VerifyBlockVDF(seed, proof *big.Int) bool {
	c.mu.RLock()
	cur := new(big.Int).Set(c.chain.seed)
	prev := new(big.Int).Set(c.chain.prevSeed)
	c.mu.RUnlock()

	if cur.Cmp(seed) == 0 || prev.Cmp(seed) == 0 {
		return true
	}
	if cur.Sign() == 0 {
		return false
	}
	return c.Verify(cur, proof, seed)
}

// Verify implements the pure, reentrant verification formula of spec
// §4.4:
//
//	r ← 2^T mod pp
//	h ← π^pp mod N
//	s ← seed^r mod N
//	accept iff y ≡ h·s (mod N)
func (c *Calculator) Verify(seed, proof, output *big.Int) bool {
	return Verify(c.params, seed, proof, output)
}

// Verify is the free-function form of the verification formula, usable
// without a live Calculator (e.g. during block validation on a
// non-producing node).
func Verify(params Params, seed, proof, output *big.Int) bool {
	if params.Order == nil || params.ProofParam == nil || params.Order.Sign() <= 0 {
		return false
	}

	exp := new(big.Int).Exp(big.NewInt(2), new(big.Int).SetUint64(params.TimeParam), params.ProofParam)
	r := new(big.Int).Mod(exp, params.ProofParam)

	h := new(big.Int).Exp(proof, params.ProofParam, params.Order)
	s := new(big.Int).Exp(seed, r, params.Order)

	expected := new(big.Int).Mul(h, s)
	expected.Mod(expected, params.Order)

	return expected.Cmp(new(big.Int).Mod(output, params.Order)) == 0
}

// ComputeSync runs the sequential-squaring loop to completion without
// going through the background worker; used by the producer (§4.8) to
// seal a block with a fresh VDF output synchronously within its own
// goroutine.
func ComputeSync(params Params, seed *big.Int) (output, proof *big.Int) {
	c := &Calculator{params: params}
	output, proof, _ = c.computeWithRestart(seed)
	return output, proof
}
