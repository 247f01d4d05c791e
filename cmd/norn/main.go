// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Command norn is the process entrypoint that wires the core components
// together: storage, state, EVM, mempool, block buffer, producer, and
// network. Per spec.md §1 the RPC/gRPC/JSON-RPC server, the CLI/TOML
// business logic beyond this thin wiring, the Prometheus HTTP endpoint,
// the faucet service, and full logging-sink setup are external
// collaborators; this file only constructs the core graph and runs its
// lifecycle, grounded on the teacher's cmd/evm-node/main.go shape (a
// urfave/cli.App with a single default action and signal-driven
// shutdown).
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/norn-chain/norn/appdata"
	"github.com/norn-chain/norn/blockbuffer"
	"github.com/norn-chain/norn/blockchain"
	"github.com/norn-chain/norn/core/types"
	nornCrypto "github.com/norn-chain/norn/crypto"
	"github.com/norn-chain/norn/eventbus"
	"github.com/norn-chain/norn/evm"
	"github.com/norn-chain/norn/mempool"
	"github.com/norn-chain/norn/network"
	"github.com/norn-chain/norn/params"
	"github.com/norn-chain/norn/producer"
	"github.com/norn-chain/norn/state"
	"github.com/norn-chain/norn/storage"
	"github.com/norn-chain/norn/vdf"
)

const clientIdentifier = "norn"

// defaultMempoolSize is the soft cap on pending transactions, per spec
// §4.2's "global pool cap is a soft upper bound".
const defaultMempoolSize = 50_000

// genesisVDFGroupParams builds the VDF group parameters the process-wide
// calculator singleton starts from. Genesis itself (spec §6) fixes
// order=0^128 as an inert placeholder header value, not a usable group;
// a real deployment supplies the actual RSA-like modulus via the
// CLI/TOML config loader, which is an external collaborator per spec
// §1 — this wiring entrypoint falls back to a fixed non-trivial modulus
// so the singleton is at least well-formed out of the box.
func genesisVDFGroupParams() vdf.Params {
	order := new(big.Int).Lsh(big.NewInt(1), 1024)
	order.Sub(order, big.NewInt(189))
	proofParam := big.NewInt(0)
	proofParam.SetString("170141183460469231731687303715884105727", 10)
	return vdf.Params{Order: order, ProofParam: proofParam, TimeParam: params.GenesisVDFTimeParam}
}

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "Norn PoVF blockchain node",
	Version: "0.1.0",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "datadir", Value: "./norn-data", Usage: "node data directory"},
		&cli.StringFlag{Name: "config", Usage: "optional TOML config file, layered under flags"},
		&cli.StringFlag{Name: "listen", Value: ":30303", Usage: "P2P gossip listen address"},
		&cli.StringSliceFlag{Name: "peer", Usage: "peer address to dial at startup (repeatable)"},
		&cli.StringFlag{Name: "validator-key", Usage: "hex-encoded P-256 validator private key; empty disables proposing"},
		&cli.StringFlag{Name: "metrics-addr", Value: ":9100", Usage: "Prometheus metrics HTTP bind address"},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "log level: trace, debug, info, warn, error"},
		&cli.StringFlag{Name: "log-format", Value: "terminal", Usage: "log format: terminal, json"},
		&cli.StringFlag{Name: "pruning", Value: "bounded", Usage: "pruning mode: bounded, archive"},
	},
}

func init() {
	app.Action = runNode
	app.Before = configureLogging
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if coder, ok := err.(cli.ExitCoder); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(2)
	}
}

// configError wraps err as a spec §6 exit-code-1 config/init failure.
func configError(err error) error {
	return cli.Exit(err.Error(), 1)
}

func configureLogging(c *cli.Context) error {
	level := log.LevelInfo
	switch c.String("log-level") {
	case "trace":
		level = log.LevelTrace
	case "debug":
		level = log.LevelDebug
	case "warn":
		level = log.LevelWarn
	case "error":
		level = log.LevelError
	}
	var handler log.Handler
	if c.String("log-format") == "json" {
		handler = log.JSONHandler(os.Stderr)
	} else {
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, level, true)
	}
	log.SetDefault(log.NewLogger(handler))
	return nil
}

// loadConfigLayer merges a TOML config file (if given) under the flags
// already set on c, using viper's precedence rules — flags win, the file
// fills gaps — per the ambient stack's config section.
func loadConfigLayer(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return configError(err)
	}
	for _, key := range []string{"datadir", "listen", "validator-key", "metrics-addr", "log-level", "log-format", "pruning"} {
		if !c.IsSet(key) && v.IsSet(key) {
			_ = c.Set(key, v.GetString(key))
		}
	}
	return nil
}

func runNode(c *cli.Context) error {
	if err := loadConfigLayer(c); err != nil {
		return err
	}

	dataDir := c.String("datadir")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return configError(err)
	}

	kv, err := storage.Open(filepath.Join(dataDir, "chaindata"))
	if err != nil {
		log.Error("norn: failed to open storage", "err", err)
		return configError(err)
	}
	defer kv.Close()

	walPath := filepath.Join(dataDir, "state.wal")
	wal, err := storage.OpenWriter(walPath)
	if err != nil {
		log.Error("norn: failed to open write-ahead log", "err", err)
		return configError(err)
	}
	defer wal.Close()

	status, err := state.RecoverFromWAL(walPath, kv)
	if err != nil {
		log.Error("norn: WAL recovery failed", "err", err)
		return configError(err)
	}
	if status.Recovered {
		log.Warn("norn: recovered uncommitted state from WAL", "entries", status.Entries, "checkpoint", status.Checkpoint)
	}

	mgr := state.NewWithWAL(kv, wal)
	bus := eventbus.New()
	defer bus.Close()

	hashes := evm.NewBlockHashHistory()
	fees := params.DefaultFeeConfig()
	executor := evm.NewExecutor(mgr, fees, hashes)

	chain, err := blockchain.Open(kv, mgr, executor, fees)
	if err != nil {
		log.Error("norn: failed to open chain", "err", err)
		return configError(err)
	}

	apd := appdata.New(kv, bus)
	defer apd.Close()
	chain.SetAppDataProcessor(apd)

	pool := mempool.New(defaultMempoolSize)
	pool.SetEventBus(bus)

	calc := vdf.Init(genesisVDFGroupParams())
	defer calc.Teardown()

	buffer := blockbuffer.New(chain.Latest(), 12, calc)
	buffer.SetEventBus(bus)

	netMetrics := network.NewMetrics(prometheus.DefaultRegisterer)
	netMgr, err := network.NewManager(netMetrics, buffer.Submit, func(tx *types.Transaction) {
		if tx == nil {
			return
		}
		if err := pool.Add(tx); err != nil {
			log.Debug("norn: rejected gossiped transaction", "hash", tx.Hash.Hex(), "err", err)
		}
	})
	if err != nil {
		log.Error("norn: failed to start network manager", "err", err)
		return configError(err)
	}
	for _, addr := range c.StringSlice("peer") {
		if _, dialErr := netMgr.Dial(addr); dialErr != nil {
			log.Warn("norn: failed to dial peer", "addr", addr, "err", dialErr)
		}
	}

	pruning := state.DefaultPruningConfig()
	if c.String("pruning") == "archive" {
		pruning.Mode = state.PruningArchive
	}

	var key *ecdsa.PrivateKey
	if hexKey := c.String("validator-key"); hexKey != "" {
		var parseErr error
		key, parseErr = nornCrypto.PrivateKeyFromHex(hexKey)
		if parseErr != nil {
			log.Error("norn: malformed validator key", "err", parseErr)
			return configError(parseErr)
		}
	}

	var prod *producer.Producer
	if key != nil {
		self := nornCrypto.AddressFromPublicKey(nornCrypto.CompressPublicKey(&key.PublicKey))
		prod = producer.New(key, self, pool, chain, buffer, calc, fees, producer.DefaultConfig())
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: c.String("metrics-addr"), Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("norn: metrics server exited", "err", err)
		}
	}()

	gossipSrv := &http.Server{Addr: c.String("listen"), Handler: netMgr}
	go func() {
		if err := gossipSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("norn: gossip listener exited", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(100 * time.Microsecond)
	defer tick.Stop()
	tickCh := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				select {
				case tickCh <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	go buffer.Run(tickCh)

	go func() {
		for block := range buffer.Finalized() {
			if err := chain.ApplyBlock(block); err != nil {
				log.Error("norn: failed to apply finalized block", "height", block.Header.Height, "err", err)
				continue
			}
			if pruning.ShouldPrune(block.Header.Height) {
				cutoff := pruning.Cutoff(block.Header.Height)
				chain.PruneHistory(cutoff)
				pruning.MarkPruned(block.Header.Height)
				log.Debug("norn: pruned history", "height", block.Header.Height, "cutoff", cutoff)
			}
		}
	}()

	if prod != nil {
		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					seed, _ := calc.CurrentSeedParams()
					var seedHash types.Hash
					seed.FillBytes(seedHash[:])
					if _, err := prod.TryPropose(seedHash); err != nil {
						log.Debug("norn: proposal attempt declined", "err", err)
					}
				}
			}
		}()
	}

	log.Info("norn: node started", "datadir", dataDir, "listen", c.String("listen"), "validator", key != nil)

	<-sigCh
	log.Info("norn: shutdown signal received, draining")
	cancel()
	buffer.Stop()
	_ = metricsSrv.Close()
	_ = gossipSrv.Close()
	if err := mgr.Persist(); err != nil {
		log.Error("norn: final state flush failed", "err", err)
	}
	log.Info("norn: shutdown complete")
	return nil
}
