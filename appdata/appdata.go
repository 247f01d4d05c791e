// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package appdata implements the application-data mutation surface spec
// §3 reserves on a transaction's data/opt/state fields: an opaque
// per-address, per-key byte store with two write commands, "set" and
// "append".
//
// Grounded on original_source/crates/core/src/data_processor.rs's
// DataProcessor: an mpsc-fed worker draining a task channel and
// broadcasting a completion event per task. spec.md's Open Questions
// section calls out the source's own set_data as internally
// inconsistent (it computes a JSON-array-wrapped display value for its
// log line and event but inserts the raw task.value into the database,
// so the two disagree about what "set" means) and explicitly declares
// this a bug to be decided, not guessed. This package implements the
// spec-mandated resolution: set = overwrite the stored value with the
// raw bytes, append = decode the existing value (or start from an empty
// array) as a JSON array, JSON-decode the incoming value as one
// string-map element, push it, and store the re-encoded array. Both
// commands write and log only the value they actually produce.
package appdata

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/norn-chain/norn/core/types"
	"github.com/norn-chain/norn/eventbus"
	"github.com/norn-chain/norn/storage"
)

// Command discriminates the two supported mutations.
type Command string

const (
	CommandSet    Command = "set"
	CommandAppend Command = "append"
)

var (
	ErrUnknownCommand  = errors.New("appdata: unknown command")
	ErrAppendNotJSONMap = errors.New("appdata: append value is not a JSON string map")
)

// Task is one queued mutation, carrying the transaction context it was
// derived from (hash/height) purely for the event it produces.
type Task struct {
	Command Command
	TxHash  types.Hash
	Height  uint64
	Address types.Address
	Key     []byte
	Value   []byte
}

const taskQueueCapacity = 10240

// Processor drains queued Tasks against a KV store, one at a time, on a
// single background worker — the same single-consumer shape as
// original_source's DataProcessor.run loop.
type Processor struct {
	kv  storage.KV
	bus *eventbus.Bus

	tasks chan Task
	done  chan struct{}
	wg    sync.WaitGroup
}

// New constructs a Processor and starts its worker goroutine. bus may
// be nil (events are simply not published).
func New(kv storage.KV, bus *eventbus.Bus) *Processor {
	p := &Processor{
		kv:    kv,
		bus:   bus,
		tasks: make(chan Task, taskQueueCapacity),
		done:  make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Submit enqueues task for asynchronous processing. A full queue drops
// the task with a logged warning, matching spec §7's "local drop,
// counted" policy for non-critical, best-effort application data.
func (p *Processor) Submit(task Task) {
	select {
	case p.tasks <- task:
	default:
		log.Warn("appdata: task queue full, dropping task", "command", task.Command, "addr", task.Address.Hex())
	}
}

// Close stops the worker and waits for it to drain its current task.
func (p *Processor) Close() {
	close(p.done)
	p.wg.Wait()
}

func (p *Processor) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case task := <-p.tasks:
			if err := p.apply(task); err != nil {
				log.Error("appdata: task failed", "command", task.Command, "addr", task.Address.Hex(), "err", err)
			}
		}
	}
}

func (p *Processor) apply(task Task) error {
	switch task.Command {
	case CommandSet:
		return p.applySet(task)
	case CommandAppend:
		return p.applyAppend(task)
	default:
		return ErrUnknownCommand
	}
}

// applySet overwrites the stored value at (address, key) with the raw
// task value, per spec.md's resolution of the Open Question.
func (p *Processor) applySet(task Task) error {
	key := storage.DataKey(task.Address[:], task.Key)
	if err := p.kv.Put(key, task.Value); err != nil {
		return err
	}
	p.emit(task, task.Value)
	return nil
}

// applyAppend decodes task.Value as a single JSON string-map, appends it
// to whatever JSON array is already stored at (address, key) (treating a
// missing or undecodable existing value as an empty array), and stores
// the re-encoded array.
func (p *Processor) applyAppend(task Task) error {
	var entry map[string]string
	if err := json.Unmarshal(task.Value, &entry); err != nil {
		return ErrAppendNotJSONMap
	}

	var arr []map[string]string
	if existing, err := p.kv.Get(storage.DataKey(task.Address[:], task.Key)); err == nil {
		_ = json.Unmarshal(existing, &arr) // corrupt/foreign value -> start fresh
	}
	arr = append(arr, entry)

	encoded, err := json.Marshal(arr)
	if err != nil {
		return err
	}

	key := storage.DataKey(task.Address[:], task.Key)
	if err := p.kv.Put(key, encoded); err != nil {
		return err
	}
	p.emit(task, encoded)
	return nil
}

// descriptor is the small JSON envelope carried in Transaction.Opt: spec §3
// reserves opt/state as "opaque byte fields reserved for application-level
// data tasks" without prescribing their internal layout, so Norn encodes
// the command and key in Opt and leaves State to carry the raw value —
// keeping the two fee/signature-adjacent byte fields distinct from the
// larger Data payload used by EVM calls.
type descriptor struct {
	Command Command `json:"cmd"`
	Key     []byte  `json:"key"`
}

// TaskFromTransaction extracts a data-processor Task from tx, if tx carries
// one. A transaction with an empty Opt field carries no application-data
// mutation and ok is false.
func TaskFromTransaction(tx *types.Transaction, height uint64) (task Task, ok bool, err error) {
	if len(tx.Opt) == 0 {
		return Task{}, false, nil
	}
	var d descriptor
	if err := json.Unmarshal(tx.Opt, &d); err != nil {
		return Task{}, false, err
	}
	if d.Command != CommandSet && d.Command != CommandAppend {
		return Task{}, false, ErrUnknownCommand
	}
	return Task{
		Command: d.Command,
		TxHash:  tx.Hash,
		Height:  height,
		Address: tx.Sender,
		Key:     d.Key,
		Value:   tx.State,
	}, true, nil
}

func (p *Processor) emit(task Task, storedValue []byte) {
	if p.bus == nil {
		return
	}
	p.bus.PostData(eventbus.DataEvent{
		TxHash:  task.TxHash,
		Height:  task.Height,
		Address: task.Address,
		Key:     task.Key,
		Value:   storedValue,
	})
}
