// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package appdata

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/norn-chain/norn/core/types"
	"github.com/norn-chain/norn/storage"
)

func newTestKV(t *testing.T) storage.KV {
	t.Helper()
	kv, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

// waitFor polls until cond returns true or the timeout elapses, since the
// Processor applies tasks on its own background goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestProcessorSetOverwritesRawBytes(t *testing.T) {
	kv := newTestKV(t)
	p := New(kv, nil)
	defer p.Close()

	var addr types.Address
	addr[0] = 0x01

	p.Submit(Task{Command: CommandSet, Address: addr, Key: []byte("k"), Value: []byte("hello")})

	waitFor(t, func() bool {
		v, err := kv.Get(storage.DataKey(addr[:], []byte("k")))
		return err == nil && string(v) == "hello"
	})

	// A second set overwrites rather than appends.
	p.Submit(Task{Command: CommandSet, Address: addr, Key: []byte("k"), Value: []byte("world")})
	waitFor(t, func() bool {
		v, err := kv.Get(storage.DataKey(addr[:], []byte("k")))
		return err == nil && string(v) == "world"
	})
}

func TestProcessorAppendBuildsJSONArray(t *testing.T) {
	kv := newTestKV(t)
	p := New(kv, nil)
	defer p.Close()

	var addr types.Address
	addr[0] = 0x02

	first, err := json.Marshal(map[string]string{"a": "1"})
	require.NoError(t, err)
	second, err := json.Marshal(map[string]string{"b": "2"})
	require.NoError(t, err)

	p.Submit(Task{Command: CommandAppend, Address: addr, Key: []byte("k"), Value: first})
	waitFor(t, func() bool {
		v, err := kv.Get(storage.DataKey(addr[:], []byte("k")))
		if err != nil {
			return false
		}
		var arr []map[string]string
		return json.Unmarshal(v, &arr) == nil && len(arr) == 1
	})

	p.Submit(Task{Command: CommandAppend, Address: addr, Key: []byte("k"), Value: second})
	waitFor(t, func() bool {
		v, err := kv.Get(storage.DataKey(addr[:], []byte("k")))
		if err != nil {
			return false
		}
		var arr []map[string]string
		if json.Unmarshal(v, &arr) != nil || len(arr) != 2 {
			return false
		}
		return arr[0]["a"] == "1" && arr[1]["b"] == "2"
	})
}

func TestProcessorAppendRejectsNonMapValue(t *testing.T) {
	kv := newTestKV(t)
	p := New(kv, nil)
	defer p.Close()

	var addr types.Address
	addr[0] = 0x03

	err := p.apply(Task{Command: CommandAppend, Address: addr, Key: []byte("k"), Value: []byte("not json")})
	require.ErrorIs(t, err, ErrAppendNotJSONMap)
}

func TestApplyRejectsUnknownCommand(t *testing.T) {
	kv := newTestKV(t)
	p := New(kv, nil)
	defer p.Close()

	err := p.apply(Task{Command: "bogus"})
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestTaskFromTransactionExtractsSetCommand(t *testing.T) {
	opt, err := json.Marshal(struct {
		Command Command `json:"cmd"`
		Key     []byte  `json:"key"`
	}{Command: CommandSet, Key: []byte("mykey")})
	require.NoError(t, err)

	tx := &types.Transaction{Opt: opt, State: []byte("value"), Sender: types.Address{0x09}}
	task, ok, err := TaskFromTransaction(tx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, CommandSet, task.Command)
	require.Equal(t, []byte("mykey"), task.Key)
	require.Equal(t, []byte("value"), task.Value)
	require.Equal(t, uint64(42), task.Height)
}

func TestTaskFromTransactionNoOptMeansNoTask(t *testing.T) {
	tx := &types.Transaction{}
	_, ok, err := TaskFromTransaction(tx, 1)
	require.NoError(t, err)
	require.False(t, ok)
}
