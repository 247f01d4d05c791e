// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage implements the C1 component of the Norn node: a
// persistent key-value capability backed by cockroachdb/pebble, per
// spec §6. Grounded on the teacher's own pebble.Open/NewIter usage in
// cmd/evm/chaincmd.go and cmd/utils/verify_db/main.go.
package storage

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// KV is the minimal capability interface spec §6 requires of any
// storage backend: get, put, batch_insert, batch_delete, prefix_scan.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	BatchInsert(kvs map[string][]byte) error
	BatchDelete(keys [][]byte) error
	PrefixScan(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// PebbleKV is the pebble-backed KV implementation.
type PebbleKV struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database at dir.
func Open(dir string) (*PebbleKV, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleKV{db: db}, nil
}

func (p *PebbleKV) Get(key []byte) ([]byte, error) {
	v, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	out := append([]byte(nil), v...)
	closer.Close()
	return out, nil
}

func (p *PebbleKV) Put(key, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleKV) Delete(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleKV) BatchInsert(kvs map[string][]byte) error {
	b := p.db.NewBatch()
	defer b.Close()
	for k, v := range kvs {
		if err := b.Set([]byte(k), v, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (p *PebbleKV) BatchDelete(keys [][]byte) error {
	b := p.db.NewBatch()
	defer b.Close()
	for _, k := range keys {
		if err := b.Delete(k, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// PrefixScan calls fn for every key with the given prefix, in key order,
// stopping early if fn returns an error.
func (p *PebbleKV) PrefixScan(prefix []byte, fn func(key, value []byte) error) error {
	upper := upperBound(prefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(append([]byte(nil), iter.Key()...), append([]byte(nil), iter.Value()...)); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (p *PebbleKV) Close() error {
	return p.db.Close()
}

// upperBound computes the smallest key greater than every key sharing
// prefix, by incrementing the last non-0xff byte, matching the teacher's
// inline prefix-bound construction in cmd/evm/chaincmd.go.
func upperBound(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] == 0xff {
			out = out[:i]
			continue
		}
		out[i]++
		return out
	}
	return nil
}
