// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math/big"
	"os"

	"github.com/norn-chain/norn/core/types"
)

// RecordKind discriminates a WAL entry, per spec §6's record stream.
type RecordKind uint8

const (
	RecordTxBegin RecordKind = iota
	RecordTxCommit
	RecordTxRollback
	RecordCreateAccount
	RecordUpdateAccount
	RecordDeleteAccount
	RecordWriteStorage
	RecordDeleteStorage
	RecordCheckpoint
)

// Record is one length-prefixed WAL entry. Not every field applies to
// every Kind; see the constructors below.
type Record struct {
	Kind RecordKind

	TxID uint64 // TxBegin/TxCommit/TxRollback

	Address types.Address          // Create/Update/DeleteAccount, Write/DeleteStorage
	Balance *big.Int               // Create/UpdateAccount
	Nonce   uint64                 // Create/UpdateAccount
	Key     types.Hash             // Write/DeleteStorage
	Value   types.Hash             // WriteStorage

	Block uint64    // Checkpoint
	Hash  types.Hash // Checkpoint
}

// RecoveryStatus is the tri-state result of replaying a WAL on startup,
// per spec §6: Clean | Recovered{entries, checkpoint} | Failed{reason}.
type RecoveryStatus struct {
	Clean      bool
	Recovered  bool
	Entries    int
	Checkpoint uint64
	FailReason string
}

// Writer appends length-prefixed Records to a single append-only file,
// grounded on the teacher's own segment-writer idiom in
// core/rawdb/freezer_table.go (length-prefixed, fsync-on-write records).
// Every exported method is safe to call only from the single writer
// goroutine that owns the state manager's write path; the WAL itself
// does no internal locking, per spec §5's "no lock held across async
// I/O" guidance — callers serialize access.
type Writer struct {
	f *os.File
	w *bufio.Writer
}

// OpenWriter opens (creating if absent) the WAL file at path for
// appending.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes rec into the writer's in-memory buffer; it reaches the
// file only on Sync, Close or Truncate, and is fsynced only by Sync or
// Close. Callers that need durability before acknowledging a commit
// should call Sync explicitly (mirroring pebble's own Sync-write
// option used elsewhere in this package).
func (w *Writer) Append(rec Record) error {
	buf := encodeRecord(rec)
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(buf)))
	if _, err := w.w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := w.w.Write(buf)
	return err
}

// Sync flushes buffered writes and fsyncs the underlying file.
func (w *Writer) Sync() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.f.Sync()
}

// Close flushes, syncs, and closes the WAL file.
func (w *Writer) Close() error {
	if err := w.Sync(); err != nil {
		return err
	}
	return w.f.Close()
}

// Truncate resets the WAL to empty, used after a checkpoint has been
// durably applied to the KV store and the preceding log segment is no
// longer needed for recovery.
func (w *Writer) Truncate() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if err := w.f.Truncate(0); err != nil {
		return err
	}
	_, err := w.f.Seek(0, io.SeekStart)
	return err
}

// Recover replays the WAL file at path in order, per spec §6: records
// belonging to a committed transaction are applied via apply; records
// belonging to a transaction that never reached TxCommit (or that saw
// TxRollback) are discarded; non-transactional records (Checkpoint) are
// applied directly. A truncated final record (a crash mid-append) is
// treated as the log's natural end, not a failure.
func Recover(path string, apply func(Record) error) (RecoveryStatus, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return RecoveryStatus{Clean: true}, nil
	}
	if err != nil {
		return RecoveryStatus{}, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	pending := make(map[uint64][]Record)
	var lastCheckpoint uint64
	entries := 0

	for {
		rec, err := readRecord(r)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return RecoveryStatus{FailReason: err.Error()}, nil
		}
		entries++

		switch rec.Kind {
		case RecordTxBegin:
			pending[rec.TxID] = nil
		case RecordTxCommit:
			for _, pr := range pending[rec.TxID] {
				if applyErr := apply(pr); applyErr != nil {
					return RecoveryStatus{FailReason: applyErr.Error()}, nil
				}
			}
			delete(pending, rec.TxID)
		case RecordTxRollback:
			delete(pending, rec.TxID)
		case RecordCheckpoint:
			lastCheckpoint = rec.Block
			if err := apply(rec); err != nil {
				return RecoveryStatus{FailReason: err.Error()}, nil
			}
		default:
			if txID, ok := inferTxID(pending, rec); ok {
				pending[txID] = append(pending[txID], rec)
			} else if err := apply(rec); err != nil {
				return RecoveryStatus{FailReason: err.Error()}, nil
			}
		}
	}

	if entries == 0 {
		return RecoveryStatus{Clean: true}, nil
	}
	return RecoveryStatus{Recovered: true, Entries: entries, Checkpoint: lastCheckpoint}, nil
}

// inferTxID attaches a mutation record to the most recently begun,
// still-open transaction, matching the teacher-style single-writer
// assumption: the WAL is append-only from one goroutine, so mutation
// records always belong to whichever TxBegin most recently opened with
// no matching commit/rollback yet.
func inferTxID(pending map[uint64][]Record, _ Record) (uint64, bool) {
	var openID uint64
	found := false
	for id := range pending {
		if !found || id > openID {
			openID = id
			found = true
		}
	}
	return openID, found
}

func encodeRecord(rec Record) []byte {
	buf := make([]byte, 0, 96)
	buf = append(buf, byte(rec.Kind))
	switch rec.Kind {
	case RecordTxBegin, RecordTxCommit, RecordTxRollback:
		buf = appendUint64(buf, rec.TxID)
	case RecordCreateAccount, RecordUpdateAccount:
		buf = append(buf, rec.Address[:]...)
		buf = appendUint64(buf, rec.Nonce)
		bal := rec.Balance
		if bal == nil {
			bal = new(big.Int)
		}
		balBytes := bal.Bytes()
		buf = append(buf, byte(len(balBytes)>>8), byte(len(balBytes)))
		buf = append(buf, balBytes...)
	case RecordDeleteAccount:
		buf = append(buf, rec.Address[:]...)
	case RecordWriteStorage:
		buf = append(buf, rec.Address[:]...)
		buf = append(buf, rec.Key[:]...)
		buf = append(buf, rec.Value[:]...)
	case RecordDeleteStorage:
		buf = append(buf, rec.Address[:]...)
		buf = append(buf, rec.Key[:]...)
	case RecordCheckpoint:
		buf = appendUint64(buf, rec.Block)
		buf = append(buf, rec.Hash[:]...)
	}
	return buf
}

func readRecord(r *bufio.Reader) (Record, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Record{}, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Record{}, io.ErrUnexpectedEOF
	}
	return decodeRecord(buf)
}

func decodeRecord(buf []byte) (Record, error) {
	if len(buf) < 1 {
		return Record{}, errors.New("storage: truncated wal record")
	}
	rec := Record{Kind: RecordKind(buf[0])}
	rest := buf[1:]

	switch rec.Kind {
	case RecordTxBegin, RecordTxCommit, RecordTxRollback:
		if len(rest) < 8 {
			return Record{}, errors.New("storage: truncated wal tx record")
		}
		rec.TxID = binary.BigEndian.Uint64(rest)
	case RecordCreateAccount, RecordUpdateAccount:
		if len(rest) < types.AddressLength+8+2 {
			return Record{}, errors.New("storage: truncated wal account record")
		}
		copy(rec.Address[:], rest[:types.AddressLength])
		rest = rest[types.AddressLength:]
		rec.Nonce = binary.BigEndian.Uint64(rest)
		rest = rest[8:]
		balLen := int(rest[0])<<8 | int(rest[1])
		rest = rest[2:]
		if len(rest) < balLen {
			return Record{}, errors.New("storage: truncated wal balance")
		}
		rec.Balance = new(big.Int).SetBytes(rest[:balLen])
	case RecordDeleteAccount:
		if len(rest) < types.AddressLength {
			return Record{}, errors.New("storage: truncated wal delete-account record")
		}
		copy(rec.Address[:], rest[:types.AddressLength])
	case RecordWriteStorage:
		if len(rest) < types.AddressLength+types.HashLength*2 {
			return Record{}, errors.New("storage: truncated wal storage record")
		}
		copy(rec.Address[:], rest[:types.AddressLength])
		rest = rest[types.AddressLength:]
		copy(rec.Key[:], rest[:types.HashLength])
		rest = rest[types.HashLength:]
		copy(rec.Value[:], rest[:types.HashLength])
	case RecordDeleteStorage:
		if len(rest) < types.AddressLength+types.HashLength {
			return Record{}, errors.New("storage: truncated wal delete-storage record")
		}
		copy(rec.Address[:], rest[:types.AddressLength])
		rest = rest[types.AddressLength:]
		copy(rec.Key[:], rest[:types.HashLength])
	case RecordCheckpoint:
		if len(rest) < 8+types.HashLength {
			return Record{}, errors.New("storage: truncated wal checkpoint record")
		}
		rec.Block = binary.BigEndian.Uint64(rest)
		rest = rest[8:]
		copy(rec.Hash[:], rest[:types.HashLength])
	}
	return rec, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}
