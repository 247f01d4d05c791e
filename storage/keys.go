// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import "encoding/binary"

// Namespace prefixes for the single pebble keyspace, per spec §6's
// record stream: blocks by height, blocks by hash, transactions by
// hash, receipts by tx hash, accounts by address, storage slots by
// (address, key), and chain metadata.
var (
	prefixBlockByHeight = []byte{0x01}
	prefixBlockByHash   = []byte{0x02}
	prefixTxByHash      = []byte{0x03}
	prefixReceiptByHash = []byte{0x04}
	prefixAccount       = []byte{0x05}
	prefixStorageSlot   = []byte{0x06}
	prefixMeta          = []byte{0x07}
	prefixAppData       = []byte{0x08}
)

func BlockByHeightKey(height uint64) []byte {
	return append(append([]byte(nil), prefixBlockByHeight...), encodeUint64(height)...)
}

func BlockByHashKey(hash []byte) []byte {
	return append(append([]byte(nil), prefixBlockByHash...), hash...)
}

func TxKey(hash []byte) []byte {
	return append(append([]byte(nil), prefixTxByHash...), hash...)
}

func ReceiptKey(hash []byte) []byte {
	return append(append([]byte(nil), prefixReceiptByHash...), hash...)
}

func AccountKey(addr []byte) []byte {
	return append(append([]byte(nil), prefixAccount...), addr...)
}

func StorageSlotKey(addr, slot []byte) []byte {
	k := append(append([]byte(nil), prefixStorageSlot...), addr...)
	return append(k, slot...)
}

func MetaKey(name string) []byte {
	return append(append([]byte(nil), prefixMeta...), []byte(name)...)
}

// StorageAddressPrefix returns the prefix under which all of an account's
// storage slots live, for PrefixScan-based iteration and pruning.
func StorageAddressPrefix(addr []byte) []byte {
	return append(append([]byte(nil), prefixStorageSlot...), addr...)
}

// DataKey returns the key under which the appdata package's per-address,
// per-key application-data value is stored (spec §3's data/opt/state
// mutation surface).
func DataKey(addr, key []byte) []byte {
	k := append(append([]byte(nil), prefixAppData...), addr...)
	return append(k, key...)
}

// DataAddressPrefix returns the prefix under which all of an address's
// application-data entries live, for PrefixScan-based iteration.
func DataAddressPrefix(addr []byte) []byte {
	return append(append([]byte(nil), prefixAppData...), addr...)
}

func encodeUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
