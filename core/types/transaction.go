// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// TxType discriminates the fee-market fields carried by a Transaction, per
// spec §3.
type TxType uint8

const (
	// LegacyTxType carries a single gas_price field.
	LegacyTxType TxType = 0
	// AccessListTxType is EIP-2930: legacy pricing plus an access list.
	AccessListTxType TxType = 1
	// DynamicFeeTxType is EIP-1559: max_fee_per_gas/max_priority_fee_per_gas.
	DynamicFeeTxType TxType = 2
)

// AccessTuple is one entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     Address  `json:"address"`
	StorageKeys []Hash   `json:"storage_keys"`
}

// AccessList is an ordered list of access tuples.
type AccessList []AccessTuple

var (
	ErrInvalidGasLimit       = errors.New("types: gas_limit must be > 0")
	ErrInvalidSignature      = errors.New("types: signature does not verify")
	ErrPriorityExceedsMaxFee = errors.New("types: max_priority_fee_per_gas exceeds max_fee_per_gas")
	ErrHashMismatch          = errors.New("types: recomputed hash does not match tx.hash")
)

// Transaction is the canonical Norn transaction of spec §3. Fee fields are
// discriminated by Type; only the fields relevant to that type are
// populated by constructors. Nil fee fields are omitted from the JSON
// encoding and decode back to nil, so JSON round-trips are the identity
// (spec §8 property 4).
type Transaction struct {
	Hash     Hash     `json:"hash"`
	Sender   Address  `json:"sender"`
	Receiver *Address `json:"receiver,omitempty"`
	Nonce    uint64   `json:"nonce"`
	ChainID  uint64   `json:"chain_id"`

	Data  []byte `json:"data"`
	Value *big.Int `json:"value"`
	Event []byte `json:"event,omitempty"`
	Opt   []byte `json:"opt,omitempty"`
	State []byte `json:"state,omitempty"`

	Type TxType `json:"type"`

	GasPrice             *big.Int   `json:"gas_price,omitempty"`
	MaxFeePerGas         *big.Int   `json:"max_fee_per_gas,omitempty"`
	MaxPriorityFeePerGas *big.Int   `json:"max_priority_fee_per_gas,omitempty"`
	AccessList           AccessList `json:"access_list,omitempty"`

	GasLimit  uint64 `json:"gas_limit"`
	Expire    uint64 `json:"expire"`
	Timestamp uint64 `json:"timestamp"`

	BlockHash Hash   `json:"block_hash,omitempty"`
	Height    uint64 `json:"height,omitempty"`
	Index     uint32 `json:"index,omitempty"`

	Public    PublicKey `json:"public"`
	Signature []byte    `json:"signature"`
}

// canonicalBody mirrors Transaction but omits Hash and Signature, matching
// spec §3: "signature over canonical byte serialization of every field
// except hash and signature". RLP gives us a stable, order-preserving
// encoding without hand-rolling one.
type canonicalBody struct {
	Sender               Address
	Receiver             []byte // empty if nil
	Nonce                uint64
	ChainID              uint64
	Data                 []byte
	Value                *big.Int
	Event                []byte
	Opt                  []byte
	State                []byte
	Type                 uint8
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	AccessList           AccessList
	GasLimit             uint64
	Expire               uint64
	Timestamp            uint64
	Public               PublicKey
}

func (tx *Transaction) canonicalBytes() ([]byte, error) {
	body := canonicalBody{
		Sender:               tx.Sender,
		Nonce:                tx.Nonce,
		ChainID:              tx.ChainID,
		Data:                 tx.Data,
		Value:                nonNilBig(tx.Value),
		Event:                tx.Event,
		Opt:                  tx.Opt,
		State:                tx.State,
		Type:                 uint8(tx.Type),
		GasPrice:             nonNilBig(tx.GasPrice),
		MaxFeePerGas:         nonNilBig(tx.MaxFeePerGas),
		MaxPriorityFeePerGas: nonNilBig(tx.MaxPriorityFeePerGas),
		AccessList:           tx.AccessList,
		GasLimit:             tx.GasLimit,
		Expire:               tx.Expire,
		Timestamp:            tx.Timestamp,
		Public:               tx.Public,
	}
	if tx.Receiver != nil {
		body.Receiver = tx.Receiver[:]
	}
	return rlp.EncodeToBytes(&body)
}

func nonNilBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// ComputeHash returns SHA-256(canonical(body)), per spec §3.
func (tx *Transaction) ComputeHash() (Hash, error) {
	b, err := tx.canonicalBytes()
	if err != nil {
		return Hash{}, err
	}
	return sha256.Sum256(b), nil
}

// CheckInvariants validates the structural invariants of spec §3,
// independent of signature verification (which is
// crypto.VerifyTransactionSignature).
func (tx *Transaction) CheckInvariants() error {
	if tx.GasLimit == 0 {
		return ErrInvalidGasLimit
	}
	if tx.Type == DynamicFeeTxType {
		if tx.MaxFeePerGas == nil || tx.MaxPriorityFeePerGas == nil {
			return errors.New("types: eip-1559 tx missing fee fields")
		}
		if tx.MaxPriorityFeePerGas.Cmp(tx.MaxFeePerGas) > 0 {
			return ErrPriorityExceedsMaxFee
		}
	}
	want, err := tx.ComputeHash()
	if err != nil {
		return err
	}
	if want != tx.Hash {
		return ErrHashMismatch
	}
	return nil
}

// EffectiveGasPrice returns the priority used by the mempool at admission
// time (spec §4.2): max_fee_per_gas if set, else gas_price, else zero.
func (tx *Transaction) EffectiveGasPrice() *big.Int {
	if tx.MaxFeePerGas != nil {
		return tx.MaxFeePerGas
	}
	if tx.GasPrice != nil {
		return tx.GasPrice
	}
	return new(big.Int)
}

// IsExpired reports whether the transaction has expired as of now (unix
// seconds). expire == 0 means never expires.
func (tx *Transaction) IsExpired(now uint64) bool {
	return tx.Expire > 0 && tx.Expire < now
}

// IsContractCreation reports whether this transaction has no receiver.
func (tx *Transaction) IsContractCreation() bool {
	return tx.Receiver == nil
}
