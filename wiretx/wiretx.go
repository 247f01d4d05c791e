// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wiretx decodes RLP-encoded Ethereum-style transactions into
// Norn's own Transaction type, per spec §6: "RLP-encoded Ethereum-style
// transactions are accepted: byte 0x00..0x7f = typed (0x01=EIP-2930,
// 0x02=EIP-1559); otherwise legacy list; v-value per EIP-155."
//
// Grounded on original_source/crates/rpc/src/rlp_tx.rs, which hand-parses
// each transaction type field-by-field with rlp::Rlp and reconstructs the
// EIP-155 chain ID from v with a "simplified low-s parity" the spec's
// REDESIGN FLAGS section calls out as needing canonical s-value
// normalization. Rather than re-hand-roll that parsing, Norn decodes with
// go-ethereum's own core/types.Transaction (the teacher's type for this
// exact wire format) and recovers the sender with its Signer, whose
// recoverPlain enforces go-ethereum/crypto.ValidateSignatureValues(v, r,
// s, homestead=true) — i.e. canonical low-s — exactly the redesign the
// spec calls for.
package wiretx

import (
	"errors"
	"math/big"

	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/norn-chain/norn/core/types"
)

var (
	// ErrUnsupportedType is returned for a typed transaction outside the
	// 0x01 (EIP-2930) / 0x02 (EIP-1559) range spec §6 names.
	ErrUnsupportedType = errors.New("wiretx: unsupported transaction type")
)

// Decode parses an externally-submitted RLP transaction (faucet/bridge
// ingestion, per spec_full's supplemented-feature note) into a Norn
// Transaction. chainID is the expected EIP-155 chain ID; a mismatch
// between the recovered signer's chain ID and this value is rejected.
// now is used to stamp Timestamp on the resulting Transaction.
//
// The returned Transaction carries no Public/Signature: its sender was
// authenticated via secp256k1 ecrecover against the Ethereum-style
// encoding, a different curve than Norn's native P-256 scheme, so
// crypto.VerifyTransactionSignature does not apply to it. Callers must
// admit it to the mempool via Pool.AddPreVerified rather than Pool.Add.
func Decode(raw []byte, chainID uint64, now uint64) (*types.Transaction, error) {
	if len(raw) == 0 {
		return nil, errors.New("wiretx: empty payload")
	}
	if raw[0] <= 0x7f && raw[0] != 0x01 && raw[0] != 0x02 {
		return nil, ErrUnsupportedType
	}

	var gtx gethtypes.Transaction
	if err := gtx.UnmarshalBinary(raw); err != nil {
		return nil, err
	}

	signer := gethtypes.LatestSignerForChainID(new(big.Int).SetUint64(chainID))
	sender, err := gethtypes.Sender(signer, &gtx)
	if err != nil {
		return nil, err
	}

	tx := &types.Transaction{
		Sender:    types.Address(sender),
		Nonce:     gtx.Nonce(),
		ChainID:   chainID,
		Data:      append([]byte(nil), gtx.Data()...),
		Value:     new(big.Int).Set(gtx.Value()),
		GasLimit:  gtx.Gas(),
		Timestamp: now,
	}
	if to := gtx.To(); to != nil {
		addr := types.Address(*to)
		tx.Receiver = &addr
	}

	switch gtx.Type() {
	case gethtypes.LegacyTxType:
		tx.Type = types.LegacyTxType
		tx.GasPrice = new(big.Int).Set(gtx.GasPrice())
	case gethtypes.AccessListTxType:
		tx.Type = types.AccessListTxType
		tx.GasPrice = new(big.Int).Set(gtx.GasPrice())
		tx.AccessList = convertAccessList(gtx.AccessList())
	case gethtypes.DynamicFeeTxType:
		tx.Type = types.DynamicFeeTxType
		tx.MaxFeePerGas = new(big.Int).Set(gtx.GasFeeCap())
		tx.MaxPriorityFeePerGas = new(big.Int).Set(gtx.GasTipCap())
		tx.AccessList = convertAccessList(gtx.AccessList())
	default:
		return nil, ErrUnsupportedType
	}

	hash, err := tx.ComputeHash()
	if err != nil {
		return nil, err
	}
	tx.Hash = hash
	return tx, nil
}

func convertAccessList(list gethtypes.AccessList) types.AccessList {
	if len(list) == 0 {
		return nil
	}
	out := make(types.AccessList, len(list))
	for i, entry := range list {
		keys := make([]types.Hash, len(entry.StorageKeys))
		for j, k := range entry.StorageKeys {
			keys[j] = types.Hash(k)
		}
		out[i] = types.AccessTuple{Address: types.Address(entry.Address), StorageKeys: keys}
	}
	return out
}
