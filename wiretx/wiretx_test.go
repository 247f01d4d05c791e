// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package wiretx

import (
	"math/big"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/norn-chain/norn/core/types"
)

func TestDecodeLegacyTransaction(t *testing.T) {
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	sender := gethcrypto.PubkeyToAddress(key.PublicKey)

	const chainID = 1337
	signer := gethtypes.NewEIP155Signer(big.NewInt(chainID))

	to := gethcrypto.PubkeyToAddress(key.PublicKey)
	gtx := gethtypes.NewTransaction(7, to, big.NewInt(42), 21000, big.NewInt(1_000_000_000), nil)
	signed, err := gethtypes.SignTx(gtx, signer, key)
	require.NoError(t, err)

	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	tx, err := Decode(raw, chainID, 12345)
	require.NoError(t, err)

	require.Equal(t, types.Address(sender), tx.Sender)
	require.Equal(t, uint64(7), tx.Nonce)
	require.Equal(t, types.LegacyTxType, tx.Type)
	require.Equal(t, uint64(12345), tx.Timestamp)
	require.Equal(t, big.NewInt(42), tx.Value)
	require.NotNil(t, tx.Receiver)
	require.Equal(t, types.Address(to), *tx.Receiver)
}

func TestDecodeDynamicFeeTransaction(t *testing.T) {
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)

	const chainID = 1337
	to := gethcrypto.PubkeyToAddress(key.PublicKey)
	inner := &gethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(chainID),
		Nonce:     3,
		GasTipCap: big.NewInt(2_000_000_000),
		GasFeeCap: big.NewInt(5_000_000_000),
		Gas:       50000,
		To:        &to,
		Value:     big.NewInt(0),
	}
	signer := gethtypes.NewLondonSigner(big.NewInt(chainID))
	signed, err := gethtypes.SignNewTx(key, signer, inner)
	require.NoError(t, err)

	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	tx, err := Decode(raw, chainID, 1)
	require.NoError(t, err)
	require.Equal(t, types.DynamicFeeTxType, tx.Type)
	require.Equal(t, big.NewInt(5_000_000_000), tx.MaxFeePerGas)
	require.Equal(t, big.NewInt(2_000_000_000), tx.MaxPriorityFeePerGas)
}

func TestDecodeRejectsEmptyPayload(t *testing.T) {
	_, err := Decode(nil, 1, 0)
	require.Error(t, err)
}

func TestDecodeRejectsUnsupportedType(t *testing.T) {
	_, err := Decode([]byte{0x03, 0x01, 0x02}, 1, 0)
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDecodeProducesSelfConsistentHash(t *testing.T) {
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	const chainID = 1337
	signer := gethtypes.NewEIP155Signer(big.NewInt(chainID))
	to := gethcrypto.PubkeyToAddress(key.PublicKey)
	gtx := gethtypes.NewTransaction(0, to, big.NewInt(1), 21000, big.NewInt(1), nil)
	signed, err := gethtypes.SignTx(gtx, signer, key)
	require.NoError(t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	tx, err := Decode(raw, chainID, 0)
	require.NoError(t, err)
	require.NoError(t, tx.CheckInvariants())
}
