// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashHexRoundTrip(t *testing.T) {
	var h Hash
	for i := range h {
		h[i] = byte(i)
	}

	encoded := h.Hex()
	decoded, err := HashFromHex(encoded)
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestHashJSONRoundTrip(t *testing.T) {
	var h Hash
	h[0], h[31] = 0xde, 0xad

	b, err := json.Marshal(h)
	require.NoError(t, err)

	var out Hash
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, h, out)
}

func TestHashFromHexRejectsWrongLength(t *testing.T) {
	_, err := HashFromHex("deadbeef")
	require.Error(t, err)
}

func TestAddressHexRoundTrip(t *testing.T) {
	var a Address
	for i := range a {
		a[i] = byte(20 - i)
	}

	encoded := a.Hex()
	decoded, err := AddressFromHex(encoded)
	require.NoError(t, err)
	require.Equal(t, a, decoded)
}

func TestAddressIsZero(t *testing.T) {
	var a Address
	require.True(t, a.IsZero())
	a[0] = 0x01
	require.False(t, a.IsZero())
}

func TestBytesToHashTruncatesFromLeft(t *testing.T) {
	long := make([]byte, 40)
	for i := range long {
		long[i] = byte(i)
	}
	h := BytesToHash(long)
	require.Equal(t, long[len(long)-HashLength:], h[:])
}

func TestPublicKeyJSONRoundTrip(t *testing.T) {
	var pk PublicKey
	pk[0] = 0x02
	for i := 1; i < len(pk); i++ {
		pk[i] = byte(i)
	}

	b, err := json.Marshal(pk)
	require.NoError(t, err)

	var out PublicKey
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, pk, out)
}
