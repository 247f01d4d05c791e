// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashLength is the expected length of a Hash, in bytes.
const HashLength = 32

// AddressLength is the expected length of an Address, in bytes.
const AddressLength = 20

// PublicKeyLength is the expected length of a compressed SEC1 public key.
const PublicKeyLength = 33

// Hash represents a 32-byte SHA-256 digest.
type Hash [HashLength]byte

// Address represents a 20-byte account address.
type Address [AddressLength]byte

// PublicKey represents a 33-byte compressed SEC1 public key.
type PublicKey [PublicKeyLength]byte

// BytesToHash right-aligns src into a Hash, truncating from the left if
// src is longer than HashLength.
func BytesToHash(src []byte) Hash {
	var h Hash
	if len(src) > HashLength {
		src = src[len(src)-HashLength:]
	}
	copy(h[HashLength-len(src):], src)
	return h
}

// BytesToAddress right-aligns src into an Address.
func BytesToAddress(src []byte) Address {
	var a Address
	if len(src) > AddressLength {
		src = src[len(src)-AddressLength:]
	}
	copy(a[AddressLength-len(src):], src)
	return a
}

func (h Hash) Bytes() []byte { return h[:] }
func (a Address) Bytes() []byte { return a[:] }
func (p PublicKey) Bytes() []byte { return p[:] }

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }
func (p PublicKey) Hex() string { return hex.EncodeToString(p[:]) }

func (h Hash) String() string { return h.Hex() }
func (a Address) String() string { return a.Hex() }
func (p PublicKey) String() string { return p.Hex() }

// HashFromHex parses a lowercase hex string (no 0x prefix) of the exact
// expected length into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := decodeFixedHex(s, HashLength)
	if err != nil {
		return h, fmt.Errorf("hash: %w", err)
	}
	copy(h[:], b)
	return h, nil
}

// AddressFromHex parses a lowercase hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	var a Address
	b, err := decodeFixedHex(s, AddressLength)
	if err != nil {
		return a, fmt.Errorf("address: %w", err)
	}
	copy(a[:], b)
	return a, nil
}

// PublicKeyFromHex parses a lowercase hex string into a PublicKey.
func PublicKeyFromHex(s string) (PublicKey, error) {
	var p PublicKey
	b, err := decodeFixedHex(s, PublicKeyLength)
	if err != nil {
		return p, fmt.Errorf("public key: %w", err)
	}
	copy(p[:], b)
	return p, nil
}

func decodeFixedHex(s string, n int) ([]byte, error) {
	if len(s) != n*2 {
		return nil, fmt.Errorf("invalid hex length %d, want %d", len(s), n*2)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// MarshalJSON encodes Hash as a lowercase hex string without 0x prefix, per
// the wire transaction encoding of spec §6.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := HashFromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Hex())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := AddressFromHex(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (p PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Hex())
}

func (p *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := PublicKeyFromHex(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
