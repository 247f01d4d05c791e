// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import "github.com/norn-chain/norn/core/types"

// Kind identifies the payload carried by an Envelope, per spec §4.11's
// gossip/request-response message set.
type Kind uint8

const (
	KindHandshake Kind = iota
	KindNewBlock
	KindNewTx
	KindGetHeaders
	KindHeaders
	KindGetBody
	KindBody
	KindGetBestHeight
	KindBestHeight
)

func (k Kind) String() string {
	switch k {
	case KindHandshake:
		return "handshake"
	case KindNewBlock:
		return "new_block"
	case KindNewTx:
		return "new_tx"
	case KindGetHeaders:
		return "get_headers"
	case KindHeaders:
		return "headers"
	case KindGetBody:
		return "get_body"
	case KindBody:
		return "body"
	case KindGetBestHeight:
		return "get_best_height"
	case KindBestHeight:
		return "best_height"
	default:
		return "unknown"
	}
}

// Envelope is the wire frame exchanged between peers: a kind tag, an
// optional request ID (nonzero for request/response pairs, zero for
// fire-and-forget gossip), and a kind-specific JSON payload.
type Envelope struct {
	Kind      Kind   `json:"kind"`
	RequestID uint32 `json:"request_id,omitempty"`
	Payload   []byte `json:"payload"`
}

// HandshakePayload is exchanged on connect, identifying the peer's
// node ID and current chain tip height.
type HandshakePayload struct {
	NodeID      string `json:"node_id"`
	ChainHeight uint64 `json:"chain_height"`
}

// NewBlockPayload carries a gossiped, newly sealed block.
type NewBlockPayload struct {
	Block types.Block `json:"block"`
}

// NewTxPayload carries a gossiped pending transaction.
type NewTxPayload struct {
	Tx types.Transaction `json:"tx"`
}

// GetHeadersPayload requests a batch of headers starting at FromHeight.
type GetHeadersPayload struct {
	FromHeight uint64 `json:"from_height"`
	Count      int    `json:"count"`
}

// HeadersPayload responds with a contiguous batch of headers.
type HeadersPayload struct {
	Headers []types.Header `json:"headers"`
}

// GetBodyPayload requests the transaction body for a specific header hash.
type GetBodyPayload struct {
	HeaderHash types.Hash `json:"header_hash"`
}

// BodyPayload responds with the requested transaction body.
type BodyPayload struct {
	Transactions []types.Transaction `json:"transactions"`
}

// BestHeightPayload responds with a peer's current chain tip height.
type BestHeightPayload struct {
	Height uint64 `json:"height"`
}
