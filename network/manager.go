// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/norn-chain/norn/core/types"
)

// Manager owns the set of connected peers, dispatches gossip, and
// de-duplicates re-broadcasts, per spec §2 C13. It holds no reference to
// the blockchain/mempool/block-buffer beyond the callback closures wired
// in by the caller, mirroring event bus C14's no-strong-reference
// discipline (spec §9) at the network boundary.
type Manager struct {
	upgrader websocket.Upgrader
	metrics  *Metrics
	dedup    *dedupFilter

	mu    sync.RWMutex
	peers map[uuid.UUID]*Peer

	onBlock func(*types.Block)
	onTx    func(*types.Transaction)
}

// NewManager constructs a Manager. metrics and onBlock/onTx may be nil in
// tests that don't exercise those paths.
func NewManager(metrics *Metrics, onBlock func(*types.Block), onTx func(*types.Transaction)) (*Manager, error) {
	dedup, err := newDedupFilter()
	if err != nil {
		return nil, err
	}
	return &Manager{
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		metrics:  metrics,
		dedup:    dedup,
		peers:    make(map[uuid.UUID]*Peer),
		onBlock:  onBlock,
		onTx:     onTx,
	}, nil
}

// ServeHTTP upgrades an inbound HTTP request to a WebSocket peer
// connection and registers it. The HTTP server that routes requests here
// is itself out of scope (spec §1 Non-goals); this handler is the
// network boundary's one exported entrypoint into it.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("network: websocket upgrade failed", "err", err)
		return
	}
	m.Accept(conn)
}

// Accept registers an already-upgraded connection as a peer and starts its
// read/write pumps.
func (m *Manager) Accept(conn *websocket.Conn) *Peer {
	p := newPeer(conn)

	m.mu.Lock()
	m.peers[p.ID] = p
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.PeersConnected.Inc()
	}

	go p.writePump(m.onBytesSent)
	go p.readPump(m.onEnvelope, m.onBytesReceived)
	go func() {
		<-p.closed
		m.removePeer(p.ID)
	}()
	return p
}

func (m *Manager) removePeer(id uuid.UUID) {
	m.mu.Lock()
	_, existed := m.peers[id]
	delete(m.peers, id)
	m.mu.Unlock()
	if existed && m.metrics != nil {
		m.metrics.PeersConnected.Dec()
	}
}

func (m *Manager) onBytesSent(n int) {
	if m.metrics != nil {
		m.metrics.MessagesSent.Inc()
		m.metrics.BytesSent.Add(float64(n))
	}
}

func (m *Manager) onBytesReceived(n int) {
	if m.metrics != nil {
		m.metrics.BytesReceived.Add(float64(n))
	}
}

// onEnvelope routes an inbound, already-decoded envelope: gossip payloads
// (NewBlock/NewTx) are deduplicated and handed to the caller's callbacks
// and re-broadcast to every other peer; everything else is left for a
// higher-level protocol handler the caller wires separately.
func (m *Manager) onEnvelope(from *Peer, env *Envelope) {
	switch env.Kind {
	case KindNewBlock:
		var payload NewBlockPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		if m.dedup.seen(payload.Block.Header.BlockHash) {
			if m.metrics != nil {
				m.metrics.GossipDeduped.Inc()
			}
			return
		}
		if m.onBlock != nil {
			m.onBlock(&payload.Block)
		}
		m.relay(from, env)
	case KindNewTx:
		var payload NewTxPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		if m.dedup.seen(payload.Tx.Hash) {
			if m.metrics != nil {
				m.metrics.GossipDeduped.Inc()
			}
			return
		}
		if m.onTx != nil {
			m.onTx(&payload.Tx)
		}
		m.relay(from, env)
	}
}

// relay re-broadcasts env to every peer other than its origin.
func (m *Manager) relay(origin *Peer, env *Envelope) {
	frame, err := encodeFrame(env)
	if err != nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, p := range m.peers {
		if id == origin.ID {
			continue
		}
		if err := p.enqueue(frame); err != nil && m.metrics != nil {
			m.metrics.MessagesDropped.WithLabelValues("backpressure").Inc()
		}
	}
}

// BroadcastBlock gossips a self-produced block to every connected peer,
// marking it seen in the dedup filter so an echoed rebroadcast from a
// peer is suppressed.
func (m *Manager) BroadcastBlock(block *types.Block) {
	m.dedup.seen(block.Header.BlockHash)
	m.broadcast(KindNewBlock, NewBlockPayload{Block: *block})
}

// BroadcastTx gossips a newly admitted transaction to every connected peer.
func (m *Manager) BroadcastTx(tx *types.Transaction) {
	m.dedup.seen(tx.Hash)
	m.broadcast(KindNewTx, NewTxPayload{Tx: *tx})
}

func (m *Manager) broadcast(kind Kind, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	env := &Envelope{Kind: kind, Payload: body}
	frame, err := encodeFrame(env)
	if err != nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.peers {
		if err := p.enqueue(frame); err != nil && m.metrics != nil {
			m.metrics.MessagesDropped.WithLabelValues("backpressure").Inc()
		}
	}
}

// PeerCount returns the number of currently connected peers.
func (m *Manager) PeerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}

// BestPeerHeight returns the highest chain height any connected peer has
// reported via handshake.
func (m *Manager) BestPeerHeight() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best uint64
	for _, p := range m.peers {
		if h := p.ChainHeight(); h > best {
			best = h
		}
	}
	return best
}

// Dial connects out to a peer at addr (ws:// or wss://) and registers it.
func (m *Manager) Dial(addr string) (*Peer, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, err
	}
	return m.Accept(conn), nil
}
