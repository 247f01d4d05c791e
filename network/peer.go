// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package network implements the C13 peer manager of spec §2: a
// registry of connected peers, block/tx gossip dispatch, and zstd
// frame compression (codec.go). Grounded on the teacher's network
// package (peer dial/accept plumbing around a raw connection) for the
// read/write-pump shape, and on wyf-ACCEPT-eth2030's pkg/rpc
// WSConn (per-connection send channel plus a dedicated pump goroutine,
// ping/pong liveness) for the gorilla/websocket idiom, since the
// teacher itself does not speak WebSocket.
package network

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrEmptyFrame  = errors.New("network: empty frame")
	ErrPeerClosed  = errors.New("network: peer connection closed")
	ErrSendBackpressure = errors.New("network: peer send queue full")
)

const (
	sendQueueCapacity = 256
	pingInterval      = 30 * time.Second
	pongTimeout       = 60 * time.Second
	writeTimeout      = 10 * time.Second
)

// Peer is one connected node, speaking the Envelope protocol of
// message.go over a WebSocket transport.
type Peer struct {
	ID     uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}

	mu          sync.RWMutex
	chainHeight uint64

	closeOnce sync.Once
}

// newPeer wraps an already-established WebSocket connection.
func newPeer(conn *websocket.Conn) *Peer {
	return &Peer{
		ID:     uuid.New(),
		conn:   conn,
		send:   make(chan []byte, sendQueueCapacity),
		closed: make(chan struct{}),
	}
}

// ChainHeight returns the peer's last-reported chain height.
func (p *Peer) ChainHeight() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chainHeight
}

func (p *Peer) setChainHeight(h uint64) {
	p.mu.Lock()
	p.chainHeight = h
	p.mu.Unlock()
}

// enqueue queues frame for writing, dropping it (and reporting backpressure)
// rather than blocking if the peer's send buffer is full, per spec §5's
// bounded-queue backpressure policy.
func (p *Peer) enqueue(frame []byte) error {
	select {
	case p.send <- frame:
		return nil
	case <-p.closed:
		return ErrPeerClosed
	default:
		return ErrSendBackpressure
	}
}

// writePump drains the send queue onto the wire and emits periodic pings,
// until the peer is closed.
func (p *Peer) writePump(onBytes func(n int)) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer p.conn.Close()

	for {
		select {
		case <-p.closed:
			return
		case frame, ok := <-p.send:
			if !ok {
				return
			}
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				p.Close()
				return
			}
			if onBytes != nil {
				onBytes(len(frame))
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.Close()
				return
			}
		}
	}
}

// readPump delivers decoded envelopes to onEnvelope until the connection
// errors or the peer is closed.
func (p *Peer) readPump(onEnvelope func(*Peer, *Envelope), onBytes func(n int)) {
	defer p.Close()
	p.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, frame, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		if onBytes != nil {
			onBytes(len(frame))
		}
		env, err := decodeFrame(frame)
		if err != nil {
			continue
		}
		if env.Kind == KindHandshake {
			var hs HandshakePayload
			if decodeHandshake(env.Payload, &hs) {
				p.setChainHeight(hs.ChainHeight)
			}
		}
		if onEnvelope != nil {
			onEnvelope(p, env)
		}
	}
}

// Close idempotently tears down the peer's connection and send loop.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.conn.Close()
	})
}
