// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package eventbus implements the C14 component of the Norn node: a
// broadcast of NewBlock / NewTx / Finalized / Reorg notifications, per
// spec §2 and §9 ("Event bus holds no strong reference to publishers").
//
// Grounded on the teacher's core/txpool/txpool.go, which embeds
// go-ethereum's event.Feed/event.Subscription/event.SubscriptionScope
// directly (reorgFeed event.Feed, SubscribeTransactions returning
// event.Subscription, subs event.SubscriptionScope to unsubscribe all on
// shutdown) rather than hand-rolling a pub/sub broadcaster.
package eventbus

import "github.com/ethereum/go-ethereum/event"

// NewBlockEvent is posted whenever a new block is submitted to the
// block buffer (self-produced or gossiped), before fork-choice/
// finalization runs.
type NewBlockEvent struct {
	BlockHash [32]byte
	Height    uint64
}

// NewTxEvent is posted whenever a transaction is admitted to the
// mempool.
type NewTxEvent struct {
	TxHash [32]byte
}

// FinalizedEvent is posted whenever the block buffer (§4.1) pops a
// block and hands it to the blockchain for durable application.
type FinalizedEvent struct {
	BlockHash [32]byte
	Height    uint64
}

// ReorgEvent is posted whenever the block buffer's selection at a
// height is replaced by a competing candidate after being previously
// selected (spec §4.1's invalidateAboveLocked path), or the blockchain
// reports a tip change that is not a simple height+1 extension.
type ReorgEvent struct {
	Height      uint64
	OldHash     [32]byte
	NewHash     [32]byte
}

// DataEvent is posted by the appdata package whenever a set/append
// command against the per-address application-data store completes,
// mirroring original_source/crates/core/src/data_processor.rs's
// broadcast Event but routed through the shared bus rather than a
// second, package-private broadcast channel.
type DataEvent struct {
	TxHash  [32]byte
	Height  uint64
	Address [20]byte
	Key     []byte
	Value   []byte
}

// Bus is the process-wide broadcast hub. It holds no strong reference to
// publishers (spec §9): any component may post to it by value, and any
// number of subscribers may listen without the bus needing to know who
// they are.
type Bus struct {
	newBlockFeed  event.Feed
	newTxFeed     event.Feed
	finalizedFeed event.Feed
	reorgFeed     event.Feed
	dataFeed      event.Feed

	scope event.SubscriptionScope
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{}
}

// PostNewBlock broadcasts a NewBlockEvent to every current subscriber.
func (b *Bus) PostNewBlock(ev NewBlockEvent) { b.newBlockFeed.Send(ev) }

// PostNewTx broadcasts a NewTxEvent to every current subscriber.
func (b *Bus) PostNewTx(ev NewTxEvent) { b.newTxFeed.Send(ev) }

// PostFinalized broadcasts a FinalizedEvent to every current subscriber.
func (b *Bus) PostFinalized(ev FinalizedEvent) { b.finalizedFeed.Send(ev) }

// PostReorg broadcasts a ReorgEvent to every current subscriber.
func (b *Bus) PostReorg(ev ReorgEvent) { b.reorgFeed.Send(ev) }

// PostData broadcasts a DataEvent to every current subscriber.
func (b *Bus) PostData(ev DataEvent) { b.dataFeed.Send(ev) }

// SubscribeNewBlock registers ch to receive NewBlockEvents until the
// returned Subscription is unsubscribed (or the bus is closed).
func (b *Bus) SubscribeNewBlock(ch chan<- NewBlockEvent) event.Subscription {
	return b.scope.Track(b.newBlockFeed.Subscribe(ch))
}

// SubscribeNewTx registers ch to receive NewTxEvents.
func (b *Bus) SubscribeNewTx(ch chan<- NewTxEvent) event.Subscription {
	return b.scope.Track(b.newTxFeed.Subscribe(ch))
}

// SubscribeFinalized registers ch to receive FinalizedEvents.
func (b *Bus) SubscribeFinalized(ch chan<- FinalizedEvent) event.Subscription {
	return b.scope.Track(b.finalizedFeed.Subscribe(ch))
}

// SubscribeReorg registers ch to receive ReorgEvents.
func (b *Bus) SubscribeReorg(ch chan<- ReorgEvent) event.Subscription {
	return b.scope.Track(b.reorgFeed.Subscribe(ch))
}

// SubscribeData registers ch to receive DataEvents.
func (b *Bus) SubscribeData(ch chan<- DataEvent) event.Subscription {
	return b.scope.Track(b.dataFeed.Subscribe(ch))
}

// Close unsubscribes every outstanding subscription, mirroring the
// teacher's shutdown path (txpool.Close calls p.subs.Close()). Safe to
// call once during node shutdown.
func (b *Bus) Close() {
	b.scope.Close()
}
