// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the C13 peer manager's counters. The Prometheus HTTP
// endpoint itself is a non-goal (spec §1); the registry these counters
// attach to is in scope so an embedding process can expose it however it
// likes.
type Metrics struct {
	PeersConnected   prometheus.Gauge
	MessagesSent     prometheus.Counter
	MessagesDropped  *prometheus.CounterVec
	BytesSent        prometheus.Counter
	BytesReceived    prometheus.Counter
	GossipDeduped    prometheus.Counter
}

// NewMetrics registers the peer manager's counters against reg. reg may
// be a fresh prometheus.NewRegistry() or prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PeersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "norn", Subsystem: "network", Name: "peers_connected",
			Help: "Number of currently connected peers.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "norn", Subsystem: "network", Name: "messages_sent_total",
			Help: "Envelopes successfully written to a peer connection.",
		}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "norn", Subsystem: "network", Name: "messages_dropped_total",
			Help: "Envelopes dropped, by reason.",
		}, []string{"reason"}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "norn", Subsystem: "network", Name: "bytes_sent_total",
			Help: "Wire bytes written across all peer connections.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "norn", Subsystem: "network", Name: "bytes_received_total",
			Help: "Wire bytes read across all peer connections.",
		}),
		GossipDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "norn", Subsystem: "network", Name: "gossip_deduped_total",
			Help: "Gossip messages suppressed as already-seen by the dedup filter.",
		}),
	}
	reg.MustRegister(m.PeersConnected, m.MessagesSent, m.MessagesDropped, m.BytesSent, m.BytesReceived, m.GossipDeduped)
	return m
}
