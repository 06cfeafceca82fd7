// Package metrics defines all Prometheus metrics for crabbletalkd.
// All metrics use the "crabbletalk_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crabbletalk"

// --- Frame metrics ---

var (
	// FramesIngested counts Ethernet frames handed to the driver, by
	// ethertype ("appletalk", "aarp"); other ethertypes are counted in
	// FramesDropped instead.
	FramesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_ingested_total",
		Help:      "Total Ethernet frames accepted from the transport, by ethertype.",
	}, []string{"ethertype"})

	// FramesEgressed counts Ethernet frames handed to the transport.
	FramesEgressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_egressed_total",
		Help:      "Total Ethernet frames handed to the transport, by ethertype.",
	}, []string{"ethertype"})

	// FramesDropped counts frames dropped on ingress or egress, by reason.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_dropped_total",
		Help:      "Total frames dropped, by reason (malformed, not_snap, oversize, unknown_ethertype, no_route, no_socket, socket_full).",
	}, []string{"reason"})
)

// --- AARP metrics ---

var (
	// ProbesSent counts AARP Probe frames sent during address acquisition.
	ProbesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aarp_probes_sent_total",
		Help:      "Total AARP Probe frames sent while tentative.",
	})

	// ConflictsObserved counts conflicting Probe/Response frames that
	// restarted address acquisition.
	ConflictsObserved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aarp_conflicts_total",
		Help:      "Total address conflicts observed while tentative.",
	})

	// ResponsesSent counts AARP Response frames sent in reply to a Request
	// or Probe addressed to our accepted address.
	ResponsesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aarp_responses_sent_total",
		Help:      "Total AARP Response frames sent.",
	})

	// AMTEntries is a gauge of distinct address-mapping-table entries.
	AMTEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "amt_entries",
		Help:      "Number of distinct entries currently held in the address mapping table.",
	})

	// LookupTransient counts lookups that exhausted their single attempt
	// without a response.
	LookupTransient = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aarp_lookup_transient_total",
		Help:      "Total address lookups that failed transiently (no AARP response in time).",
	})
)

// --- DDP socket metrics ---

var (
	// SocketsOpen is a gauge of currently open DDP sockets.
	SocketsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ddp_sockets_open",
		Help:      "Number of currently open DDP sockets.",
	})

	// DatagramsDelivered counts DDP datagrams delivered to a local socket.
	DatagramsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ddp_datagrams_delivered_total",
		Help:      "Total DDP datagrams delivered to a local socket.",
	})
)

// --- diagnostic event bus metrics ---

var (
	// EventsPublished counts diagnostic events published to the bus, by type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total diagnostic events published, by event type.",
	}, []string{"event_type"})

	// EventBufferDrops counts events dropped because the bus's own buffer
	// was full. Drops at a full subscriber buffer are logged, not counted.
	EventBufferDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Total diagnostic events dropped due to a full buffer.",
	})
)
