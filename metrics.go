package unet

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/behrlich/unet/internal/interfaces"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives stack-wide events for metrics collection. Re-exported
// from internal/interfaces so embedders implementing their own collector
// never need to import an internal package.
type Observer = interfaces.Observer

// NoOpObserver discards every event.
type NoOpObserver = interfaces.NoOpObserver

// Metrics tracks operational counters for one Stack. All fields are safe
// for concurrent access; the event loop and any embedder goroutine
// reading a Snapshot never block each other.
type Metrics struct {
	FramesReceived    atomic.Uint64
	FramesTransmitted atomic.Uint64
	FramesDropped     atomic.Uint64

	ARPRequestsRX atomic.Uint64
	ARPRequestsTX atomic.Uint64
	ARPRepliesRX  atomic.Uint64
	ARPRepliesTX  atomic.Uint64

	SegmentsRetransmitted atomic.Uint64
	BytesSacked           atomic.Uint64

	ConnectionsOpened atomic.Uint64
	ConnectionsClosed atomic.Uint64
	ConnectionsReset  atomic.Uint64

	ReassemblyAborted atomic.Uint64

	dropReasonsMu sync.Mutex
	dropReasons   map[string]uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a metrics instance with its start time set to now.
func NewMetrics() *Metrics {
	m := &Metrics{dropReasons: make(map[string]uint64)}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) ObserveFrameReceived(bytes int)    { m.FramesReceived.Add(1) }
func (m *Metrics) ObserveFrameTransmitted(bytes int) { m.FramesTransmitted.Add(1) }

func (m *Metrics) ObserveFrameDropped(reason string) {
	m.FramesDropped.Add(1)
	m.dropReasonsMu.Lock()
	m.dropReasons[reason]++
	m.dropReasonsMu.Unlock()
}

func (m *Metrics) ObserveARPRequest(tx bool) {
	if tx {
		m.ARPRequestsTX.Add(1)
	} else {
		m.ARPRequestsRX.Add(1)
	}
}

func (m *Metrics) ObserveARPReply(tx bool) {
	if tx {
		m.ARPRepliesTX.Add(1)
	} else {
		m.ARPRepliesRX.Add(1)
	}
}

func (m *Metrics) ObserveSegmentRetransmitted() { m.SegmentsRetransmitted.Add(1) }
func (m *Metrics) ObserveBytesSacked(n int)     { m.BytesSacked.Add(uint64(n)) }

func (m *Metrics) ObserveConnectionStateChange(from, to string) {
	switch to {
	case "ESTABLISHED":
		m.ConnectionsOpened.Add(1)
	case "CLOSED":
		m.ConnectionsClosed.Add(1)
	}
	if to == "CLOSED" && from != "TIME_WAIT" && from != "LAST_ACK" && from != "FIN_WAIT_2" {
		m.ConnectionsReset.Add(1)
	}
}

func (m *Metrics) ObserveReassemblyAborted() { m.ReassemblyAborted.Add(1) }

// Stop marks the stack as stopped, freezing uptime calculations.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics suitable for
// logging, JSON encoding, or manual inspection without touching atomics
// directly.
type MetricsSnapshot struct {
	FramesReceived, FramesTransmitted, FramesDropped uint64
	ARPRequestsRX, ARPRequestsTX                      uint64
	ARPRepliesRX, ARPRepliesTX                        uint64
	SegmentsRetransmitted, BytesSacked                uint64
	ConnectionsOpened, ConnectionsClosed, ConnectionsReset uint64
	ReassemblyAborted                                 uint64
	DropReasons                                       map[string]uint64
	UptimeNs                                           uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.dropReasonsMu.Lock()
	reasons := make(map[string]uint64, len(m.dropReasons))
	for k, v := range m.dropReasons {
		reasons[k] = v
	}
	m.dropReasonsMu.Unlock()

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	var uptime uint64
	if stop > 0 {
		uptime = uint64(stop - start)
	} else {
		uptime = uint64(time.Now().UnixNano() - start)
	}

	return MetricsSnapshot{
		FramesReceived:        m.FramesReceived.Load(),
		FramesTransmitted:     m.FramesTransmitted.Load(),
		FramesDropped:         m.FramesDropped.Load(),
		ARPRequestsRX:         m.ARPRequestsRX.Load(),
		ARPRequestsTX:         m.ARPRequestsTX.Load(),
		ARPRepliesRX:          m.ARPRepliesRX.Load(),
		ARPRepliesTX:          m.ARPRepliesTX.Load(),
		SegmentsRetransmitted: m.SegmentsRetransmitted.Load(),
		BytesSacked:           m.BytesSacked.Load(),
		ConnectionsOpened:     m.ConnectionsOpened.Load(),
		ConnectionsClosed:     m.ConnectionsClosed.Load(),
		ConnectionsReset:      m.ConnectionsReset.Load(),
		ReassemblyAborted:     m.ReassemblyAborted.Load(),
		DropReasons:           reasons,
		UptimeNs:              uptime,
	}
}

// Reset zeroes all counters. Useful for tests.
func (m *Metrics) Reset() {
	m.FramesReceived.Store(0)
	m.FramesTransmitted.Store(0)
	m.FramesDropped.Store(0)
	m.ARPRequestsRX.Store(0)
	m.ARPRequestsTX.Store(0)
	m.ARPRepliesRX.Store(0)
	m.ARPRepliesTX.Store(0)
	m.SegmentsRetransmitted.Store(0)
	m.BytesSacked.Store(0)
	m.ConnectionsOpened.Store(0)
	m.ConnectionsClosed.Store(0)
	m.ConnectionsReset.Store(0)
	m.ReassemblyAborted.Store(0)
	m.dropReasonsMu.Lock()
	m.dropReasons = make(map[string]uint64)
	m.dropReasonsMu.Unlock()
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Compile-time interface check.
var _ Observer = (*Metrics)(nil)

// Collector exports Metrics as a prometheus.Collector, the same pattern
// runZeroInc's go-tcpinfo exporter uses for kernel TCPInfo fields: one
// Desc per counter, Collect reads a Snapshot and emits one Metric each.
type Collector struct {
	metrics *Metrics

	framesReceived    *prometheus.Desc
	framesTransmitted *prometheus.Desc
	framesDropped     *prometheus.Desc
	arpRequests       *prometheus.Desc
	arpReplies        *prometheus.Desc
	retransmits       *prometheus.Desc
	bytesSacked       *prometheus.Desc
	connections       *prometheus.Desc
	reassemblyAborted *prometheus.Desc
}

// NewCollector wraps m as a prometheus.Collector.
func NewCollector(m *Metrics) *Collector {
	return &Collector{
		metrics:           m,
		framesReceived:    prometheus.NewDesc("unet_frames_received_total", "Ethernet frames received from the NIC.", nil, nil),
		framesTransmitted: prometheus.NewDesc("unet_frames_transmitted_total", "Ethernet frames transmitted to the NIC.", nil, nil),
		framesDropped:     prometheus.NewDesc("unet_frames_dropped_total", "Frames dropped, labeled by reason.", []string{"reason"}, nil),
		arpRequests:       prometheus.NewDesc("unet_arp_requests_total", "ARP requests, labeled by direction.", []string{"direction"}, nil),
		arpReplies:        prometheus.NewDesc("unet_arp_replies_total", "ARP replies, labeled by direction.", []string{"direction"}, nil),
		retransmits:       prometheus.NewDesc("unet_tcp_segments_retransmitted_total", "TCP segments retransmitted.", nil, nil),
		bytesSacked:       prometheus.NewDesc("unet_tcp_bytes_sacked_total", "Bytes reported via SACK blocks.", nil, nil),
		connections:       prometheus.NewDesc("unet_tcp_connections_total", "TCP connections, labeled by outcome.", []string{"outcome"}, nil),
		reassemblyAborted: prometheus.NewDesc("unet_ipv4_reassembly_aborted_total", "IPv4 fragment reassemblies aborted.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.framesReceived
	ch <- c.framesTransmitted
	ch <- c.framesDropped
	ch <- c.arpRequests
	ch <- c.arpReplies
	ch <- c.retransmits
	ch <- c.bytesSacked
	ch <- c.connections
	ch <- c.reassemblyAborted
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.framesReceived, prometheus.CounterValue, float64(snap.FramesReceived))
	ch <- prometheus.MustNewConstMetric(c.framesTransmitted, prometheus.CounterValue, float64(snap.FramesTransmitted))
	for reason, n := range snap.DropReasons {
		ch <- prometheus.MustNewConstMetric(c.framesDropped, prometheus.CounterValue, float64(n), reason)
	}

	ch <- prometheus.MustNewConstMetric(c.arpRequests, prometheus.CounterValue, float64(snap.ARPRequestsRX), "rx")
	ch <- prometheus.MustNewConstMetric(c.arpRequests, prometheus.CounterValue, float64(snap.ARPRequestsTX), "tx")
	ch <- prometheus.MustNewConstMetric(c.arpReplies, prometheus.CounterValue, float64(snap.ARPRepliesRX), "rx")
	ch <- prometheus.MustNewConstMetric(c.arpReplies, prometheus.CounterValue, float64(snap.ARPRepliesTX), "tx")

	ch <- prometheus.MustNewConstMetric(c.retransmits, prometheus.CounterValue, float64(snap.SegmentsRetransmitted))
	ch <- prometheus.MustNewConstMetric(c.bytesSacked, prometheus.CounterValue, float64(snap.BytesSacked))

	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.CounterValue, float64(snap.ConnectionsOpened), "opened")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.CounterValue, float64(snap.ConnectionsClosed), "closed")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.CounterValue, float64(snap.ConnectionsReset), "reset")

	ch <- prometheus.MustNewConstMetric(c.reassemblyAborted, prometheus.CounterValue, float64(snap.ReassemblyAborted))
}

var _ prometheus.Collector = (*Collector)(nil)
