// Package unet implements a from-scratch userspace TCP/IP network stack:
// a virtio-net (or TAP, or loopback) driver, Ethernet, ARP, IPv4 with
// fragmentation and routing, a Neighbor-Discovery stub for IPv6, and a
// full TCP engine with RFC 6298 retransmission and RFC 2018 SACK. Stack
// is the single entry point embedders construct and drive; received
// frames are processed on the goroutine the NIC delivers them on, and
// timer work on the goroutine its timer fires on.
package unet

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/behrlich/unet/internal/arp"
	"github.com/behrlich/unet/internal/buffer"
	"github.com/behrlich/unet/internal/frame"
	"github.com/behrlich/unet/internal/interfaces"
	"github.com/behrlich/unet/internal/ipv4"
	"github.com/behrlich/unet/internal/ipv6"
	"github.com/behrlich/unet/internal/link"
	"github.com/behrlich/unet/internal/logging"
	"github.com/behrlich/unet/internal/registry"
	"github.com/behrlich/unet/internal/tcp"
	"github.com/behrlich/unet/internal/timer"
	"github.com/rs/xid"
)

// Stack is one network interface's complete protocol stack: the
// Device analogue, owning the NIC, the Ethernet/ARP/IPv4/IPv6 layers,
// and the connection/listener registry.
type Stack struct {
	config Config

	pool  *buffer.Pool
	link  *link.Interface
	arp   *arp.Table
	ipv4  *ipv4.Layer
	ipv6  *ipv6.Layer
	timer interfaces.Timer
	log   interfaces.Logger
	nic   interfaces.NIC

	metrics  *Metrics
	observer Observer

	conns      *registry.ConnectionTable
	listeners  *registry.ListenerTable
	ephemeral  *registry.EphemeralAllocator
	issCounter atomic.Uint32
	sender     *segmentSender
	tcpConfig  tcp.Config

	traceID xid.ID

	cancel context.CancelFunc
}

// New builds a Stack bound to cfg.Addr/cfg.MAC over nic, with pool
// buffers donated up front. The returned Stack is already receiving:
// Ethernet, ARP, and IPv4/IPv6 handlers are wired and iface.Start has
// been called. New derives a cancellable context from ctx and Close
// cancels it; cancelling ctx itself does not close the Stack, and no
// goroutine of the Stack waits on either context.
func New(ctx context.Context, cfg Config, nic interfaces.NIC) (*Stack, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}
	observer := cfg.Observer
	var metrics *Metrics
	if observer == nil {
		metrics = NewMetrics()
		observer = metrics
	}

	pool := buffer.New(512)
	pool.Donate(512)

	tm := timer.New()
	mac := link.Addr(cfg.MAC)

	iface := link.NewInterface(nic, pool, observer, log)
	arpTable := arp.New(mac, cfg.Addr, tm, iface.Transmit, pool, observer, log)
	arpTable.RegisterWith(iface)

	ip4 := ipv4.New(cfg.Addr, pool, arpTable, tm, observer, log)
	ip4.RegisterWith(iface)

	ip6 := ipv6.New(mac, ipv6.Addr{}, observer, log)
	ip6.RegisterWith(iface)

	_, cancel := context.WithCancel(ctx)

	s := &Stack{
		config:    cfg,
		pool:      pool,
		link:      iface,
		arp:       arpTable,
		ipv4:      ip4,
		ipv6:      ip6,
		timer:     tm,
		log:       log,
		nic:       nic,
		metrics:   metrics,
		observer:  observer,
		conns:     registry.NewConnectionTable(),
		listeners: registry.NewListenerTable(),
		tcpConfig: tcpConfigFrom(cfg),
		traceID:   xid.New(),
		cancel:    cancel,
	}
	s.ephemeral = registry.NewEphemeralAllocator(s.listeners, s.conns)
	s.sender = &segmentSender{ipv4: ip4}

	ip4.RegisterHandler(ipv4.ProtoTCP, s.receiveTCP)
	iface.Start()

	return s, nil
}

// Close tears the stack down: every pending listener is closed, every
// live connection is aborted, the derived context is cancelled, and
// the underlying NIC is closed. Mirrors the cancel-then-drain-then-
// teardown sequencing of the Device analogue this type replaces.
func (s *Stack) Close() error {
	s.cancel()
	for _, flow := range s.conns.Flows() {
		if conn, ok := s.conns.Lookup(flow); ok {
			conn.Abort()
		}
	}
	for _, port := range s.listeners.Ports() {
		s.CloseListener(port)
	}
	return s.nic.Close()
}

func tcpConfigFrom(cfg Config) tcp.Config {
	d := tcp.DefaultConfig()
	if cfg.WindowSize != 0 {
		d.WindowSize = uint32(cfg.WindowSize)
	}
	if cfg.MSS != 0 {
		d.MSS = cfg.MSS
	}
	if cfg.DelayedACKTimeout != 0 {
		d.DelayedACKTimeout = cfg.DelayedACKTimeout
	}
	if cfg.MSL != 0 {
		d.MSL = cfg.MSL
	}
	if cfg.MaxRetransmissions != 0 {
		d.MaxRetransmissions = cfg.MaxRetransmissions
	}
	if cfg.KeepAliveIdle != 0 {
		d.KeepAliveIdle = cfg.KeepAliveIdle
	}
	if cfg.KeepAliveInterval != 0 {
		d.KeepAliveInterval = cfg.KeepAliveInterval
	}
	if cfg.KeepAliveCount != 0 {
		d.KeepAliveCount = cfg.KeepAliveCount
	}
	d.WindowScale = cfg.WindowScale
	d.TimestampsEnabled = cfg.TimestampsEnabled
	d.SACKEnabled = cfg.SACKEnabled
	d.KeepAliveEnabled = cfg.KeepAliveEnabled
	return d
}

// Addr returns the stack's own IPv4 address.
func (s *Stack) Addr() ipv4.Addr { return s.ipv4.Addr() }

// Router exposes the IPv4 routing table for configuration.
func (s *Stack) Router() *ipv4.Router { return s.ipv4.Router() }

// Metrics returns the stack's built-in metrics collector, or nil if an
// external Observer was supplied instead.
func (s *Stack) Metrics() *Metrics { return s.metrics }

// nextISS draws a fresh initial sequence number. Successive calls step
// forward by a fixed stride of 250000 so sequence spaces of back-to-back
// connections to the same peer don't overlap while any TIME_WAIT segment
// from the previous incarnation could still be in flight.
func (s *Stack) nextISS() tcp.Seq {
	return tcp.Seq(s.issCounter.Add(250000))
}

// Listen begins accepting inbound connections on port. accept is called
// once per SYN the listener admits, when the half-open connection is
// created, to attach its Handlers.
func (s *Stack) Listen(port uint16, backlog int, accept tcp.AcceptFunc) (*tcp.Listener, error) {
	if backlog <= 0 {
		backlog = s.config.MaxSynBacklog
	}
	ln := tcp.NewListener(port, backlog, s.tcpConfig, s.sender, s.timer, s.observer, s.log, s.nextISS, accept, s.onEstablished)
	if err := s.listeners.Insert(port, ln); err != nil {
		return nil, err
	}
	return ln, nil
}

// CloseListener stops accepting new connections on port.
func (s *Stack) CloseListener(port uint16) {
	if ln, ok := s.listeners.Lookup(port); ok {
		ln.Close()
		s.listeners.Remove(port)
	}
}

// Connect actively opens a connection to remoteAddr:remotePort. ctx only
// bounds the call to allocate a port and register the connection; it is
// not retained afterward, so cancelling it does not abort the
// connection once Connect has returned (use Connection.Abort for that).
func (s *Stack) Connect(ctx context.Context, remoteAddr ipv4.Addr, remotePort uint16, h tcp.Handlers) (*tcp.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	localPort, err := s.ephemeral.Allocate(s.ipv4.Addr(), remoteAddr, remotePort)
	if err != nil {
		return nil, err
	}
	flow := tcp.Flow{
		LocalAddr:  s.ipv4.Addr(),
		RemoteAddr: remoteAddr,
		LocalPort:  localPort,
		RemotePort: remotePort,
	}
	conn := tcp.NewActiveConnection(flow, s.nextISS(), s.tcpConfig, s.sender, s.timer, s.observer, s.log, h)
	s.conns.Insert(flow, conn)
	return conn, nil
}

func (s *Stack) onEstablished(conn *tcp.Connection) {
	s.conns.Insert(conn.Flow(), conn)
}

// receiveTCP is wired as the IPv4 layer's TCP protocol handler.
func (s *Stack) receiveTCP(src, dst ipv4.Addr, _ uint8, body *frame.Frame) {
	seg, ok := tcp.ParseSegment(body.Bytes())
	if !ok {
		s.observer.ObserveFrameDropped("short-tcp-segment")
		s.pool.Release(body.Raw())
		return
	}
	if tcp.Checksum(src, dst, body.Bytes()) != 0 {
		s.observer.ObserveFrameDropped("bad-tcp-checksum")
		s.pool.Release(body.Raw())
		return
	}

	flow := tcp.Flow{LocalAddr: dst, RemoteAddr: src, LocalPort: seg.DstPort, RemotePort: seg.SrcPort}
	defer s.pool.Release(body.Raw())

	if conn, ok := s.conns.Lookup(flow); ok {
		conn.Receive(seg)
		if conn.State() == tcp.Closed {
			s.conns.Remove(flow)
		}
		return
	}

	if ln, ok := s.listeners.Lookup(seg.DstPort); ok {
		ln.HandleSegment(flow, seg)
		return
	}

	if seg.Flags&tcp.FlagRST == 0 {
		s.sendRST(flow, seg)
	}
}

func (s *Stack) sendRST(flow tcp.Flow, seg tcp.Segment) {
	ack := seg.Seq.Add(uint32(seg.Len()))
	if seg.Flags&tcp.FlagACK != 0 {
		_ = s.sender.SendSegment(flow, seg.Ack, 0, tcp.FlagRST, 0, nil, nil)
	} else {
		_ = s.sender.SendSegment(flow, 0, ack, tcp.FlagRST|tcp.FlagACK, 0, nil, nil)
	}
}

// segmentSender adapts internal/ipv4.Layer into tcp.Sender: it builds
// the TCP header and pseudo-header checksum around a caller-filled
// payload and hands the result to IPv4 for routing.
type segmentSender struct {
	ipv4 *ipv4.Layer
}

func (s *segmentSender) AcquireFrame() (*frame.Frame, bool) {
	return s.ipv4.AcquireFrame()
}

func (s *segmentSender) SendSegment(flow tcp.Flow, seq, ack tcp.Seq, flags uint8, window uint16, options []byte, payload []byte) error {
	f, ok := s.ipv4.AcquireFrame()
	if !ok {
		return fmt.Errorf("unet: no buffer for outgoing segment")
	}
	if len(payload) > 0 && !f.SetPayload(payload) {
		return fmt.Errorf("unet: payload too large for one segment")
	}
	if !tcp.BuildSegment(f, flow.LocalPort, flow.RemotePort, seq, ack, flags, window, options) {
		return fmt.Errorf("unet: no headroom for tcp header")
	}
	seg := f.Bytes()
	sum := tcp.Checksum(flow.LocalAddr, flow.RemoteAddr, seg)
	binary.BigEndian.PutUint16(seg[16:18], sum)
	return s.ipv4.Transmit(flow.RemoteAddr, ipv4.ProtoTCP, f)
}

var _ tcp.Sender = (*segmentSender)(nil)
