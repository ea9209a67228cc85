package tcp

import "github.com/behrlich/unet/internal/interfaces"

// AcceptFunc is invoked when a listener admits a fresh SYN and creates
// the half-open (SYN_RCVD) connection, handing the caller its Handlers to
// attach before the handshake completes.
type AcceptFunc func(conn *Connection) Handlers

// Listener accepts inbound connections on one local port, queuing
// half-open (SYN_RCVD) connections up to a backlog bound per spec.md
// §4.9's max_syn_backlog.
type Listener struct {
	port    uint16
	backlog int
	accept  AcceptFunc
	pending map[Flow]*Connection

	config   Config
	sender   Sender
	timer    interfaces.Timer
	observer interfaces.Observer
	log      interfaces.Logger

	nextISS func() Seq

	onEstablished func(*Connection)
}

// NewListener creates a listener bound to port. nextISS supplies a
// fresh initial sequence number for each accepted connection.
func NewListener(port uint16, backlog int, config Config, sender Sender, timer interfaces.Timer, observer interfaces.Observer, log interfaces.Logger, nextISS func() Seq, accept AcceptFunc, onEstablished func(*Connection)) *Listener {
	return &Listener{
		port:          port,
		backlog:       backlog,
		accept:        accept,
		pending:       make(map[Flow]*Connection),
		config:        config,
		sender:        sender,
		timer:         timer,
		observer:      observer,
		log:           log,
		nextISS:       nextISS,
		onEstablished: onEstablished,
	}
}

// Port returns the bound local port.
func (ln *Listener) Port() uint16 { return ln.port }

// HandleSegment processes one inbound segment addressed to this
// listener's port that didn't match an existing connection: a fresh SYN
// starts a new half-open connection (subject to the backlog bound); any
// other segment completing an existing half-open handshake advances it
// to ESTABLISHED and hands it off via onEstablished.
func (ln *Listener) HandleSegment(flow Flow, seg Segment) {
	if pc, ok := ln.pending[flow]; ok {
		pc.Receive(seg)
		if pc.State() == Established {
			delete(ln.pending, flow)
			ln.onEstablished(pc)
		} else if pc.State() == Closed {
			delete(ln.pending, flow)
		}
		return
	}

	if seg.Flags&FlagSYN == 0 || seg.Flags&FlagACK != 0 {
		return // not a fresh connection attempt
	}
	if len(ln.pending) >= ln.backlog {
		ln.log.Debugf("tcp: listener on port %d dropping SYN, backlog full", ln.port)
		ln.observer.ObserveFrameDropped("syn-backlog-full")
		return
	}

	h := Handlers{}
	pc := NewPassiveConnection(flow, ln.nextISS(), seg, ln.config, ln.sender, ln.timer, ln.observer, ln.log, h)
	if ln.accept != nil {
		pc.handlers = ln.accept(pc)
	}
	ln.pending[flow] = pc
}

// Close tears down the listener, resetting every half-open connection
// still in its backlog.
func (ln *Listener) Close() {
	for flow, pc := range ln.pending {
		pc.Abort()
		delete(ln.pending, flow)
	}
}
