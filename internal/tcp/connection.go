// Package tcp implements the TCP connection state machine: segment
// sequencing, the RFC 793 state transition table, retransmission with
// RFC 6298 RTT estimation, SACK-aware out-of-order reassembly, and the
// connect/close/abort lifecycle. A Connection runs entirely on the
// single event-loop goroutine that owns it; nothing here takes a lock.
package tcp

import (
	"time"

	"github.com/behrlich/unet/internal/constants"
	"github.com/behrlich/unet/internal/frame"
	"github.com/behrlich/unet/internal/interfaces"
)

// Flow identifies one TCP connection by its four-tuple.
type Flow struct {
	LocalAddr, RemoteAddr [4]byte
	LocalPort, RemotePort uint16
}

// Config bundles the per-connection tunables spec.md's external
// interface exposes as overridable defaults.
type Config struct {
	WindowSize          uint32
	WindowScale         uint8
	MSS                 uint16
	DelayedACKTimeout   time.Duration
	MSL                 time.Duration
	TimestampsEnabled   bool
	SACKEnabled         bool
	MaxRetransmissions  int
	KeepAliveEnabled    bool
	KeepAliveIdle       time.Duration
	KeepAliveInterval   time.Duration
	KeepAliveCount      int
}

// DefaultConfig returns the stack-wide defaults from constants.
func DefaultConfig() Config {
	return Config{
		WindowSize:         constants.DefaultWindowSize,
		WindowScale:        constants.DefaultWindowScale,
		MSS:                constants.DefaultMSS,
		DelayedACKTimeout:  constants.DefaultDelayedACKTimeout,
		MSL:                constants.MSL,
		TimestampsEnabled:  constants.DefaultTimestampsEnabled,
		SACKEnabled:        constants.DefaultSACKEnabled,
		MaxRetransmissions: constants.DefaultMaxRetransmissions,
		KeepAliveEnabled:   constants.DefaultKeepAliveEnabled,
		KeepAliveIdle:      constants.DefaultKeepAliveIdle,
		KeepAliveInterval:  constants.DefaultKeepAliveInterval,
		KeepAliveCount:     constants.DefaultKeepAliveCount,
	}
}

// Sender transmits a fully-built TCP segment to the peer. Implemented by
// the stack's IPv4 layer binding (src/dst resolved from the Flow).
type Sender interface {
	SendSegment(flow Flow, seq, ack Seq, flags uint8, window uint16, options []byte, payload []byte) error
	AcquireFrame() (*frame.Frame, bool)
}

// Handlers are the user-supplied callbacks a Connection drives.
type Handlers struct {
	OnConnect    func()
	OnRead       func(data []byte)
	OnWrite      func(n int)
	OnDisconnect func(reason error)
	OnClose      func()
}

// Connection is one TCP connection's full protocol state.
type Connection struct {
	flow   Flow
	state  State
	config Config

	sndUNA Seq
	sndNXT Seq
	sndWND uint32
	iss    Seq

	rcvNXT Seq
	rcvWND uint32
	irs    Seq

	peerWndScale  uint8
	ourWndScale   uint8
	peerMSS       uint16
	sackPermitted bool
	tsEnabled     bool

	writeQ  WriteQueue
	retx    RetransmitQueue
	recvQ   *RecvQueue
	rtt     *RTTEstimator
	cc      *congestionController
	handlers Handlers

	dupAckCount int
	lastAckSeen Seq

	deferredClose bool
	busy          bool

	sender   Sender
	timer    interfaces.Timer
	observer interfaces.Observer
	log      interfaces.Logger

	rtoTimer  interfaces.TimerHandle
	delayedAck interfaces.TimerHandle
	timeWait  interfaces.TimerHandle
	persist   interfaces.TimerHandle
	keepalive interfaces.TimerHandle

	persistBackoff   time.Duration
	keepaliveProbes  int
	ackPending       bool
}

// newConnection builds a Connection in the given initial state. iss is
// the caller's chosen initial send sequence number.
func newConnection(flow Flow, state State, iss Seq, config Config, sender Sender, timer interfaces.Timer, observer interfaces.Observer, log interfaces.Logger, h Handlers) *Connection {
	return &Connection{
		flow:        flow,
		state:       state,
		config:      config,
		sndUNA:      iss,
		sndNXT:      iss,
		iss:         iss,
		rcvWND:      config.WindowSize,
		recvQ:       NewRecvQueue(32),
		rtt:         NewRTTEstimator(),
		cc:          newCongestionController(config.MSS),
		handlers:    h,
		sender:      sender,
		timer:       timer,
		observer:    observer,
		log:         log,
		ourWndScale: config.WindowScale,
		tsEnabled:   config.TimestampsEnabled,
	}
}

// State returns the connection's current state.
func (c *Connection) State() State { return c.state }

// Flow returns the connection's four-tuple.
func (c *Connection) Flow() Flow { return c.flow }

// Local returns the local half of the flow tuple: address and port.
func (c *Connection) Local() ([4]byte, uint16) { return c.flow.LocalAddr, c.flow.LocalPort }

// Remote returns the remote half of the flow tuple: address and port.
func (c *Connection) Remote() ([4]byte, uint16) { return c.flow.RemoteAddr, c.flow.RemotePort }

// IsConnected reports whether the connection has completed its
// handshake and not yet started closing.
func (c *Connection) IsConnected() bool { return c.state == Established }

// IsWritable reports whether Write may still be called.
func (c *Connection) IsWritable() bool { return c.state.CanSend() }

// IsReadable reports whether more inbound data may still arrive.
func (c *Connection) IsReadable() bool { return c.state.CanReceiveData() }

// IsClosing reports whether the connection has begun an orderly
// shutdown but has not yet reached CLOSED.
func (c *Connection) IsClosing() bool {
	switch c.state {
	case FinWait1, FinWait2, Closing, TimeWait, CloseWait, LastAck:
		return true
	default:
		return false
	}
}

// IsClosed reports whether the connection has fully torn down.
func (c *Connection) IsClosed() bool { return c.state == Closed }

// OnRead replaces the handler invoked for in-order inbound data.
func (c *Connection) OnRead(fn func(data []byte)) { c.handlers.OnRead = fn }

// OnData is an alias for OnRead, matching embedders who think of the
// callback as "data arrived" rather than "read completed".
func (c *Connection) OnData(fn func(data []byte)) { c.handlers.OnRead = fn }

// OnWrite replaces the handler invoked once a Write's bytes are fully
// acknowledged.
func (c *Connection) OnWrite(fn func(n int)) { c.handlers.OnWrite = fn }

// OnDisconnect replaces the handler invoked when the peer resets the
// connection, the connection times out, or the peer sends a FIN.
func (c *Connection) OnDisconnect(fn func(reason error)) { c.handlers.OnDisconnect = fn }

// OnClose replaces the handler invoked once the connection reaches
// CLOSED and is removed from the registry.
func (c *Connection) OnClose(fn func()) { c.handlers.OnClose = fn }

func (c *Connection) setState(s State) {
	if s == c.state {
		return
	}
	c.observer.ObserveConnectionStateChange(c.state.String(), s.String())
	c.state = s
}

// Write enqueues data for transmission, firing onWrite once every byte
// of this call has been cumulatively acknowledged (spec.md §4.8.3).
func (c *Connection) Write(data []byte, onWrite func(n int)) error {
	if !c.state.CanSend() {
		return ErrInvalidState
	}
	c.writeQ.Write(data, func(n int) {
		if onWrite != nil {
			onWrite(n)
		}
		if c.handlers.OnWrite != nil {
			c.handlers.OnWrite(n)
		}
	})
	c.pump()
	return nil
}

// pump carves and transmits as many outstanding bytes as the send
// window and peer MSS allow. Run-to-completion: called at the end of
// every event (Write, segment receipt, timer fire) so nothing is left
// unsent when room exists.
func (c *Connection) pump() {
	if c.busy {
		return
	}
	c.busy = true
	defer func() { c.busy = false }()

	for c.writeQ.HasUnsent() {
		inFlight := uint32(c.sndNXT.Diff(c.sndUNA))
		window := c.sndWND
		if cw := c.cc.window(); cw < window {
			window = cw
		}
		if inFlight >= window {
			break
		}
		maxLen := int(window - inFlight)
		if c.peerMSS != 0 && maxLen > int(c.peerMSS) {
			maxLen = int(c.peerMSS)
		}
		if maxLen <= 0 {
			break
		}
		payload, ok := c.writeQ.CarveSegment(maxLen)
		if !ok {
			break
		}
		seq := c.sndNXT
		c.sndNXT = c.sndNXT.Add(uint32(len(payload)))
		c.retx.Track(seq, payload, c.now())
		c.transmit(seq, FlagACK, payload)
		c.armRTO()
	}
	c.maybeArmPersist()
}

func (c *Connection) now() time.Time {
	if c.timer != nil {
		return c.timer.Now()
	}
	return time.Now()
}

func (c *Connection) transmit(seq Seq, flags uint8, payload []byte) {
	opts := BuildAckOptions(c.recvQ.SACKBlocks())
	window := c.advertisedWindow()
	if err := c.sender.SendSegment(c.flow, seq, c.rcvNXT, flags, window, opts, payload); err != nil {
		c.log.Debugf("tcp: send failed for %+v: %v", c.flow, err)
		return
	}
	c.ackPending = false
	c.cancelDelayedAck()
}

func (c *Connection) advertisedWindow() uint16 {
	w := c.rcvWND >> c.ourWndScale
	if w > 0xFFFF {
		w = 0xFFFF
	}
	return uint16(w)
}

// Receive runs the seven-step incoming-segment pipeline from spec.md
// §4.8.1: acceptability, RST, SYN, ACK, text, FIN, state transition.
func (c *Connection) Receive(seg Segment) {
	if c.state == Closed {
		return
	}

	if !c.acceptable(seg) {
		if seg.Flags&FlagRST == 0 {
			c.transmit(c.sndNXT, FlagACK, nil)
		}
		return
	}

	if c.state == Established {
		c.rearmKeepalive()
	}

	if seg.Flags&FlagRST != 0 {
		c.handleReset()
		return
	}

	if seg.Flags&FlagSYN != 0 && c.state != SynSent {
		// A SYN inside the window after the connection is synchronized is
		// a sequencing error; RFC 793 says reset and close.
		c.sendReset(seg)
		c.handleReset()
		return
	}

	if seg.Flags&FlagACK == 0 {
		return
	}
	if !c.handleAck(seg) {
		return
	}

	c.handleText(seg)

	if seg.Flags&FlagFIN != 0 {
		c.handleFin(seg)
	}

	c.pump()
	c.scheduleAck()
}

// acceptable implements the step-1 sequence number check. SYN_SENT and
// listen-derived SYN_RCVD handshakes are validated by their dedicated
// handlers instead, since RCV.NXT isn't established yet.
func (c *Connection) acceptable(seg Segment) bool {
	if c.state == SynSent || c.state == Listen {
		return true
	}
	return SegmentAcceptable(seg.Seq, seg.Len(), c.rcvNXT, c.rcvWND)
}

func (c *Connection) handleReset() {
	switch c.state {
	case SynSent:
		c.fail(ErrPeerReset)
	case SynRcvd:
		c.fail(ErrPeerReset)
	default:
		c.setState(Closed)
		if c.handlers.OnDisconnect != nil {
			c.handlers.OnDisconnect(ErrPeerReset)
		}
	}
	c.writeQ.Reset()
	c.cancelTimers()
}

func (c *Connection) fail(err error) {
	c.setState(Closed)
	c.writeQ.Reset()
	c.cancelTimers()
	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect(err)
	}
}

// sendReset answers an out-of-sequence segment with a RST. Per RFC 793
// §3.4, a RST sent in response to a segment that carries an ACK echoes
// that ACK as its sequence number; otherwise the RST's sequence number
// is zero and its ACK field acknowledges the offending segment's data
// (including its SYN/FIN, via seg.Len()).
func (c *Connection) sendReset(seg Segment) {
	if seg.Flags&FlagACK != 0 {
		c.transmit(seg.Ack, FlagRST, nil)
		return
	}
	ack := seg.Seq.Add(uint32(seg.Len()))
	opts := BuildAckOptions(nil)
	_ = c.sender.SendSegment(c.flow, 0, ack, FlagRST|FlagACK, c.advertisedWindow(), opts, nil)
}

// handleAck processes step 4 (ACK field). Returns false if the segment
// should be dropped and processing stopped (e.g. an ACK for data not
// yet sent).
func (c *Connection) handleAck(seg Segment) bool {
	switch c.state {
	case SynSent:
		return c.handleSynSentAck(seg)
	case SynRcvd:
		if seg.Ack == c.sndNXT {
			c.sndUNA = seg.Ack
			c.setState(Established)
			c.rearmKeepalive()
			if c.handlers.OnConnect != nil {
				c.handlers.OnConnect()
			}
		}
		return true
	}

	if seg.Ack.Greater(c.sndNXT) {
		// Acks something not yet sent: ack our current state and drop.
		c.transmit(c.sndNXT, FlagACK, nil)
		return false
	}

	if seg.Ack.GreaterEq(c.sndUNA) {
		delta := int(seg.Ack.Diff(c.sndUNA))
		if delta > 0 {
			c.dupAckCount = 0
			c.cc.onNewAck(seg.Ack, uint32(delta))
			sample, hasSample := c.retx.Ack(seg.Ack, c.now())
			if hasSample {
				c.rtt.Update(sample)
			}
			c.sndUNA = seg.Ack
			c.writeQ.Acknowledge(delta)
			if c.retx.Empty() {
				c.cancelRTO()
			} else {
				c.armRTO()
			}
			if c.deferredClose && c.writeQ.Empty() {
				c.deferredClose = false
				if target, ok := c.state.CloseTarget(); ok {
					c.doClose(target)
				}
			}
		} else if seg.Len() == 0 {
			c.handleDuplicateAck(seg)
		}
	}

	c.sndWND = uint32(seg.Window) << c.peerWndScale
	if c.sndWND > 0 {
		c.cancelPersist()
	}
	for _, blk := range seg.Options.SACK {
		c.retx.MarkSacked(blk.Start, blk.End)
		c.observer.ObserveBytesSacked(int(blk.End.Diff(blk.Start)))
	}

	c.maybeAdvanceCloseState(seg)
	return true
}

func (c *Connection) handleSynSentAck(seg Segment) bool {
	if seg.Flags&FlagSYN == 0 {
		return false
	}
	if seg.Ack != c.sndNXT {
		return false
	}
	c.irs = seg.Seq
	c.rcvNXT = seg.Seq.Add(1)
	c.sndUNA = seg.Ack
	c.negotiateOptions(seg.Options)
	c.sndWND = uint32(seg.Window) << c.peerWndScale
	c.transmit(c.sndNXT, FlagACK, nil)
	c.setState(Established)
	c.rearmKeepalive()
	if c.handlers.OnConnect != nil {
		c.handlers.OnConnect()
	}
	return true
}

func (c *Connection) negotiateOptions(opts Options) {
	if opts.HasMSS {
		c.peerMSS = opts.MSS
	} else {
		c.peerMSS = 536
	}
	if opts.HasWS {
		c.peerWndScale = opts.WndScale
	}
	c.sackPermitted = opts.SACKOK && c.config.SACKEnabled
	c.tsEnabled = opts.HasTS && c.config.TimestampsEnabled
	c.cc.setMSS(c.peerMSS)
}

func (c *Connection) handleDuplicateAck(seg Segment) {
	if seg.Ack != c.lastAckSeen {
		c.lastAckSeen = seg.Ack
		c.dupAckCount = 1
		return
	}
	c.dupAckCount++
	switch {
	case c.dupAckCount == dupAckThreshold:
		c.cc.enterFastRecovery(c.sndNXT)
		c.fastRetransmit()
	case c.dupAckCount > dupAckThreshold && c.cc.inFastRecovery:
		c.cc.inflate()
	}
}

// fastRetransmit resends the oldest unacked segment on the third
// duplicate ACK and enters fast recovery (spec.md §4.8.4), without
// waiting for the RTO.
func (c *Connection) fastRetransmit() {
	seg, ok := c.retx.Oldest()
	if !ok {
		return
	}
	c.retx.MarkRetransmitted(seg.start, c.now())
	c.transmit(seg.start, FlagACK, seg.payload)
	c.observer.ObserveSegmentRetransmitted()
}

func (c *Connection) handleText(seg Segment) {
	if len(seg.Payload) == 0 {
		return
	}
	if !c.state.CanReceiveData() {
		return
	}
	if seg.Seq == c.rcvNXT {
		c.rcvNXT = c.rcvNXT.Add(uint32(len(seg.Payload)))
		if c.handlers.OnRead != nil {
			c.handlers.OnRead(seg.Payload)
		}
		for _, chunk := range c.recvQ.CollectContiguous(&c.rcvNXT) {
			if c.handlers.OnRead != nil {
				c.handlers.OnRead(chunk)
			}
		}
	} else if seg.Seq.Greater(c.rcvNXT) {
		c.recvQ.Insert(seg.Seq, seg.Seq.Add(uint32(len(seg.Payload))), seg.Payload)
	}
	c.ackPending = true
}

func (c *Connection) handleFin(seg Segment) {
	if !c.state.CanReceiveData() && c.state != CloseWait {
		return
	}
	finSeq := seg.Seq.Add(uint32(len(seg.Payload)))
	if finSeq != c.rcvNXT {
		return // FIN beyond a gap we haven't filled yet
	}
	c.rcvNXT = c.rcvNXT.Add(1)
	c.transmit(c.sndNXT, FlagACK, nil)

	switch c.state {
	case Established:
		c.setState(CloseWait)
		if c.handlers.OnDisconnect != nil {
			c.handlers.OnDisconnect(nil)
		}
	case FinWait1:
		c.setState(Closing)
	case FinWait2:
		c.enterTimeWait()
	}
}

func (c *Connection) maybeAdvanceCloseState(seg Segment) {
	switch c.state {
	case FinWait1:
		if c.sndUNA == c.sndNXT {
			c.setState(FinWait2)
		}
	case Closing:
		if c.sndUNA == c.sndNXT {
			c.enterTimeWait()
		}
	case LastAck:
		if c.sndUNA == c.sndNXT {
			c.setState(Closed)
			c.cancelTimers()
			if c.handlers.OnClose != nil {
				c.handlers.OnClose()
			}
		}
	}
}

func (c *Connection) enterTimeWait() {
	c.setState(TimeWait)
	c.cancelRTO()
	if c.timer != nil {
		c.timeWait = c.timer.After(2*c.config.MSL, func() {
			c.setState(Closed)
			if c.handlers.OnClose != nil {
				c.handlers.OnClose()
			}
		})
	}
}

func (c *Connection) scheduleAck() {
	if !c.ackPending || c.timer == nil || c.delayedAck != nil {
		return
	}
	c.delayedAck = c.timer.After(c.config.DelayedACKTimeout, func() {
		c.delayedAck = nil
		if c.ackPending {
			c.transmit(c.sndNXT, FlagACK, nil)
		}
	})
}

func (c *Connection) cancelDelayedAck() {
	if c.delayedAck != nil {
		c.delayedAck.Cancel()
		c.delayedAck = nil
	}
}

func (c *Connection) armRTO() {
	if c.timer == nil || c.rtoTimer != nil {
		return
	}
	c.rtoTimer = c.timer.After(c.rtt.RTO(), c.onRTOFired)
}

func (c *Connection) cancelRTO() {
	if c.rtoTimer != nil {
		c.rtoTimer.Cancel()
		c.rtoTimer = nil
	}
}

func (c *Connection) onRTOFired() {
	c.rtoTimer = nil
	if c.rtt.ConsecutiveTimeouts() >= c.config.MaxRetransmissions {
		c.fail(ErrTimeout)
		return
	}
	seg, ok := c.retx.Oldest()
	if !ok {
		return
	}
	c.cc.onTimeout()
	c.rtt.Backoff()
	c.retx.MarkRetransmitted(seg.start, c.now())
	c.transmit(seg.start, FlagACK, seg.payload)
	c.observer.ObserveSegmentRetransmitted()
	c.rtoTimer = c.timer.After(c.rtt.RTO(), c.onRTOFired)
}

// maybeArmPersist starts the zero-window probe timer when the peer has
// closed its window and data remains unsent, so a lost window-update
// ACK cannot stall the connection forever (spec's persist timer, RFC
// 9293 §3.8.6.1). Backoff doubles each probe up to 60s, mirroring the
// RTO/delayed-ACK/TIME-WAIT timers' use of interfaces.Timer.
func (c *Connection) maybeArmPersist() {
	if c.timer == nil || c.persist != nil {
		return
	}
	if c.sndWND != 0 || !c.writeQ.HasUnsent() {
		return
	}
	if c.persistBackoff == 0 {
		c.persistBackoff = c.rtt.RTO()
	}
	c.persist = c.timer.After(c.persistBackoff, c.onPersistFired)
}

func (c *Connection) cancelPersist() {
	if c.persist != nil {
		c.persist.Cancel()
		c.persist = nil
	}
	c.persistBackoff = 0
}

// onPersistFired sends a one-byte window probe carrying the next unsent
// byte, which RFC 9293 permits even though the advertised window is
// zero: the peer's reply re-states its current window, letting the
// sender discover when it reopens without waiting on a data ACK that
// will never come.
func (c *Connection) onPersistFired() {
	c.persist = nil
	if c.sndWND != 0 || !c.writeQ.HasUnsent() {
		c.persistBackoff = 0
		return
	}
	if payload, ok := c.writeQ.CarveSegment(1); ok {
		seq := c.sndNXT
		c.sndNXT = c.sndNXT.Add(uint32(len(payload)))
		c.retx.Track(seq, payload, c.now())
		c.transmit(seq, FlagACK, payload)
	}
	c.persistBackoff *= 2
	if c.persistBackoff > 60*time.Second {
		c.persistBackoff = 60 * time.Second
	}
	c.persist = c.timer.After(c.persistBackoff, c.onPersistFired)
}

// rearmKeepalive (re)starts the idle timer that, after KeepAliveIdle of
// silence in ESTABLISHED, begins sending keepalive probes (RFC 9293
// §3.8.4). Any inbound segment resets the idle clock, mirroring how the
// RTO timer is re-armed on every new ACK rather than left to fire on
// stale state.
func (c *Connection) rearmKeepalive() {
	if !c.config.KeepAliveEnabled || c.timer == nil {
		return
	}
	if c.keepalive != nil {
		c.keepalive.Cancel()
	}
	c.keepaliveProbes = 0
	c.keepalive = c.timer.After(c.config.KeepAliveIdle, c.onKeepaliveFired)
}

func (c *Connection) cancelKeepalive() {
	if c.keepalive != nil {
		c.keepalive.Cancel()
		c.keepalive = nil
	}
	c.keepaliveProbes = 0
}

// onKeepaliveFired sends a zero-data probe carrying SND.UNA-1, the
// classic keepalive trick that forces a duplicate ACK out of a live
// peer without consuming sequence space the receiver hasn't already
// acknowledged. After KeepAliveCount unanswered probes the connection
// is presumed dead and aborted with ErrKeepaliveTimeout.
func (c *Connection) onKeepaliveFired() {
	c.keepalive = nil
	if c.state != Established {
		return
	}
	c.keepaliveProbes++
	if c.keepaliveProbes > c.config.KeepAliveCount {
		c.fail(ErrKeepaliveTimeout)
		return
	}
	c.transmit(c.sndUNA.Add(^uint32(0)), FlagACK, nil)
	c.keepalive = c.timer.After(c.config.KeepAliveInterval, c.onKeepaliveFired)
}

func (c *Connection) cancelTimers() {
	c.cancelRTO()
	c.cancelDelayedAck()
	c.cancelPersist()
	c.cancelKeepalive()
	if c.timeWait != nil {
		c.timeWait.Cancel()
		c.timeWait = nil
	}
}

// Close begins an active close, per spec.md §4.8.5's state table.
func (c *Connection) Close() error {
	if !c.state.CanClose() {
		return ErrInvalidState
	}
	target, ok := c.state.CloseTarget()
	if !ok {
		return ErrInvalidState
	}
	if c.writeQ.HasUnsent() {
		c.deferredClose = true
		return nil
	}
	c.doClose(target)
	return nil
}

func (c *Connection) doClose(target State) {
	if c.state == Listen || c.state == SynSent {
		c.setState(Closed)
		c.writeQ.Reset()
		if c.handlers.OnClose != nil {
			c.handlers.OnClose()
		}
		return
	}
	c.setState(target)
	c.transmit(c.sndNXT, FlagFIN|FlagACK, nil)
	c.sndNXT = c.sndNXT.Add(1)
}

// Abort immediately resets the connection, per spec.md §4.8.5.
func (c *Connection) Abort() {
	c.transmit(c.sndNXT, FlagRST, nil)
	c.setState(Closed)
	c.writeQ.Reset()
	c.cancelTimers()
	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect(ErrAborted)
	}
}
