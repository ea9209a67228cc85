package tcp

import "github.com/behrlich/unet/internal/interfaces"

// NewActiveConnection creates a connection in SYN_SENT and transmits the
// initial SYN, per spec.md §4.8.5's connect(remote) operation. iss is
// the caller's chosen initial sequence number (normally drawn from a
// per-stack counter, not a fixed value, to avoid sequence-number reuse
// across successive connections to the same peer).
func NewActiveConnection(flow Flow, iss Seq, config Config, sender Sender, timer interfaces.Timer, observer interfaces.Observer, log interfaces.Logger, h Handlers) *Connection {
	c := newConnection(flow, SynSent, iss, config, sender, timer, observer, log, h)
	opts := BuildSynOptions(config.MSS, config.WindowScale, config.SACKEnabled)
	if err := sender.SendSegment(flow, c.sndNXT, 0, FlagSYN, c.advertisedWindow(), opts, nil); err != nil {
		log.Debugf("tcp: syn send failed for %+v: %v", flow, err)
	}
	c.sndNXT = c.sndNXT.Add(1)
	c.armRTO()
	return c
}

// NewPassiveConnection creates a connection in SYN_RCVD in response to
// an incoming SYN accepted by a Listener, and transmits the SYN-ACK.
func NewPassiveConnection(flow Flow, iss Seq, peerSeg Segment, config Config, sender Sender, timer interfaces.Timer, observer interfaces.Observer, log interfaces.Logger, h Handlers) *Connection {
	c := newConnection(flow, SynRcvd, iss, config, sender, timer, observer, log, h)
	c.irs = peerSeg.Seq
	c.rcvNXT = peerSeg.Seq.Add(1)
	c.negotiateOptions(peerSeg.Options)
	c.sndWND = uint32(peerSeg.Window) << c.peerWndScale
	c.transmitSynAck()
	c.sndNXT = c.sndNXT.Add(1)
	c.armRTO()
	return c
}

func (c *Connection) transmitSynAck() {
	opts := BuildSynOptions(c.config.MSS, c.config.WindowScale, c.sackPermitted)
	if err := c.sender.SendSegment(c.flow, c.sndNXT, c.rcvNXT, FlagSYN|FlagACK, c.advertisedWindow(), opts, nil); err != nil {
		c.log.Debugf("tcp: syn-ack send failed for %+v: %v", c.flow, err)
	}
}
