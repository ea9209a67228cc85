// Package ipv4 implements IPv4 header parse/emit with checksum, bounded
// fragment reassembly, and longest-prefix-match routing. Outgoing
// datagrams are handed to an arp.Table-shaped NextHopResolver to resolve
// the next hop's hardware address before transmission.
package ipv4

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/behrlich/unet/internal/arp"
	"github.com/behrlich/unet/internal/buffer"
	"github.com/behrlich/unet/internal/constants"
	"github.com/behrlich/unet/internal/frame"
	"github.com/behrlich/unet/internal/interfaces"
	"github.com/behrlich/unet/internal/link"
)

const (
	HeaderLen = 20

	ProtoICMP = 1
	ProtoTCP  = 6
	ProtoUDP  = 17

	flagDF         = 0x4000
	flagMF         = 0x2000
	fragOffsetMask = 0x1FFF
)

// Addr is a 4-byte IPv4 address, the same representation arp.Table keys
// its cache with.
type Addr = arp.IPv4

// Handler processes one reassembled (or unfragmented) IPv4 payload.
type Handler func(src, dst Addr, proto uint8, body *frame.Frame)

// NextHopResolver resolves an IPv4 address to a hardware address and
// transmits f, queuing it if resolution is pending. Implemented by
// *arp.Table.
type NextHopResolver interface {
	Resolve(target Addr, f *frame.Frame)
}

// Layer is the IPv4 protocol layer for one interface.
type Layer struct {
	addr Addr

	pool     *buffer.Pool
	resolver NextHopResolver
	router   *Router
	reasm    *Reassembler

	handlers map[uint8]Handler
	observer interfaces.Observer
	log      interfaces.Logger
	timer    interfaces.Timer

	nextID atomic.Uint32
}

// New creates an IPv4 layer bound to addr, using resolver for egress ARP
// resolution and timer to expire incomplete fragment reassemblies.
func New(addr Addr, pool *buffer.Pool, resolver NextHopResolver, timer interfaces.Timer, observer interfaces.Observer, log interfaces.Logger) *Layer {
	return &Layer{
		addr:     addr,
		pool:     pool,
		resolver: resolver,
		router:   NewRouter(),
		reasm:    NewReassembler(),
		handlers: make(map[uint8]Handler),
		observer: observer,
		log:      log,
		timer:    timer,
	}
}

// Addr returns this layer's own address.
func (l *Layer) Addr() Addr { return l.addr }

// Router exposes the routing table for configuration.
func (l *Layer) Router() *Router { return l.router }

// RegisterHandler wires a protocol number (ProtoTCP, ProtoUDP, ...) to
// its upstream handler.
func (l *Layer) RegisterHandler(proto uint8, h Handler) {
	l.handlers[proto] = h
}

// RegisterWith wires this layer as the Ethernet interface's IPv4
// handler.
func (l *Layer) RegisterWith(iface *link.Interface) {
	iface.RegisterHandler(link.EthertypeIPv4, l.receive)
}

func (l *Layer) receive(_ link.Addr, body *frame.Frame) {
	hdr, ok := body.Advance(HeaderLen)
	if !ok {
		l.drop("short-ipv4-header")
		return
	}
	if hdr[0]>>4 != 4 {
		l.drop("bad-version")
		return
	}
	ihl := int(hdr[0]&0x0F) * 4
	if ihl > HeaderLen {
		// Options present: consume and discard them (not modeled).
		if _, ok := body.Advance(ihl - HeaderLen); !ok {
			l.drop("short-ip-options")
			return
		}
	}

	totalLen := int(binary.BigEndian.Uint16(hdr[2:4]))
	id := binary.BigEndian.Uint16(hdr[4:6])
	flagsFrag := binary.BigEndian.Uint16(hdr[6:8])
	proto := hdr[9]
	checksum := binary.BigEndian.Uint16(hdr[10:12])
	var src, dst Addr
	copy(src[:], hdr[12:16])
	copy(dst[:], hdr[16:20])

	if Checksum(hdr) != 0 {
		_ = checksum // computed for documentation; Checksum() already verifies
		l.drop("bad-checksum")
		return
	}

	payloadLen := totalLen - ihl
	body.Truncate(payloadLen)

	mf := flagsFrag&flagMF != 0
	fragOffset := int(flagsFrag&fragOffsetMask) * 8

	if mf || fragOffset != 0 {
		key := fragKey{src: src, dst: dst, proto: proto, id: id}
		isFirst := !l.reasm.Pending(key)
		complete, payload := l.reasm.Insert(key, fragOffset, mf, body, l.pool)
		if !complete {
			if isFirst {
				l.timer.After(constants.ReassemblyTTL, func() {
					if l.reasm.Expire(key) {
						l.observer.ObserveReassemblyAborted()
						l.log.Debugf("ipv4: reassembly timed out for %v", key)
					}
				})
			}
			return
		}
		body = payload
	}

	h, ok := l.handlers[proto]
	if !ok {
		l.pool.Release(body.Raw())
		l.drop("no-protocol-handler")
		return
	}
	h(src, dst, proto, body)
}

func (l *Layer) drop(reason string) {
	l.observer.ObserveFrameDropped(reason)
	l.log.Debugf("ipv4: dropped: %s", reason)
}

// AcquireFrame gets an empty frame with headroom reserved for the IPv4
// header (and whatever headers an upper layer prepends before it).
func (l *Layer) AcquireFrame() (*frame.Frame, bool) {
	raw, ok := l.pool.Acquire()
	if !ok {
		return nil, false
	}
	return frame.New(raw), true
}

// Transmit builds an IPv4 header around f's current payload and resolves
// + sends it via the next hop's ARP entry. Ownership of f transfers in.
func (l *Layer) Transmit(dst Addr, proto uint8, f *frame.Frame) error {
	payloadLen := f.Len()
	hdr, ok := f.Prepend(HeaderLen)
	if !ok {
		l.pool.Release(f.Raw())
		return fmt.Errorf("ipv4: no headroom for header")
	}

	hdr[0] = 0x45 // version 4, IHL 5 (no options)
	hdr[1] = 0
	binary.BigEndian.PutUint16(hdr[2:4], uint16(HeaderLen+payloadLen))
	binary.BigEndian.PutUint16(hdr[4:6], uint16(l.nextID.Add(1)))
	binary.BigEndian.PutUint16(hdr[6:8], flagDF)
	hdr[8] = 64 // TTL
	hdr[9] = proto
	hdr[10], hdr[11] = 0, 0
	copy(hdr[12:16], l.addr[:])
	copy(hdr[16:20], dst[:])

	sum := Checksum(hdr)
	binary.BigEndian.PutUint16(hdr[10:12], sum)

	nextHop, ok := l.router.Resolve(dst)
	if !ok {
		l.pool.Release(f.Raw())
		l.drop("no-route")
		return fmt.Errorf("ipv4: no route to %v", dst)
	}
	l.resolver.Resolve(nextHop, f)
	return nil
}

// Checksum computes the IPv4 header checksum (RFC 791 §3.1, one's
// complement of the one's complement sum of all 16-bit words), the same
// accumulator structure as the pseudo-header checksum TCP/UDP use.
func Checksum(header []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(header); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(header[i : i+2]))
	}
	if len(header)%2 == 1 {
		sum += uint32(header[len(header)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}
