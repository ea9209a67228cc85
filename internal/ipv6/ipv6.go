// Package ipv6 implements just enough of IPv6 neighbor discovery to let
// the stack answer "who has this address" on an IPv6 segment: parsing a
// bare (no extension headers) IPv6 datagram carrying an ICMPv6 Neighbor
// Solicitation, and replying with a solicited Neighbor Advertisement.
// Router solicitation, redirects, prefix options, and any transport atop
// IPv6 are out of scope.
package ipv6

import (
	"encoding/binary"

	"github.com/behrlich/unet/internal/frame"
	"github.com/behrlich/unet/internal/interfaces"
	"github.com/behrlich/unet/internal/link"
)

const (
	HeaderLen = 40
	NextHeaderICMPv6 = 58

	icmpTypeNeighborSolicitation  = 135
	icmpTypeNeighborAdvertisement = 136

	naFlagSolicited = 1 << 30
	naFlagOverride  = 1 << 29

	optSourceLinkLayerAddr = 1
	optTargetLinkLayerAddr = 2
)

// Addr is a 16-byte IPv6 address.
type Addr [16]byte

func (a Addr) IsUnspecified() bool { return a == Addr{} }

// SolicitedNodeMulticast derives the solicited-node multicast address
// ff02::1:ffXX:XXXX for target, the address a Neighbor Solicitation for
// target is sent to.
func SolicitedNodeMulticast(target Addr) Addr {
	var m Addr
	m[0], m[1] = 0xff, 0x02
	m[11] = 0x01
	m[12] = 0xff
	copy(m[13:16], target[13:16])
	return m
}

// Layer answers Neighbor Solicitations for one address on one Ethernet
// interface.
type Layer struct {
	mac  link.Addr
	addr Addr

	iface    *link.Interface
	observer interfaces.Observer
	log      interfaces.Logger
}

// New creates a neighbor-discovery stub bound to addr.
func New(mac link.Addr, addr Addr, observer interfaces.Observer, log interfaces.Logger) *Layer {
	return &Layer{mac: mac, addr: addr, observer: observer, log: log}
}

// RegisterWith wires this layer as iface's IPv6 handler.
func (l *Layer) RegisterWith(iface *link.Interface) {
	l.iface = iface
	iface.RegisterHandler(link.EthertypeIPv6, l.receive)
}

func (l *Layer) receive(src link.Addr, body *frame.Frame) {
	hdr, ok := body.Advance(HeaderLen)
	if !ok {
		l.observer.ObserveFrameDropped("short-ipv6-header")
		return
	}
	if hdr[0]>>4 != 6 {
		l.observer.ObserveFrameDropped("bad-ipv6-version")
		return
	}
	nextHeader := hdr[6]
	var srcAddr, dstAddr Addr
	copy(srcAddr[:], hdr[8:24])
	copy(dstAddr[:], hdr[24:40])

	if nextHeader != NextHeaderICMPv6 {
		return // transport atop IPv6 is not modeled
	}
	l.receiveICMPv6(src, srcAddr, body)
}

func (l *Layer) receiveICMPv6(linkSrc link.Addr, srcAddr Addr, body *frame.Frame) {
	b := body.Bytes()
	if len(b) < 24 {
		l.observer.ObserveFrameDropped("short-icmpv6")
		return
	}
	icmpType := b[0]
	if icmpType != icmpTypeNeighborSolicitation {
		return
	}
	var target Addr
	copy(target[:], b[8:24])
	if target != l.addr {
		return
	}
	l.log.Debugf("ipv6: answering neighbor solicitation for %x from %v", target, linkSrc)
	l.advertise(linkSrc, srcAddr)
}

// advertise sends a solicited, overridable Neighbor Advertisement for
// our own address directly to the requester.
func (l *Layer) advertise(dstMAC link.Addr, dstAddr Addr) {
	f, ok := l.iface.AcquireFrame()
	if !ok {
		l.observer.ObserveFrameDropped("no-buffer")
		return
	}

	icmp := make([]byte, 24+8) // NA header + target LL addr option
	icmp[0] = icmpTypeNeighborAdvertisement
	binary.BigEndian.PutUint32(icmp[4:8], naFlagSolicited|naFlagOverride)
	copy(icmp[8:24], l.addr[:])
	icmp[24] = optTargetLinkLayerAddr
	icmp[25] = 1 // length in units of 8 octets
	copy(icmp[26:32], l.mac[:])

	ip6 := make([]byte, HeaderLen)
	ip6[0] = 0x60
	binary.BigEndian.PutUint16(ip6[4:6], uint16(len(icmp)))
	ip6[6] = NextHeaderICMPv6
	ip6[7] = 255
	copy(ip6[8:24], l.addr[:])
	copy(ip6[24:40], dstAddr[:])

	binary.BigEndian.PutUint16(icmp[2:4], icmpv6Checksum(l.addr, dstAddr, icmp))

	f.SetPayload(append(ip6, icmp...))
	if err := l.iface.Transmit(dstMAC, link.EthertypeIPv6, f); err != nil {
		l.log.Debugf("ipv6: advertisement transmit failed: %v", err)
	}
}

// icmpv6Checksum computes the ICMPv6 checksum over the IPv6 pseudo-header
// (RFC 8200 §8.1) and the message, with the checksum field itself zeroed.
func icmpv6Checksum(src, dst Addr, icmp []byte) uint16 {
	icmp[2], icmp[3] = 0, 0
	pseudo := make([]byte, 40+len(icmp))
	copy(pseudo[0:16], src[:])
	copy(pseudo[16:32], dst[:])
	binary.BigEndian.PutUint32(pseudo[32:36], uint32(len(icmp)))
	pseudo[39] = NextHeaderICMPv6
	copy(pseudo[40:], icmp)

	var sum uint32
	for i := 0; i+1 < len(pseudo); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(pseudo[i : i+2]))
	}
	if len(pseudo)%2 == 1 {
		sum += uint32(pseudo[len(pseudo)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}
