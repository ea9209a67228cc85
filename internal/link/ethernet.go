// Package link implements the Ethernet layer: frame validation, ethertype
// demultiplexing to upstream protocol handlers, and 802.1Q tag handling.
// Handlers register themselves with the Interface at bring-up
// (uni-directional registration) instead of the Interface holding
// back-references into ARP/IPv4/IPv6, per the stack's redesign notes.
package link

import (
	"encoding/binary"
	"fmt"

	"github.com/behrlich/unet/internal/buffer"
	"github.com/behrlich/unet/internal/frame"
	"github.com/behrlich/unet/internal/interfaces"
)

const (
	HeaderLen = 14
	AddrLen   = 6

	VLANTagLen = 4

	EthertypeIPv4 = 0x0800
	EthertypeARP  = 0x0806
	EthertypeIPv6 = 0x86DD
	EthertypeVLAN = 0x8100
)

// Addr is a 6-byte hardware address.
type Addr [AddrLen]byte

func (a Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

func (a Addr) IsBroadcast() bool {
	return a == Broadcast
}

// Broadcast is the link-layer broadcast address.
var Broadcast = Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Handler processes a received frame whose Ethernet header has already
// been consumed; src is the sender's hardware address.
type Handler func(src Addr, body *frame.Frame)

// Interface is the Ethernet layer over one NIC. It owns its own buffer
// pool for received frames, since ownership of every frame passed to a
// Handler transfers to that handler.
type Interface struct {
	nic      interfaces.NIC
	mac      Addr
	pool     *buffer.Pool
	handlers map[uint16]Handler
	observer interfaces.Observer
	log      interfaces.Logger
}

// NewInterface creates an Ethernet interface over nic. Call
// RegisterHandler for each ethertype of interest, then Start.
func NewInterface(nic interfaces.NIC, pool *buffer.Pool, observer interfaces.Observer, log interfaces.Logger) *Interface {
	mac := nic.MAC()
	return &Interface{
		nic:      nic,
		mac:      Addr(mac),
		pool:     pool,
		handlers: make(map[uint16]Handler),
		observer: observer,
		log:      log,
	}
}

// MAC returns the interface's hardware address.
func (i *Interface) MAC() Addr { return i.mac }

// MTU is the NIC's payload budget, not counting the Ethernet header.
func (i *Interface) MTU() int { return i.nic.MTU() }

// RegisterHandler wires an ethertype to its upstream handler. Call
// before Start; concurrent registration after Start is not supported
// since the stack runs single-threaded once started.
func (i *Interface) RegisterHandler(ethertype uint16, h Handler) {
	i.handlers[ethertype] = h
}

// Start begins receiving frames from the NIC.
func (i *Interface) Start() {
	i.nic.SetReceiver(i.receive)
}

func (i *Interface) receive(buf []byte) {
	if len(buf) < HeaderLen {
		i.drop("short-frame")
		return
	}

	raw, ok := i.pool.Acquire()
	if !ok {
		i.drop("no-buffer")
		return
	}
	f := frame.New(raw)
	if !f.SetPayload(buf) {
		i.pool.Release(raw)
		i.drop("oversize-frame")
		return
	}
	i.observer.ObserveFrameReceived(len(buf))

	hdr, _ := f.Advance(HeaderLen)
	var src Addr
	copy(src[:], hdr[AddrLen:2*AddrLen])
	ethertype := binary.BigEndian.Uint16(hdr[2*AddrLen : 2*AddrLen+2])

	// A registered 802.1Q handler receives tagged frames with the tag
	// still in place; otherwise the tag is stripped here.
	if _, vlanHandled := i.handlers[EthertypeVLAN]; ethertype == EthertypeVLAN && !vlanHandled {
		tag, ok := f.Advance(VLANTagLen)
		if !ok {
			i.pool.Release(raw)
			i.drop("short-vlan-tag")
			return
		}
		ethertype = binary.BigEndian.Uint16(tag[2:4])
	}

	h, ok := i.handlers[ethertype]
	if !ok {
		i.pool.Release(raw)
		i.drop("no-handler")
		return
	}
	h(src, f)
}

func (i *Interface) drop(reason string) {
	i.observer.ObserveFrameDropped(reason)
	i.log.Debugf("link: dropped frame: %s", reason)
}

// Transmit builds and sends one untagged Ethernet II frame. f must
// already contain the payload to send with headroom reserved for the
// Ethernet header (i.e. produced by acquiring from this Interface's pool
// or an equivalently-reserved buffer.Pool). Ownership of f's underlying
// buffer transfers to Transmit; the caller must not use f again.
func (i *Interface) Transmit(dst Addr, ethertype uint16, f *frame.Frame) error {
	hdr, ok := f.Prepend(HeaderLen)
	if !ok {
		i.pool.Release(f.Raw())
		return fmt.Errorf("link: no headroom for ethernet header")
	}
	copy(hdr[0:AddrLen], dst[:])
	copy(hdr[AddrLen:2*AddrLen], i.mac[:])
	binary.BigEndian.PutUint16(hdr[2*AddrLen:2*AddrLen+2], ethertype)

	err := i.nic.Transmit(f.Bytes())
	i.pool.Release(f.Raw())
	if err != nil {
		return err
	}
	i.observer.ObserveFrameTransmitted(f.Len())
	return nil
}

// AcquireFrame gets an empty frame from the interface's pool for a layer
// above to fill with a payload before calling Transmit.
func (i *Interface) AcquireFrame() (*frame.Frame, bool) {
	raw, ok := i.pool.Acquire()
	if !ok {
		return nil, false
	}
	return frame.New(raw), true
}
