package link

import (
	"encoding/binary"
	"fmt"

	"github.com/behrlich/unet/internal/frame"
)

// Interface8021Q wraps a base Interface to demultiplex by VLAN ID into
// per-VID sub-interfaces, the way IncludeOS models ethernet_8021q as a
// sibling type rather than a flag threaded through the base interface.
type Interface8021Q struct {
	base *Interface
	subs map[uint16]*Handler8021Q
}

// Handler8021Q is one VID's set of ethertype handlers, registered
// independently from the untagged interface's own table.
type Handler8021Q struct {
	vid      uint16
	handlers map[uint16]Handler
}

// NewInterface8021Q wraps base, registering itself to intercept
// VLAN-tagged frames before they reach base's own ethertype table.
func NewInterface8021Q(base *Interface) *Interface8021Q {
	v := &Interface8021Q{
		base: base,
		subs: make(map[uint16]*Handler8021Q),
	}
	base.RegisterHandler(EthertypeVLAN, v.receive)
	return v
}

// SubInterface returns (creating if needed) the handler table for vid.
func (v *Interface8021Q) SubInterface(vid uint16) *Handler8021Q {
	sub, ok := v.subs[vid]
	if !ok {
		sub = &Handler8021Q{vid: vid, handlers: make(map[uint16]Handler)}
		v.subs[vid] = sub
	}
	return sub
}

// RegisterHandler wires an ethertype handler for this VID.
func (h *Handler8021Q) RegisterHandler(ethertype uint16, fn Handler) {
	h.handlers[ethertype] = fn
}

func (v *Interface8021Q) receive(src Addr, body *frame.Frame) {
	tag, ok := body.Advance(VLANTagLen)
	if !ok {
		v.base.drop("short-vlan-tag")
		return
	}
	vid := binary.BigEndian.Uint16(tag[0:2]) & 0x0FFF
	ethertype := binary.BigEndian.Uint16(tag[2:4])

	sub, ok := v.subs[vid]
	if !ok {
		v.base.drop("unknown-vid")
		return
	}
	h, ok := sub.handlers[ethertype]
	if !ok {
		v.base.drop("no-handler")
		return
	}
	h(src, body)
}

// Transmit sends a VLAN-tagged frame on vid.
func (v *Interface8021Q) Transmit(dst Addr, vid uint16, ethertype uint16, f *frame.Frame) error {
	tag, ok := f.Prepend(VLANTagLen)
	if !ok {
		return fmt.Errorf("link: no headroom for vlan tag")
	}
	binary.BigEndian.PutUint16(tag[0:2], vid&0x0FFF)
	binary.BigEndian.PutUint16(tag[2:4], ethertype)
	return v.base.Transmit(dst, EthertypeVLAN, f)
}
