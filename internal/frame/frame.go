// Package frame implements the packet-ownership primitive the rest of
// the stack is built on: one pooled buffer, a cursor pair marking the
// currently valid window within it, and a singly-linked chain link for
// queues that hold more than one frame per entry (the ARP pending-queue,
// IPv4 fragment reassembly, the TCP out-of-order buffer).
//
// A Frame has exactly one owner at a time. Passing a Frame to another
// goroutine or handing it off to a queue transfers ownership; the
// previous owner must not touch it again. This is the explicit
// single-owner transfer model in place of shared-ownership/intrusive
// reference counting.
package frame

import (
	"github.com/behrlich/unet/internal/buffer"
	"github.com/behrlich/unet/internal/constants"
)

// Frame is a view over one pooled buffer. Headers are built by
// prepending into the reserved headroom from the inside out (TCP, then
// IPv4, then Ethernet); incoming frames are parsed by advancing the
// window forward one header at a time.
type Frame struct {
	raw   *[]byte
	start int
	end   int
	next  *Frame
}

// New wraps a pooled buffer, initializing the data window to empty with
// full headroom reserved at the front for header prepends.
func New(raw *[]byte) *Frame {
	return &Frame{raw: raw, start: constants.FrameReserve, end: constants.FrameReserve}
}

// Bytes returns the current data window: everything consumed so far is
// excluded, everything beyond the window is not yet valid.
func (f *Frame) Bytes() []byte {
	return (*f.raw)[f.start:f.end]
}

// Raw returns the underlying pooled buffer, for returning it to a Pool
// once the frame (and its whole chain) is done with it.
func (f *Frame) Raw() *[]byte {
	return f.raw
}

// Headroom reports how many bytes are available to Prepend before the
// front of the underlying buffer is reached.
func (f *Frame) Headroom() int {
	return f.start
}

// SetPayload copies p into the frame as its initial data window,
// starting right after the reserved headroom. Used when constructing an
// outgoing packet before any headers have been prepended.
func (f *Frame) SetPayload(p []byte) bool {
	if buffer.Size-f.start < len(p) {
		return false
	}
	f.end = f.start + len(p)
	copy((*f.raw)[f.start:f.end], p)
	return true
}

// Prepend reserves n bytes immediately before the current window and
// returns them for the caller to fill with a header, moving the window
// start backward. Returns (nil, false) if there isn't enough headroom.
func (f *Frame) Prepend(n int) ([]byte, bool) {
	if f.start < n {
		return nil, false
	}
	f.start -= n
	return (*f.raw)[f.start : f.start+n], true
}

// Advance consumes n bytes from the front of the window, returning them
// and moving the window start forward — the parse-side counterpart of
// Prepend, used to walk down through Ethernet -> IPv4 -> TCP headers.
// Returns (nil, false) if fewer than n bytes remain.
func (f *Frame) Advance(n int) ([]byte, bool) {
	if f.end-f.start < n {
		return nil, false
	}
	b := (*f.raw)[f.start : f.start+n]
	f.start += n
	return b, true
}

// Len returns the number of bytes remaining in the window.
func (f *Frame) Len() int {
	return f.end - f.start
}

// Truncate shrinks the window's end so Len() == n. It is a no-op if n is
// not less than the current length.
func (f *Frame) Truncate(n int) {
	if f.start+n < f.end {
		f.end = f.start + n
	}
}

// Clone makes an independent copy of the frame's current window backed
// by a freshly pooled buffer, used when a frame must be retained past
// the point its original owner will reuse or release it (e.g. queuing a
// copy for ARP resolution while the original still flows elsewhere).
func (f *Frame) Clone(raw *[]byte) *Frame {
	c := New(raw)
	c.SetPayload(f.Bytes())
	return c
}

// Chain appends next to the end of f's singly-linked list. Used by the
// ARP pending-resolution queue (multiple writes to one unresolved
// target) and IPv4 fragment reassembly (fragments of one datagram).
func (f *Frame) Chain(next *Frame) {
	tail := f
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = next
}

// Next returns the next frame in the chain, or nil at the end.
func (f *Frame) Next() *Frame {
	return f.next
}

// PopChain detaches and returns the head of the chain along with the
// remaining tail, leaving f (the old head) a single, unchained frame.
func (f *Frame) PopChain() (head *Frame, rest *Frame) {
	rest = f.next
	f.next = nil
	return f, rest
}
