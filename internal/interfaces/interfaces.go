// Package interfaces provides internal interface definitions for unet.
// These are separate from the public API to avoid circular imports between
// the top-level package and the internal layers that sit below it.
package interfaces

import "time"

// NIC is the contract the link layer needs from whatever moves frames
// on and off the wire — a real virtio-net device, a TAP device, or a
// loopback pair in tests.
type NIC interface {
	// MTU is the maximum payload size the NIC can transmit in one frame,
	// not counting the Ethernet header.
	MTU() int
	// MAC returns the NIC's hardware address.
	MAC() [6]byte
	// Transmit sends one Ethernet frame. It must not retain buf after
	// returning.
	Transmit(buf []byte) error
	// SetReceiver registers the callback invoked for every received
	// frame. Called once during bring-up before the NIC is started.
	SetReceiver(fn func(buf []byte))
	// Close releases the NIC's resources. Idempotent.
	Close() error
}

// Timer is the scheduling facility the TCP layer uses for
// retransmission, delayed-ACK, persist, keepalive and TIME-WAIT expiry.
// It exists as an interface so tests can substitute a manually-advanced
// clock instead of real wall time.
type Timer interface {
	// After arms a one-shot timer that invokes fn after d. It returns a
	// handle that Cancel can use to stop it before it fires.
	After(d time.Duration, fn func()) TimerHandle
	// Now returns the timer facility's notion of the current time.
	Now() time.Time
}

// TimerHandle cancels a timer armed by Timer.After. Cancel is safe to
// call after the timer has already fired or been cancelled.
type TimerHandle interface {
	Cancel()
}

// Logger is the minimal logging surface internal packages depend on, so
// they never import internal/logging directly — only the top-level
// package wires a concrete logger in.
type Logger interface {
	Printf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Observer receives stack-wide events for metrics collection.
// Implementations must be safe to call from the single event-loop
// goroutine only (no concurrent calls are made).
type Observer interface {
	ObserveFrameReceived(bytes int)
	ObserveFrameTransmitted(bytes int)
	ObserveFrameDropped(reason string)
	ObserveARPRequest(tx bool)
	ObserveARPReply(tx bool)
	ObserveSegmentRetransmitted()
	ObserveBytesSacked(n int)
	ObserveConnectionStateChange(from, to string)
	ObserveReassemblyAborted()
}

// NoOpObserver discards every event. It is the default when no Observer
// is supplied.
type NoOpObserver struct{}

func (NoOpObserver) ObserveFrameReceived(int)            {}
func (NoOpObserver) ObserveFrameTransmitted(int)          {}
func (NoOpObserver) ObserveFrameDropped(string)           {}
func (NoOpObserver) ObserveARPRequest(bool)               {}
func (NoOpObserver) ObserveARPReply(bool)                 {}
func (NoOpObserver) ObserveSegmentRetransmitted()         {}
func (NoOpObserver) ObserveBytesSacked(int)               {}
func (NoOpObserver) ObserveConnectionStateChange(_, _ string) {}
func (NoOpObserver) ObserveReassemblyAborted()                {}
