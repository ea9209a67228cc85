// Package registry tracks live TCP connections by their four-tuple and
// listeners by local port, and allocates ephemeral source ports for
// active opens. Everything here runs on the single event-loop goroutine
// that owns the stack, so no locking is needed; the connection table is
// still bucketed by a hash of the flow tuple (mirroring the sharded
// design a concurrent server would need) so a future multi-goroutine
// split only has to change how buckets are dispatched, not how they are
// found.
package registry

import (
	"encoding/binary"
	"fmt"

	"github.com/OneOfOne/xxhash"
	"github.com/behrlich/unet/internal/tcp"
)

const bucketCount = 16

// ConnectionTable maps flow tuples to their live Connection, bucketed by
// an xxhash of the tuple bytes.
type ConnectionTable struct {
	buckets [bucketCount]map[tcp.Flow]*tcp.Connection
}

// NewConnectionTable creates an empty connection table.
func NewConnectionTable() *ConnectionTable {
	t := &ConnectionTable{}
	for i := range t.buckets {
		t.buckets[i] = make(map[tcp.Flow]*tcp.Connection)
	}
	return t
}

func flowBytes(f tcp.Flow) []byte {
	b := make([]byte, 0, 12)
	b = append(b, f.LocalAddr[:]...)
	b = append(b, f.RemoteAddr[:]...)
	b = binary.BigEndian.AppendUint16(b, f.LocalPort)
	b = binary.BigEndian.AppendUint16(b, f.RemotePort)
	return b
}

func (t *ConnectionTable) bucket(f tcp.Flow) map[tcp.Flow]*tcp.Connection {
	h := xxhash.Checksum64(flowBytes(f))
	return t.buckets[h%bucketCount]
}

// Insert registers conn under its flow tuple.
func (t *ConnectionTable) Insert(f tcp.Flow, conn *tcp.Connection) {
	t.bucket(f)[f] = conn
}

// Lookup returns the connection for f, if any.
func (t *ConnectionTable) Lookup(f tcp.Flow) (*tcp.Connection, bool) {
	c, ok := t.bucket(f)[f]
	return c, ok
}

// Remove deletes f's entry, e.g. on TIME_WAIT expiry, LAST_ACK -> CLOSED,
// or abort().
func (t *ConnectionTable) Remove(f tcp.Flow) {
	delete(t.bucket(f), f)
}

// Len returns the total number of tracked connections.
func (t *ConnectionTable) Len() int {
	n := 0
	for _, b := range t.buckets {
		n += len(b)
	}
	return n
}

// Flows returns every tracked flow tuple, e.g. for teardown on Close.
func (t *ConnectionTable) Flows() []tcp.Flow {
	flows := make([]tcp.Flow, 0, t.Len())
	for _, b := range t.buckets {
		for f := range b {
			flows = append(flows, f)
		}
	}
	return flows
}

// ListenerTable maps local ports to their Listener.
type ListenerTable struct {
	byPort map[uint16]*tcp.Listener
}

// NewListenerTable creates an empty listener table.
func NewListenerTable() *ListenerTable {
	return &ListenerTable{byPort: make(map[uint16]*tcp.Listener)}
}

// Insert registers ln under port. Returns an error if the port is
// already bound.
func (t *ListenerTable) Insert(port uint16, ln *tcp.Listener) error {
	if _, exists := t.byPort[port]; exists {
		return fmt.Errorf("registry: port %d already in use", port)
	}
	t.byPort[port] = ln
	return nil
}

// Lookup returns the listener bound to port, if any.
func (t *ListenerTable) Lookup(port uint16) (*tcp.Listener, bool) {
	ln, ok := t.byPort[port]
	return ln, ok
}

// Remove unbinds port.
func (t *ListenerTable) Remove(port uint16) {
	delete(t.byPort, port)
}

// Ports returns every bound port, e.g. for teardown on Close.
func (t *ListenerTable) Ports() []uint16 {
	ports := make([]uint16, 0, len(t.byPort))
	for p := range t.byPort {
		ports = append(ports, p)
	}
	return ports
}

// EphemeralAllocator hands out source ports for active opens from the
// dynamic/private range (RFC 6335 §6: 49152-65535 is the registered IANA
// range, but this stack follows the wider 1024-65535 convention the
// original implementation it is grounded on uses), skipping ports held
// by a listener and retrying on flow collision.
type EphemeralAllocator struct {
	next      uint16
	low, high uint16
	listeners *ListenerTable
	conns     *ConnectionTable
}

// NewEphemeralAllocator creates an allocator cycling through
// [1024,65535], consulting listeners and conns to avoid collisions.
func NewEphemeralAllocator(listeners *ListenerTable, conns *ConnectionTable) *EphemeralAllocator {
	return &EphemeralAllocator{next: 1024, low: 1024, high: 65535, listeners: listeners, conns: conns}
}

// Allocate returns an unused local port for a new active-open flow to
// remoteAddr:remotePort from localAddr, or an error if the range is
// exhausted.
func (a *EphemeralAllocator) Allocate(localAddr, remoteAddr [4]byte, remotePort uint16) (uint16, error) {
	span := int(a.high) - int(a.low) + 1
	for i := 0; i < span; i++ {
		port := a.next
		a.advance()

		if _, taken := a.listeners.Lookup(port); taken {
			continue
		}
		f := tcp.Flow{LocalAddr: localAddr, RemoteAddr: remoteAddr, LocalPort: port, RemotePort: remotePort}
		if _, exists := a.conns.Lookup(f); exists {
			continue
		}
		return port, nil
	}
	return 0, fmt.Errorf("registry: no free ephemeral port in [%d,%d]", a.low, a.high)
}

func (a *EphemeralAllocator) advance() {
	if a.next >= a.high {
		a.next = a.low
	} else {
		a.next++
	}
}
