// Package virtqueue implements the virtio 1.x split virtqueue: a
// descriptor table plus an available ring (driver-to-device) and a used
// ring (device-to-driver), sized as a power of two and walked with the
// free_head/num_added/last_seen_used cursors the virtio spec describes.
//
// There is no hypervisor boundary in a pure-Go implementation, so the
// memory-barrier semantics real virtio drivers need around MMIO are
// modeled instead as sync/atomic loads and stores at the two points the
// spec calls out explicitly: publishing avail.idx in Kick, and reading
// used.idx in Dequeue. Everything else is ordinary Go memory, exactly
// the same simplification the teacher's own software ring makes over a
// real io_uring mapping.
package virtqueue

import (
	"fmt"
	"sync/atomic"
)

const (
	descFNext  uint16 = 1 << 0
	descFWrite uint16 = 1 << 1

	// AvailNoInterrupt is the driver-set flag asking the device not to
	// send a used-buffer notification.
	AvailNoInterrupt uint16 = 1 << 0
)

// Chunk is one contiguous buffer segment to place in a descriptor chain.
// DeviceWritable marks a descriptor the device fills in (an RX buffer);
// otherwise the device only reads it (a TX buffer).
type Chunk struct {
	Data           []byte
	DeviceWritable bool
}

// Token identifies a descriptor chain by its head index.
type Token uint16

// Completion reports a descriptor chain the other side finished with,
// and how many bytes the device actually wrote into it (meaningful for
// device-writable chains; 0 for pure-TX chains).
type Completion struct {
	Token Token
	Len   uint32
}

type descriptor struct {
	buf    []byte
	writes bool
	flags  uint16
	next   uint16
	inUse  bool
}

// Queue is one virtio split virtqueue, shared between a driver side
// (Enqueue/Kick/Dequeue) and a device side (PopAvail/PushUsed).
type Queue struct {
	size uint16
	desc []descriptor

	freeHead uint16
	numFree  uint16

	availFlags   uint16
	availRing    []uint16
	availIdx     atomic.Uint32 // published value, low 16 bits meaningful
	pendingAvail uint16        // entries written since the last Kick

	usedRing      []Completion
	usedIdx       atomic.Uint32
	lastSeenUsed  uint16 // driver cursor into usedRing
	lastAvailSeen uint16 // device cursor into availRing

	notify chan struct{}
}

// New creates a virtqueue with size descriptors. size must be a power of
// two, as the virtio spec requires for the modulo-by-mask ring indexing.
func New(size uint16) *Queue {
	if size == 0 || size&(size-1) != 0 {
		panic("virtqueue: size must be a power of two")
	}
	q := &Queue{
		size:      size,
		desc:      make([]descriptor, size),
		availRing: make([]uint16, size),
		usedRing:  make([]Completion, size),
		numFree:   size,
		notify:    make(chan struct{}, 1),
	}
	for i := uint16(0); i < size; i++ {
		q.desc[i].next = i + 1
	}
	return q
}

func (q *Queue) mask(i uint16) uint16 { return i & (q.size - 1) }

// Enqueue claims a descriptor chain for chunks and places its head on the
// available ring. The chain is not visible to the device side until
// Kick publishes avail.idx.
func (q *Queue) Enqueue(chunks []Chunk) (Token, error) {
	if len(chunks) == 0 {
		return 0, fmt.Errorf("virtqueue: empty chunk list")
	}
	if uint16(len(chunks)) > q.numFree {
		return 0, fmt.Errorf("virtqueue: ring full (%d free, need %d)", q.numFree, len(chunks))
	}

	head := q.freeHead
	cur := head
	for i, c := range chunks {
		d := &q.desc[cur]
		d.buf = c.Data
		d.writes = c.DeviceWritable
		d.inUse = true
		if c.DeviceWritable {
			d.flags = descFWrite
		} else {
			d.flags = 0
		}
		if i < len(chunks)-1 {
			d.flags |= descFNext
			cur = d.next
		}
	}
	q.freeHead = q.desc[cur].next
	q.numFree -= uint16(len(chunks))

	slot := q.mask(uint16(q.availIdx.Load()) + q.pendingAvail)
	q.availRing[slot] = head
	q.pendingAvail++

	return Token(head), nil
}

// Kick publishes every chain enqueued since the last Kick by atomically
// advancing avail.idx, then signals the device-side notify channel
// (skipping the signal entirely only if Disable/EnableInterrupts is
// modeling a device that asked for no notifications is out of scope
// here — that suppression runs the other direction, used.flags, and is
// a driver-side read, not modeled as a Kick no-op).
func (q *Queue) Kick() {
	if q.pendingAvail == 0 {
		return
	}
	q.availIdx.Add(uint32(q.pendingAvail))
	q.pendingAvail = 0
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// NotifyC returns the channel a device-side consumer can block on to
// learn a Kick happened, rather than busy-polling PopAvail.
func (q *Queue) NotifyC() <-chan struct{} { return q.notify }

// Dequeue pops the next completed chain from the used ring, reclaiming
// its descriptors onto the free list. ok is false if nothing new has
// completed since the last Dequeue.
func (q *Queue) Dequeue() (Completion, bool) {
	used := uint16(q.usedIdx.Load())
	if q.lastSeenUsed == used {
		return Completion{}, false
	}
	c := q.usedRing[q.mask(q.lastSeenUsed)]
	q.lastSeenUsed++

	q.reclaim(uint16(c.Token))
	return c, true
}

func (q *Queue) reclaim(head uint16) {
	cur := head
	for {
		d := &q.desc[cur]
		d.inUse = false
		d.buf = nil
		hasNext := d.flags&descFNext != 0
		q.numFree++
		if !hasNext {
			d.next = q.freeHead
			q.freeHead = head
			return
		}
		next := d.next
		cur = next
	}
}

// EnableInterrupts clears the no-interrupt flag, asking the device to
// notify on every completion again.
func (q *Queue) EnableInterrupts() { q.availFlags &^= AvailNoInterrupt }

// DisableInterrupts sets the no-interrupt flag, asking the device to
// stop notifying on completions (used for interrupt coalescing/polling
// mode on the RX path).
func (q *Queue) DisableInterrupts() { q.availFlags |= AvailNoInterrupt }

// InterruptsEnabled reports whether the device should currently notify
// on completion.
func (q *Queue) InterruptsEnabled() bool { return q.availFlags&AvailNoInterrupt == 0 }

// PopAvail is the device-side read: it returns the next available chain
// the driver published, walking the descriptor chain into chunks the
// device can read from or write into. ok is false if nothing new is
// available since the last PopAvail.
func (q *Queue) PopAvail() (Token, []Chunk, bool) {
	avail := uint16(q.availIdx.Load())
	if q.lastAvailSeen == avail {
		return 0, nil, false
	}
	head := q.availRing[q.mask(q.lastAvailSeen)]
	q.lastAvailSeen++

	var chunks []Chunk
	cur := head
	for {
		d := &q.desc[cur]
		chunks = append(chunks, Chunk{Data: d.buf, DeviceWritable: d.writes})
		if d.flags&descFNext == 0 {
			break
		}
		cur = d.next
	}
	return Token(head), chunks, true
}

// PushUsed is the device-side write: it records that the chain
// identified by token is complete with len bytes written, then
// atomically publishes used.idx so the driver's next Dequeue observes
// it.
func (q *Queue) PushUsed(token Token, len uint32) {
	slot := q.mask(uint16(q.usedIdx.Load()))
	q.usedRing[slot] = Completion{Token: token, Len: len}
	q.usedIdx.Add(1)
}

// Size returns the queue's descriptor-table size.
func (q *Queue) Size() uint16 { return q.size }

// NumFree returns the number of descriptors currently available to
// Enqueue.
func (q *Queue) NumFree() uint16 { return q.numFree }
