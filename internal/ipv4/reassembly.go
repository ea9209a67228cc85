package ipv4

import (
	"sort"

	"github.com/behrlich/unet/internal/buffer"
	"github.com/behrlich/unet/internal/constants"
	"github.com/behrlich/unet/internal/frame"
)

// fragKey identifies one in-flight fragmented datagram.
type fragKey struct {
	src, dst Addr
	proto    uint8
	id       uint16
}

type fragPiece struct {
	offset int
	last   bool
	data   []byte
}

type reassembly struct {
	pieces   []fragPiece
	totalLen int // known once the last fragment (MF=0) has arrived; -1 until then
}

// Reassembler holds in-flight fragmented IPv4 datagrams, bounded to
// MaxReassemblyEntries concurrent datagrams with a TTL per entry.
// Overlapping fragments or exceeding the entry bound aborts the whole
// datagram rather than attempting to reconcile conflicting data.
type Reassembler struct {
	entries map[fragKey]*reassembly
}

// NewReassembler creates an empty reassembly table.
func NewReassembler() *Reassembler {
	return &Reassembler{entries: make(map[fragKey]*reassembly)}
}

// Insert adds one fragment. If it completes the datagram, Insert returns
// (true, combined) with combined holding the full reassembled payload in
// a freshly pooled buffer (the caller's responsibility to release); the
// per-fragment buffers are released internally. Otherwise it returns
// (false, nil) and the fragment's buffer ownership transfers to the
// reassembler.
func (r *Reassembler) Insert(key fragKey, offset int, moreFragments bool, body *frame.Frame, pool *buffer.Pool) (bool, *frame.Frame) {
	entry, ok := r.entries[key]
	if !ok {
		if len(r.entries) >= constants.MaxReassemblyEntries {
			pool.Release(body.Raw())
			return false, nil
		}
		entry = &reassembly{totalLen: -1}
		r.entries[key] = entry
	}

	piece := fragPiece{offset: offset, last: !moreFragments, data: append([]byte(nil), body.Bytes()...)}
	pool.Release(body.Raw())

	for _, existing := range entry.pieces {
		if overlaps(existing.offset, len(existing.data), piece.offset, len(piece.data)) {
			delete(r.entries, key)
			return false, nil
		}
	}
	entry.pieces = append(entry.pieces, piece)
	if piece.last {
		entry.totalLen = piece.offset + len(piece.data)
	}

	if entry.totalLen < 0 {
		return false, nil
	}
	sort.Slice(entry.pieces, func(i, j int) bool { return entry.pieces[i].offset < entry.pieces[j].offset })

	covered := 0
	for _, p := range entry.pieces {
		if p.offset != covered {
			return false, nil // gap remains
		}
		covered += len(p.data)
	}
	if covered != entry.totalLen {
		return false, nil
	}

	raw, ok := pool.Acquire()
	if !ok {
		delete(r.entries, key)
		return false, nil
	}
	combined := frame.New(raw)
	buf := make([]byte, 0, entry.totalLen)
	for _, p := range entry.pieces {
		buf = append(buf, p.data...)
	}
	combined.SetPayload(buf)
	delete(r.entries, key)
	return true, combined
}

// Pending reports whether key already has an in-flight entry.
func (r *Reassembler) Pending(key fragKey) bool {
	_, ok := r.entries[key]
	return ok
}

// Expire drops the entry for key if it still exists, for TTL-driven
// cleanup the owning IPv4 layer schedules per entry. Returns true if an
// incomplete entry was actually dropped.
func (r *Reassembler) Expire(key fragKey) bool {
	_, ok := r.entries[key]
	delete(r.entries, key)
	return ok
}

func overlaps(aOff, aLen, bOff, bLen int) bool {
	aEnd, bEnd := aOff+aLen, bOff+bLen
	return aOff < bEnd && bOff < aEnd
}
