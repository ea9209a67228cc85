package tcp

// oooSegment is one out-of-order received segment awaiting the bytes
// that come before it.
type oooSegment struct {
	start, end Seq
	payload    []byte
}

// RecvQueue buffers out-of-order segments and releases contiguous runs
// as RCV.NXT catches up to them, guaranteeing on_read callbacks deliver
// bytes in strict sequence order regardless of the arrival order of the
// segments that carried them.
type RecvQueue struct {
	segments []oooSegment
	maxGaps  int
}

// NewRecvQueue creates a receive reassembly queue bounded to maxGaps
// buffered out-of-order segments.
func NewRecvQueue(maxGaps int) *RecvQueue {
	return &RecvQueue{maxGaps: maxGaps}
}

// Insert adds a segment spanning [start,end). It returns false if the
// segment overlaps, even partly, data already buffered, or the gap table is
// full — in both cases the caller drops the segment (it will be
// retransmitted by the peer, or was already delivered).
func (q *RecvQueue) Insert(start, end Seq, payload []byte) bool {
	for _, s := range q.segments {
		if start.Less(s.end) && s.start.Less(end) {
			return false // overlaps an existing gap entry
		}
	}
	if len(q.segments) >= q.maxGaps {
		return false
	}
	q.segments = append(q.segments, oooSegment{start: start, end: end, payload: payload})
	return true
}

// CollectContiguous removes and returns, in order, every buffered
// segment whose start lines up with *nextSeq, advancing *nextSeq past
// each one in turn until a gap remains.
func (q *RecvQueue) CollectContiguous(nextSeq *Seq) [][]byte {
	var out [][]byte
	for {
		progressed := false
		for i, s := range q.segments {
			if s.start == *nextSeq {
				out = append(out, s.payload)
				*nextSeq = s.end
				q.segments = append(q.segments[:i], q.segments[i+1:]...)
				progressed = true
				break
			}
		}
		if !progressed {
			return out
		}
	}
}

// Len reports the number of buffered out-of-order segments.
func (q *RecvQueue) Len() int { return len(q.segments) }

// SACKBlocks reports the currently buffered out-of-order ranges as SACK
// blocks to advertise to the peer.
func (q *RecvQueue) SACKBlocks() []SACKBlock {
	blocks := make([]SACKBlock, len(q.segments))
	for i, s := range q.segments {
		blocks[i] = SACKBlock{Start: s.start, End: s.end}
	}
	return blocks
}
