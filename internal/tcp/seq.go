package tcp

// Seq is a TCP sequence number; all comparisons are modulo 2^32 per
// RFC 793 §3.3, so ordering uses signed difference rather than a plain
// integer compare.
type Seq uint32

// Less reports whether a precedes b on the sequence-number circle.
func (a Seq) Less(b Seq) bool { return int32(a-b) < 0 }

// LessEq reports whether a precedes or equals b.
func (a Seq) LessEq(b Seq) bool { return int32(a-b) <= 0 }

// Greater reports whether a follows b.
func (a Seq) Greater(b Seq) bool { return b.Less(a) }

// GreaterEq reports whether a follows or equals b.
func (a Seq) GreaterEq(b Seq) bool { return b.LessEq(a) }

// Diff returns a-b as a signed distance around the circle.
func (a Seq) Diff(b Seq) int32 { return int32(a - b) }

// Add returns a+n.
func (a Seq) Add(n uint32) Seq { return a + Seq(n) }

// InWindow reports whether seq falls in [start, start+size) modulo 2^32,
// the acceptability test spec.md §4.8.2 describes for one sequence
// number (used once per edge of the two-sided segment check).
func InWindow(seq, start Seq, size uint32) bool {
	if size == 0 {
		return seq == start
	}
	return seq.GreaterEq(start) && seq.Less(start.Add(size))
}

// SegmentAcceptable implements the RFC 793 §3.3 acceptability test for a
// segment of length l starting at seq, given the receiver's RCV.NXT and
// RCV.WND.
func SegmentAcceptable(seq Seq, l int, rcvNxt Seq, rcvWnd uint32) bool {
	if l == 0 && rcvWnd == 0 {
		return seq == rcvNxt
	}
	if l == 0 {
		return InWindow(seq, rcvNxt, rcvWnd)
	}
	if rcvWnd == 0 {
		return false
	}
	last := seq.Add(uint32(l - 1))
	return InWindow(seq, rcvNxt, rcvWnd) || InWindow(last, rcvNxt, rcvWnd)
}
