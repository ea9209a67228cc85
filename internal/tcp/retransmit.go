package tcp

import "time"

// inFlightSegment is one transmitted-but-unacked segment, tracked by
// sequence range so SND.UNA advancing can retire it, SACK blocks can
// mark it as covered without retiring it, and Karn's algorithm can
// exclude it from an RTT sample if it was ever retransmitted.
type inFlightSegment struct {
	start, end Seq // end is exclusive
	payload    []byte
	sentAt     time.Time
	retransmitted bool
	sacked      bool
}

func (s inFlightSegment) len() int { return int(s.end - s.start) }

// RetransmitQueue tracks every segment between SND.UNA and SND.NXT so a
// retransmission timeout knows exactly what to resend, and so RTT
// samples can be attributed to the segment an ACK actually covers.
type RetransmitQueue struct {
	segments []inFlightSegment
}

// Track records a freshly transmitted segment.
func (q *RetransmitQueue) Track(start Seq, payload []byte, now time.Time) {
	q.segments = append(q.segments, inFlightSegment{
		start:   start,
		end:     start.Add(uint32(len(payload))),
		payload: payload,
		sentAt:  now,
	})
}

// Ack retires every segment fully covered by una (the new SND.UNA), and
// returns a clean RTT sample from the oldest retired segment that was
// never retransmitted (Karn's algorithm — a retransmitted segment's
// timing is ambiguous, so it never contributes a sample).
func (q *RetransmitQueue) Ack(una Seq, now time.Time) (sample time.Duration, hasSample bool) {
	i := 0
	for i < len(q.segments) && q.segments[i].end.LessEq(una) {
		seg := q.segments[i]
		if !hasSample && !seg.retransmitted {
			sample = now.Sub(seg.sentAt)
			hasSample = true
		}
		i++
	}
	q.segments = q.segments[i:]
	return sample, hasSample
}

// MarkSacked flags every tracked segment fully covered by [start,end) as
// SACKed, so retransmission can skip it without advancing SND.UNA.
func (q *RetransmitQueue) MarkSacked(start, end Seq) {
	for i := range q.segments {
		if q.segments[i].start.GreaterEq(start) && q.segments[i].end.LessEq(end) {
			q.segments[i].sacked = true
		}
	}
}

// Oldest returns the lowest-sequence unSACKed segment, the one fast
// retransmit and an RTO resend target.
func (q *RetransmitQueue) Oldest() (inFlightSegment, bool) {
	for _, s := range q.segments {
		if !s.sacked {
			return s, true
		}
	}
	return inFlightSegment{}, false
}

// MarkRetransmitted flags the given segment as resent (for Karn's
// algorithm) and refreshes its sentAt for the next RTO deadline.
func (q *RetransmitQueue) MarkRetransmitted(start Seq, now time.Time) {
	for i := range q.segments {
		if q.segments[i].start == start {
			q.segments[i].retransmitted = true
			q.segments[i].sentAt = now
			return
		}
	}
}

// Empty reports whether every transmitted segment has been acked.
func (q *RetransmitQueue) Empty() bool { return len(q.segments) == 0 }

// BytesSacked returns the total bytes currently marked SACKed but not
// yet retired by Ack, the counter spec.md exposes for diagnostics.
func (q *RetransmitQueue) BytesSacked() int {
	n := 0
	for _, s := range q.segments {
		if s.sacked {
			n += s.len()
		}
	}
	return n
}
