package tcp

// writeRequest is one caller-submitted write(), tracked independently of
// how it gets carved into segments so OnWrite can fire exactly once,
// with the full request length, once every byte is cumulatively acked.
type writeRequest struct {
	data        []byte
	offsetSent  int // bytes already carved into outgoing segments
	offsetAcked int // bytes of this request cumulatively acknowledged
	onWrite     func(n int)
}

// WriteQueue buffers pending writes for one connection's send side and
// accounts for partial acknowledgment across request boundaries per the
// offset_sent/offset_acked bookkeeping the write-queue test suite this
// is grounded on expects.
type WriteQueue struct {
	requests []writeRequest
}

// Write appends a new write request to the tail of the queue.
func (q *WriteQueue) Write(data []byte, onWrite func(n int)) {
	q.requests = append(q.requests, writeRequest{data: data, onWrite: onWrite})
}

// HasUnsent reports whether there is at least one byte not yet carved
// into a segment.
func (q *WriteQueue) HasUnsent() bool {
	for _, r := range q.requests {
		if r.offsetSent < len(r.data) {
			return true
		}
	}
	return false
}

// CarveSegment returns up to maxLen unsent bytes from the head of the
// queue. A segment never spans two requests, so OnWrite firing always
// lines up with a whole number of carved segments. ok is false if there
// is nothing unsent.
func (q *WriteQueue) CarveSegment(maxLen int) (payload []byte, ok bool) {
	for i := range q.requests {
		r := &q.requests[i]
		remaining := len(r.data) - r.offsetSent
		if remaining <= 0 {
			continue
		}
		n := remaining
		if n > maxLen {
			n = maxLen
		}
		payload = r.data[r.offsetSent : r.offsetSent+n]
		r.offsetSent += n
		return payload, true
	}
	return nil, false
}

// Acknowledge advances the queue by delta newly-acknowledged bytes
// (SND.UNA moving forward by delta), firing OnWrite for every request
// that becomes fully acked, in submission order, per spec.md §4.8.3.
func (q *WriteQueue) Acknowledge(delta int) {
	for delta > 0 && len(q.requests) > 0 {
		r := &q.requests[0]
		need := len(r.data) - r.offsetAcked
		if delta >= need {
			delta -= need
			if r.onWrite != nil {
				r.onWrite(len(r.data))
			}
			q.requests = q.requests[1:]
			continue
		}
		r.offsetAcked += delta
		delta = 0
	}
}

// PendingBytes returns the number of bytes still unacknowledged across
// every request in the queue.
func (q *WriteQueue) PendingBytes() int {
	total := 0
	for _, r := range q.requests {
		total += len(r.data) - r.offsetAcked
	}
	return total
}

// Empty reports whether every submitted write has been fully
// acknowledged.
func (q *WriteQueue) Empty() bool { return len(q.requests) == 0 }

// Reset flushes every pending write's OnWrite callback with however many
// bytes of it were actually sent (not necessarily acked), then empties
// the queue. Used when a connection is aborted or reset out from under
// pending writes: distinct from Acknowledge, which only fires callbacks
// for fully-acked requests.
func (q *WriteQueue) Reset() {
	for _, r := range q.requests {
		if r.onWrite != nil {
			r.onWrite(r.offsetSent)
		}
	}
	q.requests = nil
}
