package unet

import "sync"

// RecordingObserver implements Observer, tallying every event by kind so
// tests can assert on stack behavior without reaching into internals.
// It is the metrics-collector analogue of the teacher's MockBackend: a
// call-counting test double rather than a real collector.
type RecordingObserver struct {
	mu sync.Mutex

	framesReceived    int
	framesTransmitted int
	framesDropped     int
	dropReasons       []string

	arpRequestsTX int
	arpRequestsRX int
	arpRepliesTX  int
	arpRepliesRX  int

	segmentsRetransmitted int
	bytesSacked           int

	stateChanges      []string
	reassemblyAborted int
}

// NewRecordingObserver creates an empty RecordingObserver.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (r *RecordingObserver) ObserveFrameReceived(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.framesReceived++
}

func (r *RecordingObserver) ObserveFrameTransmitted(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.framesTransmitted++
}

func (r *RecordingObserver) ObserveFrameDropped(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.framesDropped++
	r.dropReasons = append(r.dropReasons, reason)
}

func (r *RecordingObserver) ObserveARPRequest(tx bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx {
		r.arpRequestsTX++
	} else {
		r.arpRequestsRX++
	}
}

func (r *RecordingObserver) ObserveARPReply(tx bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx {
		r.arpRepliesTX++
	} else {
		r.arpRepliesRX++
	}
}

func (r *RecordingObserver) ObserveSegmentRetransmitted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segmentsRetransmitted++
}

func (r *RecordingObserver) ObserveBytesSacked(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytesSacked += n
}

func (r *RecordingObserver) ObserveConnectionStateChange(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateChanges = append(r.stateChanges, from+"->"+to)
}

func (r *RecordingObserver) ObserveReassemblyAborted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reassemblyAborted++
}

// Counts returns a snapshot of every tallied event kind, keyed the way a
// caller would name it in a test assertion.
func (r *RecordingObserver) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]int{
		"frames_received":        r.framesReceived,
		"frames_transmitted":     r.framesTransmitted,
		"frames_dropped":         r.framesDropped,
		"arp_requests_tx":        r.arpRequestsTX,
		"arp_requests_rx":        r.arpRequestsRX,
		"arp_replies_tx":         r.arpRepliesTX,
		"arp_replies_rx":         r.arpRepliesRX,
		"segments_retransmitted": r.segmentsRetransmitted,
		"bytes_sacked":           r.bytesSacked,
		"reassembly_aborted":     r.reassemblyAborted,
	}
}

// StateChanges returns every "from->to" connection state transition
// observed, in order.
func (r *RecordingObserver) StateChanges() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.stateChanges))
	copy(out, r.stateChanges)
	return out
}

// DropReasons returns every ObserveFrameDropped reason, in order.
func (r *RecordingObserver) DropReasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.dropReasons))
	copy(out, r.dropReasons)
	return out
}

// Reset clears all counters and recorded history.
func (r *RecordingObserver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.framesReceived = 0
	r.framesTransmitted = 0
	r.framesDropped = 0
	r.dropReasons = nil
	r.arpRequestsTX = 0
	r.arpRequestsRX = 0
	r.arpRepliesTX = 0
	r.arpRepliesRX = 0
	r.segmentsRetransmitted = 0
	r.bytesSacked = 0
	r.stateChanges = nil
	r.reassemblyAborted = 0
}

var _ Observer = (*RecordingObserver)(nil)
