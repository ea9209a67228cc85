package tcp

// congestionController implements Reno congestion control: slow start,
// congestion avoidance, and fast recovery, covering the Connection data
// model's cwnd/ssthresh/in_fast_recovery/recovery_high_seq fields.
// Grounded on the slow-start/congestion-avoidance/dup-ack accounting in
// the retrieval pack's from-scratch netstack congestion controller,
// adapted to the standard three-duplicate-ACK threshold (RFC 5681)
// rather than that source's lowered-for-small-windows threshold.
type congestionController struct {
	mss      uint32
	cwnd     uint32
	ssthresh uint32

	inFastRecovery  bool
	recoveryHighSeq Seq
}

// dupAckThreshold is the number of duplicate ACKs that trigger fast
// retransmit and fast recovery (RFC 5681 §3.2).
const dupAckThreshold = 3

func newCongestionController(mss uint16) *congestionController {
	m := uint32(mss)
	if m == 0 {
		m = 536
	}
	return &congestionController{
		mss:      m,
		cwnd:     2 * m,
		ssthresh: ^uint32(0),
	}
}

// window returns the current congestion window in bytes.
func (cc *congestionController) window() uint32 { return cc.cwnd }

// setMSS updates the segment size congestion-window arithmetic uses
// once the peer's negotiated MSS is known.
func (cc *congestionController) setMSS(mss uint16) {
	if mss != 0 {
		cc.mss = uint32(mss)
	}
}

// onNewAck accounts for ackSeq newly covering bytesAcked bytes of data.
// Outside fast recovery this is plain slow-start/congestion-avoidance
// growth. Inside fast recovery, reaching recoveryHighSeq means the loss
// episode is over: cwnd deflates to ssthresh and recovery ends; an ACK
// that does not yet reach it is a partial ACK, handled NewReno-style by
// deflating by the bytes it covers and re-inflating by one segment so
// the next retransmission stays pipelined.
func (cc *congestionController) onNewAck(ackSeq Seq, bytesAcked uint32) {
	if cc.inFastRecovery {
		if ackSeq.GreaterEq(cc.recoveryHighSeq) {
			cc.cwnd = cc.ssthresh
			cc.inFastRecovery = false
			return
		}
		if bytesAcked < cc.cwnd {
			cc.cwnd -= bytesAcked
		} else {
			cc.cwnd = 0
		}
		cc.cwnd += cc.mss
		return
	}

	if cc.cwnd < cc.ssthresh {
		cc.cwnd += bytesAcked // slow start: exponential growth
	} else {
		inc := (cc.mss * cc.mss) / cc.cwnd // congestion avoidance: ~1 MSS/RTT
		if inc < 1 {
			inc = 1
		}
		cc.cwnd += inc
	}
}

// enterFastRecovery reacts to the third duplicate ACK: ssthresh and
// cwnd halve (inflated by the segments already known to have left the
// network), and sndNXT at the moment of loss detection becomes the
// point that must be acknowledged before recovery ends.
func (cc *congestionController) enterFastRecovery(sndNXT Seq) {
	cc.ssthresh = cc.cwnd / 2
	if cc.ssthresh < 2*cc.mss {
		cc.ssthresh = 2 * cc.mss
	}
	cc.cwnd = cc.ssthresh + dupAckThreshold*cc.mss
	cc.inFastRecovery = true
	cc.recoveryHighSeq = sndNXT
}

// inflate grows cwnd by one segment for each duplicate ACK received
// after fast recovery has begun (RFC 5681 §3.2 step 3).
func (cc *congestionController) inflate() {
	cc.cwnd += cc.mss
}

// onTimeout collapses the window on RTO (RFC 5681 §4.1): ssthresh
// halves, cwnd resets to one segment, and any in-progress fast recovery
// ends without having reached its recovery point.
func (cc *congestionController) onTimeout() {
	cc.ssthresh = cc.cwnd / 2
	if cc.ssthresh < 2*cc.mss {
		cc.ssthresh = 2 * cc.mss
	}
	cc.cwnd = cc.mss
	cc.inFastRecovery = false
}
