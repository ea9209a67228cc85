package tcp

import (
	"time"

	"github.com/behrlich/unet/internal/constants"
)

// clockGranularity is the "G" term in RFC 6298's RTO formula, the
// assumed granularity of the timer backing RTT measurement.
const clockGranularity = 100 * time.Millisecond

// RTTEstimator implements the RFC 6298 smoothed-RTT and RTO computation,
// with Karn's algorithm applied by the caller (samples from retransmitted
// segments must never reach Update).
type RTTEstimator struct {
	srtt       time.Duration
	rttvar     time.Duration
	rto        time.Duration
	hasSample  bool
	consecutiveTimeouts int
}

// NewRTTEstimator creates an estimator with the default initial RTO.
func NewRTTEstimator() *RTTEstimator {
	return &RTTEstimator{rto: constants.InitialRTO}
}

// Update folds in one clean RTT sample (§2.2/§2.3).
func (r *RTTEstimator) Update(sample time.Duration) {
	if !r.hasSample {
		r.srtt = sample
		r.rttvar = sample / 2
		r.hasSample = true
	} else {
		delta := r.srtt - sample
		if delta < 0 {
			delta = -delta
		}
		r.rttvar = (3*r.rttvar + delta) / 4
		r.srtt = (7*r.srtt + sample) / 8
	}

	rto := r.srtt + max(clockGranularity, 4*r.rttvar)
	r.rto = clamp(rto, constants.MinRTO, constants.MaxRTO)
	r.consecutiveTimeouts = 0
}

// RTO returns the current retransmission timeout.
func (r *RTTEstimator) RTO() time.Duration { return r.rto }

// Backoff doubles the RTO on a retransmission timeout (exponential
// backoff), clamped at MaxRTO, and tracks how many consecutive timeouts
// have occurred so the caller can compare against max_retransmissions.
func (r *RTTEstimator) Backoff() time.Duration {
	r.consecutiveTimeouts++
	r.rto = clamp(r.rto*2, constants.MinRTO, constants.MaxRTO)
	return r.rto
}

// ConsecutiveTimeouts returns how many retransmission timeouts have
// fired in a row without an intervening clean ACK.
func (r *RTTEstimator) ConsecutiveTimeouts() int { return r.consecutiveTimeouts }

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func max(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
