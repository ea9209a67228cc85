package tcp

// State is a TCP connection state per RFC 793 §3.2.
type State int

const (
	Closed State = iota
	Listen
	SynSent
	SynRcvd
	Established
	FinWait1
	FinWait2
	CloseWait
	Closing
	LastAck
	TimeWait
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Listen:
		return "LISTEN"
	case SynSent:
		return "SYN_SENT"
	case SynRcvd:
		return "SYN_RCVD"
	case Established:
		return "ESTABLISHED"
	case FinWait1:
		return "FIN_WAIT_1"
	case FinWait2:
		return "FIN_WAIT_2"
	case CloseWait:
		return "CLOSE_WAIT"
	case Closing:
		return "CLOSING"
	case LastAck:
		return "LAST_ACK"
	case TimeWait:
		return "TIME_WAIT"
	default:
		return "UNKNOWN"
	}
}

// CanSend reports whether write() is permitted in state s (spec.md
// §4.8.1's state table): LISTEN and SYN_SENT queue writes rather than
// rejecting them outright, which the connection models by buffering
// into the same WriteQueue regardless of state and only refusing once
// the connection is past any hope of delivering them.
func (s State) CanSend() bool {
	switch s {
	case Listen, SynSent, SynRcvd, Established, CloseWait:
		return true
	default:
		return false
	}
}

// CanReceiveData reports whether incoming data is accepted for
// delivery to on_read in state s.
func (s State) CanReceiveData() bool {
	switch s {
	case SynRcvd, Established, FinWait1, FinWait2:
		return true
	default:
		return false
	}
}

// CanClose reports whether close() is a valid call in state s.
func (s State) CanClose() bool {
	switch s {
	case Listen, SynSent, SynRcvd, Established, CloseWait:
		return true
	default:
		return false
	}
}

// CloseTarget returns the state close() transitions s into, per
// spec.md's lifecycle rules. ok is false if close() is invalid in s.
func (s State) CloseTarget() (State, bool) {
	switch s {
	case Listen, SynSent:
		return Closed, true
	case SynRcvd, Established:
		return FinWait1, true
	case CloseWait:
		return LastAck, true
	default:
		return s, false
	}
}
