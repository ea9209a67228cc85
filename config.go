package unet

import (
	"time"

	"github.com/behrlich/unet/internal/constants"
	"github.com/behrlich/unet/internal/ipv4"
)

// Config carries every tunable the stack reads at bring-up, mirroring
// the Device configuration knobs exposed by lower-level drivers: most
// fields have sensible defaults and only need setting to change
// protocol behavior or plug in ambient collaborators.
type Config struct {
	// MAC is the hardware address the stack presents on its NIC.
	MAC [6]byte
	// Addr is the IPv4 address the stack binds.
	Addr ipv4.Addr

	// WindowSize is the initial receive window advertised, before
	// scaling, in bytes.
	WindowSize uint16
	// WindowScale is the window scale factor offered in SYN/SYN-ACK
	// options (RFC 1323). Set to 0 to disable scaling.
	WindowScale uint8
	// MSS is the maximum segment size offered absent negotiation.
	MSS uint16
	// DelayedACKTimeout bounds how long a received segment may go
	// un-acked waiting for data to piggyback on.
	DelayedACKTimeout time.Duration
	// MSL is the maximum segment lifetime; TIME-WAIT holds for 2*MSL.
	MSL time.Duration
	// TimestampsEnabled is recorded on each connection together with
	// whether the peer's handshake carried a timestamp option; the stack
	// never includes TSopt/TSecr (RFC 1323) in the segments it sends.
	TimestampsEnabled bool
	// SACKEnabled controls whether SACK-permitted (RFC 2018) is
	// offered.
	SACKEnabled bool
	// MaxSynBacklog bounds half-open connections queued per listener.
	MaxSynBacklog int
	// MaxRetransmissions is how many RTO-driven retransmits are
	// attempted before a connection is reset.
	MaxRetransmissions int

	// KeepAliveEnabled starts the keepalive probe timer once a
	// connection has sat idle in ESTABLISHED for KeepAliveIdle.
	KeepAliveEnabled bool
	// KeepAliveIdle is how long ESTABLISHED may go without traffic
	// before probing starts.
	KeepAliveIdle time.Duration
	// KeepAliveInterval is the spacing between unanswered probes.
	KeepAliveInterval time.Duration
	// KeepAliveCount is how many unanswered probes are sent before the
	// connection is aborted.
	KeepAliveCount int

	// EventQueueDepth is carried in Config but read by no part of the
	// Stack; Write, Connect, Close and the other calls run directly on
	// the caller's goroutine.
	EventQueueDepth int

	// Logger receives structured/printf log lines. Defaults to the
	// internal/logging package's default logger if nil.
	Logger Logger
	// Observer receives metrics events. If nil, the Stack uses its
	// built-in Metrics collector, returned by Stack.Metrics.
	Observer Observer
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:         constants.DefaultWindowSize,
		WindowScale:        constants.DefaultWindowScale,
		MSS:                constants.DefaultMSS,
		DelayedACKTimeout:  constants.DefaultDelayedACKTimeout,
		MSL:                constants.MSL,
		TimestampsEnabled:  constants.DefaultTimestampsEnabled,
		SACKEnabled:        constants.DefaultSACKEnabled,
		MaxSynBacklog:      constants.DefaultMaxSynBacklog,
		MaxRetransmissions: constants.DefaultMaxRetransmissions,
		KeepAliveEnabled:   constants.DefaultKeepAliveEnabled,
		KeepAliveIdle:      constants.DefaultKeepAliveIdle,
		KeepAliveInterval:  constants.DefaultKeepAliveInterval,
		KeepAliveCount:     constants.DefaultKeepAliveCount,
		EventQueueDepth:    constants.EventQueueDepth,
	}
}

// Logger is the logging surface a Stack accepts at construction.
type Logger interface {
	Printf(format string, args ...any)
	Debugf(format string, args ...any)
}
