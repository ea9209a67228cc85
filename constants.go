package unet

import "github.com/behrlich/unet/internal/constants"

// Re-export constants for public API.
const (
	DefaultMTU                = constants.DefaultMTU
	DefaultWindowSize         = constants.DefaultWindowSize
	DefaultWindowScale        = constants.DefaultWindowScale
	DefaultMSS                = constants.DefaultMSS
	DefaultDelayedACKTimeout  = constants.DefaultDelayedACKTimeout
	MSL                       = constants.MSL
	DefaultMaxSynBacklog      = constants.DefaultMaxSynBacklog
	DefaultMaxRetransmissions = constants.DefaultMaxRetransmissions
	DefaultTimestampsEnabled  = constants.DefaultTimestampsEnabled
	DefaultSACKEnabled        = constants.DefaultSACKEnabled
	DefaultKeepAliveEnabled   = constants.DefaultKeepAliveEnabled
	DefaultKeepAliveIdle      = constants.DefaultKeepAliveIdle
	DefaultKeepAliveInterval  = constants.DefaultKeepAliveInterval
	DefaultKeepAliveCount     = constants.DefaultKeepAliveCount
)
