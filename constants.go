package server

import "time"

const (
	ProtocolVersion   = 1
	writeWait         = 10 * time.Second
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval
	joinAnnounceDelay = 100 * time.Millisecond
	maxChatLength     = 1000
	sendBuffer        = 64
	dropWarnInterval  = 5 * time.Second
)

// HeartbeatInterval reports the cadence clients are expected to ping at.
func HeartbeatInterval() time.Duration {
	return heartbeatInterval
}
