package server

import (
	"dicetable/server/internal/activity"
	"dicetable/server/internal/canvas"
	"dicetable/server/internal/identity"
)

// HelloMessage is the first frame pushed to a freshly subscribed session: a
// complete snapshot of the table so the client can render without waiting
// for incremental updates.
type HelloMessage struct {
	Ver             int                      `json:"ver"`
	Type            string                   `json:"type"`
	SessionID       string                   `json:"sessionId"`
	Username        string                   `json:"username"`
	Color           string                   `json:"color"`
	Users           []identity.PresenceEntry `json:"users"`
	Activities      []activity.Activity      `json:"activities"`
	ActiveDice      []canvas.DieView         `json:"activeDice"`
	Sync            canvas.SyncConfig        `json:"sync"`
	HeartbeatMillis int64                    `json:"heartbeatMillis"`
	ServerTime      int64                    `json:"serverTime"`
}

// ActivityMessage pushes one appended activity to every subscriber.
type ActivityMessage struct {
	Ver      int               `json:"ver"`
	Type     string            `json:"type"`
	Activity activity.Activity `json:"activity"`
}

// UserListMessage pushes the full presence list after any membership or
// identity change.
type UserListMessage struct {
	Ver   int                      `json:"ver"`
	Type  string                   `json:"type"`
	Users []identity.PresenceEntry `json:"users"`
}

// CanvasMessage pushes one accepted canvas event. Subscribers run it
// through their own sync filter before applying.
type CanvasMessage struct {
	Ver   int          `json:"ver"`
	Type  string       `json:"type"`
	Event canvas.Event `json:"event"`
}

// HeartbeatMessage acknowledges a client heartbeat with the measured RTT.
type HeartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// CommandResultMessage reports the outcome of a client command. Failures
// travel here as data; the connection itself never errors for a rejected
// command.
type CommandResultMessage struct {
	Ver     int    `json:"ver"`
	Type    string `json:"type"`
	Command string `json:"command"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// DiagnosticsSession is one row of the diagnostics endpoint.
type DiagnosticsSession struct {
	Ver           int    `json:"ver"`
	ID            string `json:"id"`
	Username      string `json:"username"`
	Connected     bool   `json:"connected"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}
