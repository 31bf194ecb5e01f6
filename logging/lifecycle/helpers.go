package lifecycle

import (
	"context"

	"dicetable/server/logging"
)

const (
	// EventSessionJoined is emitted when a session is announced to the room.
	EventSessionJoined logging.EventType = "lifecycle.session_joined"
	// EventSessionLeft is emitted when a session disconnects.
	EventSessionLeft logging.EventType = "lifecycle.session_left"
	// EventSubscriberReplaced is emitted when a session reconnects and the
	// stale socket is closed.
	EventSubscriberReplaced logging.EventType = "lifecycle.subscriber_replaced"
)

// SessionJoinedPayload captures the identity the session joined with.
type SessionJoinedPayload struct {
	Username string `json:"username"`
}

// SessionLeftPayload captures the reason and the name released on exit.
type SessionLeftPayload struct {
	Username string `json:"username,omitempty"`
	Reason   string `json:"reason"`
}

// SessionJoined publishes a session join event.
func SessionJoined(ctx context.Context, pub logging.Publisher, sessionID string, payload SessionJoinedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionJoined,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// SessionLeft publishes a session departure event.
func SessionLeft(ctx context.Context, pub logging.Publisher, sessionID string, payload SessionLeftPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionLeft,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// SubscriberReplaced publishes a reconnect event.
func SubscriberReplaced(ctx context.Context, pub logging.Publisher, sessionID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberReplaced,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryLifecycle,
	})
}
