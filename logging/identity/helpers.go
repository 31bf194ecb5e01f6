package identity

import (
	"context"

	"dicetable/server/logging"
)

const (
	// EventUsernameClaimed is emitted when a session claims a name.
	EventUsernameClaimed logging.EventType = "identity.username_claimed"
	// EventUsernameRejected is emitted when a claim fails because another
	// live session holds the name.
	EventUsernameRejected logging.EventType = "identity.username_rejected"
	// EventUsernameReleased is emitted when a claim is released, including
	// forced releases of stale sessions.
	EventUsernameReleased logging.EventType = "identity.username_released"
	// EventColorChanged is emitted when a session changes its color.
	EventColorChanged logging.EventType = "identity.color_changed"
)

// ClaimPayload describes a username claim or rejection.
type ClaimPayload struct {
	Username string `json:"username"`
	Previous string `json:"previous,omitempty"`
}

// ReleasePayload describes a username release.
type ReleasePayload struct {
	Username string `json:"username"`
	Forced   bool   `json:"forced,omitempty"`
}

// ColorPayload describes a color change.
type ColorPayload struct {
	Color string `json:"color"`
}

// UsernameClaimed publishes a successful claim.
func UsernameClaimed(ctx context.Context, pub logging.Publisher, sessionID string, payload ClaimPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUsernameClaimed,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryIdentity,
		Payload:  payload,
	})
}

// UsernameRejected publishes a failed claim.
func UsernameRejected(ctx context.Context, pub logging.Publisher, sessionID string, payload ClaimPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUsernameRejected,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryIdentity,
		Payload:  payload,
	})
}

// UsernameReleased publishes a release.
func UsernameReleased(ctx context.Context, pub logging.Publisher, sessionID string, payload ReleasePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUsernameReleased,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryIdentity,
		Payload:  payload,
	})
}

// ColorChanged publishes a color change.
func ColorChanged(ctx context.Context, pub logging.Publisher, sessionID string, payload ColorPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventColorChanged,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryIdentity,
		Payload:  payload,
	})
}
