package table

import (
	"context"

	"dicetable/server/logging"
)

const (
	// EventRollPerformed is emitted for every processed dice roll.
	EventRollPerformed logging.EventType = "table.roll_performed"
	// EventChatSent is emitted for every accepted chat message.
	EventChatSent logging.EventType = "table.chat_sent"
	// EventCanvasIngested is emitted when a canvas event enters the shared
	// history.
	EventCanvasIngested logging.EventType = "table.canvas_ingested"
)

// RollPayload summarizes a processed roll.
type RollPayload struct {
	Expression string `json:"expression"`
	Total      int    `json:"total"`
	DiceCount  int    `json:"diceCount"`
	Virtual    bool   `json:"virtual,omitempty"`
}

// ChatPayload records the length of an accepted chat message.
type ChatPayload struct {
	Length int `json:"length"`
}

// CanvasPayload identifies an ingested canvas event.
type CanvasPayload struct {
	EventType string `json:"eventType"`
	DieID     string `json:"dieId,omitempty"`
	Applied   bool   `json:"applied"`
}

// RollPerformed publishes a roll event.
func RollPerformed(ctx context.Context, pub logging.Publisher, sessionID string, payload RollPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRollPerformed,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryTable,
		Payload:  payload,
	})
}

// ChatSent publishes a chat event.
func ChatSent(ctx context.Context, pub logging.Publisher, sessionID string, payload ChatPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventChatSent,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryTable,
		Payload:  payload,
	})
}

// CanvasIngested publishes a canvas ingest event.
func CanvasIngested(ctx context.Context, pub logging.Publisher, sessionID string, payload CanvasPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCanvasIngested,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryTable,
		Payload:  payload,
	})
}
