// Package canvas synchronizes the shared table of dice across subscribers:
// the event taxonomy, the per-subscriber filtering rule, the bounded event
// history, and the reconciler that materializes remote dice.
package canvas

import (
	"time"

	"dicetable/server/internal/dice"
)

// EventType identifies a canvas event.
type EventType string

const (
	EventSpawn     EventType = "spawn"
	EventThrow     EventType = "throw"
	EventSettle    EventType = "settle"
	EventHighlight EventType = "highlight"
	EventRemove    EventType = "remove"
	EventClear     EventType = "clear"
)

// Event is one change to the shared dice table. Whoever performs the action
// creates the event; the protocol's history buffer owns it afterwards.
type Event struct {
	ID           string     `json:"id"`
	Type         EventType  `json:"type"`
	DieID        string     `json:"dieId,omitempty"`
	OriginatorID string     `json:"originatorId"`
	Timestamp    time.Time  `json:"timestamp"`
	DieType      string     `json:"dieType,omitempty"`
	Position     *dice.Vec3 `json:"position,omitempty"`
	Velocity     *dice.Vec3 `json:"velocity,omitempty"`
	Result       *int       `json:"result,omitempty"`
	IsVirtual    bool       `json:"isVirtual,omitempty"`
	VirtualRolls []int      `json:"virtualRolls,omitempty"`
	HighlightCol string     `json:"highlightColor,omitempty"`
}

// Valid reports whether the event carries the fields its type requires.
func (e Event) Valid() bool {
	switch e.Type {
	case EventClear:
		return true
	case EventSpawn:
		return e.DieID != "" && e.DieType != ""
	case EventThrow, EventSettle, EventHighlight, EventRemove:
		return e.DieID != ""
	default:
		return false
	}
}
