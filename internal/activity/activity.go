// Package activity holds the shared chronological feed of rolls, chat and
// system notices, plus the fan-out that pushes each append to subscribers.
package activity

import (
	"time"
)

// Kind discriminates activity records.
type Kind string

const (
	KindRoll   Kind = "roll"
	KindSystem Kind = "system"
	KindChat   Kind = "chat"
)

// CanvasDie describes one die the origin client should materialize for a
// roll. Virtual dice carry the aggregate of many simulated-only dice and
// never get a physics body.
type CanvasDie struct {
	DieID        string `json:"dieId"`
	DieType      string `json:"dieType"`
	Result       int    `json:"result"`
	IsVirtual    bool   `json:"isVirtual,omitempty"`
	VirtualRolls []int  `json:"virtualRolls,omitempty"`
}

// Roll is the outcome of one dice expression, produced by the external roll
// processor and owned by the activity that contains it.
type Roll struct {
	Expression string      `json:"expression"`
	Rolls      []int       `json:"rolls"`
	Total      int         `json:"total"`
	Canvas     []CanvasDie `json:"canvasData,omitempty"`
}

// Activity is an immutable feed record. Only the server creates activities;
// they are never mutated or deleted after Append.
type Activity struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user,omitempty"`
	Message   string    `json:"message,omitempty"`
	Roll      *Roll     `json:"roll,omitempty"`
}
