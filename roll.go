package server

import "dicetable/server/internal/activity"

// RollProcessor evaluates a dice expression into a completed roll.
// Implementations own the expression syntax; the hub never parses
// expressions itself.
type RollProcessor interface {
	ProcessRoll(expression string) (activity.Roll, error)
}

// RollProcessorFunc adapts a function to the RollProcessor interface.
type RollProcessorFunc func(expression string) (activity.Roll, error)

func (f RollProcessorFunc) ProcessRoll(expression string) (activity.Roll, error) {
	return f(expression)
}
