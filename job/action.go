package job

import (
	"encoding/json"
	"fmt"
)

// Action is the closed set of operations a step can perform.
type Action string

const (
	ActionCopy   Action = "COPY"
	ActionMove   Action = "MOVE"
	ActionDelete Action = "DELETE"
	ActionMerge  Action = "MERGE"
	// ActionError always fails when executed. It exists for fault
	// injection and is never accepted by validation.
	ActionError Action = "ERROR"
)

// Actions lists the actions a persisted job may use.
var Actions = []Action{ActionCopy, ActionMove, ActionDelete, ActionMerge}

// Known reports whether a is one of the four persisted actions.
func (a Action) Known() bool {
	switch a {
	case ActionCopy, ActionMove, ActionDelete, ActionMerge:
		return true
	}
	return false
}

// Runnable reports whether the dispatcher recognizes a, including ActionError.
func (a Action) Runnable() bool {
	return a.Known() || a == ActionError
}

func (a Action) String() string { return string(a) }

// NeedsSource reports whether a reads a single source location.
func (a Action) NeedsSource() bool {
	return a == ActionCopy || a == ActionMove || a == ActionDelete
}

// NeedsSources reports whether a reads an ordered source list.
func (a Action) NeedsSources() bool {
	return a == ActionMerge
}

// NeedsDestination reports whether a writes a destination.
func (a Action) NeedsDestination() bool {
	return a == ActionCopy || a == ActionMove || a == ActionMerge
}

// UnmarshalJSON accepts any string so that unknown actions survive
// decoding and are reported by validation or dispatch instead.
func (a *Action) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("action must be a string: %w", err)
	}
	*a = Action(s)
	return nil
}
